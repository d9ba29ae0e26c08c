package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shrublabs/shrub-fund/internal/auth"
	"github.com/shrublabs/shrub-fund/internal/cashout"
	"github.com/shrublabs/shrub-fund/internal/clients/settlement"
	"github.com/shrublabs/shrub-fund/internal/config"
	"github.com/shrublabs/shrub-fund/internal/db"
	"github.com/shrublabs/shrub-fund/internal/db/model"
	"github.com/shrublabs/shrub-fund/internal/navhistory"
	"github.com/shrublabs/shrub-fund/internal/observability/metrics"
	"github.com/shrublabs/shrub-fund/internal/queue"
	"github.com/shrublabs/shrub-fund/internal/registry"
	"github.com/shrublabs/shrub-fund/internal/types"
	"github.com/shrublabs/shrub-fund/internal/utils/clock"
)

// Service runs the fund workflows. Every mutating operation holds the
// service lock and runs inside a single db transaction, so a process is
// expected to be the only writer of its database.
type Service struct {
	mu sync.Mutex

	cfg        *config.Config
	db         db.DbInterface
	registry   *registry.Manager
	cashout    *cashout.Queue
	navHistory *navhistory.Window
	settlement settlement.SettlementInterface
	grower     registry.Grower
	verifier   *auth.Verifier
	clock      clock.Clock
	publisher  queue.EventPublisher
}

func NewService(
	cfg *config.Config,
	db db.DbInterface,
	settlement settlement.SettlementInterface,
	grower registry.Grower,
	publisher queue.EventPublisher,
	clk clock.Clock,
) *Service {
	if publisher == nil {
		publisher = queue.NewNoopPublisher()
	}
	if clk == nil {
		clk = clock.System()
	}
	deferred := &deferredGrower{next: grower}
	return &Service{
		cfg:        cfg,
		db:         db,
		registry:   registry.NewManager(db, deferred, cfg.Registry),
		cashout:    cashout.NewQueue(db, deferred, cfg.Cashout),
		navHistory: navhistory.NewWindow(cfg.NavHistory),
		settlement: settlement,
		grower:     grower,
		verifier:   auth.NewVerifier(cfg.Fund.AuthorityKey),
		clock:      clk,
		publisher:  publisher,
	}
}

func (s *Service) Verifier() *auth.Verifier {
	return s.verifier
}

// execute serializes fn against every other mutating operation and runs it
// in one transaction. Storage growth requested by fn is settled after fn
// returns, still inside the transaction.
func (s *Service) execute(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		fx      = &effects{}
		settled bool
	)
	startTime := time.Now()
	err := s.db.WithTransaction(ctx, func(ctx context.Context) error {
		ctx = context.WithValue(ctx, effectsKey{}, fx)
		if err := fn(ctx); err != nil {
			return err
		}
		if err := s.settleGrowth(ctx, fx); err != nil {
			return err
		}
		settled = true
		return nil
	})
	metrics.RecordOperationDuration(time.Since(startTime), operation, err != nil)
	if err == nil {
		return nil
	}

	if settled {
		// money moved but the state describing it was not committed
		fx.describe(log.Ctx(ctx).Error().Err(err)).
			Str("operation", operation).
			Msg("transaction failed after settlement, reconcile the listed transfers")
	}

	var typed *types.Error
	if !errors.As(err, &typed) {
		return types.NewInternalServiceError(err)
	}
	return err
}

func (s *Service) getLedger(ctx context.Context) (*model.FundLedgerDocument, error) {
	ledger, err := s.db.GetFundLedger(ctx)
	if err != nil {
		if db.IsNotFoundError(err) {
			return nil, types.ErrFundNotInitialized
		}
		return nil, types.NewInternalServiceError(err)
	}
	return ledger, nil
}

func (s *Service) getNavHistory(ctx context.Context) (*model.NavHistoryDocument, error) {
	history, err := s.db.GetNavHistory(ctx)
	if err != nil {
		if db.IsNotFoundError(err) {
			return model.NewNavHistoryDocument(), nil
		}
		return nil, types.NewInternalServiceError(err)
	}
	return history, nil
}

// getUserShare returns the record of owner, or a fresh empty record when the
// owner never staked.
func (s *Service) getUserShare(ctx context.Context, owner string) (*model.UserShareDocument, error) {
	record, err := s.db.GetUserShare(ctx, owner)
	if err != nil {
		if db.IsNotFoundError(err) {
			return model.NewUserShareDocument(owner), nil
		}
		return nil, types.NewInternalServiceError(err)
	}
	return record, nil
}
