package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shrublabs/shrub-fund/internal/db"
	"github.com/shrublabs/shrub-fund/internal/db/model"
	"github.com/shrublabs/shrub-fund/internal/types"
)

// InitializeFund creates the fund ledger with both valuations set to
// initialValue, seeds the nav history with it and allocates the cashout
// queue. Only the authority may call it, and only once.
func (s *Service) InitializeFund(ctx context.Context, signer string, initialValue uint64) (*model.FundLedgerDocument, error) {
	if err := s.verifier.RequireAuthority(signer); err != nil {
		return nil, err
	}

	var ledger *model.FundLedgerDocument
	err := s.execute(ctx, "init_fund", func(ctx context.Context) error {
		if _, err := s.db.GetFundLedger(ctx); err == nil {
			return types.ErrFundAlreadyInitialized
		} else if !db.IsNotFoundError(err) {
			return types.NewInternalServiceError(err)
		}

		now := s.clock.Now()
		ledger = model.NewFundLedgerDocument(s.cfg.Fund.AuthorityKey, initialValue, now.Unix())

		history := model.NewNavHistoryDocument()
		s.navHistory.Record(history, initialValue, now)

		if _, err := s.cashout.Initialize(ctx, signer); err != nil {
			return err
		}
		if err := s.db.InsertFundLedger(ctx, ledger); err != nil {
			if db.IsDuplicateKeyError(err) {
				return types.ErrFundAlreadyInitialized
			}
			return types.NewInternalServiceError(fmt.Errorf("failed to insert fund ledger: %w", err))
		}
		if err := s.db.SaveNavHistory(ctx, history); err != nil {
			return types.NewInternalServiceError(fmt.Errorf("failed to save nav history: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Ctx(ctx).Info().
		Uint64("initial_value", initialValue).
		Str("authority", ledger.AuthorityKey).
		Msg("fund initialized")
	return ledger, nil
}
