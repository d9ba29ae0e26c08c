package services

import (
	"testing"
	"time"

	"github.com/shrublabs/shrub-fund/internal/config"
	"github.com/shrublabs/shrub-fund/internal/db/memdb"
	"github.com/shrublabs/shrub-fund/internal/db/model"
	"github.com/shrublabs/shrub-fund/internal/utils/clock"
	"github.com/shrublabs/shrub-fund/tests/mocks"
	"github.com/shrublabs/shrub-fund/testutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	holdingAccount = "holding"
	cashoutAccount = "cashout"
	feeRecipient   = "gardener"
	shardPayer     = "shard-payer"
	maturity       = 7 * 24 * time.Hour
)

var genesis = time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	svc        *Service
	db         *memdb.Database
	settlement *mocks.SettlementInterface
	grower     *mocks.Grower
	publisher  *mocks.EventPublisher
	clock      *clock.Manual
	cfg        *config.Config
	authority  string
}

func testConfig(authority string) *config.Config {
	return &config.Config{
		Fund: config.FundConfig{
			AuthorityKey:    authority,
			SettlementDenom: "usdc",
			HoldingAccount:  holdingAccount,
			CashoutAccount:  cashoutAccount,
			FeeRecipient:    feeRecipient,
			MaturityPeriod:  maturity,
			CommissionBps:   200,
		},
		Registry:   config.DefaultRegistryConfig(),
		Cashout:    config.DefaultCashoutConfig(),
		NavHistory: config.DefaultNavHistoryConfig(),
		Poller: config.PollerConfig{
			StatsPollingInterval: time.Minute,
			CommissionSchedule:   "0 0 0 1 * *",
		},
	}
}

// newTestEnv wires a Service over memdb. Storage growth and event publishing
// always succeed; transfers have no expectation until a test sets one.
func newTestEnv(t *testing.T, opts ...func(cfg *config.Config)) *testEnv {
	t.Helper()

	authority := testutil.RandomOwner()
	cfg := testConfig(authority)
	for _, opt := range opts {
		opt(cfg)
	}

	store := memdb.New()
	settlement := mocks.NewSettlementInterface(t)
	grower := mocks.NewGrower(t)
	grower.On("Grow", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	publisher := mocks.NewEventPublisher(t)
	publisher.On("Publish", mock.Anything, mock.Anything).Return(nil).Maybe()
	clk := clock.NewManual(genesis)

	return &testEnv{
		svc:        NewService(cfg, store, settlement, grower, publisher, clk),
		db:         store,
		settlement: settlement,
		grower:     grower,
		publisher:  publisher,
		clock:      clk,
		cfg:        cfg,
		authority:  authority,
	}
}

func (e *testEnv) allowTransfers() {
	e.settlement.On("Transfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
}

// initFund creates the fund with initialValue and shard 0.
func (e *testEnv) initFund(t *testing.T, initialValue uint64) {
	t.Helper()
	_, err := e.svc.InitializeFund(t.Context(), e.authority, initialValue)
	require.NoError(t, err)
	_, err = e.svc.InitializeShard(t.Context(), shardPayer, 0)
	require.NoError(t, err)
}

func (e *testEnv) ledger(t *testing.T) *model.FundLedgerDocument {
	t.Helper()
	ledger, err := e.db.GetFundLedger(t.Context())
	require.NoError(t, err)
	return ledger
}

func (e *testEnv) updateLedger(t *testing.T, fn func(l *model.FundLedgerDocument)) {
	t.Helper()
	ledger := e.ledger(t)
	fn(ledger)
	require.NoError(t, e.db.SaveFundLedger(t.Context(), ledger))
}

func (e *testEnv) userShare(t *testing.T, owner string) *model.UserShareDocument {
	t.Helper()
	record, err := e.db.GetUserShare(t.Context(), owner)
	require.NoError(t, err)
	return record
}

func (e *testEnv) stake(t *testing.T, owner string, amount uint64) *StakeResult {
	t.Helper()
	res, err := e.svc.Stake(t.Context(), StakeRequest{Depositor: owner, Amount: amount})
	require.NoError(t, err)
	return res
}

// markToReal aligns the smoothed valuation with the real one, so shares are
// priced the same on both sides.
func (e *testEnv) markToReal(t *testing.T) {
	t.Helper()
	e.updateLedger(t, func(l *model.FundLedgerDocument) {
		l.SmoothedValuation = l.RealValuation
	})
}
