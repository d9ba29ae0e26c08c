package services

import (
	"errors"
	"testing"

	"github.com/shrublabs/shrub-fund/internal/config"
	"github.com/shrublabs/shrub-fund/internal/db/model"
	"github.com/shrublabs/shrub-fund/internal/queue"
	"github.com/shrublabs/shrub-fund/internal/types"
	"github.com/shrublabs/shrub-fund/internal/valuation"
	"github.com/shrublabs/shrub-fund/tests/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestStake(t *testing.T) {
	t.Run("zero deposit", func(t *testing.T) {
		env := newTestEnv(t)
		env.initFund(t, 0)

		_, err := env.svc.Stake(t.Context(), StakeRequest{Depositor: "alice", Amount: 0})
		require.ErrorIs(t, err, types.ErrInsufficientAmount)
	})
	t.Run("first stake mints at unit price", func(t *testing.T) {
		env := newTestEnv(t)
		env.initFund(t, 0)
		env.allowTransfers()

		res := env.stake(t, "alice", 2_500_000)
		assert.Equal(t, uint64(2_500_000), res.Shares)
		assert.True(t, res.FirstStake)
		assert.Equal(t, uint64(0), res.ShardID)
		assert.Equal(t, uint64(0), res.SlotIndex)
		env.settlement.AssertCalled(t, "Transfer", mock.Anything, "alice", holdingAccount, uint64(2_500_000))

		ledger := env.ledger(t)
		assert.Equal(t, uint64(2_500_000), ledger.TotalShares)
		assert.Equal(t, uint64(2_500_000), ledger.RealValuation)
		assert.Equal(t, uint64(1), ledger.TotalUsers)

		record := env.userShare(t, "alice")
		assert.Equal(t, uint64(2_500_000), record.Shares)
		assert.True(t, record.Registered)
		assert.Equal(t, genesis.Unix(), record.StakeTimestamp)

		slot, err := env.db.GetRegistrySlot(t.Context(), 0, 0)
		require.NoError(t, err)
		assert.Equal(t, &model.UserInfo{Owner: "alice", Shares: 2_500_000, StakeTimestamp: genesis.Unix()}, slot.User)
	})
	t.Run("repeat stake keeps the slot", func(t *testing.T) {
		env := newTestEnv(t)
		env.initFund(t, 0)
		env.allowTransfers()

		env.stake(t, "alice", 1_000_000)
		env.clock.Advance(maturity)
		res := env.stake(t, "alice", 1_000_000)
		assert.False(t, res.FirstStake)
		assert.Equal(t, uint64(2_000_000), res.TotalShares)

		ledger := env.ledger(t)
		assert.Equal(t, uint64(1), ledger.TotalUsers)
		assert.Equal(t, uint64(2_000_000), ledger.TotalShares)

		slot, err := env.db.GetRegistrySlot(t.Context(), 0, 0)
		require.NoError(t, err)
		assert.Equal(t, uint64(2_000_000), slot.User.Shares)
		assert.Equal(t, genesis.Add(maturity).Unix(), slot.User.StakeTimestamp)

		shard, err := env.db.GetRegistryShard(t.Context(), 0)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), shard.UserCount)
		assert.Equal(t, uint64(1), shard.SlotCount)
	})
	t.Run("priced at real valuation", func(t *testing.T) {
		env := newTestEnv(t)
		env.initFund(t, 0)
		env.allowTransfers()

		env.stake(t, "alice", 1_000_000)
		// smoothed price 0.8, real price 1.2
		env.updateLedger(t, func(l *model.FundLedgerDocument) {
			l.SmoothedValuation = 800_000
			l.RealValuation = 1_200_000
		})

		res := env.stake(t, "bob", 600_000)
		assert.Equal(t, uint64(500_000), res.Shares)

		naive := 600_000 * valuation.Precision / 800_000
		assert.Less(t, res.Shares, naive)
		assert.Equal(t, uint64(1_800_000), env.ledger(t).RealValuation)
		assert.Equal(t, uint64(800_000), env.ledger(t).SmoothedValuation)
	})
	t.Run("dust deposit", func(t *testing.T) {
		env := newTestEnv(t)
		env.initFund(t, 0)
		env.allowTransfers()

		env.stake(t, "alice", 1)
		env.updateLedger(t, func(l *model.FundLedgerDocument) {
			l.RealValuation = 10
		})

		_, err := env.svc.Stake(t.Context(), StakeRequest{Depositor: "bob", Amount: 1})
		require.ErrorIs(t, err, types.ErrInsufficientAmount)
	})
	t.Run("transfer failure leaves no trace", func(t *testing.T) {
		env := newTestEnv(t)
		env.initFund(t, 0)
		env.settlement.On("Transfer", mock.Anything, "alice", holdingAccount, uint64(1_000)).
			Return(errors.New("insufficient balance")).Once()

		_, err := env.svc.Stake(t.Context(), StakeRequest{Depositor: "alice", Amount: 1_000})
		require.Error(t, err)

		ledger := env.ledger(t)
		assert.Zero(t, ledger.TotalShares)
		assert.Zero(t, ledger.RealValuation)
		assert.Zero(t, ledger.TotalUsers)

		_, err = env.db.GetUserShare(t.Context(), "alice")
		require.Error(t, err)
		_, err = env.db.GetRegistrySlot(t.Context(), 0, 0)
		require.Error(t, err)

		dir, err := env.db.GetRegistryDirectory(t.Context())
		require.NoError(t, err)
		assert.Zero(t, dir.ActiveUsers)
	})
	t.Run("no shard", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.InitializeFund(t.Context(), env.authority, 0)
		require.NoError(t, err)

		_, err = env.svc.Stake(t.Context(), StakeRequest{Depositor: "alice", Amount: 1_000})
		require.ErrorIs(t, err, types.ErrRegistryFull)
	})
	t.Run("explicit shard", func(t *testing.T) {
		env := newTestEnv(t)
		env.initFund(t, 0)
		env.allowTransfers()

		_, err := env.svc.InitializeShard(t.Context(), shardPayer, 1)
		require.NoError(t, err)

		shardID := uint64(1)
		res, err := env.svc.Stake(t.Context(), StakeRequest{Depositor: "alice", Amount: 1_000, ShardID: &shardID})
		require.NoError(t, err)
		assert.Equal(t, uint64(1), res.ShardID)

		missing := uint64(7)
		_, err = env.svc.Stake(t.Context(), StakeRequest{Depositor: "bob", Amount: 1_000, ShardID: &missing})
		require.ErrorIs(t, err, types.ErrInvalidRegistryIndex)
	})
	t.Run("full shard", func(t *testing.T) {
		env := newTestEnv(t, func(cfg *config.Config) {
			cfg.Registry.MaxShardUsers = 1
		})
		env.initFund(t, 0)
		env.allowTransfers()

		env.stake(t, "alice", 1_000)
		before := env.ledger(t)

		_, err := env.svc.Stake(t.Context(), StakeRequest{Depositor: "bob", Amount: 1_000})
		require.ErrorIs(t, err, types.ErrRegistryFull)
		assert.Equal(t, before, env.ledger(t))
		env.settlement.AssertNotCalled(t, "Transfer", mock.Anything, "bob", mock.Anything, mock.Anything)
	})
	t.Run("publishes event", func(t *testing.T) {
		env := newTestEnv(t)
		publisher := mocks.NewEventPublisher(t)
		env.svc.publisher = publisher
		env.initFund(t, 0)
		env.allowTransfers()

		publisher.On("Publish", mock.Anything, mock.MatchedBy(func(ev *queue.FundEvent) bool {
			return ev.Type == queue.EventStaked &&
				ev.Owner == "alice" &&
				ev.Amount == 1_000 &&
				ev.Shares == 1_000 &&
				ev.TotalShares == 1_000
		})).Return(errors.New("broker down")).Once()

		// a failed publish never fails the stake
		env.stake(t, "alice", 1_000)
		assert.Equal(t, uint64(1_000), env.ledger(t).TotalShares)
	})
}
