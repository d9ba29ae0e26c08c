package services

import (
	"errors"
	"testing"
	"time"

	"github.com/shrublabs/shrub-fund/internal/config"
	"github.com/shrublabs/shrub-fund/internal/db/model"
	"github.com/shrublabs/shrub-fund/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestInitiateUnstake(t *testing.T) {
	t.Run("no shares", func(t *testing.T) {
		env := newTestEnv(t)
		env.initFund(t, 0)

		_, err := env.svc.InitiateUnstake(t.Context(), "alice")
		require.ErrorIs(t, err, types.ErrNoShares)
	})
	t.Run("locks the smoothed value", func(t *testing.T) {
		env := newTestEnv(t)
		env.initFund(t, 0)
		env.allowTransfers()

		env.stake(t, "alice", 1_000_000)
		env.stake(t, "bob", 3_000_000)
		// smoothed price 1.5, real price 2
		env.updateLedger(t, func(l *model.FundLedgerDocument) {
			l.SmoothedValuation = 6_000_000
			l.RealValuation = 8_000_000
		})

		res, err := env.svc.InitiateUnstake(t.Context(), "alice")
		require.NoError(t, err)
		assert.Equal(t, uint64(1_000_000), res.LockedShares)
		assert.Equal(t, uint64(1_500_000), res.LockedAmount)
		assert.Equal(t, genesis, res.LockedAt)
		assert.Equal(t, genesis.Add(maturity), res.MaturesAt)

		ledger := env.ledger(t)
		assert.Equal(t, uint64(3_000_000), ledger.TotalShares)
		assert.Equal(t, uint64(6_500_000), ledger.RealValuation)
		assert.Equal(t, uint64(6_000_000), ledger.SmoothedValuation)
		assert.Equal(t, uint64(1_500_000), ledger.PendingCashoutTotal)
		assert.Equal(t, uint64(2), ledger.TotalUsers)

		lock := &model.WithdrawalLock{LockedAt: genesis.Unix(), LockedShares: 1_000_000, LockedAmount: 1_500_000}
		record := env.userShare(t, "alice")
		assert.Zero(t, record.Shares)
		assert.Equal(t, lock, record.Withdrawal)
		assert.Equal(t, types.StateWithdrawalLocked, record.State())

		slot, err := env.db.GetRegistrySlot(t.Context(), record.ShardID, record.SlotIndex)
		require.NoError(t, err)
		assert.Equal(t, lock, slot.User.Withdrawal)
		assert.Zero(t, slot.User.Shares)

		entry, err := env.db.GetPendingCashout(t.Context(), "alice")
		require.NoError(t, err)
		assert.Equal(t, uint64(1_500_000), entry.LockedAmount)
	})
	t.Run("already pending", func(t *testing.T) {
		env := newTestEnv(t)
		env.initFund(t, 0)
		env.allowTransfers()

		env.stake(t, "alice", 1_000_000)
		env.markToReal(t)

		_, err := env.svc.InitiateUnstake(t.Context(), "alice")
		require.NoError(t, err)
		_, err = env.svc.InitiateUnstake(t.Context(), "alice")
		require.ErrorIs(t, err, types.ErrUnstakeAlreadyPending)

		_, err = env.svc.Stake(t.Context(), StakeRequest{Depositor: "alice", Amount: 1_000})
		require.ErrorIs(t, err, types.ErrUnstakeAlreadyPending)
	})
	t.Run("worthless shares", func(t *testing.T) {
		env := newTestEnv(t)
		env.initFund(t, 0)
		env.allowTransfers()

		// stake leaves the smoothed valuation at zero
		env.stake(t, "alice", 1_000_000)

		_, err := env.svc.InitiateUnstake(t.Context(), "alice")
		require.ErrorIs(t, err, types.ErrInsufficientFundValue)
		assert.Equal(t, uint64(1_000_000), env.userShare(t, "alice").Shares)
	})
	t.Run("grows a full queue", func(t *testing.T) {
		env := newTestEnv(t, func(cfg *config.Config) {
			cfg.Cashout.InitialCapacity = 1
		})
		env.initFund(t, 0)
		env.allowTransfers()

		env.stake(t, "alice", 1_000)
		env.stake(t, "bob", 1_000)
		env.markToReal(t)

		_, err := env.svc.InitiateUnstake(t.Context(), "alice")
		require.NoError(t, err)
		_, err = env.svc.InitiateUnstake(t.Context(), "bob")
		require.NoError(t, err)

		meta, err := env.db.GetCashoutQueue(t.Context())
		require.NoError(t, err)
		assert.Equal(t, uint64(2), meta.Capacity)
		env.grower.AssertCalled(t, "Grow", mock.Anything, model.CashoutQueueStorageHandle, 2*env.cfg.Cashout.EntrySizeBytes, "bob")
	})
}

func TestCompleteUnstake(t *testing.T) {
	lockAlice := func(t *testing.T, env *testEnv) {
		env.stake(t, "alice", 1_000_000)
		env.stake(t, "bob", 1_000_000)
		env.markToReal(t)
		_, err := env.svc.InitiateUnstake(t.Context(), "alice")
		require.NoError(t, err)
	}

	t.Run("nothing pending", func(t *testing.T) {
		env := newTestEnv(t)
		env.initFund(t, 0)
		env.allowTransfers()

		_, err := env.svc.CompleteUnstake(t.Context(), "alice")
		require.ErrorIs(t, err, types.ErrNoUnstakePending)

		env.stake(t, "alice", 1_000)
		_, err = env.svc.CompleteUnstake(t.Context(), "alice")
		require.ErrorIs(t, err, types.ErrNoUnstakePending)
	})
	t.Run("maturity gate", func(t *testing.T) {
		env := newTestEnv(t)
		env.initFund(t, 0)
		env.allowTransfers()
		lockAlice(t, env)

		env.clock.Advance(maturity - time.Second)
		_, err := env.svc.CompleteUnstake(t.Context(), "alice")
		require.ErrorIs(t, err, types.ErrUnstakeNotReady)
		env.settlement.AssertNotCalled(t, "Transfer", mock.Anything, cashoutAccount, "alice", mock.Anything)

		env.clock.Advance(time.Second)
		res, err := env.svc.CompleteUnstake(t.Context(), "alice")
		require.NoError(t, err)
		assert.Equal(t, uint64(1_000_000), res.LockedAmount)
		env.settlement.AssertCalled(t, "Transfer", mock.Anything, cashoutAccount, "alice", uint64(1_000_000))

		ledger := env.ledger(t)
		assert.Zero(t, ledger.PendingCashoutTotal)
		assert.Equal(t, uint64(1), ledger.TotalUsers)
		assert.Equal(t, uint64(1_000_000), ledger.TotalShares)

		record := env.userShare(t, "alice")
		assert.True(t, record.IsEmpty())

		slot, err := env.db.GetRegistrySlot(t.Context(), 0, 0)
		require.NoError(t, err)
		assert.True(t, slot.IsEmpty())

		_, err = env.db.GetPendingCashout(t.Context(), "alice")
		require.Error(t, err)

		_, err = env.svc.CompleteUnstake(t.Context(), "alice")
		require.ErrorIs(t, err, types.ErrNoUnstakePending)
	})
	t.Run("pays the locked amount", func(t *testing.T) {
		env := newTestEnv(t)
		env.initFund(t, 0)
		env.allowTransfers()
		lockAlice(t, env)

		env.clock.Advance(3 * time.Hour)
		_, err := env.svc.UpdateValuation(t.Context(), env.authority, 9_000_000)
		require.NoError(t, err)
		env.clock.Advance(maturity)
		_, err = env.svc.UpdateValuation(t.Context(), env.authority, 100)
		require.NoError(t, err)

		res, err := env.svc.CompleteUnstake(t.Context(), "alice")
		require.NoError(t, err)
		assert.Equal(t, uint64(1_000_000), res.LockedAmount)
		env.settlement.AssertCalled(t, "Transfer", mock.Anything, cashoutAccount, "alice", uint64(1_000_000))
	})
	t.Run("payout failure keeps the lock", func(t *testing.T) {
		env := newTestEnv(t)
		env.initFund(t, 0)
		env.settlement.On("Transfer", mock.Anything, cashoutAccount, "alice", uint64(1_000_000)).
			Return(errors.New("cashout account empty")).Once()
		env.allowTransfers()
		lockAlice(t, env)

		env.clock.Advance(maturity)
		before := env.ledger(t)
		_, err := env.svc.CompleteUnstake(t.Context(), "alice")
		require.Error(t, err)

		assert.Equal(t, before, env.ledger(t))
		assert.True(t, env.userShare(t, "alice").UnstakeInitiated())
		_, err = env.db.GetPendingCashout(t.Context(), "alice")
		require.NoError(t, err)

		// retry succeeds once the cashout account is funded
		res, err := env.svc.CompleteUnstake(t.Context(), "alice")
		require.NoError(t, err)
		assert.Equal(t, uint64(1_000_000), res.LockedAmount)
	})
	t.Run("restake after completion", func(t *testing.T) {
		env := newTestEnv(t)
		env.initFund(t, 0)
		env.allowTransfers()
		lockAlice(t, env)

		env.clock.Advance(maturity)
		_, err := env.svc.CompleteUnstake(t.Context(), "alice")
		require.NoError(t, err)

		res := env.stake(t, "alice", 500_000)
		assert.True(t, res.FirstStake)
		assert.Equal(t, uint64(0), res.SlotIndex)
		assert.Equal(t, uint64(2), env.ledger(t).TotalUsers)
	})
}

func TestSlotReuse(t *testing.T) {
	env := newTestEnv(t)
	env.initFund(t, 0)
	env.allowTransfers()

	assert.Equal(t, uint64(0), env.stake(t, "alice", 1_000).SlotIndex)
	assert.Equal(t, uint64(1), env.stake(t, "bob", 1_000).SlotIndex)
	env.markToReal(t)

	_, err := env.svc.InitiateUnstake(t.Context(), "alice")
	require.NoError(t, err)
	env.clock.Advance(maturity)
	_, err = env.svc.CompleteUnstake(t.Context(), "alice")
	require.NoError(t, err)

	assert.Equal(t, uint64(0), env.stake(t, "carol", 1_000).SlotIndex)
	assert.Equal(t, uint64(2), env.stake(t, "dave", 1_000).SlotIndex)

	shard, err := env.db.GetRegistryShard(t.Context(), 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), shard.SlotCount)
	assert.Equal(t, uint64(3), shard.UserCount)

	slotSize := env.cfg.Registry.SlotSizeBytes
	header := env.cfg.Registry.ShardHeaderBytes
	env.grower.AssertNotCalled(t, "Grow", mock.Anything, "registry-shard-0", header+4*slotSize, mock.Anything)
	env.grower.AssertCalled(t, "Grow", mock.Anything, "registry-shard-0", header+3*slotSize, "dave")
}
