package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shrublabs/shrub-fund/internal/db/model"
	"github.com/shrublabs/shrub-fund/internal/queue"
	"github.com/shrublabs/shrub-fund/internal/types"
	"github.com/shrublabs/shrub-fund/internal/utils"
)

type UnstakeResult struct {
	Owner        string
	LockedShares uint64
	LockedAmount uint64
	LockedAt     time.Time
	MaturesAt    time.Time
}

// InitiateUnstake freezes the payout of every share owner holds at the
// smoothed price and takes the shares and their value out of the pool. The
// shares move into the withdrawal lock.
func (s *Service) InitiateUnstake(ctx context.Context, owner string) (*UnstakeResult, error) {
	var (
		result UnstakeResult
		ledger *model.FundLedgerDocument
	)
	err := s.execute(ctx, "initiate_unstake", func(ctx context.Context) error {
		var err error
		ledger, err = s.getLedger(ctx)
		if err != nil {
			return err
		}

		record, err := s.getUserShare(ctx, owner)
		if err != nil {
			return err
		}
		if record.UnstakeInitiated() {
			return types.ErrUnstakeAlreadyPending.Wrapf("withdrawal of %s is already locked", owner)
		}
		if record.Shares == 0 || !record.Registered {
			return types.ErrNoShares.Wrapf("%s holds no shares", owner)
		}

		info, err := s.registry.GetUser(ctx, record.ShardID, record.SlotIndex)
		if err != nil {
			return err
		}
		if info.Owner != owner || info.Shares != record.Shares {
			return types.ErrUserNotInRegistry.Wrapf("registry entry of %s is out of sync", owner)
		}
		if info.Withdrawal != nil {
			return types.ErrUnstakeAlreadyPending.Wrapf("withdrawal of %s is already locked", owner)
		}

		shares := record.Shares
		amount, err := ledger.Pool().ValueForShares(shares)
		if err != nil {
			return err
		}
		if amount == 0 {
			return types.ErrInsufficientFundValue.Wrapf("%d shares are worth nothing at the smoothed price", shares)
		}

		totalShares, err := utils.SubUint64(ledger.TotalShares, shares)
		if err != nil {
			return err
		}
		realValuation, err := utils.SubUint64(ledger.RealValuation, amount)
		if err != nil {
			return types.ErrInsufficientFundValue.Wrapf("locked amount %d exceeds real valuation %d", amount, ledger.RealValuation)
		}
		pendingTotal, err := utils.AddUint64(ledger.PendingCashoutTotal, amount)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		lock := &model.WithdrawalLock{
			LockedAt:     now.Unix(),
			LockedShares: shares,
			LockedAmount: amount,
		}

		info.Shares = 0
		info.Withdrawal = lock
		if err := s.registry.UpdateUser(ctx, record.ShardID, record.SlotIndex, info); err != nil {
			return err
		}
		if err := s.cashout.Enqueue(ctx, owner, amount, now, owner); err != nil {
			return err
		}

		record.Shares = 0
		record.Withdrawal = lock
		ledger.TotalShares = totalShares
		ledger.RealValuation = realValuation
		ledger.PendingCashoutTotal = pendingTotal

		if err := s.db.SaveUserShare(ctx, record); err != nil {
			return types.NewInternalServiceError(fmt.Errorf("failed to save user share: %w", err))
		}
		if err := s.db.SaveFundLedger(ctx, ledger); err != nil {
			return types.NewInternalServiceError(fmt.Errorf("failed to save fund ledger: %w", err))
		}

		result = UnstakeResult{
			Owner:        owner,
			LockedShares: shares,
			LockedAmount: amount,
			LockedAt:     time.Unix(lock.LockedAt, 0).UTC(),
			MaturesAt:    time.Unix(lock.LockedAt, 0).UTC().Add(s.cfg.Fund.MaturityPeriod),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Ctx(ctx).Info().
		Str("owner", owner).
		Uint64("locked_shares", result.LockedShares).
		Uint64("locked_amount", result.LockedAmount).
		Time("matures_at", result.MaturesAt).
		Msg("unstake initiated")

	ev := queue.NewFundEvent(queue.EventUnstakeInitiated, result.LockedAt)
	ev.Owner = owner
	ev.Shares = result.LockedShares
	ev.Amount = result.LockedAmount
	s.emit(ctx, ev, ledger)

	return &result, nil
}

// CompleteUnstake pays out the locked amount once the maturity period has
// elapsed, frees the registry slot and resets the user record.
func (s *Service) CompleteUnstake(ctx context.Context, owner string) (*UnstakeResult, error) {
	var (
		result UnstakeResult
		ledger *model.FundLedgerDocument
	)
	err := s.execute(ctx, "complete_unstake", func(ctx context.Context) error {
		var err error
		ledger, err = s.getLedger(ctx)
		if err != nil {
			return err
		}

		record, err := s.getUserShare(ctx, owner)
		if err != nil {
			return err
		}
		if !record.UnstakeInitiated() {
			return types.ErrNoUnstakePending.Wrapf("%s has no locked withdrawal", owner)
		}

		info, err := s.registry.GetUser(ctx, record.ShardID, record.SlotIndex)
		if err != nil {
			return err
		}
		if info.Owner != owner {
			return types.ErrUserNotInRegistry.Wrapf("registry entry of %s is out of sync", owner)
		}
		// the shard copy is authoritative for the lock
		lock := info.Withdrawal
		if lock == nil {
			return types.ErrNoUnstakePending.Wrapf("%s has no locked withdrawal", owner)
		}

		lockedAt := time.Unix(lock.LockedAt, 0).UTC()
		maturesAt := lockedAt.Add(s.cfg.Fund.MaturityPeriod)
		if s.clock.Now().Before(maturesAt) {
			return types.ErrUnstakeNotReady.Wrapf("withdrawal of %s matures at %s", owner, maturesAt.Format(time.RFC3339))
		}

		amount := lock.LockedAmount
		if amount == 0 {
			return types.ErrInsufficientFundValue.Wrapf("locked amount of %s is zero", owner)
		}

		pendingTotal, err := utils.SubUint64(ledger.PendingCashoutTotal, amount)
		if err != nil {
			return err
		}
		totalUsers, err := utils.SubUint64(ledger.TotalUsers, 1)
		if err != nil {
			return err
		}

		entry, err := s.cashout.Dequeue(ctx, owner)
		if err != nil {
			return err
		}
		if entry.LockedAmount != amount {
			log.Ctx(ctx).Warn().
				Str("owner", owner).
				Uint64("queued_amount", entry.LockedAmount).
				Uint64("locked_amount", amount).
				Msg("queued cashout differs from the registry lock, paying the lock")
		}

		if err := s.registry.RemoveUser(ctx, record.ShardID, record.SlotIndex); err != nil {
			return err
		}

		record.Reset()
		ledger.PendingCashoutTotal = pendingTotal
		ledger.TotalUsers = totalUsers

		if err := s.db.SaveUserShare(ctx, record); err != nil {
			return types.NewInternalServiceError(fmt.Errorf("failed to save user share: %w", err))
		}
		if err := s.db.SaveFundLedger(ctx, ledger); err != nil {
			return types.NewInternalServiceError(fmt.Errorf("failed to save fund ledger: %w", err))
		}

		if err := s.transfer(ctx, s.cfg.Fund.CashoutAccount, owner, amount); err != nil {
			return types.NewInternalServiceError(fmt.Errorf("failed to pay out withdrawal: %w", err))
		}

		result = UnstakeResult{
			Owner:        owner,
			LockedShares: lock.LockedShares,
			LockedAmount: amount,
			LockedAt:     lockedAt,
			MaturesAt:    maturesAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Ctx(ctx).Info().
		Str("owner", owner).
		Uint64("amount", result.LockedAmount).
		Msg("unstake completed")

	ev := queue.NewFundEvent(queue.EventUnstakeCompleted, s.clock.Now())
	ev.Owner = owner
	ev.Shares = result.LockedShares
	ev.Amount = result.LockedAmount
	s.emit(ctx, ev, ledger)

	return &result, nil
}
