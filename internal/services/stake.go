package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shrublabs/shrub-fund/internal/db/model"
	"github.com/shrublabs/shrub-fund/internal/queue"
	"github.com/shrublabs/shrub-fund/internal/types"
	"github.com/shrublabs/shrub-fund/internal/utils"
)

type StakeRequest struct {
	Depositor string
	Amount    uint64
	// ShardID places a first-time staker in a specific shard. When nil the
	// lowest shard with spare population is used.
	ShardID *uint64
}

type StakeResult struct {
	Shares         uint64
	TotalShares    uint64
	ShardID        uint64
	SlotIndex      uint64
	FirstStake     bool
	RealPrice      uint64
	OptimizedPrice uint64
}

// Stake mints shares for a deposit priced at the real valuation and pulls
// the deposit into the holding account.
func (s *Service) Stake(ctx context.Context, req StakeRequest) (*StakeResult, error) {
	if req.Amount == 0 {
		return nil, types.ErrInsufficientAmount.Wrapf("deposit must be positive")
	}

	var (
		result StakeResult
		ledger *model.FundLedgerDocument
	)
	err := s.execute(ctx, "stake", func(ctx context.Context) error {
		var err error
		ledger, err = s.getLedger(ctx)
		if err != nil {
			return err
		}

		shares, err := ledger.Pool().SharesForDeposit(req.Amount)
		if err != nil {
			return err
		}

		record, err := s.getUserShare(ctx, req.Depositor)
		if err != nil {
			return err
		}
		if record.UnstakeInitiated() {
			return types.ErrUnstakeAlreadyPending.Wrapf("%s has a withdrawal in progress", req.Depositor)
		}

		totalShares, err := utils.AddUint64(ledger.TotalShares, shares)
		if err != nil {
			return err
		}
		realValuation, err := utils.AddUint64(ledger.RealValuation, req.Amount)
		if err != nil {
			return err
		}
		userShares, err := utils.AddUint64(record.Shares, shares)
		if err != nil {
			return err
		}
		totalUsers := ledger.TotalUsers
		firstStake := !record.Registered
		if firstStake {
			if totalUsers, err = utils.AddUint64(totalUsers, 1); err != nil {
				return err
			}
		}

		now := s.clock.Now().Unix()
		info := &model.UserInfo{
			Owner:          req.Depositor,
			Shares:         userShares,
			StakeTimestamp: now,
		}
		if firstStake {
			shardID, err := s.selectShard(ctx, req.ShardID)
			if err != nil {
				return err
			}
			slotIndex, err := s.registry.AddUser(ctx, shardID, info, req.Depositor)
			if err != nil {
				return err
			}
			record.Registered = true
			record.ShardID = shardID
			record.SlotIndex = slotIndex
		} else if err := s.registry.UpdateUser(ctx, record.ShardID, record.SlotIndex, info); err != nil {
			return err
		}

		record.Shares = userShares
		record.StakeTimestamp = now
		ledger.TotalShares = totalShares
		ledger.RealValuation = realValuation
		ledger.TotalUsers = totalUsers

		realPrice, err := ledger.Pool().RealPrice()
		if err != nil {
			return err
		}
		optimizedPrice, err := ledger.Pool().OptimizedPrice()
		if err != nil {
			return err
		}

		if err := s.db.SaveUserShare(ctx, record); err != nil {
			return types.NewInternalServiceError(fmt.Errorf("failed to save user share: %w", err))
		}
		if err := s.db.SaveFundLedger(ctx, ledger); err != nil {
			return types.NewInternalServiceError(fmt.Errorf("failed to save fund ledger: %w", err))
		}

		if err := s.transfer(ctx, req.Depositor, s.cfg.Fund.HoldingAccount, req.Amount); err != nil {
			return types.NewInternalServiceError(fmt.Errorf("failed to transfer deposit: %w", err))
		}
		refundOnFailure(ctx, s.cfg.Fund.HoldingAccount, req.Depositor, req.Amount)

		result = StakeResult{
			Shares:         shares,
			TotalShares:    userShares,
			ShardID:        record.ShardID,
			SlotIndex:      record.SlotIndex,
			FirstStake:     firstStake,
			RealPrice:      realPrice,
			OptimizedPrice: optimizedPrice,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Ctx(ctx).Info().
		Str("depositor", req.Depositor).
		Uint64("amount", req.Amount).
		Uint64("shares", result.Shares).
		Uint64("real_price", result.RealPrice).
		Uint64("optimized_price", result.OptimizedPrice).
		Msg("stake completed")

	ev := queue.NewFundEvent(queue.EventStaked, s.clock.Now())
	ev.Owner = req.Depositor
	ev.Shares = result.Shares
	ev.Amount = req.Amount
	s.emit(ctx, ev, ledger)

	return &result, nil
}

func (s *Service) selectShard(ctx context.Context, requested *uint64) (uint64, error) {
	if requested != nil {
		return *requested, nil
	}
	return s.registry.SelectShard(ctx)
}
