package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shrublabs/shrub-fund/internal/db/model"
	"github.com/shrublabs/shrub-fund/internal/queue"
	"github.com/shrublabs/shrub-fund/internal/types"
	"github.com/shrublabs/shrub-fund/internal/utils"
	"github.com/shrublabs/shrub-fund/internal/valuation"
)

type CommissionResult struct {
	Profit               uint64
	Fee                  uint64
	RealPriceBefore      uint64
	RealPriceAfter       uint64
	OptimizedPriceBefore uint64
	OptimizedPriceAfter  uint64
}

// Collected reports whether a fee was taken.
func (r *CommissionResult) Collected() bool {
	return r.Fee > 0
}

// CollectCommission takes the performance fee on the profit of the pool over
// unit-priced capital and pays it to the fee recipient. Without profit, or
// when the fee rounds to zero, it succeeds without side effects.
func (s *Service) CollectCommission(ctx context.Context, signer string) (*CommissionResult, error) {
	if err := s.verifier.RequireAuthority(signer); err != nil {
		return nil, err
	}

	var (
		result CommissionResult
		ledger *model.FundLedgerDocument
	)
	err := s.execute(ctx, "collect_commission", func(ctx context.Context) error {
		var err error
		ledger, err = s.getLedger(ctx)
		if err != nil {
			return err
		}

		if ledger.RealValuation <= ledger.TotalShares {
			return nil
		}
		profit := ledger.RealValuation - ledger.TotalShares
		fee, err := valuation.Fee(profit, s.cfg.Fund.CommissionBps)
		if err != nil {
			return err
		}
		result.Profit = profit
		if fee == 0 {
			return nil
		}

		balance, err := s.settlement.Balance(ctx, s.cfg.Fund.HoldingAccount)
		if err != nil {
			return types.NewInternalServiceError(fmt.Errorf("failed to read holding balance: %w", err))
		}
		if balance < fee {
			return types.ErrInsufficientFunds.Wrapf("holding balance %d is below fee %d", balance, fee)
		}

		pool := ledger.Pool()
		if result.RealPriceBefore, err = pool.RealPrice(); err != nil {
			return err
		}
		if result.OptimizedPriceBefore, err = pool.OptimizedPrice(); err != nil {
			return err
		}

		realValuation, err := utils.SubUint64(ledger.RealValuation, fee)
		if err != nil {
			return err
		}
		smoothedValuation, err := utils.SubUint64(ledger.SmoothedValuation, fee)
		if err != nil {
			return err
		}
		ledger.RealValuation = realValuation
		ledger.SmoothedValuation = smoothedValuation

		pool = ledger.Pool()
		if result.RealPriceAfter, err = pool.RealPrice(); err != nil {
			return err
		}
		if result.OptimizedPriceAfter, err = pool.OptimizedPrice(); err != nil {
			return err
		}

		if err := s.db.SaveFundLedger(ctx, ledger); err != nil {
			return types.NewInternalServiceError(fmt.Errorf("failed to save fund ledger: %w", err))
		}
		if err := s.transfer(ctx, s.cfg.Fund.HoldingAccount, s.cfg.Fund.FeeRecipient, fee); err != nil {
			return types.NewInternalServiceError(fmt.Errorf("failed to transfer commission: %w", err))
		}

		result.Fee = fee
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger := log.Ctx(ctx)
	if !result.Collected() {
		logger.Info().
			Uint64("profit", result.Profit).
			Msg("no commission due")
		return &result, nil
	}

	logger.Info().
		Uint64("profit", result.Profit).
		Uint64("fee", result.Fee).
		Uint64("real_price_before", result.RealPriceBefore).
		Uint64("real_price_after", result.RealPriceAfter).
		Uint64("optimized_price_before", result.OptimizedPriceBefore).
		Uint64("optimized_price_after", result.OptimizedPriceAfter).
		Msg("commission collected")

	ev := queue.NewFundEvent(queue.EventCommissionCollected, s.clock.Now())
	ev.Owner = s.cfg.Fund.FeeRecipient
	ev.Amount = result.Fee
	s.emit(ctx, ev, ledger)

	return &result, nil
}
