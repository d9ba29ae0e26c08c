package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shrublabs/shrub-fund/internal/db/model"
	"github.com/shrublabs/shrub-fund/internal/observability/metrics"
	"github.com/shrublabs/shrub-fund/internal/queue"
	"github.com/shrublabs/shrub-fund/internal/types"
)

type ValuationResult struct {
	RealValuation       uint64
	SmoothedValuation   uint64
	HistoryAverage      uint64
	HistoryLen          int
	PendingCashoutTotal uint64
	// Drift is set when the cached pending cashout total disagreed with the
	// queue and was overwritten.
	Drift bool
}

// UpdateValuation marks the pool to newValue. Losses reach the smoothed
// valuation at once; gains reach it through the nav history average.
func (s *Service) UpdateValuation(ctx context.Context, signer string, newValue uint64) (*ValuationResult, error) {
	if err := s.verifier.RequireAuthority(signer); err != nil {
		return nil, err
	}

	var (
		result ValuationResult
		ledger *model.FundLedgerDocument
	)
	err := s.execute(ctx, "update_valuation", func(ctx context.Context) error {
		var err error
		ledger, err = s.getLedger(ctx)
		if err != nil {
			return err
		}

		history, err := s.getNavHistory(ctx)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		if interval := s.cfg.Fund.MinUpdateInterval; interval > 0 {
			if last, ok := history.Last(); ok {
				next := time.Unix(last.Timestamp, 0).Add(interval)
				if now.Before(next) {
					return types.ErrUpdateTooFrequent.Wrapf("next update allowed at %s", next.UTC().Format(time.RFC3339))
				}
			}
		}

		s.navHistory.Record(history, newValue, now)
		average, err := s.navHistory.Average(history)
		if err != nil {
			return err
		}

		smoothed := average
		if newValue < ledger.SmoothedValuation {
			smoothed = newValue
		}

		queueTotal, err := s.cashout.Total(ctx)
		if err != nil {
			return err
		}
		drift := queueTotal != ledger.PendingCashoutTotal
		if drift {
			metrics.IncPendingCashoutDrift()
			log.Ctx(ctx).Warn().
				Uint64("cached_total", ledger.PendingCashoutTotal).
				Uint64("queue_total", queueTotal).
				Msg("pending cashout total drifted from the queue, resynchronizing")
		}

		ledger.RealValuation = newValue
		ledger.SmoothedValuation = smoothed
		ledger.PendingCashoutTotal = queueTotal

		if err := s.db.SaveNavHistory(ctx, history); err != nil {
			return types.NewInternalServiceError(fmt.Errorf("failed to save nav history: %w", err))
		}
		if err := s.db.SaveFundLedger(ctx, ledger); err != nil {
			return types.NewInternalServiceError(fmt.Errorf("failed to save fund ledger: %w", err))
		}

		result = ValuationResult{
			RealValuation:       newValue,
			SmoothedValuation:   smoothed,
			HistoryAverage:      average,
			HistoryLen:          len(history.Entries),
			PendingCashoutTotal: queueTotal,
			Drift:               drift,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger := log.Ctx(ctx)
	logger.Info().
		Uint64("real_valuation", result.RealValuation).
		Uint64("smoothed_valuation", result.SmoothedValuation).
		Uint64("history_average", result.HistoryAverage).
		Int("history_len", result.HistoryLen).
		Msg("valuation updated")
	if result.PendingCashoutTotal > 0 {
		logger.Warn().
			Uint64("pending_cashout_total", result.PendingCashoutTotal).
			Msg("cashout funding needed")
	}

	s.emit(ctx, queue.NewFundEvent(queue.EventValuationUpdated, s.clock.Now()), ledger)
	return &result, nil
}
