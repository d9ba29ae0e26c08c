package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shrublabs/shrub-fund/internal/db"
	"github.com/shrublabs/shrub-fund/internal/observability/metrics"
	"github.com/shrublabs/shrub-fund/internal/utils/poller"
)

// NewStatsPoller returns a poller exporting the fund ledger as gauges. Start
// it in its own goroutine.
func (s *Service) NewStatsPoller() *poller.Poller {
	return poller.NewPoller(
		"stats",
		s.cfg.Poller.StatsPollingInterval,
		metrics.RecordPollerDuration("stats", s.calculateAndUpdateStats),
	)
}

// calculateAndUpdateStats refreshes the fund gauges and reports drift between
// the cached pending cashout total and the queue. It never writes; the next
// valuation update resynchronizes the ledger.
func (s *Service) calculateAndUpdateStats(ctx context.Context) error {
	log := log.Ctx(ctx)

	ledger, err := s.db.GetFundLedger(ctx)
	if err != nil {
		if db.IsNotFoundError(err) {
			log.Debug().Msg("Fund not initialized - skipping stats update")
			return nil
		}
		return fmt.Errorf("failed to get fund ledger: %w", err)
	}

	dir, err := s.registry.Directory(ctx)
	if err != nil {
		return err
	}

	queueTotal, err := s.cashout.Total(ctx)
	if err != nil {
		return err
	}
	if queueTotal != ledger.PendingCashoutTotal {
		metrics.IncPendingCashoutDrift()
		log.Warn().
			Uint64("cached_total", ledger.PendingCashoutTotal).
			Uint64("queue_total", queueTotal).
			Msg("pending cashout total drifted from the queue")
	}

	metrics.RecordFundSnapshot(metrics.FundSnapshot{
		TotalShares:         ledger.TotalShares,
		SmoothedValuation:   ledger.SmoothedValuation,
		RealValuation:       ledger.RealValuation,
		TotalUsers:          ledger.TotalUsers,
		PendingCashoutTotal: ledger.PendingCashoutTotal,
		RegistryShards:      dir.TotalShards,
		ActiveUsers:         dir.ActiveUsers,
	})

	log.Debug().
		Uint64("total_shares", ledger.TotalShares).
		Uint64("total_users", ledger.TotalUsers).
		Uint64("pending_cashout_total", ledger.PendingCashoutTotal).
		Msg("Updated fund stats")
	return nil
}
