package services

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/shrublabs/shrub-fund/internal/db/model"
	"github.com/shrublabs/shrub-fund/internal/queue"
)

// emit publishes ev after its operation committed. A failed publish never
// undoes the operation.
func (s *Service) emit(ctx context.Context, ev *queue.FundEvent, ledger *model.FundLedgerDocument) {
	if ledger != nil {
		ev.TotalShares = ledger.TotalShares
		ev.RealValuation = ledger.RealValuation
		ev.SmoothedValuation = ledger.SmoothedValuation
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		log.Ctx(ctx).Warn().Err(err).
			Str("event_type", ev.Type.String()).
			Str("event_id", ev.EventID).
			Msg("failed to publish fund event")
	}
}
