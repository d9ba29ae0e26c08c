package services

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/shrublabs/shrub-fund/internal/observability/tracing"
)

// CommissionScheduler collects the commission on a cron schedule, acting as
// the configured authority.
type CommissionScheduler struct {
	cron    *cron.Cron
	service *Service
	ctx     context.Context
}

// NewCommissionScheduler registers the collection job. ctx is the parent of
// every run. An empty schedule returns a scheduler that never fires.
func (s *Service) NewCommissionScheduler(ctx context.Context) (*CommissionScheduler, error) {
	if s.cfg.Poller.CommissionSchedule == "" {
		return &CommissionScheduler{service: s, ctx: ctx}, nil
	}

	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	sched := &CommissionScheduler{
		cron:    c,
		service: s,
		ctx:     ctx,
	}
	if _, err := c.AddFunc(s.cfg.Poller.CommissionSchedule, sched.RunNow); err != nil {
		return nil, fmt.Errorf("register commission task: %w", err)
	}
	return sched, nil
}

func (c *CommissionScheduler) Start() {
	if c.cron == nil {
		log.Ctx(c.ctx).Info().Msg("commission schedule is empty, scheduled collection disabled")
		return
	}
	c.cron.Start()
	log.Ctx(c.ctx).Info().
		Str("schedule", c.service.cfg.Poller.CommissionSchedule).
		Msg("commission scheduler started")
}

// Stop halts the schedule and waits for a running collection to finish.
func (c *CommissionScheduler) Stop() {
	if c.cron == nil {
		return
	}
	<-c.cron.Stop().Done()
	log.Ctx(c.ctx).Info().Msg("commission scheduler stopped")
}

// RunNow collects the commission once.
func (c *CommissionScheduler) RunNow() {
	if c.ctx.Err() != nil {
		return
	}
	ctx := tracing.InjectTraceID(c.ctx)
	if _, err := c.service.CollectCommission(ctx, c.service.cfg.Fund.AuthorityKey); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("scheduled commission collection failed")
	}
}
