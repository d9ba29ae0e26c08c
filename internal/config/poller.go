package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	defaultStatsPollingInterval = 1 * time.Minute
	// first day of every month at midnight
	defaultCommissionSchedule = "0 0 0 1 * *"
)

type PollerConfig struct {
	StatsPollingInterval time.Duration `mapstructure:"stats-polling-interval"`
	// CommissionSchedule is a cron spec with seconds. Empty disables the
	// scheduled commission collection.
	CommissionSchedule string `mapstructure:"commission-schedule"`
}

func (cfg *PollerConfig) Validate() error {
	if cfg.StatsPollingInterval <= 0 {
		cfg.StatsPollingInterval = defaultStatsPollingInterval
	}

	if cfg.CommissionSchedule != "" {
		parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(cfg.CommissionSchedule); err != nil {
			return fmt.Errorf("invalid commission-schedule: %w", err)
		}
	}

	if cfg.StatsPollingInterval < time.Second {
		return errors.New("stats-polling-interval must be at least one second")
	}

	return nil
}
