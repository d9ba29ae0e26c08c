package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Db         DbConfig         `mapstructure:"db"`
	Fund       FundConfig       `mapstructure:"fund"`
	Registry   RegistryConfig   `mapstructure:"registry"`
	Cashout    CashoutConfig    `mapstructure:"cashout"`
	NavHistory NavHistoryConfig `mapstructure:"nav-history"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Queue      *QueueConfig     `mapstructure:"queue"`
	Poller     PollerConfig     `mapstructure:"poller"`
	Server     ServerConfig     `mapstructure:"server"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

func (cfg *Config) Validate() error {
	if err := cfg.Db.Validate(); err != nil {
		return fmt.Errorf("invalid db config: %w", err)
	}

	if err := cfg.Fund.Validate(); err != nil {
		return fmt.Errorf("invalid fund config: %w", err)
	}

	if err := cfg.Registry.Validate(); err != nil {
		return fmt.Errorf("invalid registry config: %w", err)
	}

	if err := cfg.Cashout.Validate(); err != nil {
		return fmt.Errorf("invalid cashout config: %w", err)
	}

	if err := cfg.NavHistory.Validate(); err != nil {
		return fmt.Errorf("invalid nav-history config: %w", err)
	}

	if err := cfg.Settlement.Validate(); err != nil {
		return fmt.Errorf("invalid settlement config: %w", err)
	}

	if err := cfg.Storage.Validate(); err != nil {
		return fmt.Errorf("invalid storage config: %w", err)
	}

	// queue is optional, events are not published without it
	if cfg.Queue != nil {
		if err := cfg.Queue.Validate(); err != nil {
			return fmt.Errorf("invalid queue config: %w", err)
		}
	}

	if err := cfg.Poller.Validate(); err != nil {
		return fmt.Errorf("invalid poller config: %w", err)
	}

	if err := cfg.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	if err := cfg.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}

	return nil
}

// New returns a fully parsed Config object from a given file path.
// Every key can be overridden by an environment variable, e.g. DB_PASSWORD
// for db.password or FUND_AUTHORITY_KEY for fund.authority-key.
func New(cfgFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(cfgFile)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("fund.maturity-period", defaultMaturityPeriod)
	v.SetDefault("fund.commission-bps", defaultCommissionBps)
	v.SetDefault("fund.min-update-interval", 0)

	v.SetDefault("registry.max-shard-users", defaultMaxShardUsers)
	v.SetDefault("registry.max-shards", defaultMaxShards)
	v.SetDefault("registry.slot-size-bytes", defaultSlotSizeBytes)
	v.SetDefault("registry.shard-header-bytes", defaultShardHeaderBytes)

	v.SetDefault("cashout.initial-capacity", defaultCashoutInitialCapacity)
	v.SetDefault("cashout.entry-size-bytes", defaultCashoutEntrySizeBytes)

	v.SetDefault("nav-history.max-entries", defaultNavHistoryMaxEntries)
	v.SetDefault("nav-history.retention", defaultNavHistoryRetention)

	v.SetDefault("settlement.timeout", defaultSettlementTimeout)
	v.SetDefault("settlement.max-retry-times", defaultSettlementMaxRetryTimes)
	v.SetDefault("settlement.retry-interval", defaultSettlementRetryInterval)

	v.SetDefault("poller.stats-polling-interval", defaultStatsPollingInterval)
	v.SetDefault("poller.commission-schedule", defaultCommissionSchedule)

	v.SetDefault("server.host", defaultServerHost)
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.rate-limit", defaultServerRateLimit)
	v.SetDefault("server.rate-burst", defaultServerRateBurst)
	v.SetDefault("server.signature-max-age", defaultSignatureMaxAge)

	v.SetDefault("metrics.host", defaultMetricsHost)
	v.SetDefault("metrics.port", defaultMetricsPort)
}
