package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Db: DbConfig{
			Username: "test",
			Password: "test",
			Address:  "mongodb://localhost:27017",
			DbName:   "test",
		},
		Fund: FundConfig{
			AuthorityKey:    "authority",
			SettlementDenom: "usdc",
			HoldingAccount:  "holding",
			CashoutAccount:  "cashout",
			FeeRecipient:    "gardener",
			MaturityPeriod:  7 * 24 * time.Hour,
			CommissionBps:   200,
		},
		Registry:   DefaultRegistryConfig(),
		Cashout:    DefaultCashoutConfig(),
		NavHistory: DefaultNavHistoryConfig(),
		Settlement: SettlementConfig{
			Endpoint:      "http://localhost:9000",
			Timeout:       5 * time.Second,
			MaxRetryTimes: 3,
			RetryInterval: 100 * time.Millisecond,
		},
		Storage: StorageConfig{
			RentPerByte:   7,
			ReservePrefix: "reserve",
		},
		Poller: PollerConfig{
			StatsPollingInterval: time.Minute,
			CommissionSchedule:   "0 0 0 1 * *",
		},
		Server: ServerConfig{
			Host:      "0.0.0.0",
			Port:      8090,
			RateLimit: 10,
			RateBurst: 5,
		},
		Metrics: MetricsConfig{
			Host: "0.0.0.0",
			Port: 2112,
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		cfg := validConfig()
		require.NoError(t, cfg.Validate())
	})
	t.Run("optional queue", func(t *testing.T) {
		cfg := validConfig()
		cfg.Queue = &QueueConfig{
			Url:      "localhost:5672",
			User:     "user",
			Password: "password",
			Exchange: "fund-events",
		}
		require.NoError(t, cfg.Validate())

		cfg.Queue.Exchange = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid queue config")
	})
	t.Run("commission above 100%", func(t *testing.T) {
		cfg := validConfig()
		cfg.Fund.CommissionBps = 10_001
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "commission-bps")
	})
	t.Run("missing authority", func(t *testing.T) {
		cfg := validConfig()
		cfg.Fund.AuthorityKey = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "authority-key is required")
	})
	t.Run("invalid settlement endpoint", func(t *testing.T) {
		cfg := validConfig()
		cfg.Settlement.Endpoint = "not a url"
		require.Error(t, cfg.Validate())
	})
}

func TestNew(t *testing.T) {
	const content = `
db:
  username: user
  password: pass
  address: mongodb://localhost:27017
  db-name: fund
fund:
  authority-key: authority
  settlement-denom: usdc
  holding-account: holding
  cashout-account: cashout
  fee-recipient: gardener
settlement:
  endpoint: http://localhost:9000
storage:
  rent-per-byte: 7
  reserve-prefix: reserve
`
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Run("defaults are applied", func(t *testing.T) {
		cfg, err := New(path)
		require.NoError(t, err)

		assert.Equal(t, 7*24*time.Hour, cfg.Fund.MaturityPeriod)
		assert.Equal(t, uint64(200), cfg.Fund.CommissionBps)
		assert.Zero(t, cfg.Fund.MinUpdateInterval)
		assert.Equal(t, uint64(100_000), cfg.Registry.MaxShardUsers)
		assert.Equal(t, uint64(100), cfg.Registry.MaxShards)
		assert.Equal(t, uint64(77), cfg.Registry.SlotSizeBytes)
		assert.Equal(t, uint64(100), cfg.Cashout.InitialCapacity)
		assert.Equal(t, 84, cfg.NavHistory.MaxEntries)
		assert.Equal(t, 7*24*time.Hour, cfg.NavHistory.Retention)
		assert.Equal(t, 2112, cfg.Metrics.Port)
		assert.Nil(t, cfg.Queue)
	})
	t.Run("env overrides file", func(t *testing.T) {
		t.Setenv("FUND_FEE_RECIPIENT", "other")
		cfg, err := New(path)
		require.NoError(t, err)
		assert.Equal(t, "other", cfg.Fund.FeeRecipient)
	})
	t.Run("missing file", func(t *testing.T) {
		_, err := New(filepath.Join(t.TempDir(), "missing.yml"))
		require.Error(t, err)
	})
}
