package config

import (
	"errors"
	"time"
)

const (
	defaultMaxShardUsers = 100_000
	defaultMaxShards     = 100
	// option tag + owner key + shares + stake timestamp + three optional lock fields
	defaultSlotSizeBytes    = 1 + 32 + 8 + 8 + 9 + 9 + 9
	defaultShardHeaderBytes = 8 + 8 + 8 + 4

	defaultCashoutInitialCapacity = 100
	defaultCashoutEntrySizeBytes  = 32 + 8

	defaultNavHistoryMaxEntries = 84
	defaultNavHistoryRetention  = 7 * 24 * time.Hour
)

type RegistryConfig struct {
	MaxShardUsers    uint64 `mapstructure:"max-shard-users"`
	MaxShards        uint64 `mapstructure:"max-shards"`
	SlotSizeBytes    uint64 `mapstructure:"slot-size-bytes"`
	ShardHeaderBytes uint64 `mapstructure:"shard-header-bytes"`
}

func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		MaxShardUsers:    defaultMaxShardUsers,
		MaxShards:        defaultMaxShards,
		SlotSizeBytes:    defaultSlotSizeBytes,
		ShardHeaderBytes: defaultShardHeaderBytes,
	}
}

func (cfg *RegistryConfig) Validate() error {
	if cfg.MaxShardUsers == 0 {
		return errors.New("max-shard-users must be positive")
	}
	if cfg.MaxShards == 0 {
		return errors.New("max-shards must be positive")
	}
	if cfg.SlotSizeBytes == 0 {
		return errors.New("slot-size-bytes must be positive")
	}
	return nil
}

type CashoutConfig struct {
	InitialCapacity uint64 `mapstructure:"initial-capacity"`
	EntrySizeBytes  uint64 `mapstructure:"entry-size-bytes"`
}

func DefaultCashoutConfig() CashoutConfig {
	return CashoutConfig{
		InitialCapacity: defaultCashoutInitialCapacity,
		EntrySizeBytes:  defaultCashoutEntrySizeBytes,
	}
}

func (cfg *CashoutConfig) Validate() error {
	if cfg.EntrySizeBytes == 0 {
		return errors.New("entry-size-bytes must be positive")
	}
	return nil
}

type NavHistoryConfig struct {
	MaxEntries int           `mapstructure:"max-entries"`
	Retention  time.Duration `mapstructure:"retention"`
}

func DefaultNavHistoryConfig() NavHistoryConfig {
	return NavHistoryConfig{
		MaxEntries: defaultNavHistoryMaxEntries,
		Retention:  defaultNavHistoryRetention,
	}
}

func (cfg *NavHistoryConfig) Validate() error {
	if cfg.MaxEntries <= 0 {
		return errors.New("max-entries must be positive")
	}
	if cfg.Retention <= 0 {
		return errors.New("retention must be positive")
	}
	return nil
}
