package config

import (
	"errors"
	"net/url"
	"time"
)

const (
	defaultSettlementTimeout       = 20 * time.Second
	defaultSettlementMaxRetryTimes = 3
	defaultSettlementRetryInterval = 1 * time.Second
)

// SettlementConfig points at the gateway that moves settlement currency
// between accounts.
type SettlementConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	APIKey        string        `mapstructure:"api-key"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxRetryTimes uint          `mapstructure:"max-retry-times"`
	RetryInterval time.Duration `mapstructure:"retry-interval"`
}

func (cfg *SettlementConfig) Validate() error {
	if cfg.Endpoint == "" {
		return errors.New("settlement endpoint is required")
	}
	if _, err := url.ParseRequestURI(cfg.Endpoint); err != nil {
		return errors.New("settlement endpoint must be a valid URL")
	}
	if cfg.Timeout <= 0 {
		return errors.New("settlement timeout must be positive")
	}
	if cfg.MaxRetryTimes == 0 {
		return errors.New("settlement max-retry-times must be positive")
	}
	if cfg.RetryInterval <= 0 {
		return errors.New("settlement retry-interval must be positive")
	}
	return nil
}

// StorageConfig prices the storage-cost reserve that backs growable
// registry shards and the cashout queue.
type StorageConfig struct {
	RentPerByte   uint64 `mapstructure:"rent-per-byte"`
	ReserveBase   uint64 `mapstructure:"reserve-base"`
	ReservePrefix string `mapstructure:"reserve-prefix"`
}

func (cfg *StorageConfig) Validate() error {
	if cfg.ReservePrefix == "" {
		return errors.New("storage reserve-prefix is required")
	}
	return nil
}
