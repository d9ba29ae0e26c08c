package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

const (
	defaultServerHost      = "0.0.0.0"
	defaultServerPort      = 8090
	defaultServerRateLimit = 100.0
	defaultServerRateBurst = 20
	defaultSignatureMaxAge = 5 * time.Minute
	defaultMetricsHost     = "0.0.0.0"
	defaultMetricsPort     = 2112
)

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// RateLimit is the number of requests per second accepted per client ip.
	RateLimit float64 `mapstructure:"rate-limit"`
	RateBurst int     `mapstructure:"rate-burst"`
	// SignatureMaxAge bounds how far a signed request timestamp may drift
	// from the server clock. Nonces are remembered for as long.
	SignatureMaxAge time.Duration `mapstructure:"signature-max-age"`
}

func (cfg *ServerConfig) Validate() error {
	if cfg.Host == "" {
		return errors.New("server host is required")
	}
	if net.ParseIP(cfg.Host) == nil {
		return fmt.Errorf("invalid server host: %s", cfg.Host)
	}
	if cfg.Port < 1024 || cfg.Port > 65535 {
		return fmt.Errorf("server port must be between 1024 and 65535, got %d", cfg.Port)
	}
	if cfg.RateLimit <= 0 {
		return errors.New("server rate-limit must be positive")
	}
	if cfg.RateBurst <= 0 {
		return errors.New("server rate-burst must be positive")
	}
	if cfg.SignatureMaxAge <= 0 {
		cfg.SignatureMaxAge = defaultSignatureMaxAge
	}
	return nil
}

func (cfg *ServerConfig) Address() string {
	return net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
}

type MetricsConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

func (cfg *MetricsConfig) Validate() error {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("metrics server port must be between 0 and 65535 (inclusive)")
	}

	ip := net.ParseIP(cfg.Host)
	if ip == nil {
		return fmt.Errorf("invalid metrics server host: %v", cfg.Host)
	}

	return nil
}

func (cfg *MetricsConfig) GetMetricsPort() int {
	return cfg.Port
}
