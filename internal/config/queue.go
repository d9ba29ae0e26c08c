package config

import (
	"errors"
)

type QueueConfig struct {
	Url      string `mapstructure:"url"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Exchange string `mapstructure:"exchange"`
}

func (cfg *QueueConfig) Validate() error {
	if cfg.Url == "" {
		return errors.New("queue url is required")
	}
	if cfg.User == "" {
		return errors.New("queue user is required")
	}
	if cfg.Password == "" {
		return errors.New("queue password is required")
	}
	if cfg.Exchange == "" {
		return errors.New("queue exchange is required")
	}
	return nil
}
