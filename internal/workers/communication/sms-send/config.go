package smssend

import (
	"fmt"
	"time"

	"candidate-notifier/internal/common/config"
)

// MaxMessageLength is the longest body a single SMS send accepts.
const MaxMessageLength = 1600

type Config struct {
	SenderID          string        `mapstructure:"sender_id"`
	OriginationNumber string        `mapstructure:"origination_number"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RatePerSecond     float64       `mapstructure:"rate_per_second"`
}

func DefaultConfig() *Config {
	return &Config{
		Timeout:       10 * time.Second,
		RatePerSecond: 20,
	}
}

func NewConfig(cfg *config.Config) *Config {
	c := DefaultConfig()
	sms := cfg.Notifications.SMS

	c.SenderID = sms.SenderID
	c.OriginationNumber = sms.OriginationNumber
	if sms.Timeout > 0 {
		c.Timeout = config.GetDuration(sms.Timeout)
	}
	if sms.RatePerSecond > 0 {
		c.RatePerSecond = sms.RatePerSecond
	}
	return c
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.RatePerSecond <= 0 {
		return fmt.Errorf("rate_per_second must be positive")
	}
	if len(c.SenderID) > 11 {
		return fmt.Errorf("sender_id must be at most 11 characters")
	}
	return nil
}
