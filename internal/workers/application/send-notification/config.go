// internal/workers/application/send-notification/config.go
package sendnotification

import (
	"time"

	"candidate-notifier/internal/common/config"
	"candidate-notifier/internal/common/contact"
)

const (
	DefaultEmailTimeout = 15 * time.Second
	DefaultSMSTimeout   = 10 * time.Second
	DefaultMarkTimeout  = 5 * time.Second
)

type Config struct {
	EmailEnabled       bool
	SMSEnabled         bool
	EmailTimeout       time.Duration
	SMSTimeout         time.Duration
	MarkTimeout        time.Duration
	DefaultCountryCode string
}

func DefaultConfig() *Config {
	return &Config{
		EmailEnabled:       true,
		SMSEnabled:         true,
		EmailTimeout:       DefaultEmailTimeout,
		SMSTimeout:         DefaultSMSTimeout,
		MarkTimeout:        DefaultMarkTimeout,
		DefaultCountryCode: contact.DefaultCountryCode,
	}
}

func NewConfig(appConfig *config.Config) *Config {
	cfg := DefaultConfig()
	if appConfig == nil {
		return cfg
	}

	n := appConfig.Notifications
	cfg.EmailEnabled = n.Email.Enabled
	cfg.SMSEnabled = n.SMS.Enabled

	if n.Email.Timeout > 0 {
		cfg.EmailTimeout = config.GetDuration(n.Email.Timeout)
	}
	if n.SMS.Timeout > 0 {
		cfg.SMSTimeout = config.GetDuration(n.SMS.Timeout)
	}
	if appConfig.Store.QueryTimeout > 0 {
		cfg.MarkTimeout = config.GetDuration(appConfig.Store.QueryTimeout)
	}
	if n.SMS.DefaultCountryCode != "" {
		cfg.DefaultCountryCode = n.SMS.DefaultCountryCode
	}

	return cfg
}
