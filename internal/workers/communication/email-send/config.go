package emailsend

import (
	"fmt"
	"time"

	"candidate-notifier/internal/common/config"
)

const (
	ProviderSES  = config.EmailProviderSES
	ProviderSMTP = config.EmailProviderSMTP
)

type Config struct {
	Provider     string        `mapstructure:"provider"`
	FromEmail    string        `mapstructure:"from_email"`
	ReplyToEmail string        `mapstructure:"reply_to_email"`
	Timeout      time.Duration `mapstructure:"timeout"`
	SMTPHost     string        `mapstructure:"smtp_host"`
	SMTPPort     int           `mapstructure:"smtp_port"`
	SMTPUsername string        `mapstructure:"smtp_username"`
	SMTPPassword string        `mapstructure:"smtp_password"`
	UseTLS       bool          `mapstructure:"use_tls"`
}

func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderSES,
		Timeout:  15 * time.Second,
		SMTPPort: 587,
		UseTLS:   true,
	}
}

// NewConfig maps the application config onto the sender config.
func NewConfig(cfg *config.Config) *Config {
	c := DefaultConfig()
	email := cfg.Notifications.Email
	smtp := cfg.Integrations.SMTP

	if email.Provider != "" {
		c.Provider = email.Provider
	}
	c.FromEmail = email.FromEmail
	if c.FromEmail == "" {
		c.FromEmail = smtp.DefaultFrom
	}
	c.ReplyToEmail = email.ReplyToEmail
	if email.Timeout > 0 {
		c.Timeout = config.GetDuration(email.Timeout)
	}

	c.SMTPHost = smtp.Host
	if smtp.Port > 0 {
		c.SMTPPort = smtp.Port
	}
	c.SMTPUsername = smtp.Username
	c.SMTPPassword = smtp.Password
	c.UseTLS = smtp.UseTLS
	return c
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.FromEmail == "" {
		return fmt.Errorf("from_email is required")
	}
	switch c.Provider {
	case ProviderSES:
	case ProviderSMTP:
		if c.SMTPHost == "" {
			return fmt.Errorf("smtp_host is required")
		}
		if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
			return fmt.Errorf("smtp_port must be between 1 and 65535")
		}
	default:
		return fmt.Errorf("unsupported email provider: %q", c.Provider)
	}
	return nil
}
