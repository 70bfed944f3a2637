package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on top,
// expands ${VAR} placeholders and applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // environment overlay is optional

	return finish(v)
}

// LoadFromFile reads a single YAML file.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

func overrideEmptyConfig(cfg *Config) {
	setIfEmpty(&cfg.Webhook.Secret, "WEBHOOK_SECRET")

	setIfEmpty(&cfg.Database.Postgres.Host, "DB_HOST")
	setIfEmpty(&cfg.Database.Postgres.User, "DB_USER")
	setIfEmpty(&cfg.Database.Postgres.Password, "DB_PASSWORD")
	setIfEmpty(&cfg.Database.Redis.Address, "REDIS_ADDRESS")
	setIfEmpty(&cfg.Database.Redis.Password, "REDIS_PASSWORD")

	setIfEmpty(&cfg.Notifications.AWS.Region, "AWS_REGION")
	setIfEmpty(&cfg.Notifications.Email.FromEmail, "NOTIFIER_FROM_EMAIL")
	setIfEmpty(&cfg.Integrations.SMTP.Username, "SMTP_USERNAME")
	setIfEmpty(&cfg.Integrations.SMTP.Password, "SMTP_PASSWORD")
}

func setIfEmpty(dst *string, envKey string) {
	if *dst != "" {
		return
	}
	if val := os.Getenv(envKey); val != "" {
		*dst = val
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "candidate-notifier"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8000"
	}
	if cfg.Server.ReadHeaderTimeout == 0 {
		cfg.Server.ReadHeaderTimeout = 10000
	}
	if cfg.Server.ShutdownGracePeriod == 0 {
		cfg.Server.ShutdownGracePeriod = 30000
	}

	if cfg.Webhook.MonitoredTable == "" {
		cfg.Webhook.MonitoredTable = "job_application_tracking"
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = StoreDriverPostgres
	}
	if cfg.Store.TrackingTable == "" {
		cfg.Store.TrackingTable = cfg.Webhook.MonitoredTable
	}
	if cfg.Store.CandidatesTable == "" {
		cfg.Store.CandidatesTable = "auto_apply_cand"
	}
	if cfg.Store.RequirementTable == "" {
		cfg.Store.RequirementTable = "parsed_requirements"
	}
	if cfg.Store.ScoreScale == "" {
		cfg.Store.ScoreScale = ScoreScaleFraction
	}
	if cfg.Store.QueryTimeout == 0 {
		cfg.Store.QueryTimeout = 5000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Redis.LockTTL == 0 {
		cfg.Database.Redis.LockTTL = 120000
	}
	if cfg.Database.Elasticsearch.Index == "" {
		cfg.Database.Elasticsearch.Index = "notification-outcomes"
	}

	if cfg.Notifications.Concurrency == 0 {
		cfg.Notifications.Concurrency = 10
	}
	if cfg.Notifications.QueueSize == 0 {
		cfg.Notifications.QueueSize = 100
	}
	if cfg.Notifications.Email.Provider == "" {
		cfg.Notifications.Email.Provider = EmailProviderSES
	}
	if cfg.Notifications.Email.Timeout == 0 {
		cfg.Notifications.Email.Timeout = 15000
	}
	if cfg.Notifications.SMS.DefaultCountryCode == "" {
		cfg.Notifications.SMS.DefaultCountryCode = "+91"
	}
	if cfg.Notifications.SMS.Timeout == 0 {
		cfg.Notifications.SMS.Timeout = 10000
	}
	if cfg.Notifications.SMS.RatePerSecond == 0 {
		cfg.Notifications.SMS.RatePerSecond = 20
	}
	if cfg.Notifications.AWS.Region == "" {
		cfg.Notifications.AWS.Region = "us-east-1"
	}

	if cfg.Integrations.SMTP.Port == 0 {
		cfg.Integrations.SMTP.Port = 587
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validateConfig(cfg *Config) error {
	pg := &cfg.Database.Postgres
	usePostgres := cfg.Store.Driver == StoreDriverPostgres
	email := &cfg.Notifications.Email
	smtp := &cfg.Integrations.SMTP

	return validation.Errors{
		"store": validation.ValidateStruct(&cfg.Store,
			validation.Field(&cfg.Store.Driver, validation.Required, validation.In(StoreDriverPostgres, StoreDriverMemory)),
			validation.Field(&cfg.Store.ScoreScale, validation.In(ScoreScaleFraction, ScoreScalePercent)),
		),
		"database.postgres": validation.ValidateStruct(pg,
			validation.Field(&pg.Host, validation.When(usePostgres, validation.Required)),
			validation.Field(&pg.Database, validation.When(usePostgres, validation.Required)),
			validation.Field(&pg.User, validation.When(usePostgres, validation.Required)),
		),
		"notifications": validation.ValidateStruct(&cfg.Notifications,
			validation.Field(&cfg.Notifications.Concurrency, validation.Min(1)),
			validation.Field(&cfg.Notifications.QueueSize, validation.Min(1)),
		),
		"notifications.email": validation.ValidateStruct(email,
			validation.Field(&email.Provider, validation.In(EmailProviderSES, EmailProviderSMTP)),
			validation.Field(&email.FromEmail, validation.When(email.Enabled, validation.Required), is.EmailFormat),
			validation.Field(&email.ReplyToEmail, is.EmailFormat),
		),
		"notifications.sms": validation.ValidateStruct(&cfg.Notifications.SMS,
			validation.Field(&cfg.Notifications.SMS.DefaultCountryCode, validation.Match(countryCodePattern)),
		),
		"integrations.smtp": validation.ValidateStruct(smtp,
			validation.Field(&smtp.Host, validation.When(email.Enabled && email.Provider == EmailProviderSMTP, validation.Required)),
			validation.Field(&smtp.Port, validation.Min(1), validation.Max(65535)),
		),
	}.Filter()
}

var countryCodePattern = regexp.MustCompile(`^\+\d{1,4}$`)

func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
