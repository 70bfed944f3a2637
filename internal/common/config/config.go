package config

import "fmt"

type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Server        ServerConfig       `mapstructure:"server"`
	Webhook       WebhookConfig      `mapstructure:"webhook"`
	Store         StoreConfig        `mapstructure:"store"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Integrations  IntegrationConfig  `mapstructure:"integrations"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address             string `mapstructure:"address"`
	ReadHeaderTimeout   int    `mapstructure:"read_header_timeout"`   // milliseconds
	ShutdownGracePeriod int    `mapstructure:"shutdown_grace_period"` // milliseconds
}

type WebhookConfig struct {
	// Secret is compared with X-Webhook-Secret. Empty disables the check.
	Secret         string `mapstructure:"secret"`
	MonitoredTable string `mapstructure:"monitored_table"`
}

type StoreConfig struct {
	Driver           string `mapstructure:"driver"` // "postgres" or "memory"
	TrackingTable    string `mapstructure:"tracking_table"`
	CandidatesTable  string `mapstructure:"candidates_table"`
	RequirementTable string `mapstructure:"requirements_table"`
	ScoreScale       string `mapstructure:"score_scale"`   // "fraction" (0-1) or "percent" (0-100)
	QueryTimeout     int    `mapstructure:"query_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// ElasticsearchConfig configures the optional outcome journal.
type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

func (e ElasticsearchConfig) Enabled() bool {
	return len(e.Addresses) > 0
}

// RedisConfig configures the optional per-application run lock.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	LockTTL  int    `mapstructure:"lock_ttl"` // milliseconds
}

func (r RedisConfig) Enabled() bool {
	return r.Address != ""
}

type NotificationConfig struct {
	Concurrency int         `mapstructure:"concurrency"`
	QueueSize   int         `mapstructure:"queue_size"`
	Email       EmailConfig `mapstructure:"email"`
	SMS         SMSConfig   `mapstructure:"sms"`
	AWS         AWSConfig   `mapstructure:"aws"`
}

type EmailConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Provider     string `mapstructure:"provider"` // "ses" or "smtp"
	FromEmail    string `mapstructure:"from_email"`
	ReplyToEmail string `mapstructure:"reply_to_email"`
	Timeout      int    `mapstructure:"timeout"` // milliseconds
}

type SMSConfig struct {
	Enabled            bool    `mapstructure:"enabled"`
	SenderID           string  `mapstructure:"sender_id"`
	OriginationNumber  string  `mapstructure:"origination_number"`
	DefaultCountryCode string  `mapstructure:"default_country_code"`
	Timeout            int     `mapstructure:"timeout"` // milliseconds
	RatePerSecond      float64 `mapstructure:"rate_per_second"`
}

type AWSConfig struct {
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"` // optional override, e.g. localstack
}

type IntegrationConfig struct {
	SMTP struct {
		Host        string `mapstructure:"host"`
		Port        int    `mapstructure:"port"`
		Username    string `mapstructure:"username"`
		Password    string `mapstructure:"password"`
		UseTLS      bool   `mapstructure:"use_tls"`
		DefaultFrom string `mapstructure:"default_from"`
	} `mapstructure:"smtp"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Provider names.
const (
	EmailProviderSES  = "ses"
	EmailProviderSMTP = "smtp"

	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	ScoreScaleFraction = "fraction"
	ScoreScalePercent  = "percent"
)
