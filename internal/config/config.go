// Package config loads and validates price-monitor service configuration
// from a YAML file with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	defaultServerPort      = 8060
	defaultServerTimeout   = 30
	defaultDatabasePort    = 5432
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute
	defaultRedisAddress    = "localhost:6379"

	defaultProviderTimeout       = 30 * time.Second
	defaultProviderMaxConcurrent = 20
	defaultRetryMaxAttempts      = 3
	defaultRetryInitialDelay     = 2 * time.Second
	defaultRetryMaxDelay         = 30 * time.Second
	defaultRetryMultiplier       = 2.0
	defaultRetryJitter           = 0.2

	defaultBatchSize        = 119
	defaultMaxIdentifiers   = 2500
	defaultBatchConcurrency = 3
	defaultItemConcurrency  = 5

	defaultSMTPPort = 587

	defaultSchedulerReload   = time.Minute
	defaultSchedulerTimezone = "Asia/Taipei"
	defaultSchedulerHour     = 20
)

type Config struct {
	Debug     bool            `env:"APP_DEBUG" yaml:"debug"`
	LogLevel  string          `env:"LOG_LEVEL" yaml:"log_level"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Redis     RedisConfig     `yaml:"redis"`
	Provider  ProviderConfig  `yaml:"provider"`
	Jobs      JobsConfig      `yaml:"jobs"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

type ServerConfig struct {
	Host         string        `env:"SERVER_HOST" yaml:"host"`
	Port         int           `env:"SERVER_PORT" yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	CORSOrigins  []string      `env:"CORS_ORIGINS" yaml:"cors_origins"`
}

type DatabaseConfig struct {
	Host            string        `env:"DB_HOST"     yaml:"host"`
	Port            int           `env:"DB_PORT"     yaml:"port"`
	User            string        `env:"DB_USER"     yaml:"user"`
	Password        string        `env:"DB_PASSWORD" yaml:"password"`
	DBName          string        `env:"DB_NAME"     yaml:"dbname"`
	SSLMode         string        `env:"DB_SSLMODE"  yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type AuthConfig struct {
	// JWTSecret enables bearer authentication when non-empty.
	JWTSecret string `env:"AUTH_JWT_SECRET" yaml:"jwt_secret"`
}

// RedisConfig holds Redis connection configuration for event publishing.
type RedisConfig struct {
	Address  string `env:"REDIS_ADDRESS"        yaml:"address"`
	Password string `env:"REDIS_PASSWORD"       yaml:"password"`
	DB       int    `env:"REDIS_DB"             yaml:"db"`
	Enabled  bool   `env:"REDIS_EVENTS_ENABLED" yaml:"enabled"`
}

// ProviderConfig configures the external pricing API client.
type ProviderConfig struct {
	BaseURL string        `env:"PROVIDER_BASE_URL" yaml:"base_url"`
	APIKey  string        `env:"PROVIDER_API_KEY"  yaml:"api_key"`
	Timeout time.Duration `env:"PROVIDER_TIMEOUT"  yaml:"timeout"`
	// MaxConcurrent is the global in-flight request ceiling shared by all
	// batches of a running job.
	MaxConcurrent int         `env:"PROVIDER_MAX_CONCURRENT" yaml:"max_concurrent"`
	Retry         RetryConfig `yaml:"retry"`
}

// RetryConfig is the backoff policy applied to transient provider failures.
type RetryConfig struct {
	MaxAttempts  int           `env:"PROVIDER_RETRY_MAX_ATTEMPTS" yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Multiplier   float64       `yaml:"multiplier"`
	Jitter       float64       `yaml:"jitter"`
}

// JobsConfig bounds job partitioning and pipeline concurrency.
type JobsConfig struct {
	BatchSize      int `env:"JOBS_BATCH_SIZE"      yaml:"batch_size"`
	MaxIdentifiers int `env:"JOBS_MAX_IDENTIFIERS" yaml:"max_identifiers"`
	// BatchConcurrency bounds how many batches of one job run at once.
	BatchConcurrency int `env:"JOBS_BATCH_CONCURRENCY" yaml:"batch_concurrency"`
	// ItemConcurrency bounds parallel identifiers within one batch.
	ItemConcurrency int `env:"JOBS_ITEM_CONCURRENCY" yaml:"item_concurrency"`
	// EmailOnPartial controls whether jobs with stopped batches still
	// trigger the automatic report email.
	EmailOnPartial bool `env:"JOBS_EMAIL_ON_PARTIAL" yaml:"email_on_partial"`
	// DefaultRecipients receive reports when a job specifies none.
	DefaultRecipients []string `env:"REPORT_DEFAULT_RECIPIENTS" yaml:"default_recipients"`
}

type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"     yaml:"host"`
	Port     int    `env:"SMTP_PORT"     yaml:"port"`
	Username string `env:"SMTP_USERNAME" yaml:"username"`
	Password string `env:"SMTP_PASSWORD" yaml:"password"`
	From     string `env:"SMTP_FROM"     yaml:"from"`
}

type SchedulerConfig struct {
	Enabled bool `env:"SCHEDULER_ENABLED" yaml:"enabled"`
	// ReloadInterval is how often settings are re-read from the store.
	ReloadInterval  time.Duration `yaml:"reload_interval"`
	DefaultTimezone string        `env:"SCHEDULER_DEFAULT_TZ" yaml:"default_timezone"`
	DefaultHour     int           `yaml:"default_hour"`
	DefaultMinute   int           `yaml:"default_minute"`
}

func (c *Config) Validate() error {
	if c.Server.Host == "" {
		return errors.New("server.host is required")
	}
	if c.Server.Port <= 0 {
		return errors.New("server.port is required and must be positive")
	}
	if c.Database.Host == "" {
		return errors.New("database.host is required")
	}
	if c.Database.Port <= 0 {
		return errors.New("database.port is required and must be positive")
	}
	if c.Database.User == "" {
		return errors.New("database.user is required")
	}
	if c.Database.DBName == "" {
		return errors.New("database.dbname is required")
	}
	if c.Provider.BaseURL == "" {
		return errors.New("provider.base_url is required")
	}
	if c.Provider.MaxConcurrent <= 0 {
		return errors.New("provider.max_concurrent must be positive")
	}
	if c.Provider.Retry.MaxAttempts <= 0 {
		return errors.New("provider.retry.max_attempts must be positive")
	}
	if c.Jobs.BatchSize <= 0 {
		return errors.New("jobs.batch_size must be positive")
	}
	if c.Jobs.MaxIdentifiers < c.Jobs.BatchSize {
		return errors.New("jobs.max_identifiers must be at least jobs.batch_size")
	}
	if c.Jobs.BatchConcurrency <= 0 {
		return errors.New("jobs.batch_concurrency must be positive")
	}
	if c.Jobs.ItemConcurrency <= 0 {
		return errors.New("jobs.item_concurrency must be positive")
	}
	if c.Scheduler.DefaultHour < 0 || c.Scheduler.DefaultHour > 23 {
		return errors.New("scheduler.default_hour must be between 0 and 23")
	}
	if c.Scheduler.DefaultMinute < 0 || c.Scheduler.DefaultMinute > 59 {
		return errors.New("scheduler.default_minute must be between 0 and 59")
	}
	return nil
}

// Load reads the YAML config at path, applies defaults, then environment
// overrides (env always wins), and validates the result.
func Load(path string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, fmt.Errorf("load environment files: %w", err)
	}

	// Booleans that default to true are preset here so an explicit false
	// in the YAML document still wins.
	cfg := &Config{}
	cfg.Jobs.EmailOnPartial = true
	cfg.Scheduler.Enabled = true
	if err := loadYAML(path, cfg); err != nil {
		return nil, err
	}

	setDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaultServerPort
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultServerTimeout * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultServerTimeout * time.Second
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"*"}
	}

	if cfg.Database.Port == 0 {
		cfg.Database.Port = defaultDatabasePort
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = defaultMaxOpenConns
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = defaultMaxIdleConns
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = defaultConnMaxLifetime
	}

	if cfg.Redis.Address == "" {
		cfg.Redis.Address = defaultRedisAddress
	}

	if cfg.Provider.Timeout == 0 {
		cfg.Provider.Timeout = defaultProviderTimeout
	}
	if cfg.Provider.MaxConcurrent == 0 {
		cfg.Provider.MaxConcurrent = defaultProviderMaxConcurrent
	}
	if cfg.Provider.Retry.MaxAttempts == 0 {
		cfg.Provider.Retry.MaxAttempts = defaultRetryMaxAttempts
	}
	if cfg.Provider.Retry.InitialDelay == 0 {
		cfg.Provider.Retry.InitialDelay = defaultRetryInitialDelay
	}
	if cfg.Provider.Retry.MaxDelay == 0 {
		cfg.Provider.Retry.MaxDelay = defaultRetryMaxDelay
	}
	if cfg.Provider.Retry.Multiplier == 0 {
		cfg.Provider.Retry.Multiplier = defaultRetryMultiplier
	}
	if cfg.Provider.Retry.Jitter == 0 {
		cfg.Provider.Retry.Jitter = defaultRetryJitter
	}

	if cfg.Jobs.BatchSize == 0 {
		cfg.Jobs.BatchSize = defaultBatchSize
	}
	if cfg.Jobs.MaxIdentifiers == 0 {
		cfg.Jobs.MaxIdentifiers = defaultMaxIdentifiers
	}
	if cfg.Jobs.BatchConcurrency == 0 {
		cfg.Jobs.BatchConcurrency = defaultBatchConcurrency
	}
	if cfg.Jobs.ItemConcurrency == 0 {
		cfg.Jobs.ItemConcurrency = defaultItemConcurrency
	}

	if cfg.SMTP.Port == 0 {
		cfg.SMTP.Port = defaultSMTPPort
	}

	if cfg.Scheduler.ReloadInterval == 0 {
		cfg.Scheduler.ReloadInterval = defaultSchedulerReload
	}
	if cfg.Scheduler.DefaultTimezone == "" {
		cfg.Scheduler.DefaultTimezone = defaultSchedulerTimezone
	}
	if cfg.Scheduler.DefaultHour == 0 {
		cfg.Scheduler.DefaultHour = defaultSchedulerHour
	}
}
