package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Environment string         `mapstructure:"environment"`
	LogLevel    string         `mapstructure:"log_level"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Tola        TolaConfig     `mapstructure:"tola"`
	Sync        SyncConfig     `mapstructure:"sync"`
	Queue       QueueConfig    `mapstructure:"queue"`
	Notify      NotifyConfig   `mapstructure:"notify"`
}

type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	PublicURL    string `mapstructure:"public_url"`
	// AdminToken guards the operator endpoints; empty disables them.
	AdminToken string `mapstructure:"admin_token"`
}

type DatabaseConfig struct {
	URL             string `mapstructure:"url"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// TolaConfig configures the ledger service client and webhook secrets
type TolaConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	// WebhookSecret signs inbound events; PreviousWebhookSecret keeps a
	// rotation overlap window alive and may be empty.
	WebhookSecret         string `mapstructure:"webhook_secret"`
	PreviousWebhookSecret string `mapstructure:"previous_webhook_secret"`
	RequestTimeout        int    `mapstructure:"request_timeout"`
	QueryTimeout          int    `mapstructure:"query_timeout"`
}

// SyncConfig configures transfer reconciliation and batch splitting
type SyncConfig struct {
	LargeTransferThreshold string `mapstructure:"large_transfer_threshold"`
	BatchSize              string `mapstructure:"batch_size"`
	InterBatchDelay        int    `mapstructure:"inter_batch_delay"`
	TaskMaxAttempts        uint32 `mapstructure:"task_max_attempts"`
	TaskPollInterval       int    `mapstructure:"task_poll_interval"`
	BalanceCacheTTL        int    `mapstructure:"balance_cache_ttl"`
}

// InterBatchDelayDuration returns the delay between scheduled batches
func (s SyncConfig) InterBatchDelayDuration() time.Duration {
	return time.Duration(s.InterBatchDelay) * time.Second
}

// QueueConfig configures the outbound transaction queue worker
type QueueConfig struct {
	MaxAttempts   uint32 `mapstructure:"max_attempts"`
	RetryCooldown int    `mapstructure:"retry_cooldown"`
	DrainLimit    int    `mapstructure:"drain_limit"`
	WorkerSpec    string `mapstructure:"worker_spec"`
}

// RetryCooldownDuration returns the cooldown between attempts on one entry
func (q QueueConfig) RetryCooldownDuration() time.Duration {
	return time.Duration(q.RetryCooldown) * time.Second
}

// NotifyConfig configures operator notifications
type NotifyConfig struct {
	SendGridAPIKey string `mapstructure:"sendgrid_api_key"`
	FromEmail      string `mapstructure:"from_email"`
	OperatorEmail  string `mapstructure:"operator_email"`
}

// Load reads configuration from configs/config.yaml plus environment
// overrides. A local .env is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations that cannot run safely
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if c.Tola.APIKey == "" {
		return fmt.Errorf("tola.api_key is required")
	}
	if c.Tola.WebhookSecret == "" {
		return fmt.Errorf("tola.webhook_secret is required")
	}
	if c.Queue.DrainLimit <= 0 {
		return fmt.Errorf("queue.drain_limit must be positive")
	}
	threshold, err := decimal.NewFromString(c.Sync.LargeTransferThreshold)
	if err != nil || threshold.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("sync.large_transfer_threshold must be a positive decimal, got %q", c.Sync.LargeTransferThreshold)
	}
	batchSize, err := decimal.NewFromString(c.Sync.BatchSize)
	if err != nil || batchSize.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("sync.batch_size must be a positive decimal, got %q", c.Sync.BatchSize)
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)

	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 300)

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("tola.base_url", "https://api.tola-blockchain.io/v1")
	viper.SetDefault("tola.request_timeout", 45)
	viper.SetDefault("tola.query_timeout", 30)

	viper.SetDefault("sync.large_transfer_threshold", "10000")
	viper.SetDefault("sync.batch_size", "50")
	viper.SetDefault("sync.inter_batch_delay", 10)
	viper.SetDefault("sync.task_max_attempts", 3)
	viper.SetDefault("sync.task_poll_interval", 5)
	viper.SetDefault("sync.balance_cache_ttl", 300)

	viper.SetDefault("queue.max_attempts", 5)
	viper.SetDefault("queue.retry_cooldown", 300)
	viper.SetDefault("queue.drain_limit", 10)
	viper.SetDefault("queue.worker_spec", "* * * * *")
}
