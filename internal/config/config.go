package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	MinIO    MinIOConfig
	Email    EmailConfig
	Webhook  WebhookConfig
	Job      JobConfig
}

type AppConfig struct {
	Name        string
	Environment string
	Port        string
	Version     string
	URL         string
}

type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	MaxConnections  int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Host        string
	Password    string
	DB          int
	MaxRetries  int
	PoolSize    int
	DialTimeout time.Duration
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

// MinIOConfig holds connection and bucket details for the object storage
// backend that receipts are uploaded to.
type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Bucket          string
	PresignExpiry   time.Duration
}

// EmailConfig holds SMTP connection details for receipt delivery.
type EmailConfig struct {
	Host        string
	Port        string
	Username    string
	Password    string
	FromAddress string
	FromName    string
	UseTLS      bool
}

// WebhookConfig holds per-provider webhook signing secrets. Providers are
// looked up by name (e.g. "paystack", "mock", "generic").
type WebhookConfig struct {
	Secrets map[string]string
}

func (w WebhookConfig) SecretFor(provider string) (string, bool) {
	secret, ok := w.Secrets[strings.ToLower(provider)]
	return secret, ok && secret != ""
}

// JobConfig sizes the background sweeps that keep the pipeline converging:
// the recovery scan that re-drives stuck transactions, and the webhook
// retry/cleanup cron jobs.
type JobConfig struct {
	RecoveryScanBatchSize int
	RecoveryScanInterval  time.Duration
	StuckAfter            time.Duration
	WebhookRetryBatchSize int
	WebhookRetryMaxAge    time.Duration
	WebhookCleanupAfter   time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "Receiptflow"),
			Environment: getEnv("APP_ENV", "development"),
			Port:        getEnv("APP_PORT", "8080"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			URL:         getEnv("APP_URL", "http://localhost:8080"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "receiptflow"),
			Password:        getEnv("DB_PASSWORD", "secret"),
			Name:            getEnv("DB_NAME", "receiptflow_dev"),
			MaxConnections:  getEnvInt("DB_MAX_CONNECTIONS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONNECTION_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:        getEnv("REDIS_HOST", "localhost:6379"),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          getEnvInt("REDIS_DB", 0),
			MaxRetries:  getEnvInt("REDIS_MAX_RETRIES", 3),
			PoolSize:    getEnvInt("REDIS_POOL_SIZE", 10),
			DialTimeout: 5 * time.Second,
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", "change-this-secret"),
			Expiration:        getEnvDuration("JWT_EXPIRATION", 24*time.Hour),
			RefreshExpiration: getEnvDuration("JWT_REFRESH_EXPIRATION", 168*time.Hour),
		},
		MinIO: MinIOConfig{
			Endpoint:        getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretAccessKey: getEnv("MINIO_SECRET_KEY", "minioadmin"),
			UseSSL:          getEnvBool("MINIO_USE_SSL", false),
			Bucket:          getEnv("MINIO_BUCKET", "receipts"),
			PresignExpiry:   getEnvDuration("MINIO_PRESIGN_EXPIRY", 15*time.Minute),
		},
		Email: EmailConfig{
			Host:        getEnv("SMTP_HOST", "localhost"),
			Port:        getEnv("SMTP_PORT", "1025"),
			Username:    getEnv("SMTP_USERNAME", ""),
			Password:    getEnv("SMTP_PASSWORD", ""),
			FromAddress: getEnv("SMTP_FROM_ADDRESS", "receipts@receiptflow.local"),
			FromName:    getEnv("SMTP_FROM_NAME", "Receiptflow"),
			UseTLS:      getEnvBool("SMTP_USE_TLS", false),
		},
		Webhook: WebhookConfig{
			Secrets: map[string]string{
				"paystack": getEnv("WEBHOOK_SECRET_PAYSTACK", ""),
				"mock":     getEnv("WEBHOOK_SECRET_MOCK", "mock-secret"),
				"generic":  getEnv("WEBHOOK_SECRET_GENERIC", ""),
			},
		},
		Job: JobConfig{
			RecoveryScanBatchSize: getEnvInt("JOB_RECOVERY_SCAN_BATCH_SIZE", 50),
			RecoveryScanInterval:  getEnvDuration("JOB_RECOVERY_SCAN_INTERVAL", 15*time.Minute),
			StuckAfter:            getEnvDuration("JOB_STUCK_AFTER", 10*time.Minute),
			WebhookRetryBatchSize: getEnvInt("JOB_WEBHOOK_RETRY_BATCH_SIZE", 25),
			WebhookRetryMaxAge:    getEnvDuration("JOB_WEBHOOK_RETRY_MAX_AGE", 24*time.Hour),
			WebhookCleanupAfter:   getEnvDuration("JOB_WEBHOOK_CLEANUP_AFTER", 720*time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.JWT.Secret == "change-this-secret" && c.App.Environment == "production" {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	if c.App.Environment == "production" {
		if _, ok := c.Webhook.SecretFor("paystack"); !ok {
			return fmt.Errorf("WEBHOOK_SECRET_PAYSTACK must be set in production")
		}
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}
