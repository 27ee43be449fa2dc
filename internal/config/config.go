package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	Logger LoggerConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	RedisAddr     string
	RedisPassword string

	SMTP SMTPConfig

	Paystack  PaystackConfig
	Wholesale WholesaleConfig

	UsagePoll   UsagePollConfig
	CatalogSync CatalogSyncConfig
}

type LoggerConfig struct {
	Level string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type PaystackConfig struct {
	BaseURL     string
	SecretKey   string
	CallbackURL string
}

type WholesaleConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	WebhookURL   string
}

type UsagePollConfig struct {
	Interval    time.Duration
	BatchSize   int
	Concurrency int
	MaxRetries  int
	LockTTL     time.Duration
}

type CatalogSyncConfig struct {
	Interval    time.Duration
	PageSize    int
	MinInterval time.Duration
	MaxRetries  int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "simroam"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		Logger: LoggerConfig{
			Level: getenv("LOG_LEVEL", "info"),
		},
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "simroam"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		RedisAddr:         getenv("REDIS_ADDR", ""),
		RedisPassword:     getenv("REDIS_PASSWORD", ""),
		SMTP: SMTPConfig{
			Host:     getenv("SMTP_HOST", ""),
			Port:     getenvInt("SMTP_PORT", 587),
			Username: getenv("SMTP_USERNAME", ""),
			Password: getenv("SMTP_PASSWORD", ""),
			From:     getenv("SMTP_FROM", "no-reply@simroam.io"),
		},
		Paystack: PaystackConfig{
			BaseURL:     getenv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
			SecretKey:   strings.TrimSpace(getenv("PAYSTACK_SECRET_KEY", "")),
			CallbackURL: getenv("PAYSTACK_CALLBACK_URL", ""),
		},
		Wholesale: WholesaleConfig{
			BaseURL:      getenv("WHOLESALE_BASE_URL", ""),
			ClientID:     strings.TrimSpace(getenv("WHOLESALE_CLIENT_ID", "")),
			ClientSecret: strings.TrimSpace(getenv("WHOLESALE_CLIENT_SECRET", "")),
			WebhookURL:   getenv("WHOLESALE_WEBHOOK_URL", ""),
		},
		UsagePoll: UsagePollConfig{
			Interval:    getenvDuration("USAGE_POLL_INTERVAL", 5*time.Minute),
			BatchSize:   getenvInt("USAGE_POLL_BATCH_SIZE", 50),
			Concurrency: getenvInt("USAGE_POLL_CONCURRENCY", 10),
			MaxRetries:  getenvInt("USAGE_POLL_MAX_RETRIES", 3),
			LockTTL:     getenvDuration("USAGE_POLL_LOCK_TTL", 10*time.Minute),
		},
		CatalogSync: CatalogSyncConfig{
			Interval:    getenvDuration("CATALOG_SYNC_INTERVAL", 24*time.Hour),
			PageSize:    getenvInt("CATALOG_SYNC_PAGE_SIZE", 100),
			MinInterval: getenvDuration("CATALOG_SYNC_MIN_INTERVAL", 1500*time.Millisecond),
			MaxRetries:  getenvInt("CATALOG_SYNC_MAX_RETRIES", 3),
		},
	}
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
