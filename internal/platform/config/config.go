package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	DatabaseURL        string `validate:"required"`
	Port               string `validate:"required,numeric"`
	IsProduction       bool
	EnableDBCheck      bool
	CORSAllowedOrigins []string
	MigrationsPath     string `validate:"required"`
	SettlementCurrency string `validate:"required,len=3,uppercase"`

	// Redis backs the job scheduler and, when LockBackend is redis, the advisory locks.
	RedisAddr          string
	RedisPassword      string
	RedisDB            int           `validate:"gte=0"`
	LockBackend        string        `validate:"oneof=postgres redis"`
	LockDefaultBackoff time.Duration `validate:"gte=0"`

	// Payment provider
	ProviderBaseURL       string        `validate:"required,url"`
	ProviderAPIKey        string        `validate:"required_if=IsProduction true"`
	ProviderTimeout       time.Duration `validate:"gt=0"`
	ProviderRatePerSecond float64       `validate:"gte=0"`
	ProviderBurst         int           `validate:"gte=1"`

	// Worker
	WorkerPollInterval time.Duration `validate:"gt=0"`
	WorkerBatchSize    int           `validate:"gte=1"`

	EligibilityCacheTTL time.Duration `validate:"gte=0"`
	WebhookRateLimit    string        `validate:"required"` // ulule formatted, e.g. 300-M
	WebhookSecret       string        `validate:"required_if=IsProduction true"`
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	viper.SetDefault("PGSQL_URL", "")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("IS_PRODUCTION", false)
	viper.SetDefault("ENABLE_DB_CHECK", false)
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	viper.SetDefault("MIGRATIONS_PATH", "file://migrations")
	viper.SetDefault("SETTLEMENT_CURRENCY", "USD")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("LOCK_BACKEND", "postgres")
	viper.SetDefault("LOCK_DEFAULT_BACKOFF", "1m")
	viper.SetDefault("PROVIDER_BASE_URL", "http://localhost:8090")
	viper.SetDefault("PROVIDER_API_KEY", "")
	viper.SetDefault("PROVIDER_TIMEOUT", "30s")
	viper.SetDefault("PROVIDER_RATE_PER_SECOND", 20)
	viper.SetDefault("PROVIDER_BURST", 5)
	viper.SetDefault("WORKER_POLL_INTERVAL", "15s")
	viper.SetDefault("WORKER_BATCH_SIZE", 50)
	viper.SetDefault("ELIGIBILITY_CACHE_TTL", "5m")
	viper.SetDefault("WEBHOOK_RATE_LIMIT", "300-M")
	viper.SetDefault("WEBHOOK_SECRET", "")

	// Environment variables override the defaults and the .env file.
	viper.AutomaticEnv()

	cfg := &Config{
		DatabaseURL:           viper.GetString("PGSQL_URL"),
		Port:                  viper.GetString("PORT"),
		IsProduction:          viper.GetBool("IS_PRODUCTION"),
		EnableDBCheck:         viper.GetBool("ENABLE_DB_CHECK"),
		CORSAllowedOrigins:    splitList(viper.GetString("CORS_ALLOWED_ORIGINS")),
		MigrationsPath:        viper.GetString("MIGRATIONS_PATH"),
		SettlementCurrency:    viper.GetString("SETTLEMENT_CURRENCY"),
		RedisAddr:             viper.GetString("REDIS_ADDR"),
		RedisPassword:         viper.GetString("REDIS_PASSWORD"),
		RedisDB:               viper.GetInt("REDIS_DB"),
		LockBackend:           viper.GetString("LOCK_BACKEND"),
		LockDefaultBackoff:    viper.GetDuration("LOCK_DEFAULT_BACKOFF"),
		ProviderBaseURL:       viper.GetString("PROVIDER_BASE_URL"),
		ProviderAPIKey:        viper.GetString("PROVIDER_API_KEY"),
		ProviderTimeout:       viper.GetDuration("PROVIDER_TIMEOUT"),
		ProviderRatePerSecond: viper.GetFloat64("PROVIDER_RATE_PER_SECOND"),
		ProviderBurst:         viper.GetInt("PROVIDER_BURST"),
		WorkerPollInterval:    viper.GetDuration("WORKER_POLL_INTERVAL"),
		WorkerBatchSize:       viper.GetInt("WORKER_BATCH_SIZE"),
		EligibilityCacheTTL:   viper.GetDuration("ELIGIBILITY_CACHE_TTL"),
		WebhookRateLimit:      viper.GetString("WEBHOOK_RATE_LIMIT"),
		WebhookSecret:         viper.GetString("WEBHOOK_SECRET"),
	}

	if cfg.ProviderAPIKey == "" {
		log.Println("Warning: PROVIDER_API_KEY not set. Provider calls will be unauthenticated.")
	}
	if cfg.WebhookSecret == "" {
		log.Println("Warning: WEBHOOK_SECRET not set. Webhook signatures will not be verified.")
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
