package config

import (
	"os"
	"strconv"
	"time"

	"raffle/internal/cache"
	"raffle/internal/database"
	"raffle/internal/external"
	"raffle/internal/messaging"

	"github.com/shopspring/decimal"
)

// Config содержит конфигурацию приложения
type Config struct {
	Port           string
	GinMode        string
	LogLevel       string
	LogFormat      string
	RequestTimeout time.Duration

	Database database.Config
	NATS     messaging.Config
	Redis    cache.Config
	Payment  external.PaymentConfig
	Checkout CheckoutConfig
}

type CheckoutConfig struct {
	// ReservationTTL is how long a pending order holds its tickets
	ReservationTTL time.Duration
	SweepInterval  time.Duration
	SweepBatch     int
	MaxDeposit     decimal.Decimal
}

// Load загружает конфигурацию из переменных окружения
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8081"),
		GinMode:        getEnv("GIN_MODE", "release"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SEC", 30)) * time.Second,

		Database: database.Config{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "raffle"),
			Password:           getEnv("DB_PASSWORD", "raffle"),
			DBName:             getEnv("DB_NAME", "raffle"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetimeMin: getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
			ConnMaxIdleTimeMin: getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 1),
		},

		NATS: messaging.Config{
			Enabled:   getEnvBool("NATS_ENABLED", true),
			URL:       getEnv("NATS_URL", "nats://localhost:4222"),
			ClusterID: getEnv("NATS_CLUSTER_ID", "raffle"),
			ClientID:  getEnv("NATS_CLIENT_ID", "raffle-api"),
		},

		Redis: cache.Config{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},

		Payment: external.PaymentConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			Currency:      getEnv("PAYMENT_CURRENCY", "gbp"),
			Timeout:       time.Duration(getEnvInt("PAYMENT_TIMEOUT_SEC", 15)) * time.Second,
		},

		Checkout: CheckoutConfig{
			ReservationTTL: time.Duration(getEnvInt("RESERVATION_TTL_MIN", 15)) * time.Minute,
			SweepInterval:  time.Duration(getEnvInt("EXPIRATION_SWEEP_SEC", 30)) * time.Second,
			SweepBatch:     getEnvInt("EXPIRATION_SWEEP_BATCH", 200),
			MaxDeposit:     getEnvDecimal("WALLET_MAX_DEPOSIT", "500"),
		},
	}
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает целочисленное значение переменной окружения
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDecimal(key, defaultValue string) decimal.Decimal {
	if d, err := decimal.NewFromString(getEnv(key, defaultValue)); err == nil {
		return d
	}
	return decimal.RequireFromString(defaultValue)
}
