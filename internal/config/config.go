package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	AppPort    string
	AppEnv     string

	// PayU merchant credentials. The key/salt pair signs every outbound
	// payment request and verifies every inbound callback.
	PayUKey  string
	PayUSalt string

	// Public base URL of this service; surl/furl sent to the gateway are
	// derived from it and both point at the callback endpoint.
	CallbackBaseURL string

	// How long a payment may sit in PENDING before the sweeper polls the
	// gateway and resolves it.
	PaymentTimeout time.Duration
	SweepInterval  time.Duration

	CORSOrigins []string
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:          os.Getenv("DB_HOST"),
		DBUser:          os.Getenv("DB_USER"),
		DBPassword:      os.Getenv("DB_PASSWORD"),
		DBName:          os.Getenv("DB_NAME"),
		DBPort:          os.Getenv("DB_PORT"),
		AppPort:         os.Getenv("APP_PORT"),
		AppEnv:          os.Getenv("APP_ENV"),
		PayUKey:         os.Getenv("PAYU_MERCHANT_KEY"),
		PayUSalt:        os.Getenv("PAYU_MERCHANT_SALT"),
		CallbackBaseURL: os.Getenv("CALLBACK_BASE_URL"),
		PaymentTimeout:  envMinutes("PAYMENT_TIMEOUT_MINUTES", 30*time.Minute),
		SweepInterval:   envMinutes("PAYMENT_SWEEP_INTERVAL_MINUTES", 5*time.Minute),
	}

	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = []string{origins}
	}

	if cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}

	return cfg
}

func envMinutes(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if minutes, err := strconv.Atoi(v); err == nil && minutes > 0 {
			return time.Duration(minutes) * time.Minute
		}
	}
	return def
}
