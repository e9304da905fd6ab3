package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nikolayk812/restaurant-checkout/internal/pricing"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

type Config struct {
	AppEnv   string
	LogLevel string
	HTTPPort string

	DatabaseURL   string
	RunMigrations bool
	RedisAddr     string

	JWTSecret   string
	EdgeBaseURL string
	EdgeAnonKey string

	Currency currency.Unit
	Pricing  pricing.Config

	ErrorNoticeTTL   time.Duration
	RealtimeDebounce time.Duration
	ClearCartDelay   time.Duration
	RedirectDelay    time.Duration

	OutboxInterval    time.Duration
	OutboxMaxAttempts int
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	// a missing .env is the normal case outside local development
	_ = godotenv.Load()

	return FromEnv()
}

func FromEnv() (Config, error) {
	var errs []error

	cur, err := currency.ParseISO(getEnv("CURRENCY", "USD"))
	if err != nil {
		errs = append(errs, fmt.Errorf("CURRENCY: %w", err))
	}

	defaults := pricing.DefaultConfig()
	cfg := Config{
		AppEnv:   getEnv("APP_ENV", "prod"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		HTTPPort: getEnv("HTTP_PORT", "8080"),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RunMigrations: getBoolEnv("RUN_MIGRATIONS", true, &errs),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		EdgeBaseURL: getEnv("EDGE_BASE_URL", ""),
		EdgeAnonKey: getEnv("EDGE_ANON_KEY", ""),

		Currency: cur,
		Pricing: pricing.Config{
			FreeShippingThreshold: getDecimalEnv("FREE_SHIPPING_THRESHOLD", defaults.FreeShippingThreshold, &errs),
			ShippingFee:           getDecimalEnv("SHIPPING_FEE", defaults.ShippingFee, &errs),
			TaxRate:               getDecimalEnv("TAX_RATE", defaults.TaxRate, &errs),
		},

		ErrorNoticeTTL:   getDurationEnv("ERROR_NOTICE_TTL", 5*time.Second, &errs),
		RealtimeDebounce: getDurationEnv("REALTIME_DEBOUNCE", 500*time.Millisecond, &errs),
		ClearCartDelay:   getDurationEnv("CLEAR_CART_DELAY", 500*time.Millisecond, &errs),
		RedirectDelay:    getDurationEnv("REDIRECT_DELAY", 1500*time.Millisecond, &errs),

		OutboxInterval:    getDurationEnv("OUTBOX_INTERVAL", time.Second, &errs),
		OutboxMaxAttempts: getIntEnv("OUTBOX_MAX_ATTEMPTS", 5, &errs),
	}

	if cfg.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is empty"))
	}
	if cfg.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is empty"))
	}
	if cfg.EdgeBaseURL == "" {
		errs = append(errs, errors.New("EDGE_BASE_URL is empty"))
	}
	if cfg.Pricing.TaxRate.IsNegative() || cfg.Pricing.ShippingFee.IsNegative() {
		errs = append(errs, errors.New("TAX_RATE and SHIPPING_FEE must not be negative"))
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) IsDev() bool {
	return c.AppEnv == "dev"
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getIntEnv(key string, fallback int, errs *[]error) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		*errs = append(*errs, fmt.Errorf("%s: invalid positive integer %q", key, value))
		return fallback
	}
	return parsed
}

func getBoolEnv(key string, fallback bool, errs *[]error) bool {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return parsed
}

// getDurationEnv accepts Go durations ("500ms", "1.5s").
func getDurationEnv(key string, fallback time.Duration, errs *[]error) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}

	parsed, err := time.ParseDuration(value)
	if err != nil || parsed < 0 {
		*errs = append(*errs, fmt.Errorf("%s: invalid duration %q", key, value))
		return fallback
	}
	return parsed
}

func getDecimalEnv(key string, fallback decimal.Decimal, errs *[]error) decimal.Decimal {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}

	parsed, err := decimal.NewFromString(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return parsed
}
