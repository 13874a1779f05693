package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const DefaultWebhookTolerance = 300 * time.Second

type Config struct {
	HTTPAddr    string
	CORSOrigins string

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBSSLMode  string

	StripeSecretKey     string
	StripeWebhookSecret string
	WebhookTolerance    time.Duration
	WebhookDeduplicate  bool

	PayPalClientID string
	PayPalSecret   string
	PayPalMode     string // "sandbox" | "live"

	DefaultCurrency    string
	CheckoutSuccessURL string
	CheckoutCancelURL  string
	FeeSource          string // "static" | "db"
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:            getenv("HTTP_ADDR", ":8080"),
		CORSOrigins:         getenv("CORS_ORIGINS", "*"),
		DBHost:              os.Getenv("DB_HOST"),
		DBUser:              os.Getenv("DB_USER"),
		DBPassword:          os.Getenv("DB_PASSWORD"),
		DBName:              os.Getenv("DB_NAME"),
		DBPort:              getenv("DB_PORT", "5432"),
		DBSSLMode:           getenv("DB_SSLMODE", "disable"),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		WebhookTolerance:    DefaultWebhookTolerance,
		WebhookDeduplicate:  true,
		PayPalClientID:      os.Getenv("PAYPAL_CLIENT_ID"),
		PayPalSecret:        os.Getenv("PAYPAL_SECRET"),
		PayPalMode:          getenv("PAYPAL_MODE", "sandbox"),
		DefaultCurrency:     strings.ToLower(getenv("DEFAULT_CURRENCY", "eur")),
		CheckoutSuccessURL:  getenv("CHECKOUT_SUCCESS_URL", "http://localhost:5173/checkout/success"),
		CheckoutCancelURL:   getenv("CHECKOUT_CANCEL_URL", "http://localhost:5173/checkout/cancel"),
		FeeSource:           getenv("FEE_SOURCE", "static"),
	}

	if v := os.Getenv("STRIPE_WEBHOOK_TOLERANCE"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("invalid STRIPE_WEBHOOK_TOLERANCE %q", v)
		}
		cfg.WebhookTolerance = time.Duration(secs) * time.Second
	}
	if v := os.Getenv("WEBHOOK_DEDUPLICATE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid WEBHOOK_DEDUPLICATE %q", v)
		}
		cfg.WebhookDeduplicate = b
	}
	return cfg, nil
}

// Validate checks the settings required to serve traffic.
func (c *Config) Validate() error {
	var errs []error
	if c.StripeSecretKey == "" {
		errs = append(errs, errors.New("STRIPE_SECRET_KEY must be set"))
	}
	if c.StripeWebhookSecret == "" {
		errs = append(errs, errors.New("STRIPE_WEBHOOK_SECRET must be set"))
	}
	if c.PayPalMode != "sandbox" && c.PayPalMode != "live" {
		errs = append(errs, fmt.Errorf("PAYPAL_MODE must be sandbox or live, got %q", c.PayPalMode))
	}
	if c.FeeSource != "static" && c.FeeSource != "db" {
		errs = append(errs, fmt.Errorf("FEE_SOURCE must be static or db, got %q", c.FeeSource))
	}
	return errors.Join(errs...)
}

// PayPalEnabled reports whether PayPal credentials were provided.
func (c *Config) PayPalEnabled() bool {
	return c.PayPalClientID != "" && c.PayPalSecret != ""
}

func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode,
	)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
