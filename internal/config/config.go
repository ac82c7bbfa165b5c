// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/custodia-dev/custodia/internal/escrow"
	"github.com/custodia-dev/custodia/internal/fees"
	"github.com/custodia-dev/custodia/internal/validation"
)

// Config holds all application configuration.
type Config struct {
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "json" or "text"

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Custody settings
	ContractOwner        string // principal allowed to arbitrate and administer
	FeeRecipient         string // principal receiving settlement fees
	FeeBps               int64
	MinEscrowAmount      int64
	DefaultTimeoutPeriod int64 // logical ticks
	EscrowsEnabled       bool

	// Tracing
	OTLPEndpoint string
}

// Defaults.
const (
	DefaultEnv           = "development"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
	DefaultMinAmount     = 1
	DefaultTimeoutPeriod = 2016
)

// Load reads configuration from environment variables.
// It loads a .env file if present (for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:                  getEnv("ENV", DefaultEnv),
		LogLevel:             getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:            getEnv("LOG_FORMAT", DefaultLogFormat),
		DatabaseURL:          os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		ContractOwner:        validation.SanitizePrincipal(os.Getenv("CONTRACT_OWNER")),
		FeeRecipient:         validation.SanitizePrincipal(os.Getenv("FEE_RECIPIENT")),
		FeeBps:               getEnvInt64("FEE_BPS", fees.DefaultFeeBps),
		MinEscrowAmount:      getEnvInt64("MIN_ESCROW_AMOUNT", DefaultMinAmount),
		DefaultTimeoutPeriod: getEnvInt64("DEFAULT_TIMEOUT_PERIOD", DefaultTimeoutPeriod),
		EscrowsEnabled:       getEnvBool("ESCROWS_ENABLED", true),
		OTLPEndpoint:         os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and coherent.
func (c *Config) Validate() error {
	if c.ContractOwner == "" {
		return fmt.Errorf("CONTRACT_OWNER is required")
	}
	if !validation.IsValidPrincipal(c.ContractOwner) {
		return fmt.Errorf("CONTRACT_OWNER must be a valid principal")
	}
	if c.FeeRecipient == "" {
		return fmt.Errorf("FEE_RECIPIENT is required")
	}
	if !validation.IsValidPrincipal(c.FeeRecipient) {
		return fmt.Errorf("FEE_RECIPIENT must be a valid principal")
	}
	if c.FeeBps < 0 || c.FeeBps > fees.BpsDivisor {
		return fmt.Errorf("FEE_BPS must be between 0 and %d", fees.BpsDivisor)
	}
	if c.MinEscrowAmount < 1 {
		return fmt.Errorf("MIN_ESCROW_AMOUNT must be at least 1")
	}
	if c.DefaultTimeoutPeriod < 1 {
		return fmt.Errorf("DEFAULT_TIMEOUT_PERIOD must be at least 1 tick")
	}
	return nil
}

// EscrowParams maps the custody settings onto escrow service parameters.
func (c *Config) EscrowParams() escrow.Params {
	return escrow.Params{
		Owner:                c.ContractOwner,
		FeeRecipient:         c.FeeRecipient,
		FeeBps:               c.FeeBps,
		MinEscrowAmount:      c.MinEscrowAmount,
		DefaultTimeoutPeriod: c.DefaultTimeoutPeriod,
		Enabled:              c.EscrowsEnabled,
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
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
