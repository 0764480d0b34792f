// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	DBPath         string
	AllowedOrigins []string
	SeedSchedule   bool
	SeedDays       int
	Routing        RoutingConfig
	Oracle         OracleConfig
}

// RoutingConfig bounds the coordinator state machine.
type RoutingConfig struct {
	// MaxTurns is the coordinator's turn budget.
	MaxTurns int
	// MaxSteps is the driving loop's hard ceiling, independent of MaxTurns.
	MaxSteps int
}

// OracleConfig configures the decision oracle client.
type OracleConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	RequestTimeout time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		DBPath:         getEnv("DB_PATH", "./data/clinicdesk.db"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "*")),
		SeedSchedule:   getEnvBool("SEED_SCHEDULE", true),
		SeedDays:       getEnvInt("SEED_DAYS", 14),
		Routing: RoutingConfig{
			MaxTurns: getEnvInt("MAX_TURNS", 8),
			MaxSteps: getEnvInt("MAX_STEPS", 30),
		},
		Oracle: OracleConfig{
			BaseURL:        getEnv("ORACLE_BASE_URL", "https://api.groq.com/openai/v1"),
			APIKey:         getEnv("ORACLE_API_KEY", ""),
			Model:          getEnv("ORACLE_MODEL", "openai/gpt-oss-120b"),
			RequestTimeout: getEnvDuration("ORACLE_TIMEOUT", 30*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Routing.MaxTurns <= 0 {
		return fmt.Errorf("MAX_TURNS must be > 0")
	}
	if c.Routing.MaxSteps < c.Routing.MaxTurns {
		return fmt.Errorf("MAX_STEPS must be >= MAX_TURNS")
	}
	if c.SeedDays <= 0 {
		return fmt.Errorf("SEED_DAYS must be > 0")
	}
	if c.Oracle.Model == "" {
		return fmt.Errorf("ORACLE_MODEL cannot be empty")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
