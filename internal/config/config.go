package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"pennywise/internal/budget"
)

// Config holds application configuration
type Config struct {
	// Server
	Env      string
	Port     string
	LogLevel string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Auth
	JWTSecret      string
	InternalAPIKey string

	// Ledger
	ReferenceTimezone     string
	CategoryNameMaxLength int
	ReservedCategoryNames []string

	// Events
	AMQPURL      string
	AMQPExchange string
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	defaults := budget.DefaultNamingRules()

	config := &Config{
		// Server
		Env:      getEnv("ENV", "development"),
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Database
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "pennywise"),
		DBPassword: getEnv("DB_PASSWORD", "pennywise"),
		DBName:     getEnv("DB_NAME", "pennywise"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		// Auth
		JWTSecret:      getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),
		InternalAPIKey: getEnv("INTERNAL_API_KEY", ""),

		// Ledger
		ReferenceTimezone:     getEnv("REFERENCE_TIMEZONE", "Pacific/Kiritimati"),
		ReservedCategoryNames: splitList(getEnv("CATEGORY_RESERVED_NAMES", strings.Join(defaults.Reserved, ","))),

		// Events
		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "pennywise.ledger"),
	}

	maxLen, err := strconv.Atoi(getEnv("CATEGORY_NAME_MAX_LENGTH", strconv.Itoa(defaults.MaxLength)))
	if err != nil || maxLen < 1 {
		return nil, fmt.Errorf("invalid CATEGORY_NAME_MAX_LENGTH: %q", os.Getenv("CATEGORY_NAME_MAX_LENGTH"))
	}
	config.CategoryNameMaxLength = maxLen

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// NamingRules returns the category naming rules described by the configuration.
func (c *Config) NamingRules() budget.NamingRules {
	return budget.NamingRules{
		MaxLength: c.CategoryNameMaxLength,
		Reserved:  append([]string(nil), c.ReservedCategoryNames...),
	}
}

// Location returns the reference timezone. It decides which periods are in
// the future and where calendar months of transactions begin.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.ReferenceTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid REFERENCE_TIMEZONE %q: %w", c.ReferenceTimezone, err)
	}
	return loc, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
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
