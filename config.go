package main

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

const (
	backendMemory   = "memory"
	backendPostgres = "postgres"
)

// Config is read from the environment once at startup.
type Config struct {
	// HTTP server
	Port string

	// Ledger store backend: memory or postgres
	StoreBackend string

	// Postgres. DatabaseDSN overrides the individual parameters.
	DatabaseDSN      string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	AutoMigrate      bool

	// Record listing policy: whether GET /record without a filter is allowed
	AllowUnfilteredRecords bool

	// AMQP event publishing (disabled when URL is empty)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

func loadConfig() *Config {
	return &Config{
		Port:         getEnv("PORT", "8081"),
		StoreBackend: getEnv("STORE_BACKEND", backendMemory),

		DatabaseDSN:      getEnv("DB_DSN", ""),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", ""),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresDB:       getEnv("POSTGRES_DB", ""),
		AutoMigrate:      getEnvBool("DB_AUTO_MIGRATE", true),

		AllowUnfilteredRecords: getEnvBool("RECORDS_ALLOW_UNFILTERED", false),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "fintracker"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_events"),
	}
}

// DSN returns the Postgres connection string, assembled from the POSTGRES_*
// parameters unless DB_DSN was set explicitly.
func (c *Config) DSN() string {
	if c.DatabaseDSN != "" {
		return c.DatabaseDSN
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB)
}

// Validate returns an error describing every invalid setting.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.StoreBackend {
	case backendMemory, backendPostgres:
	default:
		errs = append(errs, fmt.Sprintf("invalid store backend '%s': must be one of [%s %s]",
			c.StoreBackend, backendMemory, backendPostgres))
	}

	if c.StoreBackend == backendPostgres && c.DatabaseDSN == "" {
		if c.PostgresUser == "" {
			errs = append(errs, "POSTGRES_USER is required for the postgres backend")
		}
		if c.PostgresDB == "" {
			errs = append(errs, "POSTGRES_DB is required for the postgres backend")
		}
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "":
		return defaultValue
	case "false", "0", "no":
		return false
	default:
		return true
	}
}
