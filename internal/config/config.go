package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"billremind/internal/holiday"
)

type Config struct {
	// HTTP Server
	Port     string
	LogLevel string

	// Database
	DataBackend  string
	SQLiteDBPath string
	DatabaseURL  string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets ledger
	GoogleSpreadsheetID   string
	GoogleLedgerSheetName string

	// Messaging
	MessagingProvider    string
	DigisacAPIURL        string
	DigisacAPIToken      string
	TwilioAccountSID     string
	TwilioAuthToken      string
	TwilioFromNumber     string
	TwilioWhatsAppNumber string

	// Billing run
	BillingCron              string
	BillingWorkers           int
	DelinquencyToleranceDays int
	CompanyName              string

	// Holidays
	HolidaysFixed         string
	HolidaysEasterOffsets string
	HolidayPreloadYears   int

	// Caches
	TemplateCacheSize    int
	TemplateCacheTTL     time.Duration
	CacheCleanupInterval time.Duration
}

var (
	validBackends  = []string{"memory", "postgres", "sqlite"}
	validProviders = []string{"digisac", "log", "twilio"}
)

func Load() *Config {
	cfg := &Config{
		Port:     getEnv("PORT", "8081"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/billremind.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "billing"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "reminders_sent"),

		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleLedgerSheetName: getEnv("GOOGLE_LEDGER_SHEET_NAME", "Cobranças"),

		MessagingProvider:    getEnv("MESSAGING_PROVIDER", "log"),
		DigisacAPIURL:        getEnv("DIGISAC_API_URL", ""),
		DigisacAPIToken:      getEnv("DIGISAC_API_TOKEN", ""),
		TwilioAccountSID:     getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:      getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber:     getEnv("TWILIO_FROM_NUMBER", ""),
		TwilioWhatsAppNumber: getEnv("TWILIO_WHATSAPP_NUMBER", ""),

		BillingCron:              getEnv("BILLING_CRON", "0 9 * * *"),
		BillingWorkers:           getEnvInt("BILLING_WORKERS", 4),
		DelinquencyToleranceDays: getEnvInt("DELINQUENCY_TOLERANCE_DAYS", 30),
		CompanyName:              getEnv("COMPANY_NAME", ""),

		HolidaysFixed:         getEnv("HOLIDAYS_FIXED", ""),
		HolidaysEasterOffsets: getEnv("HOLIDAYS_EASTER_OFFSETS", ""),
		HolidayPreloadYears:   getEnvInt("HOLIDAY_PRELOAD_YEARS", 2),

		TemplateCacheSize:    getEnvInt("TEMPLATE_CACHE_SIZE", 64),
		TemplateCacheTTL:     getEnvDuration("TEMPLATE_CACHE_TTL", 10*time.Minute),
		CacheCleanupInterval: getEnvDuration("CACHE_CLEANUP_INTERVAL", 5*time.Minute),
	}

	return cfg
}

// HolidayRules parses the configured holiday rules.
func (c *Config) HolidayRules() (holiday.Rules, error) {
	return holiday.ParseRules(c.HolidaysFixed, c.HolidaysEasterOffsets)
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate data backend
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			// Check if directory exists or can be created
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errors = append(errors, "invalid DATABASE_URL: must be a postgres:// URL")
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate messaging provider
	switch c.MessagingProvider {
	case "digisac":
		if c.DigisacAPIURL == "" || c.DigisacAPIToken == "" {
			errors = append(errors, "DIGISAC_API_URL and DIGISAC_API_TOKEN are required for the digisac provider")
		}
	case "twilio":
		if c.TwilioAccountSID == "" || c.TwilioAuthToken == "" {
			errors = append(errors, "TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN are required for the twilio provider")
		}
		if c.TwilioFromNumber == "" && c.TwilioWhatsAppNumber == "" {
			errors = append(errors, "TWILIO_FROM_NUMBER or TWILIO_WHATSAPP_NUMBER is required for the twilio provider")
		}
	case "log":
	default:
		errors = append(errors, fmt.Sprintf("invalid messaging provider '%s': must be one of %v", c.MessagingProvider, validProviders))
	}

	// Validate billing run
	if _, err := cron.ParseStandard(c.BillingCron); err != nil {
		errors = append(errors, fmt.Sprintf("invalid billing cron '%s': %v", c.BillingCron, err))
	}
	if c.BillingWorkers < 1 || c.BillingWorkers > 64 {
		errors = append(errors, fmt.Sprintf("invalid billing workers %d: must be between 1 and 64", c.BillingWorkers))
	}
	if c.DelinquencyToleranceDays < 1 {
		errors = append(errors, fmt.Sprintf("invalid delinquency tolerance %d: must be at least 1 day", c.DelinquencyToleranceDays))
	}

	// Validate holidays
	if _, err := c.HolidayRules(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid holiday rules: %v", err))
	}
	if c.HolidayPreloadYears < 0 || c.HolidayPreloadYears > 50 {
		errors = append(errors, fmt.Sprintf("invalid holiday preload years %d: must be between 0 and 50", c.HolidayPreloadYears))
	}

	// Validate caches
	if c.TemplateCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid template cache size %d: must be at least 1", c.TemplateCacheSize))
	}
	if c.TemplateCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid template cache TTL %v: must be at least 1 second", c.TemplateCacheTTL))
	}
	if c.CacheCleanupInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache cleanup interval %v: must be at least 1 second", c.CacheCleanupInterval))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
