package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP panel
	Port string

	// Finance backend
	APIBaseURL string
	APITimeout time.Duration
	LoginURL   string

	// Database
	SQLiteDBPath string

	// Alert polling
	AlertsPollEnabled  bool
	AlertsPollInterval time.Duration

	// Alert websocket stream; 0 disables it
	AlertsStreamMaxClients int

	// Report input cache
	ReportCacheSize int
	ReportCacheTTL  time.Duration

	// Chat
	ChatContextTurns int
	ChatHistoryLimit int

	// AMQP (optional)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets report export (optional)
	GoogleSpreadsheetID   string
	GoogleReportSheetName string

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	cfg := &Config{
		Port: getEnv("PORT", "8082"),

		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:8080/api"),
		APITimeout: getEnvDuration("API_TIMEOUT", 15*time.Second),
		LoginURL:   getEnv("LOGIN_URL", "/login"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/fintrack.db"),

		AlertsPollEnabled:  getEnvBool("ALERTS_POLL_ENABLED", true),
		AlertsPollInterval: getEnvDuration("ALERTS_POLL_INTERVAL", 60*time.Second),

		AlertsStreamMaxClients: getEnvInt("ALERTS_STREAM_MAX_CLIENTS", 32),

		ReportCacheSize: getEnvInt("REPORT_CACHE_SIZE", 64),
		ReportCacheTTL:  getEnvDuration("REPORT_CACHE_TTL", 2*time.Minute),

		ChatContextTurns: getEnvInt("CHAT_CONTEXT_TURNS", 10),
		ChatHistoryLimit: getEnvInt("CHAT_HISTORY_LIMIT", 100),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "fintrack"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "alerts_changed"),

		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleReportSheetName: getEnv("GOOGLE_REPORT_SHEET_NAME", "Reports"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	return cfg
}

// AMQPEnabled reports whether change events should be published.
func (c *Config) AMQPEnabled() bool { return c.AMQPURL != "" }

// StreamEnabled reports whether the alert websocket stream is served.
func (c *Config) StreamEnabled() bool { return c.AlertsStreamMaxClients > 0 }

// SheetsEnabled reports whether report export is configured.
func (c *Config) SheetsEnabled() bool { return c.GoogleSpreadsheetID != "" }

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate backend URL
	if c.APIBaseURL == "" {
		errors = append(errors, "API base URL cannot be empty")
	} else if parsedURL, err := url.Parse(c.APIBaseURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid API base URL '%s': %v", c.APIBaseURL, err))
	} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid API base URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
	}

	if c.APITimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid API timeout %v: must be positive", c.APITimeout))
	}

	// Validate SQLite path; create the directory when missing
	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// Validate poll interval even when polling is off; it is used on re-enable
	if c.AlertsPollInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid alerts poll interval %v: must be at least 1 second", c.AlertsPollInterval))
	} else if c.AlertsPollInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid alerts poll interval %v: must be at most 24 hours", c.AlertsPollInterval))
	}

	if c.AlertsStreamMaxClients < 0 {
		errors = append(errors, fmt.Sprintf("invalid alerts stream max clients %d: must not be negative", c.AlertsStreamMaxClients))
	}

	if c.ReportCacheSize < 0 {
		errors = append(errors, fmt.Sprintf("invalid report cache size %d: must not be negative", c.ReportCacheSize))
	}
	if c.ReportCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid report cache TTL %v: must not be negative", c.ReportCacheTTL))
	}

	if c.ChatContextTurns < 0 {
		errors = append(errors, fmt.Sprintf("invalid chat context turns %d: must not be negative", c.ChatContextTurns))
	}
	if c.ChatHistoryLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid chat history limit %d: must be at least 1", c.ChatHistoryLimit))
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

	if c.GoogleSpreadsheetID != "" && c.GoogleReportSheetName == "" {
		errors = append(errors, "Google report sheet name is required when a spreadsheet ID is set")
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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
