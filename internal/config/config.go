package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"expenses/internal/core"
)

const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

type Config struct {
	// MCP surface
	ServerName string
	Transport  string
	HTTPAddr   string
	HTTPPath   string
	LogLevel   string

	// Requests per client per minute on the HTTP transport; 0 disables limiting
	HTTPRateLimit int

	// Storage
	DBPath         string
	CategoriesPath string

	// Amount policy
	AllowNegativeAmounts bool
	AmountDecimals       int

	// AMQP (empty URL disables event publishing)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets mirror
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// Export worker
	ExportBatchSize int
	ExportInterval  time.Duration

	// Proxy
	ProxyRemoteURL string
}

// Load reads the configuration from the environment. Relative paths are
// resolved against the working directory so every component sees the same file.
func Load() *Config {
	cfg := &Config{
		ServerName: getEnv("MCP_SERVER_NAME", "Expense Tracker"),
		Transport:  strings.ToLower(getEnv("MCP_TRANSPORT", TransportStdio)),
		HTTPAddr:   getEnv("MCP_HTTP_ADDR", "0.0.0.0:8000"),
		HTTPPath:   getEnv("MCP_HTTP_PATH", "/mcp"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		HTTPRateLimit: getEnvInt("MCP_HTTP_RATE_LIMIT", 0),

		DBPath:         resolvePath(getEnv("EXPENSES_DB_PATH", "expenses.db")),
		CategoriesPath: resolvePath(getEnv("EXPENSES_CATEGORIES_PATH", "categories.json")),

		AllowNegativeAmounts: getEnvBool("EXPENSES_ALLOW_NEGATIVE", true),
		AmountDecimals:       getEnvInt("EXPENSES_AMOUNT_DECIMALS", -1),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "expenses"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "expense_added"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Expenses"),

		ExportBatchSize: getEnvInt("EXPORT_BATCH_SIZE", 10),
		ExportInterval:  getEnvDuration("EXPORT_INTERVAL", 30*time.Second),

		ProxyRemoteURL: getEnv("PROXY_REMOTE_URL", ""),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	switch c.Transport {
	case TransportStdio:
	case TransportHTTP:
		if _, port, err := net.SplitHostPort(c.HTTPAddr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid HTTP address '%s': %v", c.HTTPAddr, err))
		} else if p, err := strconv.Atoi(port); err != nil || p < 0 || p > 65535 {
			errors = append(errors, fmt.Sprintf("invalid HTTP port '%s': must be between 0 and 65535", port))
		}
		if !strings.HasPrefix(c.HTTPPath, "/") {
			errors = append(errors, fmt.Sprintf("invalid HTTP path '%s': must start with '/'", c.HTTPPath))
		}
		if c.HTTPRateLimit < 0 {
			errors = append(errors, fmt.Sprintf("invalid HTTP rate limit %d: must be 0 (disabled) or positive", c.HTTPRateLimit))
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid transport '%s': must be one of [%s %s]", c.Transport, TransportStdio, TransportHTTP))
	}

	if c.DBPath == "" {
		errors = append(errors, "database path cannot be empty")
	}
	if c.CategoriesPath == "" {
		errors = append(errors, "categories path cannot be empty")
	}

	if c.AmountDecimals < -1 || c.AmountDecimals > 8 {
		errors = append(errors, fmt.Sprintf("invalid amount decimals %d: must be -1 (no rounding) or between 0 and 8", c.AmountDecimals))
	}

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

	if c.GoogleSpreadsheetID != "" && c.GoogleSheetName == "" {
		errors = append(errors, "Google Sheet name is required when a spreadsheet ID is provided")
	}

	if c.ExportBatchSize < 1 || c.ExportBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid export batch size %d: must be between 1 and 1000", c.ExportBatchSize))
	}
	if c.ExportInterval < time.Second || c.ExportInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid export interval %v: must be between 1s and 24h", c.ExportInterval))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateProxy checks the settings the forwarding proxy needs.
func (c *Config) ValidateProxy() error {
	var errors []string

	if c.ProxyRemoteURL == "" {
		errors = append(errors, "PROXY_REMOTE_URL is required")
	} else if u, err := url.Parse(c.ProxyRemoteURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid remote URL '%s': %v", c.ProxyRemoteURL, err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid remote URL scheme '%s': must be 'http' or 'https'", u.Scheme))
	}

	if c.Transport != TransportStdio && c.Transport != TransportHTTP {
		errors = append(errors, fmt.Sprintf("invalid transport '%s': must be one of [%s %s]", c.Transport, TransportStdio, TransportHTTP))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateWorker checks the settings the spreadsheet export worker needs.
// Without GOOGLE_SPREADSHEET_ID the worker exports to an in-memory sheet.
func (c *Config) ValidateWorker() error {
	if err := c.Validate(); err != nil {
		return err
	}
	var errors []string
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for the export worker")
	}
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// AmountPolicy returns the amount rules configured for add_expense.
func (c *Config) AmountPolicy() core.AmountPolicy {
	return core.AmountPolicy{
		AllowNegative: c.AllowNegativeAmounts,
		Decimals:      int32(c.AmountDecimals),
	}
}

func resolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
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
