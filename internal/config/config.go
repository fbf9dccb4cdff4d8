package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Checkout CheckoutConfig
	Cache    CacheConfig
	Events   EventsConfig
	Catalog  CatalogConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxConnections  int
	MinConnections  int
	MaxConnLifetime int // seconds

	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration

	// StatementTimeout and LockTimeout apply to every session. Zero disables.
	StatementTimeout time.Duration
	LockTimeout      time.Duration
	ApplicationName  string

	// AutoMigrate applies pending schema migrations when the pool opens.
	AutoMigrate bool
}

// LoggerConfig holds logger-related configuration.
type LoggerConfig struct {
	Level  string
	Format string // "json" or "console"
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	AdminAPIKey  string
	JWTSecret    string
	SessionTTL   time.Duration
	SecureCookie bool

	// PaymentCallbackSecret is shared with the payment gateway and must
	// accompany every callback.
	PaymentCallbackSecret string
}

// CheckoutConfig holds pricing rules applied when an order is placed.
type CheckoutConfig struct {
	FreeShippingThreshold int64 // subtotal strictly above this ships free
	ShippingFee           int64
	Currency              string
	OrderNumberPrefix     string
}

// CacheConfig holds Redis product cache configuration. Empty Addr disables it.
type CacheConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Enabled reports whether the product cache should be used.
func (c CacheConfig) Enabled() bool {
	return c.Addr != ""
}

// EventsConfig holds outbox relay configuration. No brokers disables the relay.
type EventsConfig struct {
	Brokers       []string
	Topic         string
	RelayInterval time.Duration
	BatchSize     int
}

// Enabled reports whether events should be relayed to Kafka.
func (c EventsConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

// CatalogConfig holds catalogue import configuration.
type CatalogConfig struct {
	S3Enabled bool
	Bucket    string
	Region    string
	Prefix    string // Path prefix within bucket (e.g., "catalog/")
}

// Load loads configuration from environment variables. A .env file in the
// working directory, when present, is applied first without overriding
// variables that are already set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "storefront"),
			MaxConnections:  getEnvAsInt("DB_MAX_CONNECTIONS", 25),
			MinConnections:  getEnvAsInt("DB_MIN_CONNECTIONS", 5),
			MaxConnLifetime: getEnvAsInt("DB_MAX_CONN_LIFETIME", 300),

			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 10*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 30*time.Second),
			StatementTimeout:  getEnvAsDuration("DB_STATEMENT_TIMEOUT", 5*time.Second),
			LockTimeout:       getEnvAsDuration("DB_LOCK_TIMEOUT", 2*time.Second),
			ApplicationName:   getEnv("DB_APPLICATION_NAME", "storefront"),
			AutoMigrate:       getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			AdminAPIKey:  getEnv("ADMIN_API_KEY", ""),
			JWTSecret:    getEnv("JWT_SECRET", ""),
			SessionTTL:   getEnvAsDuration("SESSION_TTL", 7*24*time.Hour),
			SecureCookie: getEnvAsBool("SECURE_COOKIE", true),

			PaymentCallbackSecret: getEnv("PAYMENT_CALLBACK_SECRET", ""),
		},
		Checkout: CheckoutConfig{
			FreeShippingThreshold: int64(getEnvAsInt("FREE_SHIPPING_THRESHOLD", 1000)),
			ShippingFee:           int64(getEnvAsInt("SHIPPING_FEE", 99)),
			Currency:              getEnv("CURRENCY", "INR"),
			OrderNumberPrefix:     getEnv("ORDER_NUMBER_PREFIX", "ORD"),
		},
		Cache: CacheConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			TTL:      getEnvAsDuration("PRODUCT_CACHE_TTL", 5*time.Minute),
		},
		Events: EventsConfig{
			Brokers:       getEnvAsList("KAFKA_BROKERS"),
			Topic:         getEnv("KAFKA_ORDER_TOPIC", "storefront.orders"),
			RelayInterval: getEnvAsDuration("OUTBOX_RELAY_INTERVAL", 2*time.Second),
			BatchSize:     getEnvAsInt("OUTBOX_BATCH_SIZE", 100),
		},
		Catalog: CatalogConfig{
			S3Enabled: getEnvAsBool("CATALOG_S3_ENABLED", false),
			Bucket:    getEnv("CATALOG_S3_BUCKET", ""),
			Region:    getEnv("CATALOG_S3_REGION", "ap-south-1"),
			Prefix:    getEnv("CATALOG_S3_PREFIX", "catalog/"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}

	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	if c.Database.MinConnections < 1 {
		return fmt.Errorf("database min connections must be at least 1")
	}

	if c.Database.MinConnections > c.Database.MaxConnections {
		return fmt.Errorf("database min connections cannot exceed max connections")
	}

	if c.Database.StatementTimeout < 0 || c.Database.LockTimeout < 0 {
		return fmt.Errorf("database timeouts must not be negative")
	}

	if c.Database.StatementTimeout > 0 && c.Database.LockTimeout > c.Database.StatementTimeout {
		return fmt.Errorf("database lock timeout cannot exceed statement timeout")
	}

	if c.Auth.AdminAPIKey == "" {
		return fmt.Errorf("admin API key is required")
	}

	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}

	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Logger.Format)
	}

	if c.Checkout.FreeShippingThreshold < 0 || c.Checkout.ShippingFee < 0 {
		return fmt.Errorf("shipping threshold and fee must not be negative")
	}

	if len(c.Checkout.Currency) != 3 {
		return fmt.Errorf("invalid currency code: %q", c.Checkout.Currency)
	}

	if c.Checkout.OrderNumberPrefix == "" {
		return fmt.Errorf("order number prefix is required")
	}

	if c.Events.Enabled() {
		if c.Events.Topic == "" {
			return fmt.Errorf("kafka topic is required when brokers are configured")
		}
		if c.Events.RelayInterval <= 0 || c.Events.BatchSize < 1 {
			return fmt.Errorf("outbox relay interval and batch size must be positive")
		}
	}

	if c.Catalog.S3Enabled {
		if c.Catalog.Bucket == "" {
			return fmt.Errorf("S3 bucket is required when S3 is enabled")
		}
		if c.Catalog.Region == "" {
			return fmt.Errorf("S3 region is required when S3 is enabled")
		}
	}

	if c.Auth.PaymentCallbackSecret == "" {
		return fmt.Errorf("payment callback secret is required")
	}

	return nil
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// Address returns the server address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration retrieves an environment variable as a time.Duration or returns a default value.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated environment variable, dropping blanks.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
