package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers for signature sets
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Application   ApplicationConfig
	Storage       StorageConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	KeyCache      KeyCacheConfig
	CORS          CORSConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
	TLS             struct {
		Enabled  bool
		CertFile string
		KeyFile  string
	}
}

// ApplicationConfig names this service. Permittable paths and refresh token
// issuers use the name-version form.
type ApplicationConfig struct {
	Name    string
	Version string
}

// StorageConfig selects where signature sets are kept
type StorageConfig struct {
	Driver string
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// AuthConfig holds token verification and access control settings
type AuthConfig struct {
	Enabled bool

	// System key material. A static key and a JWKS endpoint may both be set;
	// the static key is consulted first.
	SystemKeyTimestamp      string
	SystemPublicKeyModulus  string
	SystemPublicKeyExponent string
	SystemJWKSURL           string
	SystemJWKSCacheTTL      time.Duration

	// AcceptGuestTokensForSystemEndpoints opens the probe endpoints to guests
	AcceptGuestTokensForSystemEndpoints bool

	PermittablesFile        string
	AllowSignatureOverwrite bool
	KeyBits                 int
	RefreshTokenTTL         time.Duration
}

// KeyCacheConfig sizes the tenant public key cache
type KeyCacheConfig struct {
	TTL  time.Duration
	Size int
}

// CORSConfig holds cross-origin settings
type CORSConfig struct {
	AllowedOrigins []string
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or console
	MetricsEnabled bool
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			RequestTimeout:  getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 60*time.Second),
			TLS: struct {
				Enabled  bool
				CertFile string
				KeyFile  string
			}{
				Enabled:  getEnvAsBool("TLS_ENABLED", false),
				CertFile: getEnv("TLS_CERT_FILE", "certs/cert.pem"),
				KeyFile:  getEnv("TLS_KEY_FILE", "certs/key.pem"),
			},
		},
		Application: ApplicationConfig{
			Name:    getEnv("APPLICATION_NAME", "anubis"),
			Version: getEnv("APPLICATION_VERSION", "v1"),
		},
		Storage: StorageConfig{
			Driver: strings.ToLower(getEnv("STORAGE_DRIVER", StorageMemory)),
		},
		Database: loadDatabaseConfig(),
		Auth: AuthConfig{
			Enabled:                             getEnvAsBool("AUTHENTICATION_ENABLED", true),
			SystemKeyTimestamp:                  getEnv("SYSTEM_KEY_TIMESTAMP", ""),
			SystemPublicKeyModulus:              getEnv("SYSTEM_PUBLIC_KEY_MODULUS", ""),
			SystemPublicKeyExponent:             getEnv("SYSTEM_PUBLIC_KEY_EXPONENT", ""),
			SystemJWKSURL:                       getEnv("SYSTEM_JWKS_URL", ""),
			SystemJWKSCacheTTL:                  getEnvAsDuration("SYSTEM_JWKS_CACHE_TTL", 10*time.Minute),
			AcceptGuestTokensForSystemEndpoints: getEnvAsBool("ACCEPT_GUEST_TOKENS_FOR_SYSTEM_ENDPOINTS", false),
			PermittablesFile:                    getEnv("PERMITTABLES_FILE", ""),
			AllowSignatureOverwrite:             getEnvAsBool("ALLOW_SIGNATURE_OVERWRITE", true),
			KeyBits:                             getEnvAsInt("APPLICATION_KEY_BITS", 2048),
			RefreshTokenTTL:                     getEnvAsDuration("REFRESH_TOKEN_TTL", time.Hour),
		},
		KeyCache: KeyCacheConfig{
			TTL:  getEnvAsDuration("KEY_CACHE_TTL", 5*time.Minute),
			Size: getEnvAsInt("KEY_CACHE_SIZE", 1024),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:*", "https://*"}),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.Application.Name == "" {
		return fmt.Errorf("application name is required")
	}

	switch c.Storage.Driver {
	case StorageMemory:
	case StoragePostgres:
		// Database validation (DATABASE_URL or DB_* vars)
		if c.Database.ConnectionString == "" && c.Database.Host == "" {
			return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
		}
		if c.Database.ConnectionString == "" {
			if c.Database.User == "" {
				return fmt.Errorf("database user is required")
			}
			if c.Database.Database == "" {
				return fmt.Errorf("database name is required")
			}
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	hasStaticKey := c.Auth.SystemPublicKeyModulus != "" || c.Auth.SystemPublicKeyExponent != ""
	if hasStaticKey && (c.Auth.SystemPublicKeyModulus == "" || c.Auth.SystemPublicKeyExponent == "") {
		return fmt.Errorf("system public key needs both modulus and exponent")
	}

	if c.IsProduction() {
		if !c.Auth.Enabled {
			return fmt.Errorf("authentication cannot be disabled in production")
		}
		if !hasStaticKey && c.Auth.SystemJWKSURL == "" {
			return fmt.Errorf("a system key source is required in production: set SYSTEM_PUBLIC_KEY_* or SYSTEM_JWKS_URL")
		}
	}

	if c.KeyCache.Size <= 0 {
		return fmt.Errorf("key cache size must be positive")
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// ID returns the name-version identifier of the application, e.g. "anubis-v1"
func (c *ApplicationConfig) ID() string {
	if c.Version == "" {
		return c.Name
	}
	return c.Name + "-" + c.Version
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "anubis"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "anubis"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated variable, dropping empty entries
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
