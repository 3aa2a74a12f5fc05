// Package config provides configuration management for the fertilizer advisor server.
// Configuration can be loaded from YAML files and environment variables.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// DefaultJWTSecret is the development fallback used when no signing secret is configured.
// Tokens signed with it are forgeable by anyone who has read this source.
const DefaultJWTSecret = "fertilizer-advisor-dev-secret"

// Config represents the complete application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	CORS       CORSConfig       `mapstructure:"cors"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Env             string        `mapstructure:"env"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
}

// Addr returns the listen address in host:port format.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsProduction reports whether the server runs in the production environment.
func (c ServerConfig) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// DatabaseConfig holds database connection settings.
// Supports both PostgreSQL and SQLite backends.
type DatabaseConfig struct {
	// URL, when set, overrides Driver and the driver specific fields.
	// Accepted forms: sqlite:///path/to.db, sqlite://:memory:, postgres://...
	URL string `mapstructure:"url"`

	// Driver specifies the database driver: "postgres" or "sqlite".
	Driver string `mapstructure:"driver"`

	// PostgreSQL settings (used when Driver is "postgres")
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`

	// SQLite settings (used when Driver is "sqlite")
	Path            string `mapstructure:"path"`             // Path to SQLite database file
	JournalMode     string `mapstructure:"journal_mode"`     // WAL, DELETE, TRUNCATE, etc.
	BusyTimeout     int    `mapstructure:"busy_timeout"`     // Milliseconds to wait for locks
	SynchronousMode string `mapstructure:"synchronous_mode"` // NORMAL, FULL, OFF

	postgresURL string
}

// DSN returns the PostgreSQL connection string.
// Only valid when Driver is "postgres".
func (c DatabaseConfig) DSN() string {
	if c.postgresURL != "" {
		return c.postgresURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// IsEmbedded returns true if using an embedded database (SQLite).
func (c DatabaseConfig) IsEmbedded() bool {
	return c.Driver == "sqlite"
}

// Resolve applies URL on top of the driver specific fields.
func (c DatabaseConfig) Resolve() (DatabaseConfig, error) {
	if c.URL == "" {
		return c, nil
	}

	switch {
	case strings.HasPrefix(c.URL, "sqlite://"):
		path := strings.TrimPrefix(c.URL, "sqlite://")
		// sqlite:///users.db is relative, sqlite:////var/db/users.db is absolute.
		path = strings.TrimPrefix(path, "/")
		if path == "" {
			return c, fmt.Errorf("database.url %q has no path", c.URL)
		}
		c.Driver = "sqlite"
		c.Path = path
	case strings.HasPrefix(c.URL, "postgres://"), strings.HasPrefix(c.URL, "postgresql://"):
		u, err := url.Parse(c.URL)
		if err != nil {
			return c, fmt.Errorf("invalid database.url: %w", err)
		}
		c.Driver = "postgres"
		c.Host = u.Hostname()
		c.User = u.User.Username()
		c.Database = strings.TrimPrefix(u.Path, "/")
		c.postgresURL = c.URL
	default:
		return c, fmt.Errorf("database.url scheme not supported: %q", c.URL)
	}
	return c, nil
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Enabled     bool          `mapstructure:"enabled"`
}

// Addr returns the Redis address in host:port format.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	// JWTSecret is the HMAC key used to sign session tokens.
	JWTSecret string `mapstructure:"jwt_secret"`

	// TokenTTL is how long an issued token stays valid.
	TokenTTL time.Duration `mapstructure:"token_ttl"`

	// BcryptCost is the work factor for password hashing.
	BcryptCost int `mapstructure:"bcrypt_cost"`

	// SignupLockTimeout bounds how long signup waits for the per-username lock.
	SignupLockTimeout time.Duration `mapstructure:"signup_lock_timeout"`
}

// SigningSecret returns the configured secret, or DefaultJWTSecret and true
// when none is configured.
func (c AuthConfig) SigningSecret() (string, bool) {
	if c.JWTSecret == "" {
		return DefaultJWTSecret, true
	}
	return c.JWTSecret, false
}

// ClassifierConfig holds settings for the fertilizer classification model.
type ClassifierConfig struct {
	// ArtifactPath is a local file path or an s3://bucket/key URI.
	ArtifactPath string `mapstructure:"artifact_path"`

	// SHA256 is the expected hex digest of the artifact; empty skips the check.
	SHA256 string `mapstructure:"sha256"`

	// Required makes a missing or invalid artifact fatal at startup.
	Required bool `mapstructure:"required"`

	// LoadTimeout bounds artifact retrieval.
	LoadTimeout time.Duration `mapstructure:"load_timeout"`

	S3 S3Config `mapstructure:"s3"`
}

// S3Config holds settings for fetching artifacts from S3 compatible storage.
type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	// Enabled determines if metrics collection is active.
	Enabled bool `mapstructure:"enabled"`

	// Path is the URL path for the metrics endpoint.
	Path string `mapstructure:"path"`
}

// RateLimitConfig holds rate limiting settings for the credential endpoints.
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Requests is the number of requests allowed per client within Window.
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// CORSConfig holds cross-origin settings.
type CORSConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MaxAge         int      `mapstructure:"max_age"`
}

// Load reads configuration from the specified file and environment variables.
// Environment variables take precedence over file values.
// Environment variables are prefixed with FERTILIZER_ and use _ as separator.
// PORT, DATABASE_URL and JWT_SECRET are also honored without the prefix.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("FERTILIZER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// BindEnv keeps the prefixed name first so it wins over the bare one.
	for key, env := range map[string]string{
		"server.port":     "PORT",
		"database.url":    "DATABASE_URL",
		"auth.jwt_secret": "JWT_SECRET",
	} {
		prefixed := "FERTILIZER_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, fmt.Errorf("error binding %s: %w", env, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/fertilizer")
	}

	// Config file is optional - environment variables can be used instead
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	db, err := cfg.Database.Resolve()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.Database = db

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.env", "development")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.max_body_size", 1024*1024) // 1MB

	// Database defaults
	v.SetDefault("database.url", "")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "fertilizer")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "fertilizer")
	v.SetDefault("database.ssl_mode", "prefer")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.conn_max_idle_time", 5*time.Minute)
	// SQLite defaults
	v.SetDefault("database.path", "users.db")
	v.SetDefault("database.journal_mode", "WAL")
	v.SetDefault("database.busy_timeout", 5000)
	v.SetDefault("database.synchronous_mode", "NORMAL")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.enabled", false)

	// Auth defaults
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", time.Hour)
	v.SetDefault("auth.bcrypt_cost", bcrypt.DefaultCost)
	v.SetDefault("auth.signup_lock_timeout", 5*time.Second)

	// Classifier defaults
	v.SetDefault("classifier.artifact_path", "models/fertilizer_model.json")
	v.SetDefault("classifier.sha256", "")
	v.SetDefault("classifier.required", false)
	v.SetDefault("classifier.load_timeout", 30*time.Second)
	v.SetDefault("classifier.s3.region", "us-east-1")
	v.SetDefault("classifier.s3.use_path_style", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Rate limiting defaults
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 20)
	v.SetDefault("rate_limit.window", time.Minute)

	// CORS defaults
	v.SetDefault("cors.enabled", true)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.max_age", 300)
}

// Validate checks the configuration for required values and valid ranges.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.MaxBodySize <= 0 {
		return fmt.Errorf("server.max_body_size must be positive")
	}

	validDrivers := map[string]bool{"postgres": true, "sqlite": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be 'postgres' or 'sqlite'")
	}

	if c.Database.Driver == "postgres" {
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required for postgres driver")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required for postgres driver")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database.database is required for postgres driver")
		}
	} else if c.Database.Path == "" {
		return fmt.Errorf("database.path is required for sqlite driver")
	}

	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("auth.bcrypt_cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.Server.IsProduction() && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required in production")
	}

	if c.RateLimit.Enabled && (c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0) {
		return fmt.Errorf("rate_limit.requests and rate_limit.window must be positive")
	}

	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error, fatal, panic")
	}

	return nil
}

// MustLoad loads configuration or panics on error.
// Useful for main function initialization.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
