package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hyperengineering/farmcost/internal/validation"
)

// Session backends.
const (
	SessionBackendDatabase = "database"
	SessionBackendRedis    = "redis"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Session  SessionConfig  `yaml:"session"`
	Backup   BackupConfig   `yaml:"backup"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"-"` // env-only, carries credentials
}

// Source returns the connection string for the configured driver.
func (d DatabaseConfig) Source() string {
	if d.Driver == DriverPostgres {
		return d.DSN
	}
	return d.Path
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	AdminUsername string `yaml:"admin_username"`
	AdminPassword string `yaml:"-"` // env-only, never in YAML
	APIKey        string `yaml:"-"` // env-only, never in YAML
	BcryptCost    int    `yaml:"bcrypt_cost"`
}

// SessionConfig contains login session settings.
type SessionConfig struct {
	Backend       string   `yaml:"backend"`
	TTL           Duration `yaml:"ttl"`
	CookieName    string   `yaml:"cookie_name"`
	CookieSecure  bool     `yaml:"cookie_secure"`
	SweepInterval Duration `yaml:"sweep_interval"`
	RedisAddr     string   `yaml:"redis_addr"`
	RedisPassword string   `yaml:"-"` // env-only, never in YAML
	RedisDB       int      `yaml:"redis_db"`
	RedisPrefix   string   `yaml:"redis_prefix"`
}

// BackupConfig contains database backup settings. An empty Bucket keeps
// backups local.
type BackupConfig struct {
	Interval  Duration `yaml:"interval"`
	Dir       string   `yaml:"dir"`
	Bucket    string   `yaml:"bucket"`
	Endpoint  string   `yaml:"endpoint"`
	Region    string   `yaml:"region"`
	AccessKey string   `yaml:"-"` // env-only, never in YAML
	SecretKey string   `yaml:"-"` // env-only, never in YAML
	UseSSL    *bool    `yaml:"use_ssl"`
	Prefix    string   `yaml:"prefix"`
	URLExpiry Duration `yaml:"url_expiry"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("FARMCOST_CONFIG_PATH", "config/farmcost.yaml")

	// Missing file is not an error
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific path.
// Used for testing and explicit paths.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(60 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			Path:   "data/farmcost.db",
		},
		Auth: AuthConfig{
			AdminUsername: "admin",
		},
		Session: SessionConfig{
			Backend:       SessionBackendDatabase,
			TTL:           Duration(12 * time.Hour),
			CookieName:    "farmcost_session",
			SweepInterval: Duration(15 * time.Minute),
			RedisAddr:     "localhost:6379",
			RedisPrefix:   "farmcost:",
		},
		Backup: BackupConfig{
			Dir:       "data/backups",
			Prefix:    "farmcost",
			URLExpiry: Duration(15 * time.Minute),
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("FARMCOST_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	envDuration("FARMCOST_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("FARMCOST_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("FARMCOST_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	// Database
	if v := os.Getenv("FARMCOST_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("FARMCOST_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("FARMCOST_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	// Auth
	if v := os.Getenv("FARMCOST_ADMIN_USERNAME"); v != "" {
		cfg.Auth.AdminUsername = v
	}
	if v := os.Getenv("FARMCOST_ADMIN_PASSWORD"); v != "" {
		cfg.Auth.AdminPassword = v
	}
	if v := os.Getenv("FARMCOST_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("FARMCOST_BCRYPT_COST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Auth.BcryptCost = n
		}
	}

	// Session
	if v := os.Getenv("FARMCOST_SESSION_BACKEND"); v != "" {
		cfg.Session.Backend = v
	}
	envDuration("FARMCOST_SESSION_TTL", &cfg.Session.TTL)
	envDuration("FARMCOST_SESSION_SWEEP_INTERVAL", &cfg.Session.SweepInterval)
	if v := os.Getenv("FARMCOST_COOKIE_SECURE"); v != "" {
		cfg.Session.CookieSecure = v == "true" || v == "1"
	}
	if v := os.Getenv("FARMCOST_REDIS_ADDR"); v != "" {
		cfg.Session.RedisAddr = v
	}
	if v := os.Getenv("FARMCOST_REDIS_PASSWORD"); v != "" {
		cfg.Session.RedisPassword = v
	}
	if v := os.Getenv("FARMCOST_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Session.RedisDB = n
		}
	}

	// Backup
	envDuration("FARMCOST_BACKUP_INTERVAL", &cfg.Backup.Interval)
	if v := os.Getenv("FARMCOST_BACKUP_DIR"); v != "" {
		cfg.Backup.Dir = v
	}
	if v := os.Getenv("FARMCOST_BACKUP_BUCKET"); v != "" {
		cfg.Backup.Bucket = v
	}
	if v := os.Getenv("FARMCOST_S3_ENDPOINT"); v != "" {
		cfg.Backup.Endpoint = v
	}
	if v := os.Getenv("FARMCOST_S3_REGION"); v != "" {
		cfg.Backup.Region = v
	}
	if v := os.Getenv("FARMCOST_S3_ACCESS_KEY"); v != "" {
		cfg.Backup.AccessKey = v
	}
	if v := os.Getenv("FARMCOST_S3_SECRET_KEY"); v != "" {
		cfg.Backup.SecretKey = v
	}
	if v := os.Getenv("FARMCOST_S3_USE_SSL"); v != "" {
		useSSL := v == "true" || v == "1"
		cfg.Backup.UseSSL = &useSSL
	}

	// Metrics
	if v := os.Getenv("FARMCOST_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = v == "true" || v == "1"
	}

	// Log
	if v := os.Getenv("FARMCOST_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("FARMCOST_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// envDuration overrides dst when key holds a parseable duration.
func envDuration(key string, dst *Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}

// validate checks the configuration for consistency.
// In dev mode (FARMCOST_DEV_MODE=true), the secret checks are skipped.
func (c *Config) validate() error {
	if err := validation.ValidateEnum("database.driver", c.Database.Driver, []string{DriverSQLite, DriverPostgres}); err != nil {
		return err
	}
	if c.Database.Driver == DriverPostgres {
		if c.Database.DSN == "" {
			return errors.New("FARMCOST_DB_DSN is required for the postgres driver")
		}
		// Backups use VACUUM INTO, which only SQLite has.
		if c.Backup.Interval > 0 {
			return errors.New("backup interval requires the sqlite driver")
		}
	}

	if err := validation.ValidateEnum("session.backend", c.Session.Backend, []string{SessionBackendDatabase, SessionBackendRedis}); err != nil {
		return err
	}
	if c.Session.TTL <= 0 {
		return errors.New("session ttl must be positive")
	}

	if c.Backup.Bucket != "" && c.Backup.Endpoint == "" {
		return errors.New("backup endpoint is required when a bucket is set")
	}

	if os.Getenv("FARMCOST_DEV_MODE") == "true" {
		return nil
	}

	if c.Auth.AdminUsername == "" {
		return errors.New("auth admin_username is required")
	}
	if c.Backup.Bucket != "" && (c.Backup.AccessKey == "" || c.Backup.SecretKey == "") {
		return errors.New("FARMCOST_S3_ACCESS_KEY and FARMCOST_S3_SECRET_KEY are required when a backup bucket is set")
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
