package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server       ServerConfig        `yaml:"server"`
	Database     DatabaseConfig      `yaml:"database"`
	Session      SessionConfig       `yaml:"session"`
	Security     SecurityConfig      `yaml:"security"`
	Audit        AuditConfig         `yaml:"audit"`
	Logging      LoggingConfig       `yaml:"logging"`
	DefaultUsers []DefaultUserConfig `yaml:"default_users"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Mode string `yaml:"mode"`
}

type DatabaseConfig struct {
	Type     string         `yaml:"type"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	MySQL    MySQLConfig    `yaml:"mysql"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type SessionConfig struct {
	CookieName   string        `yaml:"cookie_name"`
	CookieSecure bool          `yaml:"cookie_secure"`
	TTL          time.Duration `yaml:"ttl"`
	Secret       string        `yaml:"secret"`
	Issuer       string        `yaml:"issuer"`
}

type SecurityConfig struct {
	BcryptCost     int                  `yaml:"bcrypt_cost"`
	LoginRateLimit LoginRateLimitConfig `yaml:"login_rate_limit"`
	Lockout        LockoutConfig        `yaml:"lockout"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
}

// LoginRateLimitConfig bounds login attempts per (action, ip).
type LoginRateLimitConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Window      time.Duration `yaml:"window"`
	// Store is "memory" (single node) or "database" (shared across processes).
	Store string `yaml:"store"`
}

type LockoutConfig struct {
	MaxFailed int           `yaml:"max_failed"`
	Duration  time.Duration `yaml:"duration"`
}

// RateLimitConfig is the coarse per-IP API throttle.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
}

type AuditConfig struct {
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type DefaultUserConfig struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

// Load reads the configuration file, an optional .env file and environment variables
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// .env is optional; a missing file is not an error
	_ = godotenv.Load()

	applyEnv(&cfg)
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Ensure data directory exists for SQLite
	if cfg.Database.Type == "sqlite" {
		dataDir := filepath.Dir(cfg.Database.SQLite.Path)
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if secret := os.Getenv("BOOKING_SESSION_SECRET"); secret != "" {
		cfg.Session.Secret = secret
	}
	if dbType := os.Getenv("BOOKING_DB_TYPE"); dbType != "" {
		cfg.Database.Type = dbType
	}
	if dbPath := os.Getenv("BOOKING_DB_PATH"); dbPath != "" {
		cfg.Database.SQLite.Path = dbPath
	}
	if mysqlHost := os.Getenv("BOOKING_MYSQL_HOST"); mysqlHost != "" {
		cfg.Database.MySQL.Host = mysqlHost
	}
	if mysqlUser := os.Getenv("BOOKING_MYSQL_USER"); mysqlUser != "" {
		cfg.Database.MySQL.Username = mysqlUser
	}
	if mysqlPass := os.Getenv("BOOKING_MYSQL_PASSWORD"); mysqlPass != "" {
		cfg.Database.MySQL.Password = mysqlPass
	}
	if mysqlDB := os.Getenv("BOOKING_MYSQL_DATABASE"); mysqlDB != "" {
		cfg.Database.MySQL.Database = mysqlDB
	}
	if dsn := os.Getenv("BOOKING_POSTGRES_DSN"); dsn != "" {
		cfg.Database.Postgres.DSN = dsn
	}
	if port := os.Getenv("BOOKING_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = n
		}
	}
	if brokers := os.Getenv("BOOKING_KAFKA_BROKERS"); brokers != "" {
		cfg.Audit.KafkaBrokers = csv(brokers)
	}
	if level := os.Getenv("BOOKING_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}

// ApplyDefaults fills every unset field. Tests build a Config literal and call this.
func (c *Config) ApplyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "release"
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.SQLite.Path == "" {
		c.Database.SQLite.Path = "data/booking.db"
	}
	if c.Database.MySQL.Port == 0 {
		c.Database.MySQL.Port = 3306
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "booking_session"
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = 8 * time.Hour
	}
	if c.Session.Issuer == "" {
		c.Session.Issuer = "facility-booking"
	}
	if c.Security.BcryptCost == 0 {
		c.Security.BcryptCost = 12
	}
	if c.Security.LoginRateLimit.MaxAttempts == 0 {
		c.Security.LoginRateLimit.MaxAttempts = 5
	}
	if c.Security.LoginRateLimit.Window == 0 {
		c.Security.LoginRateLimit.Window = 300 * time.Second
	}
	if c.Security.LoginRateLimit.Store == "" {
		c.Security.LoginRateLimit.Store = "memory"
	}
	if c.Security.Lockout.MaxFailed == 0 {
		c.Security.Lockout.MaxFailed = 5
	}
	if c.Security.Lockout.Duration == 0 {
		c.Security.Lockout.Duration = 15 * time.Minute
	}
	if c.Security.RateLimit.RequestsPerMinute == 0 {
		c.Security.RateLimit.RequestsPerMinute = 120
	}
	if c.Audit.KafkaTopic == "" {
		c.Audit.KafkaTopic = "booking.audit"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 100
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 10
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = 30
	}
}

func (c *Config) Validate() error {
	switch c.Database.Type {
	case "sqlite":
	case "mysql":
		if c.Database.MySQL.Username == "" {
			return fmt.Errorf("MySQL username is required")
		}
		if c.Database.MySQL.Database == "" {
			return fmt.Errorf("MySQL database name is required")
		}
	case "postgres":
		if c.Database.Postgres.DSN == "" {
			return fmt.Errorf("PostgreSQL DSN is required")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	if c.Session.Secret == "" {
		return fmt.Errorf("session secret is required (set BOOKING_SESSION_SECRET)")
	}

	switch c.Security.LoginRateLimit.Store {
	case "memory", "database":
	default:
		return fmt.Errorf("unsupported rate limit store: %s", c.Security.LoginRateLimit.Store)
	}

	return nil
}

func csv(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
