package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverSQLite   = "sqlite3"
)

const (
	LockingDriverNone   = "none"
	LockingDriverMemory = "memory"
	LockingDriverRedis  = "redis"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Env             string     `yaml:"env"`
	LogLevel        slog.Level `yaml:"log_level"`
	ShortCodeLength int        `yaml:"short_code_length"`
	Expiry          Expiry     `yaml:"expiry"`
	HTTPServer      HTTPServer `yaml:"http_server"`
	Storage         Storage    `yaml:"storage"`
	Postgres        Postgres   `yaml:"postgres"`
	SQLite          SQLite     `yaml:"sqlite"`
	Redis           Redis      `yaml:"redis"`
	Locking         Locking    `yaml:"locking"`
	RateLimit       RateLimit  `yaml:"rate_limit"`
}

// Expiry is the policy applied when a caller does not choose a time-to-live.
type Expiry struct {
	Default              time.Duration `yaml:"default"`
	ResetCreatedOnRotate bool          `yaml:"reset_created_on_rotate"`
}

var defaultExpiry = Expiry{
	Default: time.Hour,
}

type HTTPServer struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
	CertFile       string        `yaml:"cert_file"`
	KeyFile        string        `yaml:"key_file"`
	DocsPath       string        `yaml:"docs_path"`
}

var defaultHTTPServer = HTTPServer{
	Port:           8080,
	ReadTimeout:    5 * time.Second,
	WriteTimeout:   10 * time.Second,
	IdleTimeout:    time.Minute,
	MaxHeaderBytes: 1 << 20,
	DocsPath:       "./docs/swagger.yml",
}

func (s *HTTPServer) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type Storage struct {
	Driver string `yaml:"driver"`
}

var defaultStorage = Storage{
	Driver: StorageDriverPostgres,
}

type Postgres struct {
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	DB              string        `yaml:"db"`
	SSLMode         string        `yaml:"sslmode"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
}

var defaultPostgres = Postgres{
	Host:            "localhost",
	Port:            5432,
	SSLMode:         "disable",
	ConnMaxIdleTime: 5 * time.Minute,
	ConnMaxLifetime: 30 * time.Minute,
	MaxIdleConns:    5,
	MaxOpenConns:    25,
}

func (p *Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DB, p.SSLMode)
}

type SQLite struct {
	Path string `yaml:"path"`
}

var defaultSQLite = SQLite{
	Path: "url-shortener.db",
}

func (s *SQLite) DSN() string {
	return s.Path
}

func (s *SQLite) MigrationURL() string {
	return "sqlite3://" + s.Path
}

// DSN returns the connection string of the configured storage driver.
func (c *Config) DSN() string {
	if c.Storage.Driver == StorageDriverSQLite {
		return c.SQLite.DSN()
	}
	return c.Postgres.DSN()
}

// MigrationURL returns the database URL migrations are applied to.
func (c *Config) MigrationURL() string {
	if c.Storage.Driver == StorageDriverSQLite {
		return c.SQLite.MigrationURL()
	}
	return c.Postgres.DSN()
}

// Redis is optional. An empty Addr disables it.
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

func (r *Redis) Enabled() bool {
	return r.Addr != ""
}

type Locking struct {
	Driver        string        `yaml:"driver"`
	TTL           time.Duration `yaml:"ttl"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

var defaultLocking = Locking{
	Driver:        LockingDriverMemory,
	TTL:           5 * time.Second,
	RetryInterval: 10 * time.Millisecond,
}

type RateLimit struct {
	Enabled bool   `yaml:"enabled"`
	Rate    string `yaml:"rate"`
}

var defaultRateLimit = RateLimit{
	Rate: "100-M",
}

// Load reads the YAML file at path over the defaults. ${VAR} references in
// the file are replaced with environment values before decoding.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read config file: %w", op, err)
	}

	var cfg Config
	setDefaults(&cfg)

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to decode config file: %w", op, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if !slices.Contains([]string{EnvDev, EnvStage, EnvProd}, c.Env) {
		return fmt.Errorf("%w: unknown env %q", ErrInvalidConfig, c.Env)
	}
	if c.ShortCodeLength <= 0 {
		return fmt.Errorf("%w: short_code_length must be positive", ErrInvalidConfig)
	}
	if c.Expiry.Default <= 0 {
		return fmt.Errorf("%w: expiry.default must be positive", ErrInvalidConfig)
	}
	if !slices.Contains([]string{StorageDriverPostgres, StorageDriverSQLite}, c.Storage.Driver) {
		return fmt.Errorf("%w: unknown storage driver %q", ErrInvalidConfig, c.Storage.Driver)
	}

	switch c.Locking.Driver {
	case LockingDriverNone, LockingDriverMemory:
	case LockingDriverRedis:
		if !c.Redis.Enabled() {
			return fmt.Errorf("%w: redis locking requires redis.addr", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown locking driver %q", ErrInvalidConfig, c.Locking.Driver)
	}

	return nil
}

func setDefaults(cfg *Config) {
	cfg.Env = EnvDev
	cfg.LogLevel = slog.LevelInfo
	cfg.ShortCodeLength = 6
	cfg.Expiry = defaultExpiry
	cfg.HTTPServer = defaultHTTPServer
	cfg.Storage = defaultStorage
	cfg.Postgres = defaultPostgres
	cfg.SQLite = defaultSQLite
	cfg.Locking = defaultLocking
	cfg.RateLimit = defaultRateLimit
}
