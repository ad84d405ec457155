package config

import (
	"errors"
	"fmt"
	"time"

	"steam-trade-farm/internal/model"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Accounts are read from the ACCOUNT1_ and ACCOUNT2_ prefixes.
	Account1 model.Credentials `ignored:"true"`
	Account2 model.Credentials `ignored:"true"`

	Farm    FarmConfig
	Server  ServerConfig
	App     AppConfig
	Cache   CacheConfig
	Sandbox SandboxConfig
}

// FarmConfig holds the trade cycle settings.
type FarmConfig struct {
	GameCode         int           `envconfig:"GAME_CODE" required:"true"`
	ContextID        string        `envconfig:"CONTEXT_ID" default:"2"`
	MaxRetries       int           `envconfig:"MAX_RETRIES" default:"5"`
	OperationTimeout time.Duration `envconfig:"OPERATION_TIMEOUT" default:"30s"`
	RetryBackoff     time.Duration `envconfig:"RETRY_BACKOFF" default:"2s"`
	InitialSettle    time.Duration `envconfig:"INITIAL_SETTLE" default:"2s"`
	OfferSettle      time.Duration `envconfig:"OFFER_SETTLE" default:"3s"`
}

// ServerConfig holds liveness server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"15s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"steam-trade-farm"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	Type string        `envconfig:"CACHE_TYPE" default:"memory"`
	TTL  time.Duration `envconfig:"CACHE_TTL" default:"10m"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// SandboxConfig holds settings of the local exchange.
type SandboxConfig struct {
	Platform string        `envconfig:"PLATFORM" default:"sandbox"`
	Driver   string        `envconfig:"SANDBOX_DB_DRIVER" default:"sqlite"` // sqlite or mysql
	DBPath   string        `envconfig:"SANDBOX_DB_PATH" default:"./data/sandbox.db"`
	SeedFile string        `envconfig:"SANDBOX_SEED_FILE" default:""`
	OfferTTL time.Duration `envconfig:"SANDBOX_OFFER_TTL" default:"10m"`

	// MySQL settings, used when Driver is mysql
	MySQLHost     string `envconfig:"SANDBOX_MYSQL_HOST" default:"localhost"`
	MySQLPort     int    `envconfig:"SANDBOX_MYSQL_PORT" default:"3306"`
	MySQLName     string `envconfig:"SANDBOX_MYSQL_NAME" default:"trade_farm"`
	MySQLUser     string `envconfig:"SANDBOX_MYSQL_USER" default:"root"`
	MySQLPassword string `envconfig:"SANDBOX_MYSQL_PASS" default:""`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// MySQLDSN returns the MySQL data source name.
func (s *SandboxConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		s.MySQLUser, s.MySQLPassword, s.MySQLHost, s.MySQLPort, s.MySQLName)
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Validate checks the values envconfig cannot.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Account1.Validate("account1"); err != nil {
		errs = append(errs, err)
	}
	if err := c.Account2.Validate("account2"); err != nil {
		errs = append(errs, err)
	}
	if c.Account1.Username != "" && c.Account1.Username == c.Account2.Username {
		errs = append(errs, fmt.Errorf("account1 and account2 are the same login %q", c.Account1.Username))
	}
	if c.Farm.GameCode <= 0 {
		errs = append(errs, fmt.Errorf("GAME_CODE must be positive, got %d", c.Farm.GameCode))
	}
	if c.Farm.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("MAX_RETRIES must not be negative, got %d", c.Farm.MaxRetries))
	}
	switch c.Cache.Type {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown CACHE_TYPE %q", c.Cache.Type))
	}
	switch c.Sandbox.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Errorf("unknown SANDBOX_DB_DRIVER %q", c.Sandbox.Driver))
	}
	if c.Sandbox.Platform != "sandbox" {
		errs = append(errs, fmt.Errorf("unsupported PLATFORM %q", c.Sandbox.Platform))
	}
	return errors.Join(errs...)
}

// Load reads configuration from environment variables. Credentials are not
// checked here; call Validate.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := envconfig.Process("account1", &cfg.Account1); err != nil {
		return nil, fmt.Errorf("failed to load account1: %w", err)
	}
	if err := envconfig.Process("account2", &cfg.Account2); err != nil {
		return nil, fmt.Errorf("failed to load account2: %w", err)
	}

	return &cfg, nil
}

