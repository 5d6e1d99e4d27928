package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Booking  BookingConfig  `yaml:"booking"`
	Events   EventsConfig   `yaml:"events"`
	Catalog  CatalogConfig  `yaml:"catalog"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port" envconfig:"PORT"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec" envconfig:"RATE_LIMIT_PER_SEC"`
	RateLimitBurst  int     `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds" envconfig:"CACHE_TTL_SECONDS"`
	GinMode         string  `yaml:"gin_mode" envconfig:"GIN_MODE"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver                 string `yaml:"driver" envconfig:"DRIVER"`
	DSN                    string `yaml:"dsn" envconfig:"DSN"`
	MaxOpenConns           int    `yaml:"max_open_conns" envconfig:"MAX_OPEN_CONNS"`
	MaxIdleConns           int    `yaml:"max_idle_conns" envconfig:"MAX_IDLE_CONNS"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes" envconfig:"CONN_MAX_LIFETIME_MINUTES"`
	// Isolation is one of serializable, read_committed, default.
	Isolation       string `yaml:"isolation" envconfig:"ISOLATION"`
	EnableExclusion bool   `yaml:"enable_exclusion" envconfig:"ENABLE_EXCLUSION"`
	LogLevel        string `yaml:"log_level" envconfig:"LOG_LEVEL"`
}

// BookingConfig holds the admission rules.
type BookingConfig struct {
	Timezone              string        `yaml:"timezone" envconfig:"TIMEZONE"`
	StorageTimeoutSeconds int           `yaml:"storage_timeout_seconds" envconfig:"STORAGE_TIMEOUT_SECONDS"`
	StorageTimeout        time.Duration `yaml:"-" ignored:"true"`
	CellMinutes           int           `yaml:"cell_minutes" envconfig:"CELL_MINUTES"`
	FallbackRate          int64         `yaml:"fallback_rate" envconfig:"FALLBACK_RATE"`
	FeeBasisPoints        int64         `yaml:"fee_basis_points" envconfig:"FEE_BASIS_POINTS"`
	Currency              string        `yaml:"currency" envconfig:"CURRENCY"`
}

// EventsConfig holds the RabbitMQ publisher configuration. An empty URL
// disables publishing.
type EventsConfig struct {
	URL                   string `yaml:"url" envconfig:"URL"`
	Exchange              string `yaml:"exchange" envconfig:"EXCHANGE"`
	PublishTimeoutSeconds int    `yaml:"publish_timeout_seconds" envconfig:"PUBLISH_TIMEOUT_SECONDS"`
}

// CatalogConfig lists grounds that are not managed in the database.
type CatalogConfig struct {
	External []ExternalGround `yaml:"external" ignored:"true"`
}

// ExternalGround is one entry of the external catalog.
type ExternalGround struct {
	ID       string      `yaml:"id"`
	Name     string      `yaml:"name"`
	Capacity int         `yaml:"capacity"`
	Currency string      `yaml:"currency"`
	FlatRate int64       `yaml:"flat_rate"`
	Discount int64       `yaml:"discount"`
	Rates    []RateEntry `yaml:"rates"`
}

// RateEntry is a tier of an external ground's price table, times in "HH:MM".
type RateEntry struct {
	Start   string `yaml:"start"`
	End     string `yaml:"end"`
	PerHour int64  `yaml:"per_hour"`
}

// EnvPrefix prefixes every environment override, e.g. GROUND_DATABASE_DSN.
const EnvPrefix = "GROUND"

// Load reads the configuration from the given path, applies environment
// overrides and fills in defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 30
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.MaxOpenConns <= 0 {
		cfg.Database.MaxOpenConns = 20
	}
	if cfg.Database.MaxIdleConns <= 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetimeMinutes <= 0 {
		cfg.Database.ConnMaxLifetimeMinutes = 30
	}

	if cfg.Booking.Timezone == "" {
		cfg.Booking.Timezone = "UTC"
	}
	if cfg.Booking.StorageTimeoutSeconds <= 0 {
		log.Printf("booking.storage_timeout_seconds is not set or invalid; defaulting to 5")
		cfg.Booking.StorageTimeoutSeconds = 5
	}
	cfg.Booking.StorageTimeout = time.Duration(cfg.Booking.StorageTimeoutSeconds) * time.Second
	if cfg.Booking.CellMinutes <= 0 {
		cfg.Booking.CellMinutes = 60
	}
	if cfg.Booking.Currency == "" {
		cfg.Booking.Currency = "INR"
	}

	if cfg.Events.Exchange == "" {
		cfg.Events.Exchange = "ground.bookings"
	}
	if cfg.Events.PublishTimeoutSeconds <= 0 {
		cfg.Events.PublishTimeoutSeconds = 2
	}
}

// Location resolves the booking timezone.
func (b BookingConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return nil, fmt.Errorf("booking.timezone %q: %w", b.Timezone, err)
	}
	return loc, nil
}
