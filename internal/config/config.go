// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Database() DatabaseConfig
	Store() StoreConfig
	Catalog() CatalogConfig
	Graph() GraphConfig
	Metrics() MetricsConfig

	// Graph Setters
	SetGraphCutoff(*float64)
}

// Config holds the entire application configuration.
// Access from other packages goes through the Interface getters; the exported
// fields exist so viper can unmarshal into them.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	DatabaseCfg DatabaseConfig `mapstructure:"database" yaml:"database"`
	StoreCfg    StoreConfig    `mapstructure:"store" yaml:"store"`
	CatalogCfg  CatalogConfig  `mapstructure:"catalog" yaml:"catalog"`
	GraphCfg    GraphConfig    `mapstructure:"graph" yaml:"graph"`
	MetricsCfg  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
}

var _ Interface = (*Config)(nil)

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Database() DatabaseConfig { return c.DatabaseCfg }
func (c *Config) Store() StoreConfig       { return c.StoreCfg }
func (c *Config) Catalog() CatalogConfig   { return c.CatalogCfg }
func (c *Config) Graph() GraphConfig       { return c.GraphCfg }
func (c *Config) Metrics() MetricsConfig   { return c.MetricsCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetGraphCutoff(cutoff *float64) { c.GraphCfg.Cutoff = cutoff }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// DatabaseConfig holds the database connection details.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// Store backends.
const (
	StorePostgres = "postgres"
	StoreFile     = "file"
)

// StoreConfig selects the backing store for the assembled topology table.
type StoreConfig struct {
	Type       string `mapstructure:"type" yaml:"type"`
	Dir        string `mapstructure:"dir" yaml:"dir"`
	Collection string `mapstructure:"collection" yaml:"collection"`
	// StatusCollection receives one server status snapshot per run.
	StatusCollection string `mapstructure:"status_collection" yaml:"status_collection"`
}

// CatalogPaths are the per-resource paths appended to the catalog base URL.
// Each path must end in a slash; detail lookups append "{id}/".
type CatalogPaths struct {
	Systems        string `mapstructure:"systems" yaml:"systems"`
	Constellations string `mapstructure:"constellations" yaml:"constellations"`
	Regions        string `mapstructure:"regions" yaml:"regions"`
	Stargates      string `mapstructure:"stargates" yaml:"stargates"`
	// Status is a single document, not an id list.
	Status string `mapstructure:"status" yaml:"status"`
}

// CatalogConfig tunes acquisition from the remote REST catalog.
type CatalogConfig struct {
	BaseURL           string        `mapstructure:"base_url" yaml:"base_url"`
	Paths             CatalogPaths  `mapstructure:"paths" yaml:"paths"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	Workers           int           `mapstructure:"workers" yaml:"workers"`
	MaxRetries        int           `mapstructure:"max_retries" yaml:"max_retries"`
	InitialBackoff    time.Duration `mapstructure:"initial_backoff" yaml:"initial_backoff"`
	MaxBackoff        time.Duration `mapstructure:"max_backoff" yaml:"max_backoff"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// GraphConfig holds the exclusion rules and routing limits.
type GraphConfig struct {
	MaxNodeID       int64    `mapstructure:"max_node_id" yaml:"max_node_id"`
	ExcludedRegions []string `mapstructure:"excluded_regions" yaml:"excluded_regions"`
	// Cutoff is the maximum cumulative path weight. Nil means unbounded.
	Cutoff *float64 `mapstructure:"cutoff" yaml:"cutoff"`
}

// MetricsConfig configures the Prometheus Pushgateway used at the end of a run.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url" yaml:"pushgateway_url"`
	Job            string `mapstructure:"job" yaml:"job"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "navitron")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Store --
	v.SetDefault("store.type", StoreFile)
	v.SetDefault("store.dir", "./data")
	v.SetDefault("store.collection", "sde_universe")
	v.SetDefault("store.status_collection", "server_status")

	// -- Catalog --
	v.SetDefault("catalog.base_url", "https://esi.evetech.net/latest")
	v.SetDefault("catalog.paths.systems", "/universe/systems/")
	v.SetDefault("catalog.paths.constellations", "/universe/constellations/")
	v.SetDefault("catalog.paths.regions", "/universe/regions/")
	v.SetDefault("catalog.paths.stargates", "/universe/stargates/")
	v.SetDefault("catalog.paths.status", "/status/")
	v.SetDefault("catalog.user_agent", "navitron: https://github.com/xkilldash9x/navitron")
	v.SetDefault("catalog.workers", 20)
	v.SetDefault("catalog.max_retries", 3)
	v.SetDefault("catalog.initial_backoff", "500ms")
	v.SetDefault("catalog.max_backoff", "10s")
	v.SetDefault("catalog.requests_per_second", 50.0)
	v.SetDefault("catalog.request_timeout", "30s")
	v.SetDefault("catalog.timeout", "30m")

	// -- Graph --
	v.SetDefault("graph.max_node_id", 31000000)
	v.SetDefault("graph.excluded_regions", []string{"J7HZ-F", "A821-A", "UUA-F4"})

	// -- Metrics --
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "navitron")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	v.BindEnv("database.url", "NAVITRON_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Manually load the URL if Unmarshal didn't pick it up
	if cfg.DatabaseCfg.URL == "" {
		cfg.DatabaseCfg.URL = os.Getenv("NAVITRON_DATABASE_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.CatalogCfg.Validate(); err != nil {
		return fmt.Errorf("catalog configuration invalid: %w", err)
	}
	if err := c.StoreCfg.Validate(); err != nil {
		return fmt.Errorf("store configuration invalid: %w", err)
	}
	if c.StoreCfg.Type == StorePostgres && c.DatabaseCfg.URL == "" {
		return fmt.Errorf("database.url is required when store.type is %q", StorePostgres)
	}
	if c.GraphCfg.MaxNodeID <= 0 {
		return fmt.Errorf("graph.max_node_id must be a positive integer")
	}
	if c.GraphCfg.Cutoff != nil && *c.GraphCfg.Cutoff < 0 {
		return fmt.Errorf("graph.cutoff must not be negative")
	}
	return nil
}

// Validate checks the catalog settings.
func (cc *CatalogConfig) Validate() error {
	if cc.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if cc.Workers <= 0 {
		return fmt.Errorf("workers must be a positive integer")
	}
	if cc.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	if cc.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests_per_second must be greater than 0")
	}
	if cc.Paths.Systems == "" || cc.Paths.Constellations == "" || cc.Paths.Regions == "" || cc.Paths.Stargates == "" {
		return fmt.Errorf("paths.systems, paths.constellations, paths.regions, and paths.stargates are required")
	}
	if cc.Paths.Status == "" {
		return fmt.Errorf("paths.status is required")
	}
	return nil
}

// Validate checks the store settings.
func (s *StoreConfig) Validate() error {
	switch s.Type {
	case StorePostgres:
	case StoreFile:
		if s.Dir == "" {
			return fmt.Errorf("dir is required for the file store")
		}
	default:
		return fmt.Errorf("unsupported store type %q", s.Type)
	}
	if s.Collection == "" {
		return fmt.Errorf("collection is required")
	}
	if s.StatusCollection == "" {
		return fmt.Errorf("status_collection is required")
	}
	return nil
}
