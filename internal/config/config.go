package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	LocationIQ LocationIQConfig `yaml:"locationiq" mapstructure:"locationiq"`
	Nominatim  NominatimConfig  `yaml:"nominatim" mapstructure:"nominatim"`
	Geocode    GeocodeConfig    `yaml:"geocode" mapstructure:"geocode"`
	Reconcile  ReconcileConfig  `yaml:"reconcile" mapstructure:"reconcile"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port     int `yaml:"port" mapstructure:"port"`
	MaxBatch int `yaml:"max_batch" mapstructure:"max_batch"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// LocationIQConfig holds the primary provider settings. An empty key
// disables LocationIQ.
type LocationIQConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	SearchURL  string `yaml:"search_url" mapstructure:"search_url"`
	ReverseURL string `yaml:"reverse_url" mapstructure:"reverse_url"`
}

// NominatimConfig holds the fallback provider settings.
type NominatimConfig struct {
	UserAgent  string `yaml:"user_agent" mapstructure:"user_agent"`
	SearchURL  string `yaml:"search_url" mapstructure:"search_url"`
	ReverseURL string `yaml:"reverse_url" mapstructure:"reverse_url"`
}

// GeocodeConfig configures the provider cascade.
type GeocodeConfig struct {
	Limit               int    `yaml:"limit" mapstructure:"limit"`
	TimeoutSecs         int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	CountryCodes        string `yaml:"country_codes" mapstructure:"country_codes"`
	BreakerThreshold    int    `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int    `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// ReconcileConfig holds the policy thresholds and batch parallelism.
type ReconcileConfig struct {
	Concurrency    int     `yaml:"concurrency" mapstructure:"concurrency"`
	DistanceMeters float64 `yaml:"distance_meters" mapstructure:"distance_meters"`
	MinScore       float64 `yaml:"min_score" mapstructure:"min_score"`
	AcceptScore    float64 `yaml:"accept_score" mapstructure:"accept_score"`
	HighScore      float64 `yaml:"high_score" mapstructure:"high_score"`
}

// StoreConfig configures the learned-location backend. An empty driver
// disables learned lookups.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GEOCODER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("locationiq.key", "GEOCODER_LOCATIONIQ_KEY", "LOCATIONIQ_API_KEY"); err != nil {
		return nil, eris.Wrap(err, "config: bind env")
	}

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_batch", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("locationiq.search_url", "https://us1.locationiq.com/v1/search.php")
	v.SetDefault("locationiq.reverse_url", "https://us1.locationiq.com/v1/reverse.php")
	v.SetDefault("nominatim.user_agent", "route-geocoder/1.0")
	v.SetDefault("nominatim.search_url", "https://nominatim.openstreetmap.org/search")
	v.SetDefault("nominatim.reverse_url", "https://nominatim.openstreetmap.org/reverse")
	v.SetDefault("geocode.limit", 3)
	v.SetDefault("geocode.timeout_secs", 10)
	v.SetDefault("geocode.country_codes", "br")
	v.SetDefault("geocode.breaker_threshold", 5)
	v.SetDefault("geocode.breaker_cooldown_secs", 30)
	v.SetDefault("reconcile.concurrency", 1)
	v.SetDefault("reconcile.distance_meters", 100)
	v.SetDefault("reconcile.min_score", 0.3)
	v.SetDefault("reconcile.accept_score", 0.5)
	v.SetDefault("reconcile.high_score", 0.8)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "learned.db")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is the command name.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "":
	case "sqlite":
		if c.Store.SQLitePath == "" {
			errs = append(errs, "store.sqlite_path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not supported (sqlite, postgres or empty)", c.Store.Driver))
	}

	r := c.Reconcile
	if r.MinScore < 0 || r.MinScore >= 1 {
		errs = append(errs, "reconcile.min_score must be in [0, 1)")
	}
	if r.AcceptScore < r.MinScore || r.HighScore < r.AcceptScore {
		errs = append(errs, "reconcile thresholds must satisfy min_score <= accept_score <= high_score")
	}
	if r.DistanceMeters <= 0 {
		errs = append(errs, "reconcile.distance_meters must be positive")
	}
	if c.Geocode.Limit <= 0 {
		errs = append(errs, "geocode.limit must be positive")
	}

	if mode == "serve" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
