package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/equity-explorer/internal/db"
	"github.com/sells-group/equity-explorer/internal/normalize"
	"github.com/sells-group/equity-explorer/internal/source"
	"github.com/sells-group/equity-explorer/internal/stats"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig        `yaml:"store" mapstructure:"store"`
	Files      source.FilesConfig `yaml:"files" mapstructure:"files"`
	Explorer   ExplorerConfig     `yaml:"explorer" mapstructure:"explorer"`
	Indicators IndicatorsConfig   `yaml:"indicators" mapstructure:"indicators"`
	Server     ServerConfig       `yaml:"server" mapstructure:"server"`
	Log        LogConfig          `yaml:"log" mapstructure:"log"`
}

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverFiles    = "files"
)

// StoreConfig configures the tract data backend.
type StoreConfig struct {
	Driver      string        `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string        `yaml:"database_url" mapstructure:"database_url"`
	Pool        db.PoolConfig `yaml:"pool" mapstructure:"pool"`
	Layout      source.Layout `yaml:"layout" mapstructure:"layout"`
}

// ExplorerConfig holds the default run parameters.
type ExplorerConfig struct {
	Concentration string   `yaml:"concentration" mapstructure:"concentration"`
	Method        string   `yaml:"method" mapstructure:"method"`
	TopK          int      `yaml:"top_k" mapstructure:"top_k"`
	Indicators    []string `yaml:"indicators" mapstructure:"indicators"`
	// Weights are "indicator=weight" pairs. Viper lowercases map keys, so
	// indicator names cannot be keys.
	Weights   []string `yaml:"weights" mapstructure:"weights"`
	CacheSize int      `yaml:"cache_size" mapstructure:"cache_size"`
}

// IndicatorsConfig points at an optional catalog override.
type IndicatorsConfig struct {
	CatalogPath string `yaml:"catalog_path" mapstructure:"catalog_path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	// RateLimit is requests per second across /api/v1; 0 disables it.
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("EQUITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	layout := source.DefaultLayout()
	v.SetDefault("store.driver", DriverPostgres)
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.layout.schema", layout.Schema)
	v.SetDefault("store.layout.equity", layout.Equity)
	v.SetDefault("store.layout.transportation", layout.Transportation)
	v.SetDefault("store.layout.counties", layout.Counties)
	v.SetDefault("store.layout.geometry", layout.Geometry)
	v.SetDefault("explorer.concentration", string(stats.Low))
	v.SetDefault("explorer.method", string(normalize.MinMax))
	v.SetDefault("explorer.top_k", 5)
	v.SetDefault("explorer.cache_size", 32)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit", 0)
	v.SetDefault("server.rate_burst", 10)

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

// Validate checks the settings a command needs. mode is one of counties,
// classify, index or serve.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "counties", "classify", "index":
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server.rate_limit must be >= 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
	case DriverSQLite:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the sqlite driver")
		}
	case DriverFiles:
		if len(c.Files.Equity) == 0 {
			errs = append(errs, "files.equity is required for the files driver")
		}
	default:
		errs = append(errs, "store.driver must be postgres, sqlite or files")
	}

	if _, err := stats.ParseLevel(c.Explorer.Concentration); err != nil {
		errs = append(errs, "explorer.concentration must be low, medium or high")
	}
	if _, err := normalize.ParseMethod(c.Explorer.Method); err != nil {
		errs = append(errs, "explorer.method must be minmax or zscore")
	}
	if c.Explorer.TopK < 1 {
		errs = append(errs, "explorer.top_k must be >= 1")
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
