package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "census", cfg.Store.Layout.Schema)
	assert.Contains(t, cfg.Store.Layout.Equity, "acs_poverty")
	assert.Contains(t, cfg.Store.Layout.Transportation, "vmt")
	assert.Equal(t, "tracts", cfg.Store.Layout.Geometry)
	assert.Equal(t, "low", cfg.Explorer.Concentration)
	assert.Equal(t, "minmax", cfg.Explorer.Method)
	assert.Equal(t, 5, cfg.Explorer.TopK)
	assert.Equal(t, 32, cfg.Explorer.CacheSize)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Zero(t, cfg.Server.RateLimit)
	assert.Equal(t, 10, cfg.Server.RateBurst)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: files
files:
  equity: [equity.csv]
  transportation: [transport.xlsx]
  shapefile: tl_2022_06_tract.shp
explorer:
  concentration: high
  indicators:
    - Vehicle Miles Traveled
    - Zero-Vehicle Households (%)
  weights:
    - Vehicle Miles Traveled=70
    - Zero-Vehicle Households (%)=30
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "files", cfg.Store.Driver)
	assert.Equal(t, []string{"equity.csv"}, cfg.Files.Equity)
	assert.Equal(t, []string{"transport.xlsx"}, cfg.Files.Transportation)
	assert.Equal(t, "tl_2022_06_tract.shp", cfg.Files.Shapefile)
	assert.Equal(t, "high", cfg.Explorer.Concentration)
	assert.Equal(t, []string{"Vehicle Miles Traveled", "Zero-Vehicle Households (%)"}, cfg.Explorer.Indicators)
	assert.Equal(t, []string{"Vehicle Miles Traveled=70", "Zero-Vehicle Households (%)=30"}, cfg.Explorer.Weights)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, 5, cfg.Explorer.TopK)
	assert.NoError(t, cfg.Validate("index"))
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("EQUITY_STORE_DRIVER", "postgres")
	t.Setenv("EQUITY_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("EQUITY_SERVER_PORT", "3000")
	t.Setenv("EQUITY_STORE_DATABASE_URL", "postgres://localhost/census")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "postgres://localhost/census", cfg.Store.DatabaseURL)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = DriverPostgres
	cfg.Store.DatabaseURL = "postgres://localhost/census"
	cfg.Explorer.Concentration = "low"
	cfg.Explorer.Method = "minmax"
	cfg.Explorer.TopK = 5
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate_AllModes(t *testing.T) {
	cfg := validDefaults()
	for _, mode := range []string{"counties", "classify", "index", "serve"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}
}

func TestValidate_Drivers(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"postgres without url", func(c *Config) { c.Store.DatabaseURL = "" }, "store.database_url is required for the postgres driver"},
		{"sqlite without url", func(c *Config) { c.Store.Driver = DriverSQLite; c.Store.DatabaseURL = "" }, "sqlite driver"},
		{"sqlite with path", func(c *Config) { c.Store.Driver = DriverSQLite; c.Store.DatabaseURL = "extract.db" }, ""},
		{"files without equity", func(c *Config) { c.Store.Driver = DriverFiles }, "files.equity is required"},
		{"files with equity", func(c *Config) { c.Store.Driver = DriverFiles; c.Files.Equity = []string{"e.csv"} }, ""},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mysql" }, "store.driver must be"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate("classify")
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_Explorer(t *testing.T) {
	cfg := validDefaults()
	cfg.Explorer.Concentration = "extreme"
	cfg.Explorer.Method = "rank"
	cfg.Explorer.TopK = 0

	err := cfg.Validate("index")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "explorer.concentration")
	assert.Contains(t, err.Error(), "explorer.method")
	assert.Contains(t, err.Error(), "explorer.top_k must be >= 1")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")

	cfg = validDefaults()
	cfg.Server.RateLimit = -1
	err = cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.rate_limit")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
