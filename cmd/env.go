package main

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/equity-explorer/internal/config"
	"github.com/sells-group/equity-explorer/internal/db"
	"github.com/sells-group/equity-explorer/internal/explorer"
	"github.com/sells-group/equity-explorer/internal/indicator"
	"github.com/sells-group/equity-explorer/internal/normalize"
	"github.com/sells-group/equity-explorer/internal/scorer"
	"github.com/sells-group/equity-explorer/internal/source"
	"github.com/sells-group/equity-explorer/internal/stats"
)

// explorerEnv bundles the explorer and the source it owns.
type explorerEnv struct {
	Explorer *explorer.Explorer
	src      source.Source
}

// Close releases the source.
func (e *explorerEnv) Close() {
	if err := e.src.Close(); err != nil {
		zap.L().Warn("close source", zap.Error(err))
	}
}

// initExplorer opens the configured source and catalog. cacheSize > 0
// memoizes stages across runs.
func initExplorer(ctx context.Context, c *config.Config, cacheSize int) (*explorerEnv, error) {
	cat, err := loadCatalog(c.Indicators.CatalogPath)
	if err != nil {
		return nil, err
	}
	src, err := openSource(ctx, c)
	if err != nil {
		return nil, err
	}

	var opts []explorer.Option
	if cacheSize > 0 {
		opts = append(opts, explorer.WithCache(explorer.NewCache(cacheSize)))
	}
	return &explorerEnv{Explorer: explorer.New(src, cat, opts...), src: src}, nil
}

func loadCatalog(path string) (*indicator.Catalog, error) {
	if path == "" {
		return indicator.Default(), nil
	}
	return indicator.Load(path)
}

// openSource builds the tract source for the configured driver.
func openSource(ctx context.Context, c *config.Config) (source.Source, error) {
	switch c.Store.Driver {
	case config.DriverPostgres:
		pool, err := db.Connect(ctx, c.Store.DatabaseURL, c.Store.Pool)
		if err != nil {
			return nil, err
		}
		zap.L().Info("connected to database", zap.String("schema", c.Store.Layout.Schema))
		return source.NewPostgres(pool, c.Store.Layout, pool.Close), nil
	case config.DriverSQLite:
		src, err := source.NewSQLite(c.Store.DatabaseURL, c.Store.Layout)
		if err != nil {
			return nil, err
		}
		return src, nil
	case config.DriverFiles:
		src, err := source.OpenFiles(c.Files)
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", c.Store.Driver)
	}
}

// addGeographyFlags registers the flags shared by every run command.
func addGeographyFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("state", "", "state name, e.g. California")
	f.String("counties", "", "comma-separated county names, or All (default All)")
	f.String("concentration", "", "concentration level: low, medium or high (default from config)")
}

// addIndexFlags registers the flags that shape the transportation index.
func addIndexFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("indicators", "", "comma-separated transportation indicators (default from config or catalog)")
	f.String("weights", "", `comma-separated "indicator=weight" pairs (default even weights)`)
	f.String("method", "", "normalization method: minmax or zscore (default from config)")
	f.Int("top", 0, "number of top-ranked tracts to report (default from config)")
}

// runParams builds explorer parameters from config defaults with CLI flag
// overrides applied. Flags that a command does not register are ignored.
func runParams(cmd *cobra.Command, base config.ExplorerConfig) (explorer.Params, error) {
	p := explorer.Params{
		Concentration: stats.Level(base.Concentration),
		Indicators:    base.Indicators,
		Method:        normalize.Method(base.Method),
		TopK:          base.TopK,
	}
	weights := base.Weights

	flags := cmd.Flags()
	if v, _ := flags.GetString("state"); v != "" {
		p.State = v
	}
	if v, _ := flags.GetString("counties"); v != "" {
		p.Counties = splitAndTrim(v)
	}
	if v, _ := flags.GetString("concentration"); v != "" {
		p.Concentration = stats.Level(v)
	}
	if v, _ := flags.GetString("indicators"); v != "" {
		p.Indicators = splitAndTrim(v)
		weights = nil
	}
	if v, _ := flags.GetString("weights"); v != "" {
		weights = splitAndTrim(v)
	}
	if v, _ := flags.GetString("method"); v != "" {
		p.Method = normalize.Method(v)
	}
	if v, _ := flags.GetInt("top"); v > 0 {
		p.TopK = v
	}

	if p.State == "" {
		return explorer.Params{}, eris.New("--state is required")
	}
	if len(weights) > 0 {
		w, err := scorer.ParseWeights(weights)
		if err != nil {
			return explorer.Params{}, err
		}
		p.Weights = w
	}
	return p, nil
}

// openOutput returns stdout or a created file. The close func is always
// safe to call.
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "create output file %s", path)
	}
	return f, f.Close, nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
