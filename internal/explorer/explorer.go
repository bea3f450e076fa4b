// Package explorer runs the equity/transportation pipeline for one
// geography: fetch, unit conversion, classification, restriction to the
// equity subset, normalization and index composition.
package explorer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/equity-explorer/internal/equity"
	"github.com/sells-group/equity-explorer/internal/indicator"
	"github.com/sells-group/equity-explorer/internal/model"
	"github.com/sells-group/equity-explorer/internal/normalize"
	"github.com/sells-group/equity-explorer/internal/scorer"
	"github.com/sells-group/equity-explorer/internal/source"
	"github.com/sells-group/equity-explorer/internal/units"
)

// Stage is the weight-independent part of a run: both table groups fetched,
// converted and split by Equity Geography membership.
type Stage struct {
	Classification equity.Result
	Transport      equity.Comparison
	Diagnostics    model.Diagnostics
}

// Report is the output of one run.
type Report struct {
	RunID       uuid.UUID
	Params      Params
	Stage       Stage
	Normalized  normalize.Normalized
	Index       scorer.Index
	Top         []scorer.Score
	// TopDetail compares each top tract's transportation values with the
	// county averages.
	TopDetail   []equity.TractDetail
	Diagnostics model.Diagnostics
	Elapsed     time.Duration
}

// Explorer runs the pipeline against one source.
type Explorer struct {
	src   source.Source
	cat   *indicator.Catalog
	cache *Cache
}

// Option configures an Explorer.
type Option func(*Explorer)

// WithCache memoizes stages across runs.
func WithCache(c *Cache) Option {
	return func(e *Explorer) { e.cache = c }
}

// New creates an Explorer.
func New(src source.Source, cat *indicator.Catalog, opts ...Option) *Explorer {
	e := &Explorer{src: src, cat: cat}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the indicator catalog in use.
func (e *Explorer) Catalog() *indicator.Catalog { return e.cat }

// Counties lists the counties available for a state.
func (e *Explorer) Counties(ctx context.Context, state string) ([]string, error) {
	return e.src.Counties(ctx, state)
}

// Run executes the full pipeline. DataUnavailable is reported through the
// report's diagnostics, not as an error.
func (e *Explorer) Run(ctx context.Context, p Params) (Report, error) {
	start := time.Now()
	p, err := p.Resolve(e.cat)
	if err != nil {
		return Report{}, err
	}

	rep := Report{RunID: uuid.New(), Params: p}
	log := zap.L().With(
		zap.String("component", "explorer"),
		zap.String("run_id", rep.RunID.String()),
		zap.String("state", p.State),
		zap.Strings("counties", p.Counties),
	)

	rep.Stage, err = e.stage(ctx, p)
	if err != nil {
		return Report{}, err
	}

	rep.Normalized, err = normalize.Normalize(rep.Stage.Transport.Equity, e.cat, p.Indicators, p.Method)
	if err != nil {
		return Report{}, err
	}
	rep.Index, err = scorer.Compose(rep.Normalized, p.Weights)
	if err != nil {
		return Report{}, err
	}
	rep.Top = rep.Index.TopK(p.TopK)
	topIDs := make([]string, len(rep.Top))
	for i, s := range rep.Top {
		topIDs[i] = s.TractID
	}
	rep.TopDetail = rep.Stage.Transport.Detail(topIDs, e.cat.Transportation())

	rep.Diagnostics.Merge(rep.Stage.Diagnostics)
	rep.Diagnostics.Merge(rep.Index.Diagnostics)
	rep.Elapsed = time.Since(start)

	log.Info("explorer: run complete",
		zap.Int("tracts", rep.Stage.Classification.All.Len()),
		zap.Int("equity_geographies", rep.Stage.Classification.Equity.Len()),
		zap.Int("scored", len(rep.Index.Scores)),
		zap.Bool("weights_valid", rep.Index.Valid),
		zap.Duration("elapsed", rep.Elapsed),
	)
	return rep, nil
}

// Classify runs only the weight-independent stage.
func (e *Explorer) Classify(ctx context.Context, p Params) (Stage, Params, error) {
	p, err := p.Resolve(e.cat)
	if err != nil {
		return Stage{}, Params{}, err
	}
	st, err := e.stage(ctx, p)
	return st, p, err
}

func (e *Explorer) stage(ctx context.Context, p Params) (Stage, error) {
	if e.cache == nil {
		return e.buildStage(ctx, p)
	}
	key := cacheKey(p.State, p.Counties, p.Coefficient())
	return e.cache.getOrBuild(key, func() (Stage, error) { return e.buildStage(ctx, p) })
}

func (e *Explorer) buildStage(ctx context.Context, p Params) (Stage, error) {
	var eqTbl, trTbl model.Table
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		eqTbl, err = e.fetch(gctx, p, source.GroupEquity)
		return err
	})
	g.Go(func() error {
		var err error
		trTbl, err = e.fetch(gctx, p, source.GroupTransportation)
		return err
	})
	if err := g.Wait(); err != nil {
		return Stage{}, err
	}

	eqTbl, err := units.Convert(eqTbl, e.cat.Conversions(e.cat.Equity()))
	if err != nil {
		return Stage{}, eris.Wrap(err, "explorer: convert equity units")
	}
	trTbl, err = units.Convert(trTbl, e.cat.Conversions(e.cat.Transportation()))
	if err != nil {
		return Stage{}, eris.Wrap(err, "explorer: convert transportation units")
	}

	res, err := equity.Classify(eqTbl, e.cat, p.Coefficient())
	if err != nil {
		return Stage{}, err
	}

	st := Stage{
		Classification: res,
		Transport:      equity.Restrict(trTbl, res.EquityIDs(), e.cat.Transportation()),
	}
	st.Diagnostics.Merge(res.Diagnostics)
	if trTbl.Len() == 0 {
		st.Diagnostics.Raise(model.DataUnavailable)
	}
	return st, nil
}

// fetch returns an empty table when the geography has no rows.
func (e *Explorer) fetch(ctx context.Context, p Params, g source.Group) (model.Table, error) {
	tbl, err := e.src.Tracts(ctx, source.Query{State: p.State, Counties: p.Counties, Group: g})
	if errors.Is(err, source.ErrDataUnavailable) {
		zap.L().Warn("explorer: no data for geography",
			zap.String("group", string(g)),
			zap.String("state", p.State),
			zap.Strings("counties", p.Counties),
		)
		return model.Table{}, nil
	}
	if err != nil {
		return model.Table{}, eris.Wrapf(err, "explorer: fetch %s tables", g)
	}
	return tbl, nil
}
