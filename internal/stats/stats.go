// Package stats computes per-indicator concentration statistics and
// coefficient-scaled thresholds over a reference population of tracts.
package stats

import (
	"encoding/json"
	"math"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/equity-explorer/internal/model"
)

// Level is a named concentration requirement.
type Level string

const (
	Low    Level = "low"
	Medium Level = "medium"
	High   Level = "high"
)

var coefficients = map[Level]float64{
	Low:    0.5,
	Medium: 1.0,
	High:   1.5,
}

// ParseLevel parses "low", "medium" or "high" (case-insensitive).
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := coefficients[l]; !ok {
		return "", eris.Errorf("stats: unknown concentration level %q (want low, medium or high)", s)
	}
	return l, nil
}

// Coefficient returns the standard-deviation multiplier for the level.
func (l Level) Coefficient() float64 { return coefficients[l] }

// Summary describes one indicator's values over a population.
type Summary struct {
	N    int     `json:"n"`
	Mean float64 `json:"mean"`
	// StdDev is the sample standard deviation; NaN when N < 2.
	StdDev float64 `json:"std_dev"`
}

// HasStdDev reports whether the standard deviation is defined.
func (s Summary) HasStdDev() bool { return s.N >= 2 && !math.IsNaN(s.StdDev) }

// MarshalJSON renders undefined statistics as null.
func (s Summary) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		N      int      `json:"n"`
		Mean   *float64 `json:"mean"`
		StdDev *float64 `json:"std_dev"`
	}{N: s.N, Mean: finite(s.Mean), StdDev: finite(s.StdDev)})
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Summarize computes N, mean and sample standard deviation of values. Missing
// values must already be excluded by the caller. Values are summed in sorted
// order so the result does not depend on row order.
func Summarize(values []float64) Summary {
	switch len(values) {
	case 0:
		return Summary{Mean: math.NaN(), StdDev: math.NaN()}
	case 1:
		return Summary{N: 1, Mean: values[0], StdDev: math.NaN()}
	}
	// Sample standard deviation (n-1), matching pandas std().
	mean, std := stat.MeanStdDev(slices.Sorted(slices.Values(values)), nil)
	return Summary{N: len(values), Mean: mean, StdDev: std}
}

// Threshold is the concentration threshold for one indicator.
type Threshold struct {
	Summary
	Value float64 `json:"threshold"`
	// Degenerate is set when the standard deviation is undefined and the
	// threshold fell back to the mean.
	Degenerate bool `json:"degenerate"`
}

// MarshalJSON keeps the embedded summary fields alongside the threshold.
func (t Threshold) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		N          int      `json:"n"`
		Mean       *float64 `json:"mean"`
		StdDev     *float64 `json:"std_dev"`
		Value      *float64 `json:"threshold"`
		Degenerate bool     `json:"degenerate"`
	}{t.N, finite(t.Mean), finite(t.StdDev), finite(t.Value), t.Degenerate})
}

// Thresholds holds the per-indicator thresholds for one population and
// coefficient. It is recomputed on every call and never cached.
type Thresholds struct {
	Coefficient float64              `json:"coefficient"`
	Population  int                  `json:"population"`
	ByIndicator map[string]Threshold `json:"by_indicator"`
	Diagnostics model.Diagnostics    `json:"diagnostics"`
}

// Get returns the threshold for name. Indicators with no values have none.
func (t Thresholds) Get(name string) (Threshold, bool) {
	th, ok := t.ByIndicator[name]
	return th, ok
}

// Meets reports whether the tract's value for name is at or above its
// threshold. A missing value or missing threshold never meets.
func (t Thresholds) Meets(name string, tr model.Tract) bool {
	th, ok := t.Get(name)
	if !ok {
		return false
	}
	v, ok := tr.Value(name)
	return ok && v >= th.Value
}

// ValidateCoefficient rejects NaN, infinite and negative coefficients.
func ValidateCoefficient(coefficient float64) error {
	if math.IsNaN(coefficient) || math.IsInf(coefficient, 0) || coefficient < 0 {
		return eris.Errorf("stats: invalid coefficient %v", coefficient)
	}
	return nil
}

// Compute returns threshold = mean + std*coefficient for each named indicator
// over the table's tracts. Missing values are excluded. With fewer than two
// values the threshold is the mean and the indicator is flagged degenerate;
// with none it is reported missing.
func Compute(tbl model.Table, names []string, coefficient float64) (Thresholds, error) {
	if err := ValidateCoefficient(coefficient); err != nil {
		return Thresholds{}, err
	}

	out := Thresholds{
		Coefficient: coefficient,
		Population:  tbl.Len(),
		ByIndicator: make(map[string]Threshold, len(names)),
	}
	if tbl.Len() == 0 {
		out.Diagnostics.Raise(model.DataUnavailable)
	}

	log := zap.L().With(zap.String("component", "stats"))
	for _, name := range names {
		s := Summarize(tbl.Column(name))
		switch {
		case s.N == 0:
			out.Diagnostics.Missing(name)
			log.Warn("indicator has no values", zap.String("indicator", name))
		case !s.HasStdDev():
			out.ByIndicator[name] = Threshold{Summary: s, Value: s.Mean, Degenerate: true}
			out.Diagnostics.Degenerate(name)
			log.Warn("standard deviation undefined, threshold falls back to mean",
				zap.String("indicator", name),
				zap.Int("n", s.N),
			)
		default:
			out.ByIndicator[name] = Threshold{Summary: s, Value: s.Mean + s.StdDev*coefficient}
		}
	}
	return out, nil
}

// Averages returns the mean of each named indicator over the table, skipping
// missing values. Indicators without any value are omitted.
func Averages(tbl model.Table, names []string) map[string]float64 {
	out := make(map[string]float64, len(names))
	for _, name := range names {
		vals := tbl.Column(name)
		if len(vals) == 0 {
			continue
		}
		out[name] = Summarize(vals).Mean
	}
	return out
}
