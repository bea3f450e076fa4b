// Package normalize rescales heterogeneous indicator columns into unit-free
// index components where a larger value always means more vulnerable.
package normalize

import (
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/sells-group/equity-explorer/internal/indicator"
	"github.com/sells-group/equity-explorer/internal/model"
	"github.com/sells-group/equity-explorer/internal/stats"
)

// Method selects the rescaling.
type Method string

const (
	// MinMax maps each indicator onto [0,1].
	MinMax Method = "minmax"
	// ZScore maps each indicator to standard deviations from its mean.
	ZScore Method = "zscore"
)

// ParseMethod parses "minmax" or "zscore". Empty means MinMax.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return MinMax, nil
	case MinMax, ZScore:
		return m, nil
	}
	return "", eris.Errorf("normalize: unknown method %q (want minmax or zscore)", s)
}

// Normalized is the weight-independent output of Normalize.
type Normalized struct {
	Method Method `json:"method"`
	// Table holds one column per requested indicator, rows in input order.
	// Geometry is not carried.
	Table       model.Table       `json:"table"`
	Diagnostics model.Diagnostics `json:"diagnostics"`
}

// scaler maps a raw value to its normalized value for one indicator.
type scaler func(v float64) float64

// Normalize rescales the named indicators of tbl. Lower-is-worse indicators
// are inverted so that higher always means more vulnerable. Missing raw
// values stay missing. The result depends only on the set of values per
// indicator, not on row order.
func Normalize(tbl model.Table, cat *indicator.Catalog, names []string, method Method) (Normalized, error) {
	if method == "" {
		method = MinMax
	}
	if method != MinMax && method != ZScore {
		return Normalized{}, eris.Errorf("normalize: unknown method %q", method)
	}
	for _, name := range names {
		if _, ok := cat.Lookup(name); !ok {
			return Normalized{}, eris.Errorf("normalize: unknown indicator %q", name)
		}
	}

	out := Normalized{
		Method: method,
		Table: model.Table{
			Columns: append([]string(nil), names...),
			Tracts:  make([]model.Tract, tbl.Len()),
		},
	}
	if tbl.Len() == 0 {
		out.Diagnostics.Raise(model.DataUnavailable)
	}
	for i, tr := range tbl.Tracts {
		out.Table.Tracts[i] = model.Tract{
			ID:     tr.ID,
			State:  tr.State,
			County: tr.County,
			Values: make(map[string]float64, len(names)),
		}
	}

	for _, name := range names {
		vals := tbl.Column(name)
		if !tbl.HasColumn(name) || len(vals) == 0 {
			if tbl.Len() > 0 {
				out.Diagnostics.Missing(name)
				zap.L().Warn("normalize: indicator has no values",
					zap.String("indicator", name))
			}
			continue
		}

		scale := newScaler(vals, method, cat.Inverted(name))
		for i, tr := range tbl.Tracts {
			if v, ok := tr.Value(name); ok {
				out.Table.Tracts[i].Values[name] = scale(v)
			}
		}
	}
	return out, nil
}

func newScaler(vals []float64, method Method, inverted bool) scaler {
	sign := 1.0
	if inverted {
		sign = -1.0
	}

	switch method {
	case ZScore:
		s := stats.Summarize(vals)
		if !s.HasStdDev() || s.StdDev == 0 {
			return func(float64) float64 { return 0 }
		}
		return func(v float64) float64 { return sign * (v - s.Mean) / s.StdDev }

	default:
		lo, hi := floats.Min(vals), floats.Max(vals)
		spread := hi - lo
		if spread == 0 {
			return func(float64) float64 { return 0 }
		}
		if inverted {
			return func(v float64) float64 { return (hi - v) / spread }
		}
		return func(v float64) float64 { return (v - lo) / spread }
	}
}
