// Package export renders explorer results as text tables, CSV, XLSX and
// GeoJSON.
package export

import (
	"math"
	"strconv"

	"github.com/sells-group/equity-explorer/internal/equity"
	"github.com/sells-group/equity-explorer/internal/indicator"
	"github.com/sells-group/equity-explorer/internal/scorer"
)

// Rows is a rectangular result. Cells hold string, int, bool or float64;
// NaN floats are missing.
type Rows struct {
	Name   string
	Header []string
	Data   [][]any
}

// ClassificationRows lists every tract with its label and classification
// indicator values.
func ClassificationRows(res equity.Result, cat *indicator.Catalog) Rows {
	names := cat.Equity()
	r := Rows{
		Name:   "Equity Geographies",
		Header: append([]string{"census_tract", "state", "county", "criteria"}, names...),
	}
	for i, tr := range res.All.Tracts {
		row := []any{tr.ID, tr.State, tr.County, string(res.Labels[i])}
		for _, name := range names {
			row = append(row, value(tr.Value(name)))
		}
		r.Data = append(r.Data, row)
	}
	return r
}

// ThresholdRows lists each classification indicator's statistics.
func ThresholdRows(res equity.Result, cat *indicator.Catalog) Rows {
	r := Rows{
		Name:   "Thresholds",
		Header: []string{"indicator", "n", "mean", "std_dev", "threshold", "degenerate"},
	}
	for _, name := range cat.Equity() {
		th, ok := res.Thresholds.Get(name)
		if !ok {
			r.Data = append(r.Data, []any{name, 0, math.NaN(), math.NaN(), math.NaN(), false})
			continue
		}
		r.Data = append(r.Data, []any{name, th.N, th.Mean, th.StdDev, th.Value, th.Degenerate})
	}
	return r
}

// AverageRows compares indicator averages over all tracts and over the
// Equity Geography subset.
func AverageRows(name string, names []string, all, equity map[string]float64, cat *indicator.Catalog) Rows {
	r := Rows{
		Name:   name,
		Header: []string{"indicator", "all_tracts", "equity_geographies"},
	}
	for _, n := range names {
		a, okA := all[n]
		e, okE := equity[n]
		if !okA && !okE {
			continue
		}
		r.Data = append(r.Data, []any{n, display(cat, n, a, okA), display(cat, n, e, okE)})
	}
	return r
}

// IndexRows lists ranked scores with each indicator's weighted contribution.
func IndexRows(ix scorer.Index, scores []scorer.Score) Rows {
	names := ix.Weights.Names()
	r := Rows{
		Name:   "Vulnerability Index",
		Header: append([]string{"rank", "census_tract", "county", "score", "incomplete"}, names...),
	}
	for _, s := range scores {
		row := []any{s.Rank, s.TractID, s.County, s.Score, s.Incomplete}
		byName := make(map[string]scorer.Contribution, len(s.Contributions))
		for _, c := range s.Contributions {
			byName[c.Indicator] = c
		}
		for _, n := range names {
			c, ok := byName[n]
			if !ok || c.Missing {
				row = append(row, math.NaN())
				continue
			}
			row = append(row, c.Weighted)
		}
		r.Data = append(r.Data, row)
	}
	return r
}

// DetailRows lists, for each top tract, every transportation indicator's raw
// value against the county average.
func DetailRows(details []equity.TractDetail, cat *indicator.Catalog) Rows {
	r := Rows{
		Name:   "Top Tract Detail",
		Header: []string{"census_tract", "county", "indicator", "value", "county_average", "difference", "summary"},
	}
	for _, d := range details {
		for _, ind := range d.Indicators {
			r.Data = append(r.Data, []any{
				d.TractID, d.County, ind.Indicator, ind.Value, ind.CountyAverage, ind.Delta,
				cat.FormatComparison(ind.Indicator, ind.Value, ind.Delta),
			})
		}
	}
	return r
}

func value(v float64, ok bool) float64 {
	if !ok {
		return math.NaN()
	}
	return v
}

func display(cat *indicator.Catalog, name string, v float64, ok bool) string {
	return cat.Format(name, value(v, ok))
}

// text renders a cell for table and CSV output. prec < 0 keeps full precision.
func text(v any, prec int) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case float64:
		if math.IsNaN(x) {
			return ""
		}
		return strconv.FormatFloat(x, 'f', prec, 64)
	}
	return ""
}
