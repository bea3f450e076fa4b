// Package equity identifies Equity Geographies: census tracts with a
// concentration of people of color and low-income households (Criteria A) or
// of three or more remaining equity indicators plus low-income households
// (Criteria B).
package equity

import (
	"math"

	"go.uber.org/zap"

	"github.com/sells-group/equity-explorer/internal/indicator"
	"github.com/sells-group/equity-explorer/internal/model"
	"github.com/sells-group/equity-explorer/internal/stats"
)

// Label is the per-tract criteria classification.
type Label string

const (
	Unclassified Label = "Unclassified"
	NoCriteria   Label = "No Criteria Met"
	CriteriaA    Label = "Criteria A"
	CriteriaB    Label = "Criteria B"
	CriteriaAB   Label = "Criteria A and B"
)

// remainingRequired is how many of the remaining six must meet their
// thresholds for Criteria B.
const remainingRequired = 3

// IsEquityGeography reports whether the label meets Criteria A, B or both.
func (l Label) IsEquityGeography() bool {
	return l == CriteriaA || l == CriteriaB || l == CriteriaAB
}

// Evaluate labels one tract against thresholds. It depends only on the
// tract's own values and the thresholds.
//   - Criteria A: people of color AND low-income at or above threshold
//   - Criteria B: 3+ remaining indicators AND low-income at or above threshold
func Evaluate(tr model.Tract, th stats.Thresholds, cat *indicator.Catalog) Label {
	lowIncome := th.Meets(cat.LowIncome(), tr)
	a := lowIncome && th.Meets(cat.PeopleOfColor(), tr)

	var met int
	for _, name := range cat.Remaining() {
		if th.Meets(name, tr) {
			met++
		}
	}
	b := lowIncome && met >= remainingRequired

	switch {
	case a && b:
		return CriteriaAB
	case a:
		return CriteriaA
	case b:
		return CriteriaB
	default:
		return NoCriteria
	}
}

// Result is the output of Classify.
type Result struct {
	// All is the full county-wide set in original row order.
	All model.Table
	// Labels is parallel to All.Tracts.
	Labels []Label
	// Equity is the Equity Geography subset of All.
	Equity         model.Table
	Thresholds     stats.Thresholds
	Averages       map[string]float64
	EquityAverages map[string]float64
	// FailedClosed is set when a required indicator was absent; no tract is
	// reported as an Equity Geography.
	FailedClosed bool
	Diagnostics  model.Diagnostics
}

// Label returns the label for a tract id, or Unclassified if unknown.
func (r Result) Label(id string) Label {
	for i, tr := range r.All.Tracts {
		if tr.ID == id {
			return r.Labels[i]
		}
	}
	return Unclassified
}

// EquityIDs returns the Equity Geography tract ids in row order.
func (r Result) EquityIDs() []string { return r.Equity.IDs() }

// CountByLabel returns how many tracts carry each label.
func (r Result) CountByLabel() map[Label]int {
	counts := make(map[Label]int)
	for _, l := range r.Labels {
		counts[l]++
	}
	return counts
}

// Classify computes thresholds over tbl at the given coefficient and labels
// every tract. If any classification indicator is absent from the schema or
// has no values, it fails closed: every tract is Unclassified and the equity
// subset is empty.
func Classify(tbl model.Table, cat *indicator.Catalog, coefficient float64) (Result, error) {
	names := cat.Equity()

	if err := stats.ValidateCoefficient(coefficient); err != nil {
		return Result{}, err
	}
	if tbl.Len() == 0 {
		res := Result{
			All:            model.Table{Columns: tbl.Columns},
			Equity:         model.Table{Columns: tbl.Columns},
			Thresholds:     stats.Thresholds{Coefficient: coefficient, ByIndicator: map[string]stats.Threshold{}},
			Averages:       map[string]float64{},
			EquityAverages: map[string]float64{},
		}
		res.Diagnostics.Raise(model.DataUnavailable)
		return res, nil
	}

	th, err := stats.Compute(tbl, names, coefficient)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		All:        tbl.Clone(),
		Labels:     make([]Label, tbl.Len()),
		Equity:     model.Table{Columns: append([]string(nil), tbl.Columns...)},
		Thresholds: th,
	}
	for _, name := range names {
		if !tbl.HasColumn(name) {
			res.Diagnostics.Missing(name)
		}
	}
	res.Diagnostics.Merge(th.Diagnostics)

	log := zap.L().With(zap.String("component", "equity"))

	if res.Diagnostics.Has(model.MissingIndicator) {
		res.FailedClosed = true
		for i := range res.Labels {
			res.Labels[i] = Unclassified
		}
		log.Warn("required indicator missing, reporting no equity geographies",
			zap.Strings("missing", res.Diagnostics.MissingIndicators),
			zap.Int("tracts", tbl.Len()),
		)
	} else {
		for i, tr := range res.All.Tracts {
			res.Labels[i] = Evaluate(tr, th, cat)
			if res.Labels[i].IsEquityGeography() {
				res.Equity.Tracts = append(res.Equity.Tracts, tr.Clone())
			}
		}
	}

	res.Averages = stats.Averages(res.All, names)
	res.EquityAverages = stats.Averages(res.Equity, names)

	log.Debug("classified tracts",
		zap.Int("tracts", tbl.Len()),
		zap.Int("equity_geographies", res.Equity.Len()),
		zap.Float64("coefficient", coefficient),
	)
	return res, nil
}

// Comparison is another table group split by Equity Geography membership.
type Comparison struct {
	All            model.Table
	Equity         model.Table
	Averages       map[string]float64
	EquityAverages map[string]float64
}

// Restrict splits tbl into the rows whose tract id is in ids and the full
// set, with per-indicator averages for both.
func Restrict(tbl model.Table, ids []string, names []string) Comparison {
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	cmp := Comparison{
		All:    tbl.Clone(),
		Equity: tbl.Filter(func(tr model.Tract) bool { return keep[tr.ID] }),
	}
	cmp.Averages = stats.Averages(cmp.All, names)
	cmp.EquityAverages = stats.Averages(cmp.Equity, names)
	return cmp
}

// IndicatorDetail is one tract's raw value for an indicator next to the
// average over every tract in the selected counties. Missing values are NaN.
type IndicatorDetail struct {
	Indicator     string
	Value         float64
	CountyAverage float64
	Delta         float64
}

// TractDetail shows where a tract stands against the county average.
type TractDetail struct {
	TractID    string
	County     string
	Indicators []IndicatorDetail
}

// Detail returns per-indicator value, county average and difference for each
// id in order. Ids not in the table are skipped.
func (c Comparison) Detail(ids []string, names []string) []TractDetail {
	out := make([]TractDetail, 0, len(ids))
	for _, id := range ids {
		tr, ok := c.All.Find(id)
		if !ok {
			continue
		}
		d := TractDetail{TractID: tr.ID, County: tr.County, Indicators: make([]IndicatorDetail, 0, len(names))}
		for _, name := range names {
			avg, ok := c.Averages[name]
			if !ok {
				avg = math.NaN()
			}
			v, ok := tr.Value(name)
			if !ok {
				v = math.NaN()
			}
			d.Indicators = append(d.Indicators, IndicatorDetail{
				Indicator:     name,
				Value:         v,
				CountyAverage: avg,
				Delta:         v - avg,
			})
		}
		out = append(out, d)
	}
	return out
}
