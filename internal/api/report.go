package api

import (
	"math"

	"github.com/sells-group/equity-explorer/internal/equity"
	"github.com/sells-group/equity-explorer/internal/explorer"
	"github.com/sells-group/equity-explorer/internal/indicator"
	"github.com/sells-group/equity-explorer/internal/model"
	"github.com/sells-group/equity-explorer/internal/scorer"
	"github.com/sells-group/equity-explorer/internal/stats"
)

type report struct {
	RunID          string            `json:"run_id"`
	Params         explorer.Params   `json:"params"`
	Classification classification    `json:"classification"`
	Transportation comparison        `json:"transportation"`
	Index          scorer.Index      `json:"index"`
	Top            []scorer.Score    `json:"top"`
	TopDetail      []tractDetail     `json:"top_detail"`
	Diagnostics    model.Diagnostics `json:"diagnostics"`
	ElapsedMS      int64             `json:"elapsed_ms"`
}

type classification struct {
	Tracts            int                  `json:"tracts"`
	EquityGeographies []string             `json:"equity_geographies"`
	Counts            map[equity.Label]int `json:"counts"`
	Labels            []tractLabel         `json:"labels"`
	Thresholds        stats.Thresholds     `json:"thresholds"`
	Averages          map[string]*float64  `json:"averages"`
	EquityAverages    map[string]*float64  `json:"equity_averages"`
	FailedClosed      bool                 `json:"failed_closed,omitempty"`
}

type tractLabel struct {
	TractID string       `json:"census_tract"`
	County  string       `json:"county"`
	Label   equity.Label `json:"label"`
}

type comparison struct {
	Tracts         int                 `json:"tracts"`
	EquityTracts   int                 `json:"equity_tracts"`
	Averages       map[string]*float64 `json:"averages"`
	EquityAverages map[string]*float64 `json:"equity_averages"`
}

// tractDetail is one top tract against the county averages.
type tractDetail struct {
	TractID    string            `json:"census_tract"`
	County     string            `json:"county"`
	Indicators []indicatorDetail `json:"indicators"`
}

type indicatorDetail struct {
	Indicator     string   `json:"indicator"`
	Value         *float64 `json:"value"`
	CountyAverage *float64 `json:"county_average"`
	Delta         *float64 `json:"delta"`
	// Display is e.g. "30.0% (+19.8% from county average)".
	Display       string   `json:"display"`
}

func newReport(rep explorer.Report, cat *indicator.Catalog) report {
	cls := rep.Stage.Classification
	labels := make([]tractLabel, len(cls.All.Tracts))
	for i, tr := range cls.All.Tracts {
		labels[i] = tractLabel{TractID: tr.ID, County: tr.County, Label: cls.Labels[i]}
	}

	top := rep.Top
	if top == nil {
		top = []scorer.Score{}
	}
	ix := rep.Index
	if ix.Scores == nil {
		ix.Scores = []scorer.Score{}
	}

	return report{
		RunID:  rep.RunID.String(),
		Params: rep.Params,
		Classification: classification{
			Tracts:            cls.All.Len(),
			EquityGeographies: nonNil(cls.EquityIDs()),
			Counts:            cls.CountByLabel(),
			Labels:            labels,
			Thresholds:        cls.Thresholds,
			Averages:          numbers(cls.Averages),
			EquityAverages:    numbers(cls.EquityAverages),
			FailedClosed:      cls.FailedClosed,
		},
		Transportation: comparison{
			Tracts:         rep.Stage.Transport.All.Len(),
			EquityTracts:   rep.Stage.Transport.Equity.Len(),
			Averages:       numbers(rep.Stage.Transport.Averages),
			EquityAverages: numbers(rep.Stage.Transport.EquityAverages),
		},
		Index:       ix,
		Top:         top,
		TopDetail:   newTopDetail(rep.TopDetail, cat),
		Diagnostics: rep.Diagnostics,
		ElapsedMS:   rep.Elapsed.Milliseconds(),
	}
}

func newTopDetail(details []equity.TractDetail, cat *indicator.Catalog) []tractDetail {
	out := make([]tractDetail, 0, len(details))
	for _, d := range details {
		td := tractDetail{TractID: d.TractID, County: d.County, Indicators: make([]indicatorDetail, 0, len(d.Indicators))}
		for _, ind := range d.Indicators {
			td.Indicators = append(td.Indicators, indicatorDetail{
				Indicator:     ind.Indicator,
				Value:         number(ind.Value),
				CountyAverage: number(ind.CountyAverage),
				Delta:         number(ind.Delta),
				Display:       cat.FormatComparison(ind.Indicator, ind.Value, ind.Delta),
			})
		}
		out = append(out, td)
	}
	return out
}

// number maps NaN and infinities to nil.
func number(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// numbers maps NaN and infinities to null.
func numbers(m map[string]float64) map[string]*float64 {
	out := make(map[string]*float64, len(m))
	for k, v := range m {
		out[k] = number(v)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
