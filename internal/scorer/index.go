package scorer

import (
	"cmp"
	"maps"
	"math"
	"slices"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/equity-explorer/internal/model"
	"github.com/sells-group/equity-explorer/internal/normalize"
)

// Contribution is one indicator's share of a tract's score.
type Contribution struct {
	Indicator string  `json:"indicator"`
	Weight    int     `json:"weight"`
	Value     float64 `json:"value"`
	Weighted  float64 `json:"weighted"`
	Missing   bool    `json:"missing,omitempty"`
}

// Score is the composite index value for a single tract.
type Score struct {
	Rank          int            `json:"rank"`
	TractID       string         `json:"census_tract"`
	State         string         `json:"state"`
	County        string         `json:"county"`
	Score         float64        `json:"score"`
	Incomplete    bool           `json:"incomplete,omitempty"`
	Contributions []Contribution `json:"contributions"`

	row int
}

// Index is the ranked Transportation Vulnerability Index.
type Index struct {
	Scores    []Score `json:"scores"`
	Weights   Weights `json:"weights"`
	WeightSum int     `json:"weight_sum"`
	// Valid is false when the weights failed validation; scores are then
	// provisional and must not be presented as authoritative.
	Valid       bool              `json:"valid"`
	Warning     string            `json:"warning,omitempty"`
	Diagnostics model.Diagnostics `json:"diagnostics"`
}

// Compose computes score = sum(weight * normalized value) per tract and ranks
// tracts descending, ties broken by original row order. Invalid weights still
// produce a provisional index. A missing normalized value contributes 0 and
// marks the score incomplete. Weights naming an indicator the normalized
// table does not carry are an error.
func Compose(n normalize.Normalized, w Weights) (Index, error) {
	for _, name := range w.Names() {
		if !n.Table.HasColumn(name) {
			return Index{}, eris.Errorf("scorer: weighted indicator %q was not normalized", name)
		}
	}
	// Each weighted indicator counts once, in column order.
	selected := w.Names()
	slices.SortStableFunc(selected, func(a, b string) int {
		return cmp.Compare(slices.Index(n.Table.Columns, a), slices.Index(n.Table.Columns, b))
	})

	ix := Index{
		Weights:   maps.Clone(w),
		WeightSum: w.Sum(),
		Valid:     true,
	}
	ix.Diagnostics.Merge(n.Diagnostics)

	if err := ValidateWeights(w); err != nil {
		ix.Valid = false
		ix.Warning = err.Error()
		ix.Diagnostics.Raise(model.InvalidWeights)
		zap.L().Warn("scorer: index is provisional", zap.Error(err))
	}

	ix.Scores = make([]Score, len(n.Table.Tracts))
	for i, tr := range n.Table.Tracts {
		s := Score{
			TractID:       tr.ID,
			State:         tr.State,
			County:        tr.County,
			Contributions: make([]Contribution, 0, len(selected)),
			row:           i,
		}
		for _, name := range selected {
			c := Contribution{Indicator: name, Weight: w[name]}
			if v, ok := tr.Value(name); ok {
				c.Value = v
				c.Weighted = float64(c.Weight) * v
			} else {
				c.Missing = true
				s.Incomplete = true
			}
			s.Score += c.Weighted
			s.Contributions = append(s.Contributions, c)
		}
		ix.Scores[i] = s
	}

	sortByScore(ix.Scores)
	for i := range ix.Scores {
		ix.Scores[i].Rank = i + 1
	}
	return ix, nil
}

// sortByScore sorts scores descending by Score; equal scores keep their
// original row order.
func sortByScore(scores []Score) {
	slices.SortStableFunc(scores, func(a, b Score) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.row, b.row)
	})
}

// TopK returns the k highest-ranked scores. k is clamped to [1, len].
func (ix Index) TopK(k int) []Score {
	if len(ix.Scores) == 0 {
		return nil
	}
	k = max(1, min(k, len(ix.Scores)))
	return ix.Scores[:k]
}

// Lookup returns the score for a tract id.
func (ix Index) Lookup(id string) (Score, bool) {
	for _, s := range ix.Scores {
		if s.TractID == id {
			return s, true
		}
	}
	return Score{}, false
}

// Rounded returns the score rounded to the nearest integer for display,
// halves to even.
func (s Score) Rounded() int { return int(math.RoundToEven(s.Score)) }
