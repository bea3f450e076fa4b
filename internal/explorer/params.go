package explorer

import (
	"slices"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/equity-explorer/internal/indicator"
	"github.com/sells-group/equity-explorer/internal/normalize"
	"github.com/sells-group/equity-explorer/internal/scorer"
	"github.com/sells-group/equity-explorer/internal/source"
	"github.com/sells-group/equity-explorer/internal/stats"
)

// DefaultTopK is the number of top-ranked tracts reported when unset.
const DefaultTopK = 5

// Params is the full parameter set for one explorer run. Runs never mutate
// it; Resolve returns a filled-in copy.
type Params struct {
	State         string           `json:"state"`
	Counties      []string         `json:"counties"`
	Concentration stats.Level      `json:"concentration"`
	Indicators    []string         `json:"indicators,omitempty"`
	Weights       scorer.Weights   `json:"weights,omitempty"`
	Method        normalize.Method `json:"method,omitempty"`
	TopK          int              `json:"top_k,omitempty"`
}

// Resolve validates p against the catalog and fills defaults: low
// concentration, all counties, the catalog's default indicator selection,
// min-max normalization, even weights and the default top-K.
func (p Params) Resolve(cat *indicator.Catalog) (Params, error) {
	out := p
	out.State = strings.TrimSpace(p.State)
	if out.State == "" {
		return Params{}, eris.New("explorer: state is required")
	}

	out.Counties = slices.Clone(p.Counties)
	if len(out.Counties) == 0 {
		out.Counties = []string{source.AllCounties}
	}

	if out.Concentration == "" {
		out.Concentration = stats.Low
	}
	level, err := stats.ParseLevel(string(out.Concentration))
	if err != nil {
		return Params{}, eris.Wrap(err, "explorer: concentration")
	}
	out.Concentration = level

	out.Indicators = dedupe(p.Indicators)
	if len(out.Indicators) == 0 {
		out.Indicators = dedupe(cat.DefaultSelection)
	}
	for _, name := range out.Indicators {
		ind, ok := cat.Lookup(name)
		if !ok || ind.Group != indicator.GroupTransportation {
			return Params{}, eris.Errorf("explorer: %q is not a transportation indicator", name)
		}
	}

	method, err := normalize.ParseMethod(string(p.Method))
	if err != nil {
		return Params{}, eris.Wrap(err, "explorer: method")
	}
	out.Method = method

	if len(p.Weights) == 0 {
		out.Weights = scorer.EvenWeights(out.Indicators)
	} else {
		out.Weights = make(scorer.Weights, len(p.Weights))
		for name, w := range p.Weights {
			if !slices.Contains(out.Indicators, name) {
				return Params{}, eris.Errorf("explorer: weight for unselected indicator %q", name)
			}
			out.Weights[name] = w
		}
	}

	if out.TopK == 0 {
		out.TopK = DefaultTopK
	}
	return out, nil
}

// dedupe returns names with repeats removed, keeping first occurrences in
// order.
func dedupe(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	return out
}

// Coefficient returns the standard-deviation multiplier for the
// concentration level.
func (p Params) Coefficient() float64 { return p.Concentration.Coefficient() }
