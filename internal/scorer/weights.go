// Package scorer composes the Transportation Vulnerability Index from
// normalized indicator values and user-supplied integer weights.
package scorer

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Weight bounds. The sum band allows for rounding when 100 is split evenly
// across N indicators.
const (
	MinWeight    = 0
	MaxWeight    = 100
	MinWeightSum = 99
	MaxWeightSum = 101
)

// Weights maps an indicator name to an integer weight in [0,100].
type Weights map[string]int

// EvenWeights splits 100 evenly across names, rounding each share half to
// even (8 indicators get 12 each).
func EvenWeights(names []string) Weights {
	w := make(Weights, len(names))
	if len(names) == 0 {
		return w
	}
	share := int(math.RoundToEven(100 / float64(len(names))))
	for _, n := range names {
		w[n] = share
	}
	return w
}

// Sum returns the total of all weights.
func (w Weights) Sum() int {
	var s int
	for _, v := range w {
		s += v
	}
	return s
}

// Names returns the weighted indicator names in sorted order.
func (w Weights) Names() []string {
	names := make([]string, 0, len(w))
	for n := range w {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// ParseWeights parses "name=weight" pairs, e.g. from repeated CLI flags.
func ParseWeights(pairs []string) (Weights, error) {
	w := make(Weights, len(pairs))
	for _, p := range pairs {
		name, val, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, eris.Errorf("scorer: weight %q must look like name=weight", p)
		}
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return nil, eris.Wrapf(err, "scorer: weight for %q is not an integer", name)
		}
		w[name] = n
	}
	return w, nil
}

// ValidateWeights checks each weight is in [0,100] and the sum is in
// [99,101] inclusive. A failing result still allows a provisional index.
func ValidateWeights(w Weights) error {
	var errs []string

	for _, name := range w.Names() {
		if v := w[name]; v < MinWeight || v > MaxWeight {
			errs = append(errs, fmt.Sprintf("%s must be between %d and %d (got %d)", name, MinWeight, MaxWeight, v))
		}
	}

	if sum := w.Sum(); sum < MinWeightSum || sum > MaxWeightSum {
		errs = append(errs, fmt.Sprintf("weights must sum to 100, got %d", sum))
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: invalid weights: %s", strings.Join(errs, "; "))
	}
	return nil
}
