// Package units converts raw census measurement columns into comparable
// percentage and rate units.
package units

import (
	"math"
	"slices"

	"github.com/rotisserie/eris"

	"github.com/sells-group/equity-explorer/internal/model"
)

// Unit is the semantic unit of a raw source column.
type Unit string

const (
	Percent  Unit = "percent"  // already 0-100
	Fraction Unit = "fraction" // 0-1 share
	Count    Unit = "count"    // count over a population denominator
	Rate     Unit = "rate"     // value over a denominator, scaled by Per
	Absolute Unit = "absolute" // miles, minutes, dollars; copied as-is
)

// Valid reports whether u is a known unit.
func (u Unit) Valid() bool {
	switch u {
	case Percent, Fraction, Count, Rate, Absolute:
		return true
	}
	return false
}

// Rule describes how one indicator column is derived from a raw column.
type Rule struct {
	Target      string  `yaml:"target" json:"target"`
	Source      string  `yaml:"source" json:"source"`
	Unit        Unit    `yaml:"unit" json:"unit"`
	Denominator string  `yaml:"denominator,omitempty" json:"denominator,omitempty"`
	Per         float64 `yaml:"per,omitempty" json:"per,omitempty"`
}

// Validate checks that s is internally consistent.
func (s Rule) Validate() error {
	if s.Target == "" || s.Source == "" {
		return eris.New("units: rule requires target and source")
	}
	if !s.Unit.Valid() {
		return eris.Errorf("units: unknown unit %q for %s", s.Unit, s.Target)
	}
	if (s.Unit == Count || s.Unit == Rate) && s.Denominator == "" {
		return eris.Errorf("units: %s unit for %s requires a denominator", s.Unit, s.Target)
	}
	if s.Unit == Rate && s.Per <= 0 {
		return eris.Errorf("units: rate unit for %s requires per > 0", s.Target)
	}
	return nil
}

// Convert returns a new table with each rule's target column added. A missing
// source value, or a missing or zero denominator, leaves the target missing
// for that tract. The input table is not modified.
func Convert(tbl model.Table, rules []Rule) (model.Table, error) {
	for _, s := range rules {
		if err := s.Validate(); err != nil {
			return model.Table{}, err
		}
	}

	out := tbl.Clone()
	for _, s := range rules {
		// A source column the boundary never saw produces no target column,
		// so downstream stages can report it as missing.
		if !tbl.HasColumn(s.Source) {
			continue
		}
		if !slices.Contains(out.Columns, s.Target) {
			out.Columns = append(out.Columns, s.Target)
		}
		for i := range out.Tracts {
			v, ok := convertOne(tbl.Tracts[i], s)
			if ok {
				out.Tracts[i].Values[s.Target] = v
			} else {
				delete(out.Tracts[i].Values, s.Target)
			}
		}
	}
	return out, nil
}

func convertOne(tr model.Tract, s Rule) (float64, bool) {
	raw, ok := tr.Value(s.Source)
	if !ok {
		return 0, false
	}

	switch s.Unit {
	case Percent, Absolute:
		return raw, true
	case Fraction:
		return raw * 100, true
	case Count, Rate:
		den, ok := tr.Value(s.Denominator)
		if !ok || den == 0 {
			return 0, false
		}
		scale := 100.0
		if s.Unit == Rate {
			scale = s.Per
		}
		v := raw / den * scale
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, false
		}
		return v, true
	}
	return 0, false
}
