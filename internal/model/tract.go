// Package model holds the tabular types shared by every stage of the explorer.
package model

import (
	"maps"
	"math"
	"slices"
)

// Tract is a single census tract row.
type Tract struct {
	ID     string             `json:"census_tract"`
	State  string             `json:"state"`
	County string             `json:"county"`
	Values map[string]float64 `json:"values"`

	// Geometry is EWKB passed through untouched.
	Geometry []byte `json:"-"`
}

// Value returns the named value. Absent keys and NaN are reported as missing.
func (t Tract) Value(name string) (float64, bool) {
	v, ok := t.Values[name]
	if !ok || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Clone returns a deep copy of the tract.
func (t Tract) Clone() Tract {
	c := t
	c.Values = maps.Clone(t.Values)
	if c.Values == nil {
		c.Values = make(map[string]float64)
	}
	if t.Geometry != nil {
		c.Geometry = slices.Clone(t.Geometry)
	}
	return c
}

// Table is an ordered set of tracts plus the column schema seen at the data
// source boundary. Row order is the original row order used for tie-breaking.
type Table struct {
	Columns []string `json:"columns"`
	Tracts  []Tract  `json:"tracts"`
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Tracts) }

// HasColumn reports whether the validated schema contains name.
func (t Table) HasColumn(name string) bool {
	return slices.Contains(t.Columns, name)
}

// IDs returns the tract identifiers in row order.
func (t Table) IDs() []string {
	ids := make([]string, len(t.Tracts))
	for i, tr := range t.Tracts {
		ids[i] = tr.ID
	}
	return ids
}

// Column returns the present values of name in row order, skipping missing ones.
func (t Table) Column(name string) []float64 {
	var out []float64
	for _, tr := range t.Tracts {
		if v, ok := tr.Value(name); ok {
			out = append(out, v)
		}
	}
	return out
}

// Clone returns a deep copy of the table.
func (t Table) Clone() Table {
	c := Table{
		Columns: slices.Clone(t.Columns),
		Tracts:  make([]Tract, len(t.Tracts)),
	}
	for i, tr := range t.Tracts {
		c.Tracts[i] = tr.Clone()
	}
	return c
}

// Filter returns a new table holding the rows for which keep returns true.
func (t Table) Filter(keep func(Tract) bool) Table {
	out := Table{Columns: slices.Clone(t.Columns)}
	for _, tr := range t.Tracts {
		if keep(tr) {
			out.Tracts = append(out.Tracts, tr.Clone())
		}
	}
	return out
}

// Find returns the row with the given tract id.
func (t Table) Find(id string) (Tract, bool) {
	for _, tr := range t.Tracts {
		if tr.ID == id {
			return tr, true
		}
	}
	return Tract{}, false
}
