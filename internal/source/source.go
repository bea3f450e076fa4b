// Package source is the data source boundary. It fetches tract rows keyed by
// (state, county, census tract) for the equity and transportation table
// groups, validates the schema contract once, and reports empty geographies
// as ErrDataUnavailable.
package source

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"

	"github.com/sells-group/equity-explorer/internal/model"
)

// ErrDataUnavailable means the geography/table combination produced no rows.
var ErrDataUnavailable = errors.New("source: no data for requested geography")

// AllCounties selects every county in the state.
const AllCounties = "All"

// Group selects a table group.
type Group string

const (
	GroupEquity         Group = "equity"
	GroupTransportation Group = "transportation"
)

// Key columns every source table carries.
const (
	ColState  = "state_name"
	ColCounty = "county_name"
	ColTract  = "census_tract"
	ColYear   = "year"
	ColGeom   = "geom"
)

// Query selects the rows for one geography and table group.
type Query struct {
	State    string   `json:"state"`
	Counties []string `json:"counties"`
	Group    Group    `json:"group"`
}

// Source yields tabular tract data.
type Source interface {
	Counties(ctx context.Context, state string) ([]string, error)
	Tracts(ctx context.Context, q Query) (model.Table, error)
	Close() error
}

// Layout names the tables backing each group.
type Layout struct {
	Schema         string   `yaml:"schema" mapstructure:"schema"`
	Equity         []string `yaml:"equity" mapstructure:"equity"`
	Transportation []string `yaml:"transportation" mapstructure:"transportation"`
	Counties       string   `yaml:"counties" mapstructure:"counties"`
	Geometry       string   `yaml:"geometry" mapstructure:"geometry"`
}

// DefaultLayout returns the census table layout.
func DefaultLayout() Layout {
	return Layout{
		Schema: "census",
		Equity: []string{
			"acs_disability", "acs_family_type", "acs_housing_cost",
			"acs_language", "acs_population", "acs_poverty", "acs_vehicles",
		},
		Transportation: []string{
			"acs_commute", "acs_computer_internet", "acs_population",
			"acs_vehicles", "vmt",
		},
		Counties: "counties",
		Geometry: "tracts",
	}
}

// Tables returns the table names for a group, lowercased and sorted.
func (l Layout) Tables(g Group) ([]string, error) {
	var tables []string
	switch g {
	case GroupEquity:
		tables = l.Equity
	case GroupTransportation:
		tables = l.Transportation
	default:
		return nil, eris.Errorf("source: unknown table group %q", g)
	}
	out := make([]string, 0, len(tables))
	for _, t := range tables {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// ResolveCounties matches requested county names against the available ones,
// case-insensitively. "All" anywhere in requested selects every county.
// Unknown names are an error.
func ResolveCounties(available, requested []string) ([]string, error) {
	if len(requested) == 0 {
		return nil, eris.New("source: select at least one county")
	}

	fold := cases.Fold()
	byFolded := make(map[string]string, len(available))
	for _, c := range available {
		byFolded[fold.String(strings.TrimSpace(c))] = c
	}

	for _, r := range requested {
		if fold.String(strings.TrimSpace(r)) == fold.String(AllCounties) {
			all := slices.Clone(available)
			slices.Sort(all)
			return all, nil
		}
	}

	var out []string
	for _, r := range requested {
		c, ok := byFolded[fold.String(strings.TrimSpace(r))]
		if !ok {
			return nil, eris.Errorf("source: unknown county %q", r)
		}
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	slices.Sort(out)
	return out, nil
}

// Resolve expands q.Counties against the source's county list.
func Resolve(ctx context.Context, src Source, q Query) (Query, error) {
	available, err := src.Counties(ctx, q.State)
	if err != nil {
		return Query{}, err
	}
	if len(available) == 0 {
		return Query{}, eris.Wrapf(ErrDataUnavailable, "source: no counties for state %q", q.State)
	}
	counties, err := ResolveCounties(available, q.Counties)
	if err != nil {
		return Query{}, err
	}
	q.Counties = counties
	return q, nil
}
