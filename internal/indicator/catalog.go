// Package indicator defines the equity and transportation indicator catalog:
// criteria groups, display units, polarity and raw-column conversions.
package indicator

import (
	"fmt"
	"math"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/equity-explorer/internal/units"
)

// Group places an indicator in the classification or index stage.
type Group string

const (
	GroupPeopleOfColor  Group = "people_of_color"
	GroupLowIncome      Group = "low_income"
	GroupRemaining      Group = "remaining"
	GroupTransportation Group = "transportation"
)

// Display is the unit an indicator is shown in. It never affects computation.
type Display string

const (
	DisplayPercent Display = "percent"
	DisplayCount   Display = "count"
	DisplayRate    Display = "rate"
	DisplayMiles   Display = "miles"
	DisplayMinutes Display = "minutes"
)

var suffixes = map[Display]string{
	DisplayPercent: "%",
	DisplayCount:   "",
	DisplayRate:    "",
	DisplayMiles:   " mi",
	DisplayMinutes: " min",
}

// Polarity tells the normalizer which direction means more vulnerable.
type Polarity string

const (
	HigherIsWorse Polarity = "higher_is_worse"
	LowerIsWorse  Polarity = "lower_is_worse"
)

// Conversion derives the indicator column from a raw source column.
type Conversion struct {
	Source      string     `yaml:"source"`
	Unit        units.Unit `yaml:"unit"`
	Denominator string     `yaml:"denominator,omitempty"`
	Per         float64    `yaml:"per,omitempty"`
}

// Indicator is one catalog entry.
type Indicator struct {
	Name       string      `yaml:"name"`
	Group      Group       `yaml:"group"`
	Display    Display     `yaml:"display"`
	Polarity   Polarity    `yaml:"polarity"`
	Conversion *Conversion `yaml:"conversion,omitempty"`
}

// Catalog is the ordered IndicatorSet.
type Catalog struct {
	Indicators       []Indicator `yaml:"indicators"`
	DefaultSelection []string    `yaml:"default_selection"`
}

// Load reads a catalog override from a YAML file and validates it.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "indicator: read %s", path)
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, eris.Wrapf(err, "indicator: parse %s", path)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks group sizes, names, units and polarities.
func (c *Catalog) Validate() error {
	seen := make(map[string]bool, len(c.Indicators))
	counts := make(map[Group]int)
	for _, ind := range c.Indicators {
		if ind.Name == "" {
			return eris.New("indicator: entry with empty name")
		}
		if seen[ind.Name] {
			return eris.Errorf("indicator: duplicate name %q", ind.Name)
		}
		seen[ind.Name] = true

		switch ind.Group {
		case GroupPeopleOfColor, GroupLowIncome, GroupRemaining, GroupTransportation:
		default:
			return eris.Errorf("indicator: %q has unknown group %q", ind.Name, ind.Group)
		}
		counts[ind.Group]++

		if _, ok := suffixes[ind.Display]; !ok {
			return eris.Errorf("indicator: %q has unknown display %q", ind.Name, ind.Display)
		}
		if ind.Polarity != HigherIsWorse && ind.Polarity != LowerIsWorse {
			return eris.Errorf("indicator: %q has unknown polarity %q", ind.Name, ind.Polarity)
		}
		if ind.Conversion != nil {
			if err := ind.rule().Validate(); err != nil {
				return eris.Wrapf(err, "indicator: %q conversion", ind.Name)
			}
		}
	}

	if counts[GroupPeopleOfColor] != 1 || counts[GroupLowIncome] != 1 {
		return eris.Errorf("indicator: criteria A needs exactly one people_of_color and one low_income indicator (got %d, %d)",
			counts[GroupPeopleOfColor], counts[GroupLowIncome])
	}
	if counts[GroupRemaining] != 6 {
		return eris.Errorf("indicator: criteria B needs exactly six remaining indicators (got %d)", counts[GroupRemaining])
	}
	for _, name := range c.DefaultSelection {
		ind, ok := c.Lookup(name)
		if !ok || ind.Group != GroupTransportation {
			return eris.Errorf("indicator: default selection %q is not a transportation indicator", name)
		}
	}
	return nil
}

func (ind Indicator) rule() units.Rule {
	return units.Rule{
		Target:      ind.Name,
		Source:      ind.Conversion.Source,
		Unit:        ind.Conversion.Unit,
		Denominator: ind.Conversion.Denominator,
		Per:         ind.Conversion.Per,
	}
}

// Lookup returns the indicator with the given name.
func (c *Catalog) Lookup(name string) (Indicator, bool) {
	for _, ind := range c.Indicators {
		if ind.Name == name {
			return ind, true
		}
	}
	return Indicator{}, false
}

func (c *Catalog) byGroup(g Group) []string {
	var out []string
	for _, ind := range c.Indicators {
		if ind.Group == g {
			out = append(out, ind.Name)
		}
	}
	return out
}

func (c *Catalog) single(g Group) string {
	if names := c.byGroup(g); len(names) > 0 {
		return names[0]
	}
	return ""
}

// PeopleOfColor returns the People-of-Color indicator name.
func (c *Catalog) PeopleOfColor() string { return c.single(GroupPeopleOfColor) }

// LowIncome returns the Low-Income indicator name.
func (c *Catalog) LowIncome() string { return c.single(GroupLowIncome) }

// Remaining returns the six Criteria B indicators in catalog order.
func (c *Catalog) Remaining() []string { return c.byGroup(GroupRemaining) }

// Equity returns every indicator used by classification: People of Color,
// Low-Income, then the remaining six.
func (c *Catalog) Equity() []string {
	out := []string{c.PeopleOfColor(), c.LowIncome()}
	return append(out, c.Remaining()...)
}

// Transportation returns the transportation indicators in catalog order.
func (c *Catalog) Transportation() []string { return c.byGroup(GroupTransportation) }

// Inverted reports whether a larger raw value means lower vulnerability.
func (c *Catalog) Inverted(name string) bool {
	ind, ok := c.Lookup(name)
	return ok && ind.Polarity == LowerIsWorse
}

// Conversions returns the unit rules for the given indicator names.
func (c *Catalog) Conversions(names []string) []units.Rule {
	var rules []units.Rule
	for _, name := range names {
		ind, ok := c.Lookup(name)
		if !ok || ind.Conversion == nil {
			continue
		}
		rules = append(rules, ind.rule())
	}
	return rules
}

// Suffix returns the display suffix for name, e.g. "%" or " mi".
func (c *Catalog) Suffix(name string) string {
	ind, ok := c.Lookup(name)
	if !ok {
		return ""
	}
	return suffixes[ind.Display]
}

// Format renders v rounded to one decimal with its display suffix.
func (c *Catalog) Format(name string, v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%s", v, c.Suffix(name))
}

// FormatDelta renders a signed difference with its display suffix, e.g.
// "+2.5%".
func (c *Catalog) FormatDelta(name string, d float64) string {
	if math.IsNaN(d) {
		return "n/a"
	}
	return fmt.Sprintf("%+.1f%s", d, c.Suffix(name))
}

// FormatComparison renders a value and its difference from the county
// average, e.g. "30.0% (+19.8% from county average)".
func (c *Catalog) FormatComparison(name string, v, delta float64) string {
	out := c.Format(name, v)
	if math.IsNaN(delta) {
		return out
	}
	return out + " (" + c.FormatDelta(name, delta) + " from county average)"
}
