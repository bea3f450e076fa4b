package model

import "slices"

// Condition is a recoverable degraded-output condition raised by a stage.
type Condition string

const (
	// DataUnavailable means the requested geography/table combination had no rows.
	DataUnavailable Condition = "data_unavailable"
	// InsufficientPopulation means fewer than 2 values fed a standard deviation.
	InsufficientPopulation Condition = "insufficient_population"
	// MissingIndicator means a required column was absent from the input.
	MissingIndicator Condition = "missing_indicator"
	// InvalidWeights means index weights summed outside [99,101].
	InvalidWeights Condition = "invalid_weights"
)

// Diagnostics collects the conditions raised while producing a result.
type Diagnostics struct {
	Conditions           []Condition `json:"conditions,omitempty"`
	MissingIndicators    []string    `json:"missing_indicators,omitempty"`
	DegenerateIndicators []string    `json:"degenerate_indicators,omitempty"`
}

// Raise records c once.
func (d *Diagnostics) Raise(c Condition) {
	if !slices.Contains(d.Conditions, c) {
		d.Conditions = append(d.Conditions, c)
	}
}

// Missing records a missing indicator and raises MissingIndicator.
func (d *Diagnostics) Missing(name string) {
	d.Raise(MissingIndicator)
	if !slices.Contains(d.MissingIndicators, name) {
		d.MissingIndicators = append(d.MissingIndicators, name)
	}
}

// Degenerate records an indicator whose threshold fell back to the mean.
func (d *Diagnostics) Degenerate(name string) {
	d.Raise(InsufficientPopulation)
	if !slices.Contains(d.DegenerateIndicators, name) {
		d.DegenerateIndicators = append(d.DegenerateIndicators, name)
	}
}

// Has reports whether c was raised.
func (d Diagnostics) Has(c Condition) bool {
	return slices.Contains(d.Conditions, c)
}

// OK reports whether no condition was raised.
func (d Diagnostics) OK() bool { return len(d.Conditions) == 0 }

// Merge folds o into d.
func (d *Diagnostics) Merge(o Diagnostics) {
	for _, c := range o.Conditions {
		d.Raise(c)
	}
	for _, n := range o.MissingIndicators {
		d.Missing(n)
	}
	for _, n := range o.DegenerateIndicators {
		d.Degenerate(n)
	}
}
