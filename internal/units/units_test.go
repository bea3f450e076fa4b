package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/equity-explorer/internal/model"
)

func rawTable() model.Table {
	return model.Table{
		Columns: []string{"poc", "pop", "share", "crashes", "vmt"},
		Tracts: []model.Tract{
			{ID: "a", Values: map[string]float64{"poc": 250, "pop": 1000, "share": 0.4, "crashes": 3, "vmt": 21.5}},
			{ID: "b", Values: map[string]float64{"poc": 50, "pop": 0, "share": 0.1, "vmt": 12}},
			{ID: "c", Values: map[string]float64{"pop": 500, "crashes": 1}},
		},
	}
}

func TestConvert(t *testing.T) {
	t.Parallel()

	rules := []Rule{
		{Target: "People of Color", Source: "poc", Unit: Count, Denominator: "pop"},
		{Target: "Share (%)", Source: "share", Unit: Fraction},
		{Target: "Crash Rate", Source: "crashes", Unit: Rate, Denominator: "pop", Per: 1000},
		{Target: "Vehicle Miles Traveled", Source: "vmt", Unit: Absolute},
	}

	out, err := Convert(rawTable(), rules)
	require.NoError(t, err)

	a := out.Tracts[0]
	assert.InDelta(t, 25.0, a.Values["People of Color"], 1e-9)
	assert.InDelta(t, 40.0, a.Values["Share (%)"], 1e-9)
	assert.InDelta(t, 3.0, a.Values["Crash Rate"], 1e-9)
	assert.InDelta(t, 21.5, a.Values["Vehicle Miles Traveled"], 1e-9)

	// Zero denominator and missing values stay missing, never zero.
	b := out.Tracts[1]
	_, ok := b.Value("People of Color")
	assert.False(t, ok)
	_, ok = b.Value("Crash Rate")
	assert.False(t, ok)

	c := out.Tracts[2]
	_, ok = c.Value("People of Color")
	assert.False(t, ok)
	assert.InDelta(t, 2.0, c.Values["Crash Rate"], 1e-9)

	for _, col := range []string{"People of Color", "Share (%)", "Crash Rate", "Vehicle Miles Traveled"} {
		assert.True(t, out.HasColumn(col), col)
	}
}

func TestConvertDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	in := rawTable()
	_, err := Convert(in, []Rule{{Target: "x", Source: "share", Unit: Fraction}})
	require.NoError(t, err)

	assert.NotContains(t, in.Columns, "x")
	_, ok := in.Tracts[0].Values["x"]
	assert.False(t, ok)
}

func TestConvertAbsentSourceColumn(t *testing.T) {
	t.Parallel()

	out, err := Convert(rawTable(), []Rule{{Target: "Seniors", Source: "seniors", Unit: Percent}})
	require.NoError(t, err)
	assert.False(t, out.HasColumn("Seniors"))
}

func TestRuleValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		rule    Rule
		wantErr string
	}{
		{"ok percent", Rule{Target: "a", Source: "b", Unit: Percent}, ""},
		{"unknown unit", Rule{Target: "a", Source: "b", Unit: "parsecs"}, "unknown unit"},
		{"count without denominator", Rule{Target: "a", Source: "b", Unit: Count}, "requires a denominator"},
		{"rate without per", Rule{Target: "a", Source: "b", Unit: Rate, Denominator: "d"}, "per > 0"},
		{"missing source", Rule{Target: "a", Unit: Percent}, "requires target and source"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
