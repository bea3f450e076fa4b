package source

import (
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rotisserie/eris"

	"github.com/sells-group/equity-explorer/internal/model"
)

// builder merges rows from several tables into one tract table. Within a
// table only the latest year per tract is kept; across tables columns are
// merged by tract ID.
type builder struct {
	columns map[string]struct{}
	tracts  map[string]*model.Tract
}

func newBuilder() *builder {
	return &builder{
		columns: make(map[string]struct{}),
		tracts:  make(map[string]*model.Tract),
	}
}

// skipColumn reports key and bookkeeping columns that never become values.
func skipColumn(col string) bool {
	switch col {
	case ColState, ColCounty, ColTract, ColYear, ColGeom, "rn":
		return true
	}
	return false
}

// addTable merges one table's rows. cols names the position of each value.
func (b *builder) addTable(name string, cols []string, rows [][]any) error {
	idx := make(map[string]int, len(cols))
	for i, c := range cols {
		idx[strings.ToLower(strings.TrimSpace(c))] = i
	}
	tractIdx, ok := idx[ColTract]
	if !ok {
		return eris.Errorf("source: table %s has no %s column", name, ColTract)
	}
	for _, required := range []string{ColState, ColCounty} {
		if _, ok := idx[required]; !ok {
			return eris.Errorf("source: table %s has no %s column", name, required)
		}
	}

	for i, c := range cols {
		if c = strings.ToLower(strings.TrimSpace(c)); !skipColumn(c) && c != "" {
			b.columns[cols[i]] = struct{}{}
		}
	}

	latest := make(map[string][]any)
	years := make(map[string]float64)
	yearIdx, hasYear := idx[ColYear]
	for _, row := range rows {
		if len(row) != len(cols) {
			return eris.Errorf("source: table %s row has %d values, want %d", name, len(row), len(cols))
		}
		id := toString(row[tractIdx])
		if id == "" {
			continue
		}
		year := math.Inf(-1)
		if hasYear {
			if y, ok := toFloat(row[yearIdx]); ok {
				year = y
			}
		}
		if prev, seen := years[id]; seen && prev >= year {
			continue
		}
		years[id] = year
		latest[id] = row
	}

	for id, row := range latest {
		tr, ok := b.tracts[id]
		if !ok {
			tr = &model.Tract{
				ID:     id,
				State:  toString(row[idx[ColState]]),
				County: toString(row[idx[ColCounty]]),
				Values: make(map[string]float64),
			}
			b.tracts[id] = tr
		}
		for i, c := range cols {
			if skipColumn(strings.ToLower(strings.TrimSpace(c))) {
				continue
			}
			if v, ok := toFloat(row[i]); ok {
				tr.Values[c] = v
			}
		}
	}
	return nil
}

// setGeometry attaches EWKB bytes to tracts already in the builder.
func (b *builder) setGeometry(geoms map[string][]byte) {
	for id, g := range geoms {
		if tr, ok := b.tracts[id]; ok {
			tr.Geometry = g
		}
	}
}

func (b *builder) ids() []string {
	ids := make([]string, 0, len(b.tracts))
	for id := range b.tracts {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// table returns the merged rows sorted by tract ID.
func (b *builder) table() model.Table {
	cols := make([]string, 0, len(b.columns))
	for c := range b.columns {
		cols = append(cols, c)
	}
	slices.Sort(cols)

	ids := b.ids()
	tracts := make([]model.Tract, 0, len(ids))
	for _, id := range ids {
		tracts = append(tracts, *b.tracts[id])
	}
	return model.Table{Columns: cols, Tracts: tracts}
}

// toFloat parses driver and file values. Null, blank and NA are missing.
func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		return x, !math.IsNaN(x)
	case float32:
		return float64(x), !math.IsNaN(float64(x))
	case int:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case pgtype.Numeric:
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return 0, false
		}
		return f.Float64, true
	case []byte:
		return parseFloat(string(x))
	case string:
		return parseFloat(x)
	}
	return 0, false
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	switch strings.ToUpper(s) {
	case "", "NA", "N/A", "NAN", "NULL", "-":
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case []byte:
		return strings.TrimSpace(string(x))
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return ""
}
