package source

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/equity-explorer/internal/model"
)

// FilesConfig lists the extract files backing each group.
type FilesConfig struct {
	Equity         []string `yaml:"equity" mapstructure:"equity"`
	Transportation []string `yaml:"transportation" mapstructure:"transportation"`
	Shapefile      string   `yaml:"shapefile" mapstructure:"shapefile"`
}

type sheet struct {
	name string
	cols []string
	rows [][]any
}

// Files serves tract tables from CSV or XLSX extracts loaded into memory,
// with optional tract geometry from a TIGER shapefile.
type Files struct {
	groups map[Group][]sheet
	geoms  map[string][]byte
}

// OpenFiles reads every configured file up front.
func OpenFiles(cfg FilesConfig) (*Files, error) {
	f := &Files{groups: make(map[Group][]sheet)}
	for g, paths := range map[Group][]string{
		GroupEquity:         cfg.Equity,
		GroupTransportation: cfg.Transportation,
	} {
		for _, path := range paths {
			s, err := readSheet(path)
			if err != nil {
				return nil, err
			}
			f.groups[g] = append(f.groups[g], s)
		}
	}

	if cfg.Shapefile != "" {
		geoms, err := ReadTractShapes(cfg.Shapefile)
		if err != nil {
			return nil, err
		}
		f.geoms = geoms
	}

	zap.L().Debug("files: loaded extracts",
		zap.Int("equity", len(f.groups[GroupEquity])),
		zap.Int("transportation", len(f.groups[GroupTransportation])),
		zap.Int("shapes", len(f.geoms)),
	)
	return f, nil
}

// Counties lists the county names for a state across the equity extracts.
func (f *Files) Counties(_ context.Context, state string) ([]string, error) {
	var counties []string
	for _, s := range f.groups[GroupEquity] {
		si, ci := slices.Index(s.cols, ColState), slices.Index(s.cols, ColCounty)
		if si < 0 || ci < 0 {
			continue
		}
		for _, row := range s.rows {
			if !strings.EqualFold(toString(row[si]), state) {
				continue
			}
			if c := toString(row[ci]); c != "" && !slices.Contains(counties, c) {
				counties = append(counties, c)
			}
		}
	}
	slices.Sort(counties)
	return counties, nil
}

// Tracts filters the group's extracts to the geography and merges them.
func (f *Files) Tracts(ctx context.Context, q Query) (model.Table, error) {
	if q.Group != GroupEquity && q.Group != GroupTransportation {
		return model.Table{}, eris.Errorf("source: unknown table group %q", q.Group)
	}
	q, err := Resolve(ctx, f, q)
	if err != nil {
		return model.Table{}, err
	}

	b := newBuilder()
	for _, s := range f.groups[q.Group] {
		si, ci := slices.Index(s.cols, ColState), slices.Index(s.cols, ColCounty)
		var rows [][]any
		if si >= 0 && ci >= 0 {
			for _, row := range s.rows {
				if strings.EqualFold(toString(row[si]), q.State) && slices.Contains(q.Counties, toString(row[ci])) {
					rows = append(rows, row)
				}
			}
		}
		if err := b.addTable(s.name, s.cols, rows); err != nil {
			return model.Table{}, err
		}
	}

	if len(b.tracts) == 0 {
		return model.Table{}, eris.Wrapf(ErrDataUnavailable, "files: %s %v", q.State, q.Counties)
	}
	b.setGeometry(f.geoms)
	return b.table(), nil
}

// Close is a no-op; extracts live in memory.
func (f *Files) Close() error { return nil }

func readSheet(path string) (sheet, error) {
	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		records, err = readCSV(path)
	case ".xlsx":
		records, err = readXLSX(path)
	default:
		return sheet{}, eris.Errorf("files: unsupported extract %s", path)
	}
	if err != nil {
		return sheet{}, err
	}
	if len(records) == 0 {
		return sheet{}, eris.Errorf("files: %s has no header row", path)
	}

	cols := make([]string, len(records[0]))
	for i, c := range records[0] {
		c = strings.TrimSpace(strings.TrimPrefix(c, "\ufeff"))
		if lc := strings.ToLower(c); skipColumn(lc) {
			c = lc
		}
		cols[i] = c
	}

	rows := make([][]any, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make([]any, len(cols))
		for i := range cols {
			if i < len(rec) {
				row[i] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return sheet{name: name, cols: cols, rows: rows}, nil
}

func readCSV(path string) ([][]string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "files: open %s", path)
	}
	defer fh.Close()

	r := csv.NewReader(fh)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var records [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "files: read %s", path)
		}
		records = append(records, rec)
	}
	return records, nil
}

// readXLSX returns the first sheet as strings.
func readXLSX(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "files: open %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("files: %s has no sheets", path)
	}

	var records [][]string
	for _, row := range f.Sheets[0].Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		records = append(records, cells)
	}
	return records, nil
}
