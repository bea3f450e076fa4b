package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Format selects an output encoding.
type Format string

const (
	FormatTable   Format = "table"
	FormatCSV     Format = "csv"
	FormatXLSX    Format = "xlsx"
	FormatGeoJSON Format = "geojson"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatCSV, FormatXLSX, FormatGeoJSON:
		return f, nil
	case "":
		return FormatTable, nil
	}
	return "", eris.Errorf("export: unsupported format %q (want table, csv, xlsx or geojson)", s)
}

// Table writes each result as an aligned text table, floats at one decimal.
func Table(w io.Writer, results ...Rows) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, r := range results {
		if i > 0 {
			_, _ = fmt.Fprintln(tw)
		}
		if r.Name != "" {
			_, _ = fmt.Fprintf(tw, "%s\n", r.Name)
		}
		upper := make([]string, len(r.Header))
		rule := make([]string, len(r.Header))
		for j, h := range r.Header {
			upper[j] = strings.ToUpper(h)
			rule[j] = strings.Repeat("-", len(h))
		}
		_, _ = fmt.Fprintln(tw, strings.Join(upper, "\t"))
		_, _ = fmt.Fprintln(tw, strings.Join(rule, "\t"))
		for _, row := range r.Data {
			cells := make([]string, len(row))
			for j, v := range row {
				cells[j] = text(v, 1)
				if cells[j] == "" {
					cells[j] = "-"
				}
			}
			_, _ = fmt.Fprintln(tw, strings.Join(cells, "\t"))
		}
	}
	return eris.Wrap(tw.Flush(), "export: write table")
}

// CSV writes one result with full float precision; missing values are blank.
func CSV(w io.Writer, r Rows) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(r.Header); err != nil {
		return eris.Wrap(err, "export: write CSV header")
	}
	for _, row := range r.Data {
		rec := make([]string, len(row))
		for j, v := range row {
			rec[j] = text(v, -1)
		}
		if err := cw.Write(rec); err != nil {
			return eris.Wrap(err, "export: write CSV row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush CSV")
}

// XLSX writes each result to its own worksheet.
func XLSX(w io.Writer, results ...Rows) error {
	f := xlsx.NewFile()
	for i, r := range results {
		name := r.Name
		if name == "" {
			name = fmt.Sprintf("Sheet%d", i+1)
		}
		if len(name) > 31 {
			name = name[:31]
		}
		sheet, err := f.AddSheet(name)
		if err != nil {
			return eris.Wrapf(err, "export: add sheet %s", name)
		}

		header := sheet.AddRow()
		for _, h := range r.Header {
			header.AddCell().SetString(h)
		}
		for _, row := range r.Data {
			xr := sheet.AddRow()
			for _, v := range row {
				setCell(xr.AddCell(), v)
			}
		}
	}
	return eris.Wrap(f.Write(w), "export: write XLSX")
}

func setCell(c *xlsx.Cell, v any) {
	switch x := v.(type) {
	case string:
		c.SetString(x)
	case int:
		c.SetInt(x)
	case bool:
		c.SetBool(x)
	case float64:
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			c.SetFloat(x)
		}
	}
}
