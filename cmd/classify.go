package main

import (
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/equity-explorer/internal/equity"
	"github.com/sells-group/equity-explorer/internal/explorer"
	"github.com/sells-group/equity-explorer/internal/export"
	"github.com/sells-group/equity-explorer/internal/indicator"
	"github.com/sells-group/equity-explorer/internal/model"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Identify Equity Geographies for a state and counties",
	Long: `Compute county-wide thresholds (mean + coefficient * std dev) for each
equity indicator and label every census tract.

A tract is an Equity Geography when it meets Criteria A (people of color and
low-income above threshold) or Criteria B (low-income plus three or more of
the remaining indicators above threshold).

Examples:
  # Alameda County at the default concentration
  classify --state California --counties Alameda

  # Every county, high concentration, written to a workbook
  classify --state California --concentration high --format xlsx --output equity.xlsx

  # Tract polygons with their criteria for mapping
  classify --state California --counties Alameda,Marin --format geojson --output tracts.geojson`,
	RunE: runClassify,
}

func init() {
	addGeographyFlags(classifyCmd)
	f := classifyCmd.Flags()
	f.String("format", "table", "output format: table, csv, xlsx or geojson")
	f.String("output", "", "output file path (default: stdout)")

	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate("classify"); err != nil {
		return err
	}

	formatFlag, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")
	format, err := export.ParseFormat(formatFlag)
	if err != nil {
		return err
	}
	p, err := runParams(cmd, cfg.Explorer)
	if err != nil {
		return err
	}

	env, err := initExplorer(ctx, cfg, 0)
	if err != nil {
		return err
	}
	defer env.Close()

	st, p, err := env.Explorer.Classify(ctx, p)
	if err != nil {
		return eris.Wrap(err, "classify")
	}
	zap.L().Info("classification complete",
		zap.String("state", p.State),
		zap.Strings("counties", p.Counties),
		zap.Int("tracts", st.Classification.All.Len()),
		zap.Int("equity_geographies", st.Classification.Equity.Len()),
	)

	w, closeOut, err := openOutput(outputPath)
	if err != nil {
		return err
	}
	if err := writeClassification(w, format, st, env.Explorer.Catalog()); err != nil {
		_ = closeOut()
		return err
	}
	if err := closeOut(); err != nil {
		return eris.Wrap(err, "classify: close output")
	}

	printClassifySummary(cmd.ErrOrStderr(), st, p)
	return nil
}

// writeClassification renders a classification stage in the given format.
func writeClassification(w io.Writer, format export.Format, st explorer.Stage, cat *indicator.Catalog) error {
	cls := st.Classification
	rows := []export.Rows{
		export.ClassificationRows(cls, cat),
		export.ThresholdRows(cls, cat),
		export.AverageRows("Equity Indicator Averages", cat.Equity(), cls.Averages, cls.EquityAverages, cat),
		export.AverageRows("Transportation Averages", cat.Transportation(), st.Transport.Averages, st.Transport.EquityAverages, cat),
	}

	switch format {
	case export.FormatTable:
		return export.Table(w, rows...)
	case export.FormatCSV:
		return export.CSV(w, rows[0])
	case export.FormatXLSX:
		return export.XLSX(w, rows...)
	case export.FormatGeoJSON:
		labels := make(map[string]equity.Label, len(cls.Labels))
		for i, tr := range cls.All.Tracts {
			labels[tr.ID] = cls.Labels[i]
		}
		return export.GeoJSON(w, cls.All, func(tr model.Tract) map[string]any {
			return map[string]any{
				"criteria":         string(labels[tr.ID]),
				"equity_geography": labels[tr.ID].IsEquityGeography(),
			}
		})
	default:
		return eris.Errorf("classify: unsupported format %q", format)
	}
}

func printClassifySummary(w io.Writer, st explorer.Stage, p explorer.Params) {
	cls := st.Classification
	fmt.Fprintf(w, "\n--- Summary ---\n")
	fmt.Fprintf(w, "State:              %s\n", p.State)
	fmt.Fprintf(w, "Counties:           %s\n", strings.Join(p.Counties, ", "))
	fmt.Fprintf(w, "Concentration:      %s (%.1f std dev)\n", p.Concentration, p.Coefficient())
	fmt.Fprintf(w, "Tracts:             %d\n", cls.All.Len())
	fmt.Fprintf(w, "Equity Geographies: %d\n", cls.Equity.Len())

	counts := cls.CountByLabel()
	for _, l := range []equity.Label{equity.CriteriaAB, equity.CriteriaA, equity.CriteriaB, equity.NoCriteria, equity.Unclassified} {
		if n := counts[l]; n > 0 {
			fmt.Fprintf(w, "  %-18s %d\n", l, n)
		}
	}
	printDiagnostics(w, st.Diagnostics)
}

func printDiagnostics(w io.Writer, d model.Diagnostics) {
	if d.OK() {
		return
	}
	fmt.Fprintf(w, "\nWarnings:\n")
	for _, c := range d.Conditions {
		fmt.Fprintf(w, "  %s\n", c)
	}
	for _, name := range d.MissingIndicators {
		fmt.Fprintf(w, "  missing indicator: %s\n", name)
	}
	for _, name := range d.DegenerateIndicators {
		fmt.Fprintf(w, "  degenerate indicator: %s\n", name)
	}
}

