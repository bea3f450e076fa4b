package main

import (
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/equity-explorer/internal/explorer"
	"github.com/sells-group/equity-explorer/internal/export"
	"github.com/sells-group/equity-explorer/internal/indicator"
	"github.com/sells-group/equity-explorer/internal/model"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rank Equity Geographies by a weighted transportation index",
	Long: `Normalize the selected transportation indicators over the Equity
Geographies (worse is always higher), combine them with integer weights that
must sum to about 100, and rank tracts by score.

Weights outside 99-101 still produce a ranking, flagged as provisional.

Examples:
  # Default indicators with even weights
  index --state California --counties Alameda

  # Custom weights, top 10
  index --state California --counties Alameda \
    --indicators "Zero-Vehicle Households (%),Vehicle Miles Traveled" \
    --weights "Zero-Vehicle Households (%)=60,Vehicle Miles Traveled=40" --top 10

  # Full ranking as CSV
  index --state California --format csv --output index.csv`,
	RunE: runIndex,
}

func init() {
	addGeographyFlags(indexCmd)
	addIndexFlags(indexCmd)
	f := indexCmd.Flags()
	f.String("format", "table", "output format: table, csv, xlsx or geojson")
	f.String("output", "", "output file path (default: stdout)")

	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate("index"); err != nil {
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

	rep, err := env.Explorer.Run(ctx, p)
	if err != nil {
		return eris.Wrap(err, "index")
	}

	w, closeOut, err := openOutput(outputPath)
	if err != nil {
		return err
	}
	if err := writeIndex(w, format, rep, env.Explorer.Catalog()); err != nil {
		_ = closeOut()
		return err
	}
	if err := closeOut(); err != nil {
		return eris.Wrap(err, "index: close output")
	}

	printIndexSummary(cmd.ErrOrStderr(), rep)
	return nil
}

// writeIndex renders a run's ranking in the given format. The table format
// shows only the top-K; the others carry every scored tract. Table and XLSX
// include how each top tract compares with the county averages.
func writeIndex(w io.Writer, format export.Format, rep explorer.Report, cat *indicator.Catalog) error {
	tr := rep.Stage.Transport
	averages := export.AverageRows("Transportation Averages", rep.Params.Indicators, tr.Averages, tr.EquityAverages, cat)

	switch format {
	case export.FormatTable:
		top := export.IndexRows(rep.Index, rep.Top)
		top.Name = fmt.Sprintf("Top %d", len(rep.Top))
		return export.Table(w, top, export.DetailRows(rep.TopDetail, cat), averages)
	case export.FormatCSV:
		return export.CSV(w, export.IndexRows(rep.Index, rep.Index.Scores))
	case export.FormatXLSX:
		cls := rep.Stage.Classification
		return export.XLSX(w,
			export.IndexRows(rep.Index, rep.Index.Scores),
			export.DetailRows(rep.TopDetail, cat),
			averages,
			export.ClassificationRows(cls, cat),
			export.ThresholdRows(cls, cat),
		)
	case export.FormatGeoJSON:
		return export.GeoJSON(w, tr.Equity, func(t model.Tract) map[string]any {
			s, ok := rep.Index.Lookup(t.ID)
			if !ok {
				return nil
			}
			return map[string]any{
				"rank":        s.Rank,
				"score":       s.Score,
				"index_value": s.Rounded(),
				"incomplete":  s.Incomplete,
			}
		})
	default:
		return eris.Errorf("index: unsupported format %q", format)
	}
}

func printIndexSummary(w io.Writer, rep explorer.Report) {
	ix := rep.Index
	fmt.Fprintf(w, "\n--- Summary ---\n")
	fmt.Fprintf(w, "Run:                %s\n", rep.RunID)
	fmt.Fprintf(w, "State:              %s\n", rep.Params.State)
	fmt.Fprintf(w, "Counties:           %s\n", strings.Join(rep.Params.Counties, ", "))
	fmt.Fprintf(w, "Concentration:      %s\n", rep.Params.Concentration)
	fmt.Fprintf(w, "Method:             %s\n", rep.Params.Method)
	fmt.Fprintf(w, "Equity Geographies: %d\n", rep.Stage.Classification.Equity.Len())
	fmt.Fprintf(w, "Scored tracts:      %d\n", len(ix.Scores))
	fmt.Fprintf(w, "Weight sum:         %d\n", ix.WeightSum)
	if !ix.Valid {
		fmt.Fprintf(w, "Provisional:        %s\n", ix.Warning)
	}
	printDiagnostics(w, rep.Diagnostics)
}
