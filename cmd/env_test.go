package main

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/equity-explorer/internal/config"
	"github.com/sells-group/equity-explorer/internal/explorer"
	"github.com/sells-group/equity-explorer/internal/export"
	"github.com/sells-group/equity-explorer/internal/indicator"
	"github.com/sells-group/equity-explorer/internal/normalize"
	"github.com/sells-group/equity-explorer/internal/scorer"
	"github.com/sells-group/equity-explorer/internal/stats"
)

const equityCSV = `state_name,county_name,census_tract,year,people_of_color,below_200_poverty,limited_english_households,seniors_75_plus,zero_vehicle_households,single_parent_families,with_disability,rent_burdened_households,total_population,poverty_universe,total_households,total_families,civilian_noninstitutional_population,renter_households
California,Alameda,06001400100,2021,10,10,5,5,5,5,5,5,100,100,100,100,100,100
California,Alameda,06001400200,2021,20,15,6,6,6,6,6,6,100,100,100,100,100,100
California,Alameda,06001400300,2021,30,20,5,7,5,7,5,7,100,100,100,100,100,100
California,Alameda,06001400400,2021,80,70,6,5,6,5,6,5,100,100,100,100,100,100
California,Alameda,06001400500,2021,15,65,30,30,30,5,5,5,100,100,100,100,100,100
California,Alameda,06001400600,2021,25,12,5,6,5,6,5,6,100,100,100,100,100,100
`

const transportCSV = `state_name,county_name,census_tract,year,zero_vehicle_households,total_households,vmt_per_household,people_of_color,total_population,no_computer_households
California,Alameda,06001400100,2021,5,100,30,10,100,5
California,Alameda,06001400200,2021,6,100,25,20,100,6
California,Alameda,06001400300,2021,5,100,22,30,100,5
California,Alameda,06001400400,2021,30,100,10,80,100,20
California,Alameda,06001400500,2021,10,100,20,15,100,20
California,Alameda,06001400600,2021,5,100,28,25,100,6
`

// filesConfig writes the Alameda extracts to a temp dir and returns a config
// pointing the files driver at them.
func filesConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	eq := filepath.Join(dir, "equity.csv")
	tr := filepath.Join(dir, "transport.csv")
	require.NoError(t, os.WriteFile(eq, []byte(equityCSV), 0o644))
	require.NoError(t, os.WriteFile(tr, []byte(transportCSV), 0o644))

	c := &config.Config{}
	c.Store.Driver = config.DriverFiles
	c.Files.Equity = []string{eq}
	c.Files.Transportation = []string{tr}
	c.Explorer = config.ExplorerConfig{Concentration: "medium", Method: "minmax", TopK: 5}
	return c
}

func newEnv(t *testing.T) *explorerEnv {
	t.Helper()
	env, err := initExplorer(context.Background(), filesConfig(t), 4)
	require.NoError(t, err)
	t.Cleanup(env.Close)
	return env
}

func TestOpenSource_Files(t *testing.T) {
	src, err := openSource(context.Background(), filesConfig(t))
	require.NoError(t, err)
	defer src.Close() //nolint:errcheck

	counties, err := src.Counties(context.Background(), "California")
	require.NoError(t, err)
	assert.Equal(t, []string{"Alameda"}, counties)
}

func TestOpenSource_Errors(t *testing.T) {
	c := &config.Config{}
	c.Store.Driver = "mysql"
	_, err := openSource(context.Background(), c)
	assert.ErrorContains(t, err, "unknown driver")

	c.Store.Driver = config.DriverPostgres
	_, err = openSource(context.Background(), c)
	assert.ErrorContains(t, err, "no database_url")

	c.Store.Driver = config.DriverFiles
	c.Files.Equity = []string{filepath.Join(t.TempDir(), "missing.csv")}
	_, err = openSource(context.Background(), c)
	assert.Error(t, err)
}

func TestInitExplorer_CatalogPath(t *testing.T) {
	c := filesConfig(t)
	c.Indicators.CatalogPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := initExplorer(context.Background(), c, 0)
	assert.Error(t, err)

	cat, err := loadCatalog("")
	require.NoError(t, err)
	assert.Equal(t, indicator.Default().DefaultSelection, cat.DefaultSelection)
}

func testCommand(args ...string) (*cobra.Command, error) {
	cmd := &cobra.Command{Use: "test"}
	addGeographyFlags(cmd)
	addIndexFlags(cmd)
	return cmd, cmd.ParseFlags(args)
}

func TestRunParams(t *testing.T) {
	base := config.ExplorerConfig{
		Concentration: "low",
		Method:        "minmax",
		TopK:          5,
		Indicators:    []string{indicator.ZeroVehiclePct, indicator.VehicleMilesTraveled},
		Weights:       []string{indicator.ZeroVehiclePct + "=70", indicator.VehicleMilesTraveled + "=30"},
	}

	cmd, err := testCommand("--state", "California", "--counties", "Alameda, Marin")
	require.NoError(t, err)
	p, err := runParams(cmd, base)
	require.NoError(t, err)
	assert.Equal(t, "California", p.State)
	assert.Equal(t, []string{"Alameda", "Marin"}, p.Counties)
	assert.Equal(t, stats.Low, p.Concentration)
	assert.Equal(t, normalize.MinMax, p.Method)
	assert.Equal(t, scorer.Weights{indicator.ZeroVehiclePct: 70, indicator.VehicleMilesTraveled: 30}, p.Weights)

	cmd, err = testCommand("--state", "California", "--concentration", "high",
		"--indicators", indicator.VehicleMilesTraveled, "--method", "zscore", "--top", "3")
	require.NoError(t, err)
	p, err = runParams(cmd, base)
	require.NoError(t, err)
	assert.Equal(t, stats.High, p.Concentration)
	assert.Equal(t, []string{indicator.VehicleMilesTraveled}, p.Indicators)
	assert.Nil(t, p.Weights, "config weights are dropped with a new selection")
	assert.Equal(t, normalize.ZScore, p.Method)
	assert.Equal(t, 3, p.TopK)

	cmd, err = testCommand()
	require.NoError(t, err)
	_, err = runParams(cmd, base)
	assert.ErrorContains(t, err, "--state is required")

	cmd, err = testCommand("--state", "California", "--weights", "no-equals-sign")
	require.NoError(t, err)
	_, err = runParams(cmd, base)
	assert.Error(t, err)
}

func TestSplitAndTrim(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitAndTrim(" a, ,b ,"))
	assert.Nil(t, splitAndTrim(""))
}

func TestOpenOutput(t *testing.T) {
	w, closeOut, err := openOutput("")
	require.NoError(t, err)
	assert.Equal(t, os.Stdout, w)
	assert.NoError(t, closeOut())

	path := filepath.Join(t.TempDir(), "out.csv")
	w, closeOut, err = openOutput(path)
	require.NoError(t, err)
	_, err = w.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, closeOut())
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "x", string(b))

	_, _, err = openOutput(filepath.Join(t.TempDir(), "no", "such", "dir.csv"))
	assert.Error(t, err)
}

func classifyAlameda(t *testing.T) (*explorerEnv, explorer.Stage, explorer.Params) {
	t.Helper()
	env := newEnv(t)
	st, p, err := env.Explorer.Classify(context.Background(), explorer.Params{
		State:         "California",
		Counties:      []string{"Alameda"},
		Concentration: stats.Medium,
	})
	require.NoError(t, err)
	return env, st, p
}

func TestWriteClassification(t *testing.T) {
	env, st, p := classifyAlameda(t)
	cat := env.Explorer.Catalog()
	assert.Equal(t, []string{"06001400400", "06001400500"}, st.Classification.EquityIDs())

	var buf bytes.Buffer
	require.NoError(t, writeClassification(&buf, export.FormatTable, st, cat))
	assert.True(t, strings.HasPrefix(buf.String(), "Equity Geographies"))
	assert.Contains(t, buf.String(), "Criteria A")
	assert.Contains(t, buf.String(), "Transportation Averages")

	buf.Reset()
	require.NoError(t, writeClassification(&buf, export.FormatCSV, st, cat))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 7)
	assert.True(t, strings.HasPrefix(lines[0], "census_tract,state,county,criteria,"))
	assert.True(t, strings.HasPrefix(lines[4], "06001400400,California,Alameda,Criteria A,"))

	buf.Reset()
	require.NoError(t, writeClassification(&buf, export.FormatXLSX, st, cat))
	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	assert.Len(t, f.Sheets, 4)

	buf.Reset()
	require.NoError(t, writeClassification(&buf, export.FormatGeoJSON, st, cat))
	assert.Contains(t, buf.String(), `"FeatureCollection"`)

	buf.Reset()
	printClassifySummary(&buf, st, p)
	assert.Contains(t, buf.String(), "Equity Geographies: 2")
	assert.Contains(t, buf.String(), "medium (1.0 std dev)")
}

func TestWriteIndex(t *testing.T) {
	env := newEnv(t)
	cat := env.Explorer.Catalog()
	rep, err := env.Explorer.Run(context.Background(), explorer.Params{
		State:         "California",
		Counties:      []string{"Alameda"},
		Concentration: stats.Medium,
		TopK:          1,
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeIndex(&buf, export.FormatTable, rep, cat))
	assert.True(t, strings.HasPrefix(buf.String(), "Top 1"))
	assert.Contains(t, buf.String(), "06001400400")
	assert.NotContains(t, buf.String(), "06001400500")
	assert.Contains(t, buf.String(), "Top Tract Detail")
	assert.Contains(t, buf.String(), "from county average")

	buf.Reset()
	require.NoError(t, writeIndex(&buf, export.FormatCSV, rep, cat))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "rank,census_tract,county,score,incomplete"))
	assert.True(t, strings.HasPrefix(lines[1], "1,06001400400,Alameda,"))

	buf.Reset()
	require.NoError(t, writeIndex(&buf, export.FormatXLSX, rep, cat))
	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	assert.Len(t, f.Sheets, 5)
	assert.Equal(t, "Top Tract Detail", f.Sheets[1].Name)

	poly := geom.NewPolygonFlat(geom.XY, []float64{0, 0, 0, 1, 1, 1, 1, 0, 0, 0}, []int{10}).SetSRID(4269)
	wkb, err := ewkb.Marshal(poly, ewkb.NDR)
	require.NoError(t, err)
	for i := range rep.Stage.Transport.Equity.Tracts {
		rep.Stage.Transport.Equity.Tracts[i].Geometry = wkb
	}

	buf.Reset()
	require.NoError(t, writeIndex(&buf, export.FormatGeoJSON, rep, cat))
	var fc struct {
		Features []struct {
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fc))
	require.Len(t, fc.Features, 2)
	for _, feat := range fc.Features {
		score := feat.Properties["score"].(float64)
		assert.Equal(t, math.RoundToEven(score), feat.Properties["index_value"])
	}

	buf.Reset()
	printIndexSummary(&buf, rep)
	assert.Contains(t, buf.String(), "Weight sum:         100")
	assert.NotContains(t, buf.String(), "Provisional")
}
