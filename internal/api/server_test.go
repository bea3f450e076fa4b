package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/equity-explorer/internal/explorer"
	"github.com/sells-group/equity-explorer/internal/indicator"
	"github.com/sells-group/equity-explorer/internal/model"
	"github.com/sells-group/equity-explorer/internal/source"
)

type fakeSource struct {
	equity    model.Table
	transport model.Table
	err       error
}

func (f *fakeSource) Counties(_ context.Context, state string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	if state != "California" {
		return nil, nil
	}
	return []string{"Alameda"}, nil
}

func (f *fakeSource) Tracts(_ context.Context, q source.Query) (model.Table, error) {
	if f.err != nil {
		return model.Table{}, f.err
	}
	tbl := f.equity
	if q.Group == source.GroupTransportation {
		tbl = f.transport
	}
	if tbl.Len() == 0 {
		return model.Table{}, eris.Wrap(source.ErrDataUnavailable, "fake")
	}
	return tbl, nil
}

func (f *fakeSource) Close() error { return nil }

var (
	equityCounts = []string{
		"people_of_color", "below_200_poverty", "limited_english_households", "seniors_75_plus",
		"zero_vehicle_households", "single_parent_families", "with_disability", "rent_burdened_households",
	}
	equityBases = []string{
		"total_population", "poverty_universe", "total_households", "total_families",
		"civilian_noninstitutional_population", "renter_households",
	}
	transportCols = []string{
		"zero_vehicle_households", "total_households", "vmt_per_household",
		"people_of_color", "total_population", "no_computer_households",
	}
)

// alameda builds six tracts with every denominator at 100. Tracts 400400 and
// 400500 are the Equity Geographies at medium concentration.
func alameda() *fakeSource {
	eq := model.Table{Columns: append(append([]string{}, equityCounts...), equityBases...)}
	for _, row := range []struct {
		id     string
		counts []float64
	}{
		{"06001400100", []float64{10, 10, 5, 5, 5, 5, 5, 5}},
		{"06001400200", []float64{20, 15, 6, 6, 6, 6, 6, 6}},
		{"06001400300", []float64{30, 20, 5, 7, 5, 7, 5, 7}},
		{"06001400400", []float64{80, 70, 6, 5, 6, 5, 6, 5}},
		{"06001400500", []float64{15, 65, 30, 30, 30, 5, 5, 5}},
		{"06001400600", []float64{25, 12, 5, 6, 5, 6, 5, 6}},
	} {
		vals := map[string]float64{}
		for i, col := range equityCounts {
			vals[col] = row.counts[i]
		}
		for _, col := range equityBases {
			vals[col] = 100
		}
		eq.Tracts = append(eq.Tracts, model.Tract{ID: row.id, State: "California", County: "Alameda", Values: vals})
	}

	tr := model.Table{Columns: transportCols}
	for _, row := range []struct {
		id                        string
		zeroVeh, vmt, poc, noComp float64
	}{
		{"06001400100", 5, 30, 10, 5},
		{"06001400200", 6, 25, 20, 6},
		{"06001400300", 5, 22, 30, 5},
		{"06001400400", 30, 10, 80, 20},
		{"06001400500", 10, 20, 15, 20},
		{"06001400600", 5, 28, 25, 6},
	} {
		tr.Tracts = append(tr.Tracts, model.Tract{ID: row.id, State: "California", County: "Alameda", Values: map[string]float64{
			"zero_vehicle_households": row.zeroVeh,
			"total_households":        100,
			"vmt_per_household":       row.vmt,
			"people_of_color":         row.poc,
			"total_population":        100,
			"no_computer_households":  row.noComp,
		}})
	}
	return &fakeSource{equity: eq, transport: tr}
}

func newTestServer(src source.Source, origins ...string) http.Handler {
	exp := explorer.New(src, indicator.Default(), explorer.WithCache(explorer.NewCache(4)))
	return New(exp, origins).Handler()
}

func TestHealth(t *testing.T) {
	h := newTestServer(alameda())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestCounties(t *testing.T) {
	h := newTestServer(alameda())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/states/California/counties", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		State    string   `json:"state"`
		Counties []string `json:"counties"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "California", body.State)
	assert.Equal(t, []string{"Alameda"}, body.Counties)
}

func TestCounties_UnknownState(t *testing.T) {
	h := newTestServer(alameda())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/states/Atlantis/counties", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "no counties")
}

func TestCounties_SourceError(t *testing.T) {
	h := newTestServer(&fakeSource{err: errors.New("connection refused")})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/states/California/counties", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "connection refused")
}

func TestExplore(t *testing.T) {
	h := newTestServer(alameda())

	body := `{"state":"California","counties":["Alameda"],"concentration":"medium","top_k":1}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/explore", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var got struct {
		RunID          string `json:"run_id"`
		Classification struct {
			Tracts            int            `json:"tracts"`
			EquityGeographies []string       `json:"equity_geographies"`
			Counts            map[string]int `json:"counts"`
			Labels            []struct {
				TractID string `json:"census_tract"`
				Label   string `json:"label"`
			} `json:"labels"`
			Thresholds struct {
				Coefficient float64 `json:"coefficient"`
			} `json:"thresholds"`
		} `json:"classification"`
		Transportation struct {
			Tracts       int `json:"tracts"`
			EquityTracts int `json:"equity_tracts"`
		} `json:"transportation"`
		Index struct {
			Valid     bool `json:"valid"`
			WeightSum int  `json:"weight_sum"`
			Scores    []struct {
				TractID string  `json:"census_tract"`
				Score   float64 `json:"score"`
			} `json:"scores"`
		} `json:"index"`
		Top []struct {
			Rank    int    `json:"rank"`
			TractID string `json:"census_tract"`
		} `json:"top"`
		TopDetail []struct {
			TractID    string `json:"census_tract"`
			Indicators []struct {
				Indicator     string   `json:"indicator"`
				Value         *float64 `json:"value"`
				CountyAverage *float64 `json:"county_average"`
				Delta         *float64 `json:"delta"`
				Display       string   `json:"display"`
			} `json:"indicators"`
		} `json:"top_detail"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))

	assert.NotEmpty(t, got.RunID)
	assert.Equal(t, 6, got.Classification.Tracts)
	assert.Equal(t, []string{"06001400400", "06001400500"}, got.Classification.EquityGeographies)
	assert.Equal(t, 1, got.Classification.Counts["Criteria A"])
	assert.Equal(t, 1, got.Classification.Counts["Criteria B"])
	require.Len(t, got.Classification.Labels, 6)
	assert.Equal(t, "Criteria A", got.Classification.Labels[3].Label)
	assert.Equal(t, 1.0, got.Classification.Thresholds.Coefficient)

	assert.Equal(t, 6, got.Transportation.Tracts)
	assert.Equal(t, 2, got.Transportation.EquityTracts)

	assert.True(t, got.Index.Valid)
	assert.Equal(t, 100, got.Index.WeightSum)
	require.Len(t, got.Index.Scores, 2)
	assert.InDelta(t, 50.0, got.Index.Scores[0].Score, 1e-9)

	require.Len(t, got.Top, 1)
	assert.Equal(t, 1, got.Top[0].Rank)
	assert.Equal(t, "06001400400", got.Top[0].TractID)

	require.Len(t, got.TopDetail, 1)
	assert.Equal(t, "06001400400", got.TopDetail[0].TractID)
	zv := got.TopDetail[0].Indicators[0]
	assert.Equal(t, indicator.ZeroVehiclePct, zv.Indicator)
	require.NotNil(t, zv.Value)
	require.NotNil(t, zv.CountyAverage)
	require.NotNil(t, zv.Delta)
	assert.InDelta(t, 30.0, *zv.Value, 1e-9)
	assert.InDelta(t, 61.0/6, *zv.CountyAverage, 1e-9)
	assert.InDelta(t, 30-61.0/6, *zv.Delta, 1e-9)
	assert.Equal(t, "30.0% (+19.8% from county average)", zv.Display)
}

func TestExplore_NoData(t *testing.T) {
	h := newTestServer(&fakeSource{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/explore", strings.NewReader(`{"state":"Nevada"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var got struct {
		Diagnostics struct {
			Conditions []string `json:"conditions"`
		} `json:"diagnostics"`
		Top       []any `json:"top"`
		TopDetail []any `json:"top_detail"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Contains(t, got.Diagnostics.Conditions, "data_unavailable")
	assert.NotNil(t, got.Top)
	assert.Empty(t, got.Top)
	assert.NotNil(t, got.TopDetail)
	assert.Empty(t, got.TopDetail)
}

func TestExplore_BadRequests(t *testing.T) {
	h := newTestServer(alameda())

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"malformed", `{"state":`, "invalid request body"},
		{"unknown field", `{"state":"California","colour":"red"}`, "invalid request body"},
		{"no state", `{}`, "state is required"},
		{"bad concentration", `{"state":"California","concentration":"extreme"}`, "concentration"},
		{"unselected weight", `{"state":"California","indicators":["Vehicle Miles Traveled"],"weights":{"Zero-Vehicle Households (%)":100}}`, "unselected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/explore", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.wantErr)
		})
	}
}

func TestExplore_SourceError(t *testing.T) {
	h := newTestServer(&fakeSource{err: errors.New("connection refused")})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/explore", strings.NewReader(`{"state":"California"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "explore failed")
}

func TestCORS(t *testing.T) {
	h := newTestServer(alameda(), "https://maps.example.org")

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/explore", nil)
	req.Header.Set("Origin", "https://maps.example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "https://maps.example.org", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://elsewhere.example.com")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	exp := explorer.New(alameda(), indicator.Default())
	h := New(exp, nil, WithRateLimit(0.001, 2)).Handler()

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/states/California/counties", nil)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code, "health is not rate limited")
}
