package export

import (
	"encoding/json"
	"io"
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/equity-explorer/internal/model"
)

// GeoJSON writes tracts as a FeatureCollection. Properties are the tract's
// values plus extra(tr), if non-nil; missing values are null. Tracts without
// decodable geometry are skipped.
func GeoJSON(w io.Writer, tbl model.Table, extra func(model.Tract) map[string]any) error {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, tbl.Len())}
	var skipped int
	for _, tr := range tbl.Tracts {
		if len(tr.Geometry) == 0 {
			skipped++
			continue
		}
		g, err := ewkb.Unmarshal(tr.Geometry)
		if err != nil {
			zap.L().Debug("export: bad tract geometry", zap.String("census_tract", tr.ID), zap.Error(err))
			skipped++
			continue
		}

		props := map[string]any{
			"census_tract": tr.ID,
			"state":        tr.State,
			"county":       tr.County,
		}
		for _, col := range tbl.Columns {
			v, ok := tr.Value(col)
			if ok && !math.IsInf(v, 0) {
				props[col] = v
			} else {
				props[col] = nil
			}
		}
		if extra != nil {
			for k, v := range extra(tr) {
				props[k] = v
			}
		}

		fc.Features = append(fc.Features, &geojson.Feature{ID: tr.ID, Geometry: g, Properties: props})
	}
	if skipped > 0 {
		zap.L().Debug("export: tracts without geometry", zap.Int("skipped", skipped))
	}

	enc := json.NewEncoder(w)
	return eris.Wrap(enc.Encode(fc), "export: write GeoJSON")
}
