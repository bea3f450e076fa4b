package source

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"
)

// geoidFields are the TIGER attribute names that carry the tract GEOID.
var geoidFields = []string{"geoid", "geoid20", "geoid10", "census_tract"}

// ReadTractShapes reads a TIGER tract shapefile and returns EWKB
// multipolygons (SRID 4269, NAD83) keyed by GEOID.
func ReadTractShapes(path string) (map[string][]byte, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "shapefile: open %s", path)
	}
	defer func() { _ = reader.Close() }()

	geoidIdx := -1
	for i, f := range reader.Fields() {
		name := strings.ToLower(strings.TrimRight(f.String(), "\x00"))
		for _, want := range geoidFields {
			if name == want && geoidIdx < 0 {
				geoidIdx = i
			}
		}
	}
	if geoidIdx < 0 {
		return nil, eris.Errorf("shapefile: %s has no GEOID field", path)
	}

	geoms := make(map[string][]byte)
	var skipped int
	for reader.Next() {
		n, shape := reader.Shape()
		id := strings.TrimSpace(strings.TrimRight(reader.ReadAttribute(n, geoidIdx), "\x00"))
		poly, ok := shape.(*shp.Polygon)
		if id == "" || !ok {
			skipped++
			continue
		}
		wkb, err := EncodePolygon(poly)
		if err != nil {
			return nil, err
		}
		if wkb == nil {
			skipped++
			continue
		}
		geoms[id] = wkb
	}

	if skipped > 0 {
		zap.L().Debug("shapefile: skipped records", zap.String("path", path), zap.Int("skipped", skipped))
	}
	return geoms, nil
}

// TIGER/Line geometries are NAD83.
const tigerSRID = 4269

// EncodePolygon converts a shapefile polygon to EWKB. Clockwise rings start a
// new polygon; counter-clockwise rings are holes of the preceding polygon.
// Returns nil, nil when no usable ring remains.
func EncodePolygon(p *shp.Polygon) ([]byte, error) {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil, nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(tigerSRID)
	var current *geom.Polygon
	flush := func() {
		if current == nil || current.NumLinearRings() == 0 {
			current = nil
			return
		}
		if err := mp.Push(current); err != nil {
			zap.L().Debug("shapefile: skipping malformed polygon", zap.Error(err))
		}
		current = nil
	}

	for i := range p.NumParts {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if start < 0 || end > int32(len(p.Points)) || end-start < 4 {
			continue
		}

		flat := make([]float64, 0, 2*(end-start))
		for _, pt := range p.Points[start:end] {
			flat = append(flat, pt.X, pt.Y)
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)

		if signedArea(flat) <= 0 || current == nil {
			flush()
			current = geom.NewPolygon(geom.XY)
		}
		if err := current.Push(ring); err != nil {
			zap.L().Debug("shapefile: skipping malformed ring", zap.Int32("part", i), zap.Error(err))
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil, nil
	}
	data, err := ewkb.Marshal(mp, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "shapefile: encode EWKB")
	}
	return data, nil
}

// signedArea is negative for clockwise rings.
func signedArea(flat []float64) float64 {
	var sum float64
	for i := 0; i+3 < len(flat); i += 2 {
		sum += flat[i]*flat[i+3] - flat[i+2]*flat[i+1]
	}
	return sum / 2
}
