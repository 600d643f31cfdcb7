// Package geospatial validates the coordinates declared on a project.
package geospatial

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

var ErrInvalidCoordinates = errors.New("invalid coordinates")

// ParseCoordinates accepts either "lat, lng" (decimal degrees, optionally
// suffixed with N/S/E/W) or a GeoJSON Point/Polygon geometry or Feature.
func ParseCoordinates(raw string) (orb.Geometry, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidCoordinates
	}
	if strings.HasPrefix(raw, "{") {
		return ValidateGeoJSON(raw)
	}

	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: expected \"lat, lng\"", ErrInvalidCoordinates)
	}
	lat, err := parseDegrees(parts[0], "N", "S")
	if err != nil {
		return nil, err
	}
	lng, err := parseDegrees(parts[1], "E", "W")
	if err != nil {
		return nil, err
	}
	p := orb.Point{lng, lat}
	if err := checkPoint(p); err != nil {
		return nil, err
	}
	return p, nil
}

func parseDegrees(s, positive, negative string) (float64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	sign := 1.0
	switch {
	case strings.HasSuffix(s, negative):
		sign = -1
		s = strings.TrimSuffix(s, negative)
	case strings.HasSuffix(s, positive):
		s = strings.TrimSuffix(s, positive)
	}
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "°"))

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidCoordinates, s)
	}
	if v < 0 && sign < 0 {
		return 0, fmt.Errorf("%w: conflicting sign and hemisphere", ErrInvalidCoordinates)
	}
	return v * sign, nil
}

func checkPoint(p orb.Point) error {
	if p.Lat() < -90 || p.Lat() > 90 || p.Lon() < -180 || p.Lon() > 180 {
		return fmt.Errorf("%w: %v out of range", ErrInvalidCoordinates, p)
	}
	return nil
}

// ValidateGeoJSON validates a GeoJSON string
func ValidateGeoJSON(geojsonStr string) (orb.Geometry, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(geojsonStr), &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCoordinates, err)
	}

	var g orb.Geometry
	switch probe.Type {
	case "Feature":
		feature, err := geojson.UnmarshalFeature([]byte(geojsonStr))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCoordinates, err)
		}
		g = feature.Geometry
	default:
		geometry, err := geojson.UnmarshalGeometry([]byte(geojsonStr))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCoordinates, err)
		}
		g = geometry.Geometry()
	}

	switch v := g.(type) {
	case orb.Point:
		return v, checkPoint(v)
	case orb.Polygon:
		if len(v) == 0 || len(v[0]) < 4 {
			return nil, fmt.Errorf("%w: polygon needs a closed ring", ErrInvalidCoordinates)
		}
		for _, p := range v[0] {
			if err := checkPoint(p); err != nil {
				return nil, err
			}
		}
		return v, nil
	case nil:
		return nil, fmt.Errorf("%w: no geometry", ErrInvalidCoordinates)
	default:
		return nil, fmt.Errorf("%w: unsupported geometry %s", ErrInvalidCoordinates, g.GeoJSONType())
	}
}

// AreaHectares returns the geodesic area of a polygon in hectares; points have
// no area.
func AreaHectares(g orb.Geometry) float64 {
	return ConvertToHectares(math.Abs(geo.Area(g)))
}

// Centroid returns the representative point of a geometry.
func Centroid(g orb.Geometry) orb.Point {
	if p, ok := g.(orb.Point); ok {
		return p
	}
	c, _ := planar.CentroidArea(g)
	return c
}

// ConvertToHectares converts square meters to hectares
func ConvertToHectares(sqMeters float64) float64 {
	return sqMeters / 10000
}
