package geospatial

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCoordinates_LatLng(t *testing.T) {
	cases := []struct {
		in       string
		lat, lng float64
	}{
		{"21.9497, 89.1833", 21.9497, 89.1833},
		{"21.9497 N, 89.1833 E", 21.9497, 89.1833},
		{"8.5°S, 115.2°W", -8.5, -115.2},
		{" -12.5 , 45 ", -12.5, 45},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			g, err := ParseCoordinates(tc.in)
			require.NoError(t, err)
			p, ok := g.(orb.Point)
			require.True(t, ok)
			assert.InDelta(t, tc.lat, p.Lat(), 1e-9)
			assert.InDelta(t, tc.lng, p.Lon(), 1e-9)
		})
	}
}

func TestParseCoordinates_Invalid(t *testing.T) {
	for _, in := range []string{"", "somewhere", "1,2,3", "91, 10", "10, 181", "-5 S, 10", `{"type":"LineString","coordinates":[[0,0],[1,1]]}`, `{"type":`} {
		_, err := ParseCoordinates(in)
		assert.ErrorIs(t, err, ErrInvalidCoordinates, in)
	}
}

func TestParseCoordinates_GeoJSON(t *testing.T) {
	point, err := ParseCoordinates(`{"type":"Point","coordinates":[88.9,21.9]}`)
	require.NoError(t, err)
	assert.Equal(t, orb.Point{88.9, 21.9}, point)

	polygon := `{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[88.0,21.0],[88.01,21.0],[88.01,21.01],[88.0,21.01],[88.0,21.0]]]}}`
	g, err := ParseCoordinates(polygon)
	require.NoError(t, err)
	_, ok := g.(orb.Polygon)
	require.True(t, ok)

	// roughly 1.04km x 1.11km
	assert.InDelta(t, 115, AreaHectares(g), 10)
	c := Centroid(g)
	assert.InDelta(t, 88.005, c.Lon(), 1e-6)
	assert.InDelta(t, 21.005, c.Lat(), 1e-6)
	assert.Equal(t, 0.0, AreaHectares(point))
}
