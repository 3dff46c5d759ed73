package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fleet-monitor/simulation/internal/domain"
)

func TestDistanceMeters(t *testing.T) {
	tests := []struct {
		name      string
		a, b      domain.Location
		want      float64
		tolerance float64
	}{
		{
			name: "identical points",
			a:    domain.Location{Lat: 53.344496, Lon: -6.259427},
			b:    domain.Location{Lat: 53.344496, Lon: -6.259427},
			want: 0, tolerance: 0.001,
		},
		{
			// 0.001 degrees of latitude is 111.1m regardless of longitude
			name: "one millidegree of latitude",
			a:    domain.Location{Lat: 53.344, Lon: -6.259},
			b:    domain.Location{Lat: 53.345, Lon: -6.259},
			want: 111.19, tolerance: 0.5,
		},
		{
			// geofence-scale distance, checked against an online calculator
			name: "a few hundred meters",
			a:    domain.Location{Lat: 40.7128, Lon: -74.0060},
			b:    domain.Location{Lat: 40.7150, Lon: -74.0090},
			want: 348, tolerance: 5,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := DistanceMeters(tc.a, tc.b)
			assert.InDelta(t, tc.want, got, tc.tolerance)
			// distance is symmetric
			assert.InDelta(t, got, DistanceMeters(tc.b, tc.a), 0.0001)
		})
	}
}

func TestInterpolate(t *testing.T) {
	a := domain.Location{Lat: 10, Lon: 20}
	b := domain.Location{Lat: 12, Lon: 26}

	assert.Equal(t, a, Interpolate(a, b, 0))
	assert.Equal(t, b, Interpolate(a, b, 1))

	mid := Interpolate(a, b, 0.5)
	assert.InDelta(t, 11, mid.Lat, 1e-9)
	assert.InDelta(t, 23, mid.Lon, 1e-9)

	// t outside [0,1] clamps to the endpoints
	assert.Equal(t, a, Interpolate(a, b, -0.5))
	assert.Equal(t, b, Interpolate(a, b, 1.5))
}

func TestInterpolateStaysOnSegment(t *testing.T) {
	a := domain.Location{Lat: 40.7128, Lon: -74.0060}
	b := domain.Location{Lat: 40.7484, Lon: -73.9857}

	for _, f := range []float64{0, 0.1, 0.25, 0.5, 0.75, 0.9, 1} {
		p := Interpolate(a, b, f)
		// a point on the segment satisfies the parametric form exactly
		assert.InDelta(t, a.Lat+(b.Lat-a.Lat)*f, p.Lat, 1e-12)
		assert.InDelta(t, a.Lon+(b.Lon-a.Lon)*f, p.Lon, 1e-12)
	}
}

func TestBearingDegrees(t *testing.T) {
	origin := domain.Location{Lat: 0, Lon: 0}

	assert.InDelta(t, 0, BearingDegrees(origin, domain.Location{Lat: 1, Lon: 0}), 0.01)
	assert.InDelta(t, 90, BearingDegrees(origin, domain.Location{Lat: 0, Lon: 1}), 0.01)
	assert.InDelta(t, 180, BearingDegrees(origin, domain.Location{Lat: -1, Lon: 0}), 0.01)
	assert.InDelta(t, 270, BearingDegrees(origin, domain.Location{Lat: 0, Lon: -1}), 0.01)

	// undefined bearing for identical points collapses to 0
	assert.Equal(t, 0.0, BearingDegrees(origin, origin))

	// always normalized to [0, 360)
	b := BearingDegrees(domain.Location{Lat: 50, Lon: 10}, domain.Location{Lat: 49, Lon: 9})
	assert.GreaterOrEqual(t, b, 0.0)
	assert.Less(t, b, 360.0)
}
