package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// identityTransform passes coordinates through unchanged.
func identityTransform(x, y float64) (float64, float64, error) {
	return x, y, nil
}

func squareRing(x0, y0, size float64) orb.Ring {
	return orb.Ring{
		{x0, y0}, {x0 + size, y0}, {x0 + size, y0 + size}, {x0, y0 + size}, {x0, y0},
	}
}

func TestNormalizeZone(t *testing.T) {
	t.Run("polygon outer ring", func(t *testing.T) {
		raw := RawZone{Name: "Zona 1", Geometry: orb.Polygon{squareRing(0, 0, 10)}}

		zone, err := NormalizeZone(raw, identityTransform)

		require.NoError(t, err)
		assert.Equal(t, "Zona 1", zone.Name)
		require.Len(t, zone.Rings, 1)
		assert.Len(t, zone.Rings[0], 5)
		assert.Equal(t, zone.Rings[0][0], zone.Rings[0][len(zone.Rings[0])-1])
	})

	t.Run("polygon holes are dropped", func(t *testing.T) {
		raw := RawZone{Name: "Zona 1", Geometry: orb.Polygon{
			squareRing(0, 0, 10),
			squareRing(2, 2, 2),
		}}

		zone, err := NormalizeZone(raw, identityTransform)

		require.NoError(t, err)
		assert.Len(t, zone.Rings, 1)
	})

	t.Run("multipolygon flattens to one ring per part", func(t *testing.T) {
		raw := RawZone{Name: "Zona 2", Geometry: orb.MultiPolygon{
			{squareRing(0, 0, 10)},
			{squareRing(100, 100, 5)},
		}}

		zone, err := NormalizeZone(raw, identityTransform)

		require.NoError(t, err)
		require.Len(t, zone.Rings, 2)
		assert.Equal(t, orb.Point{100, 100}, zone.Rings[1][0])
	})

	t.Run("transform is applied per vertex", func(t *testing.T) {
		shift := func(x, y float64) (float64, float64, error) { return x + 1, y + 2, nil }
		raw := RawZone{Name: "z", Geometry: orb.Polygon{squareRing(0, 0, 10)}}

		zone, err := NormalizeZone(raw, shift)

		require.NoError(t, err)
		assert.Equal(t, orb.Point{1, 2}, zone.Rings[0][0])
	})

	t.Run("open source ring is closed", func(t *testing.T) {
		open := orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}}
		raw := RawZone{Name: "z", Geometry: orb.Polygon{open}}

		zone, err := NormalizeZone(raw, identityTransform)

		require.NoError(t, err)
		ring := zone.Rings[0]
		assert.Equal(t, ring[0], ring[len(ring)-1])
	})

	t.Run("fewer than three distinct vertices", func(t *testing.T) {
		degenerate := orb.Ring{{0, 0}, {10, 0}, {0, 0}, {10, 0}}
		raw := RawZone{Name: "z", Geometry: orb.Polygon{degenerate}}

		_, err := NormalizeZone(raw, identityTransform)

		require.ErrorIs(t, err, ErrGeometry)
	})

	t.Run("non-finite coordinate", func(t *testing.T) {
		bad := orb.Ring{{0, 0}, {10, 0}, {math.NaN(), 10}, {0, 0}}
		raw := RawZone{Name: "z", Geometry: orb.Polygon{bad}}

		_, err := NormalizeZone(raw, identityTransform)

		require.ErrorIs(t, err, ErrGeometry)
	})

	t.Run("vertex transform failure fails the whole ring", func(t *testing.T) {
		calls := 0
		failing := func(x, y float64) (float64, float64, error) {
			calls++
			if calls == 3 {
				return 0, 0, errors.New("out of projection bounds")
			}
			return x, y, nil
		}
		raw := RawZone{Name: "z", Geometry: orb.Polygon{squareRing(0, 0, 10)}}

		_, err := NormalizeZone(raw, failing)

		require.ErrorIs(t, err, ErrGeometry)
	})

	t.Run("unsupported geometry type", func(t *testing.T) {
		raw := RawZone{Name: "z", Geometry: orb.LineString{{0, 0}, {1, 1}}}

		_, err := NormalizeZone(raw, identityTransform)

		require.ErrorIs(t, err, ErrGeometry)
		assert.Contains(t, err.Error(), "LineString")
	})

	t.Run("one bad multipolygon part fails the zone", func(t *testing.T) {
		raw := RawZone{Name: "z", Geometry: orb.MultiPolygon{
			{squareRing(0, 0, 10)},
			{orb.Ring{{0, 0}, {1, 1}}},
		}}

		_, err := NormalizeZone(raw, identityTransform)

		require.ErrorIs(t, err, ErrGeometry)
		assert.Contains(t, err.Error(), "part 1")
	})
}

func TestEPSGTransform(t *testing.T) {
	t.Run("UTM 19S roundtrip sanity", func(t *testing.T) {
		transform, err := EPSGTransform(32719)
		require.NoError(t, err)

		// A point in the Maipo basin: around 33.6°S, 70.7°W.
		lon, lat, err := transform(342000, 6280000)

		require.NoError(t, err)
		assert.InDelta(t, -70.7, lon, 0.2)
		assert.InDelta(t, -33.6, lat, 0.2)
	})

	t.Run("unknown EPSG code", func(t *testing.T) {
		_, err := EPSGTransform(999999)

		require.Error(t, err)
	})
}
