package domain

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/wroge/wgs84"
)

// PointTransform converts a projected coordinate pair into geographic
// longitude/latitude. It must be stateless: the same input always yields the
// same output.
type PointTransform func(x, y float64) (lon, lat float64, err error)

// Zone is a named aquifer polygon set in geographic coordinates, used as a
// backdrop on the wells distribution map. Multi-part source geometries are
// flattened into one ring per part.
type Zone struct {
	Name  string
	Rings []orb.Ring
}

// RawZone is an as-received zone feature: a name plus an untransformed
// GeoJSON geometry in the source CRS.
type RawZone struct {
	Name     string
	Geometry orb.Geometry
}

// EPSGTransform builds a PointTransform from a source EPSG code to WGS 84
// geographic coordinates (EPSG:4326).
func EPSGTransform(sourceEPSG int) (PointTransform, error) {
	epsg := wgs84.EPSG()
	from := epsg.Code(sourceEPSG)
	if from == nil {
		return nil, fmt.Errorf("unknown source EPSG code %d", sourceEPSG)
	}
	transform := wgs84.Transform(from, wgs84.LonLat())
	return func(x, y float64) (float64, float64, error) {
		lon, lat, _ := transform(x, y, 0)
		if !finite(lon) || !finite(lat) {
			return 0, 0, fmt.Errorf("transform of (%g, %g) is not finite", x, y)
		}
		return lon, lat, nil
	}, nil
}

// NormalizeZone converts a raw zone feature into geographic rings. Polygons
// contribute their outer ring only; holes are out of scope
// since zones are drawn as filled backdrops. MultiPolygons are normalized
// part by part. Anything else fails with ErrGeometry, as does a ring with
// fewer than three distinct vertices, a non-finite coordinate, or a vertex
// the transform rejects. A failed vertex fails its whole ring: partial
// geometries are more dangerous than an explicit failure.
func NormalizeZone(raw RawZone, transform PointTransform) (Zone, error) {
	switch g := raw.Geometry.(type) {
	case orb.Polygon:
		ring, err := normalizeOuterRing(g, transform)
		if err != nil {
			return Zone{}, fmt.Errorf("zone %q: %w", raw.Name, err)
		}
		return Zone{Name: raw.Name, Rings: []orb.Ring{ring}}, nil
	case orb.MultiPolygon:
		rings := make([]orb.Ring, 0, len(g))
		for i, poly := range g {
			ring, err := normalizeOuterRing(poly, transform)
			if err != nil {
				return Zone{}, fmt.Errorf("zone %q part %d: %w", raw.Name, i, err)
			}
			rings = append(rings, ring)
		}
		return Zone{Name: raw.Name, Rings: rings}, nil
	default:
		return Zone{}, fmt.Errorf("%w: zone %q: unsupported geometry type %q",
			ErrGeometry, raw.Name, raw.Geometry.GeoJSONType())
	}
}

func normalizeOuterRing(poly orb.Polygon, transform PointTransform) (orb.Ring, error) {
	if len(poly) == 0 {
		return nil, fmt.Errorf("%w: polygon has no rings", ErrGeometry)
	}
	outer := poly[0]

	if distinctVertices(outer) < 3 {
		return nil, fmt.Errorf("%w: ring has fewer than 3 distinct vertices", ErrGeometry)
	}

	ring := make(orb.Ring, 0, len(outer))
	for _, pt := range outer {
		if !finite(pt[0]) || !finite(pt[1]) {
			return nil, fmt.Errorf("%w: non-finite coordinate (%g, %g)", ErrGeometry, pt[0], pt[1])
		}
		lon, lat, err := transform(pt[0], pt[1])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGeometry, err)
		}
		ring = append(ring, orb.Point{lon, lat})
	}
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return ring, nil
}

// distinctVertices counts unique vertices, ignoring the closing duplicate.
func distinctVertices(ring orb.Ring) int {
	seen := make(map[orb.Point]struct{}, len(ring))
	for _, pt := range ring {
		seen[pt] = struct{}{}
	}
	return len(seen)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
