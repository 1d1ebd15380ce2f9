// Package region implements the extract containment predicate: does a
// given lon/lat fall inside a bounding box or an arbitrary polygon.
package region

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Region answers whether a point lies inside an extract's area.
type Region interface {
	Contains(lon, lat float64) bool
}

// BBox is a closed bounding box, both edges inclusive: a point is inside iff
// MinLon <= lon <= MaxLon && MinLat <= lat <= MaxLat.
type BBox struct {
	MinLon, MinLat, MaxLon, MaxLat float64
}

// NewBBox validates and returns a BBox region.
func NewBBox(minLon, minLat, maxLon, maxLat float64) (*BBox, error) {
	if minLon > maxLon {
		return nil, fmt.Errorf("bbox: minlon (%f) must be <= maxlon (%f)", minLon, maxLon)
	}
	if minLat > maxLat {
		return nil, fmt.Errorf("bbox: minlat (%f) must be <= maxlat (%f)", minLat, maxLat)
	}
	return &BBox{MinLon: minLon, MinLat: minLat, MaxLon: maxLon, MaxLat: maxLat}, nil
}

// Contains implements Region.
func (b *BBox) Contains(lon, lat float64) bool {
	return lon >= b.MinLon && lon <= b.MaxLon && lat >= b.MinLat && lat <= b.MaxLat
}

// polyRing is one ring of a polygon plus its precomputed bound, so a
// point can be rejected cheaply before the crossing test runs.
type polyRing struct {
	ring  orb.Ring
	bound orb.Bound
}

// Polygon answers containment against an orb.MultiPolygon using
// point-in-polygon crossing counts. A point exactly on a ring edge is
// treated as inside, and that choice is applied consistently by every
// call — required because a pass-framework strategy must not change
// its mind about the same coordinate between passes.
type Polygon struct {
	polygons []orb.Polygon
	bounds   []orb.Bound
}

// NewPolygon constructs a Polygon region from a multi-polygon, indexing
// each polygon's outer bound once up front.
func NewPolygon(mp orb.MultiPolygon) (*Polygon, error) {
	if len(mp) == 0 {
		return nil, fmt.Errorf("polygon region: multi-polygon has no rings")
	}
	p := &Polygon{
		polygons: mp,
		bounds:   make([]orb.Bound, len(mp)),
	}
	for i, poly := range mp {
		p.bounds[i] = poly.Bound()
	}
	return p, nil
}

// Contains implements Region. A point is inside the multi-polygon if
// it falls inside any one of its constituent polygons (outer ring
// minus holes, per orb/planar's convention).
func (p *Polygon) Contains(lon, lat float64) bool {
	pt := orb.Point{lon, lat}
	for i, poly := range p.polygons {
		if !p.bounds[i].Contains(pt) {
			continue
		}
		if planar.PolygonContains(poly, pt) {
			return true
		}
	}
	return false
}
