// Package osmgeom builds an orb.MultiPolygon from a boundary or
// multipolygon relation inside an arbitrary OSM file, for OSM-kind
// extract regions (spec's external "polygon reader" collaborator,
// given a concrete implementation here since the configuration loader
// still has to resolve an OSM-kind line into something that answers
// Contains).
package osmgeom

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/wegman-software/osm-splitter/internal/osmdata"
	"github.com/wegman-software/osm-splitter/internal/pass"
)

// FromFile reads path once and assembles the multi-polygon formed by
// its boundary/multipolygon relations. If the file carries no such
// relation but contains exactly one closed way, that way's ring is
// used directly — geometry files built by hand sometimes skip the
// relation wrapper entirely.
func FromFile(path string) (orb.MultiPolygon, error) {
	collector := &geomPass{
		nodeCoord: make(map[int64]orb.Point),
		wayNodes:  make(map[int64][]int64),
	}
	if err := pass.NewDriver(path).Run(collector); err != nil {
		return nil, fmt.Errorf("osmgeom: %w", err)
	}

	for _, r := range collector.relations {
		if !isBoundaryRelation(r) {
			continue
		}
		mp, err := buildFromRelation(r, collector.nodeCoord, collector.wayNodes)
		if err != nil {
			continue
		}
		if len(mp) > 0 {
			return mp, nil
		}
	}

	if len(collector.ways) == 1 {
		w := collector.ways[0]
		if len(w.Nodes) == 0 || w.Nodes[0] != w.Nodes[len(w.Nodes)-1] {
			return nil, fmt.Errorf("osmgeom: no boundary relation or single closed way found in %s", path)
		}
		ring, ok := ringFromWay(w.Nodes, collector.nodeCoord)
		if ok {
			return orb.MultiPolygon{orb.Polygon{ring}}, nil
		}
	}

	return nil, fmt.Errorf("osmgeom: no boundary relation or single closed way found in %s", path)
}

type geomPass struct {
	pass.BasePass
	nodeCoord map[int64]orb.Point
	wayNodes  map[int64][]int64
	ways      []*osmdata.Way
	relations []*osmdata.Relation
}

func (g *geomPass) Node(n *osmdata.Node) {
	g.nodeCoord[n.ID] = orb.Point{n.Lon, n.Lat}
}

func (g *geomPass) Way(w *osmdata.Way) {
	g.wayNodes[w.ID] = w.Nodes
	g.ways = append(g.ways, w)
}

func (g *geomPass) Relation(r *osmdata.Relation) {
	g.relations = append(g.relations, r)
}

func isBoundaryRelation(r *osmdata.Relation) bool {
	if v, ok := r.Tags.Value("type"); ok && v == "multipolygon" {
		return true
	}
	_, ok := r.Tags.Value("boundary")
	return ok
}

// buildFromRelation splits a relation's way members into outer and
// inner chains by role (every role other than "inner", including no
// role, counts as outer), stitches each set into closed rings by
// matching node-id endpoints, and nests an inner ring inside the first
// outer ring whose bound and ring both contain the inner ring's first
// point, or inside the first outer polygon if none does.
func buildFromRelation(r *osmdata.Relation, nodeCoord map[int64]orb.Point, wayNodes map[int64][]int64) (orb.MultiPolygon, error) {
	var outerChains, innerChains [][]int64
	for _, m := range r.Members {
		if m.Type != osmdata.MemberWay {
			continue
		}
		nodes, ok := wayNodes[m.Ref]
		if !ok {
			continue
		}
		if m.Role == "inner" {
			innerChains = append(innerChains, nodes)
		} else {
			outerChains = append(outerChains, nodes)
		}
	}

	outerRings, err := stitchRings(outerChains, nodeCoord)
	if err != nil {
		return nil, fmt.Errorf("outer rings: %w", err)
	}
	if len(outerRings) == 0 {
		return nil, fmt.Errorf("no outer rings")
	}

	polygons := make([]orb.Polygon, len(outerRings))
	bounds := make([]orb.Bound, len(outerRings))
	for i, ring := range outerRings {
		polygons[i] = orb.Polygon{ring}
		bounds[i] = polygons[i].Bound()
	}

	innerRings, err := stitchRings(innerChains, nodeCoord)
	if err != nil {
		return nil, fmt.Errorf("inner rings: %w", err)
	}
	for _, ring := range innerRings {
		owner := 0
		for i := range polygons {
			if bounds[i].Contains(ring[0]) && pointInRing(outerRings[i], ring[0]) {
				owner = i
				break
			}
		}
		polygons[owner] = append(polygons[owner], ring)
	}

	mp := make(orb.MultiPolygon, len(polygons))
	copy(mp, polygons)
	return mp, nil
}

// stitchRings chains node-id lists end-to-end by matching shared
// endpoint ids until each forms a closed loop, then resolves ids to
// coordinates. A chain that can't be closed is dropped rather than
// failing the whole build — a malformed ring in one relation shouldn't
// sink every other usable ring in the same file.
func stitchRings(chains [][]int64, nodeCoord map[int64]orb.Point) ([]orb.Ring, error) {
	remaining := make([][]int64, len(chains))
	copy(remaining, chains)

	var rings []orb.Ring
	for len(remaining) > 0 {
		chain := remaining[0]
		remaining = remaining[1:]

		for len(chain) > 0 && chain[0] != chain[len(chain)-1] {
			idx, reversed := findContinuation(chain[len(chain)-1], remaining)
			if idx < 0 {
				chain = nil
				break
			}
			next := remaining[idx]
			remaining = append(remaining[:idx], remaining[idx+1:]...)
			if reversed {
				next = reverseIDs(next)
			}
			chain = append(chain, next[1:]...)
		}
		if len(chain) < 4 {
			continue
		}

		ring, ok := ringFromWay(chain, nodeCoord)
		if !ok {
			continue
		}
		rings = append(rings, ring)
	}
	return rings, nil
}

// findContinuation looks for a chain in candidates starting or ending
// at tail, reporting whether it needs reversing to continue forward.
func findContinuation(tail int64, candidates [][]int64) (idx int, reversed bool) {
	for i, c := range candidates {
		if len(c) == 0 {
			continue
		}
		if c[0] == tail {
			return i, false
		}
		if c[len(c)-1] == tail {
			return i, true
		}
	}
	return -1, false
}

func reverseIDs(ids []int64) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[len(ids)-1-i] = id
	}
	return out
}

// pointInRing is a standard even-odd ray-casting point-in-polygon test
// over a single ring, used only to decide which outer ring an inner
// ring nests inside.
func pointInRing(ring orb.Ring, pt orb.Point) bool {
	inside := false
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > pt[1]) != (yj > pt[1]) &&
			pt[0] < (xj-xi)*(pt[1]-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// ringFromWay resolves a node-id chain to coordinates, closing it if
// the last id doesn't already match the first.
func ringFromWay(ids []int64, nodeCoord map[int64]orb.Point) (orb.Ring, bool) {
	if len(ids) < 3 {
		return nil, false
	}
	ring := make(orb.Ring, 0, len(ids)+1)
	for _, id := range ids {
		pt, ok := nodeCoord[id]
		if !ok {
			return nil, false
		}
		ring = append(ring, pt)
	}
	if ids[0] != ids[len(ids)-1] {
		ring = append(ring, ring[0])
	}
	return ring, true
}
