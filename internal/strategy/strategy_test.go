package strategy

import (
	"testing"

	"github.com/wegman-software/osm-splitter/internal/extract"
	"github.com/wegman-software/osm-splitter/internal/osmdata"
	"github.com/wegman-software/osm-splitter/internal/pass"
	"github.com/wegman-software/osm-splitter/internal/region"
)

// memSink records every object written to it, in order, without
// touching the filesystem — strategies never exercise the Go toolchain
// in these tests, only the trackers and the pass logic around them.
type memSink struct {
	nodes     []*osmdata.Node
	ways      []*osmdata.Way
	relations []*osmdata.Relation
}

func (s *memSink) WriteNode(n *osmdata.Node) error        { s.nodes = append(s.nodes, n); return nil }
func (s *memSink) WriteWay(w *osmdata.Way) error          { s.ways = append(s.ways, w); return nil }
func (s *memSink) WriteRelation(r *osmdata.Relation) error { s.relations = append(s.relations, r); return nil }
func (s *memSink) Close() error                           { return nil }

func (s *memSink) wayIDs() []int64 {
	ids := make([]int64, len(s.ways))
	for i, w := range s.ways {
		ids[i] = w.ID
	}
	return ids
}

func (s *memSink) nodeIDs() []int64 {
	ids := make([]int64, len(s.nodes))
	for i, n := range s.nodes {
		ids[i] = n.ID
	}
	return ids
}

func (s *memSink) relationIDs() []int64 {
	ids := make([]int64, len(s.relations))
	for i, r := range s.relations {
		ids[i] = r.ID
	}
	return ids
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// newTestExtract builds an Extract backed by a memSink and a bbox
// region, bypassing extract.New so no file is opened.
func newTestExtract(t *testing.T, name string, minLon, minLat, maxLon, maxLat float64) (*extract.Extract, *memSink) {
	t.Helper()
	bbox, err := region.NewBBox(minLon, minLat, maxLon, maxLat)
	if err != nil {
		t.Fatalf("NewBBox: %v", err)
	}
	sink := &memSink{}
	return &extract.Extract{
		Name:   name,
		Region: bbox,
		Sink:   sink,
	}, sink
}

// runPasses drives every pass of a strategy directly against a fixed
// set of nodes/ways/relations, firing the phase-transition hooks in the
// canonical OSM stream order — a hand-rolled stand-in for pass.Driver
// since these tests have no real OSM file to read.
func runPasses(s Strategy, nodes []*osmdata.Node, ways []*osmdata.Way, relations []*osmdata.Relation) {
	for _, p := range s.Passes() {
		runOnePass(p, nodes, ways, relations)
	}
}

func runOnePass(p pass.Pass, nodes []*osmdata.Node, ways []*osmdata.Way, relations []*osmdata.Relation) {
	for _, n := range nodes {
		p.Node(n)
	}
	p.AfterNodes()
	for _, w := range ways {
		p.Way(w)
	}
	p.AfterWays()
	for _, r := range relations {
		p.Relation(r)
	}
	p.AfterRelations()
	p.Final()
}

// S1 — Hardcut drops short ways.
func TestHardcutDropsShortWays(t *testing.T) {
	e, sink := newTestExtract(t, "e", 0, 0, 10, 10)
	h := NewHardcut([]*extract.Extract{e})

	nodes := []*osmdata.Node{
		{ID: 1, Lon: 1, Lat: 1},
		{ID: 2, Lon: 9, Lat: 9},
		{ID: 3, Lon: 20, Lat: 20},
	}
	ways := []*osmdata.Way{
		{ID: 1, Nodes: []int64{1, 2, 3}},
		{ID: 2, Nodes: []int64{1, 3}},
	}
	runPasses(h, nodes, ways, nil)

	if err := h.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !containsID(sink.nodeIDs(), 1) || !containsID(sink.nodeIDs(), 2) {
		t.Fatalf("expected n1, n2 written, got %v", sink.nodeIDs())
	}
	if containsID(sink.nodeIDs(), 3) {
		t.Fatalf("n3 should not be written, got %v", sink.nodeIDs())
	}
	if !containsID(sink.wayIDs(), 1) {
		t.Fatalf("expected w1 written, got %v", sink.wayIDs())
	}
	if containsID(sink.wayIDs(), 2) {
		t.Fatalf("w2 should be dropped (only one surviving node), got %v", sink.wayIDs())
	}
	for _, w := range sink.ways {
		if w.ID == 1 && (len(w.Nodes) != 2 || w.Nodes[0] != 1 || w.Nodes[1] != 2) {
			t.Fatalf("w1 should be rebuilt to [1,2], got %v", w.Nodes)
		}
	}
}

// Hardcut's rebuilt ways and relations carry the same metadata as
// their source versions, per spec §6.
func TestHardcutRebuildPreservesMeta(t *testing.T) {
	e, sink := newTestExtract(t, "e", 0, 0, 10, 10)
	h := NewHardcut([]*extract.Extract{e})

	meta := osmdata.Meta{Visible: true, UID: 42, Changeset: 99, User: "mapper"}
	nodes := []*osmdata.Node{
		{ID: 1, Lon: 1, Lat: 1, Meta: meta},
		{ID: 2, Lon: 2, Lat: 2, Meta: meta},
	}
	ways := []*osmdata.Way{{ID: 1, Nodes: []int64{1, 2}, Meta: meta}}
	relations := []*osmdata.Relation{
		{ID: 1, Members: []osmdata.Member{{Type: osmdata.MemberWay, Ref: 1}}, Meta: meta},
	}
	runPasses(h, nodes, ways, relations)

	if err := h.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sink.ways) != 1 || sink.ways[0].Meta != meta {
		t.Fatalf("rebuilt way Meta = %+v, want %+v", sink.ways[0].Meta, meta)
	}
	if len(sink.relations) != 1 || sink.relations[0].Meta != meta {
		t.Fatalf("rebuilt relation Meta = %+v, want %+v", sink.relations[0].Meta, meta)
	}
}

// S2 — Simplecut includes all versions of a tracked id, but not the
// extra nodes a tracked way happens to reference.
func TestSimplecutTracksWholeObjectNotExtraNodes(t *testing.T) {
	e, sink := newTestExtract(t, "e", 0, 0, 10, 10)
	s := NewSimplecut([]*extract.Extract{e})

	n1v1 := &osmdata.Node{ID: 1, Version: 1, Lon: 20, Lat: 20}
	n1v2 := &osmdata.Node{ID: 1, Version: 2, Lon: 1, Lat: 1}
	n2 := &osmdata.Node{ID: 2, Version: 1, Lon: 20, Lat: 20}
	way := &osmdata.Way{ID: 10, Nodes: []int64{1, 2}}

	runPasses(s, []*osmdata.Node{n1v1, n1v2, n2}, []*osmdata.Way{way}, nil)

	if err := s.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var n1Versions int
	for _, n := range sink.nodes {
		if n.ID == 1 {
			n1Versions++
		}
	}
	if n1Versions != 2 {
		t.Fatalf("expected both versions of n1 written, got %d", n1Versions)
	}
	if !containsID(sink.wayIDs(), 10) {
		t.Fatalf("expected way 10 written, got %v", sink.wayIDs())
	}
	if containsID(sink.nodeIDs(), 2) {
		t.Fatalf("n2 lies outside the box and is only reached via the way — Simplecut must not write it, got %v", sink.nodeIDs())
	}
}

// S3 — Softcut closes ways: every node a kept way references is
// written, even nodes that never themselves fell inside the region.
func TestSoftcutClosesWays(t *testing.T) {
	e, sink := newTestExtract(t, "e", 0, 0, 10, 10)
	s := NewSoftcut([]*extract.Extract{e})

	n1 := &osmdata.Node{ID: 1, Lon: 1, Lat: 1}
	n2 := &osmdata.Node{ID: 2, Lon: 20, Lat: 20}
	n3 := &osmdata.Node{ID: 3, Lon: 20, Lat: 20}
	wayV1 := &osmdata.Way{ID: 100, Version: 1, Nodes: []int64{1, 2, 3}}
	wayV2 := &osmdata.Way{ID: 100, Version: 2, Nodes: []int64{1, 2, 3}}

	runPasses(s, []*osmdata.Node{n1, n2, n3}, []*osmdata.Way{wayV1, wayV2}, nil)

	if err := s.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var wayVersions int
	for _, w := range sink.ways {
		if w.ID == 100 {
			wayVersions++
		}
	}
	if wayVersions != 2 {
		t.Fatalf("expected both versions of way 100 written, got %d", wayVersions)
	}
	for _, id := range []int64{1, 2, 3} {
		if !containsID(sink.nodeIDs(), id) {
			t.Fatalf("expected node %d written (reference closure), got %v", id, sink.nodeIDs())
		}
	}
}

// S4 — Softcut cascades relation inclusion through a reference chain
// of arbitrary depth.
func TestSoftcutCascadesRelations(t *testing.T) {
	e, sink := newTestExtract(t, "e", 0, 0, 10, 10)
	s := NewSoftcut([]*extract.Extract{e})

	n1 := &osmdata.Node{ID: 1, Lon: 1, Lat: 1}
	way := &osmdata.Way{ID: 10, Nodes: []int64{1}}
	r1 := &osmdata.Relation{ID: 100, Members: []osmdata.Member{{Type: osmdata.MemberWay, Ref: 10}}}
	r2 := &osmdata.Relation{ID: 200, Members: []osmdata.Member{{Type: osmdata.MemberRelation, Ref: 100}}}
	r3 := &osmdata.Relation{ID: 300, Members: []osmdata.Member{{Type: osmdata.MemberRelation, Ref: 200}}}

	runPasses(s, []*osmdata.Node{n1}, []*osmdata.Way{way}, []*osmdata.Relation{r1, r2, r3})

	if err := s.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, id := range []int64{100, 200, 300} {
		if !containsID(sink.relationIDs(), id) {
			t.Fatalf("expected relation %d emitted via cascade, got %v", id, sink.relationIDs())
		}
	}
}

// S5 — Cut_administrative pulls in a boundary relation's way members
// and their nodes, leaving unrelated relations out.
func TestCutAdministrativeClosesWaysAndNodes(t *testing.T) {
	e, sink := newTestExtract(t, "e", 0, 0, 10, 10)
	c := NewCutAdministrative([]*extract.Extract{e})

	n1 := &osmdata.Node{ID: 1}
	n2 := &osmdata.Node{ID: 2}
	n3 := &osmdata.Node{ID: 3}
	w1 := &osmdata.Way{ID: 1, Nodes: []int64{1, 2}}
	w2 := &osmdata.Way{ID: 2, Nodes: []int64{2, 3}}
	r := &osmdata.Relation{
		ID:      1,
		Tags:    osmdata.Tags{{Key: "boundary", Value: "administrative"}},
		Members: []osmdata.Member{{Type: osmdata.MemberWay, Ref: 1}, {Type: osmdata.MemberWay, Ref: 2}},
	}
	unrelated := &osmdata.Relation{ID: 2, Tags: osmdata.Tags{{Key: "type", Value: "multipolygon"}}}

	runPasses(c, []*osmdata.Node{n1, n2, n3}, []*osmdata.Way{w1, w2}, []*osmdata.Relation{r, unrelated})

	if err := c.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !containsID(sink.relationIDs(), 1) {
		t.Fatalf("expected relation 1 emitted, got %v", sink.relationIDs())
	}
	if containsID(sink.relationIDs(), 2) {
		t.Fatalf("unrelated relation 2 should not be emitted, got %v", sink.relationIDs())
	}
	for _, id := range []int64{1, 2} {
		if !containsID(sink.wayIDs(), id) {
			t.Fatalf("expected way %d emitted, got %v", id, sink.wayIDs())
		}
	}
	for _, id := range []int64{1, 2, 3} {
		if !containsID(sink.nodeIDs(), id) {
			t.Fatalf("expected node %d emitted, got %v", id, sink.nodeIDs())
		}
	}
}

// S6 — Cut_ref accepts the documented ref-family keys, including the
// leading-space " int_ref" typo, but not unrelated keys.
func TestCutRefKeyVariants(t *testing.T) {
	e, sink := newTestExtract(t, "e", 0, 0, 10, 10)
	c := NewCutRef([]*extract.Extract{e}, true)

	ways := []*osmdata.Way{
		{ID: 1, Nodes: []int64{1, 2}, Tags: osmdata.Tags{{Key: "ref", Value: "A1"}}},
		{ID: 2, Nodes: []int64{1, 2}, Tags: osmdata.Tags{{Key: " int_ref", Value: "X"}}},
		{ID: 3, Nodes: []int64{1, 2}, Tags: osmdata.Tags{{Key: "name", Value: "Main Street"}}},
	}
	nodes := []*osmdata.Node{{ID: 1}, {ID: 2}}

	runPasses(c, nodes, ways, nil)

	if err := c.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !containsID(sink.wayIDs(), 1) {
		t.Fatalf("expected way 1 (ref) emitted, got %v", sink.wayIDs())
	}
	if !containsID(sink.wayIDs(), 2) {
		t.Fatalf("expected way 2 (legacy \" int_ref\" typo) emitted, got %v", sink.wayIDs())
	}
	if containsID(sink.wayIDs(), 3) {
		t.Fatalf("way 3 (name only) should not be emitted, got %v", sink.wayIDs())
	}
}

func TestCutRefWithoutLegacyTypo(t *testing.T) {
	e, _ := newTestExtract(t, "e", 0, 0, 10, 10)
	c := NewCutRef([]*extract.Extract{e}, false)

	ways := []*osmdata.Way{
		{ID: 2, Nodes: []int64{1, 2}, Tags: osmdata.Tags{{Key: " int_ref", Value: "X"}}},
	}
	runPasses(c, nil, ways, nil)

	if err := c.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, e := range c.extracts {
		if e.wayTracker.Get(2) {
			t.Fatalf("legacy typo key must not match when disabled")
		}
	}
}

// Invariant: negative object ids are rejected outright, across
// strategies, rather than given undefined modulo behavior.
func TestNegativeIDsRejected(t *testing.T) {
	e, sink := newTestExtract(t, "e", -10, -10, 10, 10)
	h := NewHardcut([]*extract.Extract{e})

	runPasses(h, []*osmdata.Node{{ID: -1, Lon: 0, Lat: 0}}, nil, nil)

	if err := h.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sink.nodes) != 0 {
		t.Fatalf("negative id node must not be written, got %v", sink.nodeIDs())
	}
}

// Invariant: Cut_all_borders' hardcoded whitelist only fires if the
// relation carries at least one tag — a preserved source quirk.
func TestCutAllBordersWhitelistRequiresATag(t *testing.T) {
	e, sinkNoTags := newTestExtract(t, "e", 0, 0, 10, 10)
	c := NewCutAllBorders([]*extract.Extract{e})
	runPasses(c, nil, nil, []*osmdata.Relation{{ID: 2186646}})
	if err := c.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if containsID(sinkNoTags.relationIDs(), 2186646) {
		t.Fatalf("whitelisted relation with no tags must not match (preserved quirk)")
	}

	e2, sinkWithTag := newTestExtract(t, "e2", 0, 0, 10, 10)
	c2 := NewCutAllBorders([]*extract.Extract{e2})
	runPasses(c2, nil, nil, []*osmdata.Relation{{ID: 2186646, Tags: osmdata.Tags{{Key: "name", Value: "x"}}}})
	if err := c2.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !containsID(sinkWithTag.relationIDs(), 2186646) {
		t.Fatalf("whitelisted relation with at least one tag must match")
	}
}
