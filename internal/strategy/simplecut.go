package strategy

import (
	"fmt"

	"github.com/wegman-software/osm-splitter/internal/bitset"
	"github.com/wegman-software/osm-splitter/internal/extract"
	"github.com/wegman-software/osm-splitter/internal/osmdata"
	"github.com/wegman-software/osm-splitter/internal/pass"
)

// simplecutExtract tracks whole-object inclusion: an id's presence in
// a tracker means every version of that object is emitted in pass 2,
// regardless of which version triggered inclusion in pass 1.
type simplecutExtract struct {
	*extract.Extract
	nodeTracker     *bitset.Tracker
	wayTracker      *bitset.Tracker
	relationTracker *bitset.Tracker
}

// Simplecut is the two-pass strategy: pass 1 seeds trackers from
// region containment and reference, pass 2 emits every version of
// every tracked id unmodified. Ways are not reference-complete — a
// node outside the region used by an included way is never written.
type Simplecut struct {
	errHolder
	extracts []*simplecutExtract
}

// NewSimplecut builds a Simplecut strategy over the given extracts.
func NewSimplecut(exs []*extract.Extract) *Simplecut {
	states := make([]*simplecutExtract, len(exs))
	for i, e := range exs {
		states[i] = &simplecutExtract{
			Extract:         e,
			nodeTracker:     bitset.New(),
			wayTracker:      bitset.New(),
			relationTracker: bitset.New(),
		}
	}
	return &Simplecut{extracts: states}
}

func (s *Simplecut) Passes() []pass.Pass {
	return []pass.Pass{
		&simplecutPass1{s: s},
		&simplecutPass2{s: s},
	}
}

// Segments reports allocated bitset segments across every tracker this
// strategy owns.
func (s *Simplecut) Segments() int {
	n := 0
	for _, e := range s.extracts {
		n += e.nodeTracker.Segments() + e.wayTracker.Segments() + e.relationTracker.Segments()
	}
	return n
}

type simplecutPass1 struct {
	pass.BasePass
	s *Simplecut
}

func (p *simplecutPass1) Node(n *osmdata.Node) {
	if !checkID(n.ID) {
		return
	}
	for _, e := range p.s.extracts {
		if e.Contains(n.Lon, n.Lat) {
			e.nodeTracker.Set(n.ID)
		}
	}
}

func (p *simplecutPass1) Way(w *osmdata.Way) {
	if !checkID(w.ID) {
		return
	}
	for _, e := range p.s.extracts {
		for _, ref := range w.Nodes {
			if e.nodeTracker.Get(ref) {
				e.wayTracker.Set(w.ID)
				break
			}
		}
	}
}

func (p *simplecutPass1) Relation(r *osmdata.Relation) {
	if !checkID(r.ID) {
		return
	}
	for _, e := range p.s.extracts {
		for _, m := range r.Members {
			if memberTracked(e.nodeTracker, e.wayTracker, m) {
				e.relationTracker.Set(r.ID)
				break
			}
		}
	}
}

// memberTracked reports whether a relation member's referent is
// already present in the appropriate node or way tracker.
// Relation-typed members are never resolvable this way, since later
// relations haven't been tracked yet.
func memberTracked(nodeTracker, wayTracker *bitset.Tracker, m osmdata.Member) bool {
	switch m.Type {
	case osmdata.MemberNode:
		return nodeTracker.Get(m.Ref)
	case osmdata.MemberWay:
		return wayTracker.Get(m.Ref)
	default:
		return false
	}
}

type simplecutPass2 struct {
	pass.BasePass
	s *Simplecut
}

func (p *simplecutPass2) Node(n *osmdata.Node) {
	for i, e := range p.s.extracts {
		if !e.nodeTracker.Get(n.ID) {
			continue
		}
		if err := e.Sink.WriteNode(n); err != nil {
			p.s.set(fmt.Errorf("extract %s: %w", e.Name, err))
			return
		}
		traceObject("node", n.ID, n.Version, i, e.Name)
	}
}

func (p *simplecutPass2) Way(w *osmdata.Way) {
	for i, e := range p.s.extracts {
		if !e.wayTracker.Get(w.ID) {
			continue
		}
		if err := e.Sink.WriteWay(w); err != nil {
			p.s.set(fmt.Errorf("extract %s: %w", e.Name, err))
			return
		}
		traceObject("way", w.ID, w.Version, i, e.Name)
	}
}

func (p *simplecutPass2) Relation(r *osmdata.Relation) {
	for i, e := range p.s.extracts {
		if !e.relationTracker.Get(r.ID) {
			continue
		}
		if err := e.Sink.WriteRelation(r); err != nil {
			p.s.set(fmt.Errorf("extract %s: %w", e.Name, err))
			return
		}
		traceObject("relation", r.ID, r.Version, i, e.Name)
	}
}
