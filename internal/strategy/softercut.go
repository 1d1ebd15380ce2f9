package strategy

import (
	"fmt"

	"github.com/wegman-software/osm-splitter/internal/bitset"
	"github.com/wegman-software/osm-splitter/internal/extract"
	"github.com/wegman-software/osm-splitter/internal/osmdata"
	"github.com/wegman-software/osm-splitter/internal/pass"
)

// softercutExtract is one extract's Softercut tracker state. The
// inside/outside split on nodes and ways records, separately, what
// fell inside the region directly versus what was pulled in only
// because it's referenced by something that did.
type softercutExtract struct {
	*extract.Extract
	insideNodeTracker  *bitset.Tracker
	outsideNodeTracker *bitset.Tracker
	insideWayTracker   *bitset.Tracker
	outsideWayTracker  *bitset.Tracker
	relationTracker    *bitset.Tracker
}

// Softercut is the three-pass, way- and relation-member-complete
// strategy: pass 1 seeds every tracker directly from region containment
// and reference, pass 2 closes the ways that were pulled in only
// because a relation referenced them (their nodes haven't been
// collected yet), pass 3 emits.
type Softercut struct {
	errHolder
	extracts []*softercutExtract
}

// NewSoftercut builds a Softercut strategy over the given extracts.
func NewSoftercut(exs []*extract.Extract) *Softercut {
	states := make([]*softercutExtract, len(exs))
	for i, e := range exs {
		states[i] = &softercutExtract{
			Extract:            e,
			insideNodeTracker:  bitset.New(),
			outsideNodeTracker: bitset.New(),
			insideWayTracker:   bitset.New(),
			outsideWayTracker:  bitset.New(),
			relationTracker:    bitset.New(),
		}
	}
	return &Softercut{extracts: states}
}

func (s *Softercut) Passes() []pass.Pass {
	return []pass.Pass{
		&softercutPass1{s: s},
		&softercutPass2{s: s},
		&softercutPass3{s: s},
	}
}

// Segments reports allocated bitset segments across every tracker this
// strategy owns.
func (s *Softercut) Segments() int {
	n := 0
	for _, e := range s.extracts {
		n += e.insideNodeTracker.Segments() + e.outsideNodeTracker.Segments() +
			e.insideWayTracker.Segments() + e.outsideWayTracker.Segments() +
			e.relationTracker.Segments()
	}
	return n
}

type softercutPass1 struct {
	pass.BasePass
	s *Softercut
}

func (p *softercutPass1) Node(n *osmdata.Node) {
	if !checkID(n.ID) {
		return
	}
	for _, e := range p.s.extracts {
		if e.Contains(n.Lon, n.Lat) {
			e.insideNodeTracker.Set(n.ID)
		}
	}
}

func (p *softercutPass1) Way(w *osmdata.Way) {
	if !checkID(w.ID) {
		return
	}
	for _, e := range p.s.extracts {
		hit := false
		outside := make([]int64, 0, len(w.Nodes))
		for _, ref := range w.Nodes {
			if e.insideNodeTracker.Get(ref) {
				hit = true
			} else {
				outside = append(outside, ref)
			}
		}
		if !hit {
			continue
		}
		e.insideWayTracker.Set(w.ID)
		for _, ref := range outside {
			e.outsideNodeTracker.Set(ref)
		}
	}
}

func (p *softercutPass1) Relation(r *osmdata.Relation) {
	if !checkID(r.ID) {
		return
	}
	for _, e := range p.s.extracts {
		hit := false
		outside := make([]osmdata.Member, 0, len(r.Members))
		for _, m := range r.Members {
			switch {
			case m.Type == osmdata.MemberNode && e.insideNodeTracker.Get(m.Ref):
				hit = true
			case m.Type == osmdata.MemberWay && e.insideWayTracker.Get(m.Ref):
				hit = true
			case m.Type == osmdata.MemberNode || m.Type == osmdata.MemberWay:
				outside = append(outside, m)
			}
		}
		if !hit {
			continue
		}
		e.relationTracker.Set(r.ID)
		for _, m := range outside {
			if m.Type == osmdata.MemberNode {
				e.outsideNodeTracker.Set(m.Ref)
			} else {
				e.outsideWayTracker.Set(m.Ref)
			}
		}
	}
}

type softercutPass2 struct {
	pass.BasePass
	s *Softercut
}

func (p *softercutPass2) Way(w *osmdata.Way) {
	for _, e := range p.s.extracts {
		if !e.outsideWayTracker.Get(w.ID) {
			continue
		}
		for _, ref := range w.Nodes {
			e.outsideNodeTracker.Set(ref)
		}
	}
}

type softercutPass3 struct {
	pass.BasePass
	s *Softercut
}

func (p *softercutPass3) Node(n *osmdata.Node) {
	for i, e := range p.s.extracts {
		if !e.insideNodeTracker.Get(n.ID) && !e.outsideNodeTracker.Get(n.ID) {
			continue
		}
		if err := e.Sink.WriteNode(n); err != nil {
			p.s.set(fmt.Errorf("extract %s: %w", e.Name, err))
			return
		}
		traceObject("node", n.ID, n.Version, i, e.Name)
	}
}

func (p *softercutPass3) Way(w *osmdata.Way) {
	for i, e := range p.s.extracts {
		if !e.insideWayTracker.Get(w.ID) && !e.outsideWayTracker.Get(w.ID) {
			continue
		}
		if err := e.Sink.WriteWay(w); err != nil {
			p.s.set(fmt.Errorf("extract %s: %w", e.Name, err))
			return
		}
		traceObject("way", w.ID, w.Version, i, e.Name)
	}
}

func (p *softercutPass3) Relation(r *osmdata.Relation) {
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
