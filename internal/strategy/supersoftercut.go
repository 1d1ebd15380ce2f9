package strategy

import (
	"fmt"

	"github.com/wegman-software/osm-splitter/internal/bitset"
	"github.com/wegman-software/osm-splitter/internal/extract"
	"github.com/wegman-software/osm-splitter/internal/osmdata"
	"github.com/wegman-software/osm-splitter/internal/pass"
)

// supersoftercutExtract mirrors softercutExtract's tracker set; kept as
// its own type rather than reused because SuperSoftercut's pass 2 grows
// a cascade the plain Softercut pass 2 has no use for.
type supersoftercutExtract struct {
	*extract.Extract
	insideNodeTracker  *bitset.Tracker
	outsideNodeTracker *bitset.Tracker
	insideWayTracker   *bitset.Tracker
	outsideWayTracker  *bitset.Tracker
	relationTracker    *bitset.Tracker
}

// SuperSoftercut is Softercut plus a relation-to-relation cascade: pass
// 1 and pass 3 are identical to Softercut's; pass 2 additionally walks
// relations and, on top of closing outside ways into outside nodes,
// propagates relation_tracker membership through relation-typed members
// via a back-edge multimap.
type SuperSoftercut struct {
	errHolder
	extracts           []*supersoftercutExtract
	cascadingRelations map[int64][]int64
}

// NewSuperSoftercut builds a SuperSoftercut strategy over the given extracts.
func NewSuperSoftercut(exs []*extract.Extract) *SuperSoftercut {
	states := make([]*supersoftercutExtract, len(exs))
	for i, e := range exs {
		states[i] = &supersoftercutExtract{
			Extract:            e,
			insideNodeTracker:  bitset.New(),
			outsideNodeTracker: bitset.New(),
			insideWayTracker:   bitset.New(),
			outsideWayTracker:  bitset.New(),
			relationTracker:    bitset.New(),
		}
	}
	return &SuperSoftercut{
		extracts:           states,
		cascadingRelations: make(map[int64][]int64),
	}
}

func (s *SuperSoftercut) Passes() []pass.Pass {
	return []pass.Pass{
		&supersoftercutPass1{s: s},
		&supersoftercutPass2{s: s},
		&supersoftercutPass3{s: s},
	}
}

// Segments reports allocated bitset segments across every tracker this
// strategy owns.
func (s *SuperSoftercut) Segments() int {
	n := 0
	for _, e := range s.extracts {
		n += e.insideNodeTracker.Segments() + e.outsideNodeTracker.Segments() +
			e.insideWayTracker.Segments() + e.outsideWayTracker.Segments() +
			e.relationTracker.Segments()
	}
	return n
}

type supersoftercutPass1 struct {
	pass.BasePass
	s *SuperSoftercut
}

func (p *supersoftercutPass1) Node(n *osmdata.Node) {
	if !checkID(n.ID) {
		return
	}
	for _, e := range p.s.extracts {
		if e.Contains(n.Lon, n.Lat) {
			e.insideNodeTracker.Set(n.ID)
		}
	}
}

func (p *supersoftercutPass1) Way(w *osmdata.Way) {
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

func (p *supersoftercutPass1) Relation(r *osmdata.Relation) {
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

type supersoftercutPass2 struct {
	pass.BasePass
	s *SuperSoftercut
}

func (p *supersoftercutPass2) Way(w *osmdata.Way) {
	for _, e := range p.s.extracts {
		if !e.outsideWayTracker.Get(w.ID) {
			continue
		}
		for _, ref := range w.Nodes {
			e.outsideNodeTracker.Set(ref)
		}
	}
}

// Relation records the member-id relation-id back-edge for every
// relation-typed member, and cascades inclusion the moment a member
// already tracked is found — matching the reference's early-break,
// which means a relation-typed member past that point in the same
// relation only gets its back-edge recorded on a later extract's pass
// (or not at all, if every extract breaks before reaching it).
func (p *supersoftercutPass2) Relation(r *osmdata.Relation) {
	if !checkID(r.ID) {
		return
	}
	for _, e := range p.s.extracts {
		hit := false
		for _, m := range r.Members {
			if m.Type != osmdata.MemberRelation {
				continue
			}
			p.s.cascadingRelations[m.Ref] = append(p.s.cascadingRelations[m.Ref], r.ID)
			if e.relationTracker.Get(m.Ref) {
				hit = true
				break
			}
		}
		if hit {
			e.relationTracker.Set(r.ID)
			p.cascade(e, r.ID)
		}
	}
}

// cascade walks the back-edge multimap with a worklist, same approach
// as Softcut's, to avoid recursion depth tied to input data.
func (p *supersoftercutPass2) cascade(e *supersoftercutExtract, id int64) {
	worklist := []int64{id}
	for len(worklist) > 0 {
		cur := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		for _, next := range p.s.cascadingRelations[cur] {
			if e.relationTracker.Get(next) {
				continue
			}
			e.relationTracker.Set(next)
			worklist = append(worklist, next)
		}
	}
}

type supersoftercutPass3 struct {
	pass.BasePass
	s *SuperSoftercut
}

func (p *supersoftercutPass3) Node(n *osmdata.Node) {
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

func (p *supersoftercutPass3) Way(w *osmdata.Way) {
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

func (p *supersoftercutPass3) Relation(r *osmdata.Relation) {
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
