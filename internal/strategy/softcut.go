package strategy

import (
	"fmt"

	"github.com/wegman-software/osm-splitter/internal/bitset"
	"github.com/wegman-software/osm-splitter/internal/extract"
	"github.com/wegman-software/osm-splitter/internal/osmdata"
	"github.com/wegman-software/osm-splitter/internal/pass"
)

// softcutExtract is one extract's Softcut tracker state. extraNodeTracker
// holds nodes that belong to an included way but fell outside the
// extract's region themselves — the thing that makes Softcut's ways
// reference-complete where Simplecut's aren't.
type softcutExtract struct {
	*extract.Extract
	nodeTracker      *bitset.Tracker
	extraNodeTracker *bitset.Tracker
	wayTracker       *bitset.Tracker
	relationTracker  *bitset.Tracker
}

// Softcut is the two-pass, way-reference-complete strategy. A relation
// is included as soon as one of its members is; inclusion then cascades
// to every relation that in turn references that relation, however deep
// the chain, via cascadingRelations — a back-edge multimap built as
// relations are visited, since a relation can only reference an earlier
// or equal id's relation in practice but the cascade is resolved
// regardless of visit order.
type Softcut struct {
	errHolder
	extracts           []*softcutExtract
	cascadingRelations map[int64][]int64
}

// NewSoftcut builds a Softcut strategy over the given extracts.
func NewSoftcut(exs []*extract.Extract) *Softcut {
	states := make([]*softcutExtract, len(exs))
	for i, e := range exs {
		states[i] = &softcutExtract{
			Extract:          e,
			nodeTracker:      bitset.New(),
			extraNodeTracker: bitset.New(),
			wayTracker:       bitset.New(),
			relationTracker:  bitset.New(),
		}
	}
	return &Softcut{
		extracts:           states,
		cascadingRelations: make(map[int64][]int64),
	}
}

func (s *Softcut) Passes() []pass.Pass {
	return []pass.Pass{
		&softcutPass1{s: s},
		&softcutPass2{s: s},
	}
}

// Segments reports allocated bitset segments across every tracker this
// strategy owns.
func (s *Softcut) Segments() int {
	n := 0
	for _, e := range s.extracts {
		n += e.nodeTracker.Segments() + e.extraNodeTracker.Segments() +
			e.wayTracker.Segments() + e.relationTracker.Segments()
	}
	return n
}

// softcutPass1 relies on ways arriving grouped by id with consecutive
// versions: currentWayNodes accumulates every node ref seen across all
// versions of the way currently being walked, and is only folded into
// an extract's extraNodeTracker once the way's id changes (or the
// stream ends), at which point we know which versions of the way the
// extract decided to keep.
type softcutPass1 struct {
	pass.BasePass
	s *Softcut

	currentWayID    int64
	currentWayNodes []int64
}

func (p *softcutPass1) Node(n *osmdata.Node) {
	if !checkID(n.ID) {
		return
	}
	for _, e := range p.s.extracts {
		if e.Contains(n.Lon, n.Lat) {
			e.nodeTracker.Set(n.ID)
		}
	}
}

func (p *softcutPass1) Way(w *osmdata.Way) {
	if !checkID(w.ID) {
		return
	}
	if p.currentWayID != 0 && p.currentWayID != w.ID {
		p.flushWayExtraNodes()
		p.currentWayNodes = p.currentWayNodes[:0]
	}
	p.currentWayID = w.ID
	p.currentWayNodes = append(p.currentWayNodes, w.Nodes...)

	for _, e := range p.s.extracts {
		for _, ref := range w.Nodes {
			if e.nodeTracker.Get(ref) {
				e.wayTracker.Set(w.ID)
				break
			}
		}
	}
}

func (p *softcutPass1) AfterWays() {
	p.flushWayExtraNodes()
}

// flushWayExtraNodes folds currentWayNodes into extraNodeTracker for
// every extract that decided to keep the way currently being walked.
func (p *softcutPass1) flushWayExtraNodes() {
	for _, e := range p.s.extracts {
		if !e.wayTracker.Get(p.currentWayID) {
			continue
		}
		for _, ref := range p.currentWayNodes {
			e.extraNodeTracker.Set(ref)
		}
	}
}

func (p *softcutPass1) Relation(r *osmdata.Relation) {
	if !checkID(r.ID) {
		return
	}
	for _, e := range p.s.extracts {
		hit := false
		for _, m := range r.Members {
			if !hit && softcutMemberHit(e, m) {
				hit = true
				e.relationTracker.Set(r.ID)
			}
			if m.Type == osmdata.MemberRelation {
				p.s.cascadingRelations[m.Ref] = append(p.s.cascadingRelations[m.Ref], r.ID)
			}
		}
		if hit {
			p.cascade(e, r.ID)
		}
	}
}

// softcutMemberHit reports whether a relation member's referent is
// already present in the matching tracker for e.
func softcutMemberHit(e *softcutExtract, m osmdata.Member) bool {
	switch m.Type {
	case osmdata.MemberNode:
		return e.nodeTracker.Get(m.Ref)
	case osmdata.MemberWay:
		return e.wayTracker.Get(m.Ref)
	case osmdata.MemberRelation:
		return e.relationTracker.Get(m.Ref)
	default:
		return false
	}
}

// cascade propagates relation inclusion along the back-edge multimap
// built so far: every relation that references id is pulled in too,
// and so on transitively. A worklist is used instead of recursion so a
// long reference chain can't blow the stack.
func (p *softcutPass1) cascade(e *softcutExtract, id int64) {
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

type softcutPass2 struct {
	pass.BasePass
	s *Softcut
}

func (p *softcutPass2) Node(n *osmdata.Node) {
	for i, e := range p.s.extracts {
		if !e.nodeTracker.Get(n.ID) && !e.extraNodeTracker.Get(n.ID) {
			continue
		}
		if err := e.Sink.WriteNode(n); err != nil {
			p.s.set(fmt.Errorf("extract %s: %w", e.Name, err))
			return
		}
		traceObject("node", n.ID, n.Version, i, e.Name)
	}
}

func (p *softcutPass2) Way(w *osmdata.Way) {
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

func (p *softcutPass2) Relation(r *osmdata.Relation) {
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
