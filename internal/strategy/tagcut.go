package strategy

import (
	"fmt"

	"github.com/wegman-software/osm-splitter/internal/bitset"
	"github.com/wegman-software/osm-splitter/internal/extract"
	"github.com/wegman-software/osm-splitter/internal/osmdata"
	"github.com/wegman-software/osm-splitter/internal/pass"
	"github.com/wegman-software/osm-splitter/internal/predicate"
)

// TagPredicate parametrizes TagCut, the single strategy the five
// tag-selection variants (Cut_administrative, Cut_highway,
// Cut_all_borders, Cut_ref, Cut_water) collapse into. Region geometry
// plays no part in any of them — inclusion is driven entirely by tags.
type TagPredicate struct {
	Name string

	// WayMatches is checked directly against a way's own tags. Nil
	// means the strategy never examines a way's tags on its own
	// (Cut_administrative, Cut_all_borders — ways only enter through
	// a matching relation's membership).
	WayMatches predicate.Tags

	// RelationMatches decides whether a relation qualifies. It takes
	// the whole relation, not just its tags, because Cut_all_borders'
	// hardcoded id whitelist needs the id. Nil means the strategy
	// never walks relations at all (Cut_water).
	RelationMatches func(*osmdata.Relation) bool

	// WalkRelationWayMembers, when a relation qualifies, also marks
	// every way-typed member as included.
	WalkRelationWayMembers bool

	// SeedNodesFromWayInPass1 collects a matching way's own node refs
	// directly into the node tracker in pass 1, collapsing the usual
	// three-pass skeleton into two (Cut_water: no relation walk means
	// nothing else needs a separate node-seeding pass).
	SeedNodesFromWayInPass1 bool
}

type tagcutExtract struct {
	*extract.Extract
	nodeTracker     *bitset.Tracker
	wayTracker      *bitset.Tracker
	relationTracker *bitset.Tracker
}

// TagCut is the templated tag-selection strategy: pass 1 seeds way and
// relation trackers by predicate, an optional middle pass walks ways in
// way_tracker to seed the node tracker, and the final pass emits.
type TagCut struct {
	errHolder
	pred     TagPredicate
	extracts []*tagcutExtract
}

// NewTagCut builds a TagCut strategy over the given extracts, selecting
// objects by pred rather than by region.
func NewTagCut(pred TagPredicate, exs []*extract.Extract) *TagCut {
	states := make([]*tagcutExtract, len(exs))
	for i, e := range exs {
		states[i] = &tagcutExtract{
			Extract:         e,
			nodeTracker:     bitset.New(),
			wayTracker:      bitset.New(),
			relationTracker: bitset.New(),
		}
	}
	return &TagCut{pred: pred, extracts: states}
}

// Segments reports allocated bitset segments across every tracker this
// strategy owns.
func (t *TagCut) Segments() int {
	n := 0
	for _, e := range t.extracts {
		n += e.nodeTracker.Segments() + e.wayTracker.Segments() + e.relationTracker.Segments()
	}
	return n
}

func (t *TagCut) Passes() []pass.Pass {
	if t.pred.SeedNodesFromWayInPass1 {
		return []pass.Pass{
			&tagcutSelectPass{t: t},
			&tagcutEmitPass{t: t},
		}
	}
	return []pass.Pass{
		&tagcutSelectPass{t: t},
		&tagcutSeedNodesPass{t: t},
		&tagcutEmitPass{t: t},
	}
}

type tagcutSelectPass struct {
	pass.BasePass
	t *TagCut
}

func (p *tagcutSelectPass) Way(w *osmdata.Way) {
	if !checkID(w.ID) || p.t.pred.WayMatches == nil || !p.t.pred.WayMatches(w.Tags) {
		return
	}
	for _, e := range p.t.extracts {
		e.wayTracker.Set(w.ID)
		if p.t.pred.SeedNodesFromWayInPass1 {
			for _, ref := range w.Nodes {
				e.nodeTracker.Set(ref)
			}
		}
	}
}

func (p *tagcutSelectPass) Relation(r *osmdata.Relation) {
	if !checkID(r.ID) || p.t.pred.RelationMatches == nil || !p.t.pred.RelationMatches(r) {
		return
	}
	for _, e := range p.t.extracts {
		e.relationTracker.Set(r.ID)
		if !p.t.pred.WalkRelationWayMembers {
			continue
		}
		for _, m := range r.Members {
			if m.Type == osmdata.MemberWay {
				e.wayTracker.Set(m.Ref)
			}
		}
	}
}

type tagcutSeedNodesPass struct {
	pass.BasePass
	t *TagCut
}

func (p *tagcutSeedNodesPass) Way(w *osmdata.Way) {
	for _, e := range p.t.extracts {
		if !e.wayTracker.Get(w.ID) {
			continue
		}
		for _, ref := range w.Nodes {
			e.nodeTracker.Set(ref)
		}
	}
}

type tagcutEmitPass struct {
	pass.BasePass
	t *TagCut
}

func (p *tagcutEmitPass) Node(n *osmdata.Node) {
	for i, e := range p.t.extracts {
		if !e.nodeTracker.Get(n.ID) {
			continue
		}
		if err := e.Sink.WriteNode(n); err != nil {
			p.t.set(fmt.Errorf("extract %s: %w", e.Name, err))
			return
		}
		traceObject("node", n.ID, n.Version, i, e.Name)
	}
}

func (p *tagcutEmitPass) Way(w *osmdata.Way) {
	for i, e := range p.t.extracts {
		if !e.wayTracker.Get(w.ID) {
			continue
		}
		if err := e.Sink.WriteWay(w); err != nil {
			p.t.set(fmt.Errorf("extract %s: %w", e.Name, err))
			return
		}
		traceObject("way", w.ID, w.Version, i, e.Name)
	}
}

func (p *tagcutEmitPass) Relation(r *osmdata.Relation) {
	for i, e := range p.t.extracts {
		if !e.relationTracker.Get(r.ID) {
			continue
		}
		if err := e.Sink.WriteRelation(r); err != nil {
			p.t.set(fmt.Errorf("extract %s: %w", e.Name, err))
			return
		}
		traceObject("relation", r.ID, r.Version, i, e.Name)
	}
}

// cutAllBordersWhitelist are relation ids force-included regardless of
// tags. Origin undocumented in the source this was distilled from —
// preserved verbatim rather than second-guessed.
var cutAllBordersWhitelist = map[int64]bool{
	2186646: true,
	2559126: true,
	192797:  true,
	3335661: true,
}

// cutAllBordersMatches replicates a source quirk: the whitelist check
// sits inside the per-tag loop, so it only ever runs if the relation
// has at least one tag. A whitelisted relation with no tags at all is
// never matched. Preserved rather than fixed.
func cutAllBordersMatches(r *osmdata.Relation) bool {
	hit := false
	for _, tag := range r.Tags {
		switch {
		case tag.Key == "boundary" && tag.Value == "administrative":
			hit = true
		case tag.Key == "boundary" && tag.Value == "territorial":
			hit = true
		case cutAllBordersWhitelist[r.ID]:
			hit = true
		}
	}
	return hit
}

// NewCutAdministrative selects relations tagged boundary=administrative
// and every way-typed member they reference.
func NewCutAdministrative(exs []*extract.Extract) *TagCut {
	return NewTagCut(TagPredicate{
		Name: "Cut_administrative",
		RelationMatches: func(r *osmdata.Relation) bool {
			return r.Tags.HasTag("boundary", "administrative")
		},
		WalkRelationWayMembers: true,
	}, exs)
}

// NewCutAllBorders selects relations tagged boundary=administrative or
// boundary=territorial, the hardcoded whitelist, and every way-typed
// member they reference. No standalone way predicate.
func NewCutAllBorders(exs []*extract.Extract) *TagCut {
	return NewTagCut(TagPredicate{
		Name:                   "Cut_all_borders",
		RelationMatches:        cutAllBordersMatches,
		WalkRelationWayMembers: true,
	}, exs)
}

// NewCutHighway selects ways and relations carrying a highway tag,
// value ignored, plus every way-typed member of a matching relation.
func NewCutHighway(exs []*extract.Extract) *TagCut {
	hasHighway := predicate.HasAnyKey("highway")
	return NewTagCut(TagPredicate{
		Name:       "Cut_highway",
		WayMatches: hasHighway,
		RelationMatches: func(r *osmdata.Relation) bool {
			return hasHighway(r.Tags)
		},
		WalkRelationWayMembers: true,
	}, exs)
}

// cutRefKeys are the canonical ref-family tag keys.
var cutRefKeys = []string{"ref", "int_ref", "nat_ref", "reg_ref", "loc_ref", "old_ref", "unsigned_ref"}

// cutRefLegacyTypoKey is a leading-space variant of int_ref, almost
// certainly a typo in the source this was distilled from. Kept
// bug-compatible behind a flag rather than silently fixed.
const cutRefLegacyTypoKey = " int_ref"

// NewCutRef selects ways and relations carrying any ref-family tag. If
// keepLegacyIntRefTypo is set, the leading-space " int_ref" key is
// accepted too.
func NewCutRef(exs []*extract.Extract, keepLegacyIntRefTypo bool) *TagCut {
	keys := make([]string, len(cutRefKeys))
	copy(keys, cutRefKeys)
	if keepLegacyIntRefTypo {
		keys = append(keys, cutRefLegacyTypoKey)
	}
	hasRefKey := predicate.HasAnyKey(keys...)
	return NewTagCut(TagPredicate{
		Name:       "Cut_ref",
		WayMatches: hasRefKey,
		RelationMatches: func(r *osmdata.Relation) bool {
			return hasRefKey(r.Tags)
		},
		WalkRelationWayMembers: true,
	}, exs)
}

// NewCutWater selects ways tagged natural=coastline. It never walks
// relations, and seeds its node tracker directly from a matching way's
// node refs in the same pass that selects the way — the "second pass"
// in this strategy's description is really its writer pass.
func NewCutWater(exs []*extract.Extract) *TagCut {
	return NewTagCut(TagPredicate{
		Name:                    "Cut_water",
		WayMatches:              predicate.HasKeyValue("natural", "coastline"),
		SeedNodesFromWayInPass1: true,
	}, exs)
}
