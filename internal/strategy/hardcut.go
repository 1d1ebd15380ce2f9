package strategy

import (
	"fmt"

	"github.com/wegman-software/osm-splitter/internal/bitset"
	"github.com/wegman-software/osm-splitter/internal/extract"
	"github.com/wegman-software/osm-splitter/internal/osmdata"
	"github.com/wegman-software/osm-splitter/internal/pass"
)

// hardcutExtract is one extract's Hardcut tracker state: which node
// and way ids this extract has already written, so later ways and
// relations can be rebuilt against only the members that survived.
type hardcutExtract struct {
	*extract.Extract
	nodeTracker bitset.BitTracker
	wayTracker  bitset.BitTracker
}

// Hardcut is the single-pass strategy: a node is written the instant
// it's found inside an extract's region; a way is rewritten to keep
// only the node refs that survived; a relation is rewritten to keep
// only the node/way members that survived. The node and way trackers,
// which record what has been written, are enough to close every later
// way and relation in the same pass.
type Hardcut struct {
	errHolder
	extracts   []*hardcutExtract
	diskBacked []*bitset.DiskBacked
}

// NewHardcut builds a Hardcut strategy over the given extracts, using
// in-process trackers.
func NewHardcut(exs []*extract.Extract) *Hardcut {
	states := make([]*hardcutExtract, len(exs))
	for i, e := range exs {
		states[i] = &hardcutExtract{
			Extract:     e,
			nodeTracker: bitset.New(),
			wayTracker:  bitset.New(),
		}
	}
	return &Hardcut{extracts: states}
}

// NewHardcutLowMemory builds a Hardcut strategy whose node and way
// trackers are memory-mapped scratch files next to each extract's
// output rather than held in process memory. Intended for
// planet-scale inputs with --low-memory, where keeping a segmented
// in-process Tracker per extract for every strategy would exceed
// available RAM long before any single extract's region does.
func NewHardcutLowMemory(exs []*extract.Extract) (*Hardcut, error) {
	states := make([]*hardcutExtract, len(exs))
	var disks []*bitset.DiskBacked
	for i, e := range exs {
		nodes, err := bitset.NewDiskBacked(e.OutputPath + ".nodes.tracker")
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", e.Name, err)
		}
		ways, err := bitset.NewDiskBacked(e.OutputPath + ".ways.tracker")
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", e.Name, err)
		}
		disks = append(disks, nodes, ways)
		states[i] = &hardcutExtract{
			Extract:     e,
			nodeTracker: nodes,
			wayTracker:  ways,
		}
	}
	return &Hardcut{extracts: states, diskBacked: disks}, nil
}

// Close releases the disk-backed trackers built by NewHardcutLowMemory,
// removing their scratch files. A no-op for in-process trackers.
func (h *Hardcut) Close() error {
	for _, d := range h.diskBacked {
		if err := d.Close(); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hardcut) Passes() []pass.Pass {
	return []pass.Pass{&hardcutPass{h: h}}
}

// Err reports the first write failure any pass recorded, or the first
// disk-backed tracker failure if this Hardcut was built with
// NewHardcutLowMemory.
func (h *Hardcut) Err() error {
	if err := h.errHolder.Err(); err != nil {
		return err
	}
	for _, d := range h.diskBacked {
		if err := d.Err(); err != nil {
			return err
		}
	}
	return nil
}

// Segments reports allocated bitset segments across every tracker this
// strategy owns.
func (h *Hardcut) Segments() int {
	n := 0
	for _, e := range h.extracts {
		n += e.nodeTracker.Segments() + e.wayTracker.Segments()
	}
	return n
}

type hardcutPass struct {
	pass.BasePass
	h *Hardcut
}

func (p *hardcutPass) Node(n *osmdata.Node) {
	if !checkID(n.ID) {
		return
	}
	for i, e := range p.h.extracts {
		if !e.Contains(n.Lon, n.Lat) {
			continue
		}
		if err := e.Sink.WriteNode(n); err != nil {
			p.h.set(fmt.Errorf("extract %s: %w", e.Name, err))
			return
		}
		e.nodeTracker.Set(n.ID)
		traceObject("node", n.ID, n.Version, i, e.Name)
	}
}

func (p *hardcutPass) Way(w *osmdata.Way) {
	if !checkID(w.ID) {
		return
	}
	for i, e := range p.h.extracts {
		kept := make([]int64, 0, len(w.Nodes))
		for _, ref := range w.Nodes {
			if e.nodeTracker.Get(ref) {
				kept = append(kept, ref)
			}
		}
		if len(kept) < 2 {
			continue
		}
		rebuilt := &osmdata.Way{
			ID:      w.ID,
			Version: w.Version,
			Nodes:   kept,
			Tags:    w.Tags,
			Meta:    w.Meta,
		}
		if err := e.Sink.WriteWay(rebuilt); err != nil {
			p.h.set(fmt.Errorf("extract %s: %w", e.Name, err))
			return
		}
		e.wayTracker.Set(w.ID)
		traceObject("way", w.ID, w.Version, i, e.Name)
	}
}

func (p *hardcutPass) Relation(r *osmdata.Relation) {
	if !checkID(r.ID) {
		return
	}
	for i, e := range p.h.extracts {
		kept := make([]osmdata.Member, 0, len(r.Members))
		for _, m := range r.Members {
			switch m.Type {
			case osmdata.MemberNode:
				if e.nodeTracker.Get(m.Ref) {
					kept = append(kept, m)
				}
			case osmdata.MemberWay:
				if e.wayTracker.Get(m.Ref) {
					kept = append(kept, m)
				}
			case osmdata.MemberRelation:
				// Later relations are never tracked by Hardcut, so a
				// relation-typed member can never be confirmed
				// included. Documented limitation, not a bug.
			}
		}
		if len(kept) == 0 {
			continue
		}
		rebuilt := &osmdata.Relation{
			ID:      r.ID,
			Version: r.Version,
			Members: kept,
			Tags:    r.Tags,
			Meta:    r.Meta,
		}
		if err := e.Sink.WriteRelation(rebuilt); err != nil {
			p.h.set(fmt.Errorf("extract %s: %w", e.Name, err))
			return
		}
		traceObject("relation", r.ID, r.Version, i, e.Name)
	}
}
