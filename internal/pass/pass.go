// Package pass implements the streaming pass framework: a single
// sequential walk over the input per pass, dispatching each object to
// a strategy's callbacks and firing phase-transition hooks at the
// node/way/relation boundaries.
package pass

import (
	"fmt"

	"github.com/wegman-software/osm-splitter/internal/osmdata"
	"github.com/wegman-software/osm-splitter/internal/reader"
)

// Pass is the callback bundle a strategy implements for one walk over
// the input. Every method has a no-op default via BasePass, so a
// strategy only overrides the callbacks it actually needs.
type Pass interface {
	Node(*osmdata.Node)
	Way(*osmdata.Way)
	Relation(*osmdata.Relation)
	AfterNodes()
	AfterWays()
	AfterRelations()
	Final()
}

// BasePass gives every Pass method a no-op body; strategies embed it
// and override only what they need, mirroring the teacher's habit of
// small composable structs built by embedding a no-op default.
type BasePass struct{}

func (BasePass) Node(*osmdata.Node)         {}
func (BasePass) Way(*osmdata.Way)           {}
func (BasePass) Relation(*osmdata.Relation) {}
func (BasePass) AfterNodes()                {}
func (BasePass) AfterWays()                 {}
func (BasePass) AfterRelations()            {}
func (BasePass) Final()                     {}

// Driver walks one reader.Source through the hooks of a Pass, firing
// the after-* hooks exactly once each, the moment the object kind they
// follow changes (or, for AfterRelations and Final, at end of stream).
type Driver struct {
	Path string
}

// NewDriver returns a Driver over the OSM file (or "-" for stdin) at
// path. A fresh Driver is used for every pass, matching the reference
// splitter's one-reader-per-pass lifecycle.
func NewDriver(path string) *Driver {
	return &Driver{Path: path}
}

// phase tracks progress through the strictly-ordered node/way/relation
// stream. Phases only move forward.
const (
	phaseNodes = iota
	phaseWays
	phaseRelations
)

// dispatcher fires a Pass's after-hooks exactly once each, in order, as
// the object kind advances — independent of the concrete reader, so it
// can be driven directly in tests without a real PBF file.
type dispatcher struct {
	p     Pass
	phase int
}

func (d *dispatcher) advanceTo(target int) {
	for d.phase < target {
		switch d.phase {
		case phaseNodes:
			d.p.AfterNodes()
		case phaseWays:
			d.p.AfterWays()
		}
		d.phase++
	}
}

func (d *dispatcher) node(n *osmdata.Node) {
	d.advanceTo(phaseNodes)
	d.p.Node(n)
}

func (d *dispatcher) way(w *osmdata.Way) {
	d.advanceTo(phaseWays)
	d.p.Way(w)
}

func (d *dispatcher) relation(r *osmdata.Relation) {
	d.advanceTo(phaseRelations)
	d.p.Relation(r)
}

// finish flushes any after-hooks for phases the stream never reached
// and fires AfterRelations and Final, which always run exactly once.
func (d *dispatcher) finish() {
	d.advanceTo(phaseRelations)
	d.p.AfterRelations()
	d.p.Final()
}

// Run opens the source, walks it once, and dispatches to p. After-hooks
// fire exactly once each, in order, even for a pass whose input has no
// ways or no relations at all — an empty phase still ends. It returns
// the first error encountered opening or reading the source.
func (d *Driver) Run(p Pass) error {
	src, err := reader.Open(d.Path)
	if err != nil {
		return fmt.Errorf("open pass input: %w", err)
	}
	defer src.Close()

	disp := &dispatcher{p: p}
	err = src.Walk(reader.Handler{
		Node:     disp.node,
		Way:      disp.way,
		Relation: disp.relation,
	})
	if err != nil {
		return err
	}

	disp.finish()
	return nil
}
