// Package reader adapts github.com/paulmach/osm/osmpbf into the
// splitter's per-pass object source: a single sequential walk over
// nodes, then ways, then relations, in the order the PBF scanner
// already guarantees.
package reader

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"

	"github.com/wegman-software/osm-splitter/internal/osmdata"
)

// Source is one open, rewindable-by-reopening walk over an OSM PBF
// file. A strategy's pass framework opens a fresh Source for every
// pass, matching the reference splitter's "one osmium::io::Reader per
// pass" lifecycle.
type Source struct {
	file    *os.File
	scanner *osmpbf.Scanner
	cancel  context.CancelFunc
	err     error
}

// Open opens path for a single pass. path == "-" reads from stdin;
// callers are responsible for only allowing that for strategies that
// support a single streaming pass (Hardcut), per spec §6.
func Open(path string) (*Source, error) {
	if path == "-" {
		ctx, cancel := context.WithCancel(context.Background())
		return &Source{
			scanner: osmpbf.New(ctx, os.Stdin, runtime.NumCPU()),
			cancel:  cancel,
		}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Source{
		file:    f,
		scanner: osmpbf.New(ctx, f, runtime.NumCPU()),
		cancel:  cancel,
	}, nil
}

// Node, Way, Relation are the object-kind callbacks a Source walk
// invokes one at a time, in stream order.
type Node = osmdata.Node
type Way = osmdata.Way
type Relation = osmdata.Relation

// Handler receives one callback per object kind the pass framework
// dispatches through. All three fields are optional.
type Handler struct {
	Node     func(*Node)
	Way      func(*Way)
	Relation func(*Relation)
}

// Walk reads every object from the source once, in order, invoking the
// matching Handler callback. It stops at the first error, which Walk
// returns, or at EOF, which it swallows.
func (s *Source) Walk(h Handler) error {
	for s.scanner.Scan() {
		switch o := s.scanner.Object().(type) {
		case *osm.Node:
			if h.Node != nil {
				h.Node(osmdata.FromOSMNode(o))
			}
		case *osm.Way:
			if h.Way != nil {
				h.Way(osmdata.FromOSMWay(o))
			}
		case *osm.Relation:
			if h.Relation != nil {
				h.Relation(osmdata.FromOSMRelation(o))
			}
		}
	}
	if err := s.scanner.Err(); err != nil && err != io.EOF {
		s.err = err
		return fmt.Errorf("scan osm stream: %w", err)
	}
	return nil
}

// Close releases the scanner and, for file-backed sources, the
// underlying file.
func (s *Source) Close() error {
	s.cancel()
	closeErr := s.scanner.Close()
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			return err
		}
	}
	return closeErr
}
