// Package extract holds the per-extract descriptor shared by every
// strategy: an extract's identity, its region, and the output sink its
// final pass writes selected objects into.
package extract

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/wegman-software/osm-splitter/internal/region"
	"github.com/wegman-software/osm-splitter/internal/writer"
)

// Extract is one named output region: a line from the configuration
// file, resolved into a concrete Region and an open Sink. Strategies
// attach their own tracker state to an Extract by wrapping it, rather
// than by extending this struct, since the tracker set differs by
// strategy (§4.4 of the design this was built from).
type Extract struct {
	Name       string
	OutputPath string
	Region     region.Region
	Sink       writer.Sink
}

// New opens the extract's output file and returns a ready Extract.
func New(name, outputPath string, r region.Region) (*Extract, error) {
	sink, err := writer.NewXMLWriter(outputPath)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", name, err)
	}
	return &Extract{
		Name:       name,
		OutputPath: outputPath,
		Region:     r,
		Sink:       sink,
	}, nil
}

// Close flushes and closes the extract's sink.
func (e *Extract) Close() error {
	if err := e.Sink.Close(); err != nil {
		return fmt.Errorf("extract %s: %w", e.Name, err)
	}
	return nil
}

// Contains reports whether the given coordinate lies inside the
// extract's region.
func (e *Extract) Contains(lon, lat float64) bool {
	return e.Region.Contains(lon, lat)
}

// CloseAll closes every extract's sink concurrently and returns the
// first error encountered; every sink's Close still runs to completion
// regardless of the others' errors. A planet-scale config
// file can declare hundreds of extracts; flushing and closing each
// sink's file is pure I/O wait, so there's nothing to serialize here —
// the pass framework itself stays single-threaded, but this tail-end
// fan-out doesn't need to.
func CloseAll(exs []*Extract) error {
	g := new(errgroup.Group)
	for _, e := range exs {
		e := e
		g.Go(e.Close)
	}
	return g.Wait()
}
