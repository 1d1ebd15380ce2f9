// Package config parses the extract list: one line per extract, naming
// a region either as a bounding box, an Osmosis .poly file, or a
// boundary relation inside an arbitrary OSM file.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/wegman-software/osm-splitter/internal/extract"
	"github.com/wegman-software/osm-splitter/internal/logger"
	"github.com/wegman-software/osm-splitter/internal/osmgeom"
	"github.com/wegman-software/osm-splitter/internal/polyfile"
	"github.com/wegman-software/osm-splitter/internal/region"
)

// Entry is one parsed, not-yet-opened extract line.
type Entry struct {
	Name   string
	Region region.Region
}

// Load parses path and resolves every BBOX/POLY/OSM line into an
// Entry. A malformed BBOX line is fatal, matching the reference
// splitter's readConfig: it bails out on the first sscanf failure for
// a bounding box. A POLY or OSM line whose referenced geometry file
// fails to load is not fatal — that one extract is dropped and parsing
// continues, matching readConfig's bare "break" out of the geometry
// cases rather than a hard return false.
func Load(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()
	return parse(f)
}

func parse(r io.Reader) ([]Entry, error) {
	scanner := bufio.NewScanner(r)

	var entries []Entry
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, fmt.Errorf("config line %d: extract %s: expected 3 fields, got %d", lineNo, fields[0], len(fields))
		}
		name, kind, data := fields[0], fields[1], fields[2]

		reg, ok, err := resolveRegion(name, kind, data)
		if err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNo, err)
		}
		if !ok {
			// Geometry load failure for POLY/OSM: drop this extract,
			// keep reading the rest of the file.
			logger.Get().Warn("dropping extract: geometry failed to load",
				zap.Int("line", lineNo), zap.String("extract", name))
			continue
		}
		entries = append(entries, Entry{Name: name, Region: reg})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return entries, nil
}

// resolveRegion returns (region, true, nil) on success, (nil, false,
// nil) for a soft POLY/OSM geometry-load failure, or a non-nil error
// for anything fatal (unknown kind, malformed BBOX).
func resolveRegion(name, kind, data string) (region.Region, bool, error) {
	switch kind {
	case "BBOX":
		coords := strings.Split(data, ",")
		if len(coords) != 4 {
			return nil, false, fmt.Errorf("BBOX %s for %s: expected min_lon,min_lat,max_lon,max_lat", data, name)
		}
		var v [4]float64
		for i, c := range coords {
			f, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
			if err != nil {
				return nil, false, fmt.Errorf("BBOX %s for %s: %w", data, name, err)
			}
			v[i] = f
		}
		bbox, err := region.NewBBox(v[0], v[1], v[2], v[3])
		if err != nil {
			return nil, false, fmt.Errorf("BBOX %s for %s: %w", data, name, err)
		}
		return bbox, true, nil

	case "POLY":
		mp, err := polyfile.ParseFile(data)
		if err != nil {
			return nil, false, nil
		}
		poly, err := region.NewPolygon(mp)
		if err != nil {
			return nil, false, nil
		}
		return poly, true, nil

	case "OSM":
		mp, err := osmgeom.FromFile(data)
		if err != nil {
			return nil, false, nil
		}
		poly, err := region.NewPolygon(mp)
		if err != nil {
			return nil, false, nil
		}
		return poly, true, nil

	default:
		return nil, false, fmt.Errorf("unknown region kind %q for %s", kind, name)
	}
}

// OpenExtracts resolves every entry against outputDir, opening each
// extract's sink eagerly so a write-permission or disk-space failure
// surfaces before any pass runs rather than mid-stream.
func OpenExtracts(entries []Entry, outputDir string) ([]*extract.Extract, error) {
	exs := make([]*extract.Extract, 0, len(entries))
	for _, e := range entries {
		outputPath := e.Name + ".osm"
		if outputDir != "" {
			outputPath = outputDir + "/" + outputPath
		}
		ex, err := extract.New(e.Name, outputPath, e.Region)
		if err != nil {
			for _, opened := range exs {
				opened.Close()
			}
			return nil, err
		}
		exs = append(exs, ex)
	}
	return exs, nil
}
