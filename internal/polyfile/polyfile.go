// Package polyfile parses the Osmosis ".poly" polygon format into an
// orb.MultiPolygon, for POLY-kind extract regions.
package polyfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// Parse reads a .poly file: a name line, one or more ring sections
// (a section-name line followed by "lon lat" coordinate pairs, one per
// line, ending in a line that is just "END"), and a final "END" line
// closing the file. A section name starting with "!" is a hole in the
// polygon built from the most recently opened non-hole ring; any other
// section name opens a new polygon.
func Parse(r io.Reader) (orb.MultiPolygon, error) {
	scanner := bufio.NewScanner(r)

	if !scanner.Scan() {
		return nil, fmt.Errorf("poly file: empty")
	}

	var mp orb.MultiPolygon
	var current *orb.Polygon

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "END" {
			if current != nil {
				mp = append(mp, *current)
				current = nil
				continue
			}
			break
		}

		hole := strings.HasPrefix(line, "!")
		ring, err := readRing(scanner)
		if err != nil {
			return nil, fmt.Errorf("poly file: section %q: %w", line, err)
		}

		if hole {
			if current == nil {
				return nil, fmt.Errorf("poly file: hole ring %q has no enclosing polygon", line)
			}
			*current = append(*current, ring)
			continue
		}

		if current != nil {
			mp = append(mp, *current)
		}
		current = &orb.Polygon{ring}
	}

	if current != nil {
		mp = append(mp, *current)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("poly file: %w", err)
	}
	if len(mp) == 0 {
		return nil, fmt.Errorf("poly file: no rings found")
	}
	return mp, nil
}

// readRing reads "lon lat" pairs up to the section's closing "END" line.
func readRing(scanner *bufio.Scanner) (orb.Ring, error) {
	var ring orb.Ring
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "END" {
			if len(ring) < 3 {
				return nil, fmt.Errorf("ring has fewer than 3 points")
			}
			first, last := ring[0], ring[len(ring)-1]
			if first[0] != last[0] || first[1] != last[1] {
				ring = append(ring, ring[0])
			}
			return ring, nil
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("malformed coordinate line %q", line)
		}
		lon, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude %q: %w", fields[0], err)
		}
		lat, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude %q: %w", fields[1], err)
		}
		ring = append(ring, orb.Point{lon, lat})
	}
	return nil, fmt.Errorf("unexpected end of file inside ring")
}

// ParseFile opens path and parses it as a .poly file.
func ParseFile(path string) (orb.MultiPolygon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}
