package bitset

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// segmentBytes is one segment's worth of words as raw bytes on disk.
const segmentBytes = wordsPerSegment * 8

// DiskBacked is a growing bitset whose segments live in a memory-mapped
// file rather than process memory. It exists for --low-memory runs on
// planet-scale inputs, where even the segmented in-memory Tracker's
// resident set is too large to keep around for every extract at once.
// Grounded on the teacher's nodeindex.MmapIndex: grow the backing file
// on demand, remap, address by a fixed per-id offset.
//
// Set and Get match Tracker's signature (no error return) so the two
// are interchangeable behind BitTracker on Hardcut's hot path; a
// failure growing or mapping the backing file is latched in err and
// surfaced by the first Err() check a caller makes.
type DiskBacked struct {
	file     *os.File
	path     string
	data     mmap.MMap
	segments int
	err      error
}

// NewDiskBacked creates a fresh disk-backed tracker file at path.
func NewDiskBacked(path string) (*DiskBacked, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("create disk-backed tracker %s: %w", path, err)
	}
	return &DiskBacked{file: f, path: path}, nil
}

// Err reports the first error encountered growing or mapping the
// backing file, if any.
func (d *DiskBacked) Err() error {
	return d.err
}

func (d *DiskBacked) ensureSegment(segment int) bool {
	if d.err != nil {
		return false
	}
	if segment < d.segments {
		return true
	}
	if d.data != nil {
		if err := d.data.Unmap(); err != nil {
			d.err = fmt.Errorf("unmap disk-backed tracker %s: %w", d.path, err)
			return false
		}
	}
	newSize := int64(segment+1) * segmentBytes
	if err := d.file.Truncate(newSize); err != nil {
		d.err = fmt.Errorf("grow disk-backed tracker %s: %w", d.path, err)
		return false
	}
	data, err := mmap.Map(d.file, mmap.RDWR, 0)
	if err != nil {
		d.err = fmt.Errorf("mmap disk-backed tracker %s: %w", d.path, err)
		return false
	}
	d.data = data
	d.segments = segment + 1
	return true
}

// Set marks id as present, growing and remapping the backing file if
// the id falls in a segment that hasn't been touched yet. A failure
// growing the file is latched and silently dropped here; check Err()
// after a pass completes.
func (d *DiskBacked) Set(id int64) {
	segment, word, bit := locate(id)
	if !d.ensureSegment(segment) {
		return
	}
	byteOffset := segment*segmentBytes + word*8 + int(bit/8)
	d.data[byteOffset] |= 1 << (bit % 8)
}

// Get reports whether id has been set. An id in a segment that was
// never grown to reads as absent, with no error.
func (d *DiskBacked) Get(id int64) bool {
	segment, word, bit := locate(id)
	if d.err != nil || segment >= d.segments {
		return false
	}
	byteOffset := segment*segmentBytes + word*8 + int(bit/8)
	return d.data[byteOffset]&(1<<(bit%8)) != 0
}

// Segments reports the number of segments grown so far, matching
// Tracker.Segments so the two types are interchangeable for metrics.
func (d *DiskBacked) Segments() int {
	return d.segments
}

// Close flushes and unmaps the backing file, closes it, and removes it
// — a disk-backed tracker is scratch state for one run, never output.
func (d *DiskBacked) Close() error {
	if d.data != nil {
		if err := d.data.Flush(); err != nil {
			return fmt.Errorf("flush disk-backed tracker %s: %w", d.path, err)
		}
		if err := d.data.Unmap(); err != nil {
			return fmt.Errorf("unmap disk-backed tracker %s: %w", d.path, err)
		}
	}
	if err := d.file.Close(); err != nil {
		return fmt.Errorf("close disk-backed tracker %s: %w", d.path, err)
	}
	return os.Remove(d.path)
}
