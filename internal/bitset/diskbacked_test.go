package bitset

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiskBackedSetGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker")
	d, err := NewDiskBacked(path)
	if err != nil {
		t.Fatalf("NewDiskBacked: %v", err)
	}
	defer d.Close()

	d.Set(5)
	d.Set(segmentBits + 10)

	if !d.Get(5) || !d.Get(segmentBits+10) {
		t.Error("Get() false for an id that was Set()")
	}
	if d.Get(6) {
		t.Error("Get() true for an id that was never Set()")
	}
	if err := d.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestDiskBackedGetOnEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker")
	d, err := NewDiskBacked(path)
	if err != nil {
		t.Fatalf("NewDiskBacked: %v", err)
	}
	defer d.Close()

	if d.Get(100) {
		t.Error("Get() true on a tracker with no segments grown yet")
	}
}

func TestDiskBackedSegmentsGrowLazily(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker")
	d, err := NewDiskBacked(path)
	if err != nil {
		t.Fatalf("NewDiskBacked: %v", err)
	}
	defer d.Close()

	if got := d.Segments(); got != 0 {
		t.Errorf("Segments() = %d before any Set(), want 0", got)
	}
	d.Set(segmentBits*2 + 1)
	if got := d.Segments(); got != 3 {
		t.Errorf("Segments() = %d after setting an id in segment 2, want 3", got)
	}
}

func TestDiskBackedCloseRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker")
	d, err := NewDiskBacked(path)
	if err != nil {
		t.Fatalf("NewDiskBacked: %v", err)
	}
	d.Set(1)
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected Close to remove %s, stat returned err = %v", path, err)
	}
}
