package extract

import (
	"path/filepath"
	"testing"

	"github.com/wegman-software/osm-splitter/internal/region"
)

func newTestExtract(t *testing.T, name string) *Extract {
	t.Helper()
	r, err := region.NewBBox(0, 0, 1, 1)
	if err != nil {
		t.Fatalf("NewBBox: %v", err)
	}
	e, err := New(name, filepath.Join(t.TempDir(), name+".osm"), r)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestCloseAllClosesEveryExtract(t *testing.T) {
	exs := []*Extract{
		newTestExtract(t, "a"),
		newTestExtract(t, "b"),
		newTestExtract(t, "c"),
	}
	if err := CloseAll(exs); err != nil {
		t.Fatalf("CloseAll: %v", err)
	}
}

func TestCloseAllPropagatesError(t *testing.T) {
	e := newTestExtract(t, "dup")
	// Closing twice drives the underlying sink's Close a second time;
	// flushing the footer into the already-closed file returns an error.
	if err := e.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := CloseAll([]*Extract{e}); err == nil {
		t.Fatalf("expected CloseAll to surface the double-close error")
	}
}
