package pass

import (
	"testing"

	"github.com/wegman-software/osm-splitter/internal/osmdata"
)

// recordingPass records every callback it receives, in order, so tests
// can assert on hook ordering and count.
type recordingPass struct {
	BasePass
	calls []string
}

func (r *recordingPass) Node(*osmdata.Node)         { r.calls = append(r.calls, "node") }
func (r *recordingPass) Way(*osmdata.Way)           { r.calls = append(r.calls, "way") }
func (r *recordingPass) Relation(*osmdata.Relation) { r.calls = append(r.calls, "relation") }
func (r *recordingPass) AfterNodes()                { r.calls = append(r.calls, "after_nodes") }
func (r *recordingPass) AfterWays()                 { r.calls = append(r.calls, "after_ways") }
func (r *recordingPass) AfterRelations()             { r.calls = append(r.calls, "after_relations") }
func (r *recordingPass) Final()                      { r.calls = append(r.calls, "final") }

func equalCalls(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("calls = %v, want %v", got, want)
		}
	}
}

func TestDispatcherFullStream(t *testing.T) {
	p := &recordingPass{}
	d := &dispatcher{p: p}

	d.node(&osmdata.Node{ID: 1})
	d.node(&osmdata.Node{ID: 2})
	d.way(&osmdata.Way{ID: 10})
	d.relation(&osmdata.Relation{ID: 100})
	d.finish()

	equalCalls(t, p.calls, []string{
		"node", "node",
		"after_nodes",
		"way",
		"after_ways",
		"relation",
		"after_relations",
		"final",
	})
}

func TestDispatcherNoWaysOrRelations(t *testing.T) {
	p := &recordingPass{}
	d := &dispatcher{p: p}

	d.node(&osmdata.Node{ID: 1})
	d.finish()

	equalCalls(t, p.calls, []string{
		"node",
		"after_nodes",
		"after_ways",
		"after_relations",
		"final",
	})
}

func TestDispatcherEmptyStream(t *testing.T) {
	p := &recordingPass{}
	d := &dispatcher{p: p}

	d.finish()

	equalCalls(t, p.calls, []string{
		"after_nodes",
		"after_ways",
		"after_relations",
		"final",
	})
}

func TestDispatcherNoRelationsButWays(t *testing.T) {
	p := &recordingPass{}
	d := &dispatcher{p: p}

	d.node(&osmdata.Node{ID: 1})
	d.way(&osmdata.Way{ID: 10})
	d.way(&osmdata.Way{ID: 11})
	d.finish()

	equalCalls(t, p.calls, []string{
		"node",
		"after_nodes",
		"way", "way",
		"after_ways",
		"after_relations",
		"final",
	})
}
