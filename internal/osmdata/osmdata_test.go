package osmdata

import (
	"testing"
	"time"

	"github.com/paulmach/osm"
)

func TestFromOSMNodeCarriesMeta(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	n := FromOSMNode(&osm.Node{
		ID:          42,
		Version:     3,
		Lat:         1.5,
		Lon:         2.5,
		Visible:     true,
		Timestamp:   ts,
		ChangesetID: 123,
		UserID:      456,
		User:        "mapper",
	})
	want := Meta{Visible: true, Timestamp: ts, UID: 456, Changeset: 123, User: "mapper"}
	if n.Meta != want {
		t.Errorf("Meta = %+v, want %+v", n.Meta, want)
	}
}

func TestFromOSMWayCarriesMeta(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	w := FromOSMWay(&osm.Way{
		ID:          7,
		Version:     2,
		Visible:     false,
		Timestamp:   ts,
		ChangesetID: 9,
		UserID:      11,
		User:        "editor",
	})
	want := Meta{Visible: false, Timestamp: ts, UID: 11, Changeset: 9, User: "editor"}
	if w.Meta != want {
		t.Errorf("Meta = %+v, want %+v", w.Meta, want)
	}
}

func TestFromOSMRelationCarriesMeta(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	r := FromOSMRelation(&osm.Relation{
		ID:          99,
		Version:     1,
		Visible:     true,
		Timestamp:   ts,
		ChangesetID: 5,
		UserID:      6,
		User:        "boundaries",
	})
	want := Meta{Visible: true, Timestamp: ts, UID: 6, Changeset: 5, User: "boundaries"}
	if r.Meta != want {
		t.Errorf("Meta = %+v, want %+v", r.Meta, want)
	}
}
