// Package osmdata holds the splitter's own object model: Node, Way and
// Relation, decoupled from the parser library's types so strategies can
// rebuild tag and member lists (Hardcut in particular) without mutating
// whatever the reader handed them.
package osmdata

import (
	"time"

	"github.com/paulmach/osm"
)

// Tag is a single key/value pair, order preserved as read.
type Tag struct {
	Key   string
	Value string
}

// Tags is an ordered list of Tag, mirroring osm.Tags but owned by us.
type Tags []Tag

// Value returns the value for key and whether it was present.
func (t Tags) Value(key string) (string, bool) {
	for _, tag := range t {
		if tag.Key == key {
			return tag.Value, true
		}
	}
	return "", false
}

// HasAny reports whether any of the given keys is present, regardless
// of value. Used by the tag-presence-only strategies (Cut_highway).
func (t Tags) HasAny(keys ...string) bool {
	for _, tag := range t {
		for _, k := range keys {
			if tag.Key == k {
				return true
			}
		}
	}
	return false
}

// HasTag reports whether key=value is present exactly.
func (t Tags) HasTag(key, value string) bool {
	v, ok := t.Value(key)
	return ok && v == value
}

// MemberType identifies what kind of object a relation member refers to.
type MemberType int

const (
	MemberNode MemberType = iota
	MemberWay
	MemberRelation
)

// Member is one entry of a relation's member list.
type Member struct {
	Type MemberType
	Ref  int64
	Role string
}

// Meta holds the metadata fields spec.md requires preserved alongside
// every object's own data: visibility, the edit that last touched it,
// and who made that edit.
type Meta struct {
	Visible   bool
	Timestamp time.Time
	UID       int64
	Changeset int64
	User      string
}

// Node is a point with tags.
type Node struct {
	ID      int64
	Version int
	Lon     float64
	Lat     float64
	Tags    Tags
	Meta    Meta
}

// Way is an ordered list of node references with tags.
type Way struct {
	ID      int64
	Version int
	Nodes   []int64
	Tags    Tags
	Meta    Meta
}

// Relation is an ordered list of members with tags.
type Relation struct {
	ID      int64
	Version int
	Members []Member
	Tags    Tags
	Meta    Meta
}

func fromOSMTags(t osm.Tags) Tags {
	if len(t) == 0 {
		return nil
	}
	out := make(Tags, len(t))
	for i, tag := range t {
		out[i] = Tag{Key: tag.Key, Value: tag.Value}
	}
	return out
}

// FromOSMNode converts a paulmach/osm Node into our Node.
func FromOSMNode(n *osm.Node) *Node {
	return &Node{
		ID:      int64(n.ID),
		Version: n.Version,
		Lon:     n.Lon,
		Lat:     n.Lat,
		Tags:    fromOSMTags(n.Tags),
		Meta: Meta{
			Visible:   n.Visible,
			Timestamp: n.Timestamp,
			UID:       int64(n.UserID),
			Changeset: int64(n.ChangesetID),
			User:      n.User,
		},
	}
}

// FromOSMWay converts a paulmach/osm Way into our Way.
func FromOSMWay(w *osm.Way) *Way {
	nodes := make([]int64, len(w.Nodes))
	for i, wn := range w.Nodes {
		nodes[i] = int64(wn.ID)
	}
	return &Way{
		ID:      int64(w.ID),
		Version: w.Version,
		Nodes:   nodes,
		Tags:    fromOSMTags(w.Tags),
		Meta: Meta{
			Visible:   w.Visible,
			Timestamp: w.Timestamp,
			UID:       int64(w.UserID),
			Changeset: int64(w.ChangesetID),
			User:      w.User,
		},
	}
}

// FromOSMRelation converts a paulmach/osm Relation into our Relation.
func FromOSMRelation(r *osm.Relation) *Relation {
	members := make([]Member, len(r.Members))
	for i, m := range r.Members {
		var mt MemberType
		switch m.Type {
		case osm.TypeNode:
			mt = MemberNode
		case osm.TypeWay:
			mt = MemberWay
		case osm.TypeRelation:
			mt = MemberRelation
		}
		members[i] = Member{Type: mt, Ref: int64(m.Ref), Role: m.Role}
	}
	return &Relation{
		ID:      int64(r.ID),
		Version: r.Version,
		Members: members,
		Tags:    fromOSMTags(r.Tags),
		Meta: Meta{
			Visible:   r.Visible,
			Timestamp: r.Timestamp,
			UID:       int64(r.UserID),
			Changeset: int64(r.ChangesetID),
			User:      r.User,
		},
	}
}
