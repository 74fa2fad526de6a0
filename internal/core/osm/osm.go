// Package osm holds the element model shared by the diff pipeline.
// Pure data and ordering rules only, no IO
package osm

import (
	"strconv"
	"time"

	perr "taghist/internal/platform/errors"
)

// ObjectType identifies an element kind. The zero value is Node.
// Ordering follows the history file convention: nodes, then ways, then relations
type ObjectType uint8

const (
	Node ObjectType = iota
	Way
	Relation
)

// ParseObjectType accepts both the long name and the single letter form
func ParseObjectType(s string) (ObjectType, error) {
	switch s {
	case "node", "n":
		return Node, nil
	case "way", "w":
		return Way, nil
	case "relation", "r":
		return Relation, nil
	}
	return Node, perr.InvalidArgf("unknown object type %q", s)
}

// Short returns the single letter form used in compact id columns
func (t ObjectType) Short() string {
	switch t {
	case Way:
		return "w"
	case Relation:
		return "r"
	default:
		return "n"
	}
}

// Long returns the element name as it appears in OSM XML
func (t ObjectType) Long() string {
	switch t {
	case Way:
		return "way"
	case Relation:
		return "relation"
	default:
		return "node"
	}
}

func (t ObjectType) String() string { return t.Long() }

// TagPair is one key value tag, order preserving where it matters
// (changeset tag payloads keep their stored order)
type TagPair struct {
	K string
	V string
}

// Record is a single version of a single element as read from a history source.
// User, UID and Changeset are pointers because the source may omit them
// (anonymous edits, redacted versions). A zero Timestamp means absent
type Record struct {
	Kind      ObjectType
	ID        int64
	Version   int64
	Timestamp time.Time
	User      *string
	UID       *uint64
	Changeset *uint64
	Tags      map[string]string
}

// Tagged reports whether the record carries at least one tag
func (r *Record) Tagged() bool { return len(r.Tags) > 0 }

// SameElement reports whether two records are versions of the same element
func (r *Record) SameElement(o *Record) bool {
	return r.Kind == o.Kind && r.ID == o.ID
}

// CompactID renders the short id form, eg "n123" or "w45"
func (r *Record) CompactID() string {
	return r.Kind.Short() + strconv.FormatInt(r.ID, 10)
}

// Compare orders records by (kind, id, version) ascending.
// Returns a negative value when a sorts before b, zero when equal
func Compare(a, b *Record) int {
	if a.Kind != b.Kind {
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	if a.ID != b.ID {
		if a.ID < b.ID {
			return -1
		}
		return 1
	}
	switch {
	case a.Version < b.Version:
		return -1
	case a.Version > b.Version:
		return 1
	}
	return 0
}
