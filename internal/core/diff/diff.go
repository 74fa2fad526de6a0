// Package diff pairs consecutive element versions and computes tag level changes.
// Pure streaming logic, one record of lookbehind, no IO
package diff

import (
	"sort"

	"taghist/internal/core/osm"
	perr "taghist/internal/platform/errors"
)

// Pair couples a record with its immediate predecessor version.
// Prev is nil when the current record opens a new element
// (first version seen, or the stream moved to another element)
type Pair struct {
	Prev *osm.Record
	Curr *osm.Record
}

// TagChange is one key whose value differs between the two sides of a pair.
// HadOld / HasNew distinguish an absent tag from an empty valued one
type TagChange struct {
	Key    string
	Old    string
	New    string
	HadOld bool
	HasNew bool
}

// Engine consumes records in (kind, id, version) order and emits pairs.
// It keeps exactly one record of state, so arbitrarily large histories
// stream in constant memory
type Engine struct {
	prev *osm.Record
}

// New returns an empty engine ready for the first record
func New() *Engine { return &Engine{} }

// Push accepts the next record and returns the pair ending at it.
// Ordering is validated against the previous record on every call,
// including records that later stages will filter out. Out of order
// input is unrecoverable, the stream contract is broken
func (e *Engine) Push(cur *osm.Record) (Pair, error) {
	p := Pair{Curr: cur}
	if e.prev == nil {
		e.prev = cur
		return p, nil
	}
	if osm.Compare(e.prev, cur) >= 0 {
		return Pair{}, perr.UnsortedInputf(
			"input not sorted: %s v%d followed by %s v%d",
			e.prev.CompactID(), e.prev.Version, cur.CompactID(), cur.Version,
		)
	}
	if e.prev.SameElement(cur) {
		p.Prev = e.prev
	}
	e.prev = cur
	return p, nil
}

// Changes computes the per key differences for a pair.
// Keys are visited in lexicographic order. A pair where neither side
// carries tags produces nothing, even when one side is nil
func Changes(p Pair) []TagChange {
	var oldTags map[string]string
	if p.Prev != nil {
		oldTags = p.Prev.Tags
	}
	newTags := p.Curr.Tags
	if len(oldTags) == 0 && len(newTags) == 0 {
		return nil
	}

	keys := make([]string, 0, len(oldTags)+len(newTags))
	for k := range oldTags {
		keys = append(keys, k)
	}
	for k := range newTags {
		if _, dup := oldTags[k]; !dup {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var out []TagChange
	for _, k := range keys {
		ov, hadOld := oldTags[k]
		nv, hasNew := newTags[k]
		if hadOld && hasNew && ov == nv {
			continue
		}
		out = append(out, TagChange{Key: k, Old: ov, New: nv, HadOld: hadOld, HasNew: hasNew})
	}
	return out
}
