// Package tagfilter narrows the diff stream by author, element kind,
// tag key, and key value combination. All filters are additive within
// a dimension (any match passes) and conjunctive across dimensions
package tagfilter

import (
	"strings"

	"taghist/internal/core/diff"
	"taghist/internal/core/osm"
	perr "taghist/internal/platform/errors"
)

// Set holds the active filters. A nil or empty map means that
// dimension is unconstrained
type Set struct {
	UIDs      map[uint64]struct{}
	Kinds     map[osm.ObjectType]struct{}
	Keys      map[string]struct{}
	KeyValues map[string][]string
}

// New returns an unconstrained set
func New() *Set { return &Set{} }

// Empty reports whether no filter dimension is active
func (s *Set) Empty() bool {
	return len(s.UIDs) == 0 && len(s.Kinds) == 0 && len(s.Keys) == 0 && len(s.KeyValues) == 0
}

// AddUIDs restricts output to edits authored by the given user ids
func (s *Set) AddUIDs(uids []uint64) {
	if len(uids) == 0 {
		return
	}
	if s.UIDs == nil {
		s.UIDs = make(map[uint64]struct{}, len(uids))
	}
	for _, u := range uids {
		s.UIDs[u] = struct{}{}
	}
}

// AddKinds restricts output to the named element kinds.
// Accepts long and short names ("way", "w")
func (s *Set) AddKinds(names []string) error {
	for _, n := range names {
		k, err := osm.ParseObjectType(n)
		if err != nil {
			return err
		}
		if s.Kinds == nil {
			s.Kinds = make(map[osm.ObjectType]struct{}, len(names))
		}
		s.Kinds[k] = struct{}{}
	}
	return nil
}

// AddKeys restricts emitted changes to the given tag keys
func (s *Set) AddKeys(keys []string) {
	if len(keys) == 0 {
		return
	}
	if s.Keys == nil {
		s.Keys = make(map[string]struct{}, len(keys))
	}
	for _, k := range keys {
		s.Keys[k] = struct{}{}
	}
}

// AddKeyValues parses "key=value" filter expressions. The first '='
// splits key from value, so values may themselves contain '='
func (s *Set) AddKeyValues(exprs []string) error {
	for _, e := range exprs {
		k, v, ok := strings.Cut(e, "=")
		if !ok || k == "" {
			return perr.InvalidArgf("tag filter %q is not key=value", e)
		}
		if s.KeyValues == nil {
			s.KeyValues = make(map[string][]string, len(exprs))
		}
		s.KeyValues[k] = append(s.KeyValues[k], v)
	}
	return nil
}

// AllowsRecord applies the record level dimensions (uid, kind) to one side.
// The uid filter matches the record's own author, an anonymous record
// never matches an active uid filter
func (s *Set) AllowsRecord(r *osm.Record) bool {
	if len(s.Kinds) > 0 {
		if _, ok := s.Kinds[r.Kind]; !ok {
			return false
		}
	}
	if len(s.UIDs) > 0 {
		if r.UID == nil {
			return false
		}
		if _, ok := s.UIDs[*r.UID]; !ok {
			return false
		}
	}
	return true
}

// AllowsPair keeps a pair when either side passes the record filters.
// A nil Prev contributes no vote, the decision rests on Curr alone
func (s *Set) AllowsPair(p diff.Pair) bool {
	if s.AllowsRecord(p.Curr) {
		return true
	}
	return p.Prev != nil && s.AllowsRecord(p.Prev)
}

// AllowsKey applies the key dimension only
func (s *Set) AllowsKey(key string) bool {
	if len(s.Keys) == 0 {
		return true
	}
	_, ok := s.Keys[key]
	return ok
}

// AllowsChange applies the key and key=value dimensions to one change.
// A key=value filter matches when either the old or the new value equals
// the wanted value, so both halves of a modification survive
func (s *Set) AllowsChange(c diff.TagChange) bool {
	if !s.AllowsKey(c.Key) {
		return false
	}
	if len(s.KeyValues) == 0 {
		return true
	}
	vals, ok := s.KeyValues[c.Key]
	if !ok {
		return false
	}
	for _, v := range vals {
		if (c.HadOld && c.Old == v) || (c.HasNew && c.New == v) {
			return true
		}
	}
	return false
}
