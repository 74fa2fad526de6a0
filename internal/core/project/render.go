package project

import (
	"context"
	"strconv"
	"time"

	"taghist/internal/core/diff"
	"taghist/internal/core/osm"
	perr "taghist/internal/platform/errors"
)

// Layout decides how many rows one tag change becomes
type Layout uint8

const (
	// LayoutOldNewValue emits one row per change with both values on it
	LayoutOldNewValue Layout = iota
	// LayoutSeparateLines emits a removal row and/or an addition row
	LayoutSeparateLines
)

// Side marks which half of a separate lines change a row represents
type Side uint8

const (
	SideBoth Side = iota
	SideRemove
	SideAdd
)

// ChooseLayout picks the layout for a run. Side dependent columns
// (value, value_count_delta) only make sense one side at a time, so
// their presence forces separate lines. force lets the caller opt in
// without configuring either column
func ChooseLayout(cols []Column, force bool) Layout {
	if force {
		return LayoutSeparateLines
	}
	for _, c := range cols {
		if c.Kind == ColValue || c.Kind == ColValueCountDelta {
			return LayoutSeparateLines
		}
	}
	return LayoutOldNewValue
}

// Sides expands one change into the row sides the layout calls for.
// Under separate lines a pure insertion or deletion is a single row,
// a value change is a removal row followed by an addition row
func Sides(l Layout, c diff.TagChange) []Side {
	if l == LayoutOldNewValue {
		return []Side{SideBoth}
	}
	out := make([]Side, 0, 2)
	if c.HadOld {
		out = append(out, SideRemove)
	}
	if c.HasNew {
		out = append(out, SideAdd)
	}
	return out
}

// TagLookup resolves a changeset id to its ordered tag pairs.
// found=false means the changeset is unknown, which renders as empty
type TagLookup interface {
	Tags(ctx context.Context, id uint64) ([]osm.TagPair, bool, error)
}

// Row is the rendered field sequence for one output row
type Row []string

// RowContext is the ambient state one row is rendered from
type RowContext struct {
	Pair   diff.Pair
	Change diff.TagChange
	Side   Side
}

// Renderer resolves configured columns against row contexts.
// Resolution is total: every column yields exactly one value per row
// or the whole run aborts. Not safe for concurrent use, the escape
// buffer and row slice are reused across calls
type Renderer struct {
	cols   []Column
	lookup TagLookup
	esc    Escaper
	row    Row
}

// NewRenderer builds a renderer. lookup may be nil when no
// changeset_tag column is configured
func NewRenderer(cols []Column, lookup TagLookup) (*Renderer, error) {
	if NeedsLookup(cols) && lookup == nil {
		return nil, perr.Configf("changeset_tag column configured without a changeset store")
	}
	return &Renderer{cols: cols, lookup: lookup, row: make(Row, len(cols))}, nil
}

// WithLookup attaches the changeset tag store after construction
func (r *Renderer) WithLookup(l TagLookup) *Renderer {
	r.lookup = l
	return r
}

// Render resolves every configured column for one row. The returned
// slice is valid until the next Render call
func (r *Renderer) Render(ctx context.Context, rc RowContext) (Row, error) {
	for i, c := range r.cols {
		v, err := r.resolve(ctx, c, rc)
		if err != nil {
			return nil, err
		}
		r.row[i] = v
	}
	return r.row, nil
}

func (r *Renderer) resolve(ctx context.Context, c Column, rc RowContext) (string, error) {
	cur := rc.Pair.Curr
	switch c.Kind {
	case ColKey:
		return r.esc.Escape(rc.Change.Key), nil
	case ColNewValue:
		return r.esc.Escape(rc.Change.New), nil
	case ColOldValue:
		return r.esc.Escape(rc.Change.Old), nil
	case ColValue:
		if rc.Side == SideRemove {
			return r.esc.Escape(rc.Change.Old), nil
		}
		return r.esc.Escape(rc.Change.New), nil
	case ColID:
		return cur.CompactID(), nil
	case ColRawID:
		return strconv.FormatInt(cur.ID, 10), nil
	case ColObjectTypeShort:
		return cur.Kind.Short(), nil
	case ColObjectTypeLong:
		return cur.Kind.Long(), nil
	case ColNewVersion:
		return strconv.FormatInt(cur.Version, 10), nil
	case ColOldVersion:
		if rc.Pair.Prev == nil {
			return "", nil
		}
		return strconv.FormatInt(rc.Pair.Prev.Version, 10), nil
	case ColISODatetime:
		if cur.Timestamp.IsZero() {
			return "", perr.DecodeContractf("tagged record %s v%d has no timestamp", cur.CompactID(), cur.Version)
		}
		return cur.Timestamp.UTC().Format(time.RFC3339), nil
	case ColEpochDatetime:
		if cur.Timestamp.IsZero() {
			return "", perr.DecodeContractf("tagged record %s v%d has no timestamp", cur.CompactID(), cur.Version)
		}
		return strconv.FormatInt(cur.Timestamp.Unix(), 10), nil
	case ColUsername:
		if cur.User == nil {
			return "", perr.DecodeContractf("tagged record %s v%d has no username", cur.CompactID(), cur.Version)
		}
		return r.esc.Escape(*cur.User), nil
	case ColUID:
		if cur.UID == nil {
			return "", perr.DecodeContractf("tagged record %s v%d has no uid", cur.CompactID(), cur.Version)
		}
		return strconv.FormatUint(*cur.UID, 10), nil
	case ColChangesetID:
		if cur.Changeset == nil {
			return "", perr.DecodeContractf("tagged record %s v%d has no changeset id", cur.CompactID(), cur.Version)
		}
		return strconv.FormatUint(*cur.Changeset, 10), nil
	case ColChangesetTag:
		return r.changesetTag(ctx, c.Arg, cur)
	case ColTagCountDelta:
		switch {
		case !rc.Change.HadOld && rc.Change.HasNew:
			return "+1", nil
		case rc.Change.HadOld && !rc.Change.HasNew:
			return "-1", nil
		default:
			return "0", nil
		}
	case ColValueCountDelta:
		if rc.Side == SideRemove {
			return "-1", nil
		}
		return "+1", nil
	}
	return "", perr.Configf("unresolvable column kind %d", c.Kind)
}

func (r *Renderer) changesetTag(ctx context.Context, name string, cur *osm.Record) (string, error) {
	if cur.Changeset == nil {
		return "", perr.DecodeContractf("tagged record %s v%d has no changeset id", cur.CompactID(), cur.Version)
	}
	pairs, found, err := r.lookup.Tags(ctx, *cur.Changeset)
	if err != nil {
		return "", err
	}
	if !found {
		return "", nil
	}
	for _, p := range pairs {
		if p.K == name {
			return r.esc.Escape(p.V), nil
		}
	}
	return "", nil
}
