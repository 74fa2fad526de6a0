// Package project turns tag changes into ordered row fields.
// Column parsing, per row rendering, layout policy and field escaping
// live here; sinks decide delimiters and quoting
package project

import (
	"strings"

	perr "taghist/internal/platform/errors"
)

// ColumnKind enumerates the closed set of renderable columns
type ColumnKind uint8

const (
	ColKey ColumnKind = iota
	ColNewValue
	ColOldValue
	ColValue
	ColID
	ColRawID
	ColObjectTypeShort
	ColObjectTypeLong
	ColNewVersion
	ColOldVersion
	ColISODatetime
	ColEpochDatetime
	ColUsername
	ColUID
	ColChangesetID
	ColChangesetTag
	ColTagCountDelta
	ColValueCountDelta
)

// Column is one configured output column. Arg carries the changeset
// tag name for ColChangesetTag and is empty otherwise
type Column struct {
	Kind ColumnKind
	Arg  string
}

// changesetTagPrefix selects a named tag from the changeset lookup
const changesetTagPrefix = "changeset_tag:"

var colNames = map[string]ColumnKind{
	"key":               ColKey,
	"new_value":         ColNewValue,
	"old_value":         ColOldValue,
	"value":             ColValue,
	"id":                ColID,
	"raw_id":            ColRawID,
	"object_type_short": ColObjectTypeShort,
	"object_type_long":  ColObjectTypeLong,
	"new_version":       ColNewVersion,
	"old_version":       ColOldVersion,
	"datetime":          ColISODatetime,
	"epoch_time":        ColEpochDatetime,
	"username":          ColUsername,
	"uid":               ColUID,
	"changeset_id":      ColChangesetID,
	"tag_count_delta":   ColTagCountDelta,
	"value_count_delta": ColValueCountDelta,
}

// ParseColumn resolves one column name. Unknown names are a
// configuration error and abort the run before any input is read
func ParseColumn(name string) (Column, error) {
	if tag, ok := strings.CutPrefix(name, changesetTagPrefix); ok {
		if tag == "" {
			return Column{}, perr.Configf("column %q needs a tag name after the colon", name)
		}
		return Column{Kind: ColChangesetTag, Arg: tag}, nil
	}
	k, ok := colNames[name]
	if !ok {
		return Column{}, perr.Configf("unknown column %q", name)
	}
	return Column{Kind: k}, nil
}

// ParseColumns resolves a comma separated or pre split column list
func ParseColumns(names []string) ([]Column, error) {
	cols := make([]Column, 0, len(names))
	for _, n := range names {
		c, err := ParseColumn(strings.TrimSpace(n))
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, nil
}

// DefaultColumns is the projection used when the caller configures none.
// epoch swaps the human readable datetime for seconds since epoch
func DefaultColumns(epoch bool) []Column {
	ts := Column{Kind: ColISODatetime}
	if epoch {
		ts = Column{Kind: ColEpochDatetime}
	}
	return []Column{
		{Kind: ColKey},
		{Kind: ColNewValue},
		{Kind: ColOldValue},
		{Kind: ColID},
		{Kind: ColNewVersion},
		{Kind: ColOldVersion},
		ts,
		{Kind: ColUsername},
		{Kind: ColUID},
		{Kind: ColChangesetID},
	}
}

var headerNames = [...]string{
	ColKey:             "key",
	ColNewValue:        "new_value",
	ColOldValue:        "old_value",
	ColValue:           "value",
	ColID:              "id",
	ColRawID:           "raw_id",
	ColObjectTypeShort: "object_type_short",
	ColObjectTypeLong:  "object_type_long",
	ColNewVersion:      "new_version",
	ColOldVersion:      "old_version",
	ColISODatetime:     "datetime",
	ColEpochDatetime:   "epoch_time",
	ColUsername:        "username",
	ColUID:             "uid",
	ColChangesetID:     "changeset_id",
	ColChangesetTag:    "changeset_tag",
	ColTagCountDelta:   "tag_count_delta",
	ColValueCountDelta: "value_count_delta",
}

// Header returns the column's header cell
func (c Column) Header() string {
	if c.Kind == ColChangesetTag {
		return "changeset_" + c.Arg
	}
	return headerNames[c.Kind]
}

// Headers renders the header row for a column list
func Headers(cols []Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Header()
	}
	return out
}

// NeedsLookup reports whether any column consults the changeset tag store
func NeedsLookup(cols []Column) bool {
	for _, c := range cols {
		if c.Kind == ColChangesetTag {
			return true
		}
	}
	return false
}
