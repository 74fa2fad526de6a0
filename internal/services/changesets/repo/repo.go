// Package repo implements the changeset tag stores.
// Both backends read the same table shape: changeset_tags(id, other_tags)
// with other_tags holding a JSON array of [key, value] pairs
package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"taghist/internal/core/osm"
	perr "taghist/internal/platform/errors"
	"taghist/internal/platform/store"
)

// Storage is the repo surface the service binds to
type Storage interface {
	Tags(ctx context.Context, id uint64) ([]osm.TagPair, bool, error)
}

type (
	pg   struct{ q store.RowQuerier }
	lite struct{ q store.RowQuerier }
)

// NewPG builds the postgres backed store
func NewPG(q store.RowQuerier) Storage { return &pg{q: q} }

// NewLite builds the sqlite file backed store, the format the
// changeset tag extraction tooling produces
func NewLite(q store.RowQuerier) Storage { return &lite{q: q} }

func (s *pg) Tags(ctx context.Context, id uint64) ([]osm.TagPair, bool, error) {
	row := s.q.QueryRow(ctx, `SELECT other_tags FROM changeset_tags WHERE id = $1`, id)
	return scanTags(row, id)
}

func (s *lite) Tags(ctx context.Context, id uint64) ([]osm.TagPair, bool, error) {
	row := s.q.QueryRow(ctx, `SELECT other_tags FROM changeset_tags WHERE id = ?`, id)
	return scanTags(row, id)
}

func scanTags(row store.Row, id uint64) ([]osm.TagPair, bool, error) {
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, classifyStoreErr(err)
	}
	pairs, err := decodeTags(payload)
	if err != nil {
		return nil, false, perr.Storef("changeset %d payload corrupt: %v", id, err)
	}
	return pairs, true, nil
}

// classifyStoreErr maps the recognisable setup mistakes to explicit
// messages, anything else keeps the driver detail via StoreErr
func classifyStoreErr(err error) error {
	switch {
	case perr.IsUndefinedTable(err):
		return perr.Wrap(err, perr.ErrorCodeStore, "changeset store has no changeset_tags table")
	case perr.IsSqliteCorrupt(err):
		return perr.Wrap(err, perr.ErrorCodeStore, "changeset store file is corrupt or not a sqlite database")
	default:
		return perr.StoreErr(err, "changeset tag query")
	}
}

// decodeTags parses the stored JSON pair array, preserving order.
// Entries that are not exactly two strings mean the store is corrupt
func decodeTags(payload []byte) ([]osm.TagPair, error) {
	var raw [][]string
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}
	pairs := make([]osm.TagPair, 0, len(raw))
	for _, e := range raw {
		if len(e) != 2 {
			return nil, errors.New("tag entry is not a [key, value] pair")
		}
		pairs = append(pairs, osm.TagPair{K: e[0], V: e[1]})
	}
	return pairs, nil
}
