// Package store provides a unified interface to optional storage backends
package store

import (
	"context"
	"errors"

	"taghist/internal/platform/logger"
)

// Store is the facade for optional backends
// zero value is safe but does nothing
type Store struct {
	// Log is the logger used by subclients
	// zero means a no op zerolog logger
	Log logger.Logger

	// PG is the postgres sql seam, nil when disabled
	PG RowQuerier

	// Lite is the sqlite file seam, nil when disabled
	Lite RowQuerier
}

// Row exposes the minimal scan contract a single row needs
type Row interface {
	Scan(dest ...any) error
}

// Rows exposes the minimal iteration and scan for a result set
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// RowQuerier is the read surface repos use for sql
// the changeset stores are read-only, so there is no exec or tx seam
type RowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// Pinger is any seam that can report readiness
type Pinger interface{ Ping(context.Context) error }

// Open constructs a Store with the requested backends
// backends not enabled in cfg remain nil on the Store
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	s := &Store{}
	for _, o := range opts {
		if err := o(s); err != nil {
			return nil, err
		}
	}

	// defaults for zero logger to avoid nil checks
	s.Log = s.Log.With().Logger()

	if cfg.PG.Enabled {
		q, err := openPG(ctx, cfg, s)
		if err != nil {
			return nil, err
		}
		s.PG = q
	}

	if cfg.Lite.Enabled {
		q, err := openLite(ctx, cfg, s)
		if err != nil {
			return nil, err
		}
		s.Lite = q
	}

	return s, nil
}

// Querier returns whichever sql seam is configured, preferring postgres
// when both are enabled; nil when none is
func (s *Store) Querier() RowQuerier {
	if s == nil {
		return nil
	}
	if s.PG != nil {
		return s.PG
	}
	return s.Lite
}

// Guard verifies all configured seams the Store knows about
func (s *Store) Guard(ctx context.Context) error {
	if s == nil {
		return errors.New("nil store")
	}
	var errs []error
	for _, q := range []RowQuerier{s.PG, s.Lite} {
		if q == nil {
			continue
		}
		if p, ok := q.(Pinger); ok {
			if err := p.Ping(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes all initialized backends gracefully
// nil backends are ignored
func (s *Store) Close(ctx context.Context) error {
	var errs []error
	for _, q := range []RowQuerier{s.PG, s.Lite} {
		if c, ok := q.(interface{ Close() error }); ok {
			if e := c.Close(); e != nil {
				errs = append(errs, e)
			}
		}
	}
	return errors.Join(errs...)
}
