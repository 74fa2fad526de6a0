package store

import (
	"context"
	"database/sql"
	"errors"
)

// liteAdapter wraps *sql.DB (modernc sqlite) and implements RowQuerier
type liteAdapter struct {
	db *sql.DB
}

func newLiteAdapter(db *sql.DB) *liteAdapter { return &liteAdapter{db: db} }

func (a *liteAdapter) Ping(ctx context.Context) error {
	if a == nil || a.db == nil {
		return errors.New("sqlite: nil adapter")
	}
	return a.db.PingContext(ctx)
}

func (a *liteAdapter) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

func (a *liteAdapter) Query(ctx context.Context, q string, args ...any) (Rows, error) {
	rs, err := a.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return liteRows{r: rs}, nil
}

func (a *liteAdapter) QueryRow(ctx context.Context, q string, args ...any) Row {
	return a.db.QueryRowContext(ctx, q, args...)
}

type liteRows struct{ r *sql.Rows }

func (x liteRows) Next() bool            { return x.r.Next() }
func (x liteRows) Scan(dst ...any) error { return x.r.Scan(dst...) }
func (x liteRows) Err() error            { return x.r.Err() }
func (x liteRows) Close()                { _ = x.r.Close() }
