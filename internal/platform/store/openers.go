package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	perr "taghist/internal/platform/errors"
	"taghist/internal/platform/store/pg"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

// openPG opens pg and wraps it with our sql adapter
func openPG(ctx context.Context, cfg Config, s *Store) (RowQuerier, error) {
	var tracer pg.QueryTracer
	if cfg.PG.LogSQL {
		tracer = pg.Tracer(s.Log)
	}

	p, err := pg.Open(ctx, pg.Config{
		URL:      cfg.PG.URL,
		MaxConns: cfg.PG.MaxConns,
		SlowMs:   cfg.PG.SlowQueryMs,
	}, tracer, nil)
	if err != nil {
		return nil, err
	}

	// Connection guardrails: ping with retry/backoff using the *pool* directly
	maxAttempts := cfg.PG.ConnectRetries
	if maxAttempts <= 0 {
		maxAttempts = 20
	}
	pingTimeout := cfg.PG.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 3 * time.Second
	}
	const (
		backoffStart   = 150 * time.Millisecond
		backoffCeiling = 2 * time.Second
	)

	var lastErr error
	backoff := backoffStart
	for i := 0; i < maxAttempts; i++ {
		toCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		lastErr = p.Pool.Ping(toCtx)
		cancel()

		if lastErr == nil {
			return newPGAdapter(p), nil // publish adapter only after the pool is healthy
		}
		if ctx.Err() != nil {
			p.Close() // close the pool we opened
			return nil, ctx.Err()
		}
		time.Sleep(backoff)
		if backoff < backoffCeiling {
			backoff *= 2
			if backoff > backoffCeiling {
				backoff = backoffCeiling
			}
		}
	}

	p.Close()
	return nil, pingFailure(maxAttempts, lastErr)
}

// pingFailure shapes the terminal connect error once retries run out.
// A server that answered but reported it cannot take connections yet
// gets called out as such, dial level failures keep the raw detail
func pingFailure(attempts int, err error) error {
	if perr.IsConnectionUnavailable(err) {
		return perr.Wrapf(err, perr.ErrorCodeStore, "postgres is not accepting connections after %d attempts", attempts)
	}
	return perr.Wrapf(err, perr.ErrorCodeStore, "postgres ping failed after %d attempts", attempts)
}

// openLite opens a local sqlite file via database/sql and wraps it with our adapter
func openLite(ctx context.Context, cfg Config, _ *Store) (RowQuerier, error) {
	path := strings.TrimSpace(cfg.Lite.Path)
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dsn := filepath.Clean(path) + "?_busy_timeout=5000"
	if cfg.Lite.ReadOnly {
		dsn = "file:" + filepath.Clean(path) + "?mode=ro&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// single connection; the run is single threaded and sqlite dislikes more
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return newLiteAdapter(db), nil
}
