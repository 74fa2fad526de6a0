package errors

// Backend-specific helpers for mapping changeset store driver errors to
// project ErrorCodes. The lookup stores are read-only, so only a handful of
// SQLSTATE / sqlite result codes matter here.

import (
	stderrs "errors"

	"github.com/jackc/pgx/v5/pgconn"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLSTATE codes we care about on the read path
const (
	pgErrUndefinedTable        = "42P01"
	pgErrInsufficientPrivilege = "42501"
	pgErrConnectionFailure     = "08006"
	pgErrCannotConnectNow      = "57P03" // i.e. startup in progress
)

// ExtractPgError returns (*pgconn.PgError, true) if the root cause is a PgError.
func ExtractPgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if stderrs.As(Root(err), &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// IsSQLState reports whether the error is a Postgres error with the given SQLSTATE code
func IsSQLState(err error, code string) bool {
	pgErr, ok := ExtractPgError(err)
	return ok && pgErr.Code == code
}

// IsUndefinedTable reports whether the changeset table is missing
func IsUndefinedTable(err error) bool { return IsSQLState(err, pgErrUndefinedTable) }

// IsConnectionUnavailable reports whether the backend cannot accept connections yet
func IsConnectionUnavailable(err error) bool {
	return IsSQLState(err, pgErrConnectionFailure) || IsSQLState(err, pgErrCannotConnectNow)
}

// ExtractSqliteError returns (*sqlite.Error, true) if the root cause is a sqlite driver error
func ExtractSqliteError(err error) (*sqlite.Error, bool) {
	var se *sqlite.Error
	if stderrs.As(Root(err), &se) {
		return se, true
	}
	return nil, false
}

// IsSqliteCorrupt reports whether the changeset database file is corrupted or not a database
func IsSqliteCorrupt(err error) bool {
	se, ok := ExtractSqliteError(err)
	if !ok {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CORRUPT, sqlite3.SQLITE_NOTADB:
		return true
	}
	return false
}

// StoreErr wraps any driver error as an ErrorCodeStore error with a stable message.
// A nil err returns nil so callers can wrap unconditionally
func StoreErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	if pgErr, ok := ExtractPgError(err); ok {
		return Wrapf(err, ErrorCodeStore, "%s (sqlstate %s)", msg, pgErr.Code)
	}
	if se, ok := ExtractSqliteError(err); ok {
		return Wrapf(err, ErrorCodeStore, "%s (sqlite code %d)", msg, se.Code())
	}
	return Wrap(err, ErrorCodeStore, msg)
}
