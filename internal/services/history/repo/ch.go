package repo

import (
	"context"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	perr "taghist/internal/platform/errors"
)

// CHConfig configures the clickhouse sink. The target table must
// already exist with one String column per configured output column
type CHConfig struct {
	Addr      []string
	Database  string
	Table     string
	Username  string
	Password  string
	BatchSize int
}

// CHSink streams rows into clickhouse in batches, for runs that feed
// an analytical store instead of a file
type CHSink struct {
	conn   driver.Conn
	insert string
	batch  driver.Batch
	size   int
	limit  int
}

// NewClickHouse connects and prepares the insert statement from the
// column headers
func NewClickHouse(ctx context.Context, cfg CHConfig, columns []string) (*CHSink, error) {
	if cfg.Table == "" {
		return nil, perr.Configf("clickhouse sink needs a table")
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addr,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeSink, "clickhouse connect")
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeSink, "clickhouse ping")
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = "`" + strings.ReplaceAll(c, "`", "") + "`"
	}
	limit := cfg.BatchSize
	if limit <= 0 {
		limit = 10000
	}
	return &CHSink{
		conn:   conn,
		insert: "INSERT INTO " + cfg.Table + " (" + strings.Join(quoted, ",") + ")",
		limit:  limit,
	}, nil
}

// WriteHeader is a no-op, the table schema already names the columns
func (s *CHSink) WriteHeader(context.Context, []string) error { return nil }

// WriteRow implements domain.RowSinkPort
func (s *CHSink) WriteRow(ctx context.Context, fields []string) error {
	if s.batch == nil {
		b, err := s.conn.PrepareBatch(ctx, s.insert)
		if err != nil {
			return perr.Wrap(err, perr.ErrorCodeSink, "clickhouse prepare batch")
		}
		s.batch = b
		s.size = 0
	}

	vals := make([]any, len(fields))
	for i, f := range fields {
		vals[i] = f
	}
	if err := s.batch.Append(vals...); err != nil {
		return perr.Wrap(err, perr.ErrorCodeSink, "clickhouse append")
	}
	s.size++
	if s.size >= s.limit {
		return s.flush()
	}
	return nil
}

func (s *CHSink) flush() error {
	if s.batch == nil || s.size == 0 {
		s.batch = nil
		return nil
	}
	if err := s.batch.Send(); err != nil {
		return perr.Wrap(err, perr.ErrorCodeSink, "clickhouse send batch")
	}
	s.batch = nil
	s.size = 0
	return nil
}

// Close sends any pending batch and drops the connection
func (s *CHSink) Close(context.Context) error {
	if err := s.flush(); err != nil {
		return err
	}
	if err := s.conn.Close(); err != nil {
		return perr.Wrap(err, perr.ErrorCodeSink, "clickhouse close")
	}
	return nil
}
