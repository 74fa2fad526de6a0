// Package repo implements the row sinks
package repo

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	perr "taghist/internal/platform/errors"
)

// Compression policies for the csv sink
const (
	CompressionNone = "none"
	CompressionAuto = "auto"
	CompressionGzip = "gzip"
)

// CSVConfig configures the csv sink. Path "-" writes to stdout
type CSVConfig struct {
	Path        string
	Compression string
}

// CSVSink writes rows as csv, optionally gzip compressed.
// The csv writer performs its own quoting on top of the control
// character escaping already present in the fields
type CSVSink struct {
	w    *csv.Writer
	gz   *gzip.Writer
	file *os.File
}

// NewCSV opens the sink. Under auto compression the file suffix
// decides: .gz compresses, .csv does not, anything else is a
// configuration error. Stdout is never compressed automatically
func NewCSV(cfg CSVConfig) (*CSVSink, error) {
	if (cfg.Path == "" || cfg.Path == "-") && cfg.Compression == CompressionGzip {
		return nil, perr.Configf("explicit gzip to stdout is not supported")
	}
	gzipped, err := wantGzip(cfg)
	if err != nil {
		return nil, err
	}

	var out io.Writer
	s := &CSVSink{}
	if cfg.Path == "" || cfg.Path == "-" {
		out = os.Stdout
	} else {
		f, err := os.Create(cfg.Path)
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeSink, "open output")
		}
		s.file = f
		out = f
	}
	if gzipped {
		s.gz = gzip.NewWriter(out)
		out = s.gz
	}

	s.w = csv.NewWriter(out)
	return s, nil
}

func wantGzip(cfg CSVConfig) (bool, error) {
	switch cfg.Compression {
	case CompressionNone, "":
		return false, nil
	case CompressionGzip:
		return true, nil
	case CompressionAuto:
		if cfg.Path == "" || cfg.Path == "-" {
			return false, nil
		}
		switch {
		case strings.HasSuffix(cfg.Path, ".gz"):
			return true, nil
		case strings.HasSuffix(cfg.Path, ".csv"):
			return false, nil
		}
		return false, perr.Configf("cannot infer compression from %q, pass none or gzip", cfg.Path)
	}
	return false, perr.Configf("unknown compression %q", cfg.Compression)
}

// WriteHeader implements domain.RowSinkPort
func (s *CSVSink) WriteHeader(ctx context.Context, fields []string) error {
	return s.WriteRow(ctx, fields)
}

// WriteRow implements domain.RowSinkPort
func (s *CSVSink) WriteRow(_ context.Context, fields []string) error {
	if err := s.w.Write(fields); err != nil {
		return perr.Sinkf("csv write: %v", err)
	}
	return nil
}

// Close flushes and releases everything in order
func (s *CSVSink) Close(context.Context) error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return perr.Sinkf("csv flush: %v", err)
	}
	if s.gz != nil {
		if err := s.gz.Close(); err != nil {
			return perr.Sinkf("gzip close: %v", err)
		}
	}
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			return perr.Sinkf("close output: %v", err)
		}
	}
	return nil
}
