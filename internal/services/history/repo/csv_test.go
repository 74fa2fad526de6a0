package repo

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"

	perr "taghist/internal/platform/errors"
	"taghist/internal/platform/testkit"
)

func TestWantGzip(t *testing.T) {
	cases := []struct {
		path, comp string
		want       bool
		ok         bool
	}{
		{"-", CompressionAuto, false, true},
		{"out.csv", CompressionAuto, false, true},
		{"out.csv.gz", CompressionAuto, true, true},
		{"out.dat", CompressionAuto, false, false},
		{"out.dat", CompressionNone, false, true},
		{"out.dat", CompressionGzip, true, true},
		{"out.csv", "", false, true},
		{"out.csv", "zstd", false, false},
	}
	for _, c := range cases {
		got, err := wantGzip(CSVConfig{Path: c.path, Compression: c.comp})
		if c.ok && err != nil {
			t.Fatalf("wantGzip(%q,%q): %v", c.path, c.comp, err)
		}
		if !c.ok {
			if err == nil {
				t.Fatalf("wantGzip(%q,%q) expected error", c.path, c.comp)
			}
			if perr.CodeOf(err) != perr.ErrorCodeConfig {
				t.Fatalf("wantGzip(%q,%q) code = %v", c.path, c.comp, perr.CodeOf(err))
			}
			continue
		}
		if got != c.want {
			t.Fatalf("wantGzip(%q,%q) = %v, want %v", c.path, c.comp, got, c.want)
		}
	}
}

func TestCSVSinkPlainFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	s, err := NewCSV(CSVConfig{Path: path, Compression: CompressionAuto})
	if err != nil {
		t.Fatalf("NewCSV: %v", err)
	}
	ctx := context.Background()
	if err := s.WriteHeader(ctx, []string{"key", "new_value"}); err != nil {
		t.Fatalf("header: %v", err)
	}
	if err := s.WriteRow(ctx, []string{"name", "Main, Street"}); err != nil {
		t.Fatalf("row: %v", err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	testkit.MustRows(t, rows, 2)
	if rows[0][0] != "key" || rows[1][1] != "Main, Street" {
		t.Fatalf("rows = %v", rows)
	}
}

func TestCSVSinkGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv.gz")
	s, err := NewCSV(CSVConfig{Path: path, Compression: CompressionAuto})
	if err != nil {
		t.Fatalf("NewCSV: %v", err)
	}
	ctx := context.Background()
	if err := s.WriteRow(ctx, []string{"highway", "track", "path"}); err != nil {
		t.Fatalf("row: %v", err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	rows, err := csv.NewReader(zr).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	testkit.MustRows(t, rows, 1)
	if rows[0][0] != "highway" {
		t.Fatalf("rows = %v", rows)
	}
}

func TestCSVSinkStdoutRejectsExplicitGzip(t *testing.T) {
	if _, err := NewCSV(CSVConfig{Path: "-", Compression: CompressionGzip}); err == nil {
		t.Fatal("expected config error")
	}
}

func TestCSVSinkBadSuffixUnderAuto(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")
	if _, err := NewCSV(CSVConfig{Path: path, Compression: CompressionAuto}); err == nil {
		t.Fatal("expected config error for undecidable suffix")
	}
}
