package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"taghist/internal/core/osm"
	"taghist/internal/core/project"
	"taghist/internal/core/tagfilter"
	perr "taghist/internal/platform/errors"
	"taghist/internal/services/history/domain"
)

type sliceSource struct {
	recs []*osm.Record
	i    int
}

func (s *sliceSource) Next(context.Context) (*osm.Record, error) {
	if s.i >= len(s.recs) {
		return nil, io.EOF
	}
	r := s.recs[s.i]
	s.i++
	return r, nil
}

type memSink struct {
	header []string
	rows   [][]string
	errOn  int // fail the nth WriteRow, 0 disables
}

func (m *memSink) WriteHeader(_ context.Context, f []string) error {
	m.header = append([]string{}, f...)
	return nil
}

func (m *memSink) WriteRow(_ context.Context, f []string) error {
	if m.errOn > 0 && len(m.rows)+1 == m.errOn {
		return perr.Sinkf("disk full")
	}
	m.rows = append(m.rows, append([]string{}, f...))
	return nil
}

func (m *memSink) Close(context.Context) error { return nil }

func sptr(s string) *string { return &s }
func uptr(v uint64) *uint64 { return &v }

func rec(k osm.ObjectType, id, v int64, tags map[string]string) *osm.Record {
	return &osm.Record{
		Kind:      k,
		ID:        id,
		Version:   v,
		Timestamp: time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC),
		User:      sptr("mapper"),
		UID:       uptr(7),
		Changeset: uptr(500),
		Tags:      tags,
	}
}

func runWith(t *testing.T, recs []*osm.Record, cols []project.Column, cfg Config) (*memSink, domain.Stats, error) {
	t.Helper()
	if cols == nil {
		cols = project.DefaultColumns(false)
	}
	if cfg.Columns == nil {
		cfg.Columns = cols
	}
	r, err := project.NewRenderer(cfg.Columns, nil)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	sink := &memSink{}
	svc := New(zerolog.Nop(), nil, &sliceSource{recs: recs}, sink, r, cfg)
	st, err := svc.Run(context.Background())
	return sink, st, err
}

func TestRunEmitsRowPerChangedTag(t *testing.T) {
	recs := []*osm.Record{
		rec(osm.Node, 1, 1, map[string]string{"highway": "path", "name": "Old"}),
		rec(osm.Node, 1, 2, map[string]string{"highway": "track", "name": "Old"}),
	}
	sink, st, err := runWith(t, recs, nil, Config{Header: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sink.header) == 0 || sink.header[0] != "key" {
		t.Fatalf("header = %v", sink.header)
	}
	// v1 opens the entity: two insertions. v2 changes highway only
	if len(sink.rows) != 3 {
		t.Fatalf("rows = %v", sink.rows)
	}
	last := sink.rows[2]
	if last[0] != "highway" || last[1] != "track" || last[2] != "path" {
		t.Fatalf("change row = %v", last)
	}
	if st.RecordsRead != 2 || st.RowsEmitted != 3 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestRunUnsortedStreamAborts(t *testing.T) {
	recs := []*osm.Record{
		rec(osm.Node, 1, 2, map[string]string{"a": "1"}),
		rec(osm.Node, 1, 1, map[string]string{"a": "2"}),
	}
	sink, _, err := runWith(t, recs, nil, Config{})
	if err == nil {
		t.Fatal("expected ordering error")
	}
	if perr.CodeOf(err) != perr.ErrorCodeUnsortedInput {
		t.Fatalf("code = %v", perr.CodeOf(err))
	}
	// only the first record's insertion row may exist
	if len(sink.rows) != 1 {
		t.Fatalf("rows past the last good pair: %v", sink.rows)
	}
}

func TestRunEntityBoundaryIsPureInsertion(t *testing.T) {
	recs := []*osm.Record{
		rec(osm.Node, 1, 1, map[string]string{"a": "1"}),
		rec(osm.Node, 2, 1, map[string]string{"a": "1"}),
	}
	cols := []project.Column{
		{Kind: project.ColKey},
		{Kind: project.ColNewValue},
		{Kind: project.ColOldValue},
		{Kind: project.ColOldVersion},
	}
	sink, _, err := runWith(t, recs, cols, Config{Columns: cols})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sink.rows) != 2 {
		t.Fatalf("rows = %v", sink.rows)
	}
	second := sink.rows[1]
	// same tag value, but a different entity: pure insertion, no old version
	if second[1] != "1" || second[2] != "" || second[3] != "" {
		t.Fatalf("boundary row = %v", second)
	}
}

func TestRunSeparateLinesLayout(t *testing.T) {
	recs := []*osm.Record{
		rec(osm.Way, 1, 1, map[string]string{"oneway": "yes"}),
		rec(osm.Way, 1, 2, map[string]string{"oneway": "no"}),
	}
	cols := []project.Column{
		{Kind: project.ColKey},
		{Kind: project.ColValue},
		{Kind: project.ColValueCountDelta},
	}
	sink, _, err := runWith(t, recs, cols, Config{
		Columns: cols,
		Layout:  project.LayoutSeparateLines,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// v1: brand new tag, one addition row. v2: value change, two rows
	if len(sink.rows) != 3 {
		t.Fatalf("rows = %v", sink.rows)
	}
	if sink.rows[0][1] != "yes" || sink.rows[0][2] != "+1" {
		t.Fatalf("insert row = %v", sink.rows[0])
	}
	if sink.rows[1][1] != "yes" || sink.rows[1][2] != "-1" {
		t.Fatalf("removal row = %v", sink.rows[1])
	}
	if sink.rows[2][1] != "no" || sink.rows[2][2] != "+1" {
		t.Fatalf("addition row = %v", sink.rows[2])
	}
}

func TestRunRecordFilters(t *testing.T) {
	f := tagfilter.New()
	f.AddUIDs([]uint64{999})

	recs := []*osm.Record{
		rec(osm.Node, 1, 1, map[string]string{"a": "1"}),
		rec(osm.Node, 1, 2, map[string]string{"a": "2"}),
	}
	sink, st, err := runWith(t, recs, nil, Config{Filters: f})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sink.rows) != 0 {
		t.Fatalf("filtered run emitted rows: %v", sink.rows)
	}
	if st.RecordsRead != 2 || st.PairsCompared != 0 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestRunTagKeyFilter(t *testing.T) {
	f := tagfilter.New()
	f.AddKeys([]string{"highway"})

	recs := []*osm.Record{
		rec(osm.Node, 1, 1, map[string]string{"highway": "path", "name": "X"}),
	}
	sink, _, err := runWith(t, recs, nil, Config{Filters: f})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sink.rows) != 1 || sink.rows[0][0] != "highway" {
		t.Fatalf("rows = %v", sink.rows)
	}
}

func TestRunEmptyStreamIsNoOp(t *testing.T) {
	sink, st, err := runWith(t, nil, nil, Config{Header: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sink.rows) != 0 || st.RecordsRead != 0 {
		t.Fatalf("empty stream produced output: %+v", st)
	}
	if len(sink.header) == 0 {
		t.Fatal("header should still be written")
	}
}

func TestRunUntaggedRecordsSkipped(t *testing.T) {
	recs := []*osm.Record{
		rec(osm.Node, 1, 1, nil),
		rec(osm.Node, 1, 2, nil),
	}
	sink, st, err := runWith(t, recs, nil, Config{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sink.rows) != 0 || st.PairsCompared != 0 {
		t.Fatalf("untagged records reached the diff: %+v", st)
	}
}

func TestRunSinkErrorIsFatal(t *testing.T) {
	recs := []*osm.Record{
		rec(osm.Node, 1, 1, map[string]string{"a": "1"}),
	}
	cols := project.DefaultColumns(false)
	r, _ := project.NewRenderer(cols, nil)
	sink := &memSink{errOn: 1}
	svc := New(zerolog.Nop(), nil, &sliceSource{recs: recs}, sink, r, Config{Columns: cols})
	_, err := svc.Run(context.Background())
	if err == nil {
		t.Fatal("expected sink error")
	}
	if perr.CodeOf(err) != perr.ErrorCodeSink {
		t.Fatalf("code = %v, want Sink", perr.CodeOf(err))
	}
}

func TestRunObservesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cols := project.DefaultColumns(false)
	r, _ := project.NewRenderer(cols, nil)
	svc := New(zerolog.Nop(), nil, &sliceSource{recs: []*osm.Record{
		rec(osm.Node, 1, 1, map[string]string{"a": "1"}),
	}}, &memSink{}, r, Config{Columns: cols})

	if _, err := svc.Run(ctx); err == nil {
		t.Fatal("expected context error")
	}
}
