package module

import (
	"context"
	"io"
	"testing"
	"time"

	"taghist/internal/core/osm"
	"taghist/internal/core/project"
	"taghist/internal/modkit"
	"taghist/internal/platform/config"
	perr "taghist/internal/platform/errors"
	"taghist/internal/platform/testkit"
	"taghist/internal/services/history/domain"
)

type emptySource struct{}

func (emptySource) Next(context.Context) (*osm.Record, error) { return nil, io.EOF }

type nullSink struct{}

func (nullSink) WriteHeader(context.Context, []string) error { return nil }
func (nullSink) WriteRow(context.Context, []string) error    { return nil }
func (nullSink) Close(context.Context) error                 { return nil }

func TestFromConfigDefaults(t *testing.T) {
	o, err := FromConfig(config.New())
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if !o.Header || o.Output != "-" || o.Compression != "auto" {
		t.Fatalf("defaults = %+v", o)
	}
	if len(o.Columns) != 0 || len(o.UIDs) != 0 {
		t.Fatalf("defaults should leave lists empty: %+v", o)
	}
}

func TestFromConfigReadsEnv(t *testing.T) {
	t.Setenv("TAGHIST_COLUMNS", "key,new_value,uid")
	t.Setenv("TAGHIST_UIDS", "10, 20")
	t.Setenv("TAGHIST_KINDS", "node,way")
	t.Setenv("TAGHIST_TAG_FILTERS", "highway=primary")
	t.Setenv("TAGHIST_HEADER", "false")
	t.Setenv("TAGHIST_PROGRESS_EVERY", "30s")

	o, err := FromConfig(config.New())
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if len(o.Columns) != 3 || o.Columns[2] != "uid" {
		t.Fatalf("columns = %v", o.Columns)
	}
	if len(o.UIDs) != 2 || o.UIDs[1] != 20 {
		t.Fatalf("uids = %v", o.UIDs)
	}
	if o.Header {
		t.Fatal("header should be off")
	}
	if o.ProgressEvery != 30*time.Second {
		t.Fatalf("progress = %v", o.ProgressEvery)
	}
}

func TestFromConfigBadUID(t *testing.T) {
	t.Setenv("TAGHIST_UIDS", "ten")
	_, err := FromConfig(config.New())
	if err == nil {
		t.Fatal("expected error for non numeric uid")
	}
	if perr.CodeOf(err) != perr.ErrorCodeConfig {
		t.Fatalf("code = %v", perr.CodeOf(err))
	}
}

type stubLookup struct{}

func (stubLookup) Tags(context.Context, uint64) ([]osm.TagPair, bool, error) {
	return nil, false, nil
}

func newModule(t *testing.T, o domain.Options, opts ...modkit.Option) (*Module, error) {
	t.Helper()
	return New(modkit.Deps{}, Params{
		Source:  emptySource{},
		Sink:    nullSink{},
		Options: o,
	}, opts...)
}

func TestNewBuildsRunner(t *testing.T) {
	m, err := newModule(t, domain.Defaults())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m.Name() != "history" {
		t.Fatalf("name = %q", m.Name())
	}
	ports, ok := m.Ports().(Ports)
	if !ok || ports.Runner == nil {
		t.Fatalf("ports = %#v", m.Ports())
	}
	if m.Layout() != project.LayoutOldNewValue {
		t.Fatal("default layout should be old/new")
	}
	if len(m.Columns()) == 0 {
		t.Fatal("columns should resolve to defaults")
	}
	if _, err := ports.Runner.Run(context.Background()); err != nil {
		t.Fatalf("empty run: %v", err)
	}
}

func TestNewRejectsUnknownColumn(t *testing.T) {
	o := domain.Defaults()
	o.Columns = []string{"key", "bogus"}
	_, err := newModule(t, o)
	if err == nil {
		t.Fatal("expected config error")
	}
	if perr.CodeOf(err) != perr.ErrorCodeConfig {
		t.Fatalf("code = %v", perr.CodeOf(err))
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	o := domain.Defaults()
	o.Compression = "zstd"
	if _, err := newModule(t, o); err == nil {
		t.Fatal("expected validation error")
	}

	o = domain.Defaults()
	o.Kinds = []string{"polygon"}
	if _, err := newModule(t, o); err == nil {
		t.Fatal("expected kind parse error")
	}

	o = domain.Defaults()
	o.TagValues = []string{"noequals"}
	if _, err := newModule(t, o); err == nil {
		t.Fatal("expected tag filter parse error")
	}
}

func TestNewChangesetTagColumnNeedsLookup(t *testing.T) {
	o := domain.Defaults()
	o.Columns = []string{"key", "changeset_tag:comment"}
	_, err := newModule(t, o)
	if err == nil {
		t.Fatal("expected config error without a lookup")
	}
}

func TestNewInjectsLookupThroughPorts(t *testing.T) {
	o := domain.Defaults()
	o.Columns = []string{"key", "changeset_tag:comment"}
	m, err := newModule(t, o, modkit.WithPorts(domain.Ports{Lookup: stubLookup{}}))
	if err != nil {
		t.Fatalf("New with injected lookup: %v", err)
	}
	if m.Ports().(Ports).Runner == nil {
		t.Fatal("runner should be built")
	}
}

func TestNewRejectsForeignPorts(t *testing.T) {
	testkit.MustPanic(t, func() {
		_, _ = newModule(t, domain.Defaults(), modkit.WithPorts(struct{ X int }{X: 1}))
	})
}

func TestNewNameOverride(t *testing.T) {
	m, err := newModule(t, domain.Defaults())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m.Name() != "history" {
		t.Fatalf("default name = %q", m.Name())
	}

	m, err = newModule(t, domain.Defaults(), modkit.WithName("history-replay"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m.Name() != "history-replay" {
		t.Fatalf("name = %q", m.Name())
	}
}

func TestNewSeparateLinesForce(t *testing.T) {
	o := domain.Defaults()
	o.SeparateLines = true
	m, err := newModule(t, o)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m.Layout() != project.LayoutSeparateLines {
		t.Fatal("forced layout not applied")
	}
}
