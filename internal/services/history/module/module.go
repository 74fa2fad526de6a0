// Package module wires the history runner from validated options
package module

import (
	"taghist/internal/core/project"
	"taghist/internal/core/tagfilter"
	"taghist/internal/modkit"
	"taghist/internal/services/history/domain"
	"taghist/internal/services/history/service"
)

// Params carries the collaborators the runner is built around
type Params struct {
	Source  domain.SourcePort
	Sink    domain.RowSinkPort
	Options domain.Options
}

// Ports exposed by the history module
type Ports struct {
	Runner domain.RunnerPort
}

// Module implements the history service module
type Module struct {
	deps  modkit.Deps
	name  string
	ports Ports

	columns []project.Column
	layout  project.Layout
}

// New parses and validates the run plan, then builds the runner.
// Configuration mistakes surface here, before any input is read.
// The changeset tag lookup is optional and arrives from the
// changesets module via modkit.WithPorts(domain.Ports{...})
func New(deps modkit.Deps, p Params, opts ...modkit.Option) (*Module, error) {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("history"),
	}, opts...)...)

	// Basic guardrails against incorrect wiring
	var injected domain.Ports
	if b.Ports != nil {
		ip, ok := b.Ports.(domain.Ports)
		if !ok {
			panic("history module: expected WithPorts(history/domain.Ports)")
		}
		injected = ip
	}

	if err := p.Options.Validate(); err != nil {
		return nil, err
	}

	cols, err := ParseColumns(p.Options)
	if err != nil {
		return nil, err
	}
	layout := project.ChooseLayout(cols, p.Options.SeparateLines)

	filters := tagfilter.New()
	filters.AddUIDs(p.Options.UIDs)
	if err := filters.AddKinds(p.Options.Kinds); err != nil {
		return nil, err
	}
	filters.AddKeys(p.Options.TagKeys)
	if err := filters.AddKeyValues(p.Options.TagValues); err != nil {
		return nil, err
	}

	renderer, err := project.NewRenderer(cols, injected.Lookup)
	if err != nil {
		return nil, err
	}

	svc := service.New(deps.Log, deps.Metrics, p.Source, p.Sink, renderer, service.Config{
		Columns:       cols,
		Layout:        layout,
		Filters:       filters,
		Header:        p.Options.Header,
		ProgressEvery: p.Options.ProgressEvery,
	})

	return &Module{
		deps:    deps,
		name:    b.Name,
		ports:   Ports{Runner: svc},
		columns: cols,
		layout:  layout,
	}, nil
}

// ParseColumns resolves the configured or default column list
func ParseColumns(o domain.Options) ([]project.Column, error) {
	if len(o.Columns) == 0 {
		return project.DefaultColumns(o.Epoch), nil
	}
	return project.ParseColumns(o.Columns)
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return m.name }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// Columns exposes the resolved projection for sinks that need headers
func (m *Module) Columns() []project.Column { return m.columns }

// Layout exposes the chosen line layout
func (m *Module) Layout() project.Layout { return m.layout }
