// Package module implements the changesets service module
package module

import (
	"taghist/internal/modkit"
	"taghist/internal/services/changesets/domain"
	"taghist/internal/services/changesets/repo"
	"taghist/internal/services/changesets/service"
)

// Ports exposed by the changesets module
type Ports struct {
	Tags domain.TagsPort
}

// Module implements the changesets service module
type Module struct {
	deps  modkit.Deps
	name  string
	ports Ports
}

// New constructs the module, binding whichever store backend is open.
// Postgres wins when both are configured, the sqlite file is the
// portable interchange format
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("changesets"),
	}, opts...)...)

	var st repo.Storage
	switch {
	case deps.Store != nil && deps.Store.PG != nil:
		st = repo.NewPG(deps.Store.PG)
	case deps.Store != nil && deps.Store.Lite != nil:
		st = repo.NewLite(deps.Store.Lite)
	}

	m := &Module{deps: deps, name: b.Name}
	if st != nil {
		m.ports = Ports{Tags: service.New(st, deps.Metrics)}
	}
	return m
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return m.name }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// Enabled reports whether a backing store was bound
func (m *Module) Enabled() bool { return m.ports.Tags != nil }
