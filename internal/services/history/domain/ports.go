// Package domain defines the history runner contracts
package domain

import (
	"context"

	"taghist/internal/core/osm"
	"taghist/internal/core/project"
)

// Ports carries the cross module collaborators other modules provide
// at build time via modkit.WithPorts
type Ports struct {
	Lookup project.TagLookup
}

// SourcePort yields entity version records already sorted under
// (kind, id, version). Next returns io.EOF as the normal end of
// stream signal, any other error aborts the run
type SourcePort interface {
	Next(ctx context.Context) (*osm.Record, error)
}

// RowSinkPort accepts ordered field sequences. The sink owns delimiter
// choice and any structural quoting beyond the control character
// escaping already applied to the fields. A row is atomic, the sink
// either writes it whole or the run aborts
type RowSinkPort interface {
	WriteHeader(ctx context.Context, fields []string) error
	WriteRow(ctx context.Context, fields []string) error
	Close(ctx context.Context) error
}

// RunnerPort drives one full pass over the source
type RunnerPort interface {
	Run(ctx context.Context) (Stats, error)
}

// Stats summarizes one run for logging and exit reporting
type Stats struct {
	RecordsRead   uint64
	PairsCompared uint64
	ChangesFound  uint64
	RowsEmitted   uint64
}
