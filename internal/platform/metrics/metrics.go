// Package metrics provides Prometheus counters for the history run
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run holds the counters the history runner increments
type Run struct {
	RecordsRead    prometheus.Counter
	PairsCompared  prometheus.Counter
	ChangesFound   prometheus.Counter
	RowsEmitted    prometheus.Counter
	LookupQueries  prometheus.Counter
	LookupMisses   prometheus.Counter
	RecordsSkipped *prometheus.CounterVec
}

// NewRun creates and registers the run counters on reg.
// A nil reg falls back to the default registerer
func NewRun(reg prometheus.Registerer) *Run {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Run{
		RecordsRead: f.NewCounter(prometheus.CounterOpts{
			Name: "taghist_records_read_total",
			Help: "Entity-version records pulled from the source",
		}),
		PairsCompared: f.NewCounter(prometheus.CounterOpts{
			Name: "taghist_pairs_compared_total",
			Help: "Adjacent record pairs that reached the diff engine",
		}),
		ChangesFound: f.NewCounter(prometheus.CounterOpts{
			Name: "taghist_tag_changes_total",
			Help: "Tag changes surviving the filter pipeline",
		}),
		RowsEmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "taghist_rows_emitted_total",
			Help: "Report rows written to the sink",
		}),
		LookupQueries: f.NewCounter(prometheus.CounterOpts{
			Name: "taghist_changeset_lookups_total",
			Help: "Changeset tag store queries issued",
		}),
		LookupMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "taghist_changeset_lookup_misses_total",
			Help: "Changeset ids absent from the tag store",
		}),
		RecordsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "taghist_records_skipped_total",
			Help: "Records or pairs skipped before diffing",
		}, []string{"reason"}),
	}
}

// NopRun returns counters registered on a throwaway registry, for tests and
// callers that do not expose metrics
func NopRun() *Run {
	return NewRun(prometheus.NewRegistry())
}
