// Package service fronts the changeset tag store with a tiny cache
package service

import (
	"context"

	"taghist/internal/core/osm"
	"taghist/internal/platform/metrics"
	"taghist/internal/services/changesets/repo"
)

// Service resolves changeset tags through the bound store.
// History streams revisit the same changeset in bursts, so a single
// entry cache absorbs most repeat lookups without changing behavior,
// the store is read only and deterministic. Not safe for concurrent
// use, the processing loop is single threaded
type Service struct {
	store repo.Storage
	met   *metrics.Run

	lastID    uint64
	lastPairs []osm.TagPair
	lastFound bool
	warm      bool
}

// New constructs the service. met may be nil
func New(store repo.Storage, met *metrics.Run) *Service {
	return &Service{store: store, met: met}
}

// Tags implements domain.TagsPort
func (s *Service) Tags(ctx context.Context, id uint64) ([]osm.TagPair, bool, error) {
	if s.warm && s.lastID == id {
		return s.lastPairs, s.lastFound, nil
	}
	if s.met != nil {
		s.met.LookupQueries.Inc()
	}
	pairs, found, err := s.store.Tags(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if !found && s.met != nil {
		s.met.LookupMisses.Inc()
	}
	s.warm = true
	s.lastID = id
	s.lastPairs = pairs
	s.lastFound = found
	return pairs, found, nil
}
