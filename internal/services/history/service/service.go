// Package service implements the history run loop
package service

import (
	"context"
	"errors"
	"io"
	"time"

	"taghist/internal/core/diff"
	"taghist/internal/core/project"
	"taghist/internal/core/tagfilter"
	perr "taghist/internal/platform/errors"
	"taghist/internal/platform/logger"
	"taghist/internal/platform/metrics"
	"taghist/internal/services/history/domain"
)

// Config is the assembled, already parsed run plan
type Config struct {
	Columns       []project.Column
	Layout        project.Layout
	Filters       *tagfilter.Set
	Header        bool
	ProgressEvery time.Duration
}

// Service pulls records, diffs, filters, projects and emits rows.
// Single threaded by design, the only mutable state is the diff
// engine's retained record and the renderer's scratch buffers
type Service struct {
	log      logger.Logger
	met      *metrics.Run
	src      domain.SourcePort
	sink     domain.RowSinkPort
	renderer *project.Renderer
	cfg      Config
}

// New wires the runner. met may be nil, filters may be nil for
// an unrestricted run
func New(
	log logger.Logger,
	met *metrics.Run,
	src domain.SourcePort,
	sink domain.RowSinkPort,
	renderer *project.Renderer,
	cfg Config,
) *Service {
	if met == nil {
		met = metrics.NopRun()
	}
	if cfg.Filters == nil {
		cfg.Filters = tagfilter.New()
	}
	return &Service{log: log, met: met, src: src, sink: sink, renderer: renderer, cfg: cfg}
}

// Run implements domain.RunnerPort. It drains the source to EOF or
// the first fatal error. Cancellation is observed between records,
// a row once started is always emitted whole
func (s *Service) Run(ctx context.Context) (domain.Stats, error) {
	var st domain.Stats

	if s.cfg.Header {
		if err := s.sink.WriteHeader(ctx, project.Headers(s.cfg.Columns)); err != nil {
			return st, perr.Wrap(err, perr.ErrorCodeSink, "write header")
		}
	}

	eng := diff.New()
	lastProgress := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			return st, err
		}

		rec, err := s.src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return st, perr.WrapIf(err, perr.ErrorCodeSource, "read record")
		}

		st.RecordsRead++
		s.met.RecordsRead.Inc()

		// ordering is asserted on every record, filtered or not
		pair, err := eng.Push(rec)
		if err != nil {
			return st, err
		}

		if !s.cfg.Filters.AllowsPair(pair) {
			s.met.RecordsSkipped.WithLabelValues("filtered").Inc()
			continue
		}
		if !pair.Curr.Tagged() && (pair.Prev == nil || !pair.Prev.Tagged()) {
			s.met.RecordsSkipped.WithLabelValues("untagged").Inc()
			continue
		}

		st.PairsCompared++
		s.met.PairsCompared.Inc()

		for _, ch := range diff.Changes(pair) {
			if !s.cfg.Filters.AllowsChange(ch) {
				continue
			}
			st.ChangesFound++
			s.met.ChangesFound.Inc()

			for _, side := range project.Sides(s.cfg.Layout, ch) {
				row, err := s.renderer.Render(ctx, project.RowContext{Pair: pair, Change: ch, Side: side})
				if err != nil {
					return st, err
				}
				if err := s.sink.WriteRow(ctx, row); err != nil {
					return st, perr.Wrap(err, perr.ErrorCodeSink, "write row")
				}
				st.RowsEmitted++
				s.met.RowsEmitted.Inc()
			}
		}

		if s.cfg.ProgressEvery > 0 && time.Since(lastProgress) >= s.cfg.ProgressEvery {
			s.log.Info().
				Uint64("records", st.RecordsRead).
				Uint64("rows", st.RowsEmitted).
				Msg("history run progress")
			lastProgress = time.Now()
		}
	}

	s.log.Debug().
		Uint64("records", st.RecordsRead).
		Uint64("pairs", st.PairsCompared).
		Uint64("changes", st.ChangesFound).
		Uint64("rows", st.RowsEmitted).
		Msg("history run drained source")
	return st, nil
}
