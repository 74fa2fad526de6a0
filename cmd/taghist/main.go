// Command taghist streams an OSM history file and emits one csv row
// per tag that changed between consecutive versions of an element
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"taghist/internal/modkit"
	"taghist/internal/modkit/module"
	"taghist/internal/platform/config"
	perr "taghist/internal/platform/errors"
	"taghist/internal/platform/logger"
	"taghist/internal/platform/metrics"
	"taghist/internal/platform/store"

	csmod "taghist/internal/services/changesets/module"
	histdom "taghist/internal/services/history/domain"
	histmod "taghist/internal/services/history/module"
	histrepo "taghist/internal/services/history/repo"
	"taghist/internal/services/ingest/osmxml"
)

func mustSetEnv(k, v string) {
	if v != "" {
		_ = os.Setenv(k, v)
	}
}

func main() {
	var (
		input      = flag.String("input", "-", "history file (.osh/.osm, optionally .gz/.bz2), - for stdin")
		output     = flag.String("output", "-", "csv output path, - for stdout")
		columns    = flag.String("columns", "", "comma separated column list, empty for the default set")
		epoch      = flag.Bool("epoch", false, "default datetime column as seconds since epoch")
		sepLines   = flag.Bool("separate-lines", false, "one row per removed/added value")
		noHeader   = flag.Bool("no-header", false, "suppress the header row")
		uids       = flag.String("uids", "", "comma separated user ids to keep")
		kinds      = flag.String("kinds", "", "comma separated object kinds to keep (node,way,relation)")
		tagKeys    = flag.String("tags", "", "comma separated tag keys to keep")
		tagKVs     = flag.String("tag-filters", "", "comma separated key=value filters")
		changesets = flag.String("changesets", "", "changeset tag store DSN (postgres:// url or sqlite file)")
		compress   = flag.String("compression", "auto", "output compression: none, auto, gzip")
		progress   = flag.Duration("progress", 0, "interval between progress log lines, 0 disables")
		opsAddr    = flag.String("ops-addr", "", "optional listen address for /healthz and /metrics")
	)
	flag.Parse()

	logger.Init(logger.FromEnv())

	// Pass CLI flags into TAGHIST_* so the modules read their own config
	mustSetEnv("TAGHIST_COLUMNS", *columns)
	mustSetEnv("TAGHIST_EPOCH", map[bool]string{true: "1"}[*epoch])
	mustSetEnv("TAGHIST_SEPARATE_LINES", map[bool]string{true: "1"}[*sepLines])
	mustSetEnv("TAGHIST_HEADER", map[bool]string{true: "false"}[*noHeader])
	mustSetEnv("TAGHIST_UIDS", *uids)
	mustSetEnv("TAGHIST_KINDS", *kinds)
	mustSetEnv("TAGHIST_TAG_KEYS", *tagKeys)
	mustSetEnv("TAGHIST_TAG_FILTERS", *tagKVs)
	mustSetEnv("TAGHIST_OUTPUT", *output)
	mustSetEnv("TAGHIST_COMPRESSION", *compress)
	if *progress > 0 {
		mustSetEnv("TAGHIST_PROGRESS_EVERY", progress.String())
	}
	mustSetEnv("TAGHIST_OPS_ADDR", *opsAddr)

	runID := uuid.NewString()
	ctx := logger.WithRun(context.Background(), runID)
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *input, *changesets); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.C(ctx).Warn().Msg("run interrupted")
			os.Exit(1)
		}
		logger.C(ctx).Error().Err(err).Msg("run failed")
		os.Exit(perr.ExitStatus(err))
	}
}

func run(ctx context.Context, input, changesetsDSN string) error {
	root := config.New()

	opts, err := histmod.FromConfig(root)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	met := metrics.NewRun(reg)
	if addr := root.Prefix("TAGHIST_").MayString("OPS_ADDR", ""); addr != "" {
		go serveOps(ctx, addr, reg)
	}

	deps := modkit.Deps{
		Log:     *logger.C(ctx),
		Cfg:     root,
		Metrics: met,
	}

	// changeset tag store, only when a DSN was given
	var cs *csmod.Module
	if changesetsDSN != "" {
		st, err := store.Open(ctx, store.ForDSN(changesetsDSN), store.WithLogger(deps.Log))
		if err != nil {
			return perr.Wrap(err, perr.ErrorCodeStore, "open changeset store")
		}
		defer func() {
			if cerr := st.Close(context.Background()); cerr != nil {
				deps.Log.Error().Err(cerr).Msg("close changeset store")
			}
		}()
		deps.Store = st
		cs = csmod.New(deps)
		module.Register(cs.Name(), cs.Ports())
	}

	src, err := osmxml.Open(input)
	if err != nil {
		return err
	}
	defer src.Close()

	sink, err := buildSink(ctx, root, opts)
	if err != nil {
		return err
	}

	params := histmod.Params{Source: src, Sink: sink, Options: opts}
	var mopts []modkit.Option
	if cs != nil && cs.Enabled() {
		mopts = append(mopts, modkit.WithPorts(histdom.Ports{
			Lookup: module.MustPortsOf[csmod.Ports](cs).Tags,
		}))
	}

	hm, err := histmod.New(deps, params, mopts...)
	if err != nil {
		_ = sink.Close(context.Background())
		return err
	}
	module.Register(hm.Name(), hm.Ports())

	start := time.Now()
	ports := hm.Ports().(histmod.Ports)
	stats, runErr := ports.Runner.Run(ctx)

	// flush even after a failed run, partial output stays readable
	if cerr := sink.Close(context.Background()); cerr != nil && runErr == nil {
		runErr = cerr
	}
	if runErr != nil {
		return runErr
	}

	deps.Log.Info().
		Uint64("records", stats.RecordsRead).
		Uint64("rows", stats.RowsEmitted).
		Dur("elapsed", time.Since(start)).
		Msg("run complete")
	return nil
}

// buildSink picks csv or clickhouse from TAGHIST_SINK
func buildSink(ctx context.Context, root config.Conf, opts histdom.Options) (histdom.RowSinkPort, error) {
	hf := root.Prefix("TAGHIST_")
	switch hf.MayEnum("SINK", "csv", "csv", "clickhouse") {
	case "clickhouse":
		ch := root.Prefix("TAGHIST_CH_")
		cols, err := histmod.ParseColumns(opts)
		if err != nil {
			return nil, err
		}
		headers := make([]string, len(cols))
		for i, c := range cols {
			headers[i] = c.Header()
		}
		return histrepo.NewClickHouse(ctx, histrepo.CHConfig{
			Addr:      ch.MayCSV("ADDR", []string{"localhost:9000"}),
			Database:  ch.MayString("DATABASE", "default"),
			Table:     ch.MustString("TABLE"),
			Username:  ch.MayString("USERNAME", "default"),
			Password:  ch.MayString("PASSWORD", ""),
			BatchSize: ch.MayInt("BATCH_SIZE", 10000),
		}, headers)
	default:
		return histrepo.NewCSV(histrepo.CSVConfig{
			Path:        opts.Output,
			Compression: opts.Compression,
		})
	}
}

func serveOps(ctx context.Context, addr string, reg *prometheus.Registry) {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Get().Warn().Err(err).Str("addr", addr).Msg("ops listener stopped")
	}
}
