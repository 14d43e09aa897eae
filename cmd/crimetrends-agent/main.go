// Command crimetrends-agent runs the deployment scheduler and the flow
// workers, and serves the ops API with /metrics
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crimetrends/internal/app"
	"crimetrends/internal/modkit"
	"crimetrends/internal/modkit/module"
	"crimetrends/internal/platform/config/envfile"
	"crimetrends/internal/platform/logger"
	"crimetrends/internal/platform/metrics"
	phttp "crimetrends/internal/platform/net/http"
	"crimetrends/internal/platform/net/middleware"
	"crimetrends/internal/services/ingest/domain"
	opsmod "crimetrends/internal/services/ops/module"
	orchmod "crimetrends/internal/services/orchestrator/module"

	"github.com/apache/beam/sdks/v2/go/pkg/beam"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		fEnv     = flag.String("env", "", "dotenv file to load (default ../.env)")
		fWorkers = flag.Int("workers", 0, "concurrent flow runs (default CORE_AGENT_WORKERS)")
		fQueue   = flag.String("work-queue", "", "work queue to poll (default CORE_AGENT_WORK_QUEUE)")
		fPoll    = flag.Duration("poll", 0, "poll interval (default CORE_AGENT_POLL_INTERVAL)")
	)
	flag.Parse()

	_ = envfile.Load(*fEnv)
	beam.Init()

	l := logger.Get()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, app.Options{
		Name: "crimetrends-agent",
		Orchestrator: orchmod.Options{
			Workers:      *fWorkers,
			WorkQueue:    *fQueue,
			PollInterval: *fPoll,
		},
	})
	if err != nil {
		l.Fatal().Err(err).Msg("bootstrap failed")
	}
	defer a.Close()

	orch := module.MustPortsOf[orchmod.Ports](a.Orch)
	ops := opsmod.New(a.Deps, opsmod.Ports{Deploy: orch.Deploy, Query: orch.Query}, opsmod.Options{
		Guard: a.Store,
		ValidateParams: func(raw json.RawMessage) error {
			_, err := domain.ParseParams(raw)
			return err
		},
	})
	module.Register(ops.Name(), ops.Ports())

	apiCfg := a.Cfg.Prefix("API_")
	srv := phttp.NewServer(apiCfg, func(m *chi.Mux) {
		m.Use(func(next http.Handler) http.Handler { return otelhttp.NewHandler(next, "ops") })
		m.Use(middleware.Defaults(apiCfg.MayDuration("SLOW", 2*time.Second))...)
	})
	r := srv.Router()
	r.Handle("/metrics", metrics.Handler())
	phttp.MountProfiler(r, "/debug", apiCfg.MayBool("PROFILER", false))
	for _, m := range []modkit.Module{a.Orch, a.Blocks, a.Ingest, ops} {
		m.MountRoutes(r)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error {
		err := orch.Agent.Run(gctx)
		if gctx.Err() != nil {
			return nil
		}
		return err
	})
	if err := g.Wait(); err != nil {
		a.Close()
		l.Fatal().Err(err).Msg("agent stopped")
	}
	l.Info().Msg("agent stopped")
}
