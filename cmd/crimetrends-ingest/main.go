// Command crimetrends-ingest runs the parent flow once: download the city
// exports, stage them in the lake and transform them into the warehouse
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"crimetrends/internal/app"
	"crimetrends/internal/core/sources"
	"crimetrends/internal/platform/config/envfile"
	"crimetrends/internal/platform/logger"
	"crimetrends/internal/services/ingest/domain"

	"github.com/apache/beam/sdks/v2/go/pkg/beam"
)

func main() {
	var (
		fCities    = flag.String("cities", "", "comma separated cities to ingest: aus,la,sd (default all)")
		fSDFrom    = flag.Int("sd-from", 0, "first San Diego year (default 2015)")
		fSDTo      = flag.Int("sd-to", 0, "last San Diego year (default 2023)")
		fTransform = flag.String("transform", "", "transform mode: cluster | beam | none (default CORE_INGEST_TRANSFORM)")
		fEnv       = flag.String("env", "", "dotenv file to load (default ../.env)")
	)
	flag.Parse()

	// a missing env file is logged; the process env may already be complete
	_ = envfile.Load(*fEnv)
	if *fTransform != "" {
		_ = os.Setenv("CORE_INGEST_TRANSFORM", *fTransform)
	}
	beam.Init()

	l := logger.Get()

	var p domain.Params
	if *fCities != "" {
		cities, err := sources.ParseCities(*fCities)
		if err != nil {
			l.Fatal().Err(err).Msg("bad -cities")
		}
		p.Cities = cities
	}
	p.SDFrom, p.SDTo, p.Transform = *fSDFrom, *fSDTo, *fTransform
	if err := p.Validate(); err != nil {
		l.Fatal().Err(err).Msg("invalid flow parameters")
	}
	raw, err := json.Marshal(p)
	if err != nil {
		l.Fatal().Err(err).Msg("encode flow parameters")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, app.Options{Name: "crimetrends-ingest"})
	if err != nil {
		l.Fatal().Err(err).Msg("bootstrap failed")
	}
	defer a.Close()

	run, err := a.Ingest.Service().Run(ctx, raw)
	if err != nil {
		a.Close()
		l.Fatal().Err(err).Str("flow_run_id", run.ID).Msg("parent flow failed")
	}
	l.Info().Str("flow_run_id", run.ID).Str("state", string(run.State)).Msg("parent flow finished")
}
