// Command crimetrends-transform is the Beam job: it normalizes the raw city
// CSVs into parquet and loads each city table into the warehouse
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"crimetrends/internal/adapters/lake"
	"crimetrends/internal/app"
	"crimetrends/internal/core/crimes"
	"crimetrends/internal/modkit"
	"crimetrends/internal/platform/config"
	"crimetrends/internal/platform/config/envfile"
	"crimetrends/internal/platform/logger"
	"crimetrends/internal/platform/store"
	transformmod "crimetrends/internal/services/transform/module"

	"github.com/apache/beam/sdks/v2/go/pkg/beam"
)

func main() {
	var args crimes.JobArgs
	args.Register(flag.CommandLine)
	fEnv := flag.String("env", "", "dotenv file to load (default ../.env)")
	flag.Parse()

	_ = envfile.Load(*fEnv)
	beam.Init()

	l := logger.Get()
	if err := args.Validate(); err != nil {
		l.Fatal().Err(err).Msg("invalid job arguments")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.New()
	st, err := store.Open(ctx, store.FromEnv("crimetrends-transform"), store.WithLogger(*l))
	if err != nil {
		l.Fatal().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()
	deps := modkit.FromStore(cfg, st)
	deps.Log = *l

	lc := lake.FromConfig(cfg)
	creds, err := app.Credentials(ctx, cfg, nil, nil)
	if err != nil {
		l.Fatal().Err(err).Msg("credentials")
	}
	ld, err := transformmod.OpenLoader(ctx, deps, lc, creds)
	if err != nil {
		l.Fatal().Err(err).Msg("warehouse open failed")
	}
	m := transformmod.New(deps, ld, nil)
	defer func() {
		if err := m.Close(); err != nil {
			l.Error().Err(err).Msg("failed to close warehouse")
		}
	}()

	if err := m.Service().Run(ctx, args); err != nil {
		_ = m.Close()
		l.Fatal().Err(err).Msg("transform failed")
	}
	l.Info().Msg("transform finished")
}
