// Package app composes the stores, adapters and service modules shared by
// the commands
package app

import (
	"context"
	"os"

	"crimetrends/internal/adapters/lake"
	"crimetrends/internal/adapters/notify"
	"crimetrends/internal/modkit"
	"crimetrends/internal/modkit/module"
	"crimetrends/internal/modkit/repokit"
	"crimetrends/internal/platform/config"
	perr "crimetrends/internal/platform/errors"
	"crimetrends/internal/platform/logger"
	"crimetrends/internal/platform/store"
	bdomain "crimetrends/internal/services/blocks/domain"
	blocksmod "crimetrends/internal/services/blocks/module"
	"crimetrends/internal/services/ingest/domain"
	ingestmod "crimetrends/internal/services/ingest/module"
	orchmod "crimetrends/internal/services/orchestrator/module"
	transformmod "crimetrends/internal/services/transform/module"
)

// Options selects what Open builds
type Options struct {
	// Name is the service name used for logs and the clickhouse client
	Name string
	// Orchestrator overrides, zero fields keep the env values
	Orchestrator orchmod.Options
	// SkipLake builds only the ledger and the blocks, for commands that
	// never touch the lake
	SkipLake bool
}

// App holds the opened backends and the wired modules
type App struct {
	Cfg    config.Conf
	Log    *logger.Logger
	Store  *store.Store
	Deps   modkit.Deps
	Pub    notify.Publisher
	Blocks *blocksmod.Module
	Orch   *orchmod.Module
	// Ingest and Lake are nil with SkipLake
	Ingest *ingestmod.Module
	Lake   lake.Bucket

	closers []func() error
}

// Open connects the stores, ensures the ledger schema and wires every module.
// SERVICE_PGSQL_DBURL is required
func Open(ctx context.Context, opt Options) (*App, error) {
	if opt.Name == "" {
		opt.Name = "crimetrends"
	}
	cfg := config.New()
	l := logger.Get()
	a := &App{Cfg: cfg, Log: l}

	st, err := store.Open(ctx, store.FromEnv(opt.Name), store.WithLogger(*l))
	if err != nil {
		return nil, perr.WithOp(err, "store open")
	}
	a.Store = st
	a.closers = append(a.closers, func() error { return st.Close(context.Background()) })
	if st.PG == nil {
		a.Close()
		return nil, perr.WithField(perr.InvalidArgf("SERVICE_PGSQL_DBURL is required"), "SERVICE_PGSQL_DBURL")
	}
	if err := repokit.CheckReady(ctx, opt.Name, st); err != nil {
		a.Close()
		return nil, err
	}

	a.Deps = modkit.FromStore(cfg, st)
	a.Deps.Log = *l

	pub, err := notify.Open(ctx, notify.FromConfig(cfg))
	if err != nil {
		a.Close()
		return nil, perr.WithOp(err, "notify open")
	}
	a.Pub = pub
	a.closers = append(a.closers, pub.Close)

	a.Blocks = blocksmod.New(a.Deps)
	a.Orch = orchmod.New(a.Deps, pub, opt.Orchestrator)
	if err := a.Blocks.EnsureSchema(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.Orch.EnsureSchema(ctx); err != nil {
		a.Close()
		return nil, err
	}
	module.Register(a.Blocks.Name(), a.Blocks.Ports())
	module.Register(a.Orch.Name(), a.Orch.Ports())

	if opt.SkipLake {
		return a, nil
	}
	if err := a.wireIngest(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wireIngest(ctx context.Context) error {
	gcp := module.MustPortsOf[blocksmod.Ports](a.Blocks).GCP
	lc, err := ingestmod.LakeConfig(ctx, a.Cfg, gcp)
	if err != nil {
		return err
	}
	creds, err := Credentials(ctx, a.Cfg, gcp, lc.CredentialsJSON)
	if err != nil {
		return err
	}
	if lc.Backend == lake.BackendGCS && len(lc.CredentialsJSON) == 0 {
		lc.CredentialsJSON = creds
	}

	bucket, err := lake.Open(ctx, lc)
	if err != nil {
		return perr.WithOp(err, "lake open")
	}
	a.Lake = bucket
	a.closers = append(a.closers, bucket.Close)

	w := ingestmod.Wiring{Runtime: a.Orch.Runtime(), Bucket: bucket}

	sub, err := ingestmod.OpenSubmitter(ctx, a.Cfg, creds)
	if err != nil {
		return perr.WithOp(err, "dataproc open")
	}
	if sub != nil {
		w.Submitter = sub
		a.closers = append(a.closers, sub.Close)
	}

	lazy := newLazyTransformer(func(ctx context.Context) (domain.Transformer, func() error, error) {
		ld, err := transformmod.OpenLoader(ctx, a.Deps, lc, creds)
		if err != nil {
			return nil, nil, err
		}
		m := transformmod.New(a.Deps, ld, nil)
		module.Register(m.Name(), m.Ports())
		return m.Service(), m.Close, nil
	})
	a.closers = append(a.closers, lazy.Close)
	w.Transformer = lazy
	// with beam as the default mode a broken warehouse fails here, not on
	// the first run
	if ingestmod.FromConfig(a.Cfg).Transform == domain.TransformBeam {
		if _, err := lazy.get(ctx); err != nil {
			return err
		}
	}

	a.Ingest = ingestmod.New(a.Deps, w)
	a.Ingest.Service().Register(a.Orch.Runtime())
	module.Register(a.Ingest.Name(), a.Ingest.Ports())
	return nil
}

// Credentials resolves the service account JSON: the lake block's
// credentials first, then CREDS_BLOCK_NAME, then the file named by
// GOOGLE_APPLICATION_CREDENTIALS. Empty means application defaults
func Credentials(ctx context.Context, cfg config.Conf, gcp bdomain.GCPPort, fromLake []byte) ([]byte, error) {
	if len(fromLake) > 0 {
		return fromLake, nil
	}
	if name := cfg.MayString("CREDS_BLOCK_NAME", ""); name != "" && gcp != nil {
		creds, err := gcp.Credentials(ctx, name)
		if err == nil {
			return creds, nil
		}
		if !perr.IsCode(err, perr.ErrorCodeNotFound) {
			return nil, err
		}
		logger.C(ctx).Warn().Str("block", name).Msg("credentials block not found; falling back to key file")
	}
	if p := cfg.MayString("GOOGLE_APPLICATION_CREDENTIALS", ""); p != "" {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, perr.WithField(perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "read %s", p), "GOOGLE_APPLICATION_CREDENTIALS")
		}
		return b, nil
	}
	return nil, nil
}

// Close releases everything Open acquired, newest first
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Log.Error().Err(err).Msg("close failed")
		}
	}
	a.closers = nil
}
