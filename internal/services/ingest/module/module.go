// Package module wires the ingest flows to the lake, the cluster and the
// orchestrator runtime
package module

import (
	"context"

	"crimetrends/internal/adapters/dataproc"
	"crimetrends/internal/adapters/lake"
	"crimetrends/internal/adapters/web"
	"crimetrends/internal/modkit"
	"crimetrends/internal/platform/config"
	"crimetrends/internal/platform/logger"
	phttp "crimetrends/internal/platform/net/http"
	bdomain "crimetrends/internal/services/blocks/domain"
	"crimetrends/internal/services/ingest/domain"
	"crimetrends/internal/services/ingest/service"
	odomain "crimetrends/internal/services/orchestrator/domain"
)

// Ports exposed by the ingest module
type Ports struct {
	Flows domain.FlowPort
}

// Wiring holds the collaborators built by the command
type Wiring struct {
	Runtime odomain.RuntimePort
	Bucket  lake.Bucket
	// Submitter and Transformer may be nil when their mode is unused
	Submitter   domain.Submitter
	Transformer domain.Transformer
}

// Module implements the ingest module
type Module struct {
	deps  modkit.Deps
	opts  Options
	svc   *service.Service
	ports Ports
}

// New constructs the ingest module
func New(deps modkit.Deps, w Wiring) *Module {
	opts := FromConfig(deps.Cfg)
	var webOpts []web.Option
	if opts.DownloadTimeout > 0 {
		webOpts = append(webOpts, web.WithTimeout(opts.DownloadTimeout))
	}
	svc := service.New(service.Config{
		DataDir:         opts.DataDir,
		JobFile:         opts.JobFile,
		JobFileDir:      opts.JobFileDir,
		DownloadRetries: opts.Retries,
		RetryDelay:      opts.RetryDelay,
		RetryJitter:     opts.RetryJitter,
		CacheExpiration: opts.CacheExpiration,
		Transform:       opts.Transform,
		TempBucket:      opts.TempBucket,
		Dataset:         opts.Dataset,
	}, w.Runtime, web.New(opts.DataDir, webOpts...), w.Bucket, w.Submitter, w.Transformer)
	return &Module{deps: deps, opts: opts, svc: svc, ports: Ports{Flows: svc}}
}

// Service returns the flows for registration with a runtime
func (m *Module) Service() *service.Service { return m.svc }

// Name satisfies modkit.Module
func (m *Module) Name() string { return "ingest" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// MountRoutes satisfies modkit.Module
func (m *Module) MountRoutes(phttp.Router) {}

// LakeConfig resolves the lake settings. On GCS with BUCKET_BLOCK_NAME set,
// the bucket and its credentials come from the bucket block
func LakeConfig(ctx context.Context, cfg config.Conf, gcp bdomain.GCPPort) (lake.Config, error) {
	lc := lake.FromConfig(cfg)
	name := cfg.MayString("BUCKET_BLOCK_NAME", "")
	if gcp == nil || name == "" || lc.Backend != lake.BackendGCS {
		return lc, nil
	}
	b, creds, err := gcp.Bucket(ctx, name)
	if err != nil {
		return lc, err
	}
	lc.Bucket = b.Bucket
	lc.CredentialsJSON = creds
	logger.C(ctx).Info().Str("block", name).Str("bucket", b.Bucket).Msg("lake bucket loaded from block")
	return lc, nil
}

// OpenSubmitter builds the cluster submitter; it returns nil without error
// when no cluster is configured
func OpenSubmitter(ctx context.Context, cfg config.Conf, credsJSON []byte) (*dataproc.Submitter, error) {
	dc := dataproc.FromConfig(cfg)
	if dc.ClusterName == "" {
		return nil, nil
	}
	return dataproc.New(ctx, dc, credsJSON)
}
