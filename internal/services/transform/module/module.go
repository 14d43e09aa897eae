// Package module wires the transform pipeline to the warehouse
package module

import (
	"context"

	"crimetrends/internal/adapters/lake"
	"crimetrends/internal/adapters/warehouse"
	"crimetrends/internal/modkit"
	"crimetrends/internal/platform/logger"
	phttp "crimetrends/internal/platform/net/http"
	"crimetrends/internal/services/transform/service"
)

// Ports exposed by the transform module
type Ports struct {
	Transformer *service.Service
}

// Module implements the transform module
type Module struct {
	deps   modkit.Deps
	opts   Options
	loader warehouse.Loader
	svc    *service.Service
}

// New constructs the module around an open loader; a nil loader skips the
// warehouse load. run defaults to the beam runner
func New(deps modkit.Deps, loader warehouse.Loader, run service.Runner) *Module {
	opts := FromConfig(deps.Cfg)
	if opts.SkipLoad {
		loader = nil
	}
	return &Module{
		deps:   deps,
		opts:   opts,
		loader: loader,
		svc:    service.New(loader, opts.Years, run),
	}
}

// OpenLoader opens the configured warehouse backend. credsJSON feeds
// bigquery, lc tells clickhouse how to reach the lake objects
func OpenLoader(ctx context.Context, deps modkit.Deps, lc lake.Config, credsJSON []byte) (warehouse.Loader, error) {
	opts := FromConfig(deps.Cfg)
	if opts.SkipLoad {
		return nil, nil
	}
	ld, err := warehouse.Open(ctx, opts.Warehouse, credsJSON, deps.CH, warehouse.AccessFromLake(lc))
	if err != nil {
		return nil, err
	}
	logger.C(ctx).Info().Str("backend", opts.Warehouse.Backend).Msg("warehouse loader ready")
	return ld, nil
}

// Service returns the transformer
func (m *Module) Service() *service.Service { return m.svc }

// Options returns the resolved options
func (m *Module) Options() Options { return m.opts }

// Close releases the loader
func (m *Module) Close() error {
	if m.loader == nil {
		return nil
	}
	return m.loader.Close()
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "transform" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return Ports{Transformer: m.svc} }

// MountRoutes satisfies modkit.Module
func (m *Module) MountRoutes(phttp.Router) {}
