// Package module wires the blocks service
package module

import (
	"context"

	"crimetrends/internal/modkit"
	"crimetrends/internal/modkit/repokit"
	phttp "crimetrends/internal/platform/net/http"
	"crimetrends/internal/services/blocks/domain"
	"crimetrends/internal/services/blocks/repo"
	"crimetrends/internal/services/blocks/service"
)

// Ports exposed by the blocks module
type Ports struct {
	Store domain.StorePort
	GCP   domain.GCPPort
}

// Module implements the blocks module
type Module struct {
	deps  modkit.Deps
	svc   *service.Service
	ports Ports
}

// New constructs the blocks module. It has no routes; blocks hold secrets
func New(deps modkit.Deps) *Module {
	svc := service.New(deps.PG, repo.NewPG())
	return &Module{deps: deps, svc: svc, ports: Ports{Store: svc, GCP: svc}}
}

// EnsureSchema creates the blocks table
func (m *Module) EnsureSchema(ctx context.Context) error {
	return repokit.WithTx(ctx, m.deps.PG, func(q repokit.Queryer) error {
		return repokit.Exec(ctx, q, repo.Schema...)
	})
}

// MakeGCPBlocks creates the credentials and bucket blocks from the environment
func (m *Module) MakeGCPBlocks(ctx context.Context) error {
	return m.svc.MakeGCPBlocks(ctx, service.LoadEnvironment(m.deps.Cfg))
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "blocks" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// MountRoutes satisfies modkit.Module
func (m *Module) MountRoutes(phttp.Router) {}
