// Package module wires the ops endpoints to the orchestrator ports
package module

import (
	"encoding/json"
	"time"

	"crimetrends/internal/modkit"
	phttp "crimetrends/internal/platform/net/http"
	"crimetrends/internal/platform/net/middleware"
	ophttp "crimetrends/internal/services/ops/http"
	odomain "crimetrends/internal/services/orchestrator/domain"
)

// Ports consumed by the ops module
type Ports struct {
	Deploy odomain.DeployPort
	Query  odomain.QueryPort
}

// Options controls the ops surface
type Options struct {
	ServiceName    string
	Guard          ophttp.Guard
	ValidateParams func(json.RawMessage) error
	// CORSOrigins enables cors for the listed origins when non-empty
	CORSOrigins []string
}

// FromConfig reads CORE_OPS_SERVICE_NAME and CORE_OPS_CORS_ORIGINS
func FromConfig(deps modkit.Deps) Options {
	c := deps.Cfg.Prefix("CORE_OPS_")
	return Options{
		ServiceName: c.MayString("SERVICE_NAME", "crimetrends-agent"),
		CORSOrigins: c.MayCSV("CORS_ORIGINS", nil),
	}
}

// Module implements the ops module
type Module struct {
	deps    modkit.Deps
	opts    Options
	ports   Ports
	built   modkit.Built
	started time.Time
}

// New constructs the ops module. ports must carry the orchestrator deploy
// and query ports; Guard and ValidateParams of overrides are optional
func New(deps modkit.Deps, ports Ports, overrides Options, opts ...modkit.Option) *Module {
	if ports.Deploy == nil || ports.Query == nil {
		panic("ops module needs orchestrator deploy and query ports")
	}
	o := FromConfig(deps)
	if overrides.ServiceName != "" {
		o.ServiceName = overrides.ServiceName
	}
	if overrides.Guard != nil {
		o.Guard = overrides.Guard
	}
	if overrides.ValidateParams != nil {
		o.ValidateParams = overrides.ValidateParams
	}
	if len(overrides.CORSOrigins) > 0 {
		o.CORSOrigins = overrides.CORSOrigins
	}

	if len(o.CORSOrigins) > 0 {
		opts = append([]modkit.Option{modkit.WithMiddlewares(middleware.CORS(middleware.CORSOptions{
			AllowedOrigins: o.CORSOrigins,
		}))}, opts...)
	}
	return &Module{
		deps:    deps,
		opts:    o,
		ports:   ports,
		built:   modkit.Build(append([]modkit.Option{modkit.WithName("ops")}, opts...)...),
		started: time.Now(),
	}
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return m.built.Name }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// MountRoutes satisfies modkit.Module
func (m *Module) MountRoutes(r phttp.Router) {
	m.built.Mount(r, func(sub phttp.Router) {
		ophttp.Register(sub, ophttp.Deps{
			ServiceName:    m.opts.ServiceName,
			StartedAt:      m.started,
			Guard:          m.opts.Guard,
			Deploy:         m.ports.Deploy,
			Query:          m.ports.Query,
			ValidateParams: m.opts.ValidateParams,
		})
	})
}
