// Package module wires the orchestrator runtime and agent and exposes its ports
package module

import (
	"context"

	"crimetrends/internal/adapters/notify"
	"crimetrends/internal/modkit"
	"crimetrends/internal/modkit/repokit"
	phttp "crimetrends/internal/platform/net/http"
	"crimetrends/internal/services/orchestrator/domain"
	"crimetrends/internal/services/orchestrator/guardrails"
	"crimetrends/internal/services/orchestrator/repo"
	"crimetrends/internal/services/orchestrator/service"
)

// Ports exposed by the orchestrator module
type Ports struct {
	Runtime domain.RuntimePort
	Deploy  domain.DeployPort
	Query   domain.QueryPort
	Agent   domain.AgentPort
}

// Module implements the orchestrator module
type Module struct {
	deps  modkit.Deps
	opts  Options
	rt    *service.Runtime
	ports Ports
}

// New constructs the orchestrator. pub may be nil; events are then dropped
func New(deps modkit.Deps, pub notify.Publisher, overrides Options) *Module {
	opts := FromConfig(deps.Cfg)
	if overrides.Cache != "" {
		opts.Cache = overrides.Cache
	}
	if overrides.Workers != 0 {
		opts.Workers = overrides.Workers
	}
	if overrides.PollInterval != 0 {
		opts.PollInterval = overrides.PollInterval
	}
	if overrides.WorkQueue != "" {
		opts.WorkQueue = overrides.WorkQueue
	}
	if overrides.DeployWait != 0 {
		opts.DeployWait = overrides.DeployWait
	}

	var db repokit.TxRunner = deps.PG
	if deps.PG != nil && opts.LockTimeout > 0 {
		db = repokit.WithBeginHooks(deps.PG, repokit.LockTimeout(opts.LockTimeout))
	}
	binder := repo.NewPG()

	var cache domain.Cache
	switch opts.Cache {
	case CacheRedis:
		if deps.HasCache() {
			cache = service.NewKVCache(deps.KV)
		} else {
			deps.Log.Warn().Msg("redis task cache requested without SERVICE_REDIS_ADDR; using postgres")
			cache = service.NewPGCache(db, binder)
		}
	case CachePG:
		cache = service.NewPGCache(db, binder)
	}

	rt := service.New(db, binder, cache, pub, service.Config{
		Timeouts: guardrails.Timeouts{
			Flow: opts.FlowTimeout,
			Task: opts.TaskTimeout,
			DB:   opts.DBTimeout,
		},
		DefaultFlow:   opts.DefaultFlow,
		DeployWait:    opts.DeployWait,
		WorkQueue:     opts.WorkQueue,
		PollInterval:  opts.PollInterval,
		Workers:       opts.Workers,
		ScheduleBatch: opts.ScheduleBatch,
		RunLease:      opts.RunLease,
		HardLimit:     opts.RunListLimit,
	})
	agent := service.NewAgent(rt, guardrails.MakeScheduleLease())

	return &Module{
		deps: deps,
		opts: opts,
		rt:   rt,
		ports: Ports{
			Runtime: rt,
			Deploy:  rt,
			Query:   rt,
			Agent:   agent,
		},
	}
}

// Runtime returns the runtime flows register with
func (m *Module) Runtime() *service.Runtime { return m.rt }

// Options returns the resolved options
func (m *Module) Options() Options { return m.opts }

// EnsureSchema creates the ledger tables
func (m *Module) EnsureSchema(ctx context.Context) error {
	return repokit.WithTx(ctx, m.deps.PG, func(q repokit.Queryer) error {
		return repokit.Exec(ctx, q, repo.Schema...)
	})
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "orchestrator" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// MountRoutes satisfies modkit.Module; the ops module serves the ledger
func (m *Module) MountRoutes(phttp.Router) {}
