// Package service implements the flow runtime, task retry and caching,
// deployments and the agent
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"crimetrends/internal/adapters/notify"
	"crimetrends/internal/modkit/repokit"
	perr "crimetrends/internal/platform/errors"
	"crimetrends/internal/platform/logger"
	"crimetrends/internal/platform/metrics"
	"crimetrends/internal/services/orchestrator/domain"
	"crimetrends/internal/services/orchestrator/guardrails"
	"crimetrends/internal/services/orchestrator/repo"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("crimetrends/orchestrator")

// Config holds runtime, deployment and agent settings
type Config struct {
	Timeouts guardrails.Timeouts

	// DefaultFlow is the flow deployments run
	DefaultFlow string

	// DeployWait bounds how long Deploy waits on an unscheduled run
	DeployWait time.Duration
	// DeployPoll is the state poll interval while waiting
	DeployPoll time.Duration

	// Agent
	WorkQueue     string
	PollInterval  time.Duration
	Workers       int
	ScheduleBatch int
	// RunLease is how long a claimed run may go without a heartbeat before
	// another agent reclaims it
	RunLease time.Duration

	// HardLimit caps flow run listings
	HardLimit int
}

func (c Config) withDefaults() Config {
	if c.DefaultFlow == "" {
		c.DefaultFlow = "parent-flow"
	}
	if c.DeployWait <= 0 {
		c.DeployWait = 10 * time.Second
	}
	if c.DeployPoll <= 0 {
		c.DeployPoll = 500 * time.Millisecond
	}
	if c.WorkQueue == "" {
		c.WorkQueue = domain.DefaultWorkQueue
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	c.Workers = max(c.Workers, 1)
	if c.ScheduleBatch <= 0 {
		c.ScheduleBatch = 16
	}
	if c.RunLease <= 0 {
		c.RunLease = 2 * time.Minute
	}
	c.RunLease = max(c.RunLease, 3*c.PollInterval)
	if c.HardLimit <= 0 {
		c.HardLimit = 500
	}
	return c
}

// Runtime executes flows and tasks against the ledger
type Runtime struct {
	DB     repokit.TxRunner
	Binder repokit.Binder[repo.Storage]
	// Cache is nil when task caching is disabled
	Cache  domain.Cache
	Notify notify.Publisher
	Cfg    Config

	now   func() time.Time
	newID func() string

	mu    sync.RWMutex
	flows map[string]domain.FlowFunc
}

// New constructs the runtime
func New(db repokit.TxRunner, binder repokit.Binder[repo.Storage], cache domain.Cache, pub notify.Publisher, cfg Config) *Runtime {
	if db == nil {
		panic("orchestrator.Runtime requires a non nil TxRunner")
	}
	if binder == nil {
		panic("orchestrator.Runtime requires a non nil Repo binder")
	}
	if pub == nil {
		pub = notify.Noop{}
	}
	return &Runtime{
		DB: db, Binder: binder, Cache: cache, Notify: pub,
		Cfg:   cfg.withDefaults(),
		now:   time.Now,
		newID: uuid.NewString,
		flows: map[string]domain.FlowFunc{},
	}
}

// Register makes fn runnable by the agent under flow
func (rt *Runtime) Register(flow string, fn domain.FlowFunc) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.flows[flow] = fn
}

// Flow returns the registered body of flow
func (rt *Runtime) Flow(flow string) (domain.FlowFunc, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	fn, ok := rt.flows[flow]
	return fn, ok
}

// ledger runs fn in a transaction bounded by the DB budget
func (rt *Runtime) ledger(ctx context.Context, fn func(r repo.Storage) error) error {
	dbCtx, cancel := guardrails.ForDB(ctx, rt.Cfg.Timeouts)
	defer cancel()
	return rt.DB.Tx(dbCtx, func(q repokit.Queryer) error {
		return fn(rt.Binder.Bind(q))
	})
}

// ledgerAfter writes even when ctx is already cancelled
func (rt *Runtime) ledgerAfter(ctx context.Context, fn func(r repo.Storage) error) error {
	dctx, cancel := guardrails.Detached(ctx, rt.Cfg.Timeouts.DB)
	defer cancel()
	return rt.DB.Tx(dctx, func(q repokit.Queryer) error {
		return fn(rt.Binder.Bind(q))
	})
}

func runName(flow, id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return flow + "-" + id
}

// RunFlow implements domain.RuntimePort
func (rt *Runtime) RunFlow(ctx context.Context, flow, deployment string, params json.RawMessage, fn domain.FlowFunc) (domain.FlowRun, error) {
	id := rt.newID()
	run := domain.FlowRun{
		ID:          id,
		Flow:        flow,
		Name:        runName(flow, id),
		Deployment:  deployment,
		State:       domain.StatePending,
		Params:      params,
		ScheduledAt: rt.now().UTC(),
	}
	if err := rt.ledger(ctx, func(r repo.Storage) error { return r.InsertFlowRun(ctx, run) }); err != nil {
		return run, perr.FromPostgres(err, "create flow run")
	}
	return rt.execute(ctx, run, fn)
}

// execute drives an existing Pending run through Running to a terminal state
func (rt *Runtime) execute(ctx context.Context, run domain.FlowRun, fn domain.FlowFunc) (domain.FlowRun, error) {
	ctx, span := tracer.Start(ctx, "flow "+run.Flow, trace.WithAttributes(
		attribute.String("flow_run.id", run.ID),
		attribute.String("flow_run.deployment", run.Deployment),
	))
	defer span.End()

	ctx = logger.WithFlowRun(ctx, run.Flow, run.ID)
	ctx = withRun(ctx, &runScope{rt: rt, runID: run.ID, flow: run.Flow})
	log := logger.C(ctx)

	if err := rt.ledger(ctx, func(r repo.Storage) error {
		return r.SetFlowRunState(ctx, run.ID, domain.StateRunning, "")
	}); err != nil {
		log.Warn().Err(err).Msg("could not mark flow run running")
	}
	start := rt.now()
	run.State = domain.StateRunning
	run.StartedAt = &start
	log.Info().Str("name", run.Name).Msgf("Beginning flow run '%s' for flow '%s'", run.Name, run.Flow)

	flowCtx, cancel := guardrails.WithFlow(ctx, rt.Cfg.Timeouts)
	err := callFlow(flowCtx, fn, run.Params)
	cancel()

	end := rt.now()
	run.EndedAt = &end
	run.State = domain.StateCompleted
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		run.State = domain.StateCancelled
	default:
		run.State = domain.StateFailed
	}
	if err != nil {
		run.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, string(run.State))
		log.Error().Err(err).Msgf("Finished in state %s", run.State)
	} else {
		log.Info().Msgf("Finished in state %s", run.State)
	}

	if lerr := rt.ledgerAfter(ctx, func(r repo.Storage) error {
		return r.SetFlowRunState(ctx, run.ID, run.State, run.Error)
	}); lerr != nil {
		log.Warn().Err(lerr).Msg("could not record flow run state")
	}
	metrics.FlowRuns.WithLabelValues(run.Flow, string(run.State)).Inc()
	metrics.FlowRunDuration.WithLabelValues(run.Flow).Observe(end.Sub(start).Seconds())

	nctx, ncancel := guardrails.Detached(ctx, 5*time.Second)
	if nerr := rt.Notify.FlowRunFinished(nctx, notify.FlowRunEvent{
		ID: run.ID, Flow: run.Flow, Deployment: run.Deployment, State: string(run.State),
		Error: run.Error, StartedAt: start, EndedAt: end,
	}); nerr != nil {
		log.Warn().Err(nerr).Msg("flow run event not published")
	}
	ncancel()

	return run, err
}

// callFlow runs fn, turning a panic into an error
func callFlow(ctx context.Context, fn domain.FlowFunc, params json.RawMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = perr.PanicErrf("flow panicked: %v", r)
		}
	}()
	return fn(ctx, params)
}

// runScope is carried in the context of a running flow
type runScope struct {
	rt    *Runtime
	runID string
	flow  string
}

type scopeKey struct{}

func withRun(ctx context.Context, s *runScope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

func scopeOf(ctx context.Context) *runScope {
	s, _ := ctx.Value(scopeKey{}).(*runScope)
	return s
}

// FlowRunID returns the id of the flow run executing in ctx, if any
func FlowRunID(ctx context.Context) string {
	if s := scopeOf(ctx); s != nil {
		return s.runID
	}
	return ""
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprint(err)
}
