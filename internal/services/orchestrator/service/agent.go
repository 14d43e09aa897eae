package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"crimetrends/internal/platform/logger"
	"crimetrends/internal/platform/metrics"
	"crimetrends/internal/services/orchestrator/domain"
	"crimetrends/internal/services/orchestrator/guardrails"
	"crimetrends/internal/services/orchestrator/repo"
)

// Agent enqueues runs of due deployments and executes runs claimed from its
// work queue
type Agent struct {
	rt    *Runtime
	lease guardrails.Lease

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewAgent constructs an agent; lease guards each schedule slot across agents
func NewAgent(rt *Runtime, lease guardrails.Lease) *Agent {
	if rt == nil {
		panic("orchestrator.Agent requires a non nil Runtime")
	}
	if lease == nil {
		lease = guardrails.MakeScheduleLease()
	}
	return &Agent{rt: rt, lease: lease, inflight: map[string]struct{}{}}
}

// Run implements domain.AgentPort. It returns ctx.Err() after in-flight runs finish
func (a *Agent) Run(ctx context.Context) error {
	log := logger.Named("agent")
	cfg := a.rt.Cfg
	log.Info().Str("work_queue", cfg.WorkQueue).Int("workers", cfg.Workers).
		Dur("poll_interval", cfg.PollInterval).Dur("run_lease", cfg.RunLease).Msg("agent started")

	sem := make(chan struct{}, cfg.Workers)
	var wg sync.WaitGroup
	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := a.Heartbeat(ctx); err != nil {
			log.Warn().Err(err).Msg("flow run heartbeat failed")
		}
		if n, err := a.Reclaim(ctx); err != nil {
			log.Error().Err(err).Msg("reclaim stale flow runs failed")
		} else if n > 0 {
			log.Warn().Int("runs", n).Msg("reclaimed stale flow runs")
		}
		if n, err := a.Schedule(ctx); err != nil {
			log.Error().Err(err).Msg("schedule due deployments failed")
		} else if n > 0 {
			log.Debug().Int("runs", n).Msg("scheduled due deployments")
		}
		a.dispatch(ctx, sem, &wg)

		select {
		case <-ctx.Done():
			wg.Wait()
			log.Info().Msg("agent stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Schedule advances every due deployment to its next fire time and enqueues
// one run per elapsed slot. The slot claim, the run and the new next_run_at
// commit together; any failure leaves every deployment as it was. It returns
// the number of runs enqueued
func (a *Agent) Schedule(ctx context.Context) (int, error) {
	log := logger.Named("agent")
	now := a.rt.now()

	var runs []domain.FlowRun
	err := a.rt.ledger(ctx, func(r repo.Storage) error {
		runs = runs[:0]
		due, err := r.DueDeployments(ctx, now, a.rt.Cfg.ScheduleBatch)
		if err != nil {
			return err
		}
		for _, d := range due {
			next, err := NextRun(d.Cron, now)
			if err != nil {
				log.Warn().Err(err).Str("deployment", d.Name).Msg("deployment has an invalid cron; skipped")
				continue
			}
			at := *d.NextRunAt
			err = a.lease(ctx, r, d.Name, at, func(ctx context.Context) error {
				run := a.rt.scheduledRun(d, nil, at)
				if err := r.InsertFlowRun(ctx, run); err != nil {
					return err
				}
				runs = append(runs, run)
				return nil
			})
			switch {
			case errors.Is(err, guardrails.ErrLeaseHeld):
				log.Debug().Str("deployment", d.Name).Time("slot", at).Msg("slot already enqueued")
			case err != nil:
				log.Error().Err(err).Str("deployment", d.Name).Time("slot", at).Msg("enqueue scheduled run failed")
				return err
			}
			if err := r.SetNextRun(ctx, d.Name, next); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, ledgerErr(err, "schedule due deployments")
	}
	for _, run := range runs {
		logScheduled(ctx, run)
	}
	return len(runs), nil
}

// Heartbeat refreshes the ledger heartbeat of the runs this agent executes
func (a *Agent) Heartbeat(ctx context.Context) error {
	ids := a.live()
	if len(ids) == 0 {
		return nil
	}
	now := a.rt.now()
	err := a.rt.ledger(ctx, func(r repo.Storage) error { return r.TouchFlowRuns(ctx, ids, now) })
	if err != nil {
		return ledgerErr(err, "touch flow runs")
	}
	return nil
}

// Reclaim recovers runs of the work queue whose agent stopped beating for
// longer than RunLease. A Pending run goes back to Scheduled; a Running run
// is failed since its tasks may have partly run
func (a *Agent) Reclaim(ctx context.Context) (int, error) {
	before := a.rt.now().Add(-a.rt.Cfg.RunLease)
	errText := "agent lost: no heartbeat since " + before.UTC().Format(time.RFC3339)
	var runs []domain.FlowRun
	err := a.rt.ledger(ctx, func(r repo.Storage) error {
		var err error
		runs, err = r.ReclaimStaleRuns(ctx, a.rt.Cfg.WorkQueue, before, errText)
		return err
	})
	if err != nil {
		return 0, ledgerErr(err, "reclaim stale flow runs")
	}
	for _, run := range runs {
		logger.C(logger.WithFlowRun(ctx, run.Flow, run.ID)).Warn().
			Str("state", string(run.State)).Msg("reclaimed stale flow run")
		if run.State == domain.StateFailed {
			metrics.FlowRuns.WithLabelValues(run.Flow, string(run.State)).Inc()
		}
	}
	return len(runs), nil
}

func (a *Agent) track(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inflight[id] = struct{}{}
}

func (a *Agent) untrack(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.inflight, id)
}

func (a *Agent) live() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]string, 0, len(a.inflight))
	for id := range a.inflight {
		ids = append(ids, id)
	}
	return ids
}

// dispatch claims runs while a worker slot is free
func (a *Agent) dispatch(ctx context.Context, sem chan struct{}, wg *sync.WaitGroup) {
	for ctx.Err() == nil {
		select {
		case sem <- struct{}{}:
		default:
			return
		}
		run, ok, err := a.Claim(ctx)
		if err != nil || !ok {
			<-sem
			if err != nil {
				logger.Named("agent").Error().Err(err).Msg("claim flow run failed")
			}
			return
		}
		a.track(run.ID)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			defer a.untrack(run.ID)
			a.Execute(ctx, run)
		}()
	}
}

// Claim moves the oldest due Scheduled run of the agent's queue to Pending
func (a *Agent) Claim(ctx context.Context) (domain.FlowRun, bool, error) {
	var (
		run domain.FlowRun
		ok  bool
	)
	err := a.rt.ledger(ctx, func(r repo.Storage) error {
		var err error
		run, ok, err = r.ClaimFlowRun(ctx, a.rt.Cfg.WorkQueue, a.rt.now())
		return err
	})
	if err != nil {
		return domain.FlowRun{}, false, ledgerErr(err, "claim flow run")
	}
	return run, ok, nil
}

// Execute runs a claimed run with its registered flow. A run of an unknown
// flow is marked Failed
func (a *Agent) Execute(ctx context.Context, run domain.FlowRun) domain.FlowRun {
	gauge := metrics.ScheduledRuns.WithLabelValues(a.rt.Cfg.WorkQueue)
	gauge.Inc()
	defer gauge.Dec()

	fn, ok := a.rt.Flow(run.Flow)
	if !ok {
		run.State = domain.StateFailed
		run.Error = "flow " + run.Flow + " is not registered with this agent"
		log := logger.C(logger.WithFlowRun(ctx, run.Flow, run.ID))
		log.Error().Msg(run.Error)
		if err := a.rt.ledgerAfter(ctx, func(r repo.Storage) error {
			return r.SetFlowRunState(ctx, run.ID, run.State, run.Error)
		}); err != nil {
			log.Warn().Err(err).Msg("could not record flow run state")
		}
		metrics.FlowRuns.WithLabelValues(run.Flow, string(run.State)).Inc()
		return run
	}
	out, _ := a.rt.execute(ctx, run, fn)
	return out
}
