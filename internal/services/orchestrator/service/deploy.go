package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	perr "crimetrends/internal/platform/errors"
	"crimetrends/internal/platform/logger"
	ptime "crimetrends/internal/platform/time"
	"crimetrends/internal/services/orchestrator/domain"
	"crimetrends/internal/services/orchestrator/repo"

	"github.com/robfig/cron/v3"
)

// SchedulePrefix names deployments that carry a cron
const SchedulePrefix = "schedule-"

// DeploymentName returns the stored name of a deployment: scheduled ones get
// the schedule- prefix
func DeploymentName(name, cronExpr string) string {
	if cronExpr != "" {
		return SchedulePrefix + name
	}
	return name
}

// DeploymentRef returns the flow/deployment reference used to start a run
func DeploymentRef(flow, deployment string) string {
	return flow + "/" + deployment
}

// ParseRef splits a flow/deployment reference
func ParseRef(ref string) (flow, deployment string, err error) {
	flow, deployment, ok := strings.Cut(ref, "/")
	if !ok || flow == "" || deployment == "" {
		return "", "", perr.WithField(perr.InvalidArgf("deployment reference %q is not flow/name", ref), "ref")
	}
	return flow, deployment, nil
}

// NextRun parses a standard five field cron and returns the first fire time after from
func NextRun(expr string, from time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return time.Time{}, perr.WithField(perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "invalid cron %q", expr), "cron")
	}
	return sched.Next(from).UTC(), nil
}

// Deploy implements domain.DeployPort. A cron deployment is only stored;
// the agent's scheduler enqueues its runs. Without a cron the deployment
// runs once now and Deploy waits a bounded time for the outcome
func (rt *Runtime) Deploy(ctx context.Context, name, cronExpr string, params json.RawMessage) (domain.DeployResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.DeployResult{}, perr.WithField(perr.New(perr.ErrorCodeValidation, "deployment name is required"), "name")
	}
	if len(params) > 0 && !json.Valid(params) {
		return domain.DeployResult{}, perr.WithField(perr.JSONErrf("params are not valid JSON"), "params")
	}

	d := domain.Deployment{
		Name:      DeploymentName(name, cronExpr),
		Flow:      rt.Cfg.DefaultFlow,
		Cron:      cronExpr,
		WorkQueue: rt.Cfg.WorkQueue,
		Params:    params,
	}
	if d.Scheduled() {
		next, err := NextRun(cronExpr, rt.now())
		if err != nil {
			return domain.DeployResult{}, err
		}
		d.NextRunAt = ptime.Ptr(next)
	}

	if err := rt.ledger(ctx, func(r repo.Storage) error { return r.UpsertDeployment(ctx, d) }); err != nil {
		return domain.DeployResult{}, perr.FromPostgres(err, "save deployment")
	}
	log := logger.C(ctx).With().Str("deployment", d.Name).Logger()
	res := domain.DeployResult{Deployment: d}

	if d.Scheduled() {
		log.Info().Str("cron", d.Cron).Time("next_run_at", *d.NextRunAt).Msg("deployment scheduled")
		return res, nil
	}

	run, err := rt.RunDeployment(ctx, DeploymentRef(d.Flow, d.Name), params)
	if err != nil {
		return res, err
	}
	run, err = rt.waitRun(ctx, run)
	if err != nil {
		return res, err
	}
	res.Run = &run
	log.Info().Str("flow_run_id", run.ID).Str("state", string(run.State)).Msg("deployment run")
	return res, nil
}

// ListDeployments implements domain.DeployPort
func (rt *Runtime) ListDeployments(ctx context.Context) ([]domain.Deployment, error) {
	var out []domain.Deployment
	err := rt.ledger(ctx, func(r repo.Storage) error {
		var err error
		out, err = r.ListDeployments(ctx)
		return err
	})
	if err != nil {
		return nil, perr.FromPostgres(err, "list deployments")
	}
	return out, nil
}

// CreateRun implements domain.DeployPort
func (rt *Runtime) CreateRun(ctx context.Context, deployment string, params json.RawMessage) (domain.FlowRun, error) {
	var d domain.Deployment
	err := rt.ledger(ctx, func(r repo.Storage) error {
		var err error
		d, err = r.GetDeployment(ctx, deployment)
		return err
	})
	if err != nil {
		return domain.FlowRun{}, ledgerErr(err, "load deployment")
	}
	return rt.enqueue(ctx, d, params, rt.now())
}

// RunDeployment schedules a run now for a flow/deployment reference
func (rt *Runtime) RunDeployment(ctx context.Context, ref string, params json.RawMessage) (domain.FlowRun, error) {
	flow, name, err := ParseRef(ref)
	if err != nil {
		return domain.FlowRun{}, err
	}
	var d domain.Deployment
	err = rt.ledger(ctx, func(r repo.Storage) error {
		var err error
		d, err = r.GetDeployment(ctx, name)
		return err
	})
	if err != nil {
		return domain.FlowRun{}, ledgerErr(err, "load deployment")
	}
	if d.Flow != flow {
		return domain.FlowRun{}, perr.WithField(perr.NotFoundf("deployment %q of flow %q not found", name, flow), "ref")
	}
	return rt.enqueue(ctx, d, params, rt.now())
}

// enqueue inserts a Scheduled run of d; params override the deployment's
func (rt *Runtime) enqueue(ctx context.Context, d domain.Deployment, params json.RawMessage, at time.Time) (domain.FlowRun, error) {
	run := rt.scheduledRun(d, params, at)
	if err := rt.ledger(ctx, func(r repo.Storage) error { return r.InsertFlowRun(ctx, run) }); err != nil {
		return domain.FlowRun{}, perr.FromPostgres(err, "create flow run")
	}
	logScheduled(ctx, run)
	return run, nil
}

func logScheduled(ctx context.Context, run domain.FlowRun) {
	logger.C(ctx).Info().Str("deployment", run.Deployment).Str("flow_run_id", run.ID).
		Time("scheduled_at", run.ScheduledAt).Msg("flow run scheduled")
}

// scheduledRun builds a Scheduled run of d at at without writing it
func (rt *Runtime) scheduledRun(d domain.Deployment, params json.RawMessage, at time.Time) domain.FlowRun {
	if len(params) == 0 {
		params = d.Params
	}
	id := rt.newID()
	run := domain.FlowRun{
		ID:          id,
		Flow:        d.Flow,
		Name:        runName(d.Flow, id),
		Deployment:  d.Name,
		WorkQueue:   d.WorkQueue,
		State:       domain.StateScheduled,
		Params:      params,
		ScheduledAt: at.UTC(),
	}
	if run.WorkQueue == "" {
		run.WorkQueue = domain.DefaultWorkQueue
	}
	return run
}

// waitRun polls run until it is terminal or DeployWait passes. Running out
// of time returns the last observed state without error
func (rt *Runtime) waitRun(ctx context.Context, run domain.FlowRun) (domain.FlowRun, error) {
	wctx, cancel := context.WithTimeout(ctx, rt.Cfg.DeployWait)
	defer cancel()
	for !run.State.Terminal() {
		if err := sleepCtx(wctx, rt.Cfg.DeployPoll); err != nil {
			if ctx.Err() != nil {
				return run, ctx.Err()
			}
			return run, nil
		}
		var cur domain.FlowRun
		err := rt.ledger(wctx, func(r repo.Storage) error {
			var err error
			cur, err = r.GetFlowRun(wctx, run.ID)
			return err
		})
		switch {
		case err == nil:
			run = cur
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			return run, nil
		default:
			return run, ledgerErr(err, "load flow run")
		}
	}
	return run, nil
}

// ledgerErr keeps project errors such as NotFound and classifies the rest
func ledgerErr(err error, msg string) error {
	if _, ok := perr.As(err); ok {
		return err
	}
	return perr.FromPostgres(err, msg)
}
