package service

import (
	"context"

	"crimetrends/internal/services/orchestrator/domain"
	"crimetrends/internal/services/orchestrator/repo"
)

// ListFlowRuns implements domain.QueryPort. Limits outside 1..HardLimit are clamped
func (rt *Runtime) ListFlowRuns(ctx context.Context, f domain.RunFilter) ([]domain.FlowRun, error) {
	if f.Limit <= 0 || f.Limit > rt.Cfg.HardLimit {
		f.Limit = rt.Cfg.HardLimit
	}
	var out []domain.FlowRun
	err := rt.ledger(ctx, func(r repo.Storage) error {
		var err error
		out, err = r.ListFlowRuns(ctx, f)
		return err
	})
	if err != nil {
		return nil, ledgerErr(err, "list flow runs")
	}
	return out, nil
}

// GetFlowRun implements domain.QueryPort
func (rt *Runtime) GetFlowRun(ctx context.Context, id string) (domain.FlowRun, []domain.TaskRun, error) {
	var (
		run   domain.FlowRun
		tasks []domain.TaskRun
	)
	err := rt.ledger(ctx, func(r repo.Storage) error {
		var err error
		if run, err = r.GetFlowRun(ctx, id); err != nil {
			return err
		}
		tasks, err = r.ListTaskRuns(ctx, id)
		return err
	})
	if err != nil {
		return domain.FlowRun{}, nil, ledgerErr(err, "load flow run")
	}
	return run, tasks, nil
}
