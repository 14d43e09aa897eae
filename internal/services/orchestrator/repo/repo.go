// Package repo provides postgres access for the orchestrator ledger
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"crimetrends/internal/modkit/repokit"
	perr "crimetrends/internal/platform/errors"
	"crimetrends/internal/platform/store"
	pstrings "crimetrends/internal/platform/strings"
	"crimetrends/internal/services/orchestrator/domain"
)

// Storage is the ledger repository
type Storage interface {
	InsertFlowRun(ctx context.Context, r domain.FlowRun) error
	// SetFlowRunState stamps started_at on Running and ended_at on terminal states
	SetFlowRunState(ctx context.Context, id string, state domain.State, errText string) error
	GetFlowRun(ctx context.Context, id string) (domain.FlowRun, error)
	ListFlowRuns(ctx context.Context, f domain.RunFilter) ([]domain.FlowRun, error)
	// ClaimFlowRun moves the oldest due Scheduled run of queue to Pending
	ClaimFlowRun(ctx context.Context, queue string, now time.Time) (domain.FlowRun, bool, error)
	// TouchFlowRuns refreshes the heartbeat of live Pending or Running runs
	TouchFlowRuns(ctx context.Context, ids []string, now time.Time) error
	// ReclaimStaleRuns returns Pending runs of queue whose heartbeat is older
	// than before to Scheduled and fails such Running runs with errText
	ReclaimStaleRuns(ctx context.Context, queue string, before time.Time, errText string) ([]domain.FlowRun, error)

	InsertTaskRun(ctx context.Context, r domain.TaskRun) error
	FinishTaskRun(ctx context.Context, id string, state domain.State, errText string) error
	ListTaskRuns(ctx context.Context, flowRunID string) ([]domain.TaskRun, error)

	UpsertDeployment(ctx context.Context, d domain.Deployment) error
	GetDeployment(ctx context.Context, name string) (domain.Deployment, error)
	ListDeployments(ctx context.Context) ([]domain.Deployment, error)
	// DueDeployments returns scheduled, unpaused deployments whose next run is at or before now
	DueDeployments(ctx context.Context, now time.Time, limit int) ([]domain.Deployment, error)
	SetNextRun(ctx context.Context, name string, next time.Time) error
	// ClaimScheduleSlot reports whether this caller is the first to claim the slot
	ClaimScheduleSlot(ctx context.Context, deployment string, at time.Time) (bool, error)

	CacheGet(ctx context.Context, key string, now time.Time) (json.RawMessage, bool, error)
	CachePut(ctx context.Context, key, task string, val json.RawMessage, expiresAt time.Time) error
}

type (
	// PG is a Postgres binder for Storage
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a Postgres binder for Storage
func NewPG() repokit.Binder[Storage] { return PG{} }

// Bind implements repokit.Binder
func (PG) Bind(q repokit.Queryer) Storage { return &queries{q: q} }

func jsonParam(b json.RawMessage) string {
	if len(b) == 0 {
		return "{}"
	}
	return string(b)
}

const flowRunCols = `id::text, flow, name, COALESCE(deployment, ''), COALESCE(work_queue, ''), state,
	params, COALESCE(error, ''), scheduled_at, started_at, ended_at`

func scanFlowRun(r store.Row) (domain.FlowRun, error) {
	var fr domain.FlowRun
	var state string
	var params []byte
	if err := r.Scan(&fr.ID, &fr.Flow, &fr.Name, &fr.Deployment, &fr.WorkQueue, &state,
		&params, &fr.Error, &fr.ScheduledAt, &fr.StartedAt, &fr.EndedAt); err != nil {
		return domain.FlowRun{}, err
	}
	fr.State = domain.State(state)
	fr.Params = params
	return fr, nil
}

// InsertFlowRun implements Storage
func (r *queries) InsertFlowRun(ctx context.Context, fr domain.FlowRun) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO flow_runs (id, flow, name, deployment, work_queue, state, params, scheduled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8)
	`, fr.ID, fr.Flow, fr.Name, pstrings.SQLNull(fr.Deployment), pstrings.SQLNull(fr.WorkQueue),
		string(fr.State), jsonParam(fr.Params), fr.ScheduledAt.UTC())
	return err
}

// SetFlowRunState implements Storage
func (r *queries) SetFlowRunState(ctx context.Context, id string, state domain.State, errText string) error {
	return store.ExecOne(ctx, r.q, `
		UPDATE flow_runs SET
			state = $2,
			error = NULLIF($3, ''),
			started_at = CASE WHEN $2 = 'Running' THEN COALESCE(started_at, now()) ELSE started_at END,
			ended_at = CASE WHEN $4 THEN now() ELSE ended_at END,
			heartbeat_at = CASE WHEN $4 THEN NULL ELSE now() END
		WHERE id = $1
	`, id, string(state), errText, state.Terminal())
}

// GetFlowRun implements Storage
func (r *queries) GetFlowRun(ctx context.Context, id string) (domain.FlowRun, error) {
	fr, err := store.One(ctx, r.q, scanFlowRun, `SELECT `+flowRunCols+` FROM flow_runs WHERE id = $1`, id)
	if errors.Is(err, perr.ErrNotFound) {
		return domain.FlowRun{}, perr.WithField(perr.NotFoundf("flow run %s not found", id), "id")
	}
	return fr, err
}

// ListFlowRuns implements Storage
func (r *queries) ListFlowRuns(ctx context.Context, f domain.RunFilter) ([]domain.FlowRun, error) {
	var sb strings.Builder
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	sb.WriteString(`SELECT ` + flowRunCols + ` FROM flow_runs WHERE true`)
	if f.State != "" {
		sb.WriteString(" AND state = " + arg(string(f.State)))
	}
	if f.Flow != "" {
		sb.WriteString(" AND flow = " + arg(f.Flow))
	}
	sb.WriteString(" ORDER BY scheduled_at DESC, id LIMIT " + arg(f.Limit))
	return store.Many(ctx, r.q, scanFlowRun, sb.String(), args...)
}

// ClaimFlowRun implements Storage
func (r *queries) ClaimFlowRun(ctx context.Context, queue string, now time.Time) (domain.FlowRun, bool, error) {
	fr, err := store.One(ctx, r.q, scanFlowRun, `
		WITH next AS (
			SELECT id
			  FROM flow_runs
			 WHERE state = 'Scheduled'
			   AND work_queue = $1
			   AND scheduled_at <= $2
			 ORDER BY scheduled_at ASC
			 LIMIT 1
			 FOR UPDATE SKIP LOCKED
		)
		UPDATE flow_runs f
		   SET state = 'Pending', heartbeat_at = $2
		  FROM next
		 WHERE f.id = next.id
		RETURNING f.id::text, f.flow, f.name, COALESCE(f.deployment, ''), COALESCE(f.work_queue, ''), f.state,
			f.params, COALESCE(f.error, ''), f.scheduled_at, f.started_at, f.ended_at
	`, queue, now.UTC())
	if errors.Is(err, perr.ErrNotFound) {
		return domain.FlowRun{}, false, nil
	}
	if err != nil {
		return domain.FlowRun{}, false, err
	}
	return fr, true, nil
}

// TouchFlowRuns implements Storage
func (r *queries) TouchFlowRuns(ctx context.Context, ids []string, now time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.q.Exec(ctx, `
		UPDATE flow_runs SET heartbeat_at = $2
		 WHERE id::text = ANY($1::text[]) AND state IN ('Pending', 'Running')
	`, ids, now.UTC())
	return err
}

// ReclaimStaleRuns implements Storage
func (r *queries) ReclaimStaleRuns(ctx context.Context, queue string, before time.Time, errText string) ([]domain.FlowRun, error) {
	return store.Many(ctx, r.q, scanFlowRun, `
		UPDATE flow_runs SET
			state = CASE WHEN state = 'Pending' THEN 'Scheduled' ELSE 'Failed' END,
			error = CASE WHEN state = 'Running' THEN $3 ELSE error END,
			ended_at = CASE WHEN state = 'Running' THEN now() ELSE ended_at END,
			heartbeat_at = NULL
		WHERE work_queue = $1
		  AND state IN ('Pending', 'Running')
		  AND COALESCE(heartbeat_at, started_at, scheduled_at) < $2
		RETURNING `+flowRunCols, queue, before.UTC(), errText)
}

// InsertTaskRun implements Storage
func (r *queries) InsertTaskRun(ctx context.Context, tr domain.TaskRun) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO task_runs (id, flow_run_id, task, attempt, state, cache_key, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, tr.ID, tr.FlowRunID, tr.Task, tr.Attempt, string(tr.State), pstrings.SQLNull(tr.CacheKey), tr.StartedAt.UTC())
	return err
}

// FinishTaskRun implements Storage
func (r *queries) FinishTaskRun(ctx context.Context, id string, state domain.State, errText string) error {
	return store.ExecOne(ctx, r.q, `
		UPDATE task_runs SET state = $2, error = NULLIF($3, ''), ended_at = now() WHERE id = $1
	`, id, string(state), errText)
}

func scanTaskRun(r store.Row) (domain.TaskRun, error) {
	var tr domain.TaskRun
	var state string
	if err := r.Scan(&tr.ID, &tr.FlowRunID, &tr.Task, &tr.Attempt, &state,
		&tr.CacheKey, &tr.Error, &tr.StartedAt, &tr.EndedAt); err != nil {
		return domain.TaskRun{}, err
	}
	tr.State = domain.State(state)
	return tr, nil
}

// ListTaskRuns implements Storage
func (r *queries) ListTaskRuns(ctx context.Context, flowRunID string) ([]domain.TaskRun, error) {
	return store.Many(ctx, r.q, scanTaskRun, `
		SELECT id::text, flow_run_id::text, task, attempt, state,
			COALESCE(cache_key, ''), COALESCE(error, ''), started_at, ended_at
		  FROM task_runs
		 WHERE flow_run_id = $1
		 ORDER BY started_at, attempt
	`, flowRunID)
}

const deploymentCols = `name, flow, cron, work_queue, params, paused, next_run_at, updated_at`

func scanDeployment(r store.Row) (domain.Deployment, error) {
	var d domain.Deployment
	var params []byte
	if err := r.Scan(&d.Name, &d.Flow, &d.Cron, &d.WorkQueue, &params, &d.Paused, &d.NextRunAt, &d.UpdatedAt); err != nil {
		return domain.Deployment{}, err
	}
	d.Params = params
	return d, nil
}

// UpsertDeployment implements Storage
func (r *queries) UpsertDeployment(ctx context.Context, d domain.Deployment) error {
	var next any
	if d.NextRunAt != nil {
		next = d.NextRunAt.UTC()
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO deployments (name, flow, cron, work_queue, params, paused, next_run_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7)
		ON CONFLICT (name) DO UPDATE SET
			flow = EXCLUDED.flow,
			cron = EXCLUDED.cron,
			work_queue = EXCLUDED.work_queue,
			params = EXCLUDED.params,
			paused = EXCLUDED.paused,
			next_run_at = EXCLUDED.next_run_at,
			updated_at = now()
	`, d.Name, d.Flow, d.Cron, d.WorkQueue, jsonParam(d.Params), d.Paused, next)
	return err
}

// GetDeployment implements Storage
func (r *queries) GetDeployment(ctx context.Context, name string) (domain.Deployment, error) {
	d, err := store.One(ctx, r.q, scanDeployment, `SELECT `+deploymentCols+` FROM deployments WHERE name = $1`, name)
	if errors.Is(err, perr.ErrNotFound) {
		return domain.Deployment{}, perr.WithField(perr.NotFoundf("deployment %q not found", name), "name")
	}
	return d, err
}

// ListDeployments implements Storage
func (r *queries) ListDeployments(ctx context.Context) ([]domain.Deployment, error) {
	return store.Many(ctx, r.q, scanDeployment, `SELECT `+deploymentCols+` FROM deployments ORDER BY name`)
}

// DueDeployments implements Storage
func (r *queries) DueDeployments(ctx context.Context, now time.Time, limit int) ([]domain.Deployment, error) {
	return store.Many(ctx, r.q, scanDeployment, `
		SELECT `+deploymentCols+`
		  FROM deployments
		 WHERE cron <> '' AND NOT paused AND next_run_at IS NOT NULL AND next_run_at <= $1
		 ORDER BY next_run_at
		 LIMIT $2
		 FOR UPDATE SKIP LOCKED
	`, now.UTC(), limit)
}

// SetNextRun implements Storage
func (r *queries) SetNextRun(ctx context.Context, name string, next time.Time) error {
	return store.ExecOne(ctx, r.q, `UPDATE deployments SET next_run_at = $2 WHERE name = $1`, name, next.UTC())
}

// ClaimScheduleSlot implements Storage
func (r *queries) ClaimScheduleSlot(ctx context.Context, deployment string, at time.Time) (bool, error) {
	rows, err := r.q.Query(ctx, `
		INSERT INTO schedule_leases (deployment, scheduled_at)
		VALUES ($1, $2)
		ON CONFLICT (deployment, scheduled_at) DO NOTHING
		RETURNING true
	`, deployment, at.UTC())
	if err != nil {
		return false, err
	}
	defer rows.Close()
	claimed := rows.Next()
	return claimed, rows.Err()
}

// CacheGet implements Storage
func (r *queries) CacheGet(ctx context.Context, key string, now time.Time) (json.RawMessage, bool, error) {
	val, err := store.One(ctx, r.q, func(row store.Row) ([]byte, error) {
		var b []byte
		err := row.Scan(&b)
		return b, err
	}, `SELECT value FROM task_cache WHERE cache_key = $1 AND expires_at > $2`, key, now.UTC())
	if errors.Is(err, perr.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// CachePut implements Storage
func (r *queries) CachePut(ctx context.Context, key, task string, val json.RawMessage, expiresAt time.Time) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO task_cache (cache_key, task, value, expires_at)
		VALUES ($1, $2, $3::jsonb, $4)
		ON CONFLICT (cache_key) DO UPDATE
		SET task = EXCLUDED.task, value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, created_at = now()
	`, key, task, string(val), expiresAt.UTC())
	return err
}
