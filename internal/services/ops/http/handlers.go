// Package http provides the ops endpoints: health, deployments and flow runs
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"crimetrends/internal/core/version"
	perr "crimetrends/internal/platform/errors"
	phttp "crimetrends/internal/platform/net/http"
	odomain "crimetrends/internal/services/orchestrator/domain"
)

// Guard is satisfied by the platform store
type Guard interface {
	Guard(ctx context.Context) error
}

// Deps are the handler dependencies
type Deps struct {
	ServiceName string
	StartedAt   time.Time
	// Guard may be nil; health then reports the store as skipped
	Guard  Guard
	Deploy odomain.DeployPort
	Query  odomain.QueryPort
	// ValidateParams checks run parameters before a run is created
	ValidateParams func(json.RawMessage) error
	GuardTimeout   time.Duration
}

type handlers struct {
	deps Deps
}

// Register mounts the ops routes
func Register(r phttp.Router, d Deps) {
	if d.GuardTimeout <= 0 {
		d.GuardTimeout = 2 * time.Second
	}
	h := &handlers{deps: d}

	phttp.GetJSON(r, "/healthz", h.health)
	phttp.GetJSON(r, "/version", h.version)
	phttp.GetJSON(r, "/deployments", h.deployments)
	phttp.PostJSON(r, "/deployments/{name}/runs", h.createRun)
	phttp.GetJSON(r, "/flow-runs", h.flowRuns)
	phttp.GetJSON(r, "/flow-runs/{id}", h.flowRun)
}

// HealthResponse is the health payload
type HealthResponse struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
	Store   string `json:"store"` // ok skipped
	Started string `json:"started"`
	Now     string `json:"now"`
}

// RunRequest is the body of a run trigger; empty params use the deployment's
type RunRequest struct {
	Params json.RawMessage `json:"params,omitempty"`
}

// FlowRunResponse is a flow run with its task runs
type FlowRunResponse struct {
	Run      odomain.FlowRun   `json:"run"`
	TaskRuns []odomain.TaskRun `json:"task_runs"`
}

func (h *handlers) health(r *http.Request) (any, error) {
	store := "skipped"
	if h.deps.Guard != nil {
		ctx, cancel := context.WithTimeout(r.Context(), h.deps.GuardTimeout)
		defer cancel()
		if err := h.deps.Guard.Guard(ctx); err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "store guard failed")
		}
		store = "ok"
	}
	return HealthResponse{
		OK:      true,
		Service: h.deps.ServiceName,
		Store:   store,
		Started: h.deps.StartedAt.UTC().Format(time.RFC3339),
		Now:     time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (h *handlers) version(*http.Request) (any, error) {
	return version.Info(h.deps.ServiceName), nil
}

func (h *handlers) deployments(r *http.Request) (any, error) {
	deps, err := h.deps.Deploy.ListDeployments(r.Context())
	if err != nil {
		return nil, err
	}
	return phttp.List(deps, len(deps), 0), nil
}

func (h *handlers) createRun(r *http.Request, in RunRequest) (any, error) {
	name := phttp.URLParam(r, "name")
	if strings.TrimSpace(name) == "" {
		return nil, perr.WithField(perr.InvalidArgf("deployment name is empty"), "name")
	}
	if len(in.Params) > 0 && h.deps.ValidateParams != nil {
		if err := h.deps.ValidateParams(in.Params); err != nil {
			return nil, err
		}
	}
	return h.deps.Deploy.CreateRun(r.Context(), name, in.Params)
}

// parseFilter reads state and limit from the query string
func parseFilter(r *http.Request) (odomain.RunFilter, error) {
	q := r.URL.Query()
	f := odomain.RunFilter{State: odomain.State(q.Get("state")), Flow: q.Get("flow")}
	if f.State != "" && !f.State.Valid() {
		return f, perr.WithField(perr.InvalidArgf("unknown state %q", f.State), "state")
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return f, perr.WithField(perr.InvalidArgf("limit must be a non-negative integer"), "limit")
		}
		f.Limit = n
	}
	return f, nil
}

func (h *handlers) flowRuns(r *http.Request) (any, error) {
	f, err := parseFilter(r)
	if err != nil {
		return nil, err
	}
	runs, err := h.deps.Query.ListFlowRuns(r.Context(), f)
	if err != nil {
		return nil, err
	}
	return phttp.List(runs, len(runs), f.Limit), nil
}

func (h *handlers) flowRun(r *http.Request) (any, error) {
	run, tasks, err := h.deps.Query.GetFlowRun(r.Context(), phttp.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []odomain.TaskRun{}
	}
	return FlowRunResponse{Run: run, TaskRuns: tasks}, nil
}
