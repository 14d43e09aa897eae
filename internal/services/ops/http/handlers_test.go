package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	perr "crimetrends/internal/platform/errors"
	phttp "crimetrends/internal/platform/net/http"
	kit "crimetrends/internal/platform/testkit"
	odomain "crimetrends/internal/services/orchestrator/domain"

	"github.com/go-chi/chi/v5"
)

type fakeGuard struct{ err error }

func (g fakeGuard) Guard(context.Context) error { return g.err }

type fakeOrch struct {
	deployments []odomain.Deployment
	runs        []odomain.FlowRun
	tasks       map[string][]odomain.TaskRun
	filter      odomain.RunFilter
	created     []string
	params      json.RawMessage
}

func (f *fakeOrch) Deploy(context.Context, string, string, json.RawMessage) (odomain.DeployResult, error) {
	return odomain.DeployResult{}, errors.New("not used")
}

func (f *fakeOrch) ListDeployments(context.Context) ([]odomain.Deployment, error) {
	return f.deployments, nil
}

func (f *fakeOrch) CreateRun(_ context.Context, deployment string, params json.RawMessage) (odomain.FlowRun, error) {
	for _, d := range f.deployments {
		if d.Name == deployment {
			f.created = append(f.created, deployment)
			f.params = params
			return odomain.FlowRun{ID: "run-9", Flow: d.Flow, Deployment: d.Name, State: odomain.StateScheduled}, nil
		}
	}
	return odomain.FlowRun{}, perr.NotFoundf("deployment %q not found", deployment)
}

func (f *fakeOrch) ListFlowRuns(_ context.Context, rf odomain.RunFilter) ([]odomain.FlowRun, error) {
	f.filter = rf
	var out []odomain.FlowRun
	for _, r := range f.runs {
		if rf.State == "" || r.State == rf.State {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeOrch) GetFlowRun(_ context.Context, id string) (odomain.FlowRun, []odomain.TaskRun, error) {
	for _, r := range f.runs {
		if r.ID == id {
			return r, f.tasks[id], nil
		}
	}
	return odomain.FlowRun{}, nil, perr.ErrNotFound
}

func newRouter(t *testing.T, guard Guard, validate func(json.RawMessage) error) (http.Handler, *fakeOrch) {
	t.Helper()
	orch := &fakeOrch{
		deployments: []odomain.Deployment{
			{Name: "schedule-nightly", Flow: "parent-flow", Cron: "0 6 * * *", WorkQueue: "default"},
			{Name: "adhoc", Flow: "parent-flow", WorkQueue: "default"},
		},
		runs: []odomain.FlowRun{
			{ID: "run-1", Flow: "parent-flow", State: odomain.StateCompleted},
			{ID: "run-2", Flow: "web-to-lake", State: odomain.StateFailed, Error: "boom"},
		},
		tasks: map[string][]odomain.TaskRun{
			"run-1": {{ID: "t-1", FlowRunID: "run-1", Task: "download_file", Attempt: 1, State: odomain.StateCompleted}},
		},
	}
	r := phttp.AdaptChi(chi.NewRouter())
	Register(r, Deps{
		ServiceName:    "crimetrends-agent",
		StartedAt:      time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
		Guard:          guard,
		Deploy:         orch,
		Query:          orch,
		ValidateParams: validate,
	})
	return r.Mux(), orch
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) phttp.Envelope {
	t.Helper()
	var env phttp.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v body=%s", err, rec.Body.String())
	}
	return env
}

func TestHealth(t *testing.T) {
	h, _ := newRouter(t, fakeGuard{}, nil)
	rec := do(h, "GET", "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d %s", rec.Code, rec.Body.String())
	}
	kit.MustContain(t, rec.Body.String(), `"store":"ok"`)
	kit.MustContain(t, rec.Body.String(), `"service":"crimetrends-agent"`)

	h, _ = newRouter(t, nil, nil)
	kit.MustContain(t, do(h, "GET", "/healthz", "").Body.String(), `"store":"skipped"`)

	h, _ = newRouter(t, fakeGuard{err: errors.New("pg: connection refused")}, nil)
	rec = do(h, "GET", "/healthz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("failing guard = %d", rec.Code)
	}
	if env := decode(t, rec); env.Code != perr.ErrorCodeUnavailable {
		t.Fatalf("code = %v", env.Code)
	}
}

func TestVersion(t *testing.T) {
	h, _ := newRouter(t, nil, nil)
	rec := do(h, "GET", "/version", "")
	kit.MustContain(t, rec.Body.String(), `"service":"crimetrends-agent"`)
	kit.MustContain(t, rec.Body.String(), `"version":"dev"`)
}

func TestListDeployments(t *testing.T) {
	h, _ := newRouter(t, nil, nil)
	rec := do(h, "GET", "/deployments", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("deployments = %d", rec.Code)
	}
	env := decode(t, rec)
	if env.Page == nil || env.Page.Total != 2 {
		t.Fatalf("page = %+v", env.Page)
	}
	kit.MustContain(t, rec.Body.String(), `"name":"schedule-nightly"`)
}

func TestCreateRun(t *testing.T) {
	var validated json.RawMessage
	validate := func(p json.RawMessage) error {
		validated = p
		if strings.Contains(string(p), "1999") {
			return perr.WithField(perr.New(perr.ErrorCodeValidation, "sd_from must be 2000 or greater"), "sd_from")
		}
		return nil
	}
	h, orch := newRouter(t, nil, validate)

	rec := do(h, "POST", "/deployments/adhoc/runs", `{"params":{"sd_from":2020}}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("create = %d %s", rec.Code, rec.Body.String())
	}
	kit.MustContain(t, rec.Body.String(), `"id":"run-9"`)
	if len(orch.created) != 1 || string(orch.params) != `{"sd_from":2020}` || string(validated) != `{"sd_from":2020}` {
		t.Fatalf("created=%v params=%s validated=%s", orch.created, orch.params, validated)
	}

	rec = do(h, "POST", "/deployments/adhoc/runs", "")
	if rec.Code != http.StatusAccepted || orch.params != nil {
		t.Fatalf("empty body = %d params=%s", rec.Code, orch.params)
	}

	rec = do(h, "POST", "/deployments/adhoc/runs", `{"params":{"sd_from":1999}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid params = %d", rec.Code)
	}
	if env := decode(t, rec); env.Field != "sd_from" {
		t.Fatalf("field = %q", env.Field)
	}

	rec = do(h, "POST", "/deployments/adhoc/runs", `{"parameters":{}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field = %d", rec.Code)
	}

	rec = do(h, "POST", "/deployments/missing/runs", `{}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing deployment = %d", rec.Code)
	}
}

func TestFlowRuns(t *testing.T) {
	h, orch := newRouter(t, nil, nil)

	rec := do(h, "GET", "/flow-runs?state=Failed&limit=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("flow-runs = %d %s", rec.Code, rec.Body.String())
	}
	if orch.filter.State != odomain.StateFailed || orch.filter.Limit != 5 {
		t.Fatalf("filter = %+v", orch.filter)
	}
	env := decode(t, rec)
	if env.Page == nil || env.Page.Total != 1 || env.Page.Limit != 5 {
		t.Fatalf("page = %+v", env.Page)
	}

	cases := []struct {
		target, field string
	}{
		{"/flow-runs?state=Exploded", "state"},
		{"/flow-runs?limit=ten", "limit"},
		{"/flow-runs?limit=-1", "limit"},
	}
	for _, tc := range cases {
		rec := do(h, "GET", tc.target, "")
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s = %d", tc.target, rec.Code)
		}
		if env := decode(t, rec); env.Field != tc.field {
			t.Fatalf("%s field = %q", tc.target, env.Field)
		}
	}
}

func TestFlowRun(t *testing.T) {
	h, _ := newRouter(t, nil, nil)

	rec := do(h, "GET", "/flow-runs/run-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("flow-run = %d", rec.Code)
	}
	kit.MustContain(t, rec.Body.String(), `"task":"download_file"`)

	rec = do(h, "GET", "/flow-runs/run-2", "")
	kit.MustContain(t, rec.Body.String(), `"task_runs":[]`)

	if rec := do(h, "GET", "/flow-runs/nope", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing run = %d", rec.Code)
	}
}
