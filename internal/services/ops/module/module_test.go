package module

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"crimetrends/internal/modkit"
	"crimetrends/internal/modkit/module"
	"crimetrends/internal/platform/config"
	phttp "crimetrends/internal/platform/net/http"
	kit "crimetrends/internal/platform/testkit"
	odomain "crimetrends/internal/services/orchestrator/domain"

	"github.com/go-chi/chi/v5"
)

type nopOrch struct{}

func (nopOrch) Deploy(context.Context, string, string, json.RawMessage) (odomain.DeployResult, error) {
	return odomain.DeployResult{}, nil
}

func (nopOrch) ListDeployments(context.Context) ([]odomain.Deployment, error) { return nil, nil }

func (nopOrch) CreateRun(context.Context, string, json.RawMessage) (odomain.FlowRun, error) {
	return odomain.FlowRun{}, nil
}

func (nopOrch) ListFlowRuns(context.Context, odomain.RunFilter) ([]odomain.FlowRun, error) {
	return nil, nil
}

func (nopOrch) GetFlowRun(context.Context, string) (odomain.FlowRun, []odomain.TaskRun, error) {
	return odomain.FlowRun{}, nil, nil
}

func TestNewRequiresPorts(t *testing.T) {
	kit.MustPanic(t, func() { New(modkit.Deps{Cfg: config.New()}, Ports{}, Options{}) })
}

func TestMountUnderPrefixWithCORS(t *testing.T) {
	t.Setenv("CORE_OPS_CORS_ORIGINS", "https://ops.example.com")
	m := New(modkit.Deps{Cfg: config.New()}, Ports{Deploy: nopOrch{}, Query: nopOrch{}}, Options{}, modkit.WithPrefix("/api"))
	if m.Name() != "ops" {
		t.Fatalf("name = %q", m.Name())
	}
	if _, ok := module.PortsOf[odomain.QueryPort](m); !ok {
		t.Fatalf("query port not exposed")
	}

	r := phttp.AdaptChi(chi.NewRouter())
	m.MountRoutes(r)

	rec := httptest.NewRecorder()
	r.Mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d %s", rec.Code, rec.Body.String())
	}
	kit.MustContain(t, rec.Body.String(), `"service":"crimetrends-agent"`)

	req := httptest.NewRequest(http.MethodOptions, "/api/deployments", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec = httptest.NewRecorder()
	r.Mux().ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://ops.example.com" {
		t.Fatalf("allow origin = %q", got)
	}
}

func TestOverrides(t *testing.T) {
	m := New(modkit.Deps{Cfg: config.New()}, Ports{Deploy: nopOrch{}, Query: nopOrch{}}, Options{ServiceName: "ops-test"})
	if m.opts.ServiceName != "ops-test" || len(m.opts.CORSOrigins) != 0 {
		t.Fatalf("opts = %+v", m.opts)
	}
}
