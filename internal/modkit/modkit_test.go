package modkit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"crimetrends/internal/platform/config"
	phttp "crimetrends/internal/platform/net/http"
	"crimetrends/internal/platform/store"

	"github.com/go-chi/chi/v5"
)

func TestBuild_Defaults(t *testing.T) {
	b := Build()
	if b.Name != "" || b.Prefix != "" || b.Ports != nil || len(b.Mw) != 0 {
		t.Fatalf("unexpected defaults: %+v", b)
	}
}

func TestBuild_AppliesOptionsInOrder(t *testing.T) {
	mw := func(next http.Handler) http.Handler { return next }
	b := Build(WithName("ops"), WithName("ops-api"), WithPrefix("/api"), WithMiddlewares(mw, mw), WithPorts(7), nil)
	if b.Name != "ops-api" || b.Prefix != "/api" || len(b.Mw) != 2 || b.Ports != 7 {
		t.Fatalf("unexpected build: %+v", b)
	}
}

func TestBuilt_MountUnderPrefix(t *testing.T) {
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	mux := chi.NewRouter()
	r := phttp.AdaptChi(mux)
	Build(WithPrefix("/api"), WithMiddlewares(mark("a"), mark("b"))).Mount(r, func(sub phttp.Router) {
		sub.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	})
	r.Get("/other", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/healthz", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("middleware order = %v", order)
	}

	order = nil
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/other", nil))
	if rec.Code != http.StatusOK || len(order) != 0 {
		t.Fatalf("module middleware leaked: code=%d order=%v", rec.Code, order)
	}
}

func TestFromStore(t *testing.T) {
	cfg := config.New()
	if d := FromStore(cfg, nil); d.PG != nil || d.HasCache() {
		t.Fatalf("nil store should give empty deps")
	}
	d := FromStore(cfg, &store.Store{})
	if d.PG != nil || d.CH != nil || d.KV != nil {
		t.Fatalf("empty store should give nil backends")
	}
}
