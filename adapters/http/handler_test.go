package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	apihttp "github.com/artpar/rowmap/adapters/http"
	"github.com/artpar/rowmap/adapters/metrics"
	"github.com/artpar/rowmap/core/model/modeltest"
	"github.com/artpar/rowmap/core/persist"
	"github.com/artpar/rowmap/core/registry"
	"github.com/artpar/rowmap/core/storage/storagetest"
)

func setupTestRouter(t *testing.T) (http.Handler, *persist.Engine) {
	t.Helper()

	reg := registry.New()
	if err := reg.RegisterAll(modeltest.Factories()...); err != nil {
		t.Fatalf("register: %v", err)
	}

	promReg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(promReg)

	eng := persist.New(persist.Config{
		Registry: reg,
		Store:    storagetest.NewMemory(t),
		Recorder: m,
		Logger:   zerolog.Nop(),
		Options:  persist.DefaultOptions(),
	})

	h := apihttp.NewHandler(eng, zerolog.Nop())
	router := apihttp.NewRouter(h, zerolog.Nop(), apihttp.RouterConfig{
		Metrics:        m,
		MetricsHandler: promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}),
	})
	return router, eng
}

func seedChain(t *testing.T, eng *persist.Engine) *modeltest.Nested {
	t.Helper()

	n := &modeltest.Nested{Rel: &modeltest.Rel{Simple: &modeltest.Simple{Name: "leaf"}}}
	if _, err := eng.Save(context.Background(), n); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return n
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode %s: %v (%s)", path, err, rec.Body.String())
		}
	}
	return rec, body
}

func TestHealth(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec, body := get(t, router, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
}

func TestListEntities(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec, body := get(t, router, "/entities")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	data, _ := body["data"].([]any)
	if len(data) != 5 {
		t.Fatalf("got %d entities, want 5", len(data))
	}
	first := data[0].(map[string]any)
	if first["name"] != "DoubleModel" || first["table"] != "double_models" {
		t.Errorf("first entity = %v", first)
	}
}

func TestGetEntity(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec, body := get(t, router, "/entities/Rel")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	fields := body["fields"].([]any)
	if len(fields) != 2 {
		t.Fatalf("got %d fields, want 2", len(fields))
	}
	ref := fields[1].(map[string]any)
	if ref["type"] != "reference" || ref["ref"] != "Simple" || ref["sql_type"] != "INTEGER" {
		t.Errorf("reference field = %v", ref)
	}
}

func TestCountAndRecords(t *testing.T) {
	router, eng := setupTestRouter(t)
	seedChain(t, eng)
	seedChain(t, eng)

	rec, body := get(t, router, "/entities/Nested/count")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["count"] != float64(2) {
		t.Errorf("count = %v, want 2", body["count"])
	}

	rec, body = get(t, router, "/entities/Nested/records?limit=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["count"] != float64(1) {
		t.Errorf("count = %v, want 1", body["count"])
	}

	rec, body = get(t, router, "/entities/Nested/records/2")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	rel := body["rel"].(map[string]any)
	simple := rel["simple"].(map[string]any)
	if rel["id"] != float64(2) || simple["name"] != "leaf" {
		t.Errorf("hydrated record = %v", body)
	}
}

func TestErrors(t *testing.T) {
	router, eng := setupTestRouter(t)
	n := seedChain(t, eng)

	if err := eng.Delete(context.Background(), n.Rel.Simple); err != nil {
		t.Fatalf("delete: %v", err)
	}

	tests := []struct {
		path   string
		status int
		code   string
	}{
		{"/entities/Ghost", http.StatusNotFound, "unknown_entity"},
		{"/entities/Ghost/count", http.StatusNotFound, "unknown_entity"},
		{"/entities/Simple/records/99", http.StatusNotFound, "not_found"},
		{"/entities/Simple/records/abc", http.StatusBadRequest, "bad_request"},
		{"/entities/Simple/records?limit=-1", http.StatusBadRequest, "bad_request"},
		{"/entities/Nested/records/1", http.StatusConflict, "dangling_reference"},
		{"/entities/Rel/records", http.StatusConflict, "dangling_reference"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec, body := get(t, router, tt.path)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			detail, _ := body["error"].(map[string]any)
			if detail["code"] != tt.code {
				t.Errorf("code = %v, want %s", detail["code"], tt.code)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router, eng := setupTestRouter(t)
	seedChain(t, eng)

	get(t, router, "/entities/Nested/records")

	rec, _ := get(t, router, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	out := rec.Body.String()
	for _, want := range []string{
		`rowmap_operations_total{entity="Nested",op="save",outcome="ok"} 1`,
		`rowmap_tables_created_total 3`,
		`rowmap_http_requests_total{method="GET",route="/entities/{entity}/records",status="2xx"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}
