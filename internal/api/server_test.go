package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vietddude/governor/internal/control"
	"github.com/vietddude/governor/internal/core/config"
	"github.com/vietddude/governor/internal/core/domain"
	"github.com/vietddude/governor/internal/governance/detector"
	"github.com/vietddude/governor/internal/governance/recovery"
)

func newTestServer(t *testing.T) (*Server, *control.Engine) {
	t.Helper()

	engine, err := control.NewEngine(control.Config{
		Governor: config.GovernorConfig{
			Thresholds: detector.DefaultThresholds(),
			Checks:     recovery.DefaultChecks(),
		},
		Services: []config.ServiceConfig{
			{
				ID:           "checkout",
				AutoFailover: true,
				Dependencies: []config.DependencyConfig{
					{ID: "db-1", Name: "orders database", Type: "database", BreakerEnabled: true},
				},
				Tiers: []config.TierConfig{
					{ID: "db-primary", Kind: "primary"},
					{ID: "db-replica", Kind: "secondary"},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return NewServer(engine, 0), engine
}

func TestHealthzOK(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /healthz status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["degradation_level"] != string(domain.LevelNormal) {
		t.Errorf("degradation_level = %v, want %s", body["degradation_level"], domain.LevelNormal)
	}
}

func TestHealthzUnavailableWhenOffline(t *testing.T) {
	s, engine := newTestServer(t)
	engine.SetDegradationLevel(context.Background(), domain.LevelOffline, "maintenance")

	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("GET /healthz status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestStatusEndpoint(t *testing.T) {
	s, engine := newTestServer(t)

	if _, err := engine.HandleFailure(context.Background(), "db-1", 0.20, 150, 10); err != nil {
		t.Fatalf("HandleFailure() error = %v", err)
	}

	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /status status = %d, want %d", rec.Code, http.StatusOK)
	}

	var status control.SystemStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if status.OpenIncidents != 1 {
		t.Errorf("open_incidents = %d, want 1", status.OpenIncidents)
	}
	if len(status.ActiveFallbacks) != 1 || status.ActiveFallbacks[0] != "checkout" {
		t.Errorf("active_fallbacks = %v, want [checkout]", status.ActiveFallbacks)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics status = %d, want %d", rec.Code, http.StatusOK)
	}
}
