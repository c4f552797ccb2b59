package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// fakePinger reports a scripted reachability result.
type fakePinger struct {
	name string
	err  error
}

func (p *fakePinger) Name() string               { return p.name }
func (p *fakePinger) Ping(context.Context) error { return p.err }

func TestHealthz_AlwaysOK(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestReadyz_AllProbesHealthy(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, func(cfg *Config) {
		cfg.Pingers = []Pinger{
			&fakePinger{name: "vectordb"},
			&fakePinger{name: "model"},
		}
	})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp readyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Ready || len(resp.Checks) != 2 {
		t.Errorf("response = %+v", resp)
	}
}

func TestReadyz_FailingProbeReports503(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, func(cfg *Config) {
		cfg.Pingers = []Pinger{
			&fakePinger{name: "vectordb"},
			&fakePinger{name: "model", err: errors.New("connection refused")},
		}
	})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	var resp readyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Ready {
		t.Error("ready = true despite a failing probe")
	}
	if resp.Checks[1].OK || resp.Checks[1].Error == "" {
		t.Errorf("failing check = %+v", resp.Checks[1])
	}
}

func TestStorePinger_ProbesLabelInventory(t *testing.T) {
	t.Parallel()
	p := NewStorePinger(newTestPipeline(t).Store())

	if err := p.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if p.Name() != "vectordb" {
		t.Errorf("name = %q", p.Name())
	}
}

func TestModelPinger_ReportsGenerateFailure(t *testing.T) {
	t.Parallel()
	p := NewModelPinger(&fakeModel{err: errors.New("quota exhausted")}, "openai")

	if err := p.Ping(context.Background()); err == nil {
		t.Fatal("Ping succeeded against a failing backend")
	}
	if NewModelPinger(&fakeModel{reply: "pong"}, "openai").Ping(context.Background()) != nil {
		t.Error("Ping failed against a healthy backend")
	}
}
