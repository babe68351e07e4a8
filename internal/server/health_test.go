package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type fakePinger struct {
	name  string
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (f *fakePinger) Name() string { return f.name }

func (f *fakePinger) Ping(ctx context.Context) error {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

// newTestServer builds a *Server with an isolated metrics registry and a
// fake answer engine.
func newTestServer() *Server {
	return &Server{
		answerer: &fakeAnswerer{},
		cfg:      &Config{QueryTimeout: time.Minute, MaxBodyBytes: 64 << 10},
		metrics:  newServerMetrics(prometheus.NewRegistry()),
	}
}

func newReadyTestServer(pingers ...Pinger) *Server {
	s := newTestServer()
	s.pingers = pingers
	return s
}

func getReady(t *testing.T, s *Server) (int, readiness) {
	t.Helper()
	w := httptest.NewRecorder()
	s.handleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var res readiness
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("decode /ready: %v", err)
	}
	return w.Code, res
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	newTestServer().handleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Body.String(); got != `{"status":"healthy"}`+"\n" {
		t.Errorf("body = %q", got)
	}
}

// Liveness never consults dependencies.
func TestHandleHealth_IgnoresDependencies(t *testing.T) {
	t.Parallel()

	down := &fakePinger{name: "qdrant", err: errors.New("refused")}
	s := newReadyTestServer(down)
	w := httptest.NewRecorder()
	s.handleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	if down.calls.Load() != 0 {
		t.Error("health probed a dependency")
	}
}

func TestHandleReady(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		pingers   []*fakePinger
		wantCode  int
		wantReady bool
		wantFail  []string
	}{
		{name: "no dependencies", wantCode: http.StatusOK, wantReady: true},
		{
			name:      "all up",
			pingers:   []*fakePinger{{name: "qdrant"}, {name: "chat"}, {name: "embedder"}},
			wantCode:  http.StatusOK,
			wantReady: true,
		},
		{
			name:     "vector store down",
			pingers:  []*fakePinger{{name: "qdrant", err: errors.New("connection refused")}, {name: "chat"}},
			wantCode: http.StatusServiceUnavailable,
			wantFail: []string{"qdrant"},
		},
		{
			name:     "everything down",
			pingers:  []*fakePinger{{name: "qdrant", err: errors.New("refused")}, {name: "chat", err: errors.New("timeout")}},
			wantCode: http.StatusServiceUnavailable,
			wantFail: []string{"qdrant", "chat"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			pingers := make([]Pinger, len(tc.pingers))
			for i, p := range tc.pingers {
				pingers[i] = p
			}
			code, res := getReady(t, newReadyTestServer(pingers...))

			if code != tc.wantCode {
				t.Errorf("status = %d, want %d", code, tc.wantCode)
			}
			if res.Ready != tc.wantReady {
				t.Errorf("ready = %v, want %v", res.Ready, tc.wantReady)
			}
			if len(res.Checks) != len(tc.pingers) {
				t.Fatalf("checks = %d, want %d", len(res.Checks), len(tc.pingers))
			}

			var failed []string
			for i, c := range res.Checks {
				if c.Name != tc.pingers[i].name {
					t.Errorf("check %d = %q, want %q (order must follow registration)", i, c.Name, tc.pingers[i].name)
				}
				if !c.OK {
					if c.Error == "" {
						t.Errorf("check %q failed without an error message", c.Name)
					}
					failed = append(failed, c.Name)
				}
			}
			if len(failed) != len(tc.wantFail) {
				t.Errorf("failed = %v, want %v", failed, tc.wantFail)
			}
		})
	}
}

// Slow probes run side by side, so /ready costs roughly the slowest one.
func TestHandleReady_ProbesInParallel(t *testing.T) {
	t.Parallel()

	const delay = 150 * time.Millisecond
	s := newReadyTestServer(
		&fakePinger{name: "qdrant", delay: delay},
		&fakePinger{name: "chat", delay: delay},
		&fakePinger{name: "embedder", delay: delay},
	)

	start := time.Now()
	code, res := getReady(t, s)
	elapsed := time.Since(start)

	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if elapsed >= 3*delay {
		t.Errorf("probes took %v, expected them to overlap", elapsed)
	}
	for _, c := range res.Checks {
		if c.LatencyMS < delay.Milliseconds()-10 {
			t.Errorf("%s latency_ms = %d", c.Name, c.LatencyMS)
		}
	}
}

func TestHTTPPinger(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	t.Cleanup(srv.Close)

	p := NewOllamaPinger("chat", srv.URL+"/")
	if p.Name() != "chat" {
		t.Errorf("Name() = %q", p.Name())
	}
	if err := p.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error: %v", err)
	}

	if err := NewHTTPPinger("x", srv.URL+"/missing").Ping(context.Background()); err == nil {
		t.Error("404 should fail the probe")
	}
}

func TestPingFunc(t *testing.T) {
	t.Parallel()
	p := PingFunc{Label: "qdrant", Fn: func(context.Context) error { return errors.New("refused") }}
	if p.Name() != "qdrant" || p.Ping(context.Background()) == nil {
		t.Error("PingFunc should delegate")
	}
}
