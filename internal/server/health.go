package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/54b3r/cottagebot/internal/logging"
)

// probeTimeout bounds each dependency probe during a readiness check.
const probeTimeout = 5 * time.Second

// Pinger is a dependency the server needs before it can answer questions:
// the vector store, the embedding backend, the chat backend.
// Implementations must be safe for concurrent use.
type Pinger interface {
	Ping(ctx context.Context) error
	// Name labels the dependency in /ready responses.
	Name() string
}

type probeResult struct {
	Name      string `json:"name"`
	OK        bool   `json:"ok"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type readiness struct {
	Ready  bool          `json:"ready"`
	Checks []probeResult `json:"checks"`
}

// probeAll pings every dependency in parallel. Results keep the order of
// pingers so responses are stable between calls.
func probeAll(ctx context.Context, pingers []Pinger) readiness {
	out := readiness{Ready: true, Checks: make([]probeResult, len(pingers))}

	var wg sync.WaitGroup
	for i, p := range pingers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, probeTimeout)
			defer cancel()

			start := time.Now()
			err := p.Ping(pctx)
			res := probeResult{Name: p.Name(), OK: err == nil, LatencyMS: time.Since(start).Milliseconds()}
			if err != nil {
				res.Error = err.Error()
			}
			out.Checks[i] = res
		}()
	}
	wg.Wait()

	for _, c := range out.Checks {
		if !c.OK {
			out.Ready = false
		}
	}
	return out
}

// handleReady handles GET /ready: 200 when every dependency answers, 503
// otherwise. A server with no registered dependencies is ready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	res := probeAll(r.Context(), s.pingers)

	if !res.Ready {
		log := logging.FromContext(r.Context())
		for _, c := range res.Checks {
			if !c.OK {
				log.Warn("dependency not ready",
					slog.String("dependency", c.Name),
					slog.String("error", c.Error),
				)
			}
		}
		writeJSON(w, http.StatusServiceUnavailable, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleHealth is liveness only.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
