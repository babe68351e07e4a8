package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/cottagebot/internal/answer"
)

// Config configures the query server. Zero values take the defaults noted.
type Config struct {
	Host string // 127.0.0.1
	Port int    // 8080

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// QueryTimeout bounds one POST /query, retrieval and generation
	// together. 2m.
	QueryTimeout time.Duration
	MaxBodyBytes int64 // 64 KiB

	Logger *slog.Logger

	// Pingers are probed by GET /ready; none means always ready.
	Pingers []Pinger

	// Per-guest token bucket on POST /query: RateLimit questions per
	// second (10), bursts of RateBurst (20).
	RateLimit float64
	RateBurst int

	// CORSOrigins empty allows localhost only; "*" allows anyone.
	CORSOrigins []string

	// Default to the prometheus globals.
	MetricsRegistry prometheus.Registerer
	MetricsGatherer prometheus.Gatherer
}

// answerer is satisfied by *answer.Engine.
type answerer interface {
	Ask(ctx context.Context, question string, topK int) (*answer.Answer, error)
}

// Server serves the answer engine over HTTP.
type Server struct {
	answerer   answerer
	cfg        *Config
	httpServer *http.Server
	log        *slog.Logger
	pingers    []Pinger
	metrics    *serverMetrics
	// stopRL stops the guest limiter's idle sweeper.
	stopRL func()
}

// queryRequest is the JSON body for POST /query.
type queryRequest struct {
	Question string `json:"question"`
	// TopK nil means the engine default.
	TopK *int `json:"top_k,omitempty"`
}

// errorResponse is the JSON body for every 4xx/5xx.
type errorResponse struct {
	Error string `json:"error"`
}
