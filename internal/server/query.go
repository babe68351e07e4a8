package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/54b3r/cottagebot/internal/answer"
	"github.com/54b3r/cottagebot/internal/logging"
)

// handleQuery handles POST /query. Every failure is reported as a JSON
// {"error": ...} body: 400 for a malformed request, 500 for anything the
// answer engine or its dependencies could not complete.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	start := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.observeQuery("bad_request", start)
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	topK := 0
	if req.TopK != nil {
		topK = *req.TopK
	}

	ctx, cancel := context.WithTimeout(answer.WithSource(r.Context(), "http"), s.cfg.QueryTimeout)
	defer cancel()

	ans, err := s.answerer.Ask(ctx, req.Question, topK)
	switch {
	case err == nil:
	case answer.IsInvalidInput(err):
		s.observeQuery("bad_request", start)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, context.DeadlineExceeded):
		log.Error("query timed out", slog.Duration("timeout", s.cfg.QueryTimeout))
		s.observeQuery("timeout", start)
		writeError(w, http.StatusInternalServerError, "query timed out")
		return
	default:
		log.Error("query failed", slog.Any("error", err))
		s.observeQuery("error", start)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.observeQuery("ok", start)
	s.metrics.retrievedRecords.Observe(float64(len(ans.Retrieved)))
	if ans.Retrieved == nil {
		ans.Retrieved = []answer.Retrieved{}
	}
	writeJSON(w, http.StatusOK, ans)
}

func (s *Server) observeQuery(outcome string, start time.Time) {
	s.metrics.queryRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.queryDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
