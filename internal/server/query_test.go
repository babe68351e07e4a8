package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/54b3r/cottagebot/internal/answer"
	"github.com/54b3r/cottagebot/internal/rag"
)

// fakeAnswerer records the last call and returns a canned result.
type fakeAnswerer struct {
	answer *answer.Answer
	err    error
	// block makes Ask wait for the context to end.
	block bool

	gotQuestion string
	gotTopK     int
	gotSource   string
}

func (f *fakeAnswerer) Ask(ctx context.Context, question string, topK int) (*answer.Answer, error) {
	f.gotQuestion = question
	f.gotTopK = topK
	f.gotSource = answer.SourceFromContext(ctx)
	if f.block {
		<-ctx.Done()
		return nil, fmt.Errorf("retrieve: %w", ctx.Err())
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.answer == nil {
		return &answer.Answer{Response: "ok"}, nil
	}
	return f.answer, nil
}

func postQuery(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.handleQuery(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error
}

func TestHandleQuery_OK(t *testing.T) {
	t.Parallel()

	fa := &fakeAnswerer{answer: &answer.Answer{
		Response:  "Seaview Cottage allows two dogs.",
		Retrieved: []answer.Retrieved{{ID: "cottage-3", Score: 0.91, Title: "Seaview Cottage"}},
	}}
	s := newTestServer()
	s.answerer = fa

	w := postQuery(t, s, `{"question":"Can I bring my dog?","top_k":3}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var got answer.Answer
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Response != "Seaview Cottage allows two dogs." {
		t.Errorf("response = %q", got.Response)
	}
	if len(got.Retrieved) != 1 || got.Retrieved[0].ID != "cottage-3" {
		t.Errorf("retrieved = %+v", got.Retrieved)
	}
	if fa.gotQuestion != "Can I bring my dog?" || fa.gotTopK != 3 {
		t.Errorf("Ask called with (%q, %d)", fa.gotQuestion, fa.gotTopK)
	}
	if fa.gotSource != "http" {
		t.Errorf("source = %q, want http", fa.gotSource)
	}
}

func TestHandleQuery_TopKOmitted(t *testing.T) {
	t.Parallel()

	fa := &fakeAnswerer{}
	s := newTestServer()
	s.answerer = fa

	if w := postQuery(t, s, `{"question":"Parking?"}`); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if fa.gotTopK != 0 {
		t.Errorf("topK = %d, want 0 (engine default)", fa.gotTopK)
	}
}

func TestHandleQuery_RetrievedNeverNull(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.answerer = &fakeAnswerer{answer: &answer.Answer{Response: "No records matched."}}

	w := postQuery(t, s, `{"question":"Hot tub?"}`)
	if !strings.Contains(w.Body.String(), `"retrieved":[]`) {
		t.Errorf("body = %s, want empty retrieved array", w.Body.String())
	}
}

func TestHandleQuery_BadRequests(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		body    string
		err     error
		wantMsg string
	}{
		{name: "invalid JSON", body: `{"question":`, wantMsg: "invalid JSON body"},
		{name: "empty question", body: `{"question":""}`, err: answer.ErrEmptyQuestion, wantMsg: answer.ErrEmptyQuestion.Error()},
		{name: "negative top_k", body: `{"question":"x","top_k":-1}`, err: answer.ErrInvalidTopK, wantMsg: answer.ErrInvalidTopK.Error()},
		{name: "wrong type", body: `{"question":42}`, wantMsg: "invalid JSON body"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := newTestServer()
			s.answerer = &fakeAnswerer{err: tc.err}

			w := postQuery(t, s, tc.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			if msg := decodeError(t, w); msg != tc.wantMsg {
				t.Errorf("error = %q, want %q", msg, tc.wantMsg)
			}
		})
	}
}

func TestHandleQuery_BodyTooLarge(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.cfg.MaxBodyBytes = 32
	w := postQuery(t, s, `{"question":"`+strings.Repeat("a", 100)+`"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleQuery_UpstreamFailure(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.answerer = &fakeAnswerer{err: &rag.ServiceError{Service: "qdrant", Op: "search", Err: errors.New("connection refused")}}

	w := postQuery(t, s, `{"question":"Wifi?"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if msg := decodeError(t, w); !strings.Contains(msg, "qdrant") {
		t.Errorf("error = %q, want it to name the failing service", msg)
	}
}

func TestHandleQuery_Timeout(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.cfg.QueryTimeout = 20 * time.Millisecond
	s.answerer = &fakeAnswerer{block: true}

	w := postQuery(t, s, `{"question":"Check-in time?"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if msg := decodeError(t, w); msg != "query timed out" {
		t.Errorf("error = %q", msg)
	}
}
