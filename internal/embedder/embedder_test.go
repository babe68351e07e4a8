package embedder

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// clearEmbedderEnv blanks every variable the factory reads so host settings
// do not leak into tests.
func clearEmbedderEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"EMBEDDING_PROVIDER", "MODEL_PROVIDER", "EMBEDDING_MODEL", "EMBEDDING_API_KEY",
		"EMBEDDING_ENDPOINT", "EMBEDDING_DIMENSIONS", "EMBEDDING_RPS", "EMBEDDING_BURST",
		"OPENAI_API_KEY", "AZURE_OPENAI_API_KEY", "AZURE_OPENAI_ENDPOINT", "OLLAMA_HOST",
	} {
		t.Setenv(k, "")
	}
}

func TestOllamaEmbedder_Embed(t *testing.T) {
	var got ollamaEmbedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp := ollamaEmbedResponse{}
		for i := range got.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{float32(i), 1})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL + "/", Model: "nomic-embed-text"})
	vecs, err := e.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if got.Model != "nomic-embed-text" || len(got.Input) != 2 {
		t.Errorf("request = %+v", got)
	}
	if len(vecs) != 2 || vecs[1][0] != 1 {
		t.Errorf("vecs = %v", vecs)
	}
}

func TestOllamaEmbedder_Empty(t *testing.T) {
	e := NewOllamaEmbedder(&OllamaConfig{Host: "http://127.0.0.1:1", Model: "m"})
	vecs, err := e.Embed(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Errorf("Embed(nil) = %v, %v; want nil, nil", vecs, err)
	}
}

func TestOllamaEmbedder_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"model \"nope\" not found"}`)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "nope"})
	_, err := e.Embed(context.Background(), []string{"x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %v", err)
	}
}

func TestOllamaEmbedder_PlainTextError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream warming up", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "nomic-embed-text"})
	_, err := e.Embed(context.Background(), []string{"x"})
	if err == nil || !strings.Contains(err.Error(), "HTTP 503: upstream warming up") {
		t.Errorf("error = %v", err)
	}
}

func TestOllamaEmbedder_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"embeddings":[[1,2]]}`)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "m"})
	if _, err := e.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected count mismatch error")
	}
}

// openAIHandler serves /embeddings, answering in reverse index order.
func openAIHandler(t *testing.T, requests *atomic.Int32) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}
		requests.Add(1)
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		type datum struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]datum, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, datum{Object: "embedding", Embedding: []float32{float32(i)}, Index: i})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
		})
	})
}

func TestOpenAIEmbedder_OrdersByIndex(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(openAIHandler(t, &requests))
	defer srv.Close()

	e := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL + "/v1", APIKey: "k", Model: "text-embedding-3-small"})
	vecs, err := e.Embed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	for i, v := range vecs {
		if v[0] != float32(i) {
			t.Errorf("vecs[%d] = %v, want [%d]", i, v, i)
		}
	}
}

func TestOpenAIEmbedder_SplitsBatches(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(openAIHandler(t, &requests))
	defer srv.Close()

	texts := make([]string, maxBatchSize+5)
	for i := range texts {
		texts[i] = "t"
	}

	e := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL + "/v1", APIKey: "k", Model: "m"})
	vecs, err := e.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if len(vecs) != len(texts) {
		t.Errorf("len = %d, want %d", len(vecs), len(texts))
	}
	if n := requests.Load(); n != 2 {
		t.Errorf("requests = %d, want 2", n)
	}
}

func TestOpenAIEmbedder_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL, APIKey: "k", Model: "m"})
	if _, err := e.Embed(context.Background(), []string{"x"}); err == nil {
		t.Fatal("expected error for 401")
	}
}

type countingEmbedder struct{ calls atomic.Int32 }

func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	return make([][]float32, len(texts)), nil
}

func TestWithRateLimit_Disabled(t *testing.T) {
	inner := &countingEmbedder{}
	if got := WithRateLimit(inner, 0, 1); got != inner {
		t.Error("rps=0 should return the embedder unchanged")
	}
}

func TestWithRateLimit_CancelledContext(t *testing.T) {
	inner := &countingEmbedder{}
	e := WithRateLimit(inner, 0.001, 1)

	// Consume the single burst token.
	if _, err := e.Embed(context.Background(), []string{"a"}); err != nil {
		t.Fatalf("first Embed() error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := e.Embed(ctx, []string{"b"}); err == nil {
		t.Fatal("expected wait error once the bucket is empty")
	}
	if n := inner.calls.Load(); n != 1 {
		t.Errorf("inner calls = %d, want 1", n)
	}
}

func TestNewFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
		check   func(t *testing.T, e any)
	}{
		{
			name: "defaults to local ollama",
			env:  map[string]string{},
			check: func(t *testing.T, e any) {
				o, ok := e.(*OllamaEmbedder)
				if !ok {
					t.Fatalf("type = %T", e)
				}
				if o.host != "http://localhost:11434" || o.model != defaultOllamaModel {
					t.Errorf("host=%q model=%q", o.host, o.model)
				}
			},
		},
		{
			name: "ollama follows OLLAMA_HOST",
			env:  map[string]string{"OLLAMA_HOST": "http://gpu-box:11434"},
			check: func(t *testing.T, e any) {
				if o := e.(*OllamaEmbedder); o.host != "http://gpu-box:11434" {
					t.Errorf("host = %q", o.host)
				}
			},
		},
		{
			name:    "openai without key",
			env:     map[string]string{"EMBEDDING_PROVIDER": "openai"},
			wantErr: "OPENAI_API_KEY",
		},
		{
			name: "openai inherits chat provider key",
			env:  map[string]string{"MODEL_PROVIDER": "openai", "OPENAI_API_KEY": "sk"},
			check: func(t *testing.T, e any) {
				if _, ok := e.(*OpenAIEmbedder); !ok {
					t.Fatalf("type = %T", e)
				}
			},
		},
		{
			name:    "azure without endpoint",
			env:     map[string]string{"EMBEDDING_PROVIDER": "azure", "AZURE_OPENAI_API_KEY": "k"},
			wantErr: "AZURE_OPENAI_ENDPOINT",
		},
		{
			name: "throttled",
			env:  map[string]string{"EMBEDDING_RPS": "5"},
			check: func(t *testing.T, e any) {
				if _, ok := e.(*Limited); !ok {
					t.Fatalf("type = %T", e)
				}
			},
		},
		{
			name:    "chat-only provider",
			env:     map[string]string{"MODEL_PROVIDER": "gemini"},
			wantErr: "no embedding support",
		},
		{
			name:    "negative dimensions",
			env:     map[string]string{"EMBEDDING_DIMENSIONS": "-3"},
			wantErr: "EMBEDDING_DIMENSIONS",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearEmbedderEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			e, err := NewFromEnv()
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("NewFromEnv() err = %v, want mention of %s", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewFromEnv() err = %v", err)
			}
			tc.check(t, e)
		})
	}
}

func TestSettings_VectorSize(t *testing.T) {
	t.Parallel()
	cases := []struct {
		s    Settings
		want int
	}{
		{Settings{Backend: "ollama"}, 768},
		{Settings{Backend: "openai"}, 1536},
		{Settings{Backend: "azure"}, 1536},
		{Settings{Backend: "openai", Dimensions: 256}, 256},
	}
	for _, tc := range cases {
		if got := tc.s.VectorSize(); got != tc.want {
			t.Errorf("%+v: VectorSize() = %d, want %d", tc.s, got, tc.want)
		}
	}
}

func TestSettingsFromEnv_EmbeddingOverrides(t *testing.T) {
	clearEmbedderEnv(t)
	t.Setenv("MODEL_PROVIDER", "azure")
	t.Setenv("AZURE_OPENAI_API_KEY", "chat-key")
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://chat.openai.azure.com")
	t.Setenv("EMBEDDING_PROVIDER", "openai")
	t.Setenv("EMBEDDING_API_KEY", "embed-key")
	t.Setenv("EMBEDDING_DIMENSIONS", "512")

	s := SettingsFromEnv()
	if s.Backend != "openai" || s.APIKey != "embed-key" || s.Model != defaultOpenAIModel {
		t.Errorf("settings = %+v", s)
	}
	if s.VectorSize() != 512 {
		t.Errorf("VectorSize() = %d", s.VectorSize())
	}
}

func TestPreflight(t *testing.T) {
	var buf strings.Builder
	log := slog.New(slog.NewTextHandler(&buf, nil))

	if err := Preflight(log, Settings{Backend: "ollama", Endpoint: "http://x", Model: "llama3"}); err != nil {
		t.Errorf("chat-like model should only warn: %v", err)
	}
	if !strings.Contains(buf.String(), "looks like a chat model") {
		t.Errorf("missing warning: %s", buf.String())
	}

	if err := Preflight(log, Settings{Backend: "azure", APIKey: "k"}); err == nil {
		t.Error("azure without endpoint should fail")
	}
}

func TestLooksLikeChatModel(t *testing.T) {
	for model, want := range map[string]bool{
		"nomic-embed-text":       false,
		"text-embedding-3-small": false,
		"gpt-4o":                 true,
		"Llama3:8b":              true,
	} {
		if got := looksLikeChatModel(model); got != want {
			t.Errorf("looksLikeChatModel(%q) = %v, want %v", model, got, want)
		}
	}
}
