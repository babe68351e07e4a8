package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOllamaTimeout = 60 * time.Second
	// maxOllamaErrorBody caps how much of an error response is read.
	maxOllamaErrorBody = 4 << 10
)

// OllamaEmbedder calls Ollama's /api/embed. No credentials are involved;
// the server is assumed to be on a trusted network.
type OllamaEmbedder struct {
	host   string
	model  string
	client *http.Client
}

type OllamaConfig struct {
	Host    string
	Model   string
	Timeout time.Duration
}

func NewOllamaEmbedder(cfg *OllamaConfig) *OllamaEmbedder {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultOllamaTimeout
	}
	return &OllamaEmbedder{
		host:   strings.TrimRight(cfg.Host, "/"),
		model:  cfg.Model,
		client: &http.Client{Timeout: timeout},
	}
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// Embed sends texts as one batch; /api/embed accepts an input array and
// answers in the same order.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: %s: %w", e.model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("ollama embedder: %s: %s", e.model, describeFailure(resp))
	}

	var out ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("ollama embedder: decode response: %w", err)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embedder: sent %d texts, got %d embeddings", len(texts), len(out.Embeddings))
	}
	return out.Embeddings, nil
}

// describeFailure renders a non-2xx response as "HTTP <code>" plus Ollama's
// error message when the body carries one.
func describeFailure(resp *http.Response) string {
	msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxOllamaErrorBody))
	var body ollamaEmbedResponse
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		return msg + ": " + body.Error
	}
	if s := strings.TrimSpace(string(raw)); s != "" && !strings.HasPrefix(s, "{") {
		return msg + ": " + s
	}
	return msg
}
