package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// PingFunc adapts a function to the Pinger interface.
type PingFunc struct {
	// Label is returned by Name.
	Label string
	// Fn performs the probe.
	Fn func(ctx context.Context) error
}

// Name returns the dependency label.
func (p PingFunc) Name() string { return p.Label }

// Ping runs Fn.
func (p PingFunc) Ping(ctx context.Context) error { return p.Fn(ctx) }

// HTTPPinger probes a dependency with a GET request and treats any 2xx as
// healthy. It is used for backends that expose a free health or listing
// endpoint (Ollama's /api/tags), so readiness checks never spend tokens.
type HTTPPinger struct {
	name   string
	url    string
	client *http.Client
}

// NewHTTPPinger constructs an HTTPPinger for url.
func NewHTTPPinger(name, url string) *HTTPPinger {
	return &HTTPPinger{name: name, url: url, client: &http.Client{Timeout: probeTimeout}}
}

// NewOllamaPinger probes an Ollama host through /api/tags.
func NewOllamaPinger(name, host string) *HTTPPinger {
	return NewHTTPPinger(name, strings.TrimRight(host, "/")+"/api/tags")
}

// Name returns the dependency label used in readiness responses.
func (p *HTTPPinger) Name() string { return p.name }

// Ping issues the GET request.
func (p *HTTPPinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d after %s", resp.StatusCode, time.Since(start).Round(time.Millisecond))
	}
	return nil
}
