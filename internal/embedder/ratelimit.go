package embedder

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/54b3r/cottagebot/internal/rag"
)

// Limited throttles calls to an upstream embedder with a token bucket.
// Hosted embedding APIs enforce request-per-second quotas; waiting here
// keeps long indexing runs from tripping them.
type Limited struct {
	next    rag.Embedder
	limiter *rate.Limiter
}

// WithRateLimit wraps next so that at most rps requests per second are
// issued, with bursts of up to burst. rps <= 0 returns next unchanged.
func WithRateLimit(next rag.Embedder, rps float64, burst int) rag.Embedder {
	if rps <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &Limited{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Embed waits for a token, then delegates.
func (l *Limited) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embedder: rate limit wait: %w", err)
	}
	return l.next.Embed(ctx, texts)
}
