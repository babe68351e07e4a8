package server

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/54b3r/cottagebot/internal/logging"
)

const (
	defaultRateLimit = 10
	defaultRateBurst = 20

	// guestIdleTTL is how long a guest's bucket survives without traffic.
	guestIdleTTL = 5 * time.Minute
)

type guestBucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// guestLimiter gives every client address its own token bucket for
// POST /query. Each question costs one embedding call and one chat
// completion, so a single noisy guest must not starve the rest.
type guestLimiter struct {
	mu      sync.Mutex
	buckets map[string]*guestBucket
	limit   rate.Limit
	burst   int
	idle    time.Duration

	// onReject is called once per refused request; nil is allowed.
	onReject func()
}

// newGuestLimiter starts a limiter and its idle sweeper. The returned
// function stops the sweeper.
func newGuestLimiter(rps float64, burst int, onReject func()) (*guestLimiter, func()) {
	g := &guestLimiter{
		buckets:  make(map[string]*guestBucket),
		limit:    rate.Limit(rps),
		burst:    burst,
		idle:     guestIdleTTL,
		onReject: onReject,
	}

	done := make(chan struct{})
	go func() {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case now := <-t.C:
				g.sweep(now)
			}
		}
	}()

	var once sync.Once
	return g, func() { once.Do(func() { close(done) }) }
}

func (g *guestLimiter) bucketFor(key string, now time.Time) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()

	b, ok := g.buckets[key]
	if !ok {
		b = &guestBucket{lim: rate.NewLimiter(g.limit, g.burst)}
		g.buckets[key] = b
	}
	b.seen = now
	return b.lim
}

// sweep drops buckets idle for longer than the TTL and reports how many
// were removed.
func (g *guestLimiter) sweep(now time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for key, b := range g.buckets {
		if now.Sub(b.seen) > g.idle {
			delete(g.buckets, key)
			removed++
		}
	}
	return removed
}

// admit reserves a token for key. A zero wait means the request may
// proceed; otherwise the reservation is returned to the bucket and the
// wait tells the guest when to retry.
func (g *guestLimiter) admit(key string, now time.Time) (time.Duration, bool) {
	res := g.bucketFor(key, now).ReserveN(now, 1)
	if !res.OK() {
		return time.Duration(math.MaxInt64), false
	}
	wait := res.DelayFrom(now)
	if wait == 0 {
		return 0, true
	}
	res.CancelAt(now)
	return wait, false
}

func (g *guestLimiter) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := remoteHost(r)
		wait, ok := g.admit(key, time.Now())
		if ok {
			next.ServeHTTP(w, r)
			return
		}

		if g.onReject != nil {
			g.onReject()
		}
		logging.FromContext(r.Context()).Warn("query throttled",
			slog.String("client", key),
			slog.Duration("retry_after", wait),
		)
		w.Header().Set("Retry-After", retryAfterSeconds(wait))
		writeError(w, http.StatusTooManyRequests, "too many questions, slow down")
	})
}

// retryAfterSeconds renders wait as whole seconds, rounded up, minimum 1.
func retryAfterSeconds(wait time.Duration) string {
	secs := int64(math.Ceil(wait.Seconds()))
	if secs < 1 || wait < 0 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}

// remoteHost is RemoteAddr without its port. Forwarding headers are ignored.
func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
