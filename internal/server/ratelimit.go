package server

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// clientLimiter keeps one token bucket per client key. A bucket admits
// limit requests at once and refills one every window/limit.
type clientLimiter struct {
	mu        sync.Mutex
	every     rate.Limit
	burst     int
	window    time.Duration
	clients   map[string]*clientBucket
	lastPrune time.Time
	now       func() time.Time
}

type clientBucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

func newClientLimiter(window time.Duration, limit int) *clientLimiter {
	return &clientLimiter{
		every:   rate.Every(window / time.Duration(limit)),
		burst:   limit,
		window:  window,
		clients: make(map[string]*clientBucket),
		now:     time.Now,
	}
}

// allow consumes a token for key. When none is available it reports how
// long until the next one.
func (l *clientLimiter) allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.pruneLocked(now)

	b, ok := l.clients[key]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(l.every, l.burst)}
		l.clients[key] = b
	}
	b.seen = now

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, l.window
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d
	}
	return true, 0
}

// An idle bucket is full again after one window, so forgetting it is lossless.
func (l *clientLimiter) pruneLocked(now time.Time) {
	if now.Sub(l.lastPrune) < l.window {
		return
	}
	l.lastPrune = now
	for k, b := range l.clients {
		if now.Sub(b.seen) >= l.window {
			delete(l.clients, k)
		}
	}
}

func retryAfterSeconds(d time.Duration) int {
	return max(1, int(math.Ceil(d.Round(time.Millisecond).Seconds())))
}

// clientKey identifies the caller: the first valid IP from the proxy headers,
// then the peer address, then a hash of the user agent.
func clientKey(r *http.Request) string {
	for _, h := range []string{"Cf-Connecting-Ip", "X-Real-Ip", "X-Forwarded-For"} {
		if ip := pickIP(r.Header.Get(h)); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && net.ParseIP(host) != nil {
		return host
	}

	ua := r.Header.Get("User-Agent")
	if ua == "" {
		ua = "unknown"
	}
	sum := sha256.Sum256([]byte(ua))
	return "unknown:" + hex.EncodeToString(sum[:])[:16]
}

func pickIP(v string) string {
	first, _, _ := strings.Cut(v, ",")
	first = strings.TrimSpace(first)
	if first == "" || net.ParseIP(first) == nil {
		return ""
	}
	return first
}
