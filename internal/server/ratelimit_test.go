package server

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClientLimiter_RefillsOverWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	l := newClientLimiter(time.Minute, 3)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		ok, _ := l.allow("a")
		assert.True(t, ok, "request %d", i)
	}
	ok, wait := l.allow("a")
	assert.False(t, ok)
	assert.InDelta(t, float64(20*time.Second), float64(wait), float64(time.Millisecond))
	assert.Equal(t, 20, retryAfterSeconds(wait))

	// A refused request does not consume the next token.
	now = now.Add(21 * time.Second)
	ok, _ = l.allow("a")
	assert.True(t, ok)

	ok, _ = l.allow("b")
	assert.True(t, ok, "clients are limited independently")
}

func TestClientLimiter_ForgetsIdleClients(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	l := newClientLimiter(time.Minute, 1)
	l.now = func() time.Time { return now }

	l.allow("a")
	l.allow("b")
	now = now.Add(2 * time.Minute)
	l.allow("c")

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Len(t, l.clients, 1)
	assert.Contains(t, l.clients, "c")
}

func TestRetryAfterSeconds(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, retryAfterSeconds(0))
	assert.Equal(t, 1, retryAfterSeconds(300*time.Millisecond))
	assert.Equal(t, 2, retryAfterSeconds(1001*time.Millisecond))
}

func TestClientKey(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"cloudflare wins", map[string]string{"CF-Connecting-IP": "198.51.100.1", "X-Real-IP": "198.51.100.2"}, "", "198.51.100.1"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.2", "X-Forwarded-For": "198.51.100.3"}, "", "198.51.100.2"},
		{"first forwarded", map[string]string{"X-Forwarded-For": " 2001:db8::1 , 10.0.0.1"}, "", "2001:db8::1"},
		{"invalid header skipped", map[string]string{"CF-Connecting-IP": "garbage", "X-Forwarded-For": "198.51.100.3"}, "", "198.51.100.3"},
		{"peer address", nil, "192.0.2.7:5555", "192.0.2.7"},
	}
	for _, tc := range cases {
		r := httptest.NewRequest("POST", "/api/scans", nil)
		if tc.remote != "" {
			r.RemoteAddr = tc.remote
		}
		for k, v := range tc.headers {
			r.Header.Set(k, v)
		}
		assert.Equal(t, tc.want, clientKey(r), tc.name)
	}

	r := httptest.NewRequest("POST", "/api/scans", nil)
	r.RemoteAddr = "pipe"
	r.Header.Set("User-Agent", "curl/8.0")
	key := clientKey(r)
	assert.Regexp(t, `^unknown:[0-9a-f]{16}$`, key)

	r2 := httptest.NewRequest("POST", "/api/scans", nil)
	r2.RemoteAddr = "pipe"
	r2.Header.Set("User-Agent", "curl/8.0")
	assert.Equal(t, key, clientKey(r2), "same agent maps to the same key")
}
