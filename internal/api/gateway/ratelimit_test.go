package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
)

// TestFailOpen checks that an unreachable Redis never blocks the API.
func TestFailOpen(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer rdb.Close()

	l := NewLimiter(rdb, DefaultConfig(), nil)
	handler := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/investigations", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 when the limiter cannot reach redis", rec.Code)
	}
}

// TestClientIPUsesLeadingForwardedAddress checks that only the first
// address of a forwarded chain keys the bucket, so appending hops does
// not rotate it.
func TestClientIPUsesLeadingForwardedAddress(t *testing.T) {
	tests := []struct {
		name string
		set  func(r *http.Request)
		want string
	}{
		{
			name: "forwarded chain",
			set: func(r *http.Request) {
				r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1, 10.0.0.2")
			},
			want: "203.0.113.7",
		},
		{
			name: "single forwarded address",
			set: func(r *http.Request) {
				r.Header.Set("X-Forwarded-For", "203.0.113.7")
			},
			want: "203.0.113.7",
		},
		{
			name: "real ip fallback",
			set: func(r *http.Request) {
				r.Header.Set("X-Real-IP", "198.51.100.4")
			},
			want: "198.51.100.4",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.set(req)
			if got := clientIP(req); got != tt.want {
				t.Fatalf("clientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestWindowEnforced exercises the counter against a real Redis, named
// by REDIS_ADDR.
func TestWindowEnforced(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	t.Cleanup(func() {
		rdb.FlushDB(context.Background())
		rdb.Close()
	})

	cfg := Config{Enabled: true, RequestsPerMinute: 3, IncludeHeaders: true}
	l := NewLimiter(rdb, cfg, nil)
	handler := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	var last *httptest.ResponseRecorder
	for i := 0; i < 4; i++ {
		last = httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/investigations", nil)
		req.Header.Set("X-Real-IP", "203.0.113.7")
		handler.ServeHTTP(last, req)
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429 on the fourth request", last.Code)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After header")
	}
}
