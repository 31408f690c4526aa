package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kuitang/pocketnotes/internal/errs"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func requestFrom(remoteAddr string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
	req.RemoteAddr = remoteAddr
	return req
}

func TestMiddleware_RejectsAfterBurst(t *testing.T) {
	rl := New(Config{RPS: 0.001, Burst: 2, CleanupInterval: time.Hour})
	defer rl.Stop()
	h := Middleware(rl, nil)(okHandler())

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom("203.0.113.5:4242"))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("request %d: status = %d, want 204", i+1, rec.Code)
		}
		if rec.Header().Get("X-RateLimit-Remaining") == "" {
			t.Fatalf("request %d: missing X-RateLimit-Remaining", i+1)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestFrom("203.0.113.5:4243"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	// One token at 0.001 RPS is 1000 seconds away.
	if got := rec.Header().Get("Retry-After"); got != "1000" {
		t.Fatalf("Retry-After = %q, want 1000", got)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Fatalf("X-RateLimit-Remaining = %q, want 0", got)
	}
	var body errs.Body
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Code != errs.ResourceExhausted {
		t.Fatalf("code = %q, want %q", body.Code, errs.ResourceExhausted)
	}

	// A different client is unaffected.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, requestFrom("203.0.113.6:4242"))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("other client status = %d, want 204", rec.Code)
	}
}

func TestMiddleware_UsesForwardedFor(t *testing.T) {
	rl := New(Config{RPS: 0.001, Burst: 1, CleanupInterval: time.Hour})
	defer rl.Stop()
	h := Middleware(rl, nil)(okHandler())

	for _, fwd := range []string{"198.51.100.1", "198.51.100.2, 10.0.0.1"} {
		req := requestFrom("10.0.0.1:80")
		req.Header.Set("X-Forwarded-For", fwd)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("X-Forwarded-For %q: status = %d, want 204", fwd, rec.Code)
		}
	}
	if rl.Len() != 2 {
		t.Fatalf("tracked clients = %d, want 2", rl.Len())
	}
}

func TestMiddleware_EmptyKeySkipsLimit(t *testing.T) {
	rl := New(Config{RPS: 0.001, Burst: 1, CleanupInterval: time.Hour})
	defer rl.Stop()
	h := Middleware(rl, func(*http.Request) string { return "" })(okHandler())

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom("192.0.2.1:1"))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("request %d: status = %d, want 204", i+1, rec.Code)
		}
	}
	if rl.Len() != 0 {
		t.Fatalf("tracked clients = %d, want 0", rl.Len())
	}
}

func TestMiddleware_WritesCostMore(t *testing.T) {
	rl := New(Config{RPS: 0.001, Burst: 4, WriteCost: 3, CleanupInterval: time.Hour})
	defer rl.Stop()
	h := Middleware(rl, nil)(okHandler())

	send := func(method string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/api/notes", nil)
		req.RemoteAddr = "192.0.2.44:1000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := send(http.MethodPost)
	if rec.Code != http.StatusNoContent || rec.Header().Get("X-RateLimit-Remaining") != "1" {
		t.Fatalf("POST: status %d remaining %q", rec.Code, rec.Header().Get("X-RateLimit-Remaining"))
	}
	if rec := send(http.MethodPatch); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second write status = %d, want 429", rec.Code)
	}
	if rec := send(http.MethodGet); rec.Code != http.StatusNoContent {
		t.Fatalf("read after write status = %d, want 204", rec.Code)
	}
}
