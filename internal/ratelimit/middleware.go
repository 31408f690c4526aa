package ratelimit

import (
	"math"
	"net/http"
	"strconv"

	"github.com/kuitang/pocketnotes/internal/errs"
	"github.com/kuitang/pocketnotes/internal/obs"
)

// KeyFunc extracts the client key a request is limited under.
type KeyFunc func(r *http.Request) string

// Cost is the number of tokens r takes: one for reads, WriteCost otherwise.
func (l *Limiter) Cost(r *http.Request) int {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return 1
	default:
		return l.cfg.WriteCost
	}
}

// Middleware enforces per-client limits. A nil keyFunc limits by client IP;
// requests with an empty key pass through.
//
// Rejected requests get 429 with a JSON error body, Retry-After in whole
// seconds and X-RateLimit-Remaining: 0. Allowed requests report the tokens
// left in X-RateLimit-Remaining.
func Middleware(l *Limiter, keyFunc KeyFunc) func(http.Handler) http.Handler {
	if keyFunc == nil {
		keyFunc = obs.ClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			d := l.Take(key, l.Cost(r))
			if !d.Allowed {
				retry := max(int(math.Ceil(d.RetryAfter.Seconds())), 1)
				obs.From(r.Context()).Warn("ratelimit.rejected",
					"client", key, "method", r.Method, "path", r.URL.Path, "retry_after_s", retry)
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				w.Header().Set("X-RateLimit-Remaining", "0")
				errs.WriteHTTP(w, errs.New(errs.ResourceExhausted, "too many requests"))
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			next.ServeHTTP(w, r)
		})
	}
}
