// Package ratelimit throttles API and MCP clients with per-client token buckets.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config defines the rate limiting configuration.
type Config struct {
	RPS             float64       // Tokens refilled per second per client
	Burst           int           // Bucket size per client
	WriteCost       int           // Tokens a mutating request takes; reads take one
	CleanupInterval time.Duration // Clients idle this long are forgotten
}

// DefaultConfig allows bursts of reads while keeping bulk writes in check.
var DefaultConfig = Config{
	RPS:             20,
	Burst:           40,
	WriteCost:       2,
	CleanupInterval: 10 * time.Minute,
}

// Decision is the outcome of one Take.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration // until the request would fit; zero when allowed
}

type client struct {
	bucket *rate.Limiter
	seen   time.Time
}

// Limiter holds one token bucket per client key.
type Limiter struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	clients map[string]*client

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// New starts a limiter and its sweeper goroutine. Call Stop to release it.
func New(cfg Config) *Limiter {
	return newLimiter(cfg, time.Now)
}

func newLimiter(cfg Config, now func() time.Time) *Limiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultConfig.CleanupInterval
	}
	if cfg.WriteCost <= 0 {
		cfg.WriteCost = 1
	}
	l := &Limiter{
		cfg:     cfg,
		now:     now,
		clients: make(map[string]*client),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// Config returns the effective configuration.
func (l *Limiter) Config() Config {
	return l.cfg
}

// Take spends cost tokens from key's bucket if it holds enough. A cost above
// the burst is clamped so it can eventually succeed.
func (l *Limiter) Take(key string, cost int) Decision {
	cost = min(max(cost, 1), max(l.cfg.Burst, 1))

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.clients[key]
	if !ok {
		c = &client{bucket: rate.NewLimiter(rate.Limit(l.cfg.RPS), l.cfg.Burst)}
		l.clients[key] = c
	}
	c.seen = now

	if c.bucket.AllowN(now, cost) {
		return Decision{Allowed: true, Remaining: max(int(c.bucket.TokensAt(now)), 0)}
	}
	return Decision{RetryAfter: l.waitFor(float64(cost) - c.bucket.TokensAt(now))}
}

func (l *Limiter) waitFor(deficit float64) time.Duration {
	if l.cfg.RPS <= 0 || deficit <= 0 {
		return time.Second
	}
	return time.Duration(math.Ceil(deficit / l.cfg.RPS * float64(time.Second)))
}

// Sweep forgets clients idle for longer than the cleanup interval.
func (l *Limiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.cfg.CleanupInterval)
	for key, c := range l.clients {
		if c.seen.Before(cutoff) {
			delete(l.clients, key)
		}
	}
}

func (l *Limiter) sweepLoop() {
	defer close(l.done)

	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.Sweep()
		case <-l.stop:
			return
		}
	}
}

// Stop ends the sweeper and waits for it. Safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
	<-l.done
}

// Len returns the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}
