// Package obs configures structured JSON logging and carries request
// correlation fields through contexts.
package obs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

type correlationContextKey struct{}

// Correlation is attached to every log line written for a request.
type Correlation struct {
	RequestID          string
	ClientIP           string
	Surface            string // web, api or mcp
	MCPProtocolVersion string
}

// Option adjusts how Init builds the logger.
type Option func(*setup)

type setup struct {
	out  io.Writer
	text bool
}

// WithText switches to slog's key=value handler, for terminals.
func WithText() Option {
	return func(s *setup) { s.text = true }
}

// WithOutput sends log lines to w instead of stderr.
func WithOutput(w io.Writer) Option {
	return func(s *setup) { s.out = w }
}

var (
	mu     sync.RWMutex
	root   *slog.Logger
	level  = new(slog.LevelVar)
	inited bool
)

// Init sets the log level and, on first call, installs the process logger as
// the slog default. Options are ignored once a logger is installed.
func Init(l slog.Level, opts ...Option) {
	level.Set(l)

	mu.Lock()
	defer mu.Unlock()
	if inited {
		return
	}
	st := setup{out: os.Stderr}
	for _, opt := range opts {
		opt(&st)
	}
	install(build(st))
	inited = true
}

// ParseLevel maps debug, info, warn and error (any case) to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return l, nil
}

// SetOutputForTests sends JSON log lines to w until the returned func is called.
func SetOutputForTests(w io.Writer) func() {
	mu.Lock()
	prev, prevInited := root, inited
	install(build(setup{out: w}))
	inited = true
	mu.Unlock()

	return func() {
		mu.Lock()
		defer mu.Unlock()
		inited = prevInited
		if prev == nil {
			prev = build(setup{out: os.Stderr})
		}
		install(prev)
	}
}

func install(l *slog.Logger) {
	root = l
	slog.SetDefault(l)
}

// build makes a handler that writes UTC timestamps at the shared level.
func build(st setup) *slog.Logger {
	ho := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if len(groups) == 0 && attr.Key == slog.TimeKey && attr.Value.Kind() == slog.KindTime {
				return slog.String(slog.TimeKey, attr.Value.Time().UTC().Format(time.RFC3339Nano))
			}
			return attr
		},
	}
	if st.text {
		return slog.New(slog.NewTextHandler(st.out, ho))
	}
	return slog.New(slog.NewJSONHandler(st.out, ho))
}

func current() *slog.Logger {
	mu.RLock()
	l := root
	mu.RUnlock()
	if l != nil {
		return l
	}
	Init(level.Level())
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// Pkg returns a logger tagged with package name.
func Pkg(pkg string) *slog.Logger {
	return current().With("pkg", pkg)
}

// From returns a logger with correlation fields from context.
func From(ctx context.Context) *slog.Logger {
	l := current()
	attrs := correlationAttrs(CorrelationFromContext(ctx))
	if len(attrs) == 0 {
		return l
	}
	return l.With(attrs...)
}

// WithCorrelation stores request correlation fields in context.
// Empty fields keep any value already present.
func WithCorrelation(ctx context.Context, corr Correlation) context.Context {
	existing := CorrelationFromContext(ctx)
	merge := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	merge(&existing.RequestID, corr.RequestID)
	merge(&existing.ClientIP, corr.ClientIP)
	merge(&existing.Surface, corr.Surface)
	merge(&existing.MCPProtocolVersion, corr.MCPProtocolVersion)
	return context.WithValue(ctx, correlationContextKey{}, existing)
}

// CorrelationFromContext returns request correlation fields from context.
func CorrelationFromContext(ctx context.Context) Correlation {
	if ctx == nil {
		return Correlation{}
	}
	corr, _ := ctx.Value(correlationContextKey{}).(Correlation)
	return corr
}

func correlationAttrs(corr Correlation) []any {
	var attrs []any
	for _, kv := range [][2]string{
		{"request_id", corr.RequestID},
		{"client_ip", corr.ClientIP},
		{"surface", corr.Surface},
		{"mcp_protocol_version", corr.MCPProtocolVersion},
	} {
		if kv[1] != "" {
			attrs = append(attrs, kv[0], kv[1])
		}
	}
	return attrs
}
