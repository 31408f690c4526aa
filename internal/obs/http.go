package obs

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxRequestIDLen bounds caller-supplied X-Request-Id values.
const maxRequestIDLen = 64

// StatusWriter records the status and size of a response.
type StatusWriter struct {
	http.ResponseWriter
	status  int
	written int64
}

// Track wraps w so the caller can inspect what the handler wrote.
func Track(w http.ResponseWriter) *StatusWriter {
	if sw, ok := w.(*StatusWriter); ok {
		return sw
	}
	return &StatusWriter{ResponseWriter: w}
}

func (w *StatusWriter) WriteHeader(code int) {
	if w.status != 0 {
		return
	}
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *StatusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.written += int64(n)
	return n, err
}

// Flush passes through to the underlying writer so event streams keep working.
func (w *StatusWriter) Flush() {
	_ = http.NewResponseController(w.ResponseWriter).Flush()
}

func (w *StatusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Status is the response status, or 0 when nothing has been written yet.
func (w *StatusWriter) Status() int {
	return w.status
}

// Written reports whether the handler started a response.
func (w *StatusWriter) Written() bool {
	return w.status != 0
}

// Bytes is the number of body bytes written.
func (w *StatusWriter) Bytes() int64 {
	return w.written
}

// RequestContextMiddleware tags each request with an id, the client address
// and the surface it hit. The id is echoed in X-Request-Id.
func RequestContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := sanitizeRequestID(r.Header.Get("X-Request-Id"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", requestID)

		ctx := WithCorrelation(r.Context(), Correlation{
			RequestID:          requestID,
			ClientIP:           ClientIP(r),
			Surface:            SurfaceOf(r.URL.Path),
			MCPProtocolVersion: strings.TrimSpace(r.Header.Get("Mcp-Protocol-Version")),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AccessLogMiddleware emits one http_access event per request. Server errors
// log at error level; everything else at debug.
func AccessLogMiddleware(pkg string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := Track(w)
		next.ServeHTTP(sw, r)

		status := sw.Status()
		if status == 0 {
			status = http.StatusOK
		}
		lvl := slog.LevelDebug
		if status >= http.StatusInternalServerError {
			lvl = slog.LevelError
		}
		From(r.Context()).Log(r.Context(), lvl, "http_access",
			"pkg", pkg,
			"method", r.Method,
			"path", r.URL.Path,
			"route", r.Pattern,
			"status", status,
			"dur_ms", float64(time.Since(start).Microseconds())/1000.0,
			"req_bytes", max(r.ContentLength, 0),
			"resp_bytes", sw.Bytes(),
		)
	})
}

// SurfaceOf names the part of the app a path belongs to: api, mcp or web.
func SurfaceOf(path string) string {
	switch {
	case path == "/api" || strings.HasPrefix(path, "/api/"):
		return "api"
	case path == "/mcp" || strings.HasPrefix(path, "/mcp/"):
		return "mcp"
	default:
		return "web"
	}
}

// sanitizeRequestID accepts short ids made of letters, digits, dot, dash and
// underscore. Anything else is dropped so it cannot forge log fields.
func sanitizeRequestID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > maxRequestIDLen {
		return ""
	}
	for _, ch := range id {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
		case ch == '-' || ch == '_' || ch == '.':
		default:
			return ""
		}
	}
	return id
}

// ClientIP returns the remote host of r, preferring the first X-Forwarded-For hop.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
