// Package mcp exposes the note store as Model Context Protocol tools over Streamable HTTP.
package mcp

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/kuitang/pocketnotes/internal/logutil"
	"github.com/kuitang/pocketnotes/internal/notes"
	"github.com/kuitang/pocketnotes/internal/obs"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// maxMCPBodyBytes bounds a single JSON-RPC request body.
	maxMCPBodyBytes = 1 << 20

	mcpDebugBodyLogLimitBytes = 8 * 1024
)

// Server wraps the MCP server with notes handling.
type Server struct {
	mcpServer   *mcp.Server
	handler     *Handler
	httpHandler http.Handler
}

// NewServer creates a new MCP server over the given store.
func NewServer(store *notes.Store) *Server {
	handler := NewHandler(store)

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "pocketnotes",
			Version: "1.0.0",
		},
		nil,
	)

	for _, tool := range ToolDefinitions() {
		mcp.AddTool(mcpServer, tool, handler.createToolHandler(tool.Name))
	}
	handler.registerPrompts(mcpServer)

	// Stateless with JSON responses: every POST carries a complete JSON-RPC
	// exchange, so no session survives between requests.
	httpHandler := mcp.NewStreamableHTTPHandler(
		func(*http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			JSONResponse: true,
			Stateless:    true,
		},
	)

	return &Server{
		mcpServer:   mcpServer,
		handler:     handler,
		httpHandler: httpHandler,
	}
}

// ServeHTTP implements http.Handler for the Streamable HTTP transport.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Mcp-Session-Id, Mcp-Protocol-Version, Last-Event-ID")
	w.Header().Set("Access-Control-Allow-Methods", "POST, DELETE, OPTIONS")

	switch r.Method {
	case http.MethodOptions:
		w.Header().Set("Access-Control-Max-Age", "86400")
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodGet:
		// Stateless servers have no server-initiated stream to resume.
		w.Header().Set("Allow", "POST, DELETE, OPTIONS")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := obs.From(ctx).With("pkg", "mcp")
	debug := logger.Enabled(ctx, slog.LevelDebug)

	if r.Body != nil && r.Method == http.MethodPost {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMCPBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				logger.Warn("mcp.body_too_large", "limit", maxMCPBodyBytes)
				http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
				return
			}
			logger.Error("mcp.body_read_failed", "error", err)
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		if debug {
			logger.Debug("mcp.request",
				"method", r.Method,
				"headers", logutil.FormatHeadersForLog(r.Header),
				"body", logutil.FormatBodyForLog(r.Header.Get("Content-Type"), body, mcpDebugBodyLogLimitBytes, false),
			)
		}
	}

	sw := obs.Track(w)
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("mcp.handler_panic", "panic", rec)
			if !sw.Written() {
				http.Error(sw, "Internal server error", http.StatusInternalServerError)
			}
		}
	}()

	s.httpHandler.ServeHTTP(sw, r)

	if !sw.Written() {
		logger.Error("mcp.no_response", "method", r.Method)
		http.Error(sw, "MCP handler returned without writing response", http.StatusInternalServerError)
		return
	}
	if status := sw.Status(); status >= http.StatusBadRequest {
		logger.Warn("mcp.request_failed", "method", r.Method, "status", status)
	}
}
