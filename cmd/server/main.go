// Command server runs the pocketnotes web app, JSON API and MCP endpoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kuitang/pocketnotes/internal/api"
	"github.com/kuitang/pocketnotes/internal/config"
	"github.com/kuitang/pocketnotes/internal/mcp"
	"github.com/kuitang/pocketnotes/internal/notes"
	"github.com/kuitang/pocketnotes/internal/obs"
	"github.com/kuitang/pocketnotes/internal/ratelimit"
	"github.com/kuitang/pocketnotes/internal/storage"
	"github.com/kuitang/pocketnotes/internal/web"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		obs.Pkg("main").Error("server_exit", "error", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.LoadConfig(config.ParseFlags())
	if err != nil {
		return err
	}
	obs.Init(cfg.LogLevel)
	cfg.PrintStartupSummary(os.Stderr)
	logger := obs.Pkg("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts, err := cfg.StorageOptions()
	if err != nil {
		return err
	}
	backend, err := storage.Open(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to open %s storage: %w", cfg.StorageBackend, err)
	}
	defer backend.Close()

	store := notes.NewStore(
		notes.WithStorage(backend),
		notes.WithPersistTimeout(cfg.PersistTimeout),
		notes.WithLogger(obs.Pkg("notes")),
	)
	if err := store.Load(ctx); err != nil {
		return fmt.Errorf("failed to load notes: %w", err)
	}
	logger.Info("notes_loaded", "count", store.Len(), "backend", cfg.StorageBackend)

	if w, ok := backend.(storage.Watcher); ok && cfg.WatchStorage {
		go watchStorage(ctx, w, store, cfg.PersistTimeout)
	}

	renderer, err := web.NewRenderer()
	if err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}
	limiter := ratelimit.New(cfg.RateLimitConfig)
	defer limiter.Stop()

	// Cancelled before Shutdown so long-lived /events streams return.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           newRouter(store, renderer, limiter),
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server_listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info("server_shutdown", "reason", context.Cause(ctx))
	}

	cancelBase()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server_shutdown_incomplete", "error", err)
	}
	if err := store.Flush(shutdownCtx); err != nil {
		return fmt.Errorf("final flush failed: %w", err)
	}
	logger.Info("server_stopped", "notes", store.Len())
	return nil
}

// newRouter mounts the web UI, the JSON API and the MCP endpoint on one mux.
// The API and MCP surfaces are rate limited per client IP.
func newRouter(store *notes.Store, renderer *web.Renderer, limiter *ratelimit.Limiter) http.Handler {
	limited := ratelimit.Middleware(limiter, nil)

	mux := http.NewServeMux()
	web.NewWebHandler(renderer, store).RegisterRoutes(mux)
	web.NewDocsHandler(renderer).RegisterRoutes(mux)

	apiMux := http.NewServeMux()
	api.NewHandler(store).RegisterRoutes(apiMux)
	mux.Handle("/api/", limited(apiMux))

	mountMCPRoute(mux, "/mcp", limited(mcp.NewServer(store)))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	return obs.RequestContextMiddleware(obs.AccessLogMiddleware("http", mux))
}

// mountMCPRoute registers every Streamable HTTP method on path.
func mountMCPRoute(mux *http.ServeMux, path string, handler http.Handler) {
	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions} {
		mux.Handle(method+" "+path, handler)
	}
}

// watchStorage reloads the store whenever another process rewrites the record.
func watchStorage(ctx context.Context, w storage.Watcher, store *notes.Store, timeout time.Duration) {
	logger := obs.Pkg("main")
	err := w.Watch(ctx, func() {
		reloadCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := store.Reload(reloadCtx); err != nil {
			logger.Warn("notes_reload_failed", "error", err)
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("storage_watch_stopped", "error", err)
	}
}
