package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kuitang/pocketnotes/internal/notes"
	"github.com/kuitang/pocketnotes/internal/ratelimit"
	"github.com/kuitang/pocketnotes/internal/storage"
	"github.com/kuitang/pocketnotes/internal/web"
)

func newTestRouter(t *testing.T, cfg ratelimit.Config) (*notes.Store, http.Handler) {
	t.Helper()
	store := notes.NewStore(notes.WithStorage(storage.NewMemory()))
	require.NoError(t, store.Load(context.Background()))
	renderer, err := web.NewRenderer()
	require.NoError(t, err)
	limiter := ratelimit.New(cfg)
	t.Cleanup(limiter.Stop)
	return store, newRouter(store, renderer, limiter)
}

func TestRouter_MountsAllSurfaces(t *testing.T) {
	store, router := newTestRouter(t, ratelimit.DefaultConfig)
	note := store.Create(notes.NoteInput{Title: "Mounted"})

	cases := []struct {
		method, target, body string
		status               int
		contains             string
	}{
		{http.MethodGet, "/", "", http.StatusOK, "Mounted"},
		{http.MethodGet, "/healthz", "", http.StatusOK, "ok"},
		{http.MethodGet, "/help", "", http.StatusOK, "Formatting"},
		{http.MethodGet, "/api/notes/" + note.ID, "", http.StatusOK, `"title":"Mounted"`},
		{http.MethodGet, "/api/notes/missing", "", http.StatusNotFound, "not_found"},
		{http.MethodPost, "/mcp", `{"jsonrpc":"2.0","method":"tools/list","id":1}`, http.StatusOK, "note_create"},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.target, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.target, strings.NewReader(tc.body))
			if tc.body != "" {
				req.Header.Set("Content-Type", "application/json")
				req.Header.Set("Accept", "application/json, text/event-stream")
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			require.Contains(t, rec.Body.String(), tc.contains)
			require.NotEmpty(t, rec.Header().Get("X-Request-Id"))
		})
	}
}

func TestRouter_RateLimitsAPIButNotWeb(t *testing.T) {
	_, router := newTestRouter(t, ratelimit.Config{RPS: 0.001, Burst: 1})

	get := func(target string) int {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.RemoteAddr = "203.0.113.9:5000"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, get("/api/tags"))
	require.Equal(t, http.StatusTooManyRequests, get("/api/tags"))
	require.Equal(t, http.StatusOK, get("/"))
	require.Equal(t, http.StatusOK, get("/"))
}

// onceWatcher reports a single change, then waits for shutdown.
type onceWatcher struct{}

func (onceWatcher) Watch(ctx context.Context, onChange func()) error {
	onChange()
	<-ctx.Done()
	return ctx.Err()
}

func TestWatchStorage_ReloadsOnChange(t *testing.T) {
	backend := storage.NewMemory()
	store := notes.NewStore(notes.WithStorage(backend))
	require.NoError(t, store.Load(context.Background()))

	other := notes.NewStore(notes.WithStorage(backend))
	require.NoError(t, other.Load(context.Background()))
	written := other.Create(notes.NoteInput{Title: "from another process"})
	require.NoError(t, other.PersistErr())
	_, ok := store.Get(written.ID)
	require.False(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		watchStorage(ctx, onceWatcher{}, store, time.Second)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, ok := store.Get(written.ID)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watchStorage did not return after cancel")
	}
}
