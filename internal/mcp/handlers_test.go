package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"pgregory.net/rapid"

	"github.com/kuitang/pocketnotes/internal/errs"
	"github.com/kuitang/pocketnotes/internal/notes"
	"github.com/kuitang/pocketnotes/internal/storage"
)

var epoch = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func newTestHandler(t *testing.T) (*Handler, *notes.Store, *notes.FakeClock) {
	t.Helper()
	clock := notes.NewFakeClock(epoch)
	store := notes.NewStore(notes.WithStorage(storage.NewMemory()), notes.WithClock(clock))
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return NewHandler(store), store, clock
}

func toolResultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatalf("missing tool result content: %#v", result)
	}
	text, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content type: %T", result.Content[0])
	}
	return text.Text
}

func parseToolErrorPayload(t *testing.T, result *mcp.CallToolResult) toolErrorPayload {
	t.Helper()
	raw := toolResultText(t, result)
	var payload toolErrorPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("invalid tool error payload JSON: %v body=%q", err, raw)
	}
	return payload
}

// callTool runs a tool through the SDK-facing handler and decodes its JSON text into dst.
func callTool(t *testing.T, h *Handler, name string, args map[string]any, dst any) *mcp.CallToolResult {
	t.Helper()
	result, _, err := h.createToolHandler(name)(context.Background(), &mcp.CallToolRequest{}, args)
	if err != nil {
		t.Fatalf("%s returned transport error: %v", name, err)
	}
	if dst != nil {
		if result.IsError {
			t.Fatalf("%s failed: %s", name, toolResultText(t, result))
		}
		if err := json.Unmarshal([]byte(toolResultText(t, result)), dst); err != nil {
			t.Fatalf("%s: invalid JSON result: %v", name, err)
		}
	}
	return result
}

func requireToolError(t *testing.T, result *mcp.CallToolResult, code errs.Code) toolErrorPayload {
	t.Helper()
	if result == nil || !result.IsError {
		t.Fatalf("expected IsError result, got %#v", result)
	}
	payload := parseToolErrorPayload(t, result)
	if payload.Code != string(code) {
		t.Fatalf("unexpected error code: got=%q want=%q (message=%q)", payload.Code, code, payload.Message)
	}
	return payload
}

func testDecodeToolArgs_UnknownFieldsRejected(t *rapid.T) {
	var decoded struct {
		ID string `json:"id"`
	}
	extra := rapid.StringMatching(`[a-z_]{3,12}`).Filter(func(s string) bool { return s != "id" }).Draw(t, "extra")
	err := decodeToolArgs(map[string]any{
		"id":  "note-1",
		extra: "unexpected",
	}, &decoded)
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
	if got := errs.CodeOf(err); got != errs.InvalidArgument {
		t.Fatalf("unexpected error code: got=%q want=%q", got, errs.InvalidArgument)
	}
}

func TestDecodeToolArgs_UnknownFieldsRejected(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testDecodeToolArgs_UnknownFieldsRejected)
}

func TestDecodeToolArgs_NilMapBehavesAsEmptyObject(t *testing.T) {
	t.Parallel()
	var decoded struct {
		Optional string `json:"optional,omitempty"`
	}
	if err := decodeToolArgs(nil, &decoded); err != nil {
		t.Fatalf("decodeToolArgs(nil) failed: %v", err)
	}
}

func TestDecodeToolArgs_WrongTypeIsInvalidArgument(t *testing.T) {
	t.Parallel()
	var decoded noteIDArgs
	err := decodeToolArgs(map[string]any{"id": 42}, &decoded)
	if errs.CodeOf(err) != errs.InvalidArgument {
		t.Fatalf("unexpected code: %q (%v)", errs.CodeOf(err), err)
	}
}

func TestCreateToolHandler_UnknownTool_ShapedNotFoundError(t *testing.T) {
	t.Parallel()
	h, _, _ := newTestHandler(t)
	result := callTool(t, h, "tool_that_does_not_exist", map[string]any{}, nil)
	payload := requireToolError(t, result, errs.NotFound)
	if !strings.Contains(strings.ToLower(payload.Message), "unknown tool") {
		t.Fatalf("unexpected error message: %q", payload.Message)
	}
}

func TestCreateToolHandler_NoStore_ShapedUnavailable(t *testing.T) {
	t.Parallel()
	result, _, err := NewHandler(nil).createToolHandler(toolNoteList)(context.Background(), &mcp.CallToolRequest{}, nil)
	if err != nil {
		t.Fatalf("createToolHandler returned transport error: %v", err)
	}
	payload := requireToolError(t, result, errs.Unavailable)
	if !strings.Contains(payload.Message, "notes tools are unavailable") {
		t.Fatalf("unexpected error message: %q", payload.Message)
	}
}

func TestMarshalAny_InvalidValue_DoesNotPanic(t *testing.T) {
	t.Parallel()
	ch := make(chan int)
	data := map[string]any{"bad": ch}
	if got := marshalAny(data); got != nil {
		t.Fatalf("expected nil for unmarshalable value, got=%q", string(got))
	}
}

func TestNewToolResultError_UsesStableJSONShape(t *testing.T) {
	t.Parallel()
	result := newToolResultError(errs.New(errs.InvalidArgument, "bad input"))
	payload := requireToolError(t, result, errs.InvalidArgument)
	if payload.Message != "bad input" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestNewToolResultError_HidesUntypedErrors(t *testing.T) {
	t.Parallel()
	result := newToolResultError(context.DeadlineExceeded)
	payload := requireToolError(t, result, errs.Internal)
	if payload.Message != "internal error" {
		t.Fatalf("untyped error leaked: %+v", payload)
	}
}

func TestToolDefinitions_AllToolsRouted(t *testing.T) {
	t.Parallel()
	h := NewHandler(nil)
	seen := map[string]bool{}
	for _, tool := range ToolDefinitions() {
		if seen[tool.Name] {
			t.Fatalf("duplicate tool %q", tool.Name)
		}
		seen[tool.Name] = true
		// Known tools fail on the missing store, not as unknown.
		_, err := h.HandleToolCall(context.Background(), tool.Name, nil)
		if errs.CodeOf(err) != errs.Unavailable {
			t.Fatalf("tool %q is not routed: %v", tool.Name, err)
		}
	}
	if len(seen) != 8 {
		t.Fatalf("expected 8 tools, got %d", len(seen))
	}
}

func TestNoteCreateViewUpdate(t *testing.T) {
	t.Parallel()
	h, store, clock := newTestHandler(t)

	var created noteSummary
	callTool(t, h, toolNoteCreate, map[string]any{
		"title":   "Groceries",
		"content": "eggs\nmilk\nbread",
		"tags":    []any{" food ", "food", "weekly"},
		"color":   notes.Palette[0].Hex,
	}, &created)
	if created.ID == "" || created.TotalLines != 3 {
		t.Fatalf("unexpected create result: %+v", created)
	}
	if strings.Join(created.Tags, ",") != "food,weekly" {
		t.Fatalf("tags not normalized: %v", created.Tags)
	}
	if !created.CreatedAt.Equal(epoch) {
		t.Fatalf("createdAt = %v, want %v", created.CreatedAt, epoch)
	}

	var view noteViewResult
	callTool(t, h, toolNoteView, map[string]any{"id": created.ID, "line_range": []any{2, -1}}, &view)
	if view.TotalLines != 3 {
		t.Fatalf("total_lines = %d", view.TotalLines)
	}
	if strings.Contains(view.Content, "eggs") || !strings.Contains(view.Content, "2\tmilk") {
		t.Fatalf("unexpected ranged content: %q", view.Content)
	}

	clock.Advance(time.Minute)
	var updated noteSummary
	callTool(t, h, toolNoteUpdate, map[string]any{"id": created.ID, "title": "Shopping"}, &updated)
	if updated.Title != "Shopping" || !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Fatalf("unexpected update result: %+v", updated)
	}
	stored, _ := store.Get(created.ID)
	if stored.Content != "eggs\nmilk\nbread" || stored.Color != notes.Palette[0].Hex {
		t.Fatalf("update touched fields it was not given: %+v", stored)
	}
}

func TestNoteTools_ValidationErrors(t *testing.T) {
	t.Parallel()
	h, store, _ := newTestHandler(t)
	note := store.Create(notes.NoteInput{Title: "x", Content: "a\nb"})

	cases := []struct {
		name string
		tool string
		args map[string]any
		code errs.Code
	}{
		{"create bad color", toolNoteCreate, map[string]any{"color": "mauve"}, errs.InvalidArgument},
		{"create unknown field", toolNoteCreate, map[string]any{"title": "x", "pinned": true}, errs.InvalidArgument},
		{"update empty patch", toolNoteUpdate, map[string]any{"id": note.ID}, errs.InvalidArgument},
		{"update missing id", toolNoteUpdate, map[string]any{"title": "y"}, errs.InvalidArgument},
		{"update unknown id", toolNoteUpdate, map[string]any{"id": "nope", "title": "y"}, errs.NotFound},
		{"view bad range", toolNoteView, map[string]any{"id": note.ID, "line_range": []any{3, 1}}, errs.InvalidArgument},
		{"view short range", toolNoteView, map[string]any{"id": note.ID, "line_range": []any{1}}, errs.InvalidArgument},
		{"view unknown id", toolNoteView, map[string]any{"id": "nope"}, errs.NotFound},
		{"delete unknown id", toolNoteDelete, map[string]any{"id": "nope"}, errs.NotFound},
		{"favorite unknown id", toolNoteFavorite, map[string]any{"id": "nope"}, errs.NotFound},
		{"archive missing id", toolNoteArchive, map[string]any{}, errs.InvalidArgument},
		{"list bad sort", toolNoteList, map[string]any{"sort_by": "color"}, errs.InvalidArgument},
		{"list bad order", toolNoteList, map[string]any{"sort_order": "up"}, errs.InvalidArgument},
		{"tags with args", toolNoteTags, map[string]any{"id": note.ID}, errs.InvalidArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			requireToolError(t, callTool(t, h, tc.tool, tc.args, nil), tc.code)
		})
	}

	if store.Len() != 1 {
		t.Fatalf("failed calls mutated the store: len=%d", store.Len())
	}
	if got, _ := store.Get(note.ID); got.Title != "x" {
		t.Fatalf("failed calls mutated the note: %+v", got)
	}
}

func TestNoteList_FiltersWithoutTouchingSessionFilters(t *testing.T) {
	t.Parallel()
	h, store, clock := newTestHandler(t)

	a := store.Create(notes.NoteInput{Title: "alpha", Tags: []string{"work"}})
	clock.Advance(time.Second)
	b := store.Create(notes.NoteInput{Title: "beta", Content: "one\ntwo\nthree", Tags: []string{"home"}})
	clock.Advance(time.Second)
	c := store.Create(notes.NoteInput{Title: "gamma", Tags: []string{"work"}})
	store.ToggleArchive(c.ID)
	store.ToggleFavorite(b.ID)
	before := store.Filters()

	var all noteListResult
	callTool(t, h, toolNoteList, nil, &all)
	if all.Count != 2 || all.Total != 3 {
		t.Fatalf("default list: count=%d total=%d", all.Count, all.Total)
	}
	if all.Notes[0].ID != b.ID || all.Notes[1].ID != a.ID {
		t.Fatalf("default list not newest first: %+v", all.Notes)
	}
	if all.Notes[0].Preview != "one\ntwo\n..." || all.Notes[0].TotalLines != 3 {
		t.Fatalf("unexpected preview: %+v", all.Notes[0])
	}

	var work noteListResult
	callTool(t, h, toolNoteList, map[string]any{"tags": []any{"work"}, "show_archived": true, "sort_by": "title", "sort_order": "asc"}, &work)
	if work.Count != 2 || work.Notes[0].ID != a.ID || work.Notes[1].ID != c.ID {
		t.Fatalf("unexpected tag listing: %+v", work.Notes)
	}

	var favs noteListResult
	callTool(t, h, toolNoteList, map[string]any{"show_favorites": true, "search": "BETA"}, &favs)
	if favs.Count != 1 || favs.Notes[0].ID != b.ID {
		t.Fatalf("unexpected favorites listing: %+v", favs.Notes)
	}

	after := store.Filters()
	if after.Search != before.Search || after.ShowArchived != before.ShowArchived || len(after.Tags) != len(before.Tags) {
		t.Fatalf("note_list changed session filters: before=%+v after=%+v", before, after)
	}
}

func TestNoteTogglesDeleteAndTags(t *testing.T) {
	t.Parallel()
	h, store, _ := newTestHandler(t)
	n := store.Create(notes.NoteInput{Title: "t", Tags: []string{"b", "a"}})
	store.Create(notes.NoteInput{Tags: []string{"c", "a"}})

	var fav noteSummary
	callTool(t, h, toolNoteFavorite, map[string]any{"id": n.ID}, &fav)
	if !fav.IsFavorite {
		t.Fatal("favorite not toggled on")
	}
	var arch noteSummary
	callTool(t, h, toolNoteArchive, map[string]any{"id": n.ID}, &arch)
	if !arch.IsArchived || !arch.IsFavorite {
		t.Fatalf("unexpected archive result: %+v", arch)
	}

	var tags noteTagsResult
	callTool(t, h, toolNoteTags, nil, &tags)
	if strings.Join(tags.Tags, ",") != "a,b,c" {
		t.Fatalf("unexpected tags: %v", tags.Tags)
	}

	var deleted noteDeleteResult
	callTool(t, h, toolNoteDelete, map[string]any{"id": n.ID}, &deleted)
	if !deleted.Deleted || deleted.ID != n.ID {
		t.Fatalf("unexpected delete result: %+v", deleted)
	}
	if _, ok := store.Get(n.ID); ok {
		t.Fatal("note still present after delete")
	}
	requireToolError(t, callTool(t, h, toolNoteDelete, map[string]any{"id": n.ID}, nil), errs.NotFound)
}

func testToggleFavoriteTwiceRestores(t *rapid.T) {
	clock := notes.NewFakeClock(epoch)
	store := notes.NewStore(notes.WithStorage(storage.NewMemory()), notes.WithClock(clock))
	h := NewHandler(store)
	n := store.Create(notes.NoteInput{Title: rapid.String().Draw(t, "title")})
	flips := rapid.IntRange(0, 6).Draw(t, "flips")

	for range flips {
		if _, err := h.HandleToolCall(context.Background(), toolNoteFavorite, map[string]any{"id": n.ID}); err != nil {
			t.Fatalf("toggle: %v", err)
		}
	}
	got, _ := store.Get(n.ID)
	if got.IsFavorite != (flips%2 == 1) {
		t.Fatalf("after %d flips favorite=%v", flips, got.IsFavorite)
	}
}

func TestToggleFavoriteTwiceRestores(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testToggleFavoriteTwiceRestores)
}
