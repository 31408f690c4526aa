package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kuitang/pocketnotes/internal/errs"
	"github.com/kuitang/pocketnotes/internal/notes"
	"github.com/kuitang/pocketnotes/internal/obs"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Handler implements MCP tool call handling over a note store.
type Handler struct {
	store *notes.Store
}

// NewHandler creates a new MCP handler for the given store.
func NewHandler(store *notes.Store) *Handler {
	return &Handler{store: store}
}

// createToolHandler returns a tool handler function for the given tool name.
// Tool failures are reported as IsError results, never as transport errors.
func (h *Handler) createToolHandler(name string) func(ctx context.Context, req *mcp.CallToolRequest, args map[string]any) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, args map[string]any) (*mcp.CallToolResult, any, error) {
		result, err := h.HandleToolCall(ctx, name, args)
		if err != nil {
			obs.From(ctx).Warn("mcp.tool_failed", "tool", name, "code", errs.CodeOf(err), "error", err)
			return newToolResultError(err), nil, nil
		}
		return result, nil, nil
	}
}

// HandleToolCall routes tool calls to appropriate handlers.
func (h *Handler) HandleToolCall(ctx context.Context, name string, arguments map[string]any) (*mcp.CallToolResult, error) {
	switch name {
	case toolNoteCreate, toolNoteUpdate, toolNoteDelete, toolNoteView,
		toolNoteList, toolNoteTags, toolNoteFavorite, toolNoteArchive:
	default:
		return nil, errs.Newf(errs.NotFound, "unknown tool: %s", name)
	}
	if err := h.requireStore(); err != nil {
		return nil, err
	}

	switch name {
	case toolNoteCreate:
		return h.handleNoteCreate(ctx, arguments)
	case toolNoteUpdate:
		return h.handleNoteUpdate(ctx, arguments)
	case toolNoteDelete:
		return h.handleNoteDelete(ctx, arguments)
	case toolNoteView:
		return h.handleNoteView(arguments)
	case toolNoteList:
		return h.handleNoteList(arguments)
	case toolNoteTags:
		return h.handleNoteTags(arguments)
	case toolNoteFavorite:
		return h.handleToggle(arguments, h.store.ToggleFavorite)
	default:
		return h.handleToggle(arguments, h.store.ToggleArchive)
	}
}

func (h *Handler) requireStore() error {
	if h.store == nil {
		return errs.New(errs.Unavailable, "notes tools are unavailable on this MCP endpoint")
	}
	return nil
}

// toolErrorPayload is the JSON body of every IsError tool result.
type toolErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// decodeToolArgs decodes tool arguments into dst, rejecting unknown fields.
// A nil map decodes as an empty object.
func decodeToolArgs(args map[string]any, dst any) error {
	if args == nil {
		args = map[string]any{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return errs.Wrap(errs.InvalidArgument, "invalid arguments", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errs.Wrap(errs.InvalidArgument, fmt.Sprintf("invalid arguments: %v", err), err)
	}
	return nil
}

// newToolResultText creates a successful tool result with text content.
func newToolResultText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// newToolResultError creates a tool result carrying a coded error payload.
func newToolResultError(err error) *mcp.CallToolResult {
	payload := toolErrorPayload{
		Code:    string(errs.CodeOf(err)),
		Message: errs.MessageOf(err),
	}
	text := string(marshalAny(payload))
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
		IsError: true,
	}
}

// marshalAny returns the indented JSON encoding of value, or nil when it cannot be encoded.
func marshalAny(value any) []byte {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return nil
	}
	return data
}

func jsonResult(value any) (*mcp.CallToolResult, error) {
	data := marshalAny(value)
	if data == nil {
		return nil, errs.New(errs.Internal, "failed to marshal response")
	}
	return newToolResultText(string(data)), nil
}

func requireID(id string) error {
	if id == "" {
		return errs.New(errs.InvalidArgument, "id is required")
	}
	return nil
}

func validateColor(color *string) error {
	if color != nil && !notes.IsPaletteColor(*color) {
		return errs.Newf(errs.InvalidArgument, "color %q is not a palette color", *color)
	}
	return nil
}

type noteCreateArgs struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
	Color   string   `json:"color"`
}

type noteUpdateArgs struct {
	ID      string    `json:"id"`
	Title   *string   `json:"title"`
	Content *string   `json:"content"`
	Tags    *[]string `json:"tags"`
	Color   *string   `json:"color"`
}

type noteIDArgs struct {
	ID string `json:"id"`
}

type noteViewArgs struct {
	ID        string `json:"id"`
	LineRange []int  `json:"line_range"`
}

type noteListArgs struct {
	Search        string          `json:"search"`
	Tags          []string        `json:"tags"`
	ShowArchived  bool            `json:"show_archived"`
	ShowFavorites bool            `json:"show_favorites"`
	SortBy        notes.SortField `json:"sort_by"`
	SortOrder     notes.SortOrder `json:"sort_order"`
}

// noteSummary is the metadata returned by mutating tools; content is omitted.
type noteSummary struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	TotalLines int       `json:"total_lines"`
	Tags       []string  `json:"tags"`
	Color      string    `json:"color,omitempty"`
	IsFavorite bool      `json:"is_favorite"`
	IsArchived bool      `json:"is_archived"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func summarize(n notes.Note) noteSummary {
	return noteSummary{
		ID:         n.ID,
		Title:      n.Title,
		TotalLines: notes.CountLines(n.Content),
		Tags:       n.Tags,
		Color:      n.Color,
		IsFavorite: n.IsFavorite,
		IsArchived: n.IsArchived,
		CreatedAt:  n.CreatedAt,
		UpdatedAt:  n.UpdatedAt,
	}
}

type noteViewResult struct {
	noteSummary
	Content   string `json:"content"`
	LineRange []int  `json:"line_range,omitempty"`
}

type noteListResult struct {
	Notes []notes.NoteListItem `json:"notes"`
	Count int                  `json:"count"`
	Total int                  `json:"total"`
}

type noteDeleteResult struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

type noteTagsResult struct {
	Tags []string `json:"tags"`
}

func (h *Handler) handleNoteCreate(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
	var in noteCreateArgs
	if err := decodeToolArgs(args, &in); err != nil {
		return nil, err
	}
	if err := validateColor(&in.Color); err != nil {
		return nil, err
	}

	note := h.store.Create(notes.NoteInput(in))
	obs.From(ctx).Info("mcp.note_created", "note_id", note.ID)
	return jsonResult(summarize(note))
}

func (h *Handler) handleNoteUpdate(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
	var in noteUpdateArgs
	if err := decodeToolArgs(args, &in); err != nil {
		return nil, err
	}
	if err := requireID(in.ID); err != nil {
		return nil, err
	}
	if err := validateColor(in.Color); err != nil {
		return nil, err
	}

	patch := notes.NotePatch{Title: in.Title, Content: in.Content, Tags: in.Tags, Color: in.Color}
	if patch.IsEmpty() {
		return nil, errs.New(errs.InvalidArgument, "at least one of title, content, tags or color is required")
	}
	note, ok := h.store.Update(in.ID, patch)
	if !ok {
		return nil, errs.NoteNotFound(in.ID)
	}
	obs.From(ctx).Info("mcp.note_updated", "note_id", note.ID)
	return jsonResult(summarize(note))
}

func (h *Handler) handleNoteDelete(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
	var in noteIDArgs
	if err := decodeToolArgs(args, &in); err != nil {
		return nil, err
	}
	if err := requireID(in.ID); err != nil {
		return nil, err
	}
	if !h.store.Delete(in.ID) {
		return nil, errs.NoteNotFound(in.ID)
	}
	obs.From(ctx).Info("mcp.note_deleted", "note_id", in.ID)
	return jsonResult(noteDeleteResult{ID: in.ID, Deleted: true})
}

func (h *Handler) handleNoteView(args map[string]any) (*mcp.CallToolResult, error) {
	var in noteViewArgs
	if err := decodeToolArgs(args, &in); err != nil {
		return nil, err
	}
	if err := requireID(in.ID); err != nil {
		return nil, err
	}

	start, end := 0, -1
	switch len(in.LineRange) {
	case 0:
	case 2:
		start, end = in.LineRange[0], in.LineRange[1]
		if start < 1 || (end != -1 && end < start) {
			return nil, errs.Newf(errs.InvalidArgument, "invalid line_range [%d, %d]", start, end)
		}
	default:
		return nil, errs.New(errs.InvalidArgument, "line_range must be [start, end]")
	}

	note, ok := h.store.Get(in.ID)
	if !ok {
		return nil, errs.NoteNotFound(in.ID)
	}

	formatted, total := notes.FormatWithLineNumbers(note.Content, start, end)
	result := noteViewResult{
		noteSummary: summarize(note),
		Content:     formatted,
		LineRange:   in.LineRange,
	}
	result.TotalLines = total
	return jsonResult(result)
}

func (h *Handler) handleNoteList(args map[string]any) (*mcp.CallToolResult, error) {
	var in noteListArgs
	if err := decodeToolArgs(args, &in); err != nil {
		return nil, err
	}

	filters := notes.DefaultFilters()
	filters.Search = in.Search
	filters.ShowArchived = in.ShowArchived
	filters.ShowFavorites = in.ShowFavorites
	if len(in.Tags) > 0 {
		filters.Tags = notes.NormalizeTags(in.Tags)
	}
	if in.SortBy != "" {
		if !in.SortBy.Valid() {
			return nil, errs.Newf(errs.InvalidArgument, "invalid sort_by %q", in.SortBy)
		}
		filters.SortBy = in.SortBy
	}
	if in.SortOrder != "" {
		if !in.SortOrder.Valid() {
			return nil, errs.Newf(errs.InvalidArgument, "invalid sort_order %q", in.SortOrder)
		}
		filters.SortOrder = in.SortOrder
	}

	all := h.store.Notes()
	visible := notes.Apply(all, filters)
	items := make([]notes.NoteListItem, 0, len(visible))
	for _, n := range visible {
		items = append(items, notes.ListItem(n, notes.DefaultPreviewLines))
	}
	return jsonResult(noteListResult{Notes: items, Count: len(items), Total: len(all)})
}

func (h *Handler) handleNoteTags(args map[string]any) (*mcp.CallToolResult, error) {
	var in struct{}
	if err := decodeToolArgs(args, &in); err != nil {
		return nil, err
	}
	return jsonResult(noteTagsResult{Tags: h.store.AllTags()})
}

func (h *Handler) handleToggle(args map[string]any, toggle func(string) (notes.Note, bool)) (*mcp.CallToolResult, error) {
	var in noteIDArgs
	if err := decodeToolArgs(args, &in); err != nil {
		return nil, err
	}
	if err := requireID(in.ID); err != nil {
		return nil, err
	}
	note, ok := toggle(in.ID)
	if !ok {
		return nil, errs.NoteNotFound(in.ID)
	}
	return jsonResult(summarize(note))
}
