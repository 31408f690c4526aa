package notes

import (
	"slices"
	"time"
)

// SortField names the note field used to order filtered results.
type SortField string

const (
	SortByUpdatedAt SortField = "updatedAt"
	SortByCreatedAt SortField = "createdAt"
	SortByTitle     SortField = "title"
)

// SortOrder is the direction of the sort.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Valid reports whether f is one of the known sort fields.
func (f SortField) Valid() bool {
	switch f {
	case SortByUpdatedAt, SortByCreatedAt, SortByTitle:
		return true
	default:
		return false
	}
}

// Valid reports whether o is a known sort order.
func (o SortOrder) Valid() bool {
	return o == SortAsc || o == SortDesc
}

// Note is a single user-authored markdown document with metadata.
// The JSON field names are the persisted record layout.
type Note struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Tags       []string  `json:"tags"`
	Color      string    `json:"color,omitempty"`
	IsFavorite bool      `json:"isFavorite"`
	IsArchived bool      `json:"isArchived"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// HasColor reports whether the note carries a color label.
func (n Note) HasColor() bool {
	return n.Color != ""
}

// HasTag reports whether the note carries tag exactly.
func (n Note) HasTag(tag string) bool {
	return slices.Contains(n.Tags, tag)
}

// clone returns a deep copy so callers never alias store internals.
func (n Note) clone() Note {
	n.Tags = slices.Clone(n.Tags)
	if n.Tags == nil {
		n.Tags = []string{}
	}
	return n
}

// NoteInput contains parameters for creating a note. Every field is optional.
type NoteInput struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
	Color   string   `json:"color,omitempty"`
}

// NotePatch contains the fields to merge into an existing note.
// Nil pointers are left untouched (pointer to distinguish empty string from omitted).
type NotePatch struct {
	Title   *string   `json:"title,omitempty"`
	Content *string   `json:"content,omitempty"`
	Tags    *[]string `json:"tags,omitempty"`
	Color   *string   `json:"color,omitempty"`
}

// IsEmpty reports whether the patch carries no fields.
func (p NotePatch) IsEmpty() bool {
	return p.Title == nil && p.Content == nil && p.Tags == nil && p.Color == nil
}

// Filters is the transient query configuration. It is never persisted.
type Filters struct {
	Search        string    `json:"search"`
	Tags          []string  `json:"tags"`
	ShowArchived  bool      `json:"showArchived"`
	ShowFavorites bool      `json:"showFavorites"`
	SortBy        SortField `json:"sortBy"`
	SortOrder     SortOrder `json:"sortOrder"`
}

// DefaultFilters returns the configuration a fresh store starts with:
// everything visible except archived notes, most recently updated first.
func DefaultFilters() Filters {
	return Filters{
		Tags:      []string{},
		SortBy:    SortByUpdatedAt,
		SortOrder: SortDesc,
	}
}

func (f Filters) clone() Filters {
	f.Tags = slices.Clone(f.Tags)
	if f.Tags == nil {
		f.Tags = []string{}
	}
	return f
}

// FilterPatch is a shallow partial update of Filters.
type FilterPatch struct {
	Search        *string    `json:"search,omitempty"`
	Tags          *[]string  `json:"tags,omitempty"`
	ShowArchived  *bool      `json:"showArchived,omitempty"`
	ShowFavorites *bool      `json:"showFavorites,omitempty"`
	SortBy        *SortField `json:"sortBy,omitempty"`
	SortOrder     *SortOrder `json:"sortOrder,omitempty"`
}

// apply merges the supplied fields over f without validation.
func (p FilterPatch) apply(f Filters) Filters {
	if p.Search != nil {
		f.Search = *p.Search
	}
	if p.Tags != nil {
		f.Tags = slices.Clone(*p.Tags)
	}
	if p.ShowArchived != nil {
		f.ShowArchived = *p.ShowArchived
	}
	if p.ShowFavorites != nil {
		f.ShowFavorites = *p.ShowFavorites
	}
	if p.SortBy != nil {
		f.SortBy = *p.SortBy
	}
	if p.SortOrder != nil {
		f.SortOrder = *p.SortOrder
	}
	return f
}

// ChangeKind classifies a store change event.
type ChangeKind string

const (
	ChangeCreated  ChangeKind = "created"
	ChangeUpdated  ChangeKind = "updated"
	ChangeDeleted  ChangeKind = "deleted"
	ChangeActive   ChangeKind = "active"
	ChangeFilters  ChangeKind = "filters"
	ChangeReloaded ChangeKind = "reloaded"
)

// Change is delivered to subscribers after every state change.
// NoteID is empty for filter and reload changes, and for clearing the selection.
type Change struct {
	Kind   ChangeKind `json:"kind"`
	NoteID string     `json:"noteId,omitempty"`
}

// NoteListItem represents a note in a list with a preview instead of full content
type NoteListItem struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Preview    string    `json:"preview"`
	Tags       []string  `json:"tags"`
	Color      string    `json:"color,omitempty"`
	IsFavorite bool      `json:"isFavorite"`
	IsArchived bool      `json:"isArchived"`
	TotalLines int       `json:"totalLines"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ListItem builds the list representation of n with a preview of at most maxLines lines.
func ListItem(n Note, maxLines int) NoteListItem {
	return NoteListItem{
		ID:         n.ID,
		Title:      n.Title,
		Preview:    ContentPreview(n.Content, maxLines),
		Tags:       slices.Clone(n.Tags),
		Color:      n.Color,
		IsFavorite: n.IsFavorite,
		IsArchived: n.IsArchived,
		TotalLines: CountLines(n.Content),
		CreatedAt:  n.CreatedAt,
		UpdatedAt:  n.UpdatedAt,
	}
}
