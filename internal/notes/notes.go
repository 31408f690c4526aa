package notes

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kuitang/pocketnotes/internal/logutil"
	"github.com/kuitang/pocketnotes/internal/obs"
	"github.com/kuitang/pocketnotes/internal/storage"
)

const (
	// DefaultPersistTimeout bounds a single flush of the note collection.
	DefaultPersistTimeout = 5 * time.Second

	// DefaultPreviewLines is the number of content lines shown on list cards.
	DefaultPreviewLines = 2
)

// Storage is the key-value collaborator holding the serialized note collection.
// Load must return (or wrap) storage.ErrNotFound when no record exists yet.
type Storage interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// Store is the single source of truth for notes, the active selection and
// the filter configuration. All operations are serialized by one mutex.
// Note-level mutations flush the collection to Storage before returning;
// flush failures are logged and never interrupt in-memory operation.
type Store struct {
	mu       sync.Mutex
	notes    []Note
	activeID string
	filters  Filters

	clock          Clock
	storage        Storage
	newID          func() string
	persistTimeout time.Duration
	logger         *slog.Logger

	persistErr error
	lastSaved  []byte

	subs    map[int]chan Change
	nextSub int
}

// Option configures a Store.
type Option func(*Store)

// WithStorage sets the persistence collaborator. Without it the store is ephemeral.
func WithStorage(st Storage) Option {
	return func(s *Store) { s.storage = st }
}

// WithClock overrides the wall clock.
func WithClock(c Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithIDGenerator overrides UUID generation for note ids.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithPersistTimeout bounds each flush to storage.
func WithPersistTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.persistTimeout = d
		}
	}
}

// WithLogger overrides the package logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore creates an empty store. Call Load to populate it from storage.
func NewStore(opts ...Option) *Store {
	s := &Store{
		notes:          []Note{},
		filters:        DefaultFilters(),
		clock:          SystemClock,
		newID:          func() string { return uuid.New().String() },
		persistTimeout: DefaultPersistTimeout,
		subs:           make(map[int]chan Change),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = obs.Pkg("notes")
	}
	return s
}

// Load replaces the note collection with the persisted one.
// A missing or malformed record yields an empty collection; only storage
// failures are returned.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	notes, data, err := s.readLocked(ctx)
	if err != nil {
		return err
	}
	s.notes = notes
	s.lastSaved = data
	s.logger.Info("notes_loaded", "count", len(notes))
	return nil
}

// Reload re-reads storage after an external change to the record.
// It is a no-op when the stored bytes equal the last flush.
// A record that disappeared is written back from memory rather than
// emptying the collection. The selection is kept even if it no longer resolves.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.storage == nil {
		return nil
	}
	data, err := s.storage.Load(ctx)
	missing := errors.Is(err, storage.ErrNotFound)
	if err != nil && !missing {
		return fmt.Errorf("failed to reload notes: %w", err)
	}
	if missing {
		if len(s.notes) == 0 {
			return nil
		}
		s.logger.Warn("notes_record_missing", "count", len(s.notes))
		if err := s.saveLocked(ctx); err != nil {
			return fmt.Errorf("failed to restore missing record: %w", err)
		}
		return nil
	}
	if bytes.Equal(data, s.lastSaved) {
		return nil
	}

	notes, data := s.decodeLocked(data, false)
	s.notes = notes
	s.lastSaved = data
	s.logger.Info("notes_reloaded", "count", len(notes))
	s.emitLocked(Change{Kind: ChangeReloaded})
	return nil
}

func (s *Store) readLocked(ctx context.Context) ([]Note, []byte, error) {
	if s.storage == nil {
		return []Note{}, nil, nil
	}
	data, err := s.storage.Load(ctx)
	missing := errors.Is(err, storage.ErrNotFound)
	if err != nil && !missing {
		return nil, nil, fmt.Errorf("failed to load notes: %w", err)
	}
	notes, data := s.decodeLocked(data, missing)
	return notes, data, nil
}

// decodeLocked turns a loaded blob into notes; absent and malformed records
// both yield an empty collection.
func (s *Store) decodeLocked(data []byte, missing bool) ([]Note, []byte) {
	if missing {
		return []Note{}, nil
	}
	notes, err := Decode(data)
	if err != nil {
		s.logger.Warn("notes_record_malformed", "error", err, "bytes", len(data))
		return []Note{}, nil
	}
	return notes, data
}

// Flush writes the note collection to storage and returns the error, if any.
// Mutations flush on their own; Flush exists for shutdown and explicit saves.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx)
}

// PersistErr returns the error of the most recent flush, or nil if it succeeded.
func (s *Store) PersistErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistErr
}

func (s *Store) saveLocked(ctx context.Context) error {
	if s.storage == nil {
		return nil
	}
	data, err := Encode(s.notes)
	if err == nil {
		err = s.storage.Save(ctx, data)
	}
	s.persistErr = err
	if err != nil {
		s.logger.Warn("notes_persist_failed", "error", err, "count", len(s.notes))
		return err
	}
	s.lastSaved = data
	return nil
}

// persistLocked is the best-effort flush run after every note mutation.
func (s *Store) persistLocked() {
	ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
	defer cancel()
	_ = s.saveLocked(ctx)
}

func (s *Store) indexLocked(id string) int {
	return slices.IndexFunc(s.notes, func(n Note) bool { return n.ID == id })
}

// Create inserts a new note at the front of the collection and selects it.
func (s *Store) Create(in NoteInput) Note {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	for s.indexLocked(id) >= 0 {
		id = s.newID()
	}

	now := stamp(s.clock)
	note := Note{
		ID:        id,
		Title:     in.Title,
		Content:   in.Content,
		Tags:      NormalizeTags(in.Tags),
		Color:     in.Color,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.notes = slices.Insert(s.notes, 0, note)
	s.activeID = id

	s.logger.Debug("note_created", "note_id", id, "title", logutil.TruncateForLog(note.Title, 64))
	s.persistLocked()
	s.emitLocked(Change{Kind: ChangeCreated, NoteID: id})
	return note.clone()
}

// Update merges patch into the note with the given id and refreshes UpdatedAt.
// It reports false, without mutating anything, when the id is unknown.
func (s *Store) Update(id string, patch NotePatch) (Note, bool) {
	return s.mutate(id, func(n *Note) {
		if patch.Title != nil {
			n.Title = *patch.Title
		}
		if patch.Content != nil {
			n.Content = *patch.Content
		}
		if patch.Tags != nil {
			n.Tags = NormalizeTags(*patch.Tags)
		}
		if patch.Color != nil {
			n.Color = *patch.Color
		}
	})
}

// ToggleFavorite flips the favorite flag and refreshes UpdatedAt.
func (s *Store) ToggleFavorite(id string) (Note, bool) {
	return s.mutate(id, func(n *Note) { n.IsFavorite = !n.IsFavorite })
}

// ToggleArchive flips the archived flag and refreshes UpdatedAt.
func (s *Store) ToggleArchive(id string) (Note, bool) {
	return s.mutate(id, func(n *Note) { n.IsArchived = !n.IsArchived })
}

func (s *Store) mutate(id string, fn func(*Note)) (Note, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return Note{}, false
	}
	n := &s.notes[i]
	fn(n)
	n.UpdatedAt = nextStamp(s.clock, n.UpdatedAt)

	s.logger.Debug("note_updated", "note_id", id)
	s.persistLocked()
	s.emitLocked(Change{Kind: ChangeUpdated, NoteID: id})
	return n.clone(), true
}

// Delete removes the note and clears the selection if it pointed at it.
// It reports false when the id is unknown.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return false
	}
	s.notes = slices.Delete(s.notes, i, i+1)
	if s.activeID == id {
		s.activeID = ""
	}

	s.logger.Debug("note_deleted", "note_id", id)
	s.persistLocked()
	s.emitLocked(Change{Kind: ChangeDeleted, NoteID: id})
	return true
}

// SetActive sets the selection unconditionally. An empty id clears it.
// The id is not validated; Active reports false for a dangling selection.
func (s *Store) SetActive(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeID == id {
		return
	}
	s.activeID = id
	s.emitLocked(Change{Kind: ChangeActive, NoteID: id})
}

// ActiveID returns the raw selection, which may not resolve to a note.
func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Active returns the selected note, or false if unset or dangling.
func (s *Store) Active() (Note, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeID == "" {
		return Note{}, false
	}
	i := s.indexLocked(s.activeID)
	if i < 0 {
		return Note{}, false
	}
	return s.notes[i].clone(), true
}

// Get returns the note with the given id.
func (s *Store) Get(id string) (Note, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return Note{}, false
	}
	return s.notes[i].clone(), true
}

// Notes returns the whole collection in store order (newest created first).
func (s *Store) Notes() []Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Note, 0, len(s.notes))
	for _, n := range s.notes {
		out = append(out, n.clone())
	}
	return out
}

// Len returns the number of notes.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notes)
}

// UpdateFilters shallow-merges patch into the configuration and returns the result.
// Values are not validated.
func (s *Store) UpdateFilters(patch FilterPatch) Filters {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = patch.apply(s.filters)
	s.emitLocked(Change{Kind: ChangeFilters})
	return s.filters.clone()
}

// Filters returns the current configuration.
func (s *Store) Filters() Filters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters.clone()
}

// Filtered computes the visible, ordered notes for the current configuration.
func (s *Store) Filtered() []Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Apply(s.notes, s.filters)
}

// AllTags returns every distinct tag across all notes, sorted.
func (s *Store) AllTags() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := make(map[string]struct{})
	for _, n := range s.notes {
		for _, tag := range n.Tags {
			set[tag] = struct{}{}
		}
	}
	tags := make([]string, 0, len(set))
	for tag := range set {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Subscribe registers an observer. Every state change is sent on the returned
// channel without blocking; when the buffer is full the change is dropped for
// that subscriber. The cancel function unregisters and closes the channel.
func (s *Store) Subscribe(buffer int) (<-chan Change, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Change, buffer)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (s *Store) emitLocked(c Change) {
	for _, ch := range s.subs {
		select {
		case ch <- c:
		default:
		}
	}
}
