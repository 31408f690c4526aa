package notes

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// DefaultRecordName is the storage key holding the serialized note collection.
const DefaultRecordName = "notes-storage"

// recordVersion is written into every envelope. Decode accepts any version.
const recordVersion = 0

// ErrMalformedRecord is returned by Decode when the blob is not a note collection.
var ErrMalformedRecord = errors.New("malformed notes record")

// record is the persisted envelope: {"state":{"notes":[...]},"version":0}.
// Only the note collection is persisted; selection and filters are session-local.
type record struct {
	State   recordState `json:"state"`
	Version int         `json:"version"`
}

type recordState struct {
	Notes []Note `json:"notes"`
}

// Encode serializes the note collection into the persisted record layout.
func Encode(notes []Note) ([]byte, error) {
	rec := record{Version: recordVersion}
	rec.State.Notes = make([]Note, 0, len(notes))
	for _, n := range notes {
		rec.State.Notes = append(rec.State.Notes, n.clone())
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode notes: %w", err)
	}
	return data, nil
}

// Decode parses a persisted record back into a note collection.
// Both the envelope layout and a bare JSON array of notes are accepted.
// Notes with an empty or repeated id are dropped so id uniqueness holds;
// tags are normalized.
func Decode(data []byte) ([]Note, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrMalformedRecord)
	}

	var raw []Note
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
	case '{':
		var rec record
		if err := json.Unmarshal(trimmed, &rec); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		raw = rec.State.Notes
	default:
		return nil, fmt.Errorf("%w: unexpected leading byte %q", ErrMalformedRecord, trimmed[0])
	}

	seen := make(map[string]struct{}, len(raw))
	notes := make([]Note, 0, len(raw))
	for _, n := range raw {
		if n.ID == "" {
			continue
		}
		if _, dup := seen[n.ID]; dup {
			continue
		}
		seen[n.ID] = struct{}{}
		n.Tags = NormalizeTags(n.Tags)
		notes = append(notes, n)
	}
	return notes, nil
}
