package errs

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"pgregory.net/rapid"
)

func messageGenerator() *rapid.Generator[string] {
	return rapid.StringMatching(`[a-zA-Z0-9 _:\-]{1,80}`)
}

func testCodeOf_RoundtripForTypedErrors(t *rapid.T) {
	code := rapid.SampledFrom(Codes).Draw(t, "code")
	message := messageGenerator().Draw(t, "message")

	err := New(code, message)
	if got := CodeOf(err); got != code {
		t.Fatalf("CodeOf(New) mismatch: got=%q want=%q", got, code)
	}
	if got := MessageOf(err); got != message {
		t.Fatalf("MessageOf(New) mismatch: got=%q want=%q", got, message)
	}
}

func TestCodeOf_RoundtripForTypedErrors(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testCodeOf_RoundtripForTypedErrors)
}

func testCodeOfAndMessageOf_WrappedTypedError(t *rapid.T) {
	code := rapid.SampledFrom(Codes).Draw(t, "code")
	message := messageGenerator().Draw(t, "message")
	cause := errors.New(messageGenerator().Draw(t, "cause"))

	err := Wrap(code, message, cause)
	wrapped := fmt.Errorf("outer: %w", err)

	if got := CodeOf(wrapped); got != code {
		t.Fatalf("CodeOf(wrapped) mismatch: got=%q want=%q", got, code)
	}
	if got := MessageOf(wrapped); got != message {
		t.Fatalf("MessageOf(wrapped) mismatch: got=%q want=%q", got, message)
	}
	if !errors.Is(wrapped, cause) {
		t.Fatalf("cause lost through Wrap")
	}
}

func TestCodeOfAndMessageOf_WrappedTypedError(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testCodeOfAndMessageOf_WrappedTypedError)
}

func TestUntypedAndNilFallbacks(t *testing.T) {
	t.Parallel()
	raw := errors.New("open /var/lib/notes/db: permission denied")
	if CodeOf(raw) != Internal || MessageOf(raw) != "internal error" {
		t.Fatalf("untyped error leaked: %q %q", CodeOf(raw), MessageOf(raw))
	}
	if CodeOf(nil) != Internal || MessageOf(nil) != string(Internal) {
		t.Fatalf("nil fallbacks wrong")
	}
	if got := CodeOf(&Error{Message: "no code"}); got != Internal {
		t.Fatalf("empty code = %q, want internal", got)
	}
}

func TestHTTPStatus_Mapping(t *testing.T) {
	t.Parallel()
	want := map[Code]int{
		InvalidArgument:   http.StatusBadRequest,
		NotFound:          http.StatusNotFound,
		ResourceExhausted: http.StatusTooManyRequests,
		Unavailable:       http.StatusServiceUnavailable,
		Internal:          http.StatusInternalServerError,
		Code("bogus"):     http.StatusInternalServerError,
	}
	for code, status := range want {
		if got := HTTPStatus(code); got != status {
			t.Errorf("HTTPStatus(%q) = %d, want %d", code, got, status)
		}
	}
}

func TestNoteNotFound(t *testing.T) {
	err := NoteNotFound("abc")
	if CodeOf(err) != NotFound || MessageOf(err) != `note "abc" not found` {
		t.Fatalf("NoteNotFound = %q %q", CodeOf(err), MessageOf(err))
	}
}

func TestWriteHTTP(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteHTTP(rec, fmt.Errorf("lookup: %w", NoteNotFound("n1")))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}
	var body Body
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Code != NotFound || body.Error != `note "n1" not found` {
		t.Fatalf("body = %+v", body)
	}
}

func TestWriteHTTP_HidesUntypedErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteHTTP(rec, errors.New("open /var/lib/pocketnotes/notes.json: permission denied"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body Body
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Code != Internal || body.Error != "internal error" {
		t.Fatalf("body = %+v", body)
	}
}

func TestIs(t *testing.T) {
	t.Parallel()
	err := fmt.Errorf("update: %w", NoteNotFound("n2"))
	if !Is(err, NotFound) || Is(err, InvalidArgument) {
		t.Fatalf("Is mismatched for %v", err)
	}
	if Is(nil, Internal) {
		t.Fatalf("nil error reported as internal")
	}
	if !Is(errors.New("disk full"), Internal) {
		t.Fatalf("untyped error should be internal")
	}
}
