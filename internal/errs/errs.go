// Package errs defines the coded errors the JSON API and MCP tools return.
// Anything without a code is reported as internal with a fixed message, so
// storage paths and driver text stay in the logs.
package errs

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Code is an application error code, sent to clients as-is.
type Code string

const (
	InvalidArgument   Code = "invalid_argument"
	NotFound          Code = "not_found"
	ResourceExhausted Code = "resource_exhausted"
	Unavailable       Code = "unavailable"
	Internal          Code = "internal"
)

const internalMessage = "internal error"

var statusByCode = map[Code]int{
	InvalidArgument:   http.StatusBadRequest,
	NotFound:          http.StatusNotFound,
	ResourceExhausted: http.StatusTooManyRequests,
	Unavailable:       http.StatusServiceUnavailable,
	Internal:          http.StatusInternalServerError,
}

// Codes lists every code, client mistakes first.
var Codes = []Code{InvalidArgument, NotFound, ResourceExhausted, Unavailable, Internal}

// Error carries a code, the message shown to clients and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches code and a client-facing message to cause.
func Wrap(code Code, message string, cause error) error {
	return &Error{Code: code, Message: message, Err: cause}
}

// NoteNotFound is the error every surface returns for an unknown note id.
func NoteNotFound(id string) error {
	return Newf(NotFound, "note %q not found", id)
}

func coded(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e, true
	}
	return nil, false
}

// CodeOf returns the code of the first coded error in err's chain, or Internal.
func CodeOf(err error) Code {
	if e, ok := coded(err); ok && e.Code != "" {
		return e.Code
	}
	return Internal
}

// Is reports whether err carries code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// MessageOf returns the client-facing message for err.
func MessageOf(err error) string {
	if err == nil {
		return string(Internal)
	}
	if e, ok := coded(err); ok && e.Message != "" {
		return e.Message
	}
	return internalMessage
}

// HTTPStatus maps a code to its HTTP status; unknown codes are 500.
func HTTPStatus(code Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Body is the JSON error payload: {"code": "...", "error": "..."}.
type Body struct {
	Code  Code   `json:"code"`
	Error string `json:"error"`
}

func BodyOf(err error) Body {
	return Body{Code: CodeOf(err), Error: MessageOf(err)}
}

// WriteHTTP writes err as a JSON error response with the mapped status.
func WriteHTTP(w http.ResponseWriter, err error) {
	body := BodyOf(err)
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(HTTPStatus(body.Code))
	_ = json.NewEncoder(w).Encode(body)
}
