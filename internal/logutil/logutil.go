// Package logutil keeps credentials and note text out of debug logs.
package logutil

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"
	"unicode/utf8"
)

const redacted = "[REDACTED]"

// sensitiveMarkers are substrings of normalized keys that name credentials.
var sensitiveMarkers = []string{"authorization", "token", "secret", "password", "cookie", "auth"}

// IsSensitiveLogField reports whether a header or JSON key likely names a credential.
func IsSensitiveLogField(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	normalized = strings.NewReplacer("-", "", "_", "").Replace(normalized)
	if strings.HasSuffix(normalized, "key") {
		return true
	}
	for _, marker := range sensitiveMarkers {
		if strings.Contains(normalized, marker) {
			return true
		}
	}
	return false
}

// isNoteText reports whether a JSON key carries note body text, which is
// summarized by length instead of logged.
func isNoteText(key string) bool {
	return strings.EqualFold(key, "content")
}

// FormatHeadersForLog returns stable, redacted header text for logs.
func FormatHeadersForLog(headers http.Header) string {
	if len(headers) == 0 {
		return "{}"
	}

	parts := make([]string, 0, len(headers))
	for _, k := range slices.Sorted(maps.Keys(headers)) {
		values := headers.Values(k)
		if len(values) == 0 {
			parts = append(parts, strings.ToLower(k)+"=<empty>")
			continue
		}
		value := strings.Join(values, ", ")
		if IsSensitiveLogField(k) {
			value = redacted
		}
		parts = append(parts, fmt.Sprintf("%s=%q", strings.ToLower(k), value))
	}
	return strings.Join(parts, "; ")
}

// FormatBodyForLog renders a request body for a debug log line. JSON bodies
// have credentials redacted and note text replaced by its length before the
// result is cut to maxBytes. A JSON body that cannot be parsed is not logged.
// truncated marks a body the caller already cut short.
func FormatBodyForLog(contentType string, body []byte, maxBytes int, truncated bool) string {
	if len(body) == 0 {
		return ""
	}

	text := string(body)
	if strings.Contains(strings.ToLower(contentType), "json") {
		scrubbed, ok := scrubJSON(body)
		if !ok {
			return fmt.Sprintf("[unparsed json, %d bytes]", len(body))
		}
		text = scrubbed
	}

	if maxBytes > 0 && len(text) > maxBytes {
		text = strings.ToValidUTF8(text[:maxBytes], "")
		truncated = true
	}
	if truncated {
		return text + " [truncated]"
	}
	return text
}

func scrubJSON(body []byte) (string, bool) {
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", false
	}
	out, err := json.Marshal(scrubValue(payload))
	if err != nil {
		return "", false
	}
	return string(out), true
}

func scrubValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		for k, child := range typed {
			switch {
			case IsSensitiveLogField(k):
				typed[k] = redacted
			case isNoteText(k):
				if s, ok := child.(string); ok {
					typed[k] = fmt.Sprintf("[%d chars]", utf8.RuneCountInString(s))
					continue
				}
				typed[k] = scrubValue(child)
			default:
				typed[k] = scrubValue(child)
			}
		}
	case []any:
		for i, child := range typed {
			typed[i] = scrubValue(child)
		}
	}
	return v
}

// TruncateForLog returns a single-line preview of at most maxChars runes.
func TruncateForLog(value string, maxChars int) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	normalized := strings.ReplaceAll(trimmed, "\n", "\\n")
	if maxChars <= 0 || utf8.RuneCountInString(normalized) <= maxChars {
		return normalized
	}
	runes := []rune(normalized)
	return string(runes[:maxChars]) + "... [truncated]"
}

// RedactSecret masks all but the last four characters of a configured secret.
func RedactSecret(value string) string {
	if value == "" {
		return "(unset)"
	}
	if len(value) <= 8 {
		return redacted
	}
	return redacted + "..." + value[len(value)-4:]
}
