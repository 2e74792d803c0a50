package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error is any non-2xx API response, normalized to one human-readable
// message. Status keeps the HTTP code so callers can recognize auth failures.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

// IsAuthError reports whether err is an API 401, meaning the token is
// missing, invalid, or expired.
func IsAuthError(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusUnauthorized
	}
	return false
}

func newError(status int, body []byte) *Error {
	return &Error{Status: status, Message: errorMessage(status, body)}
}

// errorMessage surfaces the backend's own detail or message string verbatim
// and falls back to the HTTP status line when the body is not parseable.
func errorMessage(status int, body []byte) string {
	var parsed struct {
		Detail  json.RawMessage `json:"detail"`
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if text := rawText(parsed.Detail); text != "" {
			return text
		}
		if text := rawText(parsed.Message); text != "" {
			return text
		}
	}
	return fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status))
}

func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}

	// Structured detail, e.g. a validation error list, is surfaced compact.
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err == nil {
		return buf.String()
	}
	return string(raw)
}
