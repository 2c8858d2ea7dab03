package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Error is a non-2xx backend response.
type Error struct {
	// StatusCode is the HTTP status.
	StatusCode int

	// Message is the backend's "message" field, or the status text.
	Message string

	// Fields holds per-field validation errors ("errors" in a 422 body).
	Fields map[string][]string
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], "; "))
	}
	return fmt.Sprintf("backend returned %d: %s (%s)", e.StatusCode, e.Message, strings.Join(parts, ", "))
}

func newError(status int, body []byte) *Error {
	e := &Error{StatusCode: status}
	var payload struct {
		Message string              `json:"message"`
		Error   string              `json:"error"`
		Errors  map[string][]string `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		e.Message = payload.Message
		if e.Message == "" {
			e.Message = payload.Error
		}
		e.Fields = payload.Errors
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

// StatusCode extracts the HTTP status from err, or 0 if err is not a backend error.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}
