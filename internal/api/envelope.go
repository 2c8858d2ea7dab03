package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNoRecord means a response body held none of the accepted shapes.
var ErrNoRecord = errors.New("response carried no record")

// The backend wraps records inconsistently: {"user": {...}}, {"data": {...}}
// or the bare record. These helpers are the only place that knows.

// UnwrapRecord decodes the value under the first of keys that is present and
// non-null, falling back to the whole body.
func UnwrapRecord[T any](body []byte, keys ...string) (T, error) {
	var zero T
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return zero, ErrNoRecord
	}

	raw := body
	if body[0] == '{' && len(keys) > 0 {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(body, &obj); err != nil {
			return zero, fmt.Errorf("failed to decode envelope: %w", err)
		}
		for _, key := range keys {
			if v, ok := obj[key]; ok && present(v) {
				raw = v
				break
			}
		}
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, fmt.Errorf("failed to decode record: %w", err)
	}
	return out, nil
}

// UnwrapList decodes {"data": [...]} or a bare array.
func UnwrapList[T any](body []byte) ([]T, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, ErrNoRecord
	}

	raw := body
	if body[0] == '{' {
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("failed to decode envelope: %w", err)
		}
		if !present(env.Data) {
			return nil, ErrNoRecord
		}
		raw = env.Data
	}

	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode list: %w", err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func present(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) > 0 && !bytes.Equal(v, []byte("null")) && !bytes.Equal(v, []byte("false"))
}
