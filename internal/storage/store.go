// Package storage provides the client-side key-value scopes that persist a session.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// Keys written by the session into whichever scope is active.
const (
	KeyToken = "token"
	KeyUser  = "user"
)

// KV is a single key-value storage scope.
// This abstraction allows swapping backends (sqlite, memory, ...)
// without changing the session code.
type KV interface {
	// Get returns the value for key. ok is false if the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the scope.
	Close() error
}

// Mode selects the scope a session is persisted in.
type Mode int

const (
	// ModeEphemeral keeps the session for the lifetime of the process only.
	ModeEphemeral Mode = iota
	// ModeDurable survives restarts ("keep me signed in").
	ModeDurable
)

// ModeFor maps the login form's remember-me flag to a Mode.
func ModeFor(rememberMe bool) Mode {
	if rememberMe {
		return ModeDurable
	}
	return ModeEphemeral
}

func (m Mode) String() string {
	if m == ModeDurable {
		return "durable"
	}
	return "ephemeral"
}

// Record is what a session persists: the token and the serialized user.
type Record struct {
	Token string
	User  string
}

// Scopes pairs the durable and ephemeral scopes and keeps them mutually
// exclusive: a record lives in at most one of them at any time.
type Scopes struct {
	durable   KV
	ephemeral KV
}

// NewScopes wires the two scopes.
func NewScopes(durable, ephemeral KV) *Scopes {
	return &Scopes{durable: durable, ephemeral: ephemeral}
}

// For returns the scope backing mode.
func (s *Scopes) For(mode Mode) KV {
	if mode == ModeDurable {
		return s.durable
	}
	return s.ephemeral
}

// other returns the scope not backing mode.
func (s *Scopes) other(mode Mode) KV {
	if mode == ModeDurable {
		return s.ephemeral
	}
	return s.durable
}

// Save writes rec into the scope for mode, clearing the other scope first
// so the record is never present in both. A failed save leaves the target
// scope empty rather than holding half a record.
func (s *Scopes) Save(ctx context.Context, mode Mode, rec Record) error {
	if err := clearKV(ctx, s.other(mode)); err != nil {
		return fmt.Errorf("failed to clear %s scope: %w", otherMode(mode), err)
	}
	kv := s.For(mode)
	if err := kv.Set(ctx, KeyToken, rec.Token); err != nil {
		return errors.Join(fmt.Errorf("failed to write token to %s scope: %w", mode, err), clearKV(ctx, kv))
	}
	if err := kv.Set(ctx, KeyUser, rec.User); err != nil {
		return errors.Join(fmt.Errorf("failed to write user to %s scope: %w", mode, err), clearKV(ctx, kv))
	}
	return nil
}

// SaveUser refreshes only the serialized user in the scope for mode.
func (s *Scopes) SaveUser(ctx context.Context, mode Mode, user string) error {
	if err := s.For(mode).Set(ctx, KeyUser, user); err != nil {
		return fmt.Errorf("failed to write user to %s scope: %w", mode, err)
	}
	return nil
}

// Load returns the persisted record, checking the durable scope first.
// ok is false when neither scope holds a token.
func (s *Scopes) Load(ctx context.Context) (rec Record, mode Mode, ok bool, err error) {
	for _, m := range []Mode{ModeDurable, ModeEphemeral} {
		kv := s.For(m)
		token, found, err := kv.Get(ctx, KeyToken)
		if err != nil {
			return Record{}, m, false, fmt.Errorf("failed to read %s scope: %w", m, err)
		}
		if !found || token == "" {
			continue
		}
		user, _, err := kv.Get(ctx, KeyUser)
		if err != nil {
			return Record{}, m, false, fmt.Errorf("failed to read %s scope: %w", m, err)
		}
		return Record{Token: token, User: user}, m, true, nil
	}
	return Record{}, ModeEphemeral, false, nil
}

// Clear empties both scopes.
func (s *Scopes) Clear(ctx context.Context) error {
	return errors.Join(clearKV(ctx, s.durable), clearKV(ctx, s.ephemeral))
}

// Token returns the persisted bearer token, durable scope first.
// It satisfies the HTTP client's token source.
func (s *Scopes) Token(ctx context.Context) string {
	for _, m := range []Mode{ModeDurable, ModeEphemeral} {
		if token, ok, err := s.For(m).Get(ctx, KeyToken); err == nil && ok && token != "" {
			return token
		}
	}
	return ""
}

// Close closes both scopes.
func (s *Scopes) Close() error {
	return errors.Join(s.durable.Close(), s.ephemeral.Close())
}

func clearKV(ctx context.Context, kv KV) error {
	return errors.Join(kv.Delete(ctx, KeyToken), kv.Delete(ctx, KeyUser))
}

func otherMode(m Mode) Mode {
	if m == ModeDurable {
		return ModeEphemeral
	}
	return ModeDurable
}
