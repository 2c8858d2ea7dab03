package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mmynk/posclient/internal/api"
	"github.com/mmynk/posclient/internal/auth"
	"github.com/mmynk/posclient/internal/metrics"
	"github.com/mmynk/posclient/internal/models"
	"github.com/mmynk/posclient/internal/storage"
)

// SessionConfig wires a SessionStore.
type SessionConfig struct {
	Backend Backend
	Scopes  *storage.Scopes

	// IdleTimeout defaults to DefaultIdleTimeout.
	IdleTimeout time.Duration

	// Notifier and Redirector are used on idle logout. Both are optional.
	Notifier   Notifier
	Redirector Redirector

	Metrics *metrics.Metrics
	Logger  *slog.Logger

	// AfterFunc and Now replace the clock in tests.
	AfterFunc AfterFunc
	Now       func() time.Time
}

// SessionStore owns authentication state: the token, the signed-in user and
// the persistence mode, mirrored into exactly one storage scope.
type SessionStore struct {
	backend    Backend
	scopes     *storage.Scopes
	notifier   Notifier
	redirector Redirector
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time
	watchdog   *IdleWatchdog

	mu    sync.RWMutex
	token string
	user  *models.User
	mode  storage.Mode
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string          `json:"access_token"`
	Token       string          `json:"token"`
	User        json.RawMessage `json:"user"`
}

// NewSessionStore creates the store and restores any persisted session,
// durable scope first.
func NewSessionStore(ctx context.Context, cfg SessionConfig) (*SessionStore, error) {
	s := &SessionStore{
		backend:    cfg.Backend,
		scopes:     cfg.Scopes,
		notifier:   cfg.Notifier,
		redirector: cfg.Redirector,
		metrics:    cfg.Metrics,
		logger:     loggerOr(cfg.Logger),
		now:        cfg.Now,
	}
	if s.notifier == nil {
		s.notifier = LogNotifier{Logger: s.logger}
	}
	if s.redirector == nil {
		s.redirector = noRedirect{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.watchdog = NewIdleWatchdog(cfg.IdleTimeout, s.idleEligible, s.idleLogout, cfg.AfterFunc)

	if err := s.restore(ctx); err != nil {
		return nil, err
	}
	s.watchdog.Touch()
	return s, nil
}

func (s *SessionStore) restore(ctx context.Context) error {
	rec, mode, ok, err := s.scopes.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore session: %w", err)
	}
	if !ok {
		return nil
	}
	if auth.Expired(rec.Token, s.now()) {
		s.logger.Info("Discarding expired persisted session", "mode", mode)
		if err := s.scopes.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear expired session: %w", err)
		}
		return nil
	}

	var user *models.User
	if rec.User != "" {
		var u models.User
		if err := json.Unmarshal([]byte(rec.User), &u); err != nil {
			s.logger.Warn("Persisted user record is unreadable", "mode", mode, "error", err)
		} else {
			user = &u
		}
	}

	s.mu.Lock()
	s.token, s.user, s.mode = rec.Token, user, mode
	s.mu.Unlock()
	s.logger.Info("Session restored", "mode", mode, "authenticated", user != nil)
	return nil
}

// Login authenticates against the backend. rememberMe only decides where the
// session is persisted; it is never sent. Backend errors are returned unchanged.
func (s *SessionStore) Login(ctx context.Context, email, password string, rememberMe bool) error {
	body, err := s.backend.PostJSON(ctx, "/login", credentials{Email: email, Password: password})
	if err != nil {
		return err
	}

	var resp loginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to decode login response: %w", err)
	}
	token := resp.AccessToken
	if token == "" {
		token = resp.Token
	}
	if token == "" {
		return ErrNoToken
	}
	user, err := api.UnwrapRecord[models.User](resp.User)
	if err != nil {
		return fmt.Errorf("login response user: %w", err)
	}
	userJSON, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}

	mode := storage.ModeFor(rememberMe)
	s.mu.Lock()
	if err := s.scopes.Save(ctx, mode, storage.Record{Token: token, User: string(userJSON)}); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to persist session: %w", err)
	}
	s.token, s.user, s.mode = token, &user, mode
	s.mu.Unlock()

	s.watchdog.Touch()
	s.logger.Info("User logged in", "user_id", user.ID, "role", user.Role, "mode", mode)
	return nil
}

// Logout ends the session. Unless auto is set, the backend is told first on a
// best-effort basis. Local state and both scopes are always cleared. An auto
// logout (idle timeout) also notifies and redirects to the login screen.
func (s *SessionStore) Logout(ctx context.Context, auto bool) {
	s.mu.RLock()
	hasToken := s.token != ""
	s.mu.RUnlock()

	if hasToken && !auto {
		if _, err := s.backend.PostJSON(ctx, "/logout", struct{}{}); err != nil {
			s.logger.Warn("Backend logout failed, clearing local session anyway", "error", err)
		}
	}

	s.mu.Lock()
	s.token, s.user, s.mode = "", nil, storage.ModeEphemeral
	if err := s.scopes.Clear(ctx); err != nil {
		s.logger.Error("Failed to clear persisted session", "error", err)
	}
	s.mu.Unlock()
	s.watchdog.Disarm()

	if auto {
		s.metrics.IdleLogout()
		s.logger.Info("Session closed after inactivity")
		s.notifier.Notify(LevelWarning, "Your session was closed after a period of inactivity.")
		s.redirector.RedirectToLogin()
		return
	}
	s.logger.Info("User logged out")
}

// FetchUser refreshes the signed-in user from GET /user-profile. It does
// nothing without a token. Any failure logs the session out.
func (s *SessionStore) FetchUser(ctx context.Context) error {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()
	if token == "" {
		return nil
	}

	body, err := s.backend.GetJSON(ctx, "/user-profile")
	var user models.User
	if err == nil {
		user, err = api.UnwrapRecord[models.User](body, "user", "data")
	}
	if err != nil {
		s.logger.Error("Error fetching user", "error", err)
		s.Logout(ctx, false)
		return err
	}

	if err := s.setUser(ctx, token, &user); err != nil && !errors.Is(err, ErrNotAuthenticated) {
		return err
	}
	return nil
}

// SetUser replaces the cached user, e.g. with a record returned by a
// profile update, and persists it into the current scope.
func (s *SessionStore) SetUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()
	return s.setUser(ctx, token, user)
}

// setUser applies user only if the session still holds token, so a logout
// that raced the request is not undone.
func (s *SessionStore) setUser(ctx context.Context, token string, user *models.User) error {
	userJSON, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if token == "" || s.token != token {
		return ErrNotAuthenticated
	}
	u := *user
	s.user = &u
	if err := s.scopes.SaveUser(ctx, s.mode, string(userJSON)); err != nil {
		return fmt.Errorf("failed to persist user: %w", err)
	}
	return nil
}

// Touch reports user input to the idle watchdog.
func (s *SessionStore) Touch() {
	s.watchdog.Touch()
}

// Close stops the idle watchdog.
func (s *SessionStore) Close() {
	s.watchdog.Stop()
}

// Token returns the current bearer token, or "".
func (s *SessionStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns a copy of the signed-in user, or nil.
func (s *SessionStore) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Mode returns the persistence mode of the current session.
func (s *SessionStore) Mode() storage.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// IsAuthenticated reports whether both a token and a user are present.
func (s *SessionStore) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != "" && s.user != nil
}

// IsAdmin reports whether the signed-in user is an administrator.
func (s *SessionStore) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.IsAdmin()
}

// HasRole reports whether the signed-in user holds one of roles.
func (s *SessionStore) HasRole(roles ...models.Role) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" || s.user == nil {
		return false
	}
	for _, r := range roles {
		if s.user.Role == r {
			return true
		}
	}
	return false
}

func (s *SessionStore) idleEligible() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != "" && s.user != nil && s.mode == storage.ModeEphemeral
}

func (s *SessionStore) idleLogout() {
	s.Logout(context.Background(), true)
}
