package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mmynk/posclient/internal/api"
	"github.com/mmynk/posclient/internal/auth"
	"github.com/mmynk/posclient/internal/backendtest"
	"github.com/mmynk/posclient/internal/models"
	"github.com/mmynk/posclient/internal/storage"
	"github.com/mmynk/posclient/internal/storage/memory"
	"github.com/mmynk/posclient/internal/store"
)

func TestLoginPersistsIntoOneScope(t *testing.T) {
	tests := []struct {
		name       string
		rememberMe bool
		wantMode   storage.Mode
	}{
		{name: "remember me", rememberMe: true, wantMode: storage.ModeDurable},
		{name: "session only", rememberMe: false, wantMode: storage.ModeEphemeral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			s := e.login(t, backendtest.WaiterEmail, tt.rememberMe)

			if !s.IsAuthenticated() {
				t.Fatal("expected authenticated session")
			}
			if s.Mode() != tt.wantMode {
				t.Errorf("mode = %v, want %v", s.Mode(), tt.wantMode)
			}

			populated, empty := e.durable, e.ephemeral
			if !tt.rememberMe {
				populated, empty = e.ephemeral, e.durable
			}
			if got := get(t, populated, storage.KeyToken); got != s.Token() {
				t.Errorf("persisted token = %q, want %q", got, s.Token())
			}
			var persisted models.User
			if err := json.Unmarshal([]byte(get(t, populated, storage.KeyUser)), &persisted); err != nil {
				t.Fatalf("persisted user is not JSON: %v", err)
			}
			if persisted.Email != backendtest.WaiterEmail {
				t.Errorf("persisted user = %q", persisted.Email)
			}
			if get(t, empty, storage.KeyToken) != "" || get(t, empty, storage.KeyUser) != "" {
				t.Error("other scope must stay empty")
			}
		})
	}
}

func TestLoginSwitchingModeClearsPreviousScope(t *testing.T) {
	e := newEnv(t)
	s := e.login(t, backendtest.WaiterEmail, true)
	if err := s.Login(context.Background(), backendtest.WaiterEmail, backendtest.Password, false); err != nil {
		t.Fatalf("second Login failed: %v", err)
	}

	if get(t, e.durable, storage.KeyToken) != "" {
		t.Error("durable scope still holds a token")
	}
	if get(t, e.ephemeral, storage.KeyToken) == "" {
		t.Error("ephemeral scope has no token")
	}
}

func TestLoginFailurePropagatesBackendError(t *testing.T) {
	e := newEnv(t)
	s := e.session(t)

	err := s.Login(context.Background(), backendtest.WaiterEmail, "wrong-password", true)
	if api.StatusCode(err) != http.StatusUnauthorized {
		t.Fatalf("err = %v, want 401", err)
	}
	if s.IsAuthenticated() {
		t.Error("failed login must not authenticate")
	}
	if get(t, e.durable, storage.KeyToken) != "" || get(t, e.ephemeral, storage.KeyToken) != "" {
		t.Error("failed login must not persist anything")
	}
}

// userWriteFails is an ephemeral scope whose disk fills up after the token.
type userWriteFails struct {
	*memory.Store
}

func (u userWriteFails) Set(ctx context.Context, key, value string) error {
	if key == storage.KeyUser {
		return errors.New("disk full")
	}
	return u.Store.Set(ctx, key, value)
}

func TestLoginPersistFailureLeavesNoToken(t *testing.T) {
	srv := backendtest.New(t)
	scopes := storage.NewScopes(memory.New(), userWriteFails{memory.New()})
	client, err := api.New(srv.APIURL(), api.WithTokenSource(scopes))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	s, err := store.NewSessionStore(context.Background(), store.SessionConfig{Backend: client, Scopes: scopes})
	if err != nil {
		t.Fatalf("NewSessionStore failed: %v", err)
	}
	t.Cleanup(s.Close)

	if err := s.Login(context.Background(), backendtest.WaiterEmail, backendtest.Password, false); err == nil {
		t.Fatal("expected persist error")
	}
	if s.IsAuthenticated() || s.Token() != "" {
		t.Error("session authenticated after failed persist")
	}
	if got := scopes.Token(context.Background()); got != "" {
		t.Errorf("token source still returns %q", got)
	}
}

func TestLogout(t *testing.T) {
	t.Run("manual logout tells the backend", func(t *testing.T) {
		e := newEnv(t)
		s := e.login(t, backendtest.AdminEmail, true)
		token := s.Token()

		s.Logout(context.Background(), false)

		if s.IsAuthenticated() || s.Token() != "" || s.User() != nil {
			t.Error("session state not cleared")
		}
		if e.srv.Calls(http.MethodPost, "/logout") != 1 {
			t.Error("expected one backend logout")
		}
		if !e.srv.Revoked(token) {
			t.Error("backend did not revoke the token")
		}
		if get(t, e.durable, storage.KeyToken) != "" || get(t, e.ephemeral, storage.KeyToken) != "" {
			t.Error("scopes not cleared")
		}
		if e.redirects.count() != 0 {
			t.Error("manual logout must not redirect")
		}
	})

	t.Run("backend failure does not block local cleanup", func(t *testing.T) {
		e := newEnv(t)
		s := e.login(t, backendtest.AdminEmail, false)
		e.srv.Fail(http.MethodPost, "/logout", http.StatusInternalServerError)

		s.Logout(context.Background(), false)

		if s.IsAuthenticated() {
			t.Error("session still authenticated")
		}
		if get(t, e.ephemeral, storage.KeyToken) != "" {
			t.Error("ephemeral scope not cleared")
		}
	})

	t.Run("auto logout skips the backend and redirects", func(t *testing.T) {
		e := newEnv(t)
		s := e.login(t, backendtest.WaiterEmail, false)

		s.Logout(context.Background(), true)

		if e.srv.Calls(http.MethodPost, "/logout") != 0 {
			t.Error("auto logout must not call the backend")
		}
		if e.redirects.count() != 1 {
			t.Errorf("redirects = %d, want 1", e.redirects.count())
		}
		levels := e.notes.levels()
		if len(levels) != 1 || levels[0] != store.LevelWarning {
			t.Errorf("notifications = %v, want one warning", levels)
		}
	})
}

func TestIdleLogoutFiresOnceForEphemeralSession(t *testing.T) {
	e := newEnv(t)
	s := e.login(t, backendtest.WaiterEmail, false)

	if n := e.clock.Advance(store.DefaultIdleTimeout - time.Millisecond); n != 0 {
		t.Fatalf("%d timers fired before the threshold", n)
	}
	if !s.IsAuthenticated() {
		t.Fatal("logged out before the threshold")
	}

	e.clock.Advance(store.DefaultIdleTimeout)
	if s.IsAuthenticated() {
		t.Fatal("expected idle logout")
	}

	e.clock.Advance(24 * time.Hour)
	if got := e.redirects.count(); got != 1 {
		t.Errorf("redirects = %d, want exactly 1", got)
	}
	if got := testutil.ToFloat64(e.metrics.IdleLogouts); got != 1 {
		t.Errorf("idle logouts = %v, want 1", got)
	}
	if e.srv.Calls(http.MethodPost, "/logout") != 0 {
		t.Error("idle logout must not call the backend")
	}
}

func TestIdleLogoutNeverFiresForDurableSession(t *testing.T) {
	e := newEnv(t)
	s := e.login(t, backendtest.WaiterEmail, true)

	for i := 0; i < 5; i++ {
		e.clock.Advance(24 * time.Hour)
		s.Touch()
	}
	e.clock.Advance(365 * 24 * time.Hour)

	if !s.IsAuthenticated() {
		t.Fatal("durable session was logged out by the idle watchdog")
	}
	if e.redirects.count() != 0 {
		t.Error("unexpected redirect")
	}
}

func TestTouchRestartsIdlePeriod(t *testing.T) {
	e := newEnv(t)
	s := e.login(t, backendtest.WaiterEmail, false)

	stale := e.clock.pending()
	if len(stale) != 1 {
		t.Fatalf("pending timers = %d, want 1", len(stale))
	}
	s.Touch()

	// The superseded timer firing late must be ignored.
	stale[0].f()
	if !s.IsAuthenticated() {
		t.Fatal("stale timer logged the session out")
	}

	e.clock.Advance(store.DefaultIdleTimeout)
	if s.IsAuthenticated() {
		t.Fatal("expected idle logout after the restarted period")
	}
}

func TestRestoreFromDurableScope(t *testing.T) {
	e := newEnv(t)
	token := e.srv.IssueToken(t, backendtest.AdminEmail)
	user, _ := json.Marshal(models.User{ID: 1, Email: backendtest.AdminEmail, Role: models.RoleAdmin})
	ctx := context.Background()
	if err := e.scopes.Save(ctx, storage.ModeDurable, storage.Record{Token: token, User: string(user)}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	s := e.session(t)
	if !s.IsAuthenticated() || s.Mode() != storage.ModeDurable || !s.IsAdmin() {
		t.Fatalf("restored session = authenticated %v, mode %v, admin %v", s.IsAuthenticated(), s.Mode(), s.IsAdmin())
	}
	if err := s.FetchUser(ctx); err != nil {
		t.Fatalf("FetchUser with restored token failed: %v", err)
	}
	if s.User().Name != "Ana Admin" {
		t.Errorf("user name = %q", s.User().Name)
	}
}

func TestRestoreDiscardsExpiredToken(t *testing.T) {
	e := newEnv(t)
	expired, err := auth.NewJWTManager("other-secret", -time.Hour).Generate(&models.User{ID: 2, Role: models.RoleWaiter})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	ctx := context.Background()
	if err := e.scopes.Save(ctx, storage.ModeEphemeral, storage.Record{Token: expired, User: `{"id":2}`}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	s := e.session(t)
	if s.IsAuthenticated() || s.Token() != "" {
		t.Error("expired token was restored")
	}
	if get(t, e.ephemeral, storage.KeyToken) != "" {
		t.Error("expired token left in storage")
	}
}

func TestFetchUserNormalizesEnvelopes(t *testing.T) {
	for _, envelope := range []backendtest.Envelope{backendtest.EnvelopeUser, backendtest.EnvelopeData, backendtest.EnvelopeRaw} {
		t.Run(string(envelope), func(t *testing.T) {
			e := newEnv(t)
			s := e.login(t, backendtest.KitchenEmail, false)
			e.srv.SetProfileEnvelope(envelope)

			if err := s.FetchUser(context.Background()); err != nil {
				t.Fatalf("FetchUser failed: %v", err)
			}
			u := s.User()
			if u == nil || u.Email != backendtest.KitchenEmail || u.Role != models.RoleKitchen {
				t.Fatalf("user = %+v", u)
			}
			var persisted models.User
			if err := json.Unmarshal([]byte(get(t, e.ephemeral, storage.KeyUser)), &persisted); err != nil {
				t.Fatalf("persisted user is not JSON: %v", err)
			}
			if persisted.Name != "Karla Cocina" {
				t.Errorf("persisted name = %q", persisted.Name)
			}
		})
	}
}

func TestFetchUserFailureLogsOut(t *testing.T) {
	e := newEnv(t)
	s := e.login(t, backendtest.WaiterEmail, true)
	e.srv.Fail(http.MethodGet, "/user-profile", http.StatusServiceUnavailable)

	err := s.FetchUser(context.Background())
	if api.StatusCode(err) != http.StatusServiceUnavailable {
		t.Fatalf("err = %v, want 503", err)
	}
	if s.IsAuthenticated() {
		t.Error("session survived a failed profile fetch")
	}
	if get(t, e.durable, storage.KeyToken) != "" {
		t.Error("durable scope not cleared")
	}
}

func TestFetchUserWithoutTokenIsNoop(t *testing.T) {
	e := newEnv(t)
	s := e.session(t)
	if err := s.FetchUser(context.Background()); err != nil {
		t.Fatalf("FetchUser failed: %v", err)
	}
	if e.srv.TotalCalls() != 0 {
		t.Errorf("calls = %d, want 0", e.srv.TotalCalls())
	}
}

func TestSetUser(t *testing.T) {
	e := newEnv(t)
	s := e.session(t)
	if err := s.SetUser(context.Background(), &models.User{ID: 9}); !errors.Is(err, store.ErrNotAuthenticated) {
		t.Fatalf("SetUser without session: err = %v", err)
	}

	s = e.login(t, backendtest.WaiterEmail, true)
	updated := s.User()
	updated.Name = "Wilmer M."
	if err := s.SetUser(context.Background(), updated); err != nil {
		t.Fatalf("SetUser failed: %v", err)
	}
	if s.User().Name != "Wilmer M." {
		t.Errorf("name = %q", s.User().Name)
	}
	var persisted models.User
	json.Unmarshal([]byte(get(t, e.durable, storage.KeyUser)), &persisted)
	if persisted.Name != "Wilmer M." {
		t.Errorf("persisted name = %q", persisted.Name)
	}
}

func TestHasRole(t *testing.T) {
	e := newEnv(t)
	s := e.session(t)
	if s.HasRole(models.RoleWaiter) {
		t.Error("anonymous session has a role")
	}

	s = e.login(t, backendtest.WaiterEmail, false)
	if !s.HasRole(models.RoleAdmin, models.RoleWaiter) {
		t.Error("waiter not recognised")
	}
	if s.HasRole(models.RoleKitchen) || s.IsAdmin() {
		t.Error("waiter must not hold kitchen or admin")
	}
}
