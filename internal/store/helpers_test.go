package store_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mmynk/posclient/internal/api"
	"github.com/mmynk/posclient/internal/backendtest"
	"github.com/mmynk/posclient/internal/metrics"
	"github.com/mmynk/posclient/internal/storage"
	"github.com/mmynk/posclient/internal/storage/memory"
	"github.com/mmynk/posclient/internal/storage/sqlite"
	"github.com/mmynk/posclient/internal/store"
)

type env struct {
	srv       *backendtest.Server
	client    *api.Client
	scopes    *storage.Scopes
	durable   storage.KV
	ephemeral storage.KV
	metrics   *metrics.Metrics
	clock     *fakeClock
	notes     *recordingNotifier
	redirects *redirectCounter
}

func newEnv(t *testing.T) *env {
	t.Helper()
	srv := backendtest.New(t)

	durable, err := sqlite.New(filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("failed to open durable scope: %v", err)
	}
	ephemeral := memory.New()
	scopes := storage.NewScopes(durable, ephemeral)
	t.Cleanup(func() { scopes.Close() })

	m := metrics.New(prometheus.NewRegistry())
	client, err := api.New(srv.APIURL(), api.WithTokenSource(scopes), api.WithMetrics(m))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	return &env{
		srv:       srv,
		client:    client,
		scopes:    scopes,
		durable:   durable,
		ephemeral: ephemeral,
		metrics:   m,
		clock:     &fakeClock{},
		notes:     &recordingNotifier{},
		redirects: &redirectCounter{},
	}
}

func (e *env) session(t *testing.T) *store.SessionStore {
	t.Helper()
	s, err := store.NewSessionStore(context.Background(), store.SessionConfig{
		Backend:    e.client,
		Scopes:     e.scopes,
		Notifier:   e.notes,
		Redirector: e.redirects,
		Metrics:    e.metrics,
		AfterFunc:  e.clock.AfterFunc,
	})
	if err != nil {
		t.Fatalf("NewSessionStore failed: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

// login returns a session signed in as email.
func (e *env) login(t *testing.T, email string, rememberMe bool) *store.SessionStore {
	t.Helper()
	s := e.session(t)
	if err := s.Login(context.Background(), email, backendtest.Password, rememberMe); err != nil {
		t.Fatalf("Login(%s) failed: %v", email, err)
	}
	return s
}

func get(t *testing.T, kv storage.KV, key string) string {
	t.Helper()
	v, _, err := kv.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get(%q) failed: %v", key, err)
	}
	return v
}

// fakeClock hands out timers that only fire on Advance.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) store.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance simulates d of inactivity and runs every pending timer due by then.
// It returns how many fired.
func (c *fakeClock) Advance(d time.Duration) int {
	c.mu.Lock()
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.d <= d {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
	return len(due)
}

// pending returns the timers that are neither stopped nor fired.
func (c *fakeClock) pending() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

type note struct {
	level   store.Level
	message string
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []note
}

func (n *recordingNotifier) Notify(level store.Level, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note{level, message})
}

func (n *recordingNotifier) levels() []store.Level {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]store.Level, len(n.notes))
	for i, x := range n.notes {
		out[i] = x.level
	}
	return out
}

type redirectCounter struct {
	mu sync.Mutex
	n  int
}

func (r *redirectCounter) RedirectToLogin() {
	r.mu.Lock()
	r.n++
	r.mu.Unlock()
}

func (r *redirectCounter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}
