// Package app wires the stores into one client: configuration, storage
// scopes, the HTTP client and metrics. It is also the only place where one
// store's result is handed to another.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mmynk/posclient/internal/api"
	"github.com/mmynk/posclient/internal/config"
	"github.com/mmynk/posclient/internal/metrics"
	"github.com/mmynk/posclient/internal/models"
	"github.com/mmynk/posclient/internal/storage"
	"github.com/mmynk/posclient/internal/storage/memory"
	"github.com/mmynk/posclient/internal/storage/sqlite"
	"github.com/mmynk/posclient/internal/store"
	"github.com/mmynk/posclient/pkg/logging"
)

// Options are the front end's hooks into the client.
type Options struct {
	// Notifier shows toasts. Defaults to logging them.
	Notifier store.Notifier

	// Redirector is called after an idle logout, once every store has been reset.
	Redirector store.Redirector

	// AfterFunc replaces the idle watchdog clock in tests.
	AfterFunc store.AfterFunc
}

// App is a fully wired client.
type App struct {
	Config   *config.Config
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Client   *api.Client
	Scopes   *storage.Scopes

	Session *store.SessionStore
	Catalog *store.CatalogStore
	Cart    *store.CartStore
	Orders  *store.OrderStore
	Profile *store.ProfileStore
	Users   *store.UserStore
}

// New opens the storage scopes, restores any persisted session and builds every store.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	durable, err := sqlite.New(cfg.DurablePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open durable storage: %w", err)
	}
	scopes := storage.NewScopes(durable, memory.New())

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.New(reg)

	client, err := api.New(cfg.BaseURL,
		api.WithTokenSource(scopes),
		api.WithMetrics(m),
		api.WithTimeout(cfg.HTTPTimeout),
		api.WithLogger(logging.For("api")),
	)
	if err != nil {
		scopes.Close()
		return nil, err
	}

	notifier := opts.Notifier
	if notifier == nil {
		notifier = store.LogNotifier{Logger: logging.For("notify")}
	}

	a := &App{
		Config:   cfg,
		Registry: reg,
		Metrics:  m,
		Client:   client,
		Scopes:   scopes,
	}

	a.Session, err = store.NewSessionStore(ctx, store.SessionConfig{
		Backend:     client,
		Scopes:      scopes,
		IdleTimeout: cfg.IdleTimeout,
		Notifier:    notifier,
		Redirector:  store.RedirectFunc(func() { a.redirect(opts.Redirector) }),
		Metrics:     m,
		Logger:      logging.For("session"),
		AfterFunc:   opts.AfterFunc,
	})
	if err != nil {
		scopes.Close()
		return nil, err
	}
	a.Catalog = store.NewCatalogStore(client, logging.For("catalog"))
	a.Cart = store.NewCartStore(client, m, logging.For("cart"))
	a.Orders = store.NewOrderStore(client, notifier, m, logging.For("orders"))
	a.Profile = store.NewProfileStore(client, logging.For("profile"))
	a.Users = store.NewUserStore(client, a.Session, logging.For("users"))
	return a, nil
}

// redirect discards in-memory state before handing control to the front end,
// the equivalent of a full page navigation.
func (a *App) redirect(next store.Redirector) {
	a.Reset()
	if next != nil {
		next.RedirectToLogin()
	}
}

// Reset drops every cached record outside the session.
func (a *App) Reset() {
	a.Cart.Reset()
	a.Catalog.Reset()
	a.Orders.Reset()
	a.Users.Reset()
}

// Login signs in, dropping data cached for any previous user.
func (a *App) Login(ctx context.Context, email, password string, rememberMe bool) error {
	if err := a.Session.Login(ctx, email, password, rememberMe); err != nil {
		return err
	}
	a.Reset()
	return nil
}

// Logout signs out and drops cached data.
func (a *App) Logout(ctx context.Context) {
	a.Session.Logout(ctx, false)
	a.Reset()
}

// RequireAuth fails with store.ErrNotAuthenticated unless a user is signed in.
func (a *App) RequireAuth() error {
	if !a.Session.IsAuthenticated() {
		return store.ErrNotAuthenticated
	}
	return nil
}

// FetchProfile loads the profile and publishes it to the session.
func (a *App) FetchProfile(ctx context.Context) (*models.User, error) {
	u, err := a.Profile.FetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.Session.SetUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// UpdateProfile saves profile changes and publishes the result to the session.
func (a *App) UpdateProfile(ctx context.Context, in store.ProfileInput) (*models.User, error) {
	u, err := a.Profile.UpdateProfile(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := a.Session.SetUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Close stops the idle watchdog and closes storage.
func (a *App) Close() error {
	a.Session.Close()
	return a.Scopes.Close()
}
