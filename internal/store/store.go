// Package store holds the client-side state of the point-of-sale front end:
// session, catalog, cart, orders, profile and user administration.
//
// Each store owns its state behind a mutex that is never held across a
// backend call, so views may read snapshots from any goroutine while an
// action is in flight.
package store

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/mmynk/posclient/internal/api"
)

var (
	ErrNoArea           = errors.New("no service area selected")
	ErrOrderNotFound    = errors.New("order not found")
	ErrUpdateInFlight   = errors.New("a status update for this order is already in progress")
	ErrOrderSending     = errors.New("an order is already being sent")
	ErrNotAuthenticated = errors.New("not signed in")
	ErrForbidden        = errors.New("administrator role required")
	ErrNoToken          = errors.New("login response carried no access token")
)

// Backend is the subset of *api.Client the stores call.
type Backend interface {
	GetJSON(ctx context.Context, path string) ([]byte, error)
	PostJSON(ctx context.Context, path string, in any) ([]byte, error)
	PutJSON(ctx context.Context, path string, in any) ([]byte, error)
	PatchJSON(ctx context.Context, path string, in any) ([]byte, error)
	Delete(ctx context.Context, path string) error
	PostForm(ctx context.Context, path string, form *api.Form) ([]byte, error)
	Download(ctx context.Context, path string) (*api.File, error)
}

var _ Backend = (*api.Client)(nil)

// Upload is a file attached to a create/update form.
type Upload struct {
	Filename string
	Content  io.Reader
}

func loggerOr(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}
