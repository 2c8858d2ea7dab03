package store

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/mmynk/posclient/internal/api"
	"github.com/mmynk/posclient/internal/models"
)

// Authorizer reports whether the signed-in user may administer accounts.
// *SessionStore satisfies it.
type Authorizer interface {
	IsAdmin() bool
}

var _ Authorizer = (*SessionStore)(nil)

// UserInput is an account as edited by an administrator. Password is only
// sent when non-empty, so updates can leave it unchanged.
type UserInput struct {
	Name     string
	Email    string
	Password string
	Role     models.Role
	Phone    string
	IsActive *bool
	Photo    *Upload
}

func (in UserInput) form() *api.Form {
	f := api.NewForm().
		Set("name", in.Name).
		Set("email", in.Email).
		Set("role", string(in.Role))
	if in.Password != "" {
		f.Set("password", in.Password)
	}
	if in.Phone != "" {
		f.Set("phone", in.Phone)
	}
	if in.IsActive != nil {
		f.Set("is_active", formBool(*in.IsActive))
	}
	if in.Photo != nil {
		f.File("photo", in.Photo.Filename, in.Photo.Content)
	}
	return f
}

// UserStore is the administrators' view of the staff roster.
type UserStore struct {
	backend Backend
	authz   Authorizer
	logger  *slog.Logger

	mu      sync.RWMutex
	users   []models.User
	loading bool
}

// NewUserStore creates an empty roster. Every action is refused with
// ErrForbidden unless authz reports an administrator.
func NewUserStore(backend Backend, authz Authorizer, logger *slog.Logger) *UserStore {
	return &UserStore{backend: backend, authz: authz, logger: loggerOr(logger)}
}

func (s *UserStore) allowed() error {
	if s.authz == nil || !s.authz.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

// FetchUsers replaces the roster with the backend's list.
func (s *UserStore) FetchUsers(ctx context.Context) error {
	if err := s.allowed(); err != nil {
		return err
	}
	s.setLoading(true)
	defer s.setLoading(false)

	body, err := s.backend.GetJSON(ctx, "/users")
	var users []models.User
	if err == nil {
		users, err = api.UnwrapList[models.User](body)
	}
	if err != nil {
		s.logger.Error("Error fetching users", "error", err)
		return err
	}
	s.mu.Lock()
	s.users = users
	s.mu.Unlock()
	return nil
}

// CreateUser creates an account and puts it at the head of the roster.
func (s *UserStore) CreateUser(ctx context.Context, in UserInput) (models.User, error) {
	if err := s.allowed(); err != nil {
		return models.User{}, err
	}
	body, err := s.backend.PostForm(ctx, "/users", in.form())
	var u models.User
	if err == nil {
		u, err = api.UnwrapRecord[models.User](body, "user", "data")
	}
	if err != nil {
		s.logger.Error("Error creating user", "email", in.Email, "error", err)
		return models.User{}, err
	}

	s.mu.Lock()
	s.users = append([]models.User{u}, s.users...)
	s.mu.Unlock()
	s.logger.Info("User created", "user_id", u.ID, "role", u.Role)
	return u, nil
}

// UpdateUser uploads changes (as a POST tunnelling PUT) and replaces the
// cached account in place.
func (s *UserStore) UpdateUser(ctx context.Context, id int64, in UserInput) (models.User, error) {
	if err := s.allowed(); err != nil {
		return models.User{}, err
	}
	body, err := s.backend.PostForm(ctx, fmt.Sprintf("/users/%d", id), in.form().Tunnel(http.MethodPut))
	var u models.User
	if err == nil {
		u, err = api.UnwrapRecord[models.User](body, "user", "data")
	}
	if err != nil {
		s.logger.Error("Error updating user", "user_id", id, "error", err)
		return models.User{}, err
	}

	s.mu.Lock()
	for i := range s.users {
		if s.users[i].ID == id {
			s.users[i] = u
			break
		}
	}
	s.mu.Unlock()
	return u, nil
}

// DeleteUser deletes an account and drops it from the roster once confirmed.
func (s *UserStore) DeleteUser(ctx context.Context, id int64) error {
	if err := s.allowed(); err != nil {
		return err
	}
	if err := s.backend.Delete(ctx, fmt.Sprintf("/users/%d", id)); err != nil {
		s.logger.Error("Error deleting user", "user_id", id, "error", err)
		return err
	}

	s.mu.Lock()
	kept := s.users[:0:0]
	for _, u := range s.users {
		if u.ID != id {
			kept = append(kept, u)
		}
	}
	s.users = kept
	s.mu.Unlock()
	return nil
}

// Users returns the cached roster.
func (s *UserStore) Users() []models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.User(nil), s.users...)
}

// IsLoading reports whether FetchUsers is in progress.
func (s *UserStore) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Reset drops the cached roster.
func (s *UserStore) Reset() {
	s.mu.Lock()
	s.users = nil
	s.mu.Unlock()
}

func (s *UserStore) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}
