package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mmynk/posclient/internal/api"
	"github.com/mmynk/posclient/internal/models"
)

// ProfileInput is the self-editable part of the signed-in user's account.
type ProfileInput struct {
	Name  string
	Email string
	Phone string
	Photo *Upload
}

func (in ProfileInput) form() *api.Form {
	f := api.NewForm().
		Set("name", in.Name).
		Set("email", in.Email).
		Set("phone", in.Phone)
	if in.Photo != nil {
		f.File("photo", in.Photo.Filename, in.Photo.Content)
	}
	return f
}

// PasswordChange is the body of PUT /profile/password.
type PasswordChange struct {
	CurrentPassword      string `json:"current_password"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// ProfileStore reads and edits the signed-in user's own account. The records
// it returns are meant to be handed to SessionStore.SetUser by the caller.
type ProfileStore struct {
	backend Backend
	logger  *slog.Logger

	mu      sync.Mutex
	loading bool
}

// NewProfileStore creates a profile store.
func NewProfileStore(backend Backend, logger *slog.Logger) *ProfileStore {
	return &ProfileStore{backend: backend, logger: loggerOr(logger)}
}

// FetchProfile loads the current account from GET /profile.
func (s *ProfileStore) FetchProfile(ctx context.Context) (*models.User, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	body, err := s.backend.GetJSON(ctx, "/profile")
	var user models.User
	if err == nil {
		user, err = api.UnwrapRecord[models.User](body, "user", "data")
	}
	if err != nil {
		s.logger.Error("Error fetching profile", "error", err)
		return nil, err
	}
	return &user, nil
}

// UpdateProfile uploads profile changes, photo included, and returns the
// updated account.
func (s *ProfileStore) UpdateProfile(ctx context.Context, in ProfileInput) (*models.User, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	body, err := s.backend.PostForm(ctx, "/profile/update", in.form())
	var user models.User
	if err == nil {
		user, err = api.UnwrapRecord[models.User](body, "user", "data")
	}
	if err != nil {
		s.logger.Error("Error updating profile", "error", err)
		return nil, err
	}
	s.logger.Info("Profile updated", "user_id", user.ID)
	return &user, nil
}

// ChangePassword sets a new password. The backend validates the current one.
func (s *ProfileStore) ChangePassword(ctx context.Context, change PasswordChange) error {
	s.setLoading(true)
	defer s.setLoading(false)

	if _, err := s.backend.PutJSON(ctx, "/profile/password", change); err != nil {
		s.logger.Error("Error changing password", "error", err)
		return err
	}
	s.logger.Info("Password changed")
	return nil
}

// IsLoading reports whether a profile request is in progress.
func (s *ProfileStore) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *ProfileStore) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}
