package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmynk/posclient/internal/models"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrInactiveAccount    = errors.New("account is disabled")
)

// Credential is a user together with its stored bcrypt hash.
type Credential struct {
	User         *models.User
	PasswordHash string
}

// CredentialStorage looks up credentials by email.
type CredentialStorage interface {
	CredentialByEmail(ctx context.Context, email string) (*Credential, error)
}

// PasswordAuthenticator implements password authentication using bcrypt.
type PasswordAuthenticator struct {
	storage CredentialStorage
}

var _ Authenticator = (*PasswordAuthenticator)(nil)

// NewPasswordAuthenticator creates a password-based authenticator.
func NewPasswordAuthenticator(storage CredentialStorage) *PasswordAuthenticator {
	return &PasswordAuthenticator{storage: storage}
}

// ValidateCredential checks if the password meets minimum requirements.
func (a *PasswordAuthenticator) ValidateCredential(credential string) error {
	if len(credential) < 8 {
		return ErrWeakPassword
	}
	return nil
}

// Authenticate verifies the email and password, returning the user if valid.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, email, credential string) (*models.User, error) {
	cred, err := a.storage.CredentialByEmail(ctx, email)
	if err != nil || cred == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(credential)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !cred.User.IsActive {
		return nil, ErrInactiveAccount
	}
	return cred.User, nil
}

// HashPassword hashes a password for storage at bcrypt.DefaultCost.
func HashPassword(password string) (string, error) {
	return HashPasswordCost(password, bcrypt.DefaultCost)
}

// HashPasswordCost hashes with an explicit bcrypt cost. Seeded fixtures use
// bcrypt.MinCost to keep test setup fast.
func HashPasswordCost(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
