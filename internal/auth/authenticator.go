package auth

import (
	"context"

	"github.com/mmynk/posclient/internal/models"
)

// Authenticator verifies login credentials.
// The reference backend uses it behind POST /login; swapping it lets tests
// exercise failure paths without touching the HTTP layer.
type Authenticator interface {
	// Authenticate verifies the credentials and returns the matching user.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	// ValidateCredential checks a new credential before it is stored.
	ValidateCredential(credential string) error
}
