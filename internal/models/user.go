package models

// Role is the staff or customer role assigned by the backend.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleWaiter   Role = "waiter"
	RoleKitchen  Role = "kitchen"
	RoleCustomer Role = "customer"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleWaiter, RoleKitchen, RoleCustomer:
		return true
	}
	return false
}

// User represents an account as returned by the backend.
//
// The client caches the signed-in user in the session and, for
// administrators, the full roster in the user store.
type User struct {
	// ID is the backend identifier.
	ID int64 `json:"id"`

	// Name is the display name.
	Name string `json:"name"`

	// Email is the login address (unique).
	Email string `json:"email"`

	// Role decides which screens and actions are available.
	Role Role `json:"role"`

	// PhotoURL is the absolute URL of the profile photo, if any.
	PhotoURL *string `json:"photo_url"`

	// Phone is an optional contact number.
	Phone *string `json:"phone"`

	// IsActive is false for deactivated staff accounts.
	IsActive bool `json:"is_active"`
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
