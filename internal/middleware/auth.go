package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mmynk/posclient/internal/auth"
	"github.com/mmynk/posclient/internal/models"
)

// Context keys set by RequireAuth.
const (
	UserIDKey = "user_id"
	EmailKey  = "email"
	RoleKey   = "role"
	TokenKey  = "token"
)

// Revoker reports whether a token was invalidated by a logout.
type Revoker interface {
	Revoked(token string) bool
}

// GetUserID returns the authenticated user ID, or 0.
func GetUserID(c *gin.Context) int64 {
	return c.GetInt64(UserIDKey)
}

// GetRole returns the authenticated user's role, or "".
func GetRole(c *gin.Context) models.Role {
	role, _ := c.Get(RoleKey)
	r, _ := role.(models.Role)
	return r
}

// GetToken returns the bearer token the request was authenticated with.
func GetToken(c *gin.Context) string {
	return c.GetString(TokenKey)
}

// RequireAuth validates the bearer token and stores its claims on the
// context. A nil revoker accepts every validly signed token.
func RequireAuth(jwtManager *auth.JWTManager, revoker Revoker) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abort(c, http.StatusUnauthorized, auth.ErrMissingToken.Error())
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			abort(c, http.StatusUnauthorized, auth.ErrInvalidToken.Error())
			return
		}
		token := parts[1]

		claims, err := jwtManager.Validate(token)
		var userID int64
		if err == nil {
			userID, err = claims.UserID()
		}
		if err != nil {
			abort(c, http.StatusUnauthorized, auth.ErrInvalidToken.Error())
			return
		}
		if revoker != nil && revoker.Revoked(token) {
			abort(c, http.StatusUnauthorized, auth.ErrInvalidToken.Error())
			return
		}

		c.Set(UserIDKey, userID)
		c.Set(EmailKey, claims.Email)
		c.Set(RoleKey, claims.Role)
		c.Set(TokenKey, token)
		c.Next()
	}
}

// RequireRole rejects requests whose authenticated role is not in roles.
// It must run after RequireAuth.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := GetRole(c)
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, "This action is unauthorized.")
	}
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"message": message})
}
