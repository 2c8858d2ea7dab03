package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mmynk/posclient/internal/auth"
	"github.com/mmynk/posclient/internal/models"
)

type revokedSet map[string]bool

func (r revokedSet) Revoked(token string) bool { return r[token] }

func newRouter(jwtManager *auth.JWTManager, revoked revokedSet, logs *bytes.Buffer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Logger(slog.New(slog.NewTextHandler(logs, nil))))
	authed := r.Group("", RequireAuth(jwtManager, revoked))
	authed.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": GetUserID(c), "role": GetRole(c)})
	})
	authed.GET("/admin", RequireRole(models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestRequireAuth(t *testing.T) {
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	waiter := &models.User{ID: 7, Email: "w@pos.test", Role: models.RoleWaiter}
	admin := &models.User{ID: 1, Email: "a@pos.test", Role: models.RoleAdmin}
	waiterToken, _ := jwtManager.Generate(waiter)
	adminToken, _ := jwtManager.Generate(admin)
	revokedToken, _ := jwtManager.Generate(&models.User{ID: 8, Role: models.RoleWaiter})
	otherToken, _ := auth.NewJWTManager("other-secret", time.Hour).Generate(waiter)

	var logs bytes.Buffer
	router := newRouter(jwtManager, revokedSet{revokedToken: true}, &logs)

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{name: "missing header", path: "/me", want: http.StatusUnauthorized},
		{name: "not bearer", path: "/me", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "wrong secret", path: "/me", header: "Bearer " + otherToken, want: http.StatusUnauthorized},
		{name: "revoked", path: "/me", header: "Bearer " + revokedToken, want: http.StatusUnauthorized},
		{name: "valid", path: "/me", header: "Bearer " + waiterToken, want: http.StatusOK},
		{name: "role denied", path: "/admin", header: "Bearer " + waiterToken, want: http.StatusForbidden},
		{name: "role allowed", path: "/admin", header: "Bearer " + adminToken, want: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
			if rec.Code >= 400 && !strings.Contains(rec.Body.String(), `"message"`) {
				t.Errorf("error body without message: %s", rec.Body.String())
			}
		})
	}

	if !strings.Contains(logs.String(), "path=/me") {
		t.Errorf("requests not logged: %s", logs.String())
	}
}

func TestRequireAuthSetsClaims(t *testing.T) {
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	token, _ := jwtManager.Generate(&models.User{ID: 7, Role: models.RoleKitchen})
	var logs bytes.Buffer
	router := newRouter(jwtManager, nil, &logs)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if body := rec.Body.String(); body != `{"id":7,"role":"kitchen"}` {
		t.Errorf("body = %s", body)
	}
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS())
	r.GET("/api/products", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/api/products", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}
