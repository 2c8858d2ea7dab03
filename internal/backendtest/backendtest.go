// Package backendtest starts a refserver.Backend on a loopback port for the
// lifetime of a test. Tests point an api.Client at Server.APIURL.
package backendtest

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/posclient/internal/refserver"
)

// Seeded accounts. All share Password.
const (
	AdminEmail   = refserver.AdminEmail
	WaiterEmail  = refserver.WaiterEmail
	KitchenEmail = refserver.KitchenEmail
	Password     = refserver.Password
)

type Envelope = refserver.Envelope

const (
	EnvelopeUser = refserver.EnvelopeUser
	EnvelopeData = refserver.EnvelopeData
	EnvelopeRaw  = refserver.EnvelopeRaw
)

// Server is a running reference backend. The Backend's fault injection and
// inspection helpers are promoted.
type Server struct {
	*httptest.Server
	*refserver.Backend
}

// New starts a seeded server and closes it when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ts := httptest.NewUnstartedServer(nil)
	b, err := refserver.New(refserver.Options{
		PublicURL: "http://" + ts.Listener.Addr().String(),
		Secret:    "backendtest-secret",
		HashCost:  bcrypt.MinCost,
	})
	if err != nil {
		ts.Close()
		t.Fatalf("failed to create backend: %v", err)
	}
	ts.Config.Handler = b.Handler()
	ts.Start()

	s := &Server{Server: ts, Backend: b}
	t.Cleanup(func() {
		b.ReleaseAll()
		ts.Close()
	})
	return s
}

// APIURL is the base URL clients should use.
func (s *Server) APIURL() string {
	return s.URL + "/api"
}

// IssueToken signs a valid token for a seeded account, as a prior login would have.
func (s *Server) IssueToken(t testing.TB, email string) string {
	t.Helper()
	token, err := s.Backend.IssueToken(email)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return token
}
