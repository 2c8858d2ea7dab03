// Package refserver is an in-process restaurant backend speaking the same REST
// dialect as the production API: bearer tokens, inconsistent response
// envelopes, multipart uploads with method tunnelling and binary invoices.
//
// Faults can be injected per route with Fail, and requests can be parked with
// Block to observe in-flight client state.
package refserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/posclient/internal/auth"
	"github.com/mmynk/posclient/internal/middleware"
	"github.com/mmynk/posclient/internal/models"
)

// Seeded accounts. All share Password.
const (
	AdminEmail   = "admin@pos.test"
	WaiterEmail  = "waiter@pos.test"
	KitchenEmail = "kitchen@pos.test"
	Password     = "secret-pass"
)

// Envelope selects how GET /user-profile wraps the user record.
type Envelope string

const (
	EnvelopeUser Envelope = "user"
	EnvelopeData Envelope = "data"
	EnvelopeRaw  Envelope = "raw"
)

// Backend is a seeded reference backend.
type Backend struct {
	jwt       *auth.JWTManager
	logger    *slog.Logger
	publicURL string
	hashCost  int

	mu          sync.Mutex
	accounts    []*account
	categories  []models.Category
	products    []models.Product
	areas       []models.Area
	orders      []*models.Order
	nextID      map[string]int64
	revoked     map[string]bool
	envelope    Envelope
	invoiceName *string
	lastOrder   *models.NewOrder
	lastForms   map[string]map[string][]string

	faults map[string]int
	calls  map[string]int
	blocks map[string]*block
}

type account struct {
	user models.User
	hash string
}

type block struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

var _ auth.CredentialStorage = (*Backend)(nil)
var _ middleware.Revoker = (*Backend)(nil)

// Options configure a Backend.
type Options struct {
	// PublicURL is the scheme and host clients reach the backend on. Uploaded
	// files are advertised under it.
	PublicURL string

	// Secret signs access tokens.
	Secret string

	// Logger receives request logs. Defaults to discarding them.
	Logger *slog.Logger

	// HashCost is the bcrypt cost for stored passwords. Defaults to bcrypt.DefaultCost.
	HashCost int
}

// New returns a Backend seeded with staff accounts, a menu, areas and orders.
func New(opts Options) (*Backend, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.HashCost == 0 {
		opts.HashCost = bcrypt.DefaultCost
	}
	s := &Backend{
		jwt:       auth.NewJWTManager(opts.Secret, time.Hour),
		logger:    opts.Logger,
		publicURL: strings.TrimSuffix(opts.PublicURL, "/"),
		hashCost:  opts.HashCost,
		nextID:    make(map[string]int64),
		revoked:   make(map[string]bool),
		envelope:  EnvelopeUser,
		lastForms: make(map[string]map[string][]string),
		faults:    make(map[string]int),
		calls:     make(map[string]int),
		blocks:    make(map[string]*block),
	}
	if err := s.seed(); err != nil {
		return nil, fmt.Errorf("failed to seed backend: %w", err)
	}
	return s, nil
}

// Handler serves the API under /api. Extra middleware runs before routing.
func (s *Backend) Handler(extra ...gin.HandlerFunc) http.Handler {
	return s.routes(extra...)
}

func (s *Backend) hashPassword(password string) (string, error) {
	return auth.HashPasswordCost(password, s.hashCost)
}

func (s *Backend) routes(extra ...gin.HandlerFunc) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger(s.logger))
	r.Use(extra...)

	api := r.Group("/api", s.instrument())
	api.POST("/login", s.login)

	authed := api.Group("", middleware.RequireAuth(s.jwt, s))
	authed.POST("/logout", s.logout)
	authed.GET("/user-profile", s.userProfile)
	authed.GET("/profile", s.profile)
	authed.POST("/profile/update", s.updateProfile)
	authed.PUT("/profile/password", s.changePassword)
	authed.GET("/areas", s.listAreas)
	authed.GET("/categories", s.listCategories)
	authed.GET("/products", s.listProducts)
	authed.GET("/orders", s.listOrders)
	authed.POST("/orders", s.createOrder)
	authed.PATCH("/orders/:id/status", s.updateOrderStatus)
	authed.GET("/orders/:id/invoice", s.invoice)

	admin := authed.Group("", middleware.RequireRole(models.RoleAdmin))
	admin.POST("/products", s.createProduct)
	admin.POST("/products/:id", s.updateProduct)
	admin.DELETE("/products/:id", s.deleteProduct)
	admin.GET("/users", s.listUsers)
	admin.POST("/users", s.createUser)
	admin.POST("/users/:id", s.updateUser)
	admin.DELETE("/users/:id", s.deleteUser)
	return r
}

// instrument counts calls, parks blocked routes and injects faults.
func (s *Backend) instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := routeKey(c.Request.Method, strings.TrimPrefix(c.FullPath(), "/api"))

		s.mu.Lock()
		s.calls[key]++
		b := s.blocks[key]
		s.mu.Unlock()

		if b != nil {
			select {
			case b.entered <- struct{}{}:
			default:
			}
			select {
			case <-b.release:
			case <-c.Request.Context().Done():
				c.Abort()
				return
			}
		}

		s.mu.Lock()
		status := s.faults[key]
		s.mu.Unlock()
		if status != 0 {
			c.AbortWithStatusJSON(status, gin.H{"message": "injected failure"})
			return
		}
		c.Next()
	}
}

func routeKey(method, route string) string {
	return method + " " + route
}

// Fail makes every request to route answer with status until Recover.
// route is the path pattern without the /api prefix, e.g. "/orders/:id/status".
func (s *Backend) Fail(method, route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[routeKey(method, route)] = status
}

// Recover removes an injected fault.
func (s *Backend) Recover(method, route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.faults, routeKey(method, route))
}

// Calls returns how many requests reached route.
func (s *Backend) Calls(method, route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[routeKey(method, route)]
}

// TotalCalls returns the number of requests to any route.
func (s *Backend) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// Block parks requests to route until release is called. entered receives
// once per parked request.
func (s *Backend) Block(method, route string) (entered <-chan struct{}, release func()) {
	b := &block{
		entered: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
	s.mu.Lock()
	s.blocks[routeKey(method, route)] = b
	s.mu.Unlock()

	return b.entered, func() {
		b.once.Do(func() { close(b.release) })
		s.mu.Lock()
		if s.blocks[routeKey(method, route)] == b {
			delete(s.blocks, routeKey(method, route))
		}
		s.mu.Unlock()
	}
}

// ReleaseAll unparks every blocked request.
func (s *Backend) ReleaseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, b := range s.blocks {
		b.once.Do(func() { close(b.release) })
		delete(s.blocks, key)
	}
}

// SetProfileEnvelope changes the wrapping of GET /user-profile.
func (s *Backend) SetProfileEnvelope(e Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.envelope = e
}

// SetInvoiceName overrides the filename the invoice endpoint advertises.
func (s *Backend) SetInvoiceName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoiceName = &name
}

// IssueToken signs a valid token for a seeded account, as a prior login would have.
func (s *Backend) IssueToken(email string) (string, error) {
	cred, err := s.CredentialByEmail(context.Background(), email)
	if err != nil {
		return "", fmt.Errorf("unknown account %s: %w", email, err)
	}
	return s.jwt.Generate(cred.User)
}

// LastOrder returns the most recent POST /orders body.
func (s *Backend) LastOrder() (models.NewOrder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastOrder == nil {
		return models.NewOrder{}, false
	}
	return *s.lastOrder, true
}

// LastForm returns the text fields of the most recent multipart request to route.
func (s *Backend) LastForm(method, route string) map[string][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastForms[routeKey(method, route)]
}

// OrderStatus returns the backend's status for an order.
func (s *Backend) OrderStatus(id int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o := s.findOrderLocked(id); o != nil {
		return o.Status, true
	}
	return "", false
}

// Revoked implements middleware.Revoker.
func (s *Backend) Revoked(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revoked[token]
}

// CredentialByEmail implements auth.CredentialStorage.
func (s *Backend) CredentialByEmail(_ context.Context, email string) (*auth.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accountByEmailLocked(email)
	if a == nil {
		return nil, auth.ErrInvalidCredentials
	}
	u := a.user
	return &auth.Credential{User: &u, PasswordHash: a.hash}, nil
}

func (s *Backend) accountByEmailLocked(email string) *account {
	for _, a := range s.accounts {
		if strings.EqualFold(a.user.Email, email) {
			return a
		}
	}
	return nil
}

func (s *Backend) accountByIDLocked(id int64) *account {
	for _, a := range s.accounts {
		if a.user.ID == id {
			return a
		}
	}
	return nil
}

func (s *Backend) findOrderLocked(id int64) *models.Order {
	for _, o := range s.orders {
		if o.ID == id {
			return o
		}
	}
	return nil
}

func (s *Backend) next(kind string) int64 {
	s.nextID[kind]++
	return s.nextID[kind]
}
