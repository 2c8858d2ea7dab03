package store

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mmynk/posclient/internal/api"
	"github.com/mmynk/posclient/internal/models"
)

// ProductInput is the editable part of a product.
type ProductInput struct {
	Name        string
	Description string
	Price       float64
	CategoryID  int64
	IsActive    *bool
	Image       *Upload
}

func (in ProductInput) form() *api.Form {
	f := api.NewForm().
		Set("name", in.Name).
		Set("description", in.Description).
		Set("price", strconv.FormatFloat(in.Price, 'f', 2, 64)).
		Set("category_id", strconv.FormatInt(in.CategoryID, 10))
	if in.IsActive != nil {
		f.Set("is_active", formBool(*in.IsActive))
	}
	if in.Image != nil {
		f.File("image", in.Image.Filename, in.Image.Content)
	}
	return f
}

// CatalogStore caches the menu and derives the filtered product view.
type CatalogStore struct {
	backend Backend
	logger  *slog.Logger

	mu         sync.RWMutex
	products   []models.Product
	categories []models.Category
	categoryID int64 // 0 means all categories
	search     string
	loading    bool
}

// NewCatalogStore creates an empty catalog.
func NewCatalogStore(backend Backend, logger *slog.Logger) *CatalogStore {
	return &CatalogStore{backend: backend, logger: loggerOr(logger)}
}

// FetchMenu loads categories and products concurrently. Both caches are
// replaced together, and only if both requests succeed.
func (s *CatalogStore) FetchMenu(ctx context.Context) error {
	s.setLoading(true)
	defer s.setLoading(false)

	var (
		categories []models.Category
		products   []models.Product
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		body, err := s.backend.GetJSON(gctx, "/categories")
		if err != nil {
			return err
		}
		categories, err = api.UnwrapList[models.Category](body)
		return err
	})
	g.Go(func() error {
		body, err := s.backend.GetJSON(gctx, "/products")
		if err != nil {
			return err
		}
		products, err = api.UnwrapList[models.Product](body)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("Error loading menu", "error", err)
		return err
	}

	s.mu.Lock()
	s.categories = categories
	s.products = products
	s.mu.Unlock()
	s.logger.Debug("Menu loaded", "categories", len(categories), "products", len(products))
	return nil
}

// SetCategoryFilter restricts FilteredProducts to one category. Zero shows all.
func (s *CatalogStore) SetCategoryFilter(categoryID int64) {
	s.mu.Lock()
	s.categoryID = categoryID
	s.mu.Unlock()
}

// SetSearch sets the name search text.
func (s *CatalogStore) SetSearch(query string) {
	s.mu.Lock()
	s.search = query
	s.mu.Unlock()
}

// FilteredProducts returns products matching the category filter and whose
// name contains the search text, case-insensitively. It is computed on every
// call from the cached products.
func (s *CatalogStore) FilteredProducts() []models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	query := strings.ToLower(strings.TrimSpace(s.search))
	out := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		if s.categoryID != 0 && p.CategoryID != s.categoryID {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(p.Name), query) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Products returns the cached products.
func (s *CatalogStore) Products() []models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Product(nil), s.products...)
}

// Product looks up a cached product.
func (s *CatalogStore) Product(id int64) (models.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.ID == id {
			return p, true
		}
	}
	return models.Product{}, false
}

// Categories returns the cached categories.
func (s *CatalogStore) Categories() []models.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Category(nil), s.categories...)
}

// IsLoading reports whether FetchMenu is in progress.
func (s *CatalogStore) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// CreateProduct uploads a new product and puts it at the head of the cache.
func (s *CatalogStore) CreateProduct(ctx context.Context, in ProductInput) (models.Product, error) {
	body, err := s.backend.PostForm(ctx, "/products", in.form())
	var p models.Product
	if err == nil {
		p, err = api.UnwrapRecord[models.Product](body, "data")
	}
	if err != nil {
		s.logger.Error("Error creating product", "name", in.Name, "error", err)
		return models.Product{}, err
	}

	s.mu.Lock()
	s.products = append([]models.Product{p}, s.products...)
	s.mu.Unlock()
	return p, nil
}

// UpdateProduct uploads changes (as a POST tunnelling PUT) and replaces the
// cached record in place.
func (s *CatalogStore) UpdateProduct(ctx context.Context, id int64, in ProductInput) (models.Product, error) {
	body, err := s.backend.PostForm(ctx, fmt.Sprintf("/products/%d", id), in.form().Tunnel(http.MethodPut))
	var p models.Product
	if err == nil {
		p, err = api.UnwrapRecord[models.Product](body, "data")
	}
	if err != nil {
		s.logger.Error("Error updating product", "product_id", id, "error", err)
		return models.Product{}, err
	}

	s.mu.Lock()
	for i := range s.products {
		if s.products[i].ID == id {
			s.products[i] = p
			break
		}
	}
	s.mu.Unlock()
	return p, nil
}

// DeleteProduct deletes a product and, once the backend confirms, drops it from the cache.
func (s *CatalogStore) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.backend.Delete(ctx, fmt.Sprintf("/products/%d", id)); err != nil {
		s.logger.Error("Error deleting product", "product_id", id, "error", err)
		return err
	}
	s.mu.Lock()
	s.products = withoutProduct(s.products, id)
	s.mu.Unlock()
	return nil
}

// Reset drops the cached menu and filters.
func (s *CatalogStore) Reset() {
	s.mu.Lock()
	s.products, s.categories = nil, nil
	s.categoryID, s.search = 0, ""
	s.mu.Unlock()
}

func (s *CatalogStore) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

func withoutProduct(products []models.Product, id int64) []models.Product {
	out := products[:0:0]
	for _, p := range products {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}

// formBool encodes booleans the way the backend's validator expects.
func formBool(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
