package store_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/mmynk/posclient/internal/api"
	"github.com/mmynk/posclient/internal/backendtest"
	"github.com/mmynk/posclient/internal/models"
	"github.com/mmynk/posclient/internal/store"
)

func loadedCatalog(t *testing.T, e *env, email string) *store.CatalogStore {
	t.Helper()
	e.login(t, email, false)
	s := store.NewCatalogStore(e.client, nil)
	if err := s.FetchMenu(context.Background()); err != nil {
		t.Fatalf("FetchMenu failed: %v", err)
	}
	return s
}

func productNames(products []models.Product) []string {
	names := make([]string, len(products))
	for i, p := range products {
		names[i] = p.Name
	}
	return names
}

func TestFetchMenuLoadsBothCaches(t *testing.T) {
	e := newEnv(t)
	s := loadedCatalog(t, e, backendtest.WaiterEmail)

	if len(s.Categories()) != 2 {
		t.Errorf("categories = %d, want 2", len(s.Categories()))
	}
	if len(s.Products()) != 4 {
		t.Errorf("products = %d, want 4", len(s.Products()))
	}
	if s.IsLoading() {
		t.Error("IsLoading still true")
	}
}

func TestFetchMenuFailureKeepsPreviousCaches(t *testing.T) {
	tests := []struct {
		name  string
		route string
	}{
		{name: "categories fail", route: "/categories"},
		{name: "products fail", route: "/products"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			s := loadedCatalog(t, e, backendtest.WaiterEmail)
			e.srv.Fail(http.MethodGet, tt.route, http.StatusInternalServerError)

			if err := s.FetchMenu(context.Background()); err == nil {
				t.Fatal("expected error")
			}
			if len(s.Categories()) != 2 || len(s.Products()) != 4 {
				t.Errorf("caches changed: %d categories, %d products", len(s.Categories()), len(s.Products()))
			}
		})
	}

	t.Run("first load failing leaves caches empty", func(t *testing.T) {
		e := newEnv(t)
		e.login(t, backendtest.WaiterEmail, false)
		e.srv.Fail(http.MethodGet, "/categories", http.StatusInternalServerError)
		s := store.NewCatalogStore(e.client, nil)

		if err := s.FetchMenu(context.Background()); err == nil {
			t.Fatal("expected error")
		}
		if len(s.Products()) != 0 {
			t.Error("products assigned despite categories failing")
		}
	})
}

func TestFilteredProducts(t *testing.T) {
	e := newEnv(t)
	s := loadedCatalog(t, e, backendtest.WaiterEmail)

	tests := []struct {
		name     string
		category int64
		search   string
		want     []string
	}{
		{name: "all", want: []string{"Coca Cola", "Nacatamal", "Café Negro", "Vigorón"}},
		{name: "category", category: 1, want: []string{"Coca Cola", "Café Negro"}},
		{name: "search is case-insensitive", search: "NACA", want: []string{"Nacatamal"}},
		{name: "category and search", category: 2, search: "o", want: []string{"Vigorón"}},
		{name: "no match", category: 1, search: "vigor", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.SetCategoryFilter(tt.category)
			s.SetSearch(tt.search)
			got := productNames(s.FilteredProducts())
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProductMutations(t *testing.T) {
	e := newEnv(t)
	s := loadedCatalog(t, e, backendtest.AdminEmail)
	ctx := context.Background()
	active := true

	created, err := s.CreateProduct(ctx, store.ProductInput{
		Name:       "Tiste",
		Price:      35,
		CategoryID: 1,
		IsActive:   &active,
		Image:      &store.Upload{Filename: "tiste.jpg", Content: strings.NewReader("jpeg")},
	})
	if err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}
	if created.ImageURL == nil || !strings.HasSuffix(*created.ImageURL, "/tiste.jpg") {
		t.Errorf("image_url = %v", created.ImageURL)
	}
	if s.Products()[0].ID != created.ID {
		t.Error("created product not prepended")
	}
	if _, tunnelled := e.srv.LastForm(http.MethodPost, "/products")[api.MethodField]; tunnelled {
		t.Error("create must not tunnel a method")
	}

	updated, err := s.UpdateProduct(ctx, 2, store.ProductInput{Name: "Nacatamal Grande", Price: 120, CategoryID: 2})
	if err != nil {
		t.Fatalf("UpdateProduct failed: %v", err)
	}
	if got := e.srv.LastForm(http.MethodPost, "/products/:id")[api.MethodField]; len(got) != 1 || got[0] != http.MethodPut {
		t.Errorf("_method = %v, want PUT", got)
	}
	products := s.Products()
	if products[2].ID != 2 || products[2].Name != "Nacatamal Grande" || products[2].Price != 120 {
		t.Errorf("product not spliced in place: %+v", products[2])
	}
	if updated.Price != 120 {
		t.Errorf("returned price = %v", updated.Price)
	}

	if err := s.DeleteProduct(ctx, 3); err != nil {
		t.Fatalf("DeleteProduct failed: %v", err)
	}
	if _, ok := s.Product(3); ok {
		t.Error("deleted product still cached")
	}
	if len(s.Products()) != 4 {
		t.Errorf("products = %d, want 4", len(s.Products()))
	}
}

func TestProductMutationFailuresKeepCache(t *testing.T) {
	e := newEnv(t)
	s := loadedCatalog(t, e, backendtest.WaiterEmail)
	ctx := context.Background()

	// Waiters are not allowed to edit the menu.
	_, err := s.CreateProduct(ctx, store.ProductInput{Name: "Pinol", Price: 20, CategoryID: 1})
	if api.StatusCode(err) != http.StatusForbidden {
		t.Fatalf("err = %v, want 403", err)
	}
	if err := s.DeleteProduct(ctx, 1); api.StatusCode(err) != http.StatusForbidden {
		t.Fatalf("err = %v, want 403", err)
	}
	if len(s.Products()) != 4 {
		t.Errorf("products = %d, want 4", len(s.Products()))
	}
}
