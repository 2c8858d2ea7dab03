package refserver

import (
	"time"

	"github.com/mmynk/posclient/internal/models"
	"github.com/mmynk/posclient/internal/pricing"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func (s *Backend) seed() error {
	hash, err := s.hashPassword(Password)
	if err != nil {
		return err
	}
	for _, u := range []models.User{
		{Name: "Ana Admin", Email: AdminEmail, Role: models.RoleAdmin, IsActive: true},
		{Name: "Wilmer Mesero", Email: WaiterEmail, Role: models.RoleWaiter, IsActive: true, Phone: strPtr("8888-0000")},
		{Name: "Karla Cocina", Email: KitchenEmail, Role: models.RoleKitchen, IsActive: true},
	} {
		u.ID = s.next("user")
		s.accounts = append(s.accounts, &account{user: u, hash: hash})
	}

	for _, name := range []string{"Bebidas", "Platos"} {
		s.categories = append(s.categories, models.Category{ID: s.next("category"), Name: name})
	}

	for _, p := range []models.Product{
		{Name: "Coca Cola", Price: 40, CategoryID: 1},
		{Name: "Nacatamal", Price: 85.5, CategoryID: 2},
		{Name: "Café Negro", Price: 30, CategoryID: 1},
		{Name: "Vigorón", Price: 100, CategoryID: 2},
	} {
		p.ID = s.next("product")
		p.IsActive = true
		p.CategoryName = s.categoryNameLocked(p.CategoryID)
		s.products = append(s.products, p)
	}

	s.areas = []models.Area{
		{ID: s.next("area"), Name: "Terraza", Prefix: strPtr("T"), TotalTables: intPtr(8)},
		{ID: s.next("area"), Name: "Salón", Prefix: strPtr("S"), TotalTables: intPtr(12)},
	}

	waiter := s.accounts[1].user
	for _, seed := range []struct {
		status string
		table  string
		lines  map[int64]int
	}{
		{status: models.StatusPending, table: "4", lines: map[int64]int{1: 2, 2: 1}},
		{status: models.StatusPreparing, table: "7", lines: map[int64]int{4: 1}},
	} {
		var items []models.NewOrderItem
		for _, id := range []int64{1, 2, 3, 4} {
			if qty, ok := seed.lines[id]; ok {
				items = append(items, models.NewOrderItem{ProductID: id, Quantity: qty})
			}
		}
		o := s.buildOrderLocked(waiter, models.NewOrder{
			AreaID:      1,
			TableNumber: seed.table,
			OrderType:   models.OrderTypeDineIn,
			Items:       items,
		})
		o.Status = seed.status
		s.orders = append(s.orders, o)
	}
	return nil
}

func (s *Backend) categoryNameLocked(id int64) string {
	for _, c := range s.categories {
		if c.ID == id {
			return c.Name
		}
	}
	return ""
}

func (s *Backend) productLocked(id int64) (models.Product, bool) {
	for _, p := range s.products {
		if p.ID == id {
			return p, true
		}
	}
	return models.Product{}, false
}

func (s *Backend) areaLocked(id int64) (models.Area, bool) {
	for _, a := range s.areas {
		if a.ID == id {
			return a, true
		}
	}
	return models.Area{}, false
}

// buildOrderLocked prices a submission the way the backend does. Unknown
// products and areas must be rejected by the caller first.
func (s *Backend) buildOrderLocked(waiter models.User, in models.NewOrder) *models.Order {
	area, _ := s.areaLocked(in.AreaID)
	now := time.Now().UTC().Format(time.RFC3339)

	o := &models.Order{
		ID:           s.next("order"),
		TableNumber:  in.TableNumber,
		Status:       models.StatusPending,
		Waiter:       waiter.Name,
		Area:         area.Name,
		CreatedAt:    now,
		UpdatedAt:    now,
		CustomerName: in.GuestName,
	}
	if area.Prefix != nil {
		o.TableDisplay = strPtr(*area.Prefix + "#" + in.TableNumber)
	}

	lines := make([]models.CartItem, 0, len(in.Items))
	for _, item := range in.Items {
		p, _ := s.productLocked(item.ProductID)
		lines = append(lines, models.CartItem{Product: p, Quantity: item.Quantity, Notes: item.Notes})
		o.Items = append(o.Items, models.OrderItem{
			ProductName: p.Name,
			Quantity:    item.Quantity,
			Notes:       item.Notes,
			UnitPrice:   p.Price,
		})
	}
	total := pricing.CartTotal(lines)
	o.Total = models.Money(total)
	o.FormattedTotal = strPtr(pricing.Format(total, pricing.DefaultSymbol))
	return o
}
