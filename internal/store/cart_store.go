package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mmynk/posclient/internal/api"
	"github.com/mmynk/posclient/internal/metrics"
	"github.com/mmynk/posclient/internal/models"
	"github.com/mmynk/posclient/internal/pricing"
)

// CartStore assembles the order being taken at a table.
type CartStore struct {
	backend Backend
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu           sync.Mutex
	items        []models.CartItem
	tableNumber  string
	customerName string
	areas        []models.Area
	areaID       int64 // 0 means none selected
	sending      bool
}

// NewCartStore creates an empty cart.
func NewCartStore(backend Backend, m *metrics.Metrics, logger *slog.Logger) *CartStore {
	return &CartStore{backend: backend, metrics: m, logger: loggerOr(logger)}
}

// AddItem adds one unit of product, appending a line the first time it is seen.
func (c *CartStore) AddItem(product models.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexOf(product.ID); i >= 0 {
		c.items[i].Quantity++
		return
	}
	c.items = append(c.items, models.CartItem{Product: product, Quantity: 1})
}

// DecreaseItem removes one unit; the line disappears when its quantity would reach zero.
func (c *CartStore) DecreaseItem(productID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexOf(productID)
	if i < 0 {
		return
	}
	if c.items[i].Quantity > 1 {
		c.items[i].Quantity--
		return
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
}

// RemoveItem drops the line for productID.
func (c *CartStore) RemoveItem(productID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexOf(productID); i >= 0 {
		c.items = append(c.items[:i], c.items[i+1:]...)
	}
}

// SetNotes replaces the kitchen notes of a line. It reports whether the line exists.
func (c *CartStore) SetNotes(productID int64, notes string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexOf(productID)
	if i < 0 {
		return false
	}
	c.items[i].Notes = notes
	return true
}

// ClearCart empties the lines together with the table number and customer name.
func (c *CartStore) ClearCart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

// Reset returns the cart to its initial state, forgetting the loaded areas
// and the area selection as well.
func (c *CartStore) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
	c.areas = nil
	c.areaID = 0
}

func (c *CartStore) clearLocked() {
	c.items = nil
	c.tableNumber = ""
	c.customerName = ""
}

// SetTable sets the table identifier for the next order.
func (c *CartStore) SetTable(table string) {
	c.mu.Lock()
	c.tableNumber = table
	c.mu.Unlock()
}

// SetCustomerName sets the walk-in guest name for the next order.
func (c *CartStore) SetCustomerName(name string) {
	c.mu.Lock()
	c.customerName = name
	c.mu.Unlock()
}

// SelectArea chooses the service area. Zero clears the selection.
func (c *CartStore) SelectArea(id int64) {
	c.mu.Lock()
	c.areaID = id
	c.mu.Unlock()
}

// AreaID returns the selected area.
func (c *CartStore) AreaID() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.areaID, c.areaID != 0
}

// Items returns a copy of the lines in insertion order.
func (c *CartStore) Items() []models.CartItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.CartItem(nil), c.items...)
}

// Total is the sum of price × quantity.
func (c *CartStore) Total() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return pricing.CartTotal(c.items)
}

// ItemCount is the sum of quantities.
func (c *CartStore) ItemCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return pricing.ItemCount(c.items)
}

// TableNumber returns the table identifier.
func (c *CartStore) TableNumber() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tableNumber
}

// CustomerName returns the guest name.
func (c *CartStore) CustomerName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.customerName
}

// Areas returns the loaded service areas.
func (c *CartStore) Areas() []models.Area {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Area(nil), c.areas...)
}

// IsSending reports whether SendOrder is waiting on the backend.
func (c *CartStore) IsSending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sending
}

// FetchAreas loads the service areas and selects the first one if none is selected.
func (c *CartStore) FetchAreas(ctx context.Context) error {
	body, err := c.backend.GetJSON(ctx, "/areas")
	var areas []models.Area
	if err == nil {
		areas, err = api.UnwrapList[models.Area](body)
	}
	if err != nil {
		c.logger.Error("Error loading areas", "error", err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.areas = areas
	if c.areaID == 0 && len(areas) > 0 {
		c.areaID = areas[0].ID
	}
	c.logger.Debug("Areas loaded", "count", len(areas), "selected", c.areaID)
	return nil
}

// SendOrder submits the cart as a dine-in order. An empty cart is a no-op.
// Without a selected area it fails with ErrNoArea before any request. On
// success the cart is cleared and the default area reselected; on failure the
// cart is left as it was.
func (c *CartStore) SendOrder(ctx context.Context) error {
	c.mu.Lock()
	if len(c.items) == 0 {
		c.mu.Unlock()
		return nil
	}
	if c.areaID == 0 {
		c.mu.Unlock()
		return ErrNoArea
	}
	if c.sending {
		c.mu.Unlock()
		return ErrOrderSending
	}
	payload := c.payloadLocked()
	c.sending = true
	c.mu.Unlock()

	_, err := c.backend.PostJSON(ctx, "/orders", payload)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sending = false
	if err != nil {
		c.logger.Error("Error sending order", "area_id", payload.AreaID, "table", payload.TableNumber, "error", err)
		return err
	}

	c.clearLocked()
	if len(c.areas) > 0 {
		c.areaID = c.areas[0].ID
	}
	c.metrics.OrderSubmitted()
	c.logger.Info("Order sent", "area_id", payload.AreaID, "table", payload.TableNumber, "lines", len(payload.Items))
	return nil
}

func (c *CartStore) payloadLocked() models.NewOrder {
	order := models.NewOrder{
		AreaID:      c.areaID,
		TableNumber: c.tableNumber,
		OrderType:   models.OrderTypeDineIn,
		Items:       make([]models.NewOrderItem, 0, len(c.items)),
	}
	for _, item := range c.items {
		order.Items = append(order.Items, models.NewOrderItem{
			ProductID: item.Product.ID,
			Quantity:  item.Quantity,
			Notes:     item.Notes,
		})
	}
	if c.customerName != "" {
		name := c.customerName
		order.GuestName = &name
	}
	return order
}

func (c *CartStore) indexOf(productID int64) int {
	for i := range c.items {
		if c.items[i].Product.ID == productID {
			return i
		}
	}
	return -1
}
