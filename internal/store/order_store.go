package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/mmynk/posclient/internal/api"
	"github.com/mmynk/posclient/internal/metrics"
	"github.com/mmynk/posclient/internal/models"
)

// OrderStore lists submitted orders and moves them through their statuses.
type OrderStore struct {
	backend  Backend
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mu      sync.Mutex
	orders  []*models.Order
	loading bool

	// inflight holds order IDs with a status update awaiting the backend.
	inflight map[int64]struct{}
}

// NewOrderStore creates an empty order list.
func NewOrderStore(backend Backend, notifier Notifier, m *metrics.Metrics, logger *slog.Logger) *OrderStore {
	logger = loggerOr(logger)
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}
	return &OrderStore{
		backend:  backend,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		inflight: make(map[int64]struct{}),
	}
}

// FetchOrders replaces the list with the backend's current snapshot.
func (s *OrderStore) FetchOrders(ctx context.Context) error {
	s.setLoading(true)
	defer s.setLoading(false)

	body, err := s.backend.GetJSON(ctx, "/orders")
	var orders []models.Order
	if err == nil {
		orders, err = api.UnwrapList[models.Order](body)
	}
	if err != nil {
		s.logger.Error("Error fetching orders", "error", err)
		return err
	}

	list := make([]*models.Order, len(orders))
	for i := range orders {
		list[i] = &orders[i]
	}
	s.mu.Lock()
	s.orders = list
	s.mu.Unlock()
	return nil
}

// UpdateOrderStatus applies status locally at once, then confirms it with the
// backend. If the backend rejects it, the prior status is restored and the
// error returned. Only one update per order may be in flight; a concurrent
// call for the same order fails with ErrUpdateInFlight.
func (s *OrderStore) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	s.mu.Lock()
	order := s.findLocked(orderID)
	if order == nil {
		s.mu.Unlock()
		s.logger.Error("Order not found", "order_id", orderID)
		return ErrOrderNotFound
	}
	if _, busy := s.inflight[orderID]; busy {
		s.mu.Unlock()
		return ErrUpdateInFlight
	}
	s.inflight[orderID] = struct{}{}
	previous := order.Status
	order.Status = status
	s.mu.Unlock()

	_, err := s.backend.PatchJSON(ctx, fmt.Sprintf("/orders/%d/status", orderID), map[string]string{"status": status})

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, orderID)
	if err != nil {
		order.Status = previous
		s.metrics.Rollback()
		s.logger.Error("Error updating order status",
			"order_id", orderID,
			"status", status,
			"restored", previous,
			"error", err,
		)
		return err
	}
	s.logger.Info("Order status updated", "order_id", orderID, "from", previous, "to", status)
	return nil
}

// DownloadInvoice saves the order's invoice into dir and returns the file path.
// Success and failure are also surfaced as notifications; no state changes.
func (s *OrderStore) DownloadInvoice(ctx context.Context, orderID int64, dir string) (string, error) {
	f, err := s.backend.Download(ctx, fmt.Sprintf("/orders/%d/invoice", orderID))
	if err != nil {
		s.logger.Error("Error downloading invoice", "order_id", orderID, "error", err)
		s.notifier.Notify(LevelError, fmt.Sprintf("Could not download the invoice for order #%d.", orderID))
		return "", err
	}

	name := invoiceFileName(f.Name, orderID)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, f.Data, 0o644); err != nil {
		s.logger.Error("Error saving invoice", "order_id", orderID, "path", path, "error", err)
		s.notifier.Notify(LevelError, fmt.Sprintf("Could not save the invoice for order #%d.", orderID))
		return "", fmt.Errorf("failed to save invoice: %w", err)
	}

	s.notifier.Notify(LevelSuccess, fmt.Sprintf("Invoice for order #%d downloaded.", orderID))
	return path, nil
}

// invoiceFileName keeps only the last element of the advertised name and
// falls back to invoice-{id}.pdf when nothing usable is left.
func invoiceFileName(advertised string, orderID int64) string {
	name := filepath.Base(filepath.Clean("/" + advertised))
	switch name {
	case "", ".", "..", string(filepath.Separator):
		return fmt.Sprintf("invoice-%d.pdf", orderID)
	}
	return name
}

// Orders returns a snapshot of the list.
func (s *OrderStore) Orders() []models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Order, len(s.orders))
	for i, o := range s.orders {
		out[i] = *o
	}
	return out
}

// Order returns a snapshot of one order.
func (s *OrderStore) Order(orderID int64) (models.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o := s.findLocked(orderID); o != nil {
		return *o, true
	}
	return models.Order{}, false
}

// ByStatus returns the orders currently in status, e.g. for a kitchen board.
func (s *OrderStore) ByStatus(status string) []models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Order
	for _, o := range s.orders {
		if o.Status == status {
			out = append(out, *o)
		}
	}
	return out
}

// IsLoading reports whether FetchOrders is in progress.
func (s *OrderStore) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Reset drops the cached list.
func (s *OrderStore) Reset() {
	s.mu.Lock()
	s.orders = nil
	s.mu.Unlock()
}

func (s *OrderStore) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

func (s *OrderStore) findLocked(orderID int64) *models.Order {
	for _, o := range s.orders {
		if o.ID == orderID {
			return o
		}
	}
	return nil
}
