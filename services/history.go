package services

import (
	"context"
	"sync"

	"order-display/models"
)

// HistoryStore is the append-only archive of completed orders.
type HistoryStore interface {
	Archive(ctx context.Context, o *models.Order) error
	Get(ctx context.Context, orderID string) (*models.Order, error)
	List(ctx context.Context) ([]*models.Order, error)
}

// MemoryHistory keeps archived orders in process memory, in completion order.
type MemoryHistory struct {
	mu      sync.RWMutex
	records []*models.Order
	byID    map[string]*models.Order
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{byID: make(map[string]*models.Order)}
}

// Archive stores a copy of o. An id that is already archived is left untouched.
func (h *MemoryHistory) Archive(_ context.Context, o *models.Order) error {
	if o == nil {
		return nil
	}
	rec := o.Clone()
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.byID[rec.OrderID]; ok {
		return nil
	}
	h.records = append(h.records, rec)
	h.byID[rec.OrderID] = rec
	return nil
}

func (h *MemoryHistory) Get(_ context.Context, orderID string) (*models.Order, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rec, ok := h.byID[orderID]
	if !ok {
		return nil, NewNotFoundError(ErrMsgHistoryNotFound)
	}
	return rec.Clone(), nil
}

func (h *MemoryHistory) List(_ context.Context) ([]*models.Order, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*models.Order, len(h.records))
	for i, rec := range h.records {
		out[i] = rec.Clone()
	}
	return out, nil
}
