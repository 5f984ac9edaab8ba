package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"order-display/models"
)

// AddItemInput carries an add-item request. Price is a pointer so a missing price
// can be told apart from a free item.
type AddItemInput struct {
	ID    string
	Name  string
	Price *float64
	// Quantity zero means none was given and adds one.
	Quantity int
	Category string
	Image    *string
}

func (in AddItemInput) validate() error {
	if strings.TrimSpace(in.ID) == "" {
		return NewValidationError(ErrMsgIDRequired)
	}
	if strings.TrimSpace(in.Name) == "" {
		return NewValidationError(ErrMsgNameRequired)
	}
	if in.Price == nil {
		return NewValidationError(ErrMsgPriceRequired)
	}
	if *in.Price < 0 {
		return NewValidationError(ErrMsgPriceNegative)
	}
	if in.Quantity < 0 {
		return NewValidationError(ErrMsgQuantityPositive)
	}
	return nil
}

// OrderModel holds the one active order. It is not safe for concurrent use;
// OrderController serializes access.
type OrderModel struct {
	current *models.Order
	now     func() time.Time
}

func NewOrderModel(now func() time.Time) *OrderModel {
	if now == nil {
		now = time.Now
	}
	return &OrderModel{now: now}
}

// NewOrderID derives an id from the creation time plus a random suffix.
func NewOrderID(t time.Time) string {
	return fmt.Sprintf("ORD-%d-%s", t.UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func (m *OrderModel) Active() bool { return m.current != nil }

// Snapshot returns a deep copy of the active order, or nil.
func (m *OrderModel) Snapshot() *models.Order {
	return m.current.Clone()
}

func (m *OrderModel) requireActive() error {
	if m.current == nil {
		return NewNotFoundError(ErrMsgNoActiveOrder)
	}
	return nil
}

func (m *OrderModel) requireOpen() error {
	if err := m.requireActive(); err != nil {
		return err
	}
	if m.current.IsCompleted() {
		return NewValidationError(ErrMsgOrderCompleted)
	}
	return nil
}

// AddItem adds quantity of an item, opening a new order when none is in progress.
// It reports whether a new order was created.
func (m *OrderModel) AddItem(in AddItemInput) (bool, error) {
	if err := in.validate(); err != nil {
		return false, err
	}
	qty := in.Quantity
	if qty == 0 {
		qty = 1
	}
	category := in.Category
	if category == "" {
		category = models.DefaultCategory
	}

	created := false
	if m.current == nil || m.current.IsCompleted() {
		now := m.now()
		m.current = &models.Order{
			OrderID:   NewOrderID(now),
			Items:     []models.LineItem{},
			Status:    models.OrderStatusInProgress,
			Source:    models.SourcePOS,
			Timestamp: now,
		}
		created = true
	}

	if i := m.current.FindItem(in.ID); i >= 0 {
		it := &m.current.Items[i]
		it.Quantity += qty
		if in.Image != nil {
			it.Image = *in.Image
		}
		it.Total = LineTotal(it.Price, it.Quantity)
	} else {
		it := models.LineItem{
			ID:       in.ID,
			Name:     in.Name,
			Price:    *in.Price,
			Quantity: qty,
			Category: category,
		}
		if in.Image != nil {
			it.Image = *in.Image
		}
		it.Total = LineTotal(it.Price, it.Quantity)
		m.current.Items = append(m.current.Items, it)
	}

	RecomputeTotals(m.current)
	return created, nil
}

// RemoveItem drops any item with id; removing an unknown id is a no-op.
func (m *OrderModel) RemoveItem(id string) error {
	if err := m.requireOpen(); err != nil {
		return err
	}
	kept := m.current.Items[:0]
	for _, it := range m.current.Items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	m.current.Items = kept
	RecomputeTotals(m.current)
	return nil
}

// UpdateQuantity sets an item's quantity; zero or less removes it.
func (m *OrderModel) UpdateQuantity(id string, quantity int) error {
	if err := m.requireOpen(); err != nil {
		return err
	}
	i := m.current.FindItem(id)
	if i < 0 {
		return NewNotFoundError(ErrMsgItemNotFound)
	}
	if quantity <= 0 {
		return m.RemoveItem(id)
	}
	it := &m.current.Items[i]
	it.Quantity = quantity
	it.Total = LineTotal(it.Price, quantity)
	RecomputeTotals(m.current)
	return nil
}

// ApplyDiscount replaces the order discount. No upper bound is enforced, so the
// total may go negative.
func (m *OrderModel) ApplyDiscount(amount *float64) error {
	if err := m.requireOpen(); err != nil {
		return err
	}
	d := 0.0
	if amount != nil {
		d = Round2(*amount)
	}
	m.current.Discount = d
	RecomputeTotals(m.current)
	return nil
}

// Complete stamps payment details and marks the order completed. The returned
// function restores the previous state if archival fails.
func (m *OrderModel) Complete(p models.PaymentInfo) (rollback func(), err error) {
	if err := m.requireOpen(); err != nil {
		return nil, err
	}
	prev := m.current.Clone()

	method := p.PaymentMethod
	if method == "" {
		method = models.DefaultPaymentMethod
	}
	now := m.now()
	m.current.PaymentMethod = method
	m.current.ReceivedAmount = p.ReceivedAmount
	m.current.Change = p.Change
	if p.CustomerInfo != nil {
		m.current.CustomerInfo = p.CustomerInfo
	}
	m.current.Status = models.OrderStatusCompleted
	m.current.CompletedAt = &now
	RecomputeTotals(m.current)

	return func() { m.current = prev }, nil
}

// Replace installs an externally built order wholesale.
func (m *OrderModel) Replace(o *models.Order) {
	now := m.now()
	next := o.Clone()
	if next.OrderID == "" {
		next.OrderID = NewOrderID(now)
	}
	if next.Items == nil {
		next.Items = []models.LineItem{}
	}
	for i := range next.Items {
		if next.Items[i].Category == "" {
			next.Items[i].Category = models.DefaultCategory
		}
	}
	if next.Timestamp.IsZero() {
		next.Timestamp = now
	}
	if next.Source == "" {
		next.Source = models.SourceExternal
	}
	next.Status = models.OrderStatusInProgress
	next.CompletedAt = nil
	RecomputeTotals(next)
	m.current = next
}

// Reset drops the active order.
func (m *OrderModel) Reset() {
	m.current = nil
}
