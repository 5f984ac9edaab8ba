package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"order-display/models"
)

const DefaultClearDelay = 3 * time.Second

type ControllerConfig struct {
	// ClearDelay is how long a legacy completion stays on screen before it is cleared.
	ClearDelay time.Duration
	Now        func() time.Time
}

/*
OrderController is the only write entry point for the active order.

Every operation runs validate -> mutate -> recompute -> archive -> publish as a
single critical section, so subscribers never see a half-applied change and
history always holds an order before its completion is announced.
*/
type OrderController struct {
	mu      sync.Mutex
	model   *OrderModel
	history HistoryStore
	hub     *Hub
	cfg     ControllerConfig
	log     *zap.Logger

	pendingClear *ScheduledTask
}

func NewOrderController(history HistoryStore, hub *Hub, cfg ControllerConfig, log *zap.Logger) *OrderController {
	if cfg.ClearDelay <= 0 {
		cfg.ClearDelay = DefaultClearDelay
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	if history == nil {
		history = NewMemoryHistory()
	}
	if hub == nil {
		hub = NewHub(HubConfig{}, log)
	}
	return &OrderController{
		model:   NewOrderModel(cfg.Now),
		history: history,
		hub:     hub,
		cfg:     cfg,
		log:     log.Named("orders"),
	}
}

//
// ──────────────────────────────────────────────────────────
// Item mutations
// ──────────────────────────────────────────────────────────
//

func (c *OrderController) AddItem(_ context.Context, in AddItemInput) (*models.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	created, err := c.model.AddItem(in)
	if err != nil {
		return nil, err
	}
	if created {
		c.cancelPendingClearLocked()
		c.log.Info("order opened", zap.String("order_id", c.model.current.OrderID))
	}
	c.log.Info("item added", zap.String("order_id", c.model.current.OrderID), zap.String("item_id", in.ID))
	return c.publishOrderLocked(), nil
}

func (c *OrderController) RemoveItem(_ context.Context, id string) (*models.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if strings.TrimSpace(id) == "" {
		return nil, NewValidationError(ErrMsgIDRequired)
	}
	if err := c.model.RemoveItem(id); err != nil {
		return nil, err
	}
	c.log.Info("item removed", zap.String("order_id", c.model.current.OrderID), zap.String("item_id", id))
	return c.publishOrderLocked(), nil
}

func (c *OrderController) UpdateQuantity(_ context.Context, id string, quantity *int) (*models.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if strings.TrimSpace(id) == "" {
		return nil, NewValidationError(ErrMsgIDRequired)
	}
	if quantity == nil {
		return nil, NewValidationError(ErrMsgQuantityRequired)
	}
	if err := c.model.UpdateQuantity(id, *quantity); err != nil {
		return nil, err
	}
	c.log.Info("quantity updated",
		zap.String("order_id", c.model.current.OrderID),
		zap.String("item_id", id),
		zap.Int("quantity", *quantity))
	return c.publishOrderLocked(), nil
}

func (c *OrderController) ApplyDiscount(_ context.Context, amount *float64) (*models.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.model.ApplyDiscount(amount); err != nil {
		return nil, err
	}
	c.log.Info("discount applied",
		zap.String("order_id", c.model.current.OrderID),
		zap.Float64("discount", c.model.current.Discount))
	return c.publishOrderLocked(), nil
}

//
// ──────────────────────────────────────────────────────────
// Completion
// ──────────────────────────────────────────────────────────
//

// SaveCompletedOrder archives the paid order and announces it with an orderUpdate.
// The order stays on screen until FinalizeAndClear or Clear.
func (c *OrderController) SaveCompletedOrder(ctx context.Context, p models.PaymentInfo) (*models.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.completeLocked(ctx, p); err != nil {
		return nil, err
	}
	return c.publishOrderLocked(), nil
}

// CompleteOrder is the legacy completion: archive, announce a status_update and
// clear the display after the configured delay.
func (c *OrderController) CompleteOrder(ctx context.Context, p models.PaymentInfo) (*models.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.completeLocked(ctx, p); err != nil {
		return nil, err
	}
	snap := c.model.Snapshot()
	c.hub.Publish(models.Event{
		Name: models.EventStatusUpdate,
		Payload: models.StatusUpdate{
			OrderID:   snap.OrderID,
			Status:    models.OrderStatusCompleted,
			Message:   "Order completed",
			Timestamp: c.cfg.Now(),
		},
	})
	c.scheduleClearLocked(snap.OrderID)
	return snap, nil
}

func (c *OrderController) completeLocked(ctx context.Context, p models.PaymentInfo) error {
	rollback, err := c.model.Complete(p)
	if err != nil {
		return err
	}
	snap := c.model.Snapshot()
	if err := c.history.Archive(ctx, snap); err != nil {
		rollback()
		c.log.Error("archive failed, completion rolled back", zap.String("order_id", snap.OrderID), zap.Error(err))
		return NewInternalError(ErrMsgArchiveFailed, err)
	}
	c.cancelPendingClearLocked()
	c.log.Info("order completed",
		zap.String("order_id", snap.OrderID),
		zap.String("payment_method", snap.PaymentMethod),
		zap.Float64("total", snap.Total))
	return nil
}

//
// ──────────────────────────────────────────────────────────
// Clearing
// ──────────────────────────────────────────────────────────
//

// FinalizeAndClear drops a completed order from the display.
func (c *OrderController) FinalizeAndClear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.model.current
	if cur == nil {
		return NewNotFoundError(ErrMsgNoActiveOrder)
	}
	if !cur.IsCompleted() {
		return NewValidationError("order is not completed")
	}
	c.clearLocked("completed")
	return nil
}

// Cancel discards the in-progress order without archiving it.
func (c *OrderController) Cancel(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.model.requireOpen(); err != nil {
		return err
	}
	c.log.Info("order cancelled", zap.String("order_id", c.model.current.OrderID))
	c.clearLocked("cancelled")
	return nil
}

// Clear drops whatever order is active, archived or not, and tells displays to blank.
func (c *OrderController) Clear(_ context.Context, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if reason == "" {
		reason = "manual"
	}
	c.clearLocked(reason)
}

func (c *OrderController) clearLocked(reason string) {
	c.cancelPendingClearLocked()
	c.model.Reset()
	c.hub.Publish(c.clearEvent(reason))
	c.log.Info("display cleared", zap.String("reason", reason))
}

func (c *OrderController) clearEvent(reason string) models.Event {
	return models.Event{
		Name: models.EventDisplayMessage,
		Payload: models.DisplayMessage{
			Message:   models.DisplayMessageClear,
			Reason:    reason,
			Timestamp: c.cfg.Now(),
		},
	}
}

func (c *OrderController) scheduleClearLocked(orderID string) {
	c.cancelPendingClearLocked()
	var task *ScheduledTask
	task = Schedule(c.cfg.ClearDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		// Pre-empted after it was scheduled.
		if c.pendingClear != task {
			return
		}
		c.pendingClear = nil
		cur := c.model.current
		if cur == nil || cur.OrderID != orderID || !cur.IsCompleted() {
			return
		}
		c.clearLocked("completed")
	})
	c.pendingClear = task
	c.log.Debug("clear scheduled", zap.String("order_id", orderID), zap.Time("due", task.Due()))
}

func (c *OrderController) cancelPendingClearLocked() {
	if c.pendingClear != nil {
		c.pendingClear.Cancel()
		c.pendingClear = nil
	}
}

// ClearPending reports whether a delayed clear is scheduled.
func (c *OrderController) ClearPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingClear != nil
}

//
// ──────────────────────────────────────────────────────────
// External orders and status
// ──────────────────────────────────────────────────────────
//

// InjectExternalOrder replaces the active order with one built elsewhere.
func (c *OrderController) InjectExternalOrder(_ context.Context, o *models.Order) (*models.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if o == nil || o.Items == nil {
		return nil, NewValidationError(ErrMsgItemsRequired)
	}
	for _, it := range o.Items {
		if strings.TrimSpace(it.ID) == "" {
			return nil, NewValidationError(ErrMsgIDRequired)
		}
		if it.Price < 0 {
			return nil, NewValidationError(ErrMsgPriceNegative)
		}
		if it.Quantity <= 0 {
			return nil, NewValidationError("item quantity must be positive")
		}
	}
	c.cancelPendingClearLocked()
	c.model.Replace(o)
	c.log.Info("external order injected",
		zap.String("order_id", c.model.current.OrderID),
		zap.Int("items", len(c.model.current.Items)))
	return c.publishOrderLocked(), nil
}

// UpdateStatus broadcasts a status change for an order without touching the active order.
func (c *OrderController) UpdateStatus(_ context.Context, orderID, status, estimatedTime, message string) (models.StatusUpdate, error) {
	if strings.TrimSpace(orderID) == "" {
		return models.StatusUpdate{}, NewValidationError(ErrMsgOrderIDRequired)
	}
	if strings.TrimSpace(status) == "" {
		return models.StatusUpdate{}, NewValidationError(ErrMsgStatusRequired)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	upd := models.StatusUpdate{
		OrderID:       orderID,
		Status:        status,
		EstimatedTime: estimatedTime,
		Message:       message,
		Timestamp:     c.cfg.Now(),
	}
	c.hub.Publish(models.Event{Name: models.EventStatusUpdate, Payload: upd})
	c.log.Info("status broadcast", zap.String("order_id", orderID), zap.String("status", status))
	return upd, nil
}

//
// ──────────────────────────────────────────────────────────
// Queries and subscribers
// ──────────────────────────────────────────────────────────
//

// Current returns a copy of the active order, or nil.
func (c *OrderController) Current() *models.Order {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model.Snapshot()
}

func (c *OrderController) History(ctx context.Context) ([]*models.Order, error) {
	list, err := c.history.List(ctx)
	if err != nil {
		return nil, NewInternalError("failed to load history", err)
	}
	return list, nil
}

func (c *OrderController) HistoryRecord(ctx context.Context, orderID string) (*models.Order, error) {
	rec, err := c.history.Get(ctx, orderID)
	if err != nil {
		if KindOf(err) == KindNotFound {
			return nil, err
		}
		return nil, NewInternalError("failed to load history record", err)
	}
	return rec, nil
}

// Subscribe attaches a display. It first receives connection_status, then the
// current order (or a clear message when there is none), then every later event.
func (c *OrderController) Subscribe(sub Subscriber) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	hello := models.Event{
		Name: models.EventConnectionStatus,
		Payload: models.ConnectionStatus{
			Connected: true,
			ClientID:  sub.ID(),
			Timestamp: c.cfg.Now(),
		},
	}
	return c.hub.Subscribe(sub, hello, c.snapshotEventLocked())
}

// AttachSink registers an in-process consumer such as the Kafka or Telegram
// forwarder. It receives events published from now on, and falling behind
// costs it events rather than its registration.
func (c *OrderController) AttachSink(sub Subscriber) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hub.SubscribeSink(sub)
}

func (c *OrderController) Unsubscribe(id string) {
	c.hub.Unsubscribe(id)
}

func (c *OrderController) Stats() HubStats {
	return c.hub.Stats()
}

// Close cancels any pending delayed clear.
func (c *OrderController) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelPendingClearLocked()
}

func (c *OrderController) snapshotEventLocked() models.Event {
	snap := c.model.Snapshot()
	if snap == nil {
		return c.clearEvent("no active order")
	}
	return models.Event{Name: models.EventOrderUpdate, Payload: snap}
}

// publishOrderLocked pushes the current order and returns a separate copy for the caller.
func (c *OrderController) publishOrderLocked() *models.Order {
	c.hub.Publish(models.Event{Name: models.EventOrderUpdate, Payload: c.model.Snapshot()})
	return c.model.Snapshot()
}
