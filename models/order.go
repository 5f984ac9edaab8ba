package models

import "time"

const (
	OrderStatusInProgress = "in_progress"
	OrderStatusCompleted  = "completed"

	DefaultCategory      = "General"
	DefaultPaymentMethod = "cash"

	SourcePOS      = "pos"
	SourceExternal = "external"
)

// LineItem is one line of the active order, keyed by ID.
type LineItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Total    float64 `json:"total"`
	Category string  `json:"category"`
	Image    string  `json:"image,omitempty"`
}

// Order is the single active order mirrored to displays, and the shape of a history record.
type Order struct {
	OrderID        string         `json:"orderId"`
	Items          []LineItem     `json:"items"`
	Subtotal       float64        `json:"subtotal"`
	Tax            float64        `json:"tax"`
	Discount       float64        `json:"discount"`
	Total          float64        `json:"total"`
	PaymentMethod  string         `json:"paymentMethod,omitempty"`
	ReceivedAmount *float64       `json:"receivedAmount,omitempty"`
	Change         *float64       `json:"change,omitempty"`
	CustomerInfo   map[string]any `json:"customerInfo,omitempty"`
	Status         string         `json:"status"`
	Source         string         `json:"source,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
	CompletedAt    *time.Time     `json:"completedAt,omitempty"`
}

// Clone returns a deep copy so callers can never reach the owner's memory.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = make([]LineItem, len(o.Items))
	copy(c.Items, o.Items)
	if o.ReceivedAmount != nil {
		v := *o.ReceivedAmount
		c.ReceivedAmount = &v
	}
	if o.Change != nil {
		v := *o.Change
		c.Change = &v
	}
	if o.CompletedAt != nil {
		v := *o.CompletedAt
		c.CompletedAt = &v
	}
	if o.CustomerInfo != nil {
		c.CustomerInfo = cloneMap(o.CustomerInfo)
	}
	return &c
}

// IsCompleted reports whether the order has been paid and archived.
func (o *Order) IsCompleted() bool {
	return o != nil && o.Status == OrderStatusCompleted
}

// FindItem returns the index of the item with id, or -1.
func (o *Order) FindItem(id string) int {
	for i := range o.Items {
		if o.Items[i].ID == id {
			return i
		}
	}
	return -1
}

// PaymentInfo is what the cashier supplies when an order is paid.
type PaymentInfo struct {
	PaymentMethod  string
	ReceivedAmount *float64
	Change         *float64
	CustomerInfo   map[string]any
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch vv := v.(type) {
		case map[string]any:
			out[k] = cloneMap(vv)
		case []any:
			s := make([]any, len(vv))
			copy(s, vv)
			out[k] = s
		default:
			out[k] = v
		}
	}
	return out
}
