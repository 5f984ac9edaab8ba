package models

import "time"

// Event names pushed on the real-time channel.
const (
	EventConnectionStatus = "connection_status"
	EventOrderUpdate      = "orderUpdate"
	EventStatusUpdate     = "status_update"
	EventDisplayMessage   = "display_message"

	DisplayMessageClear = "clear"
)

// Event is one named push to display subscribers.
type Event struct {
	Name    string `json:"event"`
	Payload any    `json:"data"`
}

type ConnectionStatus struct {
	Connected bool      `json:"connected"`
	ClientID  string    `json:"clientId"`
	Timestamp time.Time `json:"timestamp"`
}

type StatusUpdate struct {
	OrderID       string    `json:"orderId"`
	Status        string    `json:"status"`
	EstimatedTime string    `json:"estimatedTime,omitempty"`
	Message       string    `json:"message,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

type DisplayMessage struct {
	Message   string    `json:"message"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderID extracts the order id an event refers to, if any.
func (e Event) OrderID() string {
	switch p := e.Payload.(type) {
	case *Order:
		if p != nil {
			return p.OrderID
		}
	case StatusUpdate:
		return p.OrderID
	case *StatusUpdate:
		if p != nil {
			return p.OrderID
		}
	}
	return ""
}
