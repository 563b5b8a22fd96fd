package lifecycle

import (
	"encoding/json"
	"time"

	"github.com/example/trader-bot/internal/ledger"
)

// Audit event types published on every transition.
const (
	EventOrderSubmitted  = "OrderSubmitted"
	EventOrderConfirmed  = "OrderConfirmed"
	EventPaymentClaimed  = "PaymentClaimed"
	EventStorageAssigned = "StorageAssigned"
	EventOrderCompleted  = "OrderCompleted"
)

// Event is the envelope published to the audit stream.
type Event struct {
	Type      string          `json:"type"`
	OrderID   string          `json:"order_id"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

func newEvent(eventType, orderID string, payload any, ts time.Time) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, OrderID: orderID, Data: data, Timestamp: ts}, nil
}

type OrderSubmitted struct {
	OrderID     string           `json:"order_id"`
	UserID      string           `json:"user_id"`
	Type        ledger.OrderType `json:"type"`
	Items       []ledger.Item    `json:"items"`
	Total       int              `json:"total"`
	SubmittedAt time.Time        `json:"submitted_at"`
}

type OrderConfirmed struct {
	OrderID     string    `json:"order_id"`
	StaffID     string    `json:"staff_id"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

type PaymentClaimed struct {
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id"`
	ClaimedAt time.Time `json:"claimed_at"`
}

type StorageAssigned struct {
	OrderID    string    `json:"order_id"`
	Location   string    `json:"location"`
	Skipped    bool      `json:"skipped"`
	AssignedAt time.Time `json:"assigned_at"`
}

type OrderCompleted struct {
	OrderID     string    `json:"order_id"`
	UserID      string    `json:"user_id"`
	CompletedAt time.Time `json:"completed_at"`
}
