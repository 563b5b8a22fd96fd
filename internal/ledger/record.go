package ledger

import (
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle position of a submitted order. The enum is the
// source of truth; the Confirmed/Paid booleans on Record are maintained in
// lockstep so the persisted document keeps its historical shape.
type Status string

const (
	StatusSubmitted       Status = "submitted"
	StatusStaffConfirmed  Status = "staff_confirmed"
	StatusPaymentClaimed  Status = "payment_claimed"
	StatusStorageAssigned Status = "storage_assigned"
	StatusCompleted       Status = "completed"
)

// OrderType distinguishes the trading flow that produced an order.
type OrderType string

const (
	TypeBuy       OrderType = "buy"
	TypeSell      OrderType = "sell"
	TypeTradePost OrderType = "tradepost"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrEmptyOrder     = errors.New("order must have at least one item")
	ErrInvalidStatus  = errors.New("invalid order status transition")
	ErrOrderCompleted = errors.New("order is already completed")
)

// validTransitions defines the legal status moves. payment_claimed may jump
// straight to completed when staff skip the storage step.
var validTransitions = map[Status][]Status{
	StatusSubmitted:       {StatusStaffConfirmed},
	StatusStaffConfirmed:  {StatusPaymentClaimed},
	StatusPaymentClaimed:  {StatusStorageAssigned, StatusCompleted},
	StatusStorageAssigned: {StatusCompleted},
	StatusCompleted:       {},
}

// Item is an immutable snapshot of one cart line at submission time.
type Item struct {
	Category    string `json:"category"`
	Subcategory string `json:"subcategory,omitempty"`
	Item        string `json:"item"`
	Variant     string `json:"variant"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int    `json:"unit_price"`
	Subtotal    int    `json:"subtotal"`
}

// Record is the persisted representation of a submitted order.
type Record struct {
	OrderID          string    `json:"order_id"`
	UserID           string    `json:"user_id"`
	Type             OrderType `json:"type"`
	Items            []Item    `json:"items"`
	Total            int       `json:"total"`
	Status           Status    `json:"status"`
	Confirmed        bool      `json:"confirmed"`
	ConfirmedBy      string    `json:"confirmed_by,omitempty"`
	Paid             bool      `json:"paid"`
	PaymentMessageID *string   `json:"payment_message_id"`
	StorageLocation  string    `json:"storage_location,omitempty"`
	AccessCode       string    `json:"access_code,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// CanTransitionTo checks whether the record may move to the target status.
func (r *Record) CanTransitionTo(target Status) bool {
	allowed, ok := validTransitions[r.Status]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

func (r *Record) transitionError(target Status) error {
	if r.Status == StatusCompleted {
		return ErrOrderCompleted
	}
	return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidStatus, r.Status, target)
}

// MarkConfirmed records staff acknowledging the order is ready.
func (r *Record) MarkConfirmed(staffID string, now time.Time) error {
	if !r.CanTransitionTo(StatusStaffConfirmed) {
		return r.transitionError(StatusStaffConfirmed)
	}
	r.Status = StatusStaffConfirmed
	r.Confirmed = true
	r.ConfirmedBy = staffID
	r.UpdatedAt = now
	return nil
}

// MarkPaid records the buyer claiming payment was sent. The transition table
// makes it impossible to mark an unconfirmed order paid.
func (r *Record) MarkPaid(paymentMessageID string, now time.Time) error {
	if !r.CanTransitionTo(StatusPaymentClaimed) {
		return r.transitionError(StatusPaymentClaimed)
	}
	r.Status = StatusPaymentClaimed
	r.Paid = true
	if paymentMessageID != "" {
		r.PaymentMessageID = &paymentMessageID
	}
	r.UpdatedAt = now
	return nil
}

// AssignStorage records the storage location and access code for pickup.
func (r *Record) AssignStorage(location, accessCode string, now time.Time) error {
	if !r.CanTransitionTo(StatusStorageAssigned) {
		return r.transitionError(StatusStorageAssigned)
	}
	r.Status = StatusStorageAssigned
	r.StorageLocation = location
	r.AccessCode = accessCode
	r.UpdatedAt = now
	return nil
}

// Complete marks the order terminal. Legal from storage_assigned and, for
// the skip path, directly from payment_claimed.
func (r *Record) Complete(now time.Time) error {
	if !r.CanTransitionTo(StatusCompleted) {
		return r.transitionError(StatusCompleted)
	}
	r.Status = StatusCompleted
	r.UpdatedAt = now
	return nil
}

// Terminal reports whether the record can never change again.
func (r *Record) Terminal() bool {
	return r.Status == StatusCompleted
}
