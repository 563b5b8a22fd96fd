// Package notification turns the order event stream into a flat audit trail.
// It runs as its own consumer group so the bot never waits on audit writes.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/example/trader-bot/internal/lifecycle"
)

// Handler consumes order lifecycle events and appends one line per event.
type Handler struct {
	out io.Writer
}

// NewHandler creates a handler writing the audit trail to out.
func NewHandler(out io.Writer) *Handler {
	return &Handler{out: out}
}

// HandleEvent processes an event from Kafka
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var event lifecycle.Event
	if err := json.Unmarshal(value, &event); err != nil {
		log.Printf("[Notifier] Failed to unmarshal event: %v", err)
		return err
	}

	line, err := h.describe(event)
	if err != nil {
		log.Printf("[Notifier] Failed to decode %s for order %s: %v", event.Type, event.OrderID, err)
		return err
	}

	timestamp := event.Timestamp.Format("2006-01-02 15:04:05")
	_, err = fmt.Fprintf(h.out, "[%s] %s\n", timestamp, line)
	return err
}

func (h *Handler) describe(event lifecycle.Event) (string, error) {
	switch event.Type {
	case lifecycle.EventOrderSubmitted:
		var e lifecycle.OrderSubmitted
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return "", err
		}
		return fmt.Sprintf("order %s submitted by %s (%s, %d items, %d coins)",
			e.OrderID, e.UserID, e.Type, len(e.Items), e.Total), nil

	case lifecycle.EventOrderConfirmed:
		var e lifecycle.OrderConfirmed
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return "", err
		}
		return fmt.Sprintf("order %s confirmed by staff %s", e.OrderID, e.StaffID), nil

	case lifecycle.EventPaymentClaimed:
		var e lifecycle.PaymentClaimed
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return "", err
		}
		return fmt.Sprintf("order %s payment claimed by %s", e.OrderID, e.UserID), nil

	case lifecycle.EventStorageAssigned:
		var e lifecycle.StorageAssigned
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return "", err
		}
		if e.Skipped {
			return fmt.Sprintf("order %s storage skipped", e.OrderID), nil
		}
		return fmt.Sprintf("order %s assigned to %s", e.OrderID, e.Location), nil

	case lifecycle.EventOrderCompleted:
		var e lifecycle.OrderCompleted
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return "", err
		}
		return fmt.Sprintf("order %s completed for %s", e.OrderID, e.UserID), nil

	default:
		return fmt.Sprintf("order %s unrecognized event %s", event.OrderID, event.Type), nil
	}
}
