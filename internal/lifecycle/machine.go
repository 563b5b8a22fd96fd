// Package lifecycle drives a submitted order through its confirmation,
// payment, storage and pickup steps. Transitions are triggered only by
// acknowledgement events matched against notifications this machine
// dispatched earlier; the correlation table is consume-once, which makes
// re-delivered acknowledgements no-ops.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/trader-bot/internal/gateway"
	"github.com/example/trader-bot/internal/ledger"
)

var (
	ErrNotStaff          = errors.New("only staff can perform this step")
	ErrNotYourOrder      = errors.New("not your order")
	ErrNoConfirmedOrder  = errors.New("no confirmed unpaid order found")
	ErrInvalidAccessCode = errors.New("access code must be numeric")
)

// step says which transition a dispatched notification is waiting on.
type step int

const (
	stepStaffConfirm step = iota
	stepPaymentClaim
	stepStorageSelect
	stepPickupConfirm
)

// pending correlates a dispatched notification with the transition it can
// trigger. It carries the structured total so no numeric state is ever
// re-derived from rendered message text.
type pending struct {
	OrderID string
	BuyerID string
	StaffID string
	Total   int
	Step    step
	Summary string // original staff-channel summary, kept for edits
}

// Publisher emits lifecycle audit events. A nil publisher disables auditing.
type Publisher interface {
	Publish(ctx context.Context, key string, value any) error
}

// Config holds the channel and role wiring the machine needs.
type Config struct {
	StaffChannelID string
	StaffRoleIDs   []string
}

// Machine is the order lifecycle core.
type Machine struct {
	mu      sync.Mutex
	pending map[string]pending // notification message ID -> pending transition

	ledger ledger.Store
	gw     gateway.ChatGateway
	events Publisher
	cfg    Config
	now    func() time.Time
}

func New(store ledger.Store, gw gateway.ChatGateway, events Publisher, cfg Config) *Machine {
	return &Machine{
		pending: make(map[string]pending),
		ledger:  store,
		gw:      gw,
		events:  events,
		cfg:     cfg,
		now:     time.Now,
	}
}

func (m *Machine) isStaff(roles []string) bool {
	for _, r := range roles {
		for _, staff := range m.cfg.StaffRoleIDs {
			if r == staff {
				return true
			}
		}
	}
	return false
}

func (m *Machine) register(messageID string, p pending) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[messageID] = p
}

func (m *Machine) lookup(messageID string) (pending, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pending[messageID]
	return p, ok
}

// consume removes the entry, reporting whether this caller won it. Exactly
// one of two racing acknowledgements gets the transition.
func (m *Machine) consume(messageID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pending[messageID]; !ok {
		return false
	}
	delete(m.pending, messageID)
	return true
}

func (m *Machine) publish(ctx context.Context, eventType, orderID string, payload any) {
	if m.events == nil {
		return
	}
	ev, err := newEvent(eventType, orderID, payload, m.now())
	if err == nil {
		err = m.events.Publish(ctx, orderID, ev)
	}
	if err != nil {
		log.Printf("[Lifecycle] Failed to publish %s for order %s: %v", eventType, orderID, err)
	}
}

// Submit finalizes a non-empty cart: appends the ledger record, posts the
// itemized summary to the staff channel, and waits for staff confirmation.
func (m *Machine) Submit(ctx context.Context, userID string, orderType ledger.OrderType, items []ledger.Item) (*ledger.Record, error) {
	if len(items) == 0 {
		return nil, ledger.ErrEmptyOrder
	}

	now := m.now()
	total := 0
	for _, it := range items {
		total += it.Subtotal
	}

	rec := ledger.Record{
		OrderID:   uuid.New().String(),
		UserID:    userID,
		Type:      orderType,
		Items:     items,
		Total:     total,
		Status:    ledger.StatusSubmitted,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.ledger.Append(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to record order: %w", err)
	}

	summary := renderOrderSummary(&rec)
	msgID, err := m.gw.PostToChannel(ctx, m.cfg.StaffChannelID, summary)
	if err != nil {
		return nil, fmt.Errorf("failed to post order to staff channel: %w", err)
	}

	m.register(msgID, pending{
		OrderID: rec.OrderID,
		BuyerID: userID,
		Total:   total,
		Step:    stepStaffConfirm,
		Summary: summary,
	})

	m.publish(ctx, EventOrderSubmitted, rec.OrderID, OrderSubmitted{
		OrderID: rec.OrderID, UserID: userID, Type: orderType,
		Items: items, Total: total, SubmittedAt: now,
	})
	return &rec, nil
}

// HandleAcknowledge advances the lifecycle when an affirmative signal lands
// on a notification this machine is waiting on. Unknown messages and
// already-consumed entries are ignored.
func (m *Machine) HandleAcknowledge(ctx context.Context, ev gateway.AcknowledgeEvent) error {
	if ev.Signal != gateway.SignalAffirmative {
		return nil
	}
	p, ok := m.lookup(ev.MessageID)
	if !ok {
		return nil
	}

	switch p.Step {
	case stepStaffConfirm:
		return m.confirmOrder(ctx, ev, p)
	case stepPaymentClaim:
		return m.claimPaymentAck(ctx, ev, p)
	case stepStorageSelect:
		// Fulfillment needs a storage selection, not a bare acknowledgement.
		return nil
	case stepPickupConfirm:
		return m.confirmPickup(ctx, ev, p)
	}
	return nil
}

func (m *Machine) confirmOrder(ctx context.Context, ev gateway.AcknowledgeEvent, p pending) error {
	if !m.isStaff(ev.ActorRoles) {
		m.notify(ctx, ev.ActorID, "Only staff can confirm trader orders.")
		return ErrNotStaff
	}
	if !m.consume(ev.MessageID) {
		return nil
	}
	now := m.now()

	rec, err := m.ledger.Update(ctx, p.OrderID, func(r *ledger.Record) error {
		return r.MarkConfirmed(ev.ActorID, now)
	})
	if err != nil {
		log.Printf("[Lifecycle] Confirm of order %s failed: %v", p.OrderID, err)
		return err
	}

	if err := m.gw.EditMessage(ctx, ev.MessageID, renderConfirmedSummary(ev.ActorID, p.Summary)); err != nil {
		log.Printf("[Lifecycle] Failed to edit confirmation message %s: %v", ev.MessageID, err)
	}

	dmID, err := m.gw.SendDirect(ctx, p.BuyerID, renderPaymentRequest(ev.ActorID, p.Total))
	if err != nil {
		return fmt.Errorf("failed to send payment request: %w", err)
	}
	m.register(dmID, pending{
		OrderID: p.OrderID,
		BuyerID: p.BuyerID,
		StaffID: ev.ActorID,
		Total:   p.Total,
		Step:    stepPaymentClaim,
	})

	m.publish(ctx, EventOrderConfirmed, rec.OrderID, OrderConfirmed{
		OrderID: rec.OrderID, StaffID: ev.ActorID, ConfirmedAt: now,
	})
	return nil
}

func (m *Machine) claimPaymentAck(ctx context.Context, ev gateway.AcknowledgeEvent, p pending) error {
	if ev.ActorID != p.BuyerID {
		m.notify(ctx, ev.ActorID, "This is not your order.")
		return ErrNotYourOrder
	}
	if !m.consume(ev.MessageID) {
		return nil
	}
	return m.claimPayment(ctx, p, ev.MessageID)
}

// claimPayment performs the PaymentClaimed transition. paymentDM is the
// payment-request notification to rewrite, empty when the claim came in
// through the command surface after a restart.
func (m *Machine) claimPayment(ctx context.Context, p pending, paymentDM string) error {
	now := m.now()

	fulfillID, err := m.gw.PostToChannel(ctx, m.cfg.StaffChannelID, renderFulfillmentRequest(p.StaffID, p.BuyerID))
	if err != nil {
		return fmt.Errorf("failed to post fulfillment request: %w", err)
	}

	rec, err := m.ledger.Update(ctx, p.OrderID, func(r *ledger.Record) error {
		return r.MarkPaid(fulfillID, now)
	})
	if err != nil {
		log.Printf("[Lifecycle] Payment claim for order %s failed: %v", p.OrderID, err)
		return err
	}

	if paymentDM != "" {
		if err := m.gw.EditMessage(ctx, paymentDM, renderPaymentClaimed(p.StaffID, p.Total)); err != nil {
			log.Printf("[Lifecycle] Failed to edit payment message %s: %v", paymentDM, err)
		}
	}

	m.register(fulfillID, pending{
		OrderID: p.OrderID,
		BuyerID: p.BuyerID,
		StaffID: p.StaffID,
		Total:   p.Total,
		Step:    stepStorageSelect,
	})

	m.publish(ctx, EventPaymentClaimed, rec.OrderID, PaymentClaimed{
		OrderID: rec.OrderID, UserID: p.BuyerID, ClaimedAt: now,
	})
	return nil
}

// ClaimPayment is the command-surface path into the PaymentClaimed
// transition: find the buyer's latest confirmed unpaid order and claim it.
func (m *Machine) ClaimPayment(ctx context.Context, userID string) error {
	rec, err := m.ledger.FindLatestUnpaidConfirmed(ctx, userID)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrNoConfirmedOrder
	}

	// Consume the payment-request entry if one is live, so a later
	// acknowledgement of the DM cannot double-claim.
	paymentDM := ""
	m.mu.Lock()
	for msgID, p := range m.pending {
		if p.OrderID == rec.OrderID && p.Step == stepPaymentClaim {
			paymentDM = msgID
			delete(m.pending, msgID)
			break
		}
	}
	m.mu.Unlock()

	return m.claimPayment(ctx, pending{
		OrderID: rec.OrderID,
		BuyerID: userID,
		StaffID: rec.ConfirmedBy,
		Total:   rec.Total,
	}, paymentDM)
}

// HandleStorageSelect processes a staff storage selection on a fulfillment
// notification. A concrete location requires a numeric access code; the
// skip location completes the order with a direct delivery notice.
func (m *Machine) HandleStorageSelect(ctx context.Context, ev gateway.StorageSelectEvent) error {
	p, ok := m.lookup(ev.MessageID)
	if !ok || p.Step != stepStorageSelect {
		return nil
	}
	if !m.isStaff(ev.ActorRoles) {
		m.notify(ctx, ev.ActorID, "Only staff can assign storage.")
		return ErrNotStaff
	}

	if ev.Location == gateway.LocationSkip {
		if !m.consume(ev.MessageID) {
			return nil
		}
		return m.completeSkipped(ctx, p)
	}

	if !numeric(ev.AccessCode) {
		// Entry stays live so staff can retry with a valid code.
		m.notify(ctx, ev.ActorID, "Access code must be a short numeric code.")
		return ErrInvalidAccessCode
	}
	if !m.consume(ev.MessageID) {
		return nil
	}
	now := m.now()

	rec, err := m.ledger.Update(ctx, p.OrderID, func(r *ledger.Record) error {
		return r.AssignStorage(ev.Location, ev.AccessCode, now)
	})
	if err != nil {
		log.Printf("[Lifecycle] Storage assignment for order %s failed: %v", p.OrderID, err)
		return err
	}

	dmID, err := m.gw.SendDirect(ctx, p.BuyerID, renderPickupInstructions(ev.Location, ev.AccessCode))
	if err != nil {
		return fmt.Errorf("failed to send pickup instructions: %w", err)
	}
	m.register(dmID, pending{
		OrderID: p.OrderID,
		BuyerID: p.BuyerID,
		StaffID: ev.ActorID,
		Total:   p.Total,
		Step:    stepPickupConfirm,
	})

	m.publish(ctx, EventStorageAssigned, rec.OrderID, StorageAssigned{
		OrderID: rec.OrderID, Location: ev.Location, AssignedAt: now,
	})
	return nil
}

func (m *Machine) completeSkipped(ctx context.Context, p pending) error {
	now := m.now()
	rec, err := m.ledger.Update(ctx, p.OrderID, func(r *ledger.Record) error {
		return r.Complete(now)
	})
	if err != nil {
		log.Printf("[Lifecycle] Skip completion for order %s failed: %v", p.OrderID, err)
		return err
	}

	if _, err := m.gw.SendDirect(ctx, p.BuyerID, renderSkipCompletion()); err != nil {
		log.Printf("[Lifecycle] Failed to send completion notice for order %s: %v", p.OrderID, err)
	}

	m.publish(ctx, EventStorageAssigned, rec.OrderID, StorageAssigned{
		OrderID: rec.OrderID, Skipped: true, AssignedAt: now,
	})
	m.publish(ctx, EventOrderCompleted, rec.OrderID, OrderCompleted{
		OrderID: rec.OrderID, UserID: p.BuyerID, CompletedAt: now,
	})
	return nil
}

func (m *Machine) confirmPickup(ctx context.Context, ev gateway.AcknowledgeEvent, p pending) error {
	if ev.ActorID != p.BuyerID {
		m.notify(ctx, ev.ActorID, "This is not your order.")
		return ErrNotYourOrder
	}
	if !m.consume(ev.MessageID) {
		return nil
	}
	now := m.now()

	rec, err := m.ledger.Update(ctx, p.OrderID, func(r *ledger.Record) error {
		return r.Complete(now)
	})
	if err != nil {
		log.Printf("[Lifecycle] Pickup completion for order %s failed: %v", p.OrderID, err)
		return err
	}

	if _, err := m.gw.PostToChannel(ctx, m.cfg.StaffChannelID, renderClosingNotice(p.BuyerID, p.OrderID)); err != nil {
		log.Printf("[Lifecycle] Failed to post closing notice for order %s: %v", p.OrderID, err)
	}

	m.publish(ctx, EventOrderCompleted, rec.OrderID, OrderCompleted{
		OrderID: rec.OrderID, UserID: p.BuyerID, CompletedAt: now,
	})
	return nil
}

func (m *Machine) notify(ctx context.Context, userID, content string) {
	if _, err := m.gw.SendDirect(ctx, userID, content); err != nil {
		log.Printf("[Lifecycle] Failed to notify %s: %v", userID, err)
	}
}

func numeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
