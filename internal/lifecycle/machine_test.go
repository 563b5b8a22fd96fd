package lifecycle

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/trader-bot/internal/gateway"
	"github.com/example/trader-bot/internal/gateway/mocks"
	"github.com/example/trader-bot/internal/ledger"
)

const (
	staffChannel = "chan-staff"
	staffRole    = "role-staff"
)

type recordedEvent struct {
	Key   string
	Event Event
}

// recordingPublisher captures audit events in order.
type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, key string, value any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{Key: key, Event: value.(Event)})
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Event.Type
	}
	return out
}

func newTestMachine(t *testing.T) (*Machine, *mocks.MockGateway, ledger.Store, *recordingPublisher) {
	t.Helper()
	store := ledger.NewFileStore(filepath.Join(t.TempDir(), "orders.json"))
	gw := mocks.NewMockGateway()
	pub := &recordingPublisher{}
	m := New(store, gw, pub, Config{
		StaffChannelID: staffChannel,
		StaffRoleIDs:   []string{staffRole},
	})
	m.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return m, gw, store, pub
}

func rifleItems() []ledger.Item {
	return []ledger.Item{
		{Category: "Weapons", Item: "Rifle", Variant: "Default", Quantity: 2, UnitPrice: 500, Subtotal: 1000},
	}
}

func staffAck(messageID string) gateway.AcknowledgeEvent {
	return gateway.AcknowledgeEvent{
		MessageID:  messageID,
		ActorID:    "staff-b",
		ActorRoles: []string{staffRole},
		Signal:     gateway.SignalAffirmative,
	}
}

func buyerAck(messageID string) gateway.AcknowledgeEvent {
	return gateway.AcknowledgeEvent{
		MessageID: messageID,
		ActorID:   "user-a",
		Signal:    gateway.SignalAffirmative,
	}
}

// ============================================
// Submit
// ============================================

func TestMachine_Submit(t *testing.T) {
	m, gw, store, pub := newTestMachine(t)
	ctx := context.Background()

	rec, err := m.Submit(ctx, "user-a", ledger.TypeBuy, rifleItems())
	require.NoError(t, err)
	assert.NotEmpty(t, rec.OrderID)
	assert.Equal(t, 1000, rec.Total)
	assert.Equal(t, ledger.StatusSubmitted, rec.Status)
	assert.False(t, rec.Confirmed)
	assert.False(t, rec.Paid)

	// Summary went to the staff channel with the structured total.
	post := gw.LastPost()
	require.NotNil(t, post)
	assert.Equal(t, staffChannel, post.ChannelID)
	assert.Contains(t, post.Content, "2x Rifle")
	assert.Contains(t, post.Content, "$1,000")

	// Record is persisted.
	orders, err := store.Orders(ctx, "user-a")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, rec.OrderID, orders[0].OrderID)

	assert.Equal(t, []string{EventOrderSubmitted}, pub.types())
}

func TestMachine_SubmitEmptyCart(t *testing.T) {
	m, gw, store, _ := newTestMachine(t)
	ctx := context.Background()

	rec, err := m.Submit(ctx, "user-a", ledger.TypeBuy, nil)
	assert.ErrorIs(t, err, ledger.ErrEmptyOrder)
	assert.Nil(t, rec)
	assert.Empty(t, gw.Posts)

	orders, err := store.Orders(ctx, "user-a")
	require.NoError(t, err)
	assert.Empty(t, orders)
}

// ============================================
// End-to-end scenario with a storage handoff
// ============================================

func TestMachine_EndToEnd(t *testing.T) {
	m, gw, store, pub := newTestMachine(t)
	ctx := context.Background()

	rec, err := m.Submit(ctx, "user-a", ledger.TypeBuy, rifleItems())
	require.NoError(t, err)
	orderMsg := gw.LastPost().MessageID

	// Staff B confirms the order.
	require.NoError(t, m.HandleAcknowledge(ctx, staffAck(orderMsg)))

	got, err := store.Find(ctx, rec.OrderID)
	require.NoError(t, err)
	assert.True(t, got.Confirmed)
	assert.Equal(t, "staff-b", got.ConfirmedBy)
	assert.False(t, got.Paid)

	// The summary was rewritten and the buyer got a payment request.
	require.Len(t, gw.Edits, 1)
	assert.Contains(t, gw.Edits[0].Content, "Confirmed by <@staff-b>")
	paymentDM := gw.LastDirect()
	require.NotNil(t, paymentDM)
	assert.Equal(t, "user-a", paymentDM.UserID)
	assert.Contains(t, paymentDM.Content, "<@staff-b>")
	assert.Contains(t, paymentDM.Content, "$1,000")

	// Buyer claims payment.
	require.NoError(t, m.HandleAcknowledge(ctx, buyerAck(paymentDM.MessageID)))

	got, err = store.Find(ctx, rec.OrderID)
	require.NoError(t, err)
	assert.True(t, got.Paid)
	assert.Equal(t, ledger.StatusPaymentClaimed, got.Status)
	require.NotNil(t, got.PaymentMessageID)

	fulfillMsg := gw.LastPost()
	assert.Equal(t, staffChannel, fulfillMsg.ChannelID)
	assert.Contains(t, fulfillMsg.Content, "payment has been sent from <@user-a>")
	assert.Equal(t, *got.PaymentMessageID, fulfillMsg.MessageID)

	// Staff assigns Shed 2 with access code 4821.
	require.NoError(t, m.HandleStorageSelect(ctx, gateway.StorageSelectEvent{
		MessageID:  fulfillMsg.MessageID,
		ActorID:    "staff-b",
		ActorRoles: []string{staffRole},
		Location:   "Shed 2",
		AccessCode: "4821",
	}))

	got, err = store.Find(ctx, rec.OrderID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusStorageAssigned, got.Status)
	assert.Equal(t, "Shed 2", got.StorageLocation)
	assert.Equal(t, "4821", got.AccessCode)

	pickupDM := gw.LastDirect()
	assert.Equal(t, "user-a", pickupDM.UserID)
	assert.Contains(t, pickupDM.Content, "Shed 2")
	assert.Contains(t, pickupDM.Content, "4821")

	// Buyer confirms pickup.
	require.NoError(t, m.HandleAcknowledge(ctx, buyerAck(pickupDM.MessageID)))

	got, err = store.Find(ctx, rec.OrderID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCompleted, got.Status)

	closing := gw.LastPost()
	assert.Equal(t, staffChannel, closing.ChannelID)
	assert.Contains(t, closing.Content, "picked up order")

	assert.Equal(t, []string{
		EventOrderSubmitted, EventOrderConfirmed, EventPaymentClaimed,
		EventStorageAssigned, EventOrderCompleted,
	}, pub.types())
}

// ============================================
// End-to-end scenario with the skip shortcut
// ============================================

func TestMachine_EndToEndSkipStorage(t *testing.T) {
	m, gw, store, pub := newTestMachine(t)
	ctx := context.Background()

	rec, err := m.Submit(ctx, "user-a", ledger.TypeBuy, rifleItems())
	require.NoError(t, err)

	require.NoError(t, m.HandleAcknowledge(ctx, staffAck(gw.LastPost().MessageID)))
	require.NoError(t, m.HandleAcknowledge(ctx, buyerAck(gw.LastDirect().MessageID)))

	fulfillMsg := gw.LastPost()
	require.NoError(t, m.HandleStorageSelect(ctx, gateway.StorageSelectEvent{
		MessageID:  fulfillMsg.MessageID,
		ActorID:    "staff-b",
		ActorRoles: []string{staffRole},
		Location:   gateway.LocationSkip,
	}))

	got, err := store.Find(ctx, rec.OrderID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCompleted, got.Status)
	assert.Empty(t, got.StorageLocation)

	// Generic completion notice straight to the buyer, no pickup step.
	done := gw.LastDirect()
	assert.Equal(t, "user-a", done.UserID)
	assert.Contains(t, done.Content, "complete")

	assert.Equal(t, []string{
		EventOrderSubmitted, EventOrderConfirmed, EventPaymentClaimed,
		EventStorageAssigned, EventOrderCompleted,
	}, pub.types())
}

// ============================================
// Authorization
// ============================================

func TestMachine_ConfirmRequiresStaff(t *testing.T) {
	m, gw, store, _ := newTestMachine(t)
	ctx := context.Background()

	rec, err := m.Submit(ctx, "user-a", ledger.TypeBuy, rifleItems())
	require.NoError(t, err)
	orderMsg := gw.LastPost().MessageID

	err = m.HandleAcknowledge(ctx, gateway.AcknowledgeEvent{
		MessageID: orderMsg,
		ActorID:   "user-c",
		Signal:    gateway.SignalAffirmative,
	})
	assert.ErrorIs(t, err, ErrNotStaff)

	// Explicit rejection notice, no transition, no ledger change.
	notice := gw.LastDirect()
	require.NotNil(t, notice)
	assert.Equal(t, "user-c", notice.UserID)

	got, err := store.Find(ctx, rec.OrderID)
	require.NoError(t, err)
	assert.False(t, got.Confirmed)

	// The entry stays live: real staff can still confirm.
	require.NoError(t, m.HandleAcknowledge(ctx, staffAck(orderMsg)))
	got, err = store.Find(ctx, rec.OrderID)
	require.NoError(t, err)
	assert.True(t, got.Confirmed)
}

func TestMachine_PaymentClaimRequiresBuyer(t *testing.T) {
	m, gw, store, _ := newTestMachine(t)
	ctx := context.Background()

	rec, err := m.Submit(ctx, "user-a", ledger.TypeBuy, rifleItems())
	require.NoError(t, err)
	require.NoError(t, m.HandleAcknowledge(ctx, staffAck(gw.LastPost().MessageID)))
	paymentDM := gw.LastDirect().MessageID

	err = m.HandleAcknowledge(ctx, gateway.AcknowledgeEvent{
		MessageID: paymentDM,
		ActorID:   "user-z",
		Signal:    gateway.SignalAffirmative,
	})
	assert.ErrorIs(t, err, ErrNotYourOrder)

	got, err := store.Find(ctx, rec.OrderID)
	require.NoError(t, err)
	assert.False(t, got.Paid)
}

func TestMachine_StorageSelectRequiresStaff(t *testing.T) {
	m, gw, store, _ := newTestMachine(t)
	ctx := context.Background()

	rec, err := m.Submit(ctx, "user-a", ledger.TypeBuy, rifleItems())
	require.NoError(t, err)
	require.NoError(t, m.HandleAcknowledge(ctx, staffAck(gw.LastPost().MessageID)))
	require.NoError(t, m.HandleAcknowledge(ctx, buyerAck(gw.LastDirect().MessageID)))

	err = m.HandleStorageSelect(ctx, gateway.StorageSelectEvent{
		MessageID: gw.LastPost().MessageID,
		ActorID:   "user-a",
		Location:  "Shed 2",
		AccessCode: "4821",
	})
	assert.ErrorIs(t, err, ErrNotStaff)

	got, err := store.Find(ctx, rec.OrderID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPaymentClaimed, got.Status)
}

// ============================================
// Idempotence
// ============================================

func TestMachine_RedeliveredAckIsNoOp(t *testing.T) {
	m, gw, store, pub := newTestMachine(t)
	ctx := context.Background()

	rec, err := m.Submit(ctx, "user-a", ledger.TypeBuy, rifleItems())
	require.NoError(t, err)
	orderMsg := gw.LastPost().MessageID

	require.NoError(t, m.HandleAcknowledge(ctx, staffAck(orderMsg)))
	directs := len(gw.Directs)
	events := len(pub.types())

	// Second delivery of the same acknowledgement: nothing happens.
	require.NoError(t, m.HandleAcknowledge(ctx, staffAck(orderMsg)))
	assert.Len(t, gw.Directs, directs)
	assert.Len(t, pub.types(), events)

	got, err := store.Find(ctx, rec.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "staff-b", got.ConfirmedBy)
}

func TestMachine_UnknownMessageIgnored(t *testing.T) {
	m, gw, _, _ := newTestMachine(t)

	err := m.HandleAcknowledge(context.Background(), staffAck("msg-unknown"))
	require.NoError(t, err)
	assert.Empty(t, gw.Posts)
	assert.Empty(t, gw.Directs)
}

func TestMachine_WrongSignalIgnored(t *testing.T) {
	m, gw, store, _ := newTestMachine(t)
	ctx := context.Background()

	rec, err := m.Submit(ctx, "user-a", ledger.TypeBuy, rifleItems())
	require.NoError(t, err)

	ev := staffAck(gw.LastPost().MessageID)
	ev.Signal = "shrug"
	require.NoError(t, m.HandleAcknowledge(ctx, ev))

	got, err := store.Find(ctx, rec.OrderID)
	require.NoError(t, err)
	assert.False(t, got.Confirmed)
}

func TestMachine_BareAckOnFulfillmentIgnored(t *testing.T) {
	m, gw, store, _ := newTestMachine(t)
	ctx := context.Background()

	rec, err := m.Submit(ctx, "user-a", ledger.TypeBuy, rifleItems())
	require.NoError(t, err)
	require.NoError(t, m.HandleAcknowledge(ctx, staffAck(gw.LastPost().MessageID)))
	require.NoError(t, m.HandleAcknowledge(ctx, buyerAck(gw.LastDirect().MessageID)))

	// A plain acknowledgement cannot stand in for a storage selection.
	require.NoError(t, m.HandleAcknowledge(ctx, staffAck(gw.LastPost().MessageID)))

	got, err := store.Find(ctx, rec.OrderID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPaymentClaimed, got.Status)
}

// ============================================
// Storage selection details
// ============================================

func TestMachine_StorageRejectsNonNumericCode(t *testing.T) {
	m, gw, store, _ := newTestMachine(t)
	ctx := context.Background()

	rec, err := m.Submit(ctx, "user-a", ledger.TypeBuy, rifleItems())
	require.NoError(t, err)
	require.NoError(t, m.HandleAcknowledge(ctx, staffAck(gw.LastPost().MessageID)))
	require.NoError(t, m.HandleAcknowledge(ctx, buyerAck(gw.LastDirect().MessageID)))
	fulfillMsg := gw.LastPost().MessageID

	err = m.HandleStorageSelect(ctx, gateway.StorageSelectEvent{
		MessageID:  fulfillMsg,
		ActorID:    "staff-b",
		ActorRoles: []string{staffRole},
		Location:   "Shed 2",
		AccessCode: "door code",
	})
	assert.ErrorIs(t, err, ErrInvalidAccessCode)

	// Retry with a valid code still works.
	require.NoError(t, m.HandleStorageSelect(ctx, gateway.StorageSelectEvent{
		MessageID:  fulfillMsg,
		ActorID:    "staff-b",
		ActorRoles: []string{staffRole},
		Location:   "Shed 2",
		AccessCode: "4821",
	}))

	got, err := store.Find(ctx, rec.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "4821", got.AccessCode)
}

// ============================================
// Command-surface payment claim
// ============================================

func TestMachine_ClaimPaymentCommand(t *testing.T) {
	m, gw, store, _ := newTestMachine(t)
	ctx := context.Background()

	rec, err := m.Submit(ctx, "user-a", ledger.TypeBuy, rifleItems())
	require.NoError(t, err)
	require.NoError(t, m.HandleAcknowledge(ctx, staffAck(gw.LastPost().MessageID)))
	paymentDM := gw.LastDirect().MessageID

	require.NoError(t, m.ClaimPayment(ctx, "user-a"))

	got, err := store.Find(ctx, rec.OrderID)
	require.NoError(t, err)
	assert.True(t, got.Paid)

	// The DM entry was consumed: acking it later cannot double-claim.
	posts := len(gw.Posts)
	require.NoError(t, m.HandleAcknowledge(ctx, buyerAck(paymentDM)))
	assert.Len(t, gw.Posts, posts)
}

func TestMachine_ClaimPaymentWithoutConfirmedOrder(t *testing.T) {
	m, _, _, _ := newTestMachine(t)
	ctx := context.Background()

	err := m.ClaimPayment(ctx, "user-a")
	assert.ErrorIs(t, err, ErrNoConfirmedOrder)

	// Submitted but unconfirmed still does not qualify.
	_, err = m.Submit(ctx, "user-a", ledger.TypeBuy, rifleItems())
	require.NoError(t, err)
	err = m.ClaimPayment(ctx, "user-a")
	assert.ErrorIs(t, err, ErrNoConfirmedOrder)
}
