package command

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/trader-bot/internal/catalog"
	"github.com/example/trader-bot/internal/gateway/mocks"
	"github.com/example/trader-bot/internal/ledger"
	"github.com/example/trader-bot/internal/lifecycle"
	"github.com/example/trader-bot/internal/session"
)

const testCatalog = `{
	"categories": {
		"Weapons": {
			"Rifle": 500,
			"SMG": {"20-Round": 220, "60-Round": 600}
		}
	}
}`

func newTestHandler(t *testing.T) (*Handler, *mocks.MockGateway, ledger.Store) {
	t.Helper()
	cat, err := catalog.Parse([]byte(testCatalog))
	require.NoError(t, err)

	store := ledger.NewFileStore(filepath.Join(t.TempDir(), "orders.json"))
	gw := mocks.NewMockGateway()
	machine := lifecycle.New(store, gw, nil, lifecycle.Config{
		StaffChannelID: "chan-staff",
		StaffRoleIDs:   []string{"role-staff"},
	})
	sessions := session.NewMemoryStore(15 * time.Minute)

	return NewHandler(cat, sessions, store, machine, []string{"role-staff"}), gw, store
}

func TestHandler_StartAndAddItem(t *testing.T) {
	h, _, _ := newTestHandler(t)
	ctx := context.Background()

	reply, err := h.StartSession(ctx, StartSession{UserID: "user-a", Kind: session.KindBuy})
	require.NoError(t, err)
	assert.Contains(t, reply, "Buy session started")

	reply, err = h.AddItem(ctx, AddItem{UserID: "user-a", Category: "Weapons", Item: "Rifle", Quantity: 2})
	require.NoError(t, err)
	assert.Contains(t, reply, "Rifle")

	reply, err = h.ViewCart(ctx, ViewCart{UserID: "user-a"})
	require.NoError(t, err)
	assert.Contains(t, reply, "2x Rifle (Default) - 500 coins each")
	assert.Contains(t, reply, "Total: 1000 coins")
}

func TestHandler_AddItemInvalidQuantity(t *testing.T) {
	h, _, _ := newTestHandler(t)
	ctx := context.Background()

	_, err := h.AddItem(ctx, AddItem{UserID: "user-a", Category: "Weapons", Item: "Rifle", Quantity: 0})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	// No session was implicitly created by the failed add.
	reply, err := h.ViewCart(ctx, ViewCart{UserID: "user-a"})
	require.NoError(t, err)
	assert.Equal(t, "Your cart is empty.", reply)
}

func TestHandler_AddItemUnknownSelection(t *testing.T) {
	h, _, _ := newTestHandler(t)
	ctx := context.Background()

	_, err := h.AddItem(ctx, AddItem{UserID: "user-a", Category: "Vehicles", Item: "Truck", Quantity: 1})
	assert.ErrorIs(t, err, catalog.ErrUnknownCategory)

	_, err = h.AddItem(ctx, AddItem{UserID: "user-a", Category: "Weapons", Item: "SMG", Variant: "99-Round", Quantity: 1})
	assert.ErrorIs(t, err, catalog.ErrUnknownVariant)
}

func TestHandler_SellSessionUsesSellPricing(t *testing.T) {
	h, _, _ := newTestHandler(t)
	ctx := context.Background()

	_, err := h.StartSession(ctx, StartSession{UserID: "user-a", Kind: session.KindSell})
	require.NoError(t, err)

	_, err = h.AddItem(ctx, AddItem{UserID: "user-a", Category: "Weapons", Item: "Rifle", Quantity: 1})
	require.NoError(t, err)

	reply, err := h.ViewCart(ctx, ViewCart{UserID: "user-a"})
	require.NoError(t, err)
	// 500 / 3 rounded = 167
	assert.Contains(t, reply, "167 coins each")
}

func TestHandler_RemoveLastItem(t *testing.T) {
	h, _, _ := newTestHandler(t)
	ctx := context.Background()

	_, err := h.StartSession(ctx, StartSession{UserID: "user-a", Kind: session.KindBuy})
	require.NoError(t, err)

	_, err = h.RemoveLastItem(ctx, RemoveLastItem{UserID: "user-a"})
	assert.ErrorIs(t, err, session.ErrEmptyCart)

	_, err = h.AddItem(ctx, AddItem{UserID: "user-a", Category: "Weapons", Item: "Rifle", Quantity: 1})
	require.NoError(t, err)

	reply, err := h.RemoveLastItem(ctx, RemoveLastItem{UserID: "user-a"})
	require.NoError(t, err)
	assert.Equal(t, "Removed: Rifle", reply)
}

func TestHandler_SubmitOrder(t *testing.T) {
	h, gw, store := newTestHandler(t)
	ctx := context.Background()

	_, err := h.StartSession(ctx, StartSession{UserID: "user-a", Kind: session.KindBuy})
	require.NoError(t, err)
	_, err = h.AddItem(ctx, AddItem{UserID: "user-a", Category: "Weapons", Item: "Rifle", Quantity: 2})
	require.NoError(t, err)

	reply, err := h.SubmitOrder(ctx, SubmitOrder{UserID: "user-a"})
	require.NoError(t, err)
	assert.Contains(t, reply, "submitted")

	// Exactly one new record, unconfirmed and unpaid.
	orders, err := store.Orders(ctx, "user-a")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, 1000, orders[0].Total)
	assert.False(t, orders[0].Confirmed)
	assert.False(t, orders[0].Paid)

	// The session is gone and the staff channel was notified.
	cart, err := h.ViewCart(ctx, ViewCart{UserID: "user-a"})
	require.NoError(t, err)
	assert.Equal(t, "Your cart is empty.", cart)
	require.NotNil(t, gw.LastPost())
}

func TestHandler_SubmitEmptyCart(t *testing.T) {
	h, gw, store := newTestHandler(t)
	ctx := context.Background()

	_, err := h.StartSession(ctx, StartSession{UserID: "user-a", Kind: session.KindBuy})
	require.NoError(t, err)

	_, err = h.SubmitOrder(ctx, SubmitOrder{UserID: "user-a"})
	assert.ErrorIs(t, err, session.ErrEmptyCart)

	orders, err := store.Orders(ctx, "user-a")
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Empty(t, gw.Posts)
}

func TestHandler_CancelSession(t *testing.T) {
	h, _, _ := newTestHandler(t)
	ctx := context.Background()

	_, err := h.StartSession(ctx, StartSession{UserID: "user-a", Kind: session.KindBuy})
	require.NoError(t, err)
	_, err = h.AddItem(ctx, AddItem{UserID: "user-a", Category: "Weapons", Item: "Rifle", Quantity: 1})
	require.NoError(t, err)

	reply, err := h.CancelSession(ctx, CancelSession{UserID: "user-a"})
	require.NoError(t, err)
	assert.Equal(t, "Session canceled.", reply)

	cart, err := h.ViewCart(ctx, ViewCart{UserID: "user-a"})
	require.NoError(t, err)
	assert.Equal(t, "Your cart is empty.", cart)
}

func TestHandler_PayTraderWithoutOrder(t *testing.T) {
	h, _, _ := newTestHandler(t)

	_, err := h.PayTrader(context.Background(), PayTrader{UserID: "user-a"})
	assert.ErrorIs(t, err, lifecycle.ErrNoConfirmedOrder)
	assert.Equal(t, "No confirmed unpaid order found for you.", UserMessage(err))
}

func TestHandler_ClearOrders(t *testing.T) {
	h, _, store := newTestHandler(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, ledger.Record{OrderID: "order-1", UserID: "user-a"}))

	_, err := h.ClearOrders(ctx, ClearOrders{ActorID: "user-b", ActorRoles: []string{"role-member"}})
	assert.ErrorIs(t, err, ErrNotStaff)

	reply, err := h.ClearOrders(ctx, ClearOrders{ActorID: "staff-b", ActorRoles: []string{"role-staff"}})
	require.NoError(t, err)
	assert.Equal(t, "All orders have been cleared.", reply)

	all, err := store.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestUserMessage_UnknownErrorIsGeneric(t *testing.T) {
	assert.Equal(t, "Something went wrong. Please try again.", UserMessage(assert.AnError))
}
