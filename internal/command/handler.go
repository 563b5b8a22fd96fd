package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/example/trader-bot/internal/catalog"
	"github.com/example/trader-bot/internal/ledger"
	"github.com/example/trader-bot/internal/lifecycle"
	"github.com/example/trader-bot/internal/session"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be a positive number")
	ErrNotStaff        = errors.New("you do not have permission to use this command")
)

// Handler executes trading commands against the session store, the catalog,
// and the lifecycle machine. Each method returns the reply to show the
// invoking user; errors carry the user-facing failure.
type Handler struct {
	catalog    *catalog.Catalog
	sessions   session.Store
	ledger     ledger.Store
	machine    *lifecycle.Machine
	staffRoles []string
}

func NewHandler(
	cat *catalog.Catalog,
	sessions session.Store,
	store ledger.Store,
	machine *lifecycle.Machine,
	staffRoles []string,
) *Handler {
	return &Handler{
		catalog:    cat,
		sessions:   sessions,
		ledger:     store,
		machine:    machine,
		staffRoles: staffRoles,
	}
}

func (h *Handler) StartSession(ctx context.Context, cmd StartSession) (string, error) {
	if err := h.sessions.Start(ctx, cmd.UserID, cmd.Kind); err != nil {
		return "", err
	}
	switch cmd.Kind {
	case session.KindSell:
		return "Sell session started! Add items, then submit or cancel your order.", nil
	case session.KindTradePost:
		return "Trade Post session started! Build your cart and submit when ready.", nil
	default:
		return "Buy session started! Add items, then submit or cancel your order.", nil
	}
}

// unitPrice resolves the price of a selection, applying sell pricing when
// the session is a sell flow.
func (h *Handler) unitPrice(ctx context.Context, userID string, sel AddItem) (int, error) {
	price, err := h.catalog.Price(sel.Category, sel.Subcategory, sel.Item, sel.Variant)
	if err != nil {
		return 0, err
	}
	kind, err := h.sessions.Kind(ctx, userID)
	if err != nil {
		return 0, err
	}
	if kind == session.KindSell {
		price = catalog.SellPrice(price)
	}
	return price, nil
}

func (h *Handler) AddItem(ctx context.Context, cmd AddItem) (string, error) {
	if cmd.Quantity <= 0 {
		return "", ErrInvalidQuantity
	}
	variant := cmd.Variant
	if variant == "" {
		variant = catalog.DefaultVariant
	}
	unit, err := h.unitPrice(ctx, cmd.UserID, cmd)
	if err != nil {
		return "", err
	}

	line := session.Line{
		Category:    cmd.Category,
		Subcategory: cmd.Subcategory,
		Item:        cmd.Item,
		Variant:     variant,
		Quantity:    cmd.Quantity,
		UnitPrice:   unit,
		Subtotal:    unit * cmd.Quantity,
	}
	if err := h.sessions.AddLine(ctx, cmd.UserID, line); err != nil {
		return "", err
	}
	return fmt.Sprintf("Added %s (%s) x%d to your cart.", cmd.Item, variant, cmd.Quantity), nil
}

// AddItemsText parses a pasted multi-line order and appends every line to
// the cart. The whole text is rejected on the first bad line.
func (h *Handler) AddItemsText(ctx context.Context, cmd AddItemsText) (string, error) {
	kind, err := h.sessions.Kind(ctx, cmd.UserID)
	if err != nil {
		return "", err
	}
	lines, total, err := ParseOrderText(h.catalog, cmd.Text, kind)
	if err != nil {
		return "", err
	}
	for _, line := range lines {
		if err := h.sessions.AddLine(ctx, cmd.UserID, line); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("Added %d item(s), %d coins total.", len(lines), total), nil
}

func (h *Handler) ViewCart(ctx context.Context, cmd ViewCart) (string, error) {
	lines, err := h.sessions.Lines(ctx, cmd.UserID)
	if err != nil {
		return "", err
	}
	if len(lines) == 0 {
		return "Your cart is empty.", nil
	}

	var b strings.Builder
	b.WriteString("Your cart:\n")
	for _, l := range lines {
		fmt.Fprintf(&b, "%dx %s (%s) - %d coins each\n", l.Quantity, l.Item, l.Variant, l.UnitPrice)
	}
	fmt.Fprintf(&b, "Total: %d coins", session.Total(lines))
	return b.String(), nil
}

func (h *Handler) RemoveLastItem(ctx context.Context, cmd RemoveLastItem) (string, error) {
	removed, err := h.sessions.RemoveLast(ctx, cmd.UserID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Removed: %s", removed.Item), nil
}

// SubmitOrder finalizes the cart through the lifecycle and destroys the
// session. An empty or expired cart submits nothing.
func (h *Handler) SubmitOrder(ctx context.Context, cmd SubmitOrder) (string, error) {
	lines, err := h.sessions.Lines(ctx, cmd.UserID)
	if err != nil {
		return "", err
	}
	if len(lines) == 0 {
		return "", session.ErrEmptyCart
	}
	kind, err := h.sessions.Kind(ctx, cmd.UserID)
	if err != nil {
		return "", err
	}

	items := make([]ledger.Item, len(lines))
	for i, l := range lines {
		items[i] = ledger.Item{
			Category:    l.Category,
			Subcategory: l.Subcategory,
			Item:        l.Item,
			Variant:     l.Variant,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Subtotal:    l.Subtotal,
		}
	}

	if _, err := h.machine.Submit(ctx, cmd.UserID, orderType(kind), items); err != nil {
		return "", err
	}
	if err := h.sessions.End(ctx, cmd.UserID); err != nil {
		return "", err
	}
	return "Your order has been submitted!", nil
}

func (h *Handler) CancelSession(ctx context.Context, cmd CancelSession) (string, error) {
	if err := h.sessions.End(ctx, cmd.UserID); err != nil {
		return "", err
	}
	return "Session canceled.", nil
}

func (h *Handler) PayTrader(ctx context.Context, cmd PayTrader) (string, error) {
	if err := h.machine.ClaimPayment(ctx, cmd.UserID); err != nil {
		return "", err
	}
	return "Payment sent and awaiting staff confirmation.", nil
}

func (h *Handler) ClearOrders(ctx context.Context, cmd ClearOrders) (string, error) {
	if !h.hasStaffRole(cmd.ActorRoles) {
		return "", ErrNotStaff
	}
	if err := h.ledger.Clear(ctx); err != nil {
		return "", err
	}
	return "All orders have been cleared.", nil
}

func (h *Handler) hasStaffRole(roles []string) bool {
	for _, r := range roles {
		for _, staff := range h.staffRoles {
			if r == staff {
				return true
			}
		}
	}
	return false
}

func orderType(kind session.Kind) ledger.OrderType {
	switch kind {
	case session.KindSell:
		return ledger.TypeSell
	case session.KindTradePost:
		return ledger.TypeTradePost
	default:
		return ledger.TypeBuy
	}
}

// UserMessage converts a command error into the reply shown to the actor.
// Unrecognized errors collapse to a generic notice so internals never leak.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrEmptyCart):
		return "Your cart is empty."
	case errors.Is(err, ErrInvalidQuantity):
		return "Enter a valid positive number."
	case errors.Is(err, ErrNotStaff):
		return "You don't have permission to use this command."
	case errors.Is(err, lifecycle.ErrNoConfirmedOrder):
		return "No confirmed unpaid order found for you."
	case errors.Is(err, catalog.ErrUnknownCategory),
		errors.Is(err, catalog.ErrUnknownItem),
		errors.Is(err, catalog.ErrUnknownVariant),
		errors.Is(err, catalog.ErrNoVariants):
		return fmt.Sprintf("Invalid selection: %v.", err)
	case errors.Is(err, ErrBadOrderLine):
		return err.Error()
	default:
		return "Something went wrong. Please try again."
	}
}
