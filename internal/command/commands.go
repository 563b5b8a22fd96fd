package command

import "github.com/example/trader-bot/internal/session"

// Command value types for the trading surface. Option values arrive as
// strings from the gateway and are parsed before these are built.

type StartSession struct {
	UserID string
	Kind   session.Kind
}

type AddItem struct {
	UserID      string
	Category    string
	Subcategory string
	Item        string
	Variant     string
	Quantity    int
}

// AddItemsText is the bulk path: one "Category:Item:Variant xN" line per item.
type AddItemsText struct {
	UserID string
	Text   string
}

type ViewCart struct {
	UserID string
}

type RemoveLastItem struct {
	UserID string
}

type SubmitOrder struct {
	UserID string
}

type CancelSession struct {
	UserID string
}

type PayTrader struct {
	UserID string
}

type ClearOrders struct {
	ActorID    string
	ActorRoles []string
}
