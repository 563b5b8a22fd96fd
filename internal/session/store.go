package session

import (
	"context"
	"errors"
	"time"
)

// DefaultTimeout is how long a cart session stays active without activity.
const DefaultTimeout = 15 * time.Minute

var (
	ErrEmptyCart = errors.New("cart is empty")
)

// Kind identifies which trading flow a session belongs to.
type Kind string

const (
	KindBuy       Kind = "buy"
	KindSell      Kind = "sell"
	KindTradePost Kind = "tradepost"
)

// Line is one entry a user has added to an in-progress cart.
type Line struct {
	Category    string `json:"category"`
	Subcategory string `json:"subcategory,omitempty"`
	Item        string `json:"item"`
	Variant     string `json:"variant"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int    `json:"unit_price"`
	Subtotal    int    `json:"subtotal"`
}

// Total sums the subtotals of a set of cart lines.
func Total(lines []Line) int {
	total := 0
	for _, l := range lines {
		total += l.Subtotal
	}
	return total
}

// Store holds the in-progress cart for each user. At most one session exists
// per user; starting a new one supersedes any prior session. Expired sessions
// are evicted on read and reported as empty, never as errors.
//
// The memory implementation is the default; the Redis implementation survives
// process restarts and lets the server expire sessions on its own.
type Store interface {
	// Start replaces any existing session for the user with an empty one.
	Start(ctx context.Context, userID string, kind Kind) error

	// AddLine appends a line, starting a session implicitly if none exists,
	// and refreshes the activity timestamp.
	AddLine(ctx context.Context, userID string, line Line) error

	// Lines returns the current cart in insertion order. An expired session
	// is cleared and reported as empty.
	Lines(ctx context.Context, userID string) ([]Line, error)

	// Kind reports which flow the session belongs to, or "" without one.
	Kind(ctx context.Context, userID string) (Kind, error)

	// RemoveLast pops the most recently added line. Returns ErrEmptyCart
	// when there is nothing to remove.
	RemoveLast(ctx context.Context, userID string) (Line, error)

	// SetLines replaces the cart contents wholesale.
	SetLines(ctx context.Context, userID string, lines []Line) error

	// End destroys the session. Ending a missing session is a no-op.
	End(ctx context.Context, userID string) error

	// Active reports whether the user has a session within the timeout.
	Active(ctx context.Context, userID string) (bool, error)
}
