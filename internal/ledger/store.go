package ledger

import "context"

// Store is the durable order ledger. The file implementation preserves the
// historical whole-document JSON behavior; the Postgres implementation is the
// transactional swap-in behind the same interface.
type Store interface {
	// Append adds a record under its user key.
	Append(ctx context.Context, rec Record) error

	// Orders returns a user's records in insertion order.
	Orders(ctx context.Context, userID string) ([]Record, error)

	// All returns every record keyed by user.
	All(ctx context.Context) (map[string][]Record, error)

	// Find locates a record by its globally unique order ID.
	// Returns ErrOrderNotFound when absent.
	Find(ctx context.Context, orderID string) (*Record, error)

	// FindLatestUnpaidConfirmed scans a user's records from the newest for
	// the first confirmed-but-unpaid order. Returns nil without error when
	// there is none.
	FindLatestUnpaidConfirmed(ctx context.Context, userID string) (*Record, error)

	// Update locates a record by order ID, applies mutate, and persists the
	// result. The mutation is dropped if mutate returns an error.
	Update(ctx context.Context, orderID string, mutate func(*Record) error) (*Record, error)

	// Clear removes every record.
	Clear(ctx context.Context) error
}
