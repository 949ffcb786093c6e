package order

import "context"

type Repository interface {
	// Insert persists a new order. An existing ID is ErrConflict.
	Insert(ctx context.Context, order *Order) error

	// Get returns a copy of the order, ErrNotFound when unknown.
	Get(ctx context.Context, id string) (*Order, error)

	// UpdateStatus applies a compare-and-set on the status field: the
	// stored version must equal expectedVersion or the call fails with
	// ErrConflict and the order is left unchanged. On success the
	// stored version is bumped.
	UpdateStatus(ctx context.Context, id string, expectedVersion int64, next Status) (*Order, error)
}
