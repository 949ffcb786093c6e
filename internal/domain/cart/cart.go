package cart

import (
	"context"
	"errors"
)

var ErrInvalidQuantity = errors.New("cart: quantity must be greater than zero")

// Line is one requested (book, quantity) pair in an owner's cart.
// A cart holds at most one line per book; adding the same book again
// increments the existing line.
type Line struct {
	OwnerID  string
	BookID   string
	Quantity int
}

// Store is the pure persistence contract for cart lines. It enforces no
// business rules beyond line uniqueness and the quantity >= 1 shape;
// stock bounds live in the cart manager.
type Store interface {
	// Lines returns the owner's lines in insertion order. A missing
	// cart is an empty slice, not an error.
	Lines(ctx context.Context, ownerID string) ([]Line, error)

	// Upsert creates the line with the given delta if absent, otherwise
	// adds the delta. A resulting quantity <= 0 removes the line.
	//
	// Retrying the same Upsert is not idempotent: each call applies the
	// delta again. Callers that may retry must use SetQuantity.
	Upsert(ctx context.Context, ownerID, bookID string, delta int) error

	// SetQuantity sets the absolute quantity; <= 0 removes the line.
	// Re-applying the same call is a no-op.
	SetQuantity(ctx context.Context, ownerID, bookID string, quantity int) error

	// Clear removes all lines for the owner. Clearing an absent cart
	// succeeds.
	Clear(ctx context.Context, ownerID string) error
}
