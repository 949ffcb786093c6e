package inventory

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("inventory: book not known to ledger")
	ErrInvalidQuantity   = errors.New("inventory: quantity must be greater than zero")
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
)

// ShortfallError reports exactly how far a reservation fell short so the
// caller can surface "only N left" instead of a generic failure.
type ShortfallError struct {
	BookID    string
	Requested int
	Available int
}

func (e *ShortfallError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for %s: requested %d, available %d",
		e.BookID, e.Requested, e.Available)
}

func (e *ShortfallError) Unwrap() error { return ErrInsufficientStock }

// Ledger is the authoritative per-book available-unit counter.
//
// Reserve and Release must serialize per book: concurrent reservations
// against the same book never oversell, and stock never goes negative
// under any interleaving.
type Ledger interface {
	// Available returns the current purchasable unit count.
	Available(ctx context.Context, bookID string) (int, error)

	// Reserve atomically checks stock >= quantity and decrements.
	// On shortfall it leaves stock untouched and returns a
	// *ShortfallError wrapping ErrInsufficientStock.
	Reserve(ctx context.Context, bookID string, quantity int) error

	// Release is the compensating increment for an aborted or cancelled
	// reservation. A non-positive quantity is a programming error
	// (ErrInvalidQuantity), never a silent clamp.
	Release(ctx context.Context, bookID string, quantity int) error

	// SetStock sets the absolute count, for administrative restock and
	// initial seeding only. Checkout never calls it.
	SetStock(ctx context.Context, bookID string, quantity int) error
}
