package order

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("order: not found")
	ErrConflict          = errors.New("order: conflicting update")
	ErrNoLines           = errors.New("order: at least one line is required")
	ErrInvalidQuantity   = errors.New("order: quantity must be greater than zero")
	ErrInvalidTransition = errors.New("order: invalid status transition")
)

// Line is an immutable snapshot of one purchased position. UnitPrice is
// the catalog price captured at checkout and is never recomputed, even
// when the catalog price changes later.
type Line struct {
	BookID    string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Order is the write-once record produced by a committed checkout.
// Only Status (together with Version and UpdatedAt) changes afterwards.
type Order struct {
	ID       string
	OwnerID  string
	Lines    []Line
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
	Status   Status
	// Version guards Status against lost updates between concurrent
	// writers (a user cancelling vs an admin marking shipped). Bumped
	// on every successful status change.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func New(id, ownerID string, lines []Line, subtotal, tax, shipping, total decimal.Decimal) (*Order, error) {
	if len(lines) == 0 {
		return nil, ErrNoLines
	}
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
	}

	now := time.Now().UTC()
	return &Order{
		ID:        id,
		OwnerID:   ownerID,
		Lines:     append([]Line(nil), lines...),
		Subtotal:  subtotal,
		Tax:       tax,
		Shipping:  shipping,
		Total:     total,
		Status:    StatusPending,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Transition moves the order to the next status if the lifecycle allows
// it, bumping the optimistic version.
func (o *Order) Transition(next Status) error {
	if !o.Status.CanTransition(next) {
		return ErrInvalidTransition
	}
	o.Status = next
	o.Version++
	o.touch()
	return nil
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Lines = append([]Line(nil), o.Lines...)
	return &clone
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}
