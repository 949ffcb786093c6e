package memory

import (
	"context"
	"sync"

	domain "github.com/ardenlake/bookshop/internal/domain/inventory"
)

// Ledger is an in-memory inventory ledger. Each book gets its own
// mutex so concurrent reservations against the same book serialize
// while different books proceed in parallel.
type Ledger struct {
	mu    sync.RWMutex
	items map[string]*ledgerEntry
}

type ledgerEntry struct {
	mu    sync.Mutex
	stock int
}

func NewLedger() *Ledger {
	return &Ledger{items: make(map[string]*ledgerEntry)}
}

func (l *Ledger) Available(ctx context.Context, bookID string) (int, error) {
	_ = ctx

	entry, ok := l.lookup(bookID)
	if !ok {
		return 0, domain.ErrNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.stock, nil
}

func (l *Ledger) Reserve(ctx context.Context, bookID string, quantity int) error {
	_ = ctx
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	entry, ok := l.lookup(bookID)
	if !ok {
		return domain.ErrNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.stock < quantity {
		return &domain.ShortfallError{
			BookID:    bookID,
			Requested: quantity,
			Available: entry.stock,
		}
	}
	entry.stock -= quantity
	return nil
}

func (l *Ledger) Release(ctx context.Context, bookID string, quantity int) error {
	_ = ctx
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	entry, ok := l.lookup(bookID)
	if !ok {
		return domain.ErrNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	entry.stock += quantity
	return nil
}

func (l *Ledger) SetStock(ctx context.Context, bookID string, quantity int) error {
	_ = ctx
	if quantity < 0 {
		return domain.ErrInvalidQuantity
	}

	l.mu.Lock()
	entry, ok := l.items[bookID]
	if !ok {
		entry = &ledgerEntry{}
		l.items[bookID] = entry
	}
	l.mu.Unlock()

	entry.mu.Lock()
	entry.stock = quantity
	entry.mu.Unlock()
	return nil
}

func (l *Ledger) lookup(bookID string) (*ledgerEntry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	entry, ok := l.items[bookID]
	return entry, ok
}
