package memory

import (
	"context"
	"sync"

	domain "github.com/ardenlake/bookshop/internal/domain/cart"
)

// CartStore keeps cart lines per owner. Mutations for one owner
// serialize on that owner's lock (two tabs adding concurrently must not
// lose an update); different owners never contend.
type CartStore struct {
	mu    sync.RWMutex
	carts map[string]*ownerCart
}

type ownerCart struct {
	mu    sync.Mutex
	lines []domain.Line // insertion order, preserved for display
}

func NewCartStore() *CartStore {
	return &CartStore{carts: make(map[string]*ownerCart)}
}

func (s *CartStore) Lines(ctx context.Context, ownerID string) ([]domain.Line, error) {
	_ = ctx

	s.mu.RLock()
	cart, ok := s.carts[ownerID]
	s.mu.RUnlock()
	if !ok {
		return []domain.Line{}, nil
	}

	cart.mu.Lock()
	defer cart.mu.Unlock()
	return append([]domain.Line(nil), cart.lines...), nil
}

func (s *CartStore) Upsert(ctx context.Context, ownerID, bookID string, delta int) error {
	_ = ctx

	cart := s.ownerCart(ownerID)
	cart.mu.Lock()
	defer cart.mu.Unlock()

	for i, l := range cart.lines {
		if l.BookID != bookID {
			continue
		}
		next := l.Quantity + delta
		if next <= 0 {
			cart.lines = append(cart.lines[:i], cart.lines[i+1:]...)
			return nil
		}
		cart.lines[i].Quantity = next
		return nil
	}

	if delta <= 0 {
		// Decrementing an absent line is a no-op.
		return nil
	}
	cart.lines = append(cart.lines, domain.Line{
		OwnerID:  ownerID,
		BookID:   bookID,
		Quantity: delta,
	})
	return nil
}

func (s *CartStore) SetQuantity(ctx context.Context, ownerID, bookID string, quantity int) error {
	_ = ctx

	cart := s.ownerCart(ownerID)
	cart.mu.Lock()
	defer cart.mu.Unlock()

	for i, l := range cart.lines {
		if l.BookID != bookID {
			continue
		}
		if quantity <= 0 {
			cart.lines = append(cart.lines[:i], cart.lines[i+1:]...)
			return nil
		}
		cart.lines[i].Quantity = quantity
		return nil
	}

	if quantity <= 0 {
		return nil
	}
	cart.lines = append(cart.lines, domain.Line{
		OwnerID:  ownerID,
		BookID:   bookID,
		Quantity: quantity,
	})
	return nil
}

func (s *CartStore) Clear(ctx context.Context, ownerID string) error {
	_ = ctx

	s.mu.RLock()
	cart, ok := s.carts[ownerID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	cart.mu.Lock()
	cart.lines = nil
	cart.mu.Unlock()
	return nil
}

// ownerCart returns the owner's cart, creating it lazily on first use.
func (s *CartStore) ownerCart(ownerID string) *ownerCart {
	s.mu.RLock()
	cart, ok := s.carts[ownerID]
	s.mu.RUnlock()
	if ok {
		return cart
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cart, ok = s.carts[ownerID]; ok {
		return cart
	}
	cart = &ownerCart{}
	s.carts[ownerID] = cart
	return cart
}
