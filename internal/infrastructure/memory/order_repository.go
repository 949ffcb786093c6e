package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/ardenlake/bookshop/internal/domain/order"
)

type OrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{orders: make(map[string]*domain.Order)}
}

func (r *OrderRepository) Insert(ctx context.Context, order *domain.Order) error {
	_ = ctx
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return domain.ErrConflict
	}
	r.orders[order.ID] = order.Clone()
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return order.Clone(), nil
}

// UpdateStatus applies the status change only when the stored version
// still matches expectedVersion, so two concurrent writers cannot both
// win.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, expectedVersion int64, next domain.Status) (*domain.Order, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return nil, domain.ErrConflict
	}

	updated := stored.Clone()
	if err := updated.Transition(next); err != nil {
		return nil, err
	}
	r.orders[id] = updated
	return updated.Clone(), nil
}
