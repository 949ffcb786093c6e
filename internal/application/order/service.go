package order

import (
	"context"

	dominv "github.com/ardenlake/bookshop/internal/domain/inventory"
	domain "github.com/ardenlake/bookshop/internal/domain/order"
	domoutbox "github.com/ardenlake/bookshop/internal/domain/outbox"
	"github.com/ardenlake/bookshop/internal/observability"
	"github.com/ardenlake/bookshop/internal/observability/logctx"
)

const componentOrderService = "order_service"

// Service handles reads and status lifecycle changes on placed orders.
// Status writes go through the repository's compare-and-set so a user
// cancelling and an admin updating concurrently cannot silently lose an
// update.
type Service struct {
	repo   domain.Repository
	ledger dominv.Ledger
	pub    domoutbox.Publisher

	log        observability.Logger
	released   observability.Counter
	reqCounter observability.Counter
}

func NewService(repo domain.Repository, ledger dominv.Ledger, pub domoutbox.Publisher, tel observability.Observability) *Service {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Service{
		repo:       repo,
		ledger:     ledger,
		pub:        pub,
		log:        tel.Logger().With(observability.F("component", componentOrderService)),
		released:   tel.Metrics().Counter(observability.MStockReleased),
		reqCounter: tel.Metrics().Counter(observability.MUsecaseRequests),
	}
}

// Get returns the owner's order. An order belonging to someone else is
// reported as not found rather than as a permission error, to avoid
// leaking order IDs.
func (s *Service) Get(ctx context.Context, ownerID, orderID string) (*domain.Order, error) {
	ord, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if ownerID != "" && ord.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return ord, nil
}

// UpdateStatus advances the lifecycle under optimistic versioning. A
// stale expectedVersion yields domain.ErrConflict; the caller re-reads
// and retries.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, expectedVersion int64, next domain.Status) (*domain.Order, error) {
	logger := logctx.FromOr(ctx, s.log)

	if !next.Valid() {
		return nil, domain.ErrInvalidTransition
	}

	before, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateStatus(ctx, orderID, expectedVersion, next)
	if err != nil {
		s.count("order.update_status", "error")
		return nil, err
	}

	if next == domain.StatusCancelled {
		s.replenish(ctx, updated)
	}

	s.count("order.update_status", "success")
	logger.Info("order_status_changed",
		observability.F("order_id", orderID),
		observability.F("from", string(before.Status)),
		observability.F("to", string(next)),
	)

	if s.pub != nil {
		// The status change is already durable; a cancelled request must
		// not drop the event.
		pubCtx := context.WithoutCancel(ctx)
		if err := s.pub.Publish(pubCtx, domain.NewOrderStatusChangedEvent(updated, before.Status)); err != nil {
			logger.Warn("order_status_event_dropped",
				observability.F("order_id", orderID),
				observability.F("error", err.Error()),
			)
		}
	}
	return updated, nil
}

// Cancel is the owner-facing cancellation: only the order's owner may
// cancel, and only while the lifecycle still allows it.
func (s *Service) Cancel(ctx context.Context, ownerID, orderID string, expectedVersion int64) (*domain.Order, error) {
	if _, err := s.Get(ctx, ownerID, orderID); err != nil {
		return nil, err
	}
	return s.UpdateStatus(ctx, orderID, expectedVersion, domain.StatusCancelled)
}

// replenish returns a cancelled order's reserved units to the ledger.
// Without this, every cancellation would permanently shrink inventory.
func (s *Service) replenish(ctx context.Context, ord *domain.Order) {
	logger := logctx.FromOr(ctx, s.log)
	ctx = context.WithoutCancel(ctx)

	for _, line := range ord.Lines {
		if err := s.ledger.Release(ctx, line.BookID, line.Quantity); err != nil {
			logger.Error("cancel_release_failed",
				observability.F("order_id", ord.ID),
				observability.F("book_id", line.BookID),
				observability.F("quantity", line.Quantity),
				observability.F("error", err.Error()),
			)
			continue
		}
		s.released.Add(float64(line.Quantity), observability.L("reason", "order_cancelled"))
	}
}

func (s *Service) count(useCase, outcome string) {
	s.reqCounter.Add(1,
		observability.L("use_case", useCase),
		observability.L("outcome", outcome),
	)
}
