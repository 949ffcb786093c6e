package cart

import (
	"context"
	"errors"
	"fmt"

	domcart "github.com/ardenlake/bookshop/internal/domain/cart"
	domcatalog "github.com/ardenlake/bookshop/internal/domain/catalog"
	dominv "github.com/ardenlake/bookshop/internal/domain/inventory"
	"github.com/ardenlake/bookshop/internal/domain/pricing"
	"github.com/ardenlake/bookshop/internal/observability"
	"github.com/ardenlake/bookshop/internal/observability/logctx"
	"github.com/shopspring/decimal"
)

const componentCartManager = "cart_manager"

// StockExceededError is the advisory pre-checkout bound violation: the
// requested quantity would exceed stock as read at mutation time. It
// carries the exact shortfall so the UI can offer a corrected quantity.
// Stock can still change before checkout; the authoritative check is
// the coordinator's reservation.
type StockExceededError struct {
	BookID    string
	Requested int
	Available int
}

func (e *StockExceededError) Error() string {
	return fmt.Sprintf("cart: quantity %d for %s exceeds available stock %d",
		e.Requested, e.BookID, e.Available)
}

// Service is the cart manager: it orchestrates the cart store and the
// inventory ledger for all pre-checkout mutations. Bounds checks here
// fail closed — a violating request mutates nothing, rather than being
// clamped to whatever is left.
type Service struct {
	store   domcart.Store
	ledger  dominv.Ledger
	catalog domcatalog.Reader

	log        observability.Logger
	reqCounter observability.Counter
}

func NewService(store domcart.Store, ledger dominv.Ledger, catalog domcatalog.Reader, tel observability.Observability) *Service {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Service{
		store:      store,
		ledger:     ledger,
		catalog:    catalog,
		log:        tel.Logger().With(observability.F("component", componentCartManager)),
		reqCounter: tel.Metrics().Counter(observability.MUsecaseRequests),
	}
}

// Add puts quantity units of a book into the owner's cart, merging into
// an existing line. quantity <= 0 is rejected; a zero-argument caller
// should pass 1.
func (s *Service) Add(ctx context.Context, ownerID, bookID string, quantity int) error {
	logger := logctx.FromOr(ctx, s.log)

	if quantity <= 0 {
		return domcart.ErrInvalidQuantity
	}
	if err := s.ensureExists(ctx, bookID); err != nil {
		return err
	}

	inCart, err := s.quantityInCart(ctx, ownerID, bookID)
	if err != nil {
		return err
	}
	if err := s.checkBound(ctx, bookID, inCart+quantity); err != nil {
		s.count("cart.add", "rejected")
		return err
	}

	if err := s.store.Upsert(ctx, ownerID, bookID, quantity); err != nil {
		return fmt.Errorf("cart: upsert: %w", err)
	}

	s.count("cart.add", "success")
	logger.Info("cart_line_added",
		observability.F("owner_id", ownerID),
		observability.F("book_id", bookID),
		observability.F("quantity", quantity),
	)
	return nil
}

// UpdateQuantity sets the absolute quantity of an existing or new line.
// Zero or negative quantities are rejected with ErrInvalidQuantity;
// removal is an explicit Remove, not a quantity of zero.
func (s *Service) UpdateQuantity(ctx context.Context, ownerID, bookID string, quantity int) error {
	logger := logctx.FromOr(ctx, s.log)

	if quantity < 1 {
		return domcart.ErrInvalidQuantity
	}
	if err := s.ensureExists(ctx, bookID); err != nil {
		return err
	}
	if err := s.checkBound(ctx, bookID, quantity); err != nil {
		s.count("cart.update", "rejected")
		return err
	}

	if err := s.store.SetQuantity(ctx, ownerID, bookID, quantity); err != nil {
		return fmt.Errorf("cart: set quantity: %w", err)
	}

	s.count("cart.update", "success")
	logger.Info("cart_line_updated",
		observability.F("owner_id", ownerID),
		observability.F("book_id", bookID),
		observability.F("quantity", quantity),
	)
	return nil
}

// Remove deletes the line. Removing an absent line is a successful
// no-op, so retries are safe.
func (s *Service) Remove(ctx context.Context, ownerID, bookID string) error {
	if err := s.store.SetQuantity(ctx, ownerID, bookID, 0); err != nil {
		return fmt.Errorf("cart: remove: %w", err)
	}
	s.count("cart.remove", "success")
	return nil
}

// Clear empties the owner's cart. Idempotent.
func (s *Service) Clear(ctx context.Context, ownerID string) error {
	if err := s.store.Clear(ctx, ownerID); err != nil {
		return fmt.Errorf("cart: clear: %w", err)
	}
	s.count("cart.clear", "success")
	return nil
}

// ViewLine is a display line: the stored quantity joined with the live
// catalog price.
type ViewLine struct {
	BookID    string
	Title     string
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// View is the cart read model: lines in insertion order plus totals
// recomputed from live prices on every call.
type View struct {
	Lines  []ViewLine
	Totals pricing.Totals
}

func (s *Service) View(ctx context.Context, ownerID string) (*View, error) {
	lines, err := s.store.Lines(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("cart: read lines: %w", err)
	}

	view := &View{Lines: make([]ViewLine, 0, len(lines))}
	priced := make([]pricing.PricedLine, 0, len(lines))
	for _, l := range lines {
		book, err := s.catalog.Get(ctx, l.BookID)
		if err != nil {
			// A book deleted from the catalog after it entered a cart
			// would otherwise wedge the whole view.
			if errors.Is(err, domcatalog.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("cart: price lookup for %s: %w", l.BookID, err)
		}
		lineTotal := book.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		view.Lines = append(view.Lines, ViewLine{
			BookID:    l.BookID,
			Title:     book.Title,
			Quantity:  l.Quantity,
			UnitPrice: book.Price,
			LineTotal: lineTotal,
		})
		priced = append(priced, pricing.PricedLine{Quantity: l.Quantity, UnitPrice: book.Price})
	}
	view.Totals = pricing.Compute(priced)
	return view, nil
}

func (s *Service) ensureExists(ctx context.Context, bookID string) error {
	ok, err := s.catalog.Exists(ctx, bookID)
	if err != nil {
		return fmt.Errorf("cart: catalog lookup: %w", err)
	}
	if !ok {
		return domcatalog.ErrNotFound
	}
	return nil
}

// checkBound enforces the advisory stock limit: the resulting line
// quantity must not exceed stock as read now.
func (s *Service) checkBound(ctx context.Context, bookID string, wanted int) error {
	available, err := s.ledger.Available(ctx, bookID)
	if err != nil {
		if errors.Is(err, dominv.ErrNotFound) {
			// No ledger entry means nothing purchasable yet.
			available = 0
		} else {
			return fmt.Errorf("cart: stock lookup: %w", err)
		}
	}
	if wanted > available {
		return &StockExceededError{BookID: bookID, Requested: wanted, Available: available}
	}
	return nil
}

func (s *Service) quantityInCart(ctx context.Context, ownerID, bookID string) (int, error) {
	lines, err := s.store.Lines(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("cart: read lines: %w", err)
	}
	for _, l := range lines {
		if l.BookID == bookID {
			return l.Quantity, nil
		}
	}
	return 0, nil
}

func (s *Service) count(useCase, outcome string) {
	s.reqCounter.Add(1,
		observability.L("use_case", useCase),
		observability.L("outcome", outcome),
	)
}
