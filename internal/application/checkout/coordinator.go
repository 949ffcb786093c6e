package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	domcart "github.com/ardenlake/bookshop/internal/domain/cart"
	domcatalog "github.com/ardenlake/bookshop/internal/domain/catalog"
	dominv "github.com/ardenlake/bookshop/internal/domain/inventory"
	domorder "github.com/ardenlake/bookshop/internal/domain/order"
	domoutbox "github.com/ardenlake/bookshop/internal/domain/outbox"
	"github.com/ardenlake/bookshop/internal/domain/pricing"
	"github.com/ardenlake/bookshop/internal/observability"
	"github.com/ardenlake/bookshop/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

const (
	useCaseCheckout = "checkout"
	spanCheckout    = "UC.Checkout"

	defaultAttemptWindow = 5 * time.Second
	defaultPriceFanout   = 8
)

var ErrEmptyCart = errors.New("checkout: cart is empty")

// attemptState tracks where a single checkout attempt is in its
// lifecycle. Committed and aborted are terminal.
type attemptState string

const (
	stateValidating attemptState = "validating"
	stateReserving  attemptState = "reserving"
	stateCommitted  attemptState = "committed"
	stateAborted    attemptState = "aborted"
)

// Coordinator converts a cart into an order with all-or-nothing
// semantics across the cart store and the inventory ledger. There is no
// shared transaction between the two, so the coordinator reserves stock
// line by line and compensates with releases when anything downstream
// fails: no partial order, no lost stock.
//
// Attempts are serialized per owner, so two concurrent checkouts over
// one cart cannot both validate it and produce duplicate orders. Lines
// added to the cart while an attempt is in flight are left untouched:
// commit removes only the quantities the order actually bought.
type Coordinator struct {
	store   domcart.Store
	ledger  dominv.Ledger
	catalog domcatalog.Reader
	orders  domorder.Repository
	idGen   IDGenerator
	pub     domoutbox.Publisher

	mu     sync.Mutex
	owners map[string]*sync.Mutex

	attemptWindow time.Duration
	priceFanout   int

	tel          observability.Observability
	log          observability.Logger
	reqCounter   observability.Counter
	durHistogram observability.Histogram
	abortCounter observability.Counter
}

// Option tweaks coordinator tuning knobs.
type Option func(*Coordinator)

// WithAttemptWindow bounds how long a single attempt may spend before
// it self-aborts through the compensation path.
func WithAttemptWindow(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.attemptWindow = d
		}
	}
}

// WithPriceFanout caps the concurrent catalog price reads during
// validation.
func WithPriceFanout(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.priceFanout = n
		}
	}
}

func NewCoordinator(
	store domcart.Store,
	ledger dominv.Ledger,
	catalog domcatalog.Reader,
	orders domorder.Repository,
	idGen IDGenerator,
	pub domoutbox.Publisher,
	tel observability.Observability,
	opts ...Option,
) *Coordinator {
	if tel == nil {
		tel = observability.Nop()
	}
	c := &Coordinator{
		store:         store,
		ledger:        ledger,
		catalog:       catalog,
		orders:        orders,
		idGen:         idGen,
		pub:           pub,
		owners:        make(map[string]*sync.Mutex),
		attemptWindow: defaultAttemptWindow,
		priceFanout:   defaultPriceFanout,
		tel:           tel,
		log:           tel.Logger().With(observability.F("component", "checkout_coordinator")),
		reqCounter:    tel.Metrics().Counter(observability.MUsecaseRequests),
		durHistogram:  tel.Metrics().Histogram(observability.MUsecaseDuration),
		abortCounter:  tel.Metrics().Counter(observability.MCheckoutAborts),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// attempt is the per-checkout state machine instance. It remembers
// every reservation taken so far so an abort can walk them back in
// reverse.
type attempt struct {
	ownerID  string
	state    attemptState
	lines    []domorder.Line
	reserved []domorder.Line
}

// ownerLock returns the mutex serializing attempts for one owner,
// mirroring the ledger's per-entry locks.
func (c *Coordinator) ownerLock(ownerID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.owners[ownerID]
	if !ok {
		l = &sync.Mutex{}
		c.owners[ownerID] = l
	}
	return l
}

// Checkout runs one attempt for the owner's current cart. Only one
// attempt per owner runs at a time.
func (c *Coordinator) Checkout(ctx context.Context, ownerID string) (_ *domorder.Order, err error) {
	lock := c.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	logger := logctx.FromOr(ctx, c.log).With(observability.F("use_case", useCaseCheckout))

	ctx, span := c.tel.Tracer().Start(ctx, spanCheckout,
		attribute.String("use_case", useCaseCheckout),
		attribute.String("cart.owner_id", ownerID),
	)
	start := time.Now()
	a := &attempt{ownerID: ownerID, state: stateValidating}

	defer func() {
		lat := time.Since(start).Seconds()
		outcome := "success"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, string(a.state))
		} else {
			span.SetStatus(codes.Ok, string(a.state))
		}
		span.SetAttributes(attribute.String("checkout.state", string(a.state)))
		span.End()

		c.reqCounter.Add(1,
			observability.L("use_case", useCaseCheckout),
			observability.L("outcome", outcome),
		)
		c.durHistogram.Observe(lat, observability.L("use_case", useCaseCheckout))

		fields := []observability.Field{
			observability.F("owner_id", ownerID),
			observability.F("state", string(a.state)),
			observability.F("latency_seconds", lat),
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("checkout_done", fields...)
	}()

	// The whole attempt runs under a bounded window; expiry aborts
	// through the same compensation path as any other failure.
	ctx, cancel := context.WithTimeout(ctx, c.attemptWindow)
	defer cancel()

	if err = c.validate(ctx, a); err != nil {
		a.state = stateAborted
		return nil, err
	}

	a.state = stateReserving
	if err = c.reserve(ctx, a); err != nil {
		c.compensate(ctx, a)
		a.state = stateAborted
		c.abortCounter.Add(1, observability.L("reason", abortReason(err)))
		return nil, err
	}

	ord, err := c.commit(ctx, a)
	if err != nil {
		// Stock was reserved but no order exists; the reservations
		// must not be lost to a phantom order.
		c.compensate(ctx, a)
		a.state = stateAborted
		c.abortCounter.Add(1, observability.L("reason", abortReason(err)))
		return nil, err
	}

	a.state = stateCommitted
	return ord, nil
}

// validate reads the cart and captures each line's unit price at this
// moment; these prices are the audit boundary between the mutable
// catalog and the historical order.
func (c *Coordinator) validate(ctx context.Context, a *attempt) error {
	cartLines, err := c.store.Lines(ctx, a.ownerID)
	if err != nil {
		return fmt.Errorf("checkout: read cart: %w", err)
	}
	if len(cartLines) == 0 {
		return ErrEmptyCart
	}

	lines := make([]domorder.Line, len(cartLines))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.priceFanout)
	for idx := range cartLines {
		g.Go(func() error {
			cl := cartLines[idx]
			if cl.Quantity <= 0 {
				return domcart.ErrInvalidQuantity
			}
			price, err := c.catalog.Price(gctx, cl.BookID)
			if err != nil {
				return fmt.Errorf("checkout: price for %s: %w", cl.BookID, err)
			}
			lines[idx] = domorder.Line{
				BookID:    cl.BookID,
				Quantity:  cl.Quantity,
				UnitPrice: price,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	a.lines = lines
	return nil
}

// reserve takes stock for each line in ascending book-ID order. The
// fixed global order prevents two concurrent checkouts over overlapping
// book sets from deadlocking against each other.
func (c *Coordinator) reserve(ctx context.Context, a *attempt) error {
	ordered := append([]domorder.Line(nil), a.lines...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].BookID < ordered[j].BookID })

	for _, line := range ordered {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("checkout: attempt window expired: %w", err)
		}
		if err := c.ledger.Reserve(ctx, line.BookID, line.Quantity); err != nil {
			return err
		}
		a.reserved = append(a.reserved, line)
	}
	return nil
}

// compensate releases every reservation this attempt has taken, newest
// first. Release failures are logged, never propagated: the caller is
// already on an error path.
func (c *Coordinator) compensate(ctx context.Context, a *attempt) {
	logger := logctx.FromOr(ctx, c.log)

	// Releases must run even when the attempt window has expired.
	ctx = context.WithoutCancel(ctx)

	for i := len(a.reserved) - 1; i >= 0; i-- {
		line := a.reserved[i]
		if err := c.ledger.Release(ctx, line.BookID, line.Quantity); err != nil {
			logger.Error("checkout_release_failed",
				observability.F("owner_id", a.ownerID),
				observability.F("book_id", line.BookID),
				observability.F("quantity", line.Quantity),
				observability.F("error", err.Error()),
			)
		}
	}
	a.reserved = nil
}

// commit persists the order and consumes the bought lines from the
// cart as one logical step.
func (c *Coordinator) commit(ctx context.Context, a *attempt) (*domorder.Order, error) {
	priced := make([]pricing.PricedLine, len(a.lines))
	for i, l := range a.lines {
		priced[i] = pricing.PricedLine{Quantity: l.Quantity, UnitPrice: l.UnitPrice}
	}
	totals := pricing.Compute(priced)

	ord, err := domorder.New(
		c.idGen.NewID(), a.ownerID, a.lines,
		totals.Subtotal, totals.Tax, totals.Shipping, totals.Total,
	)
	if err != nil {
		return nil, fmt.Errorf("checkout: construct order: %w", err)
	}

	if err := c.orders.Insert(ctx, ord); err != nil {
		return nil, fmt.Errorf("checkout: persist order: %w", err)
	}

	// The order is durable now; a failed cart update must not undo it.
	// Only the purchased quantities are removed, so a line added from
	// another session during the attempt survives in the cart.
	postCtx := context.WithoutCancel(ctx)
	for _, l := range a.lines {
		if err := c.store.Upsert(postCtx, a.ownerID, l.BookID, -l.Quantity); err != nil {
			logctx.FromOr(ctx, c.log).Error("checkout_cart_consume_failed",
				observability.F("owner_id", a.ownerID),
				observability.F("order_id", ord.ID),
				observability.F("book_id", l.BookID),
				observability.F("error", err.Error()),
			)
		}
	}

	if c.pub != nil {
		if err := c.pub.Publish(postCtx, domorder.NewOrderPlacedEvent(ord)); err != nil {
			logctx.FromOr(ctx, c.log).Warn("order_placed_event_dropped",
				observability.F("order_id", ord.ID),
				observability.F("error", err.Error()),
			)
		}
	}

	return ord, nil
}

func abortReason(err error) string {
	switch {
	case errors.Is(err, dominv.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, context.DeadlineExceeded):
		return "attempt_window_expired"
	default:
		return "commit_failed"
	}
}
