package order_test

import (
	"context"
	"testing"

	apporder "github.com/ardenlake/bookshop/internal/application/order"
	domorder "github.com/ardenlake/bookshop/internal/domain/order"
	domoutbox "github.com/ardenlake/bookshop/internal/domain/outbox"
	"github.com/ardenlake/bookshop/internal/infrastructure/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	events []domoutbox.Event
}

func (p *capturePublisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.events = append(p.events, e)
	return nil
}

// strictPublisher refuses events carried on a dead context, the way a
// real bus enqueue would.
type strictPublisher struct {
	events []domoutbox.Event
}

func (p *strictPublisher) Publish(ctx context.Context, e domoutbox.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.events = append(p.events, e)
	return nil
}

type fixture struct {
	svc    *apporder.Service
	repo   *memory.OrderRepository
	ledger *memory.Ledger
	pub    *capturePublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:   memory.NewOrderRepository(),
		ledger: memory.NewLedger(),
		pub:    &capturePublisher{},
	}
	f.svc = apporder.NewService(f.repo, f.ledger, f.pub, nil)
	return f
}

func (f *fixture) placeOrder(t *testing.T, id, owner string, lines []domorder.Line) *domorder.Order {
	t.Helper()
	ord, err := domorder.New(id, owner, lines,
		decimal.NewFromInt(20), decimal.RequireFromString("1.60"),
		decimal.RequireFromString("5.99"), decimal.RequireFromString("27.59"),
	)
	require.NoError(t, err)
	require.NoError(t, f.repo.Insert(context.Background(), ord))
	return ord
}

func defaultLines() []domorder.Line {
	return []domorder.Line{{BookID: "book-1", Quantity: 2, UnitPrice: decimal.NewFromInt(10)}}
}

func TestGet_OwnerScoped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.placeOrder(t, "ord-1", "owner-1", defaultLines())

	got, err := f.svc.Get(ctx, "owner-1", "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "ord-1", got.ID)

	// Someone else's order is indistinguishable from a missing one.
	_, err = f.svc.Get(ctx, "owner-2", "ord-1")
	assert.ErrorIs(t, err, domorder.ErrNotFound)
}

func TestUpdateStatus_HappyPath(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ord := f.placeOrder(t, "ord-1", "owner-1", defaultLines())

	updated, err := f.svc.UpdateStatus(ctx, ord.ID, ord.Version, domorder.StatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, domorder.StatusProcessing, updated.Status)

	require.Len(t, f.pub.events, 1)
	evt, ok := f.pub.events[0].(domorder.OrderStatusChangedEvent)
	require.True(t, ok)
	assert.Equal(t, domorder.StatusPending, evt.From)
	assert.Equal(t, domorder.StatusProcessing, evt.To)
}

func TestUpdateStatus_StaleVersionConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ord := f.placeOrder(t, "ord-1", "owner-1", defaultLines())

	_, err := f.svc.UpdateStatus(ctx, ord.ID, ord.Version, domorder.StatusProcessing)
	require.NoError(t, err)

	// Second writer with the original version must get a conflict, not
	// silently overwrite.
	_, err = f.svc.UpdateStatus(ctx, ord.ID, ord.Version, domorder.StatusCancelled)
	assert.ErrorIs(t, err, domorder.ErrConflict)
}

func TestUpdateStatus_UnknownStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ord := f.placeOrder(t, "ord-1", "owner-1", defaultLines())

	_, err := f.svc.UpdateStatus(ctx, ord.ID, ord.Version, domorder.Status("teleported"))
	assert.ErrorIs(t, err, domorder.ErrInvalidTransition)
}

func TestCancel_ReplenishesStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	// Checkout left 3 of 5 on the shelf.
	require.NoError(t, f.ledger.SetStock(ctx, "book-1", 3))
	ord := f.placeOrder(t, "ord-1", "owner-1", defaultLines())

	cancelled, err := f.svc.Cancel(ctx, "owner-1", ord.ID, ord.Version)
	require.NoError(t, err)
	assert.Equal(t, domorder.StatusCancelled, cancelled.Status)

	available, err := f.ledger.Available(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, 5, available, "cancelled units return to the ledger")
}

func TestCancel_OnlyOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.ledger.SetStock(ctx, "book-1", 3))
	ord := f.placeOrder(t, "ord-1", "owner-1", defaultLines())

	_, err := f.svc.Cancel(ctx, "owner-2", ord.ID, ord.Version)
	assert.ErrorIs(t, err, domorder.ErrNotFound)

	// Nothing changed for the real owner.
	got, gerr := f.svc.Get(ctx, "owner-1", ord.ID)
	require.NoError(t, gerr)
	assert.Equal(t, domorder.StatusPending, got.Status)
}

func TestCancel_AfterShippingRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.ledger.SetStock(ctx, "book-1", 3))
	ord := f.placeOrder(t, "ord-1", "owner-1", defaultLines())

	v2, err := f.svc.UpdateStatus(ctx, ord.ID, ord.Version, domorder.StatusProcessing)
	require.NoError(t, err)
	v3, err := f.svc.UpdateStatus(ctx, ord.ID, v2.Version, domorder.StatusShipped)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, "owner-1", ord.ID, v3.Version)
	assert.ErrorIs(t, err, domorder.ErrInvalidTransition)

	available, aerr := f.ledger.Available(ctx, "book-1")
	require.NoError(t, aerr)
	assert.Equal(t, 3, available, "rejected cancellation must not touch stock")
}

func TestUpdateStatus_PublishesEventOnCancelledRequest(t *testing.T) {
	f := newFixture(t)
	pub := &strictPublisher{}
	svc := apporder.NewService(f.repo, f.ledger, pub, nil)
	f.placeOrder(t, "ord-1", "owner-1", defaultLines())

	// The request dies mid-flight; the durable status change must still
	// produce its event.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	updated, err := svc.UpdateStatus(ctx, "ord-1", 1, domorder.StatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, domorder.StatusProcessing, updated.Status)

	require.Len(t, pub.events, 1)
	evt, ok := pub.events[0].(domorder.OrderStatusChangedEvent)
	require.True(t, ok)
	assert.Equal(t, domorder.StatusPending, evt.From)
	assert.Equal(t, domorder.StatusProcessing, evt.To)
}
