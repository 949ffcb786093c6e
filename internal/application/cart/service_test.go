package cart_test

import (
	"context"
	"testing"

	appcart "github.com/ardenlake/bookshop/internal/application/cart"
	domcart "github.com/ardenlake/bookshop/internal/domain/cart"
	domcatalog "github.com/ardenlake/bookshop/internal/domain/catalog"
	"github.com/ardenlake/bookshop/internal/infrastructure/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc     *appcart.Service
	store   *memory.CartStore
	ledger  *memory.Ledger
	catalog *memory.Catalog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   memory.NewCartStore(),
		ledger:  memory.NewLedger(),
		catalog: memory.NewCatalog(),
	}
	f.svc = appcart.NewService(f.store, f.ledger, f.catalog, nil)
	return f
}

func (f *fixture) addBook(t *testing.T, id, price string, stock int) {
	t.Helper()
	ctx := context.Background()
	book, err := domcatalog.NewBook(id, "Title of "+id, decimal.RequireFromString(price))
	require.NoError(t, err)
	require.NoError(t, f.catalog.Save(ctx, book))
	require.NoError(t, f.ledger.SetStock(ctx, id, stock))
}

func TestAdd_WithinStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addBook(t, "book-1", "20", 5)

	require.NoError(t, f.svc.Add(ctx, "owner-1", "book-1", 2))

	view, err := f.svc.View(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 2, view.Lines[0].Quantity)
}

func TestAdd_MergesExistingLine(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addBook(t, "book-1", "20", 5)

	require.NoError(t, f.svc.Add(ctx, "owner-1", "book-1", 2))
	require.NoError(t, f.svc.Add(ctx, "owner-1", "book-1", 1))

	view, err := f.svc.View(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, view.Lines, 1, "no duplicate line for the same book")
	assert.Equal(t, 3, view.Lines[0].Quantity)
}

func TestAdd_FailsClosedOnStockBound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addBook(t, "book-1", "20", 3)

	require.NoError(t, f.svc.Add(ctx, "owner-1", "book-1", 2))

	// 2 in cart + 2 requested > 3 available: reject, no clamp.
	err := f.svc.Add(ctx, "owner-1", "book-1", 2)
	var exceeded *appcart.StockExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, 4, exceeded.Requested)
	assert.Equal(t, 3, exceeded.Available)

	view, verr := f.svc.View(ctx, "owner-1")
	require.NoError(t, verr)
	assert.Equal(t, 2, view.Lines[0].Quantity, "failed add must not mutate the cart")
}

func TestAdd_UnknownBook(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	err := f.svc.Add(ctx, "owner-1", "ghost", 1)
	assert.ErrorIs(t, err, domcatalog.ErrNotFound)
}

func TestAdd_RejectsNonPositiveQuantity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addBook(t, "book-1", "20", 5)

	assert.ErrorIs(t, f.svc.Add(ctx, "owner-1", "book-1", 0), domcart.ErrInvalidQuantity)
	assert.ErrorIs(t, f.svc.Add(ctx, "owner-1", "book-1", -1), domcart.ErrInvalidQuantity)
}

func TestUpdateQuantity_Bounds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addBook(t, "book-1", "20", 3)
	require.NoError(t, f.svc.Add(ctx, "owner-1", "book-1", 1))

	require.NoError(t, f.svc.UpdateQuantity(ctx, "owner-1", "book-1", 3))

	err := f.svc.UpdateQuantity(ctx, "owner-1", "book-1", 4)
	var exceeded *appcart.StockExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, 4, exceeded.Requested)
	assert.Equal(t, 3, exceeded.Available)

	view, verr := f.svc.View(ctx, "owner-1")
	require.NoError(t, verr)
	assert.Equal(t, 3, view.Lines[0].Quantity)
}

func TestUpdateQuantity_ZeroIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addBook(t, "book-1", "20", 5)
	require.NoError(t, f.svc.Add(ctx, "owner-1", "book-1", 1))

	// Removal is an explicit Remove, never quantity zero.
	assert.ErrorIs(t, f.svc.UpdateQuantity(ctx, "owner-1", "book-1", 0), domcart.ErrInvalidQuantity)
	assert.ErrorIs(t, f.svc.UpdateQuantity(ctx, "owner-1", "book-1", -2), domcart.ErrInvalidQuantity)
}

func TestRemove_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addBook(t, "book-1", "20", 5)
	require.NoError(t, f.svc.Add(ctx, "owner-1", "book-1", 2))

	require.NoError(t, f.svc.Remove(ctx, "owner-1", "book-1"))
	require.NoError(t, f.svc.Remove(ctx, "owner-1", "book-1"))
	require.NoError(t, f.svc.Remove(ctx, "owner-1", "never-added"))

	view, err := f.svc.View(ctx, "owner-1")
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
}

func TestRoundTrip_AddRemoveYieldsEmptyCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addBook(t, "book-1", "20", 5)

	require.NoError(t, f.svc.Add(ctx, "owner-1", "book-1", 2))
	require.NoError(t, f.svc.Remove(ctx, "owner-1", "book-1"))

	view, err := f.svc.View(ctx, "owner-1")
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
	assert.True(t, view.Totals.Subtotal.IsZero())
	assert.True(t, view.Totals.Total.IsZero())
}

func TestView_TotalsRecomputedFromLivePrices(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addBook(t, "book-1", "20", 5)
	require.NoError(t, f.svc.Add(ctx, "owner-1", "book-1", 1))

	view, err := f.svc.View(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, "27.59", view.Totals.Total.StringFixed(2))

	// Reprice the book; the next view reflects it immediately.
	f.addBook(t, "book-1", "25", 5)
	view, err = f.svc.View(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, "25.00", view.Totals.Subtotal.StringFixed(2))
}

func TestAdd_NoLedgerEntryMeansNothingPurchasable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	// Book exists in the catalog but was never stocked.
	book, err := domcatalog.NewBook("book-1", "Unstocked", decimal.NewFromInt(10))
	require.NoError(t, err)
	require.NoError(t, f.catalog.Save(ctx, book))

	addErr := f.svc.Add(ctx, "owner-1", "book-1", 1)
	var exceeded *appcart.StockExceededError
	require.ErrorAs(t, addErr, &exceeded)
	assert.Equal(t, 0, exceeded.Available)
}
