package httptransport_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	appcart "github.com/ardenlake/bookshop/internal/application/cart"
	appcheckout "github.com/ardenlake/bookshop/internal/application/checkout"
	apporder "github.com/ardenlake/bookshop/internal/application/order"
	"github.com/ardenlake/bookshop/internal/auth"
	domcatalog "github.com/ardenlake/bookshop/internal/domain/catalog"
	httptransport "github.com/ardenlake/bookshop/internal/infrastructure/http"
	"github.com/ardenlake/bookshop/internal/infrastructure/id"
	"github.com/ardenlake/bookshop/internal/infrastructure/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	router  http.Handler
	ledger  *memory.Ledger
	catalog *memory.Catalog
}

func newEnv(t *testing.T) *env {
	t.Helper()

	store := memory.NewCartStore()
	ledger := memory.NewLedger()
	catalog := memory.NewCatalog()
	orders := memory.NewOrderRepository()

	carts := appcart.NewService(store, ledger, catalog, nil)
	coord := appcheckout.NewCoordinator(store, ledger, catalog, orders, id.NewUUIDGenerator(), nil, nil)
	orderSvc := apporder.NewService(orders, ledger, nil, nil)

	handler := httptransport.NewHandler(carts, coord, orderSvc, catalog, ledger, auth.NewHeaderResolver("X-Owner-ID"))
	return &env{router: handler.Router(), ledger: ledger, catalog: catalog}
}

func (e *env) seedBook(t *testing.T, bookID, price string, stock int) {
	t.Helper()
	book, err := domcatalog.NewBook(bookID, "Title of "+bookID, decimal.RequireFromString(price))
	require.NoError(t, err)
	require.NoError(t, e.catalog.Save(t.Context(), book))
	require.NoError(t, e.ledger.SetStock(t.Context(), bookID, stock))
}

func (e *env) do(t *testing.T, method, path, owner string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if owner != "" {
		req.Header.Set("X-Owner-ID", owner)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestCartRoutes_RequireOwner(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodPost, "/checkout", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAddItem_ReturnsCartView(t *testing.T) {
	e := newEnv(t)
	e.seedBook(t, "book-1", "20", 5)

	rec := e.do(t, http.MethodPost, "/cart/items", "owner-1",
		map[string]any{"book_id": "book-1", "quantity": 1})
	require.Equal(t, http.StatusOK, rec.Code)

	view := decode[map[string]any](t, rec)
	assert.Equal(t, "20.00", view["subtotal"])
	assert.Equal(t, "1.60", view["tax"])
	assert.Equal(t, "5.99", view["shipping"])
	assert.Equal(t, "27.59", view["total"])
}

func TestAddItem_StockExceededCarriesShortfall(t *testing.T) {
	e := newEnv(t)
	e.seedBook(t, "book-1", "20", 3)

	rec := e.do(t, http.MethodPost, "/cart/items", "owner-1",
		map[string]any{"book_id": "book-1", "quantity": 4})
	require.Equal(t, http.StatusConflict, rec.Code)

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "stock_exceeded", body["code"])
	assert.Equal(t, float64(4), body["requested"])
	assert.Equal(t, float64(3), body["available"])
}

func TestUpdateItem_ZeroQuantityRejected(t *testing.T) {
	e := newEnv(t)
	e.seedBook(t, "book-1", "20", 5)
	e.do(t, http.MethodPost, "/cart/items", "owner-1", map[string]any{"book_id": "book-1"})

	rec := e.do(t, http.MethodPut, "/cart/items/book-1", "owner-1",
		map[string]any{"quantity": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckout_EmptyCart(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/checkout", "owner-1", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "empty_cart", body["code"])
}

func TestCheckoutAndOrderLifecycle(t *testing.T) {
	e := newEnv(t)
	e.seedBook(t, "book-1", "20", 5)
	e.do(t, http.MethodPost, "/cart/items", "owner-1",
		map[string]any{"book_id": "book-1", "quantity": 2})

	rec := e.do(t, http.MethodPost, "/checkout", "owner-1", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	placed := decode[map[string]any](t, rec)
	orderID, _ := placed["order_id"].(string)
	require.NotEmpty(t, orderID)
	assert.Equal(t, "pending", placed["status"])

	// The cart is consumed.
	rec = e.do(t, http.MethodGet, "/cart", "owner-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[map[string]any](t, rec)
	assert.Empty(t, view["lines"])

	// Owner can read the order; a stranger cannot.
	rec = e.do(t, http.MethodGet, "/orders/"+orderID, "owner-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = e.do(t, http.MethodGet, "/orders/"+orderID, "owner-2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Admin advances the status; a stale version conflicts.
	rec = e.do(t, http.MethodPut, "/admin/orders/"+orderID+"/status", "",
		map[string]any{"status": "processing", "version": 1})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = e.do(t, http.MethodPut, "/admin/orders/"+orderID+"/status", "",
		map[string]any{"status": "shipped", "version": 1})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Owner cancels with the current version; stock comes back.
	rec = e.do(t, http.MethodPost, fmt.Sprintf("/orders/%s/cancel", orderID), "owner-1",
		map[string]any{"version": 2})
	require.Equal(t, http.StatusOK, rec.Code)
	cancelled := decode[map[string]any](t, rec)
	assert.Equal(t, "cancelled", cancelled["status"])

	available, err := e.ledger.Available(t.Context(), "book-1")
	require.NoError(t, err)
	assert.Equal(t, 5, available)
}

func TestAdminCreateBookAndRestock(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/admin/books", "",
		map[string]any{"id": "book-9", "title": "New Arrival", "price": "12.50", "stock": 4})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = e.do(t, http.MethodPut, "/admin/books/book-9/stock", "",
		map[string]any{"stock": 10})
	require.Equal(t, http.StatusNoContent, rec.Code)

	available, err := e.ledger.Available(t.Context(), "book-9")
	require.NoError(t, err)
	assert.Equal(t, 10, available)

	rec = e.do(t, http.MethodPut, "/admin/books/ghost/stock", "",
		map[string]any{"stock": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
