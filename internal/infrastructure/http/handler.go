package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	appcart "github.com/ardenlake/bookshop/internal/application/cart"
	appcheckout "github.com/ardenlake/bookshop/internal/application/checkout"
	apporder "github.com/ardenlake/bookshop/internal/application/order"
	"github.com/ardenlake/bookshop/internal/auth"
	domcart "github.com/ardenlake/bookshop/internal/domain/cart"
	domcatalog "github.com/ardenlake/bookshop/internal/domain/catalog"
	dominv "github.com/ardenlake/bookshop/internal/domain/inventory"
	domorder "github.com/ardenlake/bookshop/internal/domain/order"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type Handler struct {
	carts    *appcart.Service
	checkout *appcheckout.Coordinator
	orders   *apporder.Service
	catalog  domcatalog.Repository
	ledger   dominv.Ledger
	resolver auth.Resolver
}

func NewHandler(
	carts *appcart.Service,
	checkout *appcheckout.Coordinator,
	orders *apporder.Service,
	catalog domcatalog.Repository,
	ledger dominv.Ledger,
	resolver auth.Resolver,
) *Handler {
	return &Handler{
		carts:    carts,
		checkout: checkout,
		orders:   orders,
		catalog:  catalog,
		ledger:   ledger,
		resolver: resolver,
	}
}

// Router builds the route tree. Middlewares passed here run inside the
// chi context, so route patterns are available to them.
func (h *Handler) Router(middlewares ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewares...)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireOwner(h.resolver))

		r.Get("/cart", h.handleGetCart)
		r.Post("/cart/items", h.handleAddItem)
		r.Put("/cart/items/{bookID}", h.handleUpdateItem)
		r.Delete("/cart/items/{bookID}", h.handleRemoveItem)
		r.Delete("/cart", h.handleClearCart)

		r.Post("/checkout", h.handleCheckout)
		r.Get("/orders/{orderID}", h.handleGetOrder)
		r.Post("/orders/{orderID}/cancel", h.handleCancelOrder)
	})

	// Administrative surface: catalog CRUD, restock, status moves.
	r.Route("/admin", func(r chi.Router) {
		r.Post("/books", h.handleCreateBook)
		r.Put("/books/{bookID}/stock", h.handleSetStock)
		r.Put("/orders/{orderID}/status", h.handleUpdateOrderStatus)
	})

	return r
}

type addItemRequest struct {
	BookID   string `json:"book_id"`
	Quantity int    `json:"quantity"`
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	ownerID, err := auth.OwnerFromContext(r.Context())
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	if err := h.carts.Add(r.Context(), ownerID, req.BookID, req.Quantity); err != nil {
		writeFailure(w, r, err)
		return
	}
	h.writeCartView(w, r, ownerID, http.StatusOK)
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	ownerID, err := auth.OwnerFromContext(r.Context())
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	var req updateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	if err := h.carts.UpdateQuantity(r.Context(), ownerID, chi.URLParam(r, "bookID"), req.Quantity); err != nil {
		writeFailure(w, r, err)
		return
	}
	h.writeCartView(w, r, ownerID, http.StatusOK)
}

func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	ownerID, err := auth.OwnerFromContext(r.Context())
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	if err := h.carts.Remove(r.Context(), ownerID, chi.URLParam(r, "bookID")); err != nil {
		writeFailure(w, r, err)
		return
	}
	h.writeCartView(w, r, ownerID, http.StatusOK)
}

func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	ownerID, err := auth.OwnerFromContext(r.Context())
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	if err := h.carts.Clear(r.Context(), ownerID); err != nil {
		writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	ownerID, err := auth.OwnerFromContext(r.Context())
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	h.writeCartView(w, r, ownerID, http.StatusOK)
}

type cartLineResponse struct {
	BookID    string `json:"book_id"`
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

type cartViewResponse struct {
	Lines    []cartLineResponse `json:"lines"`
	Subtotal string             `json:"subtotal"`
	Tax      string             `json:"tax"`
	Shipping string             `json:"shipping"`
	Total    string             `json:"total"`
}

func (h *Handler) writeCartView(w http.ResponseWriter, r *http.Request, ownerID string, status int) {
	view, err := h.carts.View(r.Context(), ownerID)
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	resp := cartViewResponse{
		Lines:    make([]cartLineResponse, 0, len(view.Lines)),
		Subtotal: money(view.Totals.Subtotal),
		Tax:      money(view.Totals.Tax),
		Shipping: money(view.Totals.Shipping),
		Total:    money(view.Totals.Total),
	}
	for _, l := range view.Lines {
		resp.Lines = append(resp.Lines, cartLineResponse{
			BookID:    l.BookID,
			Title:     l.Title,
			Quantity:  l.Quantity,
			UnitPrice: money(l.UnitPrice),
			LineTotal: money(l.LineTotal),
		})
	}
	writeJSON(w, status, resp)
}

type orderLineResponse struct {
	BookID    string `json:"book_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

type orderResponse struct {
	OrderID   string              `json:"order_id"`
	OwnerID   string              `json:"owner_id"`
	Lines     []orderLineResponse `json:"lines"`
	Subtotal  string              `json:"subtotal"`
	Tax       string              `json:"tax"`
	Shipping  string              `json:"shipping"`
	Total     string              `json:"total"`
	Status    string              `json:"status"`
	Version   int64               `json:"version"`
	CreatedAt string              `json:"created_at"`
}

func toOrderResponse(o *domorder.Order) orderResponse {
	resp := orderResponse{
		OrderID:   o.ID,
		OwnerID:   o.OwnerID,
		Lines:     make([]orderLineResponse, 0, len(o.Lines)),
		Subtotal:  money(o.Subtotal),
		Tax:       money(o.Tax),
		Shipping:  money(o.Shipping),
		Total:     money(o.Total),
		Status:    string(o.Status),
		Version:   o.Version,
		CreatedAt: o.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	for _, l := range o.Lines {
		resp.Lines = append(resp.Lines, orderLineResponse{
			BookID:    l.BookID,
			Quantity:  l.Quantity,
			UnitPrice: money(l.UnitPrice),
		})
	}
	return resp
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	ownerID, err := auth.OwnerFromContext(r.Context())
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	ord, err := h.checkout.Checkout(r.Context(), ownerID)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(ord))
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	ownerID, err := auth.OwnerFromContext(r.Context())
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	ord, err := h.orders.Get(r.Context(), ownerID, chi.URLParam(r, "orderID"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(ord))
}

type cancelOrderRequest struct {
	Version int64 `json:"version"`
}

func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	ownerID, err := auth.OwnerFromContext(r.Context())
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	var req cancelOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	ord, err := h.orders.Cancel(r.Context(), ownerID, chi.URLParam(r, "orderID"), req.Version)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(ord))
}

type updateOrderStatusRequest struct {
	Status  string `json:"status"`
	Version int64  `json:"version"`
}

func (h *Handler) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateOrderStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	ord, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "orderID"), req.Version, domorder.Status(req.Status))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(ord))
}

type createBookRequest struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Price string `json:"price"`
	Stock int    `json:"stock"`
}

func (h *Handler) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	var req createBookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "price must be a decimal string")
		return
	}

	book, err := domcatalog.NewBook(req.ID, req.Title, price)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if err := h.catalog.Save(r.Context(), book); err != nil {
		writeFailure(w, r, err)
		return
	}
	if err := h.ledger.SetStock(r.Context(), book.ID, req.Stock); err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": book.ID})
}

type setStockRequest struct {
	Stock int `json:"stock"`
}

func (h *Handler) handleSetStock(w http.ResponseWriter, r *http.Request) {
	var req setStockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	bookID := chi.URLParam(r, "bookID")
	ok, err := h.catalog.Exists(r.Context(), bookID)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if !ok {
		writeFailure(w, r, domcatalog.ErrNotFound)
		return
	}

	if err := h.ledger.SetStock(r.Context(), bookID, req.Stock); err != nil {
		writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type errorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Requested int    `json:"requested,omitempty"`
	Available int    `json:"available,omitempty"`
}

// writeFailure maps typed domain failures to HTTP statuses. Stock
// failures carry the exact requested/available pair so the UI can offer
// a corrected quantity instead of a generic error.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	_ = r

	var exceeded *appcart.StockExceededError
	if errors.As(err, &exceeded) {
		writeJSON(w, http.StatusConflict, errorResponse{
			Code:      "stock_exceeded",
			Message:   err.Error(),
			Requested: exceeded.Requested,
			Available: exceeded.Available,
		})
		return
	}

	var shortfall *dominv.ShortfallError
	if errors.As(err, &shortfall) {
		writeJSON(w, http.StatusConflict, errorResponse{
			Code:      "insufficient_stock",
			Message:   err.Error(),
			Requested: shortfall.Requested,
			Available: shortfall.Available,
		})
		return
	}

	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
	case errors.Is(err, domcatalog.ErrNotFound),
		errors.Is(err, dominv.ErrNotFound),
		errors.Is(err, domorder.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domcart.ErrInvalidQuantity),
		errors.Is(err, dominv.ErrInvalidQuantity),
		errors.Is(err, domorder.ErrInvalidQuantity),
		errors.Is(err, domcatalog.ErrInvalidPrice):
		writeError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.Is(err, appcheckout.ErrEmptyCart):
		writeError(w, http.StatusUnprocessableEntity, "empty_cart", err.Error())
	case errors.Is(err, domorder.ErrConflict):
		writeError(w, http.StatusConflict, "conflicting_update", err.Error())
	case errors.Is(err, domorder.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }
