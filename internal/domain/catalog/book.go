package catalog

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound     = errors.New("catalog: book not found")
	ErrInvalidPrice = errors.New("catalog: price must be zero or greater")
)

// Book is a purchasable catalog item. Its available stock is not a field
// here; stock is owned exclusively by the inventory ledger.
type Book struct {
	ID    string
	Title string
	Price decimal.Decimal
}

func NewBook(id, title string, price decimal.Decimal) (*Book, error) {
	if price.IsNegative() {
		return nil, ErrInvalidPrice
	}
	return &Book{
		ID:    id,
		Title: title,
		Price: price,
	}, nil
}

// Reader is the read side of the catalog consumed by the cart and
// checkout flows. Prices read here are live display prices; an order
// captures its own copy at checkout time.
type Reader interface {
	Get(ctx context.Context, bookID string) (*Book, error)
	Price(ctx context.Context, bookID string) (decimal.Decimal, error)
	Exists(ctx context.Context, bookID string) (bool, error)
}

// Repository extends Reader with the administrative write side.
type Repository interface {
	Reader
	Save(ctx context.Context, book *Book) error
}
