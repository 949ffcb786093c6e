package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/ardenlake/bookshop/internal/domain/catalog"
	"github.com/shopspring/decimal"
)

type Catalog struct {
	mu    sync.RWMutex
	books map[string]*domain.Book
}

func NewCatalog() *Catalog {
	return &Catalog{books: make(map[string]*domain.Book)}
}

func (c *Catalog) Get(ctx context.Context, bookID string) (*domain.Book, error) {
	_ = ctx

	c.mu.RLock()
	defer c.mu.RUnlock()

	book, ok := c.books[bookID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneBook(book), nil
}

func (c *Catalog) Price(ctx context.Context, bookID string) (decimal.Decimal, error) {
	book, err := c.Get(ctx, bookID)
	if err != nil {
		return decimal.Zero, err
	}
	return book.Price, nil
}

func (c *Catalog) Exists(ctx context.Context, bookID string) (bool, error) {
	_ = ctx

	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.books[bookID]
	return ok, nil
}

func (c *Catalog) Save(ctx context.Context, book *domain.Book) error {
	_ = ctx
	if book == nil || book.ID == "" {
		return fmt.Errorf("catalog: book id is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.books[book.ID] = cloneBook(book)
	return nil
}

func cloneBook(book *domain.Book) *domain.Book {
	if book == nil {
		return nil
	}
	clone := *book
	return &clone
}
