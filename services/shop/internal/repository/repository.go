package repository

import (
	"context"

	"github.com/gamehub/shop/services/shop/internal/domain"
)

// ProductFilter defines filter criteria for listing products.
type ProductFilter struct {
	Category string // exact category name, case-insensitive; empty for all
	Limit    int
	Offset   int
}

// ProductRepository reads the catalog.
type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)

	// List returns one page of products and the total match count.
	List(ctx context.Context, filter ProductFilter) ([]domain.Product, int, error)

	// Categories returns the distinct category names with product counts.
	Categories(ctx context.Context) ([]domain.Category, error)
}

// CartRepository persists cart lines keyed by customer identifier.
type CartRepository interface {
	// GetLine returns the line of customerID for productID, or ErrNotFound.
	GetLine(ctx context.Context, customerID, productID string) (*domain.CartLine, error)

	// InsertLine inserts a new line. A concurrent insert of the same
	// (customer, product) pair returns ErrConflict.
	InsertLine(ctx context.Context, line *domain.CartLine) error

	// IncrementLine adds one to the quantity if the line is still at
	// expectedVersion. It reports false when another writer got there first.
	IncrementLine(ctx context.Context, lineID string, expectedVersion int) (bool, error)

	// DeleteLine removes the line only if it belongs to customerID.
	DeleteLine(ctx context.Context, customerID, lineID string) (bool, error)

	// ListLines returns the customer's lines with product name and photo,
	// oldest first.
	ListLines(ctx context.Context, customerID string) ([]domain.CartLine, error)

	Total(ctx context.Context, customerID string) (int64, error)

	// Clear deletes every line of customerID and returns how many went.
	Clear(ctx context.Context, customerID string) (int64, error)
}

// FinalizeInput is everything OrderRepository.Finalize writes atomically.
type FinalizeInput struct {
	Order      *domain.Order
	CustomerID string
	// Lines is the (id, version) set the order was built from. Finalize
	// fails with ErrConflict if the cart no longer matches it.
	Lines []domain.LineVersion
	// ChargedTotal is what the gateway collected. Finalize fails with
	// ErrConflict when the order total differs from it.
	ChargedTotal int64
	Event        domain.OutboxEvent
}

// OrderRepository persists orders.
type OrderRepository interface {
	// Finalize stores the order with its details and outbox event and
	// deletes the processed cart lines in one transaction. If an order
	// already exists for the draft it is returned with created=false and
	// nothing is written.
	Finalize(ctx context.Context, in FinalizeInput) (order *domain.Order, created bool, err error)

	// GetByID returns an order with its details, or ErrNotFound.
	GetByID(ctx context.Context, id string) (*domain.Order, error)
}

// OutboxRepository reads and acknowledges outbox rows.
type OutboxRepository interface {
	// FetchUnpublished returns up to limit unpublished events, oldest first.
	FetchUnpublished(ctx context.Context, limit int) ([]domain.OutboxEvent, error)

	MarkPublished(ctx context.Context, ids []int64) error
}
