package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gamehub/shop/pkg/database"
	apperrors "github.com/gamehub/shop/pkg/errors"
	"github.com/gamehub/shop/services/shop/internal/domain"
)

const (
	getCartLineSQL = `
		SELECT id, customer_id, product_id, quantity, unit_price, version, created_at, updated_at
		FROM cart_lines
		WHERE customer_id = $1 AND product_id = $2`

	insertCartLineSQL = `
		INSERT INTO cart_lines (id, customer_id, product_id, quantity, unit_price, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	incrementCartLineSQL = `
		UPDATE cart_lines
		SET quantity = quantity + 1, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2`

	deleteCartLineSQL = `DELETE FROM cart_lines WHERE id = $1 AND customer_id = $2`

	listCartLinesSQL = `
		SELECT cl.id, cl.customer_id, cl.product_id, p.name, p.photo,
			cl.quantity, cl.unit_price, cl.version, cl.created_at, cl.updated_at
		FROM cart_lines cl
		JOIN products p ON p.id = cl.product_id
		WHERE cl.customer_id = $1
		ORDER BY cl.created_at, cl.id`

	cartTotalSQL = `SELECT COALESCE(SUM(quantity::BIGINT * unit_price), 0)::BIGINT FROM cart_lines WHERE customer_id = $1`

	clearCartSQL = `DELETE FROM cart_lines WHERE customer_id = $1`
)

// CartRepository implements repository.CartRepository using PostgreSQL.
type CartRepository struct {
	db database.DBTX
}

// NewCartRepository creates a new PostgreSQL-backed cart repository.
func NewCartRepository(db database.DBTX) *CartRepository {
	return &CartRepository{db: db}
}

// GetLine returns the line of customerID for productID.
func (r *CartRepository) GetLine(ctx context.Context, customerID, productID string) (*domain.CartLine, error) {
	ctx, end := database.TraceQuery(ctx, "GetCartLine", getCartLineSQL)

	var l domain.CartLine
	err := r.db.QueryRow(ctx, getCartLineSQL, customerID, productID).Scan(
		&l.ID, &l.CustomerID, &l.ProductID, &l.Quantity, &l.UnitPrice, &l.Version, &l.CreatedAt, &l.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		end(nil)
		return nil, apperrors.NotFound("cart line for product", productID)
	}
	end(err)
	if err != nil {
		return nil, fmt.Errorf("scan cart line: %w", err)
	}
	return &l, nil
}

// InsertLine inserts a new cart line.
func (r *CartRepository) InsertLine(ctx context.Context, l *domain.CartLine) error {
	ctx, end := database.TraceQuery(ctx, "InsertCartLine", insertCartLineSQL)

	_, err := r.db.Exec(ctx, insertCartLineSQL,
		l.ID, l.CustomerID, l.ProductID, l.Quantity, l.UnitPrice, l.Version, l.CreatedAt, l.UpdatedAt,
	)
	if database.IsUniqueViolation(err) {
		end(nil)
		return apperrors.Conflict("the product was added to the cart concurrently")
	}
	end(err)
	if err != nil {
		return fmt.Errorf("insert cart line: %w", err)
	}
	return nil
}

// IncrementLine bumps quantity and version if the version still matches.
func (r *CartRepository) IncrementLine(ctx context.Context, lineID string, expectedVersion int) (ok bool, err error) {
	ctx, end := database.TraceQuery(ctx, "IncrementCartLine", incrementCartLineSQL)
	defer func() { end(err) }()

	tag, err := r.db.Exec(ctx, incrementCartLineSQL, lineID, expectedVersion)
	if err != nil {
		return false, fmt.Errorf("increment cart line: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteLine removes one line of customerID.
func (r *CartRepository) DeleteLine(ctx context.Context, customerID, lineID string) (ok bool, err error) {
	ctx, end := database.TraceQuery(ctx, "DeleteCartLine", deleteCartLineSQL)
	defer func() { end(err) }()

	tag, err := r.db.Exec(ctx, deleteCartLineSQL, lineID, customerID)
	if err != nil {
		return false, fmt.Errorf("delete cart line: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListLines returns the lines of customerID joined with product details.
func (r *CartRepository) ListLines(ctx context.Context, customerID string) (lines []domain.CartLine, err error) {
	ctx, end := database.TraceQuery(ctx, "ListCartLines", listCartLinesSQL)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, listCartLinesSQL, customerID)
	if err != nil {
		return nil, fmt.Errorf("list cart lines: %w", err)
	}
	defer rows.Close()

	lines = []domain.CartLine{}
	for rows.Next() {
		var l domain.CartLine
		if err := rows.Scan(
			&l.ID, &l.CustomerID, &l.ProductID, &l.ProductName, &l.ProductPhoto,
			&l.Quantity, &l.UnitPrice, &l.Version, &l.CreatedAt, &l.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart lines: %w", err)
	}
	return lines, nil
}

// Total returns the sum of quantity times unit price over the customer's lines.
func (r *CartRepository) Total(ctx context.Context, customerID string) (total int64, err error) {
	ctx, end := database.TraceQuery(ctx, "CartTotal", cartTotalSQL)
	defer func() { end(err) }()

	if err := r.db.QueryRow(ctx, cartTotalSQL, customerID).Scan(&total); err != nil {
		return 0, fmt.Errorf("cart total: %w", err)
	}
	return total, nil
}

// Clear deletes every line of customerID.
func (r *CartRepository) Clear(ctx context.Context, customerID string) (n int64, err error) {
	ctx, end := database.TraceQuery(ctx, "ClearCart", clearCartSQL)
	defer func() { end(err) }()

	tag, err := r.db.Exec(ctx, clearCartSQL, customerID)
	if err != nil {
		return 0, fmt.Errorf("clear cart: %w", err)
	}
	return tag.RowsAffected(), nil
}
