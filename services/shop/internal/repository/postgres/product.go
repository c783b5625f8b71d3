package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gamehub/shop/pkg/database"
	apperrors "github.com/gamehub/shop/pkg/errors"
	"github.com/gamehub/shop/services/shop/internal/domain"
	"github.com/gamehub/shop/services/shop/internal/repository"
)

const productColumns = `id, name, price, category, release_year, photo, created_at, updated_at`

const (
	getProductSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	countProductsSQL = `SELECT COUNT(*) FROM products WHERE ($1 = '' OR LOWER(category) = LOWER($1))`

	listProductsSQL = `
		SELECT ` + productColumns + `
		FROM products
		WHERE ($1 = '' OR LOWER(category) = LOWER($1))
		ORDER BY name, id
		LIMIT $2 OFFSET $3`

	listCategoriesSQL = `
		SELECT category, COUNT(*)
		FROM products
		GROUP BY category
		ORDER BY category`
)

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	db database.DBTX
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(db database.DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Category, &p.ReleaseYear, &p.Photo, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByID retrieves a product by its ID.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	ctx, end := database.TraceQuery(ctx, "GetProduct", getProductSQL)

	p, err := scanProduct(r.db.QueryRow(ctx, getProductSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		end(nil)
		return nil, apperrors.NotFound("product", id)
	}
	end(err)
	if err != nil {
		return nil, fmt.Errorf("scan product: %w", err)
	}
	return p, nil
}

// List returns one page of products ordered by name.
func (r *ProductRepository) List(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, int, error) {
	var total int
	cctx, end := database.TraceQuery(ctx, "CountProducts", countProductsSQL)
	err := r.db.QueryRow(cctx, countProductsSQL, filter.Category).Scan(&total)
	end(err)
	if err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	lctx, end := database.TraceQuery(ctx, "ListProducts", listProductsSQL)
	products, err := r.list(lctx, filter)
	end(err)
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (r *ProductRepository) list(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, error) {
	rows, err := r.db.Query(ctx, listProductsSQL, filter.Category, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, filter.Limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

// Categories returns the distinct categories. Slugs are filled in by the
// service.
func (r *ProductRepository) Categories(ctx context.Context) (cats []domain.Category, err error) {
	ctx, end := database.TraceQuery(ctx, "ListCategories", listCategoriesSQL)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, listCategoriesSQL)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	cats = []domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.Name, &c.ProductCount); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return cats, nil
}
