package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/gamehub/shop/pkg/errors"
	"github.com/gamehub/shop/services/shop/internal/repository"
)

var productCols = []string{"id", "name", "price", "category", "release_year", "photo", "created_at", "updated_at"}

func TestProductRepository_GetByID(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)
	now := time.Now().UTC()

	mock.ExpectQuery(q(getProductSQL)).
		WithArgs("p-1").
		WillReturnRows(pgxmock.NewRows(productCols).
			AddRow("p-1", "Halo 3", int64(1999), "Shooter", 2007, "halo3.jpg", now, now))

	p, err := repo.GetByID(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, "Halo 3", p.Name)
	assert.Equal(t, int64(1999), p.Price)
	assert.Equal(t, 2007, p.ReleaseYear)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_GetByID_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)

	mock.ExpectQuery(q(getProductSQL)).WithArgs("missing").WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_GetByID_DBError(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)

	mock.ExpectQuery(q(getProductSQL)).WithArgs("p-1").WillReturnError(errors.New("connection reset"))

	_, err := repo.GetByID(context.Background(), "p-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestProductRepository_List(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)
	now := time.Now().UTC()

	mock.ExpectQuery(q(countProductsSQL)).WithArgs("shooter").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(13))
	mock.ExpectQuery(q(listProductsSQL)).WithArgs("shooter", 12, 12).
		WillReturnRows(pgxmock.NewRows(productCols).
			AddRow("p-13", "Quake", int64(999), "Shooter", 1996, "", now, now))

	products, total, err := repo.List(context.Background(), repository.ProductFilter{Category: "shooter", Limit: 12, Offset: 12})
	require.NoError(t, err)
	assert.Equal(t, 13, total)
	require.Len(t, products, 1)
	assert.Equal(t, "Quake", products[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_List_CountError(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)

	mock.ExpectQuery(q(countProductsSQL)).WithArgs("").WillReturnError(errors.New("boom"))

	_, _, err := repo.List(context.Background(), repository.ProductFilter{Limit: 12})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count products")
}

func TestProductRepository_Categories(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)

	mock.ExpectQuery(q(listCategoriesSQL)).
		WillReturnRows(pgxmock.NewRows([]string{"category", "count"}).
			AddRow("Role-Playing", 4).
			AddRow("Shooter", 7))

	cats, err := repo.Categories(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "Role-Playing", cats[0].Name)
	assert.Equal(t, 7, cats[1].ProductCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_Categories_Empty(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)

	mock.ExpectQuery(q(listCategoriesSQL)).WillReturnRows(pgxmock.NewRows([]string{"category", "count"}))

	cats, err := repo.Categories(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, cats)
	assert.Empty(t, cats)
}
