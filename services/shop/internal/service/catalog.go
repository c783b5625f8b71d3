package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gamehub/shop/pkg/pagination"
	"github.com/gamehub/shop/pkg/slug"
	"github.com/gamehub/shop/services/shop/internal/domain"
	"github.com/gamehub/shop/services/shop/internal/repository"
)

// CatalogService serves storefront browsing.
type CatalogService struct {
	products repository.ProductRepository
	logger   *slog.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(products repository.ProductRepository, logger *slog.Logger) *CatalogService {
	return &CatalogService{products: products, logger: logger}
}

// GetProduct returns one product or ErrNotFound.
func (s *CatalogService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// ListProducts returns one page of products. category may be a category
// name or its slug; an unknown category yields an empty page.
func (s *CatalogService) ListProducts(ctx context.Context, category string, params pagination.Params) (pagination.Result[domain.Product], error) {
	name := ""
	if category = strings.TrimSpace(category); category != "" {
		resolved, ok, err := s.resolveCategory(ctx, category)
		if err != nil {
			return pagination.Result[domain.Product]{}, err
		}
		if !ok {
			return pagination.NewResult[domain.Product](nil, 0, params), nil
		}
		name = resolved
	}

	products, total, err := s.products.List(ctx, repository.ProductFilter{
		Category: name,
		Limit:    params.PerPage,
		Offset:   params.Offset,
	})
	if err != nil {
		return pagination.Result[domain.Product]{}, fmt.Errorf("list products: %w", err)
	}
	return pagination.NewResult(products, total, params), nil
}

// Categories returns the distinct categories with their slugs.
func (s *CatalogService) Categories(ctx context.Context) ([]domain.Category, error) {
	cats, err := s.products.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	for i := range cats {
		cats[i].Slug = slug.Generate(cats[i].Name)
	}
	return cats, nil
}

func (s *CatalogService) resolveCategory(ctx context.Context, category string) (string, bool, error) {
	cats, err := s.Categories(ctx)
	if err != nil {
		return "", false, err
	}
	want := slug.Generate(category)
	for _, c := range cats {
		if strings.EqualFold(c.Name, category) || (want != "" && c.Slug == want) {
			return c.Name, true, nil
		}
	}
	return "", false, nil
}
