package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/gamehub/shop/pkg/errors"
	"github.com/gamehub/shop/services/shop/internal/domain"
	"github.com/gamehub/shop/services/shop/internal/repository"
	"github.com/gamehub/shop/services/shop/internal/session"
)

// CartView is the cart page: lines plus the display totals.
type CartView struct {
	Items        []domain.CartLine `json:"items"`
	ItemCount    int               `json:"item_count"`
	Total        int64             `json:"total"`
	TotalDisplay string            `json:"total_display"`
	Currency     string            `json:"currency"`
}

// CartService implements the cart of a browser session. The cart is keyed
// by the session's customer identifier, never by the logged-in user.
type CartService struct {
	carts    repository.CartRepository
	products repository.ProductRepository
	currency string
	logger   *slog.Logger
	now      func() time.Time
}

// NewCartService creates a new cart service.
func NewCartService(carts repository.CartRepository, products repository.ProductRepository, currency string, logger *slog.Logger) *CartService {
	return &CartService{
		carts:    carts,
		products: products,
		currency: currency,
		logger:   logger,
		now:      time.Now,
	}
}

func customerID(ctx context.Context, sess *session.Session) (string, error) {
	id, err := sess.CurrentCustomerID(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve cart identifier: %w", err)
	}
	return id, nil
}

// AddItem puts one unit of productID in the cart. A new line snapshots the
// current price; an existing line keeps its snapshot and gains one unit.
func (s *CartService) AddItem(ctx context.Context, sess *session.Session, productID string) (line *domain.CartLine, err error) {
	defer func() { cartMutations.WithLabelValues("add", outcome(err)).Inc() }()

	customer, err := customerID(ctx, sess)
	if err != nil {
		return nil, err
	}

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}

	existing, err := s.carts.GetLine(ctx, customer, product.ID)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		now := s.now().UTC()
		line = &domain.CartLine{
			ID:           uuid.NewString(),
			CustomerID:   customer,
			ProductID:    product.ID,
			ProductName:  product.Name,
			ProductPhoto: product.Photo,
			Quantity:     1,
			UnitPrice:    product.Price,
			Version:      1,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.carts.InsertLine(ctx, line); err != nil {
			return nil, fmt.Errorf("insert cart line: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("get cart line: %w", err)
	default:
		ok, err := s.carts.IncrementLine(ctx, existing.ID, existing.Version)
		if err != nil {
			return nil, fmt.Errorf("increment cart line: %w", err)
		}
		if !ok {
			return nil, apperrors.Conflict("the cart line was modified concurrently")
		}
		line = existing
		line.Quantity++
		line.Version++
		line.ProductName = product.Name
		line.ProductPhoto = product.Photo
	}

	s.logger.InfoContext(ctx, "cart item added",
		slog.String("product_id", product.ID),
		slog.String("cart_line_id", line.ID),
		slog.Int("quantity", line.Quantity),
	)
	return line, nil
}

// RemoveItem deletes a line of the session's cart. Lines of other carts
// are reported as not found.
func (s *CartService) RemoveItem(ctx context.Context, sess *session.Session, lineID string) (err error) {
	defer func() { cartMutations.WithLabelValues("remove", outcome(err)).Inc() }()

	customer, err := customerID(ctx, sess)
	if err != nil {
		return err
	}
	ok, err := s.carts.DeleteLine(ctx, customer, lineID)
	if err != nil {
		return fmt.Errorf("delete cart line: %w", err)
	}
	if !ok {
		return apperrors.NotFound("cart line", lineID)
	}
	return nil
}

// ListItems returns the cart lines oldest first and refreshes the cart
// badge count kept in the session.
func (s *CartService) ListItems(ctx context.Context, sess *session.Session) ([]domain.CartLine, error) {
	customer, err := customerID(ctx, sess)
	if err != nil {
		return nil, err
	}
	lines, err := s.carts.ListLines(ctx, customer)
	if err != nil {
		return nil, fmt.Errorf("list cart lines: %w", err)
	}
	if lines == nil {
		lines = []domain.CartLine{}
	}

	if err := sess.SetItemCount(ctx, domain.ItemCount(lines)); err != nil {
		s.logger.WarnContext(ctx, "failed to store cart item count", slog.String("error", err.Error()))
	}
	return lines, nil
}

// Total returns the cart total in hundredths, 0 for an empty cart.
func (s *CartService) Total(ctx context.Context, sess *session.Session) (int64, error) {
	customer, err := customerID(ctx, sess)
	if err != nil {
		return 0, err
	}
	total, err := s.carts.Total(ctx, customer)
	if err != nil {
		return 0, fmt.Errorf("cart total: %w", err)
	}
	return total, nil
}

// View assembles the cart page.
func (s *CartService) View(ctx context.Context, sess *session.Session) (*CartView, error) {
	lines, err := s.ListItems(ctx, sess)
	if err != nil {
		return nil, err
	}
	total := domain.CartTotal(lines)
	return &CartView{
		Items:        lines,
		ItemCount:    domain.ItemCount(lines),
		Total:        total,
		TotalDisplay: domain.FormatAmount(total, s.currency),
		Currency:     s.currency,
	}, nil
}

// Clear empties the session's cart and resets the badge count.
func (s *CartService) Clear(ctx context.Context, sess *session.Session) (removed int64, err error) {
	defer func() { cartMutations.WithLabelValues("clear", outcome(err)).Inc() }()

	customer, err := customerID(ctx, sess)
	if err != nil {
		return 0, err
	}
	removed, err = s.carts.Clear(ctx, customer)
	if err != nil {
		return 0, fmt.Errorf("clear cart: %w", err)
	}
	if err := sess.SetItemCount(ctx, 0); err != nil {
		s.logger.WarnContext(ctx, "failed to reset cart item count", slog.String("error", err.Error()))
	}
	return removed, nil
}
