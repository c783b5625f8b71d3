package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/gamehub/shop/pkg/errors"
	"github.com/gamehub/shop/services/shop/internal/domain"
	"github.com/gamehub/shop/services/shop/internal/repository"
	"github.com/gamehub/shop/services/shop/internal/session"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestSession(t *testing.T) (*session.Session, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return session.NewStore(client, time.Hour).Session(uuid.NewString()), mr
}

// --- testify mocks ---

type mockProductRepo struct {
	mock.Mock
}

func (m *mockProductRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*domain.Product)
	return p, args.Error(1)
}

func (m *mockProductRepo) List(ctx context.Context, f repository.ProductFilter) ([]domain.Product, int, error) {
	args := m.Called(ctx, f)
	ps, _ := args.Get(0).([]domain.Product)
	return ps, args.Int(1), args.Error(2)
}

func (m *mockProductRepo) Categories(ctx context.Context) ([]domain.Category, error) {
	args := m.Called(ctx)
	cs, _ := args.Get(0).([]domain.Category)
	return cs, args.Error(1)
}

type mockCartRepo struct {
	mock.Mock
}

func (m *mockCartRepo) GetLine(ctx context.Context, customerID, productID string) (*domain.CartLine, error) {
	args := m.Called(ctx, customerID, productID)
	l, _ := args.Get(0).(*domain.CartLine)
	return l, args.Error(1)
}

func (m *mockCartRepo) InsertLine(ctx context.Context, line *domain.CartLine) error {
	return m.Called(ctx, line).Error(0)
}

func (m *mockCartRepo) IncrementLine(ctx context.Context, lineID string, version int) (bool, error) {
	args := m.Called(ctx, lineID, version)
	return args.Bool(0), args.Error(1)
}

func (m *mockCartRepo) DeleteLine(ctx context.Context, customerID, lineID string) (bool, error) {
	args := m.Called(ctx, customerID, lineID)
	return args.Bool(0), args.Error(1)
}

func (m *mockCartRepo) ListLines(ctx context.Context, customerID string) ([]domain.CartLine, error) {
	args := m.Called(ctx, customerID)
	ls, _ := args.Get(0).([]domain.CartLine)
	return ls, args.Error(1)
}

func (m *mockCartRepo) Total(ctx context.Context, customerID string) (int64, error) {
	args := m.Called(ctx, customerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockCartRepo) Clear(ctx context.Context, customerID string) (int64, error) {
	args := m.Called(ctx, customerID)
	return args.Get(0).(int64), args.Error(1)
}

type mockOrderRepo struct {
	mock.Mock
}

func (m *mockOrderRepo) Finalize(ctx context.Context, in repository.FinalizeInput) (*domain.Order, bool, error) {
	args := m.Called(ctx, in)
	o, _ := args.Get(0).(*domain.Order)
	return o, args.Bool(1), args.Error(2)
}

func (m *mockOrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	o, _ := args.Get(0).(*domain.Order)
	return o, args.Error(1)
}

// --- in-memory store for end-to-end properties ---

// memStore implements the product, cart and order repositories over maps
// with the same semantics as the postgres repositories.
type memStore struct {
	mu       sync.Mutex
	products map[string]domain.Product
	lines    map[string]*domain.CartLine
	orders   map[string]*domain.Order
	outbox   []domain.OutboxEvent
	seq      time.Time
}

func newMemStore(products ...domain.Product) *memStore {
	s := &memStore{
		products: make(map[string]domain.Product),
		lines:    make(map[string]*domain.CartLine),
		orders:   make(map[string]*domain.Order),
		seq:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *memStore) setPrice(id string, price int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.products[id]
	p.Price = price
	s.products[id] = p
}

func (s *memStore) GetByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, apperrors.NotFound("product", id)
	}
	return &p, nil
}

func (s *memStore) List(context.Context, repository.ProductFilter) ([]domain.Product, int, error) {
	return nil, 0, nil
}

func (s *memStore) Categories(context.Context) ([]domain.Category, error) {
	return nil, nil
}

func (s *memStore) GetLine(_ context.Context, customerID, productID string) (*domain.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.lines {
		if l.CustomerID == customerID && l.ProductID == productID {
			cp := *l
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("cart line for product", productID)
}

func (s *memStore) InsertLine(_ context.Context, line *domain.CartLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.lines {
		if l.CustomerID == line.CustomerID && l.ProductID == line.ProductID {
			return apperrors.Conflict("the product was added to the cart concurrently")
		}
	}
	// Distinct creation times keep ListLines ordering deterministic.
	s.seq = s.seq.Add(time.Second)
	cp := *line
	cp.CreatedAt = s.seq
	s.lines[line.ID] = &cp
	return nil
}

func (s *memStore) IncrementLine(_ context.Context, lineID string, version int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lines[lineID]
	if !ok || l.Version != version {
		return false, nil
	}
	l.Quantity++
	l.Version++
	return true, nil
}

func (s *memStore) DeleteLine(_ context.Context, customerID, lineID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lines[lineID]
	if !ok || l.CustomerID != customerID {
		return false, nil
	}
	delete(s.lines, lineID)
	return true, nil
}

func (s *memStore) ListLines(_ context.Context, customerID string) ([]domain.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.CartLine{}
	for _, l := range s.lines {
		if l.CustomerID == customerID {
			cp := *l
			cp.ProductName = s.products[l.ProductID].Name
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) Total(ctx context.Context, customerID string) (int64, error) {
	lines, _ := s.ListLines(ctx, customerID)
	return domain.CartTotal(lines), nil
}

func (s *memStore) Clear(_ context.Context, customerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, l := range s.lines {
		if l.CustomerID == customerID {
			delete(s.lines, id)
			n++
		}
	}
	return n, nil
}

func (s *memStore) Finalize(_ context.Context, in repository.FinalizeInput) (*domain.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.DraftID == in.Order.DraftID {
			return o, false, nil
		}
	}
	if len(in.Lines) == 0 || in.Order.Total != in.ChargedTotal {
		return nil, false, apperrors.Conflict("the cart no longer matches the payment")
	}
	var current []domain.LineVersion
	for _, l := range s.lines {
		if l.CustomerID == in.CustomerID {
			current = append(current, domain.LineVersion{ID: l.ID, Version: l.Version})
		}
	}
	if !sameVersions(current, in.Lines) {
		return nil, false, apperrors.Conflict("the cart changed during checkout")
	}
	s.orders[in.Order.ID] = in.Order
	s.outbox = append(s.outbox, in.Event)
	for _, lv := range in.Lines {
		delete(s.lines, lv.ID)
	}
	return in.Order, true, nil
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func sameVersions(a, b []domain.LineVersion) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[domain.LineVersion]bool, len(a))
	for _, lv := range a {
		seen[lv] = true
	}
	for _, lv := range b {
		if !seen[lv] {
			return false
		}
	}
	return true
}

// memStore.GetByID serves products; orders are looked up through this view.
type memOrders struct{ *memStore }

func (m memOrders) GetByID(_ context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, apperrors.NotFound("order", id)
	}
	return o, nil
}

func requireNoOrders(t *testing.T, s *memStore) {
	t.Helper()
	require.Zero(t, s.orderCount())
}
