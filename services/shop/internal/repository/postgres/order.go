package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/gamehub/shop/pkg/database"
	apperrors "github.com/gamehub/shop/pkg/errors"
	"github.com/gamehub/shop/services/shop/internal/domain"
	"github.com/gamehub/shop/services/shop/internal/repository"
)

const (
	lockCartLinesSQL = `SELECT id, version FROM cart_lines WHERE customer_id = $1 ORDER BY id FOR UPDATE`

	orderIDByDraftSQL = `SELECT id FROM orders WHERE draft_id = $1`

	insertOrderSQL = `
		INSERT INTO orders (id, draft_id, user_id, first_name, last_name, address, city, province,
			postal_code, phone, order_date, total, currency, payment_reference, gateway_reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	insertOrderDetailSQL = `
		INSERT INTO order_details (id, order_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5)`

	deleteProcessedLinesSQL = `DELETE FROM cart_lines WHERE customer_id = $1 AND id = ANY($2)`

	// Details are aggregated in the same round trip.
	getOrderSQL = `
		SELECT
			o.id, o.draft_id, o.user_id, o.first_name, o.last_name, o.address, o.city, o.province,
			o.postal_code, o.phone, o.order_date, o.total, o.currency, o.payment_reference,
			o.gateway_reference, o.created_at,
			COALESCE(
				JSONB_AGG(
					JSONB_BUILD_OBJECT(
						'id', d.id,
						'order_id', d.order_id,
						'product_id', d.product_id,
						'quantity', d.quantity,
						'unit_price', d.unit_price
					) ORDER BY d.id
				) FILTER (WHERE d.id IS NOT NULL),
				'[]'::jsonb
			) AS details
		FROM orders o
		LEFT JOIN order_details d ON d.order_id = o.id
		WHERE o.id = $1
		GROUP BY o.id`
)

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	db database.TxBeginner
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(db database.TxBeginner) *OrderRepository {
	return &OrderRepository{db: db}
}

// Finalize writes the order, its details and its outbox event and removes
// the processed cart lines, all in one transaction.
func (r *OrderRepository) Finalize(ctx context.Context, in repository.FinalizeInput) (order *domain.Order, created bool, err error) {
	ctx, end := database.TraceQuery(ctx, "FinalizeOrder", insertOrderSQL)
	defer func() { end(err) }()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Locking first serialises concurrent finalizations of one cart, so the
	// draft lookup below sees an order committed by the winner.
	locked, err := lockLines(ctx, tx, in.CustomerID)
	if err != nil {
		return nil, false, err
	}

	var existingID string
	err = tx.QueryRow(ctx, orderIDByDraftSQL, in.Order.DraftID).Scan(&existingID)
	switch {
	case err == nil:
		if err := tx.Commit(ctx); err != nil {
			return nil, false, fmt.Errorf("commit transaction: %w", err)
		}
		existing, err := getOrder(ctx, r.db, existingID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, false, fmt.Errorf("lookup order by draft: %w", err)
	}

	if len(in.Lines) == 0 || in.Order.Total != in.ChargedTotal {
		return nil, false, apperrors.Conflict("the cart no longer matches the payment")
	}
	if !sameLines(locked, in.Lines) {
		return nil, false, apperrors.Conflict("the cart changed during checkout")
	}

	o := in.Order
	c := o.Contact
	if _, err := tx.Exec(ctx, insertOrderSQL,
		o.ID, o.DraftID, o.UserID, c.FirstName, c.LastName, c.Address, c.City, c.Province,
		c.PostalCode, c.Phone, o.OrderDate, o.Total, o.Currency, o.PaymentReference,
		o.GatewayReference, o.CreatedAt,
	); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, false, apperrors.Conflict("an order for this checkout is already being placed")
		}
		return nil, false, fmt.Errorf("insert order: %w", err)
	}

	for _, d := range o.Details {
		if _, err := tx.Exec(ctx, insertOrderDetailSQL, d.ID, d.OrderID, d.ProductID, d.Quantity, d.UnitPrice); err != nil {
			return nil, false, fmt.Errorf("insert order detail: %w", err)
		}
	}

	if err := insertOutboxEvent(ctx, tx, in.Event); err != nil {
		return nil, false, err
	}

	ids := make([]string, len(in.Lines))
	for i, l := range in.Lines {
		ids[i] = l.ID
	}
	tag, err := tx.Exec(ctx, deleteProcessedLinesSQL, in.CustomerID, ids)
	if err != nil {
		return nil, false, fmt.Errorf("delete processed cart lines: %w", err)
	}
	if tag.RowsAffected() != int64(len(ids)) {
		return nil, false, apperrors.Conflict("the cart changed during checkout")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit transaction: %w", err)
	}
	return o, true, nil
}

func lockLines(ctx context.Context, tx pgx.Tx, customerID string) ([]domain.LineVersion, error) {
	rows, err := tx.Query(ctx, lockCartLinesSQL, customerID)
	if err != nil {
		return nil, fmt.Errorf("lock cart lines: %w", err)
	}
	defer rows.Close()

	var locked []domain.LineVersion
	for rows.Next() {
		var lv domain.LineVersion
		if err := rows.Scan(&lv.ID, &lv.Version); err != nil {
			return nil, fmt.Errorf("scan locked cart line: %w", err)
		}
		locked = append(locked, lv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locked cart lines: %w", err)
	}
	return locked, nil
}

// sameLines compares two (id, version) sets regardless of order.
func sameLines(a, b []domain.LineVersion) bool {
	if len(a) != len(b) {
		return false
	}
	sorted := func(in []domain.LineVersion) []domain.LineVersion {
		out := append([]domain.LineVersion(nil), in...)
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return out
	}
	x, y := sorted(a), sorted(b)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

// GetByID retrieves an order with its details.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (o *domain.Order, err error) {
	ctx, end := database.TraceQuery(ctx, "GetOrder", getOrderSQL)
	o, err = getOrder(ctx, r.db, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		end(nil)
	} else {
		end(err)
	}
	return o, err
}

func getOrder(ctx context.Context, db database.DBTX, id string) (*domain.Order, error) {
	var (
		o           domain.Order
		detailsJSON []byte
	)
	c := &o.Contact
	err := db.QueryRow(ctx, getOrderSQL, id).Scan(
		&o.ID, &o.DraftID, &o.UserID, &c.FirstName, &c.LastName, &c.Address, &c.City, &c.Province,
		&c.PostalCode, &c.Phone, &o.OrderDate, &o.Total, &o.Currency, &o.PaymentReference,
		&o.GatewayReference, &o.CreatedAt, &detailsJSON,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("order", id)
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}

	o.Details = []domain.OrderDetail{}
	if len(detailsJSON) > 0 {
		if err := json.Unmarshal(detailsJSON, &o.Details); err != nil {
			return nil, fmt.Errorf("unmarshal order details: %w", err)
		}
	}
	return &o, nil
}
