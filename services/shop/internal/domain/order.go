package domain

import (
	"time"

	"github.com/google/uuid"
)

// Order is a paid order. Total always equals the sum of its details.
type Order struct {
	ID               string        `json:"id"`
	DraftID          string        `json:"draft_id"`
	UserID           string        `json:"user_id"`
	Contact          ContactFields `json:"contact"`
	OrderDate        time.Time     `json:"order_date"`
	Total            int64         `json:"total"`
	Currency         string        `json:"currency"`
	PaymentReference string        `json:"payment_reference"`
	GatewayReference string        `json:"gateway_reference"`
	CreatedAt        time.Time     `json:"created_at"`
	Details          []OrderDetail `json:"details"`
}

// OrderDetail is one purchased product. Details are never modified.
type OrderDetail struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// Subtotal returns quantity times unit price.
func (d OrderDetail) Subtotal() int64 {
	return int64(d.Quantity) * d.UnitPrice
}

// NewOrderFromCart builds the order for draft from the cart lines as they
// are now, one detail per line. The caller compares the result's Total with
// the amount that was charged.
func NewOrderFromCart(draft *DraftOrder, lines []CartLine, now time.Time) *Order {
	o := &Order{
		ID:               uuid.NewString(),
		DraftID:          draft.ID,
		UserID:           draft.UserID,
		Contact:          draft.Contact,
		OrderDate:        draft.CreatedAt,
		Currency:         draft.Currency,
		PaymentReference: draft.CartCustomerID,
		GatewayReference: draft.GatewaySessionID,
		CreatedAt:        now.UTC(),
		Details:          make([]OrderDetail, 0, len(lines)),
	}
	for _, l := range lines {
		d := OrderDetail{
			ID:        uuid.NewString(),
			OrderID:   o.ID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		}
		o.Details = append(o.Details, d)
		o.Total += d.Subtotal()
	}
	return o
}

// OrderCreatedData is the payload of the order.created event.
type OrderCreatedData struct {
	OrderID   string                   `json:"order_id"`
	UserID    string                   `json:"user_id"`
	Total     int64                    `json:"total"`
	Currency  string                   `json:"currency"`
	OrderDate time.Time                `json:"order_date"`
	Items     []OrderCreatedDataDetail `json:"items"`
}

type OrderCreatedDataDetail struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// CreatedEventData returns the order.created payload for o.
func (o *Order) CreatedEventData() OrderCreatedData {
	items := make([]OrderCreatedDataDetail, len(o.Details))
	for i, d := range o.Details {
		items[i] = OrderCreatedDataDetail{ProductID: d.ProductID, Quantity: d.Quantity, UnitPrice: d.UnitPrice}
	}
	return OrderCreatedData{
		OrderID:   o.ID,
		UserID:    o.UserID,
		Total:     o.Total,
		Currency:  o.Currency,
		OrderDate: o.OrderDate,
		Items:     items,
	}
}
