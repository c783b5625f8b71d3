package domain

import (
	"time"

	"github.com/google/uuid"
)

// Draft order statuses.
const (
	DraftStaged            = "staged"
	DraftPaymentRedirected = "payment_redirected"
)

// ContactFields are the delivery details bound from the checkout form.
type ContactFields struct {
	FirstName  string `json:"first_name" validate:"required,notblank,max=100"`
	LastName   string `json:"last_name" validate:"required,notblank,max=100"`
	Address    string `json:"address" validate:"required,notblank,max=200"`
	City       string `json:"city" validate:"required,notblank,max=100"`
	Province   string `json:"province" validate:"required,notblank,max=100"`
	PostalCode string `json:"postal_code" validate:"required,notblank,max=20"`
	Phone      string `json:"phone" validate:"required,phone"`
}

// DraftOrder is an order staged in the session between the checkout form
// and the payment callback. It is never persisted to the database.
type DraftOrder struct {
	ID               string        `json:"id"`
	CartCustomerID   string        `json:"cart_customer_id"`
	UserID           string        `json:"user_id"`
	Contact          ContactFields `json:"contact"`
	Total            int64         `json:"total"`
	Currency         string        `json:"currency"`
	Status           string        `json:"status"`
	GatewaySessionID string        `json:"gateway_session_id,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
}

// NewDraftOrder stages a draft for the cart of customerID.
func NewDraftOrder(customerID, userID string, contact ContactFields, total int64, currency string, now time.Time) *DraftOrder {
	return &DraftOrder{
		ID:             uuid.NewString(),
		CartCustomerID: customerID,
		UserID:         userID,
		Contact:        contact,
		Total:          total,
		Currency:       currency,
		Status:         DraftStaged,
		CreatedAt:      now.UTC(),
	}
}

// MarkPaymentRedirected records the gateway session the customer was sent to.
func (d *DraftOrder) MarkPaymentRedirected(gatewaySessionID string) {
	d.GatewaySessionID = gatewaySessionID
	d.Status = DraftPaymentRedirected
}

// PaymentInitiated reports whether the customer was sent to the gateway.
func (d *DraftOrder) PaymentInitiated() bool {
	return d.Status == DraftPaymentRedirected && d.GatewaySessionID != ""
}
