// Package gateway defines the hosted payment page abstraction used by
// checkout. Implementations live in the stripe and mock subpackages.
package gateway

import (
	"context"
	"strings"
)

// PaymentStatus is the gateway's view of whether a checkout session was paid.
type PaymentStatus string

const (
	StatusUnpaid PaymentStatus = "unpaid"
	StatusPaid   PaymentStatus = "paid"
)

// SessionIDPlaceholder is substituted by the gateway with the session id
// when it redirects the customer to the success URL.
const SessionIDPlaceholder = "{CHECKOUT_SESSION_ID}"

// CreateSessionInput describes one hosted payment for a single line item.
// Amount is in the currency's smallest gateway unit.
type CreateSessionInput struct {
	ReferenceID string
	ItemName    string
	Amount      int64
	Currency    string
	SuccessURL  string
	CancelURL   string
}

// CheckoutSession is a hosted payment as reported by the gateway.
type CheckoutSession struct {
	ID                string
	URL               string
	Status            PaymentStatus
	Expired           bool // the hosted page no longer takes payments
	Amount            int64
	Currency          string
	ClientReferenceID string
}

// Paid reports whether the gateway confirmed the payment.
func (s *CheckoutSession) Paid() bool {
	return s.Status == StatusPaid
}

// Reusable reports whether the customer can still be sent to the hosted
// page of an unpaid session.
func (s *CheckoutSession) Reusable() bool {
	return !s.Paid() && !s.Expired && s.URL != ""
}

// Matches reports whether the session charged exactly amount in currency
// for the given reference.
func (s *CheckoutSession) Matches(referenceID string, amount int64, currency string) bool {
	return s.ClientReferenceID == referenceID &&
		s.Amount == amount &&
		strings.EqualFold(s.Currency, currency)
}

// Gateway creates hosted checkout sessions and looks them up afterwards to
// verify payment out of band.
type Gateway interface {
	Name() string
	CreateCheckoutSession(ctx context.Context, in CreateSessionInput) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error)
}

// SuccessURL expands the session id placeholder in raw.
func SuccessURL(raw, sessionID string) string {
	return strings.ReplaceAll(raw, SessionIDPlaceholder, sessionID)
}
