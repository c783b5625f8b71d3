package service

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/gamehub/shop/pkg/errors"
)

var (
	cartMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_cart_mutations_total",
			Help: "Cart changes by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	paymentsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_payments_started_total",
			Help: "Gateway checkout sessions requested",
		},
		[]string{"gateway", "outcome"},
	)

	ordersFinalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_orders_finalized_total",
			Help: "Payment callbacks by outcome",
		},
		[]string{"outcome"},
	)
)

// outcome maps an error to a low-cardinality metric label.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperrors.ErrConflict):
		return "conflict"
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperrors.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, apperrors.ErrPaymentFailed):
		return "payment_failed"
	case errors.Is(err, apperrors.ErrGateway):
		return "gateway_error"
	case errors.Is(err, apperrors.ErrServiceUnavail):
		return "unavailable"
	default:
		return "error"
	}
}
