package http

import (
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/gamehub/shop/pkg/errors"
	"github.com/gamehub/shop/pkg/httputil"
	"github.com/gamehub/shop/pkg/middleware"
	"github.com/gamehub/shop/pkg/validator"
	"github.com/gamehub/shop/services/shop/internal/domain"
	"github.com/gamehub/shop/services/shop/internal/service"
)

// PayPath is where a staged checkout continues to.
const PayPath = "/checkout/pay"

const maxFormBytes = 16 << 10

// CheckoutHandler handles the checkout, payment and order endpoints.
type CheckoutHandler struct {
	service *service.CheckoutService
	logger  *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(svc *service.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: svc,
		logger:  logger,
	}
}

// OrderPlacedResponse is the body of a successful payment callback.
type OrderPlacedResponse struct {
	OrderID      string        `json:"order_id"`
	TotalDisplay string        `json:"total_display"`
	Order        *domain.Order `json:"order"`
}

// GetCheckout handles GET /checkout
func (h *CheckoutHandler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	sess, ok := requestSession(w, r)
	if !ok {
		return
	}

	summary, err := h.service.Summary(r.Context(), sess)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, summary)
}

// PostCheckout handles POST /checkout
func (h *CheckoutHandler) PostCheckout(w http.ResponseWriter, r *http.Request) {
	sess, ok := requestSession(w, r)
	if !ok {
		return
	}

	contact, err := decodeContact(w, r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	if _, err := h.service.PrepareDraft(r.Context(), sess, contact, userID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.SeeOther(w, PayPath)
}

// Pay handles GET /checkout/pay
func (h *CheckoutHandler) Pay(w http.ResponseWriter, r *http.Request) {
	sess, ok := requestSession(w, r)
	if !ok {
		return
	}

	target, err := h.service.StartPayment(r.Context(), sess)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.SeeOther(w, target)
}

// Complete handles GET /checkout/complete, the gateway's success redirect.
func (h *CheckoutHandler) Complete(w http.ResponseWriter, r *http.Request) {
	sess, ok := requestSession(w, r)
	if !ok {
		return
	}

	order, err := h.service.Finalize(r.Context(), sess, r.URL.Query().Get("session_id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, OrderPlacedResponse{
		OrderID:      order.ID,
		TotalDisplay: domain.FormatAmount(order.Total, order.Currency),
		Order:        order,
	})
}

// GetOrder handles GET /orders/{orderId}
func (h *CheckoutHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := httputil.ParseUUID(w, r, "order id", chi.URLParam(r, "orderId"))
	if !ok {
		return
	}

	order, err := h.service.GetOrder(r.Context(), orderID.String(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, order)
}

// decodeContact reads the checkout form, posted either as JSON or as an
// HTML form.
func decodeContact(w http.ResponseWriter, r *http.Request) (domain.ContactFields, error) {
	var c domain.ContactFields

	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt != contentTypeForm {
		return c, validator.DecodeAndValidate(w, r, &c)
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		return c, apperrors.InvalidInput("malformed form body")
	}
	c = domain.ContactFields{
		FirstName:  r.PostForm.Get("first_name"),
		LastName:   r.PostForm.Get("last_name"),
		Address:    r.PostForm.Get("address"),
		City:       r.PostForm.Get("city"),
		Province:   r.PostForm.Get("province"),
		PostalCode: r.PostForm.Get("postal_code"),
		Phone:      r.PostForm.Get("phone"),
	}
	return c, validator.Validate(c)
}
