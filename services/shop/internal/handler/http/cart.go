package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gamehub/shop/pkg/httputil"
	"github.com/gamehub/shop/services/shop/internal/service"
)

// CartPath is where cart mutations redirect back to.
const CartPath = "/cart"

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	service *service.CartService
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc *service.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		service: svc,
		logger:  logger,
	}
}

// AddItem handles GET /cart/add/{productId}
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := requestSession(w, r)
	if !ok {
		return
	}
	productID, ok := httputil.ParseUUID(w, r, "product id", chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	if _, err := h.service.AddItem(r.Context(), sess, productID.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.SeeOther(w, CartPath)
}

// RemoveItem handles GET /cart/remove/{cartItemId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := requestSession(w, r)
	if !ok {
		return
	}
	lineID, ok := httputil.ParseUUID(w, r, "cart item id", chi.URLParam(r, "cartItemId"))
	if !ok {
		return
	}

	if err := h.service.RemoveItem(r.Context(), sess, lineID.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.SeeOther(w, CartPath)
}

// GetCart handles GET /cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	sess, ok := requestSession(w, r)
	if !ok {
		return
	}

	view, err := h.service.View(r.Context(), sess)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// ClearCart handles DELETE /cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	sess, ok := requestSession(w, r)
	if !ok {
		return
	}

	removed, err := h.service.Clear(r.Context(), sess)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, map[string]int64{"removed": removed})
}
