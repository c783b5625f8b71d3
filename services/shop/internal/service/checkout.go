package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/gamehub/shop/pkg/errors"
	"github.com/gamehub/shop/pkg/logger"
	"github.com/gamehub/shop/pkg/validator"
	"github.com/gamehub/shop/services/shop/internal/domain"
	"github.com/gamehub/shop/services/shop/internal/event"
	"github.com/gamehub/shop/services/shop/internal/gateway"
	"github.com/gamehub/shop/services/shop/internal/repository"
	"github.com/gamehub/shop/services/shop/internal/session"
)

// OrderItemName is the single line item shown on the hosted payment page.
const OrderItemName = "GameHub order"

// CompletePath is the gateway's success redirect target.
const CompletePath = "/checkout/complete"

// CheckoutConfig holds the shop settings checkout depends on.
type CheckoutConfig struct {
	Currency  string
	PublicURL string
}

// CheckoutSummary is what the checkout page shows before payment.
type CheckoutSummary struct {
	Cart  *CartView          `json:"cart"`
	Draft *domain.DraftOrder `json:"draft,omitempty"`
}

// CheckoutService drives a cart through draft, payment and order.
type CheckoutService struct {
	carts   *CartService
	lines   repository.CartRepository
	orders  repository.OrderRepository
	gateway gateway.Gateway
	cfg     CheckoutConfig
	logger  *slog.Logger
	now     func() time.Time
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(
	carts *CartService,
	lines repository.CartRepository,
	orders repository.OrderRepository,
	gw gateway.Gateway,
	cfg CheckoutConfig,
	logger *slog.Logger,
) *CheckoutService {
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	return &CheckoutService{
		carts:   carts,
		lines:   lines,
		orders:  orders,
		gateway: gw,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Summary returns the cart and the staged draft, if any.
func (s *CheckoutService) Summary(ctx context.Context, sess *session.Session) (*CheckoutSummary, error) {
	view, err := s.carts.View(ctx, sess)
	if err != nil {
		return nil, err
	}
	draft, err := sess.Draft(ctx)
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	return &CheckoutSummary{Cart: view, Draft: draft}, nil
}

// PrepareDraft stages a draft order for the current cart and the given
// delivery details, replacing any earlier draft.
func (s *CheckoutService) PrepareDraft(ctx context.Context, sess *session.Session, contact domain.ContactFields, userID string) (*domain.DraftOrder, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("sign in to check out")
	}
	if err := validator.Validate(contact); err != nil {
		return nil, err
	}

	customer, err := customerID(ctx, sess)
	if err != nil {
		return nil, err
	}
	total, err := s.lines.Total(ctx, customer)
	if err != nil {
		return nil, fmt.Errorf("cart total: %w", err)
	}
	if total <= 0 {
		return nil, apperrors.InvalidState("the cart is empty")
	}

	draft := domain.NewDraftOrder(customer, userID, contact, total, s.cfg.Currency, s.now())
	if err := sess.SaveDraft(ctx, draft); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}

	s.logger.InfoContext(ctx, "checkout draft staged",
		slog.String("draft_id", draft.ID),
		slog.Int64("total", draft.Total),
		slog.String("currency", draft.Currency),
	)
	return draft, nil
}

// StartPayment opens a hosted payment for the staged draft and returns the
// URL to send the customer to. A draft that already went to the gateway is
// resumed: a paid session continues to CompletePath and an open one is sent
// again. A new session is only opened when the previous one can no longer
// take the payment.
func (s *CheckoutService) StartPayment(ctx context.Context, sess *session.Session) (redirect string, err error) {
	defer func() { paymentsStarted.WithLabelValues(s.gateway.Name(), outcome(err)).Inc() }()

	draft, err := sess.Draft(ctx)
	if err != nil {
		return "", fmt.Errorf("load draft: %w", err)
	}
	if draft == nil {
		return "", apperrors.InvalidState("no checkout is staged")
	}
	if draft.PaymentInitiated() {
		target, resumed, err := s.resumePayment(ctx, draft)
		if err != nil || resumed {
			return target, err
		}
	}

	cs, err := s.gateway.CreateCheckoutSession(ctx, gateway.CreateSessionInput{
		ReferenceID: draft.ID,
		ItemName:    OrderItemName,
		Amount:      domain.GatewayAmount(draft.Total, draft.Currency),
		Currency:    draft.Currency,
		SuccessURL:  s.cfg.PublicURL + CompletePath + "?session_id=" + gateway.SessionIDPlaceholder,
		CancelURL:   s.cfg.PublicURL + "/cart",
	})
	if err != nil {
		return "", gatewayFailure("could not start payment", err)
	}

	draft.MarkPaymentRedirected(cs.ID)
	if err := sess.SaveDraft(ctx, draft); err != nil {
		return "", fmt.Errorf("save draft: %w", err)
	}

	s.logger.InfoContext(ctx, "payment started",
		slog.String("draft_id", draft.ID),
		slog.String("gateway", s.gateway.Name()),
		slog.String("gateway_session_id", cs.ID),
	)
	return cs.URL, nil
}

func (s *CheckoutService) resumePayment(ctx context.Context, draft *domain.DraftOrder) (string, bool, error) {
	cs, err := s.gateway.GetCheckoutSession(ctx, draft.GatewaySessionID)
	if err != nil {
		return "", false, gatewayFailure("could not look up the started payment", err)
	}

	switch {
	case cs.Paid():
		s.logger.InfoContext(ctx, "payment already completed, continuing to order",
			slog.String("draft_id", draft.ID),
			slog.String("gateway_session_id", cs.ID),
		)
		return s.cfg.PublicURL + CompletePath + "?session_id=" + url.QueryEscape(cs.ID), true, nil
	case cs.Reusable() && cs.Matches(draft.ID, domain.GatewayAmount(draft.Total, draft.Currency), draft.Currency):
		s.logger.InfoContext(ctx, "payment resumed",
			slog.String("draft_id", draft.ID),
			slog.String("gateway_session_id", cs.ID),
		)
		return cs.URL, true, nil
	}
	return "", false, nil
}

// Finalize turns a paid draft into an order. The payment is verified with
// the gateway, never trusted from the callback. On any failure the draft
// stays staged so the customer can retry.
func (s *CheckoutService) Finalize(ctx context.Context, sess *session.Session, callbackSessionID string) (order *domain.Order, err error) {
	result := ""
	defer func() {
		if result == "" {
			result = outcome(err)
		}
		ordersFinalized.WithLabelValues(result).Inc()
	}()

	draft, err := sess.Draft(ctx)
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	if draft == nil {
		return nil, apperrors.InvalidState("no checkout is staged")
	}
	if !draft.PaymentInitiated() {
		return nil, apperrors.InvalidState("payment was not started for this checkout")
	}
	if callbackSessionID != "" && callbackSessionID != draft.GatewaySessionID {
		return nil, apperrors.InvalidState("the payment session does not belong to this checkout")
	}

	if err := s.verifyPayment(ctx, draft); err != nil {
		return nil, err
	}

	lines, err := s.lines.ListLines(ctx, draft.CartCustomerID)
	if err != nil {
		return nil, fmt.Errorf("list cart lines: %w", err)
	}
	order = domain.NewOrderFromCart(draft, lines, s.now())

	ev, err := event.NewOrderCreatedEvent(ctx, order, logger.CorrelationIDFromContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("build order event: %w", err)
	}

	stored, created, err := s.orders.Finalize(ctx, repository.FinalizeInput{
		Order:        order,
		CustomerID:   draft.CartCustomerID,
		Lines:        domain.Versions(lines),
		ChargedTotal: draft.Total,
		Event:        ev,
	})
	if err != nil {
		return nil, fmt.Errorf("finalize order: %w", err)
	}
	if !created {
		result = "replayed"
	}

	if err := sess.ClearCheckout(ctx); err != nil {
		s.logger.WarnContext(ctx, "failed to clear checkout from session",
			slog.String("order_id", stored.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order finalized",
		slog.String("order_id", stored.ID),
		slog.String("draft_id", draft.ID),
		slog.Int64("total", stored.Total),
		slog.Int("details", len(stored.Details)),
		slog.Bool("created", created),
	)
	return stored, nil
}

func (s *CheckoutService) verifyPayment(ctx context.Context, draft *domain.DraftOrder) error {
	cs, err := s.gateway.GetCheckoutSession(ctx, draft.GatewaySessionID)
	if err != nil {
		return gatewayFailure("could not verify payment", err)
	}
	if !cs.Paid() {
		return apperrors.PaymentFailed("the payment was not completed")
	}
	if !cs.Matches(draft.ID, domain.GatewayAmount(draft.Total, draft.Currency), draft.Currency) {
		s.logger.WarnContext(ctx, "gateway session does not match draft",
			slog.String("draft_id", draft.ID),
			slog.String("gateway_session_id", cs.ID),
			slog.Int64("charged", cs.Amount),
			slog.String("charged_currency", cs.Currency),
		)
		return apperrors.PaymentFailed("the payment does not match this checkout")
	}
	return nil
}

// GetOrder returns an order owned by userID. Orders of other users are
// reported as not found.
func (s *CheckoutService) GetOrder(ctx context.Context, orderID, userID string) (*domain.Order, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("sign in to view orders")
	}
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if o.UserID != userID {
		return nil, apperrors.NotFound("order", orderID)
	}
	return o, nil
}

// gatewayFailure keeps errors the gateway client already classified and
// files anything else under a gateway error.
func gatewayFailure(message string, err error) error {
	if errors.Is(err, apperrors.ErrGateway) || errors.Is(err, apperrors.ErrServiceUnavail) {
		return err
	}
	return apperrors.Gateway(message, err)
}
