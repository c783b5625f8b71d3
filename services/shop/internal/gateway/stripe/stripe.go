// Package stripe talks to the Stripe Checkout Sessions REST API.
package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	apperrors "github.com/gamehub/shop/pkg/errors"
	"github.com/gamehub/shop/pkg/httpclient"
	"github.com/gamehub/shop/services/shop/internal/gateway"
)

const (
	serviceName  = "stripe"
	sessionsPath = "/v1/checkout/sessions"
)

// Client implements gateway.Gateway. Requests go through doer, which in
// production is a circuit breaker over a bounded-timeout client.
type Client struct {
	doer      httpclient.Doer
	baseURL   string
	secretKey string
	logger    *slog.Logger
}

// NewClient creates a Stripe gateway client.
func NewClient(doer httpclient.Doer, baseURL, secretKey string, logger *slog.Logger) *Client {
	return &Client{
		doer:      doer,
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		logger:    logger,
	}
}

func (c *Client) Name() string { return serviceName }

type checkoutSession struct {
	ID                string `json:"id"`
	URL               string `json:"url"`
	Status            string `json:"status"`
	PaymentStatus     string `json:"payment_status"`
	AmountTotal       int64  `json:"amount_total"`
	Currency          string `json:"currency"`
	ClientReferenceID string `json:"client_reference_id"`
}

func (s *checkoutSession) toGateway() *gateway.CheckoutSession {
	status := gateway.StatusUnpaid
	if s.PaymentStatus == string(gateway.StatusPaid) {
		status = gateway.StatusPaid
	}
	return &gateway.CheckoutSession{
		ID:                s.ID,
		URL:               s.URL,
		Status:            status,
		Expired:           s.Status == "expired",
		Amount:            s.AmountTotal,
		Currency:          strings.ToUpper(s.Currency),
		ClientReferenceID: s.ClientReferenceID,
	}
}

// CreateCheckoutSession starts a hosted payment. The reference id doubles as
// the idempotency key so a repeated call for one draft yields one session.
func (c *Client) CreateCheckoutSession(ctx context.Context, in gateway.CreateSessionInput) (*gateway.CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", in.SuccessURL)
	form.Set("cancel_url", in.CancelURL)
	form.Set("client_reference_id", in.ReferenceID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(in.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(in.Amount, 10))
	form.Set("line_items[0][price_data][product_data][name]", in.ItemName)

	req, err := httpclient.NewFormRequest(ctx, c.baseURL+sessionsPath, form)
	if err != nil {
		return nil, apperrors.Gateway("build checkout session request", err)
	}
	req.Header.Set("Idempotency-Key", in.ReferenceID)

	var out checkoutSession
	if err := c.do(ctx, req, &out); err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "stripe checkout session created",
		slog.String("session_id", out.ID),
		slog.String("client_reference_id", in.ReferenceID),
		slog.Int64("amount", in.Amount),
	)
	return out.toGateway(), nil
}

// GetCheckoutSession fetches a session to verify its payment status.
func (c *Client) GetCheckoutSession(ctx context.Context, id string) (*gateway.CheckoutSession, error) {
	if id == "" {
		return nil, apperrors.Gateway("missing checkout session id", nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+sessionsPath+"/"+url.PathEscape(id), http.NoBody)
	if err != nil {
		return nil, apperrors.Gateway("build checkout session lookup", err)
	}

	var out checkoutSession
	if err := c.do(ctx, req, &out); err != nil {
		return nil, err
	}
	return out.toGateway(), nil
}

func (c *Client) do(ctx context.Context, req *http.Request, dst any) error {
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.doer.Do(ctx, req)
	if errors.Is(err, httpclient.ErrCircuitOpen) {
		return apperrors.ServiceUnavailable("payment gateway temporarily unavailable", err)
	}
	if err != nil {
		return apperrors.Gateway("payment gateway unavailable", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := "payment gateway failed"
		if httpclient.IsClientError(resp.StatusCode) {
			msg = "payment gateway rejected the request"
		}
		return apperrors.Gateway(msg, httpclient.ParseResponseError(resp, serviceName))
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return apperrors.Gateway("payment gateway sent an unreadable response", fmt.Errorf("decode %s response: %w", serviceName, err))
	}
	return nil
}
