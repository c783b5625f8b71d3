// Package mock is an in-memory payment gateway with a hosted page that pays
// on visit. It gives a full local checkout loop without external accounts.
package mock

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apperrors "github.com/gamehub/shop/pkg/errors"
	"github.com/gamehub/shop/pkg/httputil"
	"github.com/gamehub/shop/services/shop/internal/gateway"
)

// PayPath is where the hosted page is mounted.
const PayPath = "/mock-gateway/pay/{sessionId}"

type session struct {
	gateway.CheckoutSession
	successURL string
}

// Gateway implements gateway.Gateway in memory.
type Gateway struct {
	publicURL string

	mu       sync.Mutex
	sessions map[string]*session
}

// New creates a mock gateway whose hosted page lives under publicURL.
func New(publicURL string) *Gateway {
	return &Gateway{
		publicURL: strings.TrimRight(publicURL, "/"),
		sessions:  make(map[string]*session),
	}
}

func (g *Gateway) Name() string { return "mock" }

func (g *Gateway) CreateCheckoutSession(ctx context.Context, in gateway.CreateSessionInput) (*gateway.CheckoutSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Gateway("payment gateway request cancelled", err)
	}
	id := "cs_mock_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	s := &session{
		CheckoutSession: gateway.CheckoutSession{
			ID:                id,
			URL:               g.publicURL + "/mock-gateway/pay/" + id,
			Status:            gateway.StatusUnpaid,
			Amount:            in.Amount,
			Currency:          strings.ToUpper(in.Currency),
			ClientReferenceID: in.ReferenceID,
		},
		successURL: in.SuccessURL,
	}

	g.mu.Lock()
	g.sessions[id] = s
	g.mu.Unlock()

	out := s.CheckoutSession
	return &out, nil
}

func (g *Gateway) GetCheckoutSession(_ context.Context, id string) (*gateway.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.sessions[id]
	if !ok {
		return nil, apperrors.Gateway("unknown checkout session", apperrors.NotFound("checkout session", id))
	}
	out := s.CheckoutSession
	return &out, nil
}

// MarkPaid flags the session as paid and returns the expanded success URL.
func (g *Gateway) MarkPaid(id string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.sessions[id]
	if !ok {
		return "", apperrors.NotFound("checkout session", id)
	}
	s.Status = gateway.StatusPaid
	return gateway.SuccessURL(s.successURL, id), nil
}

// PayHandler serves the hosted page: the visit pays the session and
// redirects the customer back to the shop.
func (g *Gateway) PayHandler(w http.ResponseWriter, r *http.Request) {
	target, err := g.MarkPaid(chi.URLParam(r, "sessionId"))
	if err != nil {
		httputil.WriteError(w, r, err, nil)
		return
	}
	httputil.SeeOther(w, target)
}
