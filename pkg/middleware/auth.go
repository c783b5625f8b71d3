package middleware

import (
	"context"
	"net/http"
	"strings"

	apperrors "github.com/gamehub/shop/pkg/errors"
	"github.com/gamehub/shop/pkg/httputil"
	"github.com/gamehub/shop/pkg/logger"
)

type contextKeyType string

const claimsKey contextKeyType = "claims"

// Claims is the identity carried by a verified bearer token.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// TokenValidator verifies a raw bearer token and returns its claims.
type TokenValidator func(token string) (*Claims, error)

// bearerToken returns the token of an "Authorization: Bearer <t>" header.
// present is false when the header is absent altogether.
func bearerToken(r *http.Request) (token string, present bool, ok bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false, false
	}
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return "", true, false
	}
	return strings.TrimSpace(token), true, true
}

func withClaims(r *http.Request, c *Claims) *http.Request {
	ctx := context.WithValue(r.Context(), claimsKey, c)
	ctx = logger.WithUserID(ctx, c.UserID)
	return r.WithContext(ctx)
}

// OptionalAuth attaches claims when a valid bearer token is sent and lets
// anonymous requests through. A malformed or rejected token is still a 401:
// a client that tried to authenticate must not silently shop anonymously.
func OptionalAuth(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, present, ok := bearerToken(r)
			if !present {
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				httputil.WriteError(w, r, apperrors.Unauthorized("invalid authorization header format"), nil)
				return
			}
			claims, err := validate(token)
			if err != nil || claims == nil || claims.UserID == "" {
				httputil.WriteError(w, r, apperrors.Unauthorized("invalid or expired token"), nil)
				return
			}
			next.ServeHTTP(w, withClaims(r, claims))
		})
	}
}

// RequireAuth rejects requests that reach it without claims. Mount it after
// OptionalAuth on routes that need a signed-in user.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserIDFromContext(r.Context()) == "" {
			httputil.WriteError(w, r, apperrors.Unauthorized("sign in to continue"), nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClaimsFromContext returns the verified claims, or nil for anonymous requests.
func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey).(*Claims)
	return c
}

// UserIDFromContext returns the authenticated user's id, or "".
func UserIDFromContext(ctx context.Context) string {
	if c := ClaimsFromContext(ctx); c != nil {
		return c.UserID
	}
	return ""
}
