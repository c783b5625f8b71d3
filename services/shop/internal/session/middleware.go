package session

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/gamehub/shop/pkg/logger"
)

type contextKey struct{}

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

// NewContext returns ctx carrying sess.
func NewContext(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// FromContext returns the session attached by Middleware, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(contextKey{}).(*Session)
	return s
}

// Middleware attaches a *Session to every request. A missing or malformed
// cookie gets a fresh session id. The cookie is reissued on each response so
// its lifetime slides with the Redis TTL.
func Middleware(store *Store, cfg CookieConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if c, err := r.Cookie(cfg.Name); err == nil {
				if parsed, err := uuid.Parse(c.Value); err == nil {
					id = parsed.String()
				}
			}
			if id == "" {
				id = uuid.NewString()
			} else if err := store.Touch(r.Context(), id); err != nil {
				logger.FromContext(r.Context()).WarnContext(r.Context(), "session touch failed",
					slog.String("error", err.Error()))
			}

			http.SetCookie(w, &http.Cookie{
				Name:     cfg.Name,
				Value:    id,
				Path:     "/",
				MaxAge:   int(store.TTL().Seconds()),
				HttpOnly: true,
				Secure:   cfg.Secure,
				SameSite: http.SameSiteLaxMode,
			})

			sess := store.Session(id)
			ctx := withCustomerLogging(r.Context(), sess)
			next.ServeHTTP(w, r.WithContext(NewContext(ctx, sess)))
		})
	}
}

// withCustomerLogging tags the request logger with the session's cart
// identifier once one has been minted.
func withCustomerLogging(ctx context.Context, sess *Session) context.Context {
	customer, ok, err := sess.GetString(ctx, KeyCartIdentifier)
	if err != nil || !ok || customer == "" {
		return ctx
	}
	ctx = logger.WithCustomerID(ctx, customer)
	return logger.NewContext(ctx, logger.FromContext(ctx).With(slog.String("customer_id", customer)))
}
