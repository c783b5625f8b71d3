package http

import (
	"errors"
	"mime"
	"net/http"

	"github.com/gamehub/shop/pkg/httputil"
	"github.com/gamehub/shop/services/shop/internal/session"
)

const (
	contentTypeJSON = "application/json"
	contentTypeForm = "application/x-www-form-urlencoded"
)

var errNoSession = errors.New("session middleware not mounted")

// ContentTypeJSONOrForm rejects request bodies that are neither JSON nor an
// HTML form post.
func ContentTypeJSONOrForm(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost {
			if ct := r.Header.Get("Content-Type"); ct != "" {
				mt, _, err := mime.ParseMediaType(ct)
				if err != nil || (mt != contentTypeJSON && mt != contentTypeForm) {
					httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
						Error: &httputil.ErrorResponse{
							Code:    "UNSUPPORTED_MEDIA_TYPE",
							Message: "Content-Type must be application/json or application/x-www-form-urlencoded",
						},
					})
					return
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// requestSession returns the session attached by session.Middleware. A
// missing session is a wiring bug and answers 500.
func requestSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		httputil.WriteError(w, r, errNoSession, nil)
		return nil, false
	}
	return sess, true
}
