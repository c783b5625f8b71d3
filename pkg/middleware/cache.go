package middleware

import (
	"fmt"
	"net/http"
)

// CacheControl marks successful GET and HEAD answers as publicly cacheable
// for maxAge seconds. Only mount it on routes that never set cookies.
func CacheControl(maxAge int) func(http.Handler) http.Handler {
	value := fmt.Sprintf("public, max-age=%d, stale-while-revalidate=%d", maxAge, maxAge)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				w.Header().Set("Cache-Control", value)
			}
			next.ServeHTTP(w, r)
		})
	}
}
