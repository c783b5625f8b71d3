package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamehub/shop/pkg/logger"
)

func jsonLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestRequestLogging_EchoesOrGeneratesCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	h := RequestLogging(slog.New(slog.NewJSONHandler(&buf, nil)))(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set(CorrelationHeader, "req-abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-abc", rec.Header().Get(CorrelationHeader))

	req = httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set(CorrelationHeader, "bad id\nwith newline")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	generated := rec.Header().Get(CorrelationHeader)
	assert.Len(t, generated, 36)

	lines := jsonLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "req-abc", lines[0]["correlation_id"])
	assert.Equal(t, generated, lines[1]["correlation_id"])
}

func TestRequestLogging_LevelFollowsStatus(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, nil))

	for _, status := range []int{http.StatusOK, http.StatusConflict, http.StatusBadGateway} {
		h := RequestLogging(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/checkout/pay", nil))
	}

	lines := jsonLines(t, &buf)
	require.Len(t, lines, 3)
	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, "WARN", lines[1]["level"])
	assert.Equal(t, "ERROR", lines[2]["level"])
	assert.Equal(t, float64(http.StatusBadGateway), lines[2]["status"])
}

func TestRequestLogger_EnrichesContextLogger(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).InfoContext(r.Context(), "added to cart")
	})
	chain := RequestLogging(quietLogger())(
		OptionalAuth(staticValidator("tok", &Claims{UserID: "user-5"}))(
			RequestLogger(base)(inner)))

	req := httptest.NewRequest(http.MethodGet, "/cart/add/x", nil)
	req.Header.Set("Authorization", "Bearer tok")
	req.Header.Set(CorrelationHeader, "corr-9")
	chain.ServeHTTP(httptest.NewRecorder(), req)

	lines := jsonLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "user-5", lines[0]["user_id"])
	assert.Equal(t, "corr-9", lines[0]["correlation_id"])
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	h := Recovery(slog.New(slog.NewJSONHandler(&buf, nil)))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(errors.New("nil map write"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cart", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", errorCode(t, rec))
	assert.Contains(t, buf.String(), "nil map write")
}

func TestRecovery_AbortHandlerRepanics(t *testing.T) {
	h := Recovery(quietLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestCacheControl(t *testing.T) {
	h := CacheControl(60)(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products", nil))
	assert.Equal(t, "public, max-age=60, stale-while-revalidate=60", rec.Header().Get("Cache-Control"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/products", nil))
	assert.Empty(t, rec.Header().Get("Cache-Control"))
}
