package httputil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/gamehub/shop/pkg/errors"
	"github.com/gamehub/shop/pkg/logger"
	"github.com/gamehub/shop/pkg/validator"
)

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestWriteData_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteData(rec, http.StatusOK, map[string]int{"item_count": 3})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"item_count":3}}`, rec.Body.String())
}

func TestSeeOther(t *testing.T) {
	rec := httptest.NewRecorder()
	SeeOther(rec, "/checkout/pay")

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/checkout/pay", rec.Header().Get("Location"))
	assert.JSONEq(t, `{"data":{"location":"/checkout/pay"}}`, rec.Body.String())
}

func TestWriteError_AppErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{apperrors.NotFound("product", "p1"), http.StatusNotFound, "NOT_FOUND"},
		{apperrors.InvalidState("no staged checkout"), http.StatusConflict, "INVALID_STATE"},
		{apperrors.Conflict("cart changed"), http.StatusConflict, "CONCURRENCY_CONFLICT"},
		{apperrors.PaymentFailed("not paid"), http.StatusUnprocessableEntity, "PAYMENT_FAILED"},
		{fmt.Errorf("start payment: %w", apperrors.Gateway("gateway unavailable", errors.New("dial"))), http.StatusBadGateway, "GATEWAY_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			WriteError(rec, req, tt.err, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

			assert.Equal(t, tt.status, rec.Code)
			resp := decodeResponse(t, rec)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestWriteError_GatewayCauseLoggedNotRendered(t *testing.T) {
	var logs bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&logs, nil))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/checkout/pay", nil)
	WriteError(rec, req, apperrors.Gateway("payment gateway unavailable", errors.New("secret-key rejected")), l)

	assert.NotContains(t, rec.Body.String(), "secret-key rejected")
	assert.Contains(t, logs.String(), "secret-key rejected")
	assert.Contains(t, logs.String(), "/checkout/pay")
}

func TestWriteError_Validation(t *testing.T) {
	type form struct {
		Phone string `json:"phone" validate:"required"`
	}
	err := validator.Validate(form{})

	rec := httptest.NewRecorder()
	WriteError(rec, httptest.NewRequest(http.MethodPost, "/checkout", nil), err, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Equal(t, "is required", resp.Error.Fields["phone"])
}

func TestWriteError_WrappedSentinel(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, httptest.NewRequest(http.MethodGet, "/", nil), fmt.Errorf("lookup: %w", apperrors.ErrNotFound), nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeResponse(t, rec).Error.Code)
}

func TestWriteError_UnknownIs500(t *testing.T) {
	var logs bytes.Buffer
	rec := httptest.NewRecorder()
	WriteError(rec, httptest.NewRequest(http.MethodGet, "/cart", nil), errors.New("pq: boom"),
		slog.New(slog.NewJSONHandler(&logs, nil)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
	assert.Equal(t, "an internal error occurred", resp.Error.Message)
	assert.Contains(t, logs.String(), "pq: boom")
}

func TestWriteError_IncludesRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(logger.WithCorrelationID(req.Context(), "corr-42"))

	rec := httptest.NewRecorder()
	WriteError(rec, req, apperrors.Unauthorized("login required"), nil)

	assert.Equal(t, "corr-42", decodeResponse(t, rec).Error.RequestID)
}

func TestWriteError_PrefersRequestLogger(t *testing.T) {
	var scoped, fallback bytes.Buffer
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(logger.NewContext(req.Context(), slog.New(slog.NewJSONHandler(&scoped, nil))))

	WriteError(httptest.NewRecorder(), req, errors.New("boom"), slog.New(slog.NewJSONHandler(&fallback, nil)))

	assert.Contains(t, scoped.String(), "boom")
	assert.Empty(t, fallback.String())
}

func TestParseUUID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	rec := httptest.NewRecorder()
	id, ok := ParseUUID(rec, req, "productId", "6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	assert.True(t, ok)
	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", id.String())

	rec = httptest.NewRecorder()
	_, ok = ParseUUID(rec, req, "productId", "not-a-uuid")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "INVALID_PARAMETER", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "productId")
}
