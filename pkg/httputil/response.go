package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	apperrors "github.com/gamehub/shop/pkg/errors"
	"github.com/gamehub/shop/pkg/logger"
	"github.com/gamehub/shop/pkg/validator"
)

// Response is the JSON envelope for every answer.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse represents an error in the standard response format.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// RedirectBody accompanies a 303 so JSON clients see where to go next.
type RedirectBody struct {
	Location string `json:"location"`
}

// WriteJSON writes v as JSON with the given status code. Headers are sent
// before encoding, so an encoding failure cannot be reported.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData wraps v in the envelope's data field.
func WriteData(w http.ResponseWriter, status int, v any) {
	WriteJSON(w, status, Response{Data: v})
}

// SeeOther answers 303 with a Location header and a JSON body naming it.
func SeeOther(w http.ResponseWriter, location string) {
	w.Header().Set("Location", location)
	WriteData(w, http.StatusSeeOther, RedirectBody{Location: location})
}

var sentinelCodes = map[int]string{
	http.StatusBadRequest:          "INVALID_INPUT",
	http.StatusUnauthorized:        "UNAUTHORIZED",
	http.StatusForbidden:           "FORBIDDEN",
	http.StatusNotFound:            "NOT_FOUND",
	http.StatusConflict:            "CONFLICT",
	http.StatusUnprocessableEntity: "PAYMENT_FAILED",
	http.StatusBadGateway:          "GATEWAY_ERROR",
	http.StatusServiceUnavailable:  "SERVICE_UNAVAILABLE",
}

// WriteError renders err in the error envelope. AppErrors keep their code,
// message and status; validation errors list offending fields; anything else
// becomes a 500. Every 5xx is logged with its cause, on the request-scoped
// logger when RequestLogger is mounted and on fallback otherwise.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}
	requestID := logger.CorrelationIDFromContext(r.Context())

	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteJSON(w, http.StatusBadRequest, Response{Error: &ErrorResponse{
			Code:      "VALIDATION_ERROR",
			Message:   "request validation failed",
			Fields:    valErr.Fields(),
			RequestID: requestID,
		}})
		return
	}

	resp := &ErrorResponse{
		Code:      "INTERNAL_ERROR",
		Message:   "an internal error occurred",
		RequestID: requestID,
	}
	status := apperrors.HTTPStatus(err)

	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		resp.Code = appErr.Code
		resp.Message = appErr.Message
	case status != http.StatusInternalServerError:
		// A bare sentinel wrapped with fmt.Errorf.
		resp.Code = sentinelCodes[status]
		resp.Message = http.StatusText(status)
	}

	if status >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.Int("status", status),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, status, Response{Error: resp})
}

// ParseUUID validates a path parameter. On failure it writes a 400 and
// returns false so the caller can return early.
func ParseUUID(w http.ResponseWriter, r *http.Request, name, value string) (uuid.UUID, bool) {
	id, err := uuid.Parse(value)
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, Response{Error: &ErrorResponse{
			Code:      "INVALID_PARAMETER",
			Message:   "invalid " + name + ": " + value,
			RequestID: logger.CorrelationIDFromContext(r.Context()),
		}})
		return uuid.Nil, false
	}
	return id, true
}
