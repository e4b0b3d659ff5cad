package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/abhayc-main/next-starter/pkg/errors"
	"github.com/abhayc-main/next-starter/pkg/logger"
	"github.com/abhayc-main/next-starter/pkg/validator"
)

// Response is the JSON envelope for every API response.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse is the error half of Response.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes v as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData wraps v in the data envelope.
func WriteData(w http.ResponseWriter, status int, v any) {
	WriteJSON(w, status, Response{Data: v})
}

// WriteError maps err to a status code and writes the error envelope.
// Validation errors carry per-field messages. AppErrors are rendered with
// their own code and message. Anything else becomes a sentinel-derived
// response, and 5xx responses are logged with the request-scoped logger when
// one is present in the context.
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

	resp := &ErrorResponse{RequestID: requestID}
	var status int

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		status = appErr.Status
		resp.Code, resp.Message, resp.Fields = appErr.Code, appErr.Message, appErr.Fields
	} else {
		status = apperrors.HTTPStatus(err)
		resp.Code, resp.Message = sentinelBody(err, status)
	}

	switch {
	case status == http.StatusServiceUnavailable:
		l.WarnContext(r.Context(), "dependency unavailable",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	case status >= http.StatusInternalServerError:
		l.ErrorContext(r.Context(), "internal error",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, status, Response{Error: resp})
}

func sentinelBody(err error, status int) (code, message string) {
	switch status {
	case http.StatusNotFound:
		return "NOT_FOUND", "resource not found"
	case http.StatusConflict:
		return "ALREADY_EXISTS", "resource already exists"
	case http.StatusBadRequest:
		return "INVALID_INPUT", err.Error()
	case http.StatusUnauthorized:
		return "UNAUTHORIZED", "unauthorized"
	case http.StatusForbidden:
		return "FORBIDDEN", "forbidden"
	case http.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE", "service temporarily unavailable"
	default:
		return "INTERNAL_ERROR", "an internal error occurred"
	}
}

// DecodeJSON decodes a JSON request body into dst, rejecting unknown fields
// and bodies over maxBytes. Decode failures are returned as invalid input.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperrors.InvalidInput("invalid request body: " + err.Error())
	}
	return nil
}
