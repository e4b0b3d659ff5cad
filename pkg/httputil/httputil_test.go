package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/abhayc-main/next-starter/pkg/errors"
	"github.com/abhayc-main/next-starter/pkg/logger"
	"github.com/abhayc-main/next-starter/pkg/validator"
)

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, nil))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

// --- WriteJSON ---

func TestWriteJSON_SetsContentTypeAndStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, Response{Data: "hello"})

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestWriteData_WrapsInEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteData(rec, http.StatusOK, map[string]string{"id": "a1"})

	var raw map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw))
	assert.JSONEq(t, `{"id":"a1"}`, string(raw["data"]))
	_, hasError := raw["error"]
	assert.False(t, hasError)
}

// --- WriteError ---

func TestWriteError_AppError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)

	WriteError(rec, req, apperrors.NotFound("account", "abc-123"), nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decode(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestWriteError_AppErrorWithFields(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/test", nil)

	err := apperrors.Validation("request validation failed", map[string]string{"confirm_password": "must match password"})
	WriteError(rec, req, err, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Equal(t, "must match password", resp.Error.Fields["confirm_password"])
}

func TestWriteError_ValidationError(t *testing.T) {
	var input struct {
		Email string `json:"email" validate:"required,email"`
	}
	verr := validator.Validate(input)
	require.Error(t, verr)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	WriteError(rec, req, fmt.Errorf("register: %w", verr), nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Equal(t, "is required", resp.Error.Fields["email"])
}

func TestWriteError_Sentinels(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{apperrors.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{apperrors.ErrAlreadyExists, http.StatusConflict, "ALREADY_EXISTS"},
		{apperrors.ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT"},
		{apperrors.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
		{apperrors.ErrServiceUnavail, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{fmt.Errorf("something unexpected"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			WriteError(rec, req, tt.err, nil)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decode(t, rec).Error.Code)
		})
	}
}

func TestWriteError_InternalErrorIsLoggedNotLeaked(t *testing.T) {
	var buf bytes.Buffer
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)

	WriteError(rec, req, fmt.Errorf("pq: password authentication failed"), testLogger(&buf))

	assert.Contains(t, buf.String(), "internal error")
	assert.NotContains(t, rec.Body.String(), "password authentication")
}

func TestWriteError_UnavailableLoggedAsWarning(t *testing.T) {
	var buf bytes.Buffer
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)

	WriteError(rec, req, apperrors.ServiceUnavailable("account store unavailable", nil), testLogger(&buf))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, buf.String(), `"level":"WARN"`)
}

func TestWriteError_IncludesRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	ctx := logger.WithCorrelationID(context.Background(), "corr-123")
	req := httptest.NewRequest(http.MethodGet, "/test", nil).WithContext(ctx)

	WriteError(rec, req, apperrors.ErrNotFound, nil)

	resp := decode(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "corr-123", resp.Error.RequestID)
}

func TestWriteError_NoCorrelationID_OmitsRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)

	WriteError(rec, req, apperrors.ErrNotFound, nil)

	var raw map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw))
	var errObj map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw["error"], &errObj))
	_, hasRequestID := errObj["request_id"]
	assert.False(t, hasRequestID)
}

// --- DecodeJSON ---

func TestDecodeJSON_Success(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"email":"a@b.com"}`))

	var dst struct {
		Email string `json:"email"`
	}
	require.NoError(t, DecodeJSON(rec, req, &dst, 1<<20))
	assert.Equal(t, "a@b.com", dst.Email)
}

func TestDecodeJSON_UnknownField(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"email":"a@b.com","role":"admin"}`))

	var dst struct {
		Email string `json:"email"`
	}
	err := DecodeJSON(rec, req, &dst, 1<<20)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestDecodeJSON_TooLarge(t *testing.T) {
	rec := httptest.NewRecorder()
	body := `{"email":"` + strings.Repeat("a", 64) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))

	var dst struct {
		Email string `json:"email"`
	}
	assert.Error(t, DecodeJSON(rec, req, &dst, 16))
}
