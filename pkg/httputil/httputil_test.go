package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ThureinS/bookreview/pkg/errors"
	"github.com/ThureinS/bookreview/pkg/logger"
	"github.com/ThureinS/bookreview/pkg/validator"
)

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *ErrorResponse {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Error)
	return resp.Error
}

// --- WriteJSON ---

func TestWriteJSON_SetsContentTypeAndStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, Response{Data: map[string]string{"id": "b1"}})

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"b1"`)
}

func TestResponse_OmitsEmptyMembers(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusOK, Response{Data: "ok"})

	var raw map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw))
	_, hasError := raw["error"]
	assert.False(t, hasError)
}

// --- WriteError ---

func TestWriteError_AppErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", apperrors.NotFound("book", "b1"), http.StatusNotFound, "NOT_FOUND"},
		{"invalid input", apperrors.InvalidInput("unknown filter"), http.StatusBadRequest, "INVALID_INPUT"},
		{"validation", apperrors.Validation(map[string]string{"rating": "must be between 1 and 5"}), http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"rate limited", apperrors.RateLimited(time.Minute), http.StatusTooManyRequests, "RATE_LIMITED"},
		{"unavailable", apperrors.Unavailable(fmt.Errorf("dial tcp")), http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"wrapped", fmt.Errorf("get book: %w", apperrors.NotFound("book", "b2")), http.StatusNotFound, "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/books", nil)

			WriteError(rec, req, tt.err, testLogger(&buf))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}

func TestWriteError_ValidationIncludesFields(t *testing.T) {
	var buf bytes.Buffer
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/books/b1/reviews", nil)

	WriteError(rec, req, apperrors.Validation(map[string]string{
		"body": "must be at least 15 characters",
	}), testLogger(&buf))

	resp := decodeError(t, rec)
	assert.Equal(t, "must be at least 15 characters", resp.Fields["body"])
	assert.Empty(t, buf.String(), "client errors are not logged")
}

func TestWriteError_RateLimitedSetsRetryAfter(t *testing.T) {
	var buf bytes.Buffer
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/books/b1/reviews", nil)

	WriteError(rec, req, apperrors.RateLimited(90*time.Second+200*time.Millisecond), testLogger(&buf))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "91", rec.Header().Get("Retry-After"))
}

func TestWriteError_NoRetryAfterForOtherErrors(t *testing.T) {
	var buf bytes.Buffer
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	WriteError(rec, req, apperrors.NotFound("book", "x"), testLogger(&buf))

	assert.Empty(t, rec.Header().Get("Retry-After"))
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
		{apperrors.ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED"},
		{apperrors.ErrServiceUnavail, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{fmt.Errorf("something unexpected"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			var buf bytes.Buffer
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)

			WriteError(rec, req, tt.err, testLogger(&buf))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}

func TestWriteError_LogsServerErrors(t *testing.T) {
	var buf bytes.Buffer
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/books", nil)

	WriteError(rec, req, apperrors.Unavailable(fmt.Errorf("connection refused")), testLogger(&buf))

	assert.Contains(t, buf.String(), "request failed")
	assert.Contains(t, buf.String(), "connection refused")
	assert.Contains(t, buf.String(), "/api/v1/books")
}

func TestWriteError_PrefersRequestScopedLogger(t *testing.T) {
	var fallbackBuf, scopedBuf bytes.Buffer
	ctx := logger.NewContext(context.Background(), testLogger(&scopedBuf))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)

	WriteError(rec, req, fmt.Errorf("boom"), testLogger(&fallbackBuf))

	assert.Empty(t, fallbackBuf.String())
	assert.Contains(t, scopedBuf.String(), "boom")
}

func TestWriteError_RequestID(t *testing.T) {
	var buf bytes.Buffer
	ctx := logger.WithCorrelationID(context.Background(), "corr-123")
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)

	WriteError(rec, req, apperrors.NotFound("book", "b1"), testLogger(&buf))

	assert.Equal(t, "corr-123", decodeError(t, rec).RequestID)
}

func TestWriteError_NoCorrelationID_OmitsRequestID(t *testing.T) {
	var buf bytes.Buffer
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	WriteError(rec, req, apperrors.ErrNotFound, testLogger(&buf))

	var raw map[string]map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw))
	_, hasRequestID := raw["error"]["request_id"]
	assert.False(t, hasRequestID)
}

// --- WriteValidationError ---

func TestWriteValidationError_FieldErrors(t *testing.T) {
	type input struct {
		Rating int `json:"rating" validate:"gte=1,lte=5"`
	}
	err := validator.Validate(input{Rating: 7})
	require.Error(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	WriteValidationError(rec, req, err)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
	assert.Contains(t, resp.Fields, "rating")
}

func TestWriteValidationError_DecodeError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	WriteValidationError(rec, req, fmt.Errorf("decode request body: unexpected EOF"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", decodeError(t, rec).Code)
}

// --- PaginatedResponse ---

func TestNewPaginatedResponse(t *testing.T) {
	tests := []struct {
		name       string
		total      int
		page       int
		perPage    int
		totalPages int
		hasNext    bool
	}{
		{"partial last page", 25, 1, 10, 3, true},
		{"on last page", 21, 3, 10, 3, false},
		{"exact division", 30, 2, 10, 3, true},
		{"empty", 0, 1, 20, 0, false},
		{"zero per page", 5, 1, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := NewPaginatedResponse[string](nil, tt.total, tt.page, tt.perPage)
			assert.Equal(t, tt.totalPages, resp.TotalPages)
			assert.Equal(t, tt.hasNext, resp.HasNext)
			assert.NotNil(t, resp.Data)
		})
	}
}

// --- ParseUUID ---

func TestParseUUID_Valid(t *testing.T) {
	rec := httptest.NewRecorder()
	id, ok := ParseUUID(rec, "550E8400-E29B-41D4-A716-446655440000")
	assert.True(t, ok)
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", id.String())
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestParseUUID_Invalid(t *testing.T) {
	for _, param := range []string{"", "abc123", "not-a-uuid"} {
		rec := httptest.NewRecorder()
		_, ok := ParseUUID(rec, param)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_PARAMETER", decodeError(t, rec).Code)
	}
}
