package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name: "error with cause",
			err: &AppError{
				Code:       ErrCodeInvalidRequest,
				Message:    "validation failed",
				StatusCode: http.StatusBadRequest,
				Cause:      errors.New("field x is required"),
			},
			expected: "validation failed: field x is required",
		},
		{
			name: "error without cause",
			err: &AppError{
				Code:       ErrCodeNotFound,
				Message:    "resource not found",
				StatusCode: http.StatusNotFound,
				Cause:      nil,
			},
			expected: "resource not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.err.Error()
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := &AppError{
		Code:       ErrCodeInternalError,
		Message:    "something went wrong",
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}

	assert.Equal(t, cause, err.Unwrap())
	assert.ErrorIs(t, err, cause)
}

func TestAppError_Is(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		target   error
		expected bool
	}{
		{
			name:     "same error code matches",
			err:      ErrExportDenied("denied", nil),
			target:   &AppError{Code: ErrCodeExportDenied},
			expected: true,
		},
		{
			name:     "different error code does not match",
			err:      ErrExportDenied("denied", nil),
			target:   &AppError{Code: ErrCodeInvalidConfig},
			expected: false,
		},
		{
			name:     "empty code never matches",
			err:      &AppError{Message: "no code"},
			target:   &AppError{},
			expected: false,
		},
		{
			name:     "non AppError target",
			err:      ErrNotFound("missing", nil),
			target:   errors.New("missing"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Is(tt.target))
		})
	}
}

func TestConstructors(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name       string
		err        *AppError
		wantCode   string
		wantStatus int
	}{
		{"bad request", ErrBadRequest("bad", cause), ErrCodeInvalidRequest, http.StatusBadRequest},
		{"invalid config", ErrInvalidConfig("bad config", cause), ErrCodeInvalidConfig, http.StatusBadRequest},
		{"not found", ErrNotFound("missing", cause), ErrCodeNotFound, http.StatusNotFound},
		{"export denied", ErrExportDenied("denied", cause), ErrCodeExportDenied, http.StatusForbidden},
		{"internal", ErrInternalError("internal", cause), ErrCodeInternalError, http.StatusInternalServerError},
		{"unavailable", ErrServiceUnavailable("down", cause), ErrCodeServiceUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, tt.err.Code)
			assert.Equal(t, tt.wantStatus, tt.err.StatusCode)
			assert.Equal(t, cause, tt.err.Cause)
		})
	}
}

func TestNewClientError_PanicsOnServerStatus(t *testing.T) {
	assert.Panics(t, func() {
		_ = NewClientError(http.StatusInternalServerError, ErrCodeInvalidRequest, "x", nil)
	})
}

func TestNewServerError_PanicsOnClientStatus(t *testing.T) {
	assert.Panics(t, func() {
		_ = NewServerError(http.StatusBadRequest, ErrCodeInternalError, "x", nil)
	})
}

func TestHelpers(t *testing.T) {
	wrapped := fmt.Errorf("saving export: %w", ErrExportDenied("choose a writable directory", errors.New("permission denied")))
	plain := errors.New("plain failure")

	assert.Equal(t, http.StatusForbidden, GetStatusCode(wrapped))
	assert.Equal(t, http.StatusInternalServerError, GetStatusCode(plain))

	assert.Equal(t, ErrCodeExportDenied, GetErrorCode(wrapped))
	assert.Empty(t, GetErrorCode(plain))

	assert.Equal(t, "choose a writable directory", GetErrorMessage(wrapped))
	assert.Equal(t, "plain failure", GetErrorMessage(plain))

	assert.Equal(t, "permission denied", GetErrorDetails(wrapped))
	assert.Equal(t, "plain failure", GetErrorDetails(plain))

	noCause := ErrNotFound("missing", nil)
	require.Nil(t, noCause.Cause)
	assert.Equal(t, "missing", GetErrorDetails(noCause))
}
