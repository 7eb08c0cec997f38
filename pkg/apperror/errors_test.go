package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New("TRD_102", "Insufficient balance", http.StatusBadRequest),
			expected: "[TRD_102] Insufficient balance",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("SYS_001", "Transaction failed", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[SYS_001] Transaction failed: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap("SYS_001", "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
}

func TestAppError_IsNilUnwrap(t *testing.T) {
	appErr := New("TRD_101", "test", http.StatusBadRequest)
	assert.Nil(t, appErr.Unwrap())
}

func TestAppError_IsByCode(t *testing.T) {
	err := fmt.Errorf("purchase: %w", ErrSelfTrade())

	assert.ErrorIs(t, err, ErrSelfTrade())
	assert.NotErrorIs(t, err, ErrNotActive())
}

func TestTradeErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"NotFound", ErrNotFound("Listing"), "TRD_404", 400},
		{"Validation", Validation("bad"), "TRD_400", 400},
		{"InsufficientInventory", ErrInsufficientInventory(), "TRD_101", 400},
		{"InsufficientBalance", ErrInsufficientBalance(), "TRD_102", 400},
		{"InsufficientQuantity", ErrInsufficientQuantity(), "TRD_103", 400},
		{"SelfTrade", ErrSelfTrade(), "TRD_104", 400},
		{"NothingToClaim", ErrNothingToClaim(), "TRD_105", 400},
		{"NotActive", ErrNotActive(), "TRD_106", 400},
		{"NotOwner", ErrNotOwner(), "TRD_107", 400},
		{"DuplicateRequest", ErrDuplicateRequest(), "TRD_108", 400},
		{"IdempotencyKeyReused", ErrIdempotencyKeyReused(), "TRD_109", 400},
		{"CreditOverflow", ErrCreditOverflow(), "TRD_110", 400},
		{"BodyTooLarge", ErrBodyTooLarge(), "TRD_413", 413},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
			assert.Equal(t, StatusBadRequest, tt.err.Status())
		})
	}
}

func TestSystemErrors(t *testing.T) {
	inner := fmt.Errorf("serialization failure")

	txErr := ErrTransaction(inner)
	assert.Equal(t, "SYS_001", txErr.Code)
	assert.Equal(t, http.StatusInternalServerError, txErr.HTTPStatus)
	assert.Equal(t, StatusError, txErr.Status())
	assert.ErrorIs(t, txErr, inner)

	internal := InternalError(inner)
	assert.Equal(t, "SYS_000", internal.Code)
	assert.Equal(t, StatusError, internal.Status())
}

func TestNotFound_Message(t *testing.T) {
	assert.Equal(t, "Listing not found", ErrNotFound("Listing").Message)
	assert.Equal(t, "Account not found", ErrNotFound("Account").Message)
}

func TestAuthAndRateErrors(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, ErrInvalidToken().HTTPStatus)
	assert.Equal(t, StatusBadRequest, ErrInvalidToken().Status())
	assert.Equal(t, http.StatusTooManyRequests, ErrRateLimitExceeded().HTTPStatus)
}
