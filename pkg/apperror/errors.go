package apperror

import (
	"fmt"
	"net/http"
)

// Envelope status classes carried in every API response.
const (
	StatusSuccess    = "SUCCESS"
	StatusBadRequest = "BAD_REQUEST"
	StatusError      = "ERROR"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches another *AppError by code so errors.Is works against constructor results.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// Status returns the envelope status class: ERROR for server faults, BAD_REQUEST otherwise.
func (e *AppError) Status() string {
	if e.HTTPStatus >= http.StatusInternalServerError {
		return StatusError
	}
	return StatusBadRequest
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Trade Business Logic (TRD) ----

func ErrNotFound(entity string) *AppError {
	return New("TRD_404", fmt.Sprintf("%s not found", entity), http.StatusBadRequest)
}

// Validation returns a TRD_400 validation error.
func Validation(message string) *AppError {
	return New("TRD_400", message, http.StatusBadRequest)
}

func ErrInsufficientInventory() *AppError {
	return New("TRD_101", "Not enough items in inventory", http.StatusBadRequest)
}

func ErrInsufficientBalance() *AppError {
	return New("TRD_102", "Insufficient balance", http.StatusBadRequest)
}

func ErrInsufficientQuantity() *AppError {
	return New("TRD_103", "Not enough quantity left on listing", http.StatusBadRequest)
}

func ErrSelfTrade() *AppError {
	return New("TRD_104", "Cannot buy your own listing", http.StatusBadRequest)
}

func ErrNothingToClaim() *AppError {
	return New("TRD_105", "Nothing to claim", http.StatusBadRequest)
}

func ErrNotActive() *AppError {
	return New("TRD_106", "Listing is not active", http.StatusBadRequest)
}

func ErrNotOwner() *AppError {
	return New("TRD_107", "Listing belongs to another account", http.StatusBadRequest)
}

func ErrDuplicateRequest() *AppError {
	return New("TRD_108", "Request with this idempotency key is already being processed", http.StatusBadRequest)
}

func ErrIdempotencyKeyReused() *AppError {
	return New("TRD_109", "Idempotency key was already used for a different purchase", http.StatusBadRequest)
}

func ErrCreditOverflow() *AppError {
	return New("TRD_110", "Credit would exceed the supported range", http.StatusBadRequest)
}

func ErrBodyTooLarge() *AppError {
	return New("TRD_413", "Request body too large", http.StatusRequestEntityTooLarge)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// ErrTransaction reports a store transaction that could not begin, commit or
// survive a concurrent write. Nothing was applied.
func ErrTransaction(err error) *AppError {
	return Wrap("SYS_001", "Transaction failed", http.StatusInternalServerError, err)
}

// InternalError wraps an unexpected internal error.
func InternalError(err error) *AppError {
	return Wrap("SYS_000", "Internal server error", http.StatusInternalServerError, err)
}
