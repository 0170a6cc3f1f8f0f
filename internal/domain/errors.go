package domain

import (
	"errors"
	"fmt"
)

// Application errors
var (
	// ErrNotFound record not found
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate duplicate record
	ErrDuplicate = errors.New("duplicate record")

	// ErrInvalidInput invalid input data
	ErrInvalidInput = errors.New("invalid input data")

	// ErrUnauthenticated caller is not authenticated
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrUnauthorized caller does not own the resource
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInternal internal error
	ErrInternal = errors.New("internal error")

	// ErrAccountNotFound account could not be resolved
	ErrAccountNotFound = errors.New("account not found")

	// ErrDeckNotFound deck could not be resolved
	ErrDeckNotFound = errors.New("deck not found")

	// ErrDeckInaccessible deck exists but is frozen by the downgrade rule
	ErrDeckInaccessible = errors.New("deck not accessible on current plan")

	// ErrSessionNotActive test session is not accepting responses
	ErrSessionNotActive = errors.New("test session is not active")

	// ErrWebhookValidationFailed webhook signature could not be verified
	ErrWebhookValidationFailed = errors.New("webhook validation failed")

	// ErrExternalServiceUnavailable external collaborator call failed
	ErrExternalServiceUnavailable = errors.New("external service unavailable")
)

// QuotaError wraps a denied entitlement check so callers can surface the
// limit details. Denials are values, not failures; this type exists for call
// sites that must abort a mutation on denial.
type QuotaError struct {
	Action Action
	Result EntitlementResult
}

// Error implements the error interface
func (e *QuotaError) Error() string {
	return fmt.Sprintf("quota exceeded for %s: %s", e.Action, e.Result.Reason)
}

// NewQuotaError creates a quota error from a denied result
func NewQuotaError(action Action, result EntitlementResult) *QuotaError {
	return &QuotaError{Action: action, Result: result}
}
