package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound marks an unknown donation, bin, voucher or user.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a request that is valid but not allowed in the
	// current state. Use errors.As with *ConflictError for details.
	ErrConflict = errors.New("conflict")
	// ErrForbidden marks a caller lacking the required capability.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials is returned by Login.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrVoucherCodeCollision means the generated voucher code was already
	// taken. Nothing was written; the claim may be retried.
	ErrVoucherCodeCollision = &ConflictError{Reason: "voucher code collision, please retry"}
)

// ConflictError reports a state conflict and the state the caller should
// reconcile with.
type ConflictError struct {
	Reason        string
	CurrentStatus string
}

func (e *ConflictError) Error() string {
	if e.CurrentStatus != "" {
		return fmt.Sprintf("%s (current status: %s)", e.Reason, e.CurrentStatus)
	}
	return e.Reason
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// RateLimitError reports a quota that resets at ResetAt.
type RateLimitError struct {
	Reason  string
	Limit   int
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s (limit %d, resets at %s)", e.Reason, e.Limit, e.ResetAt.Format(time.RFC3339))
}

func notFound(entity string) error {
	return fmt.Errorf("%s %w", entity, ErrNotFound)
}
