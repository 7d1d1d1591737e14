package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientBalance is returned when a debit exceeds the customer's
	// point balance. Not retryable without earning more points.
	ErrInsufficientBalance = errors.New("insufficient point balance")

	// ErrCustomerNotFound is returned when a customer account cannot be found
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrCustomerExists is returned when registering an account that already exists
	ErrCustomerExists = errors.New("customer already registered")

	// ErrItemNotFound is returned when a catalog item cannot be found
	ErrItemNotFound = errors.New("catalog item not found")

	// ErrItemExists is returned when creating a catalog item whose code is taken
	ErrItemExists = errors.New("catalog item already exists")

	// ErrRedemptionNotFound is returned when a redemption record cannot be found
	ErrRedemptionNotFound = errors.New("redemption not found")

	// ErrRedemptionReversed is returned when confirming a coupon whose
	// redemption was already reversed
	ErrRedemptionReversed = errors.New("redemption already reversed")

	// ErrBusy is returned when the customer or catalog row lock could not be
	// acquired within the lock wait bound across the retry budget. Callers
	// should retry with backoff.
	ErrBusy = errors.New("resource busy, retry")

	// ErrInvalidRequest is returned when request data is invalid or incomplete
	ErrInvalidRequest = errors.New("invalid request")
)

// RuleReason identifies the first eligibility rule a redemption violated.
// The check order is fixed; callers surface the reason verbatim.
type RuleReason string

const (
	ReasonInactive     RuleReason = "inactive"
	ReasonNotStarted   RuleReason = "not_started"
	ReasonExpired      RuleReason = "expired"
	ReasonTier         RuleReason = "tier"
	ReasonUsageLimit   RuleReason = "usage_limit"
	ReasonPerUserLimit RuleReason = "per_user_limit"
	ReasonMinSpend     RuleReason = "min_spend"
)

// RuleViolationError reports a single failed eligibility check. Validation
// short-circuits, so this is always the first rule that failed, never an
// aggregate.
type RuleViolationError struct {
	Reason RuleReason
	Detail string
}

func (e *RuleViolationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("rule violation: %s", e.Reason)
	}
	return fmt.Sprintf("rule violation: %s (%s)", e.Reason, e.Detail)
}

// AsRuleViolation unwraps err into a RuleViolationError if it is one.
func AsRuleViolation(err error) (*RuleViolationError, bool) {
	var rv *RuleViolationError
	if errors.As(err, &rv) {
		return rv, true
	}
	return nil, false
}
