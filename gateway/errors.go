package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrServiceDisabled is returned while the operator has chat turned off.
	ErrServiceDisabled = errors.New("chat service is disabled")

	// ErrRateLimited is returned when either admission window rejects the
	// request.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrVerificationFailed is returned when an order lookup finds no match.
	// It carries no detail about which field was wrong.
	ErrVerificationFailed = errors.New("order verification failed")
)

// InvalidInputError reports a request field that failed validation.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalidInput(field, reason string) error {
	return &InvalidInputError{Field: field, Reason: reason}
}
