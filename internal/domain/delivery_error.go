package domain

import (
	"errors"
	"fmt"
)

// FailureClass is the closed set of delivery failure kinds. The recovery
// engine branches on the class, never on error message content.
type FailureClass int

const (
	// FailureTransient covers network errors, bot API errors and timeouts.
	// Retryable with backoff.
	FailureTransient FailureClass = iota
	// FailureConfig means the purchased plan cannot be delivered at all
	// (no channels, no usable invite links). Not retryable.
	FailureConfig
	// FailureIdentityMissing means the buyer has no linked Telegram account.
	// Not retryable by backoff; cleared only by account linking.
	FailureIdentityMissing
)

func (c FailureClass) String() string {
	switch c {
	case FailureConfig:
		return "config"
	case FailureIdentityMissing:
		return "identity_missing"
	default:
		return "transient"
	}
}

// DeliveryError carries a failure class alongside a human-readable reason
// that ends up in the payment's failure_reason audit field.
type DeliveryError struct {
	Class  FailureClass
	Reason string
	Err    error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Class, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Class, e.Reason)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

func NewDeliveryError(class FailureClass, reason string, err error) *DeliveryError {
	return &DeliveryError{Class: class, Reason: reason, Err: err}
}

// ClassOf extracts the failure class from any error produced by a delivery
// attempt. Unknown errors are treated as transient so they feed the backoff
// path rather than being silently dropped.
func ClassOf(err error) FailureClass {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Class
	}
	return FailureTransient
}
