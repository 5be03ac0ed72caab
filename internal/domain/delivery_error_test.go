package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want FailureClass
	}{
		{"config error", NewDeliveryError(FailureConfig, "no channels", nil), FailureConfig},
		{"identity error", NewDeliveryError(FailureIdentityMissing, "unlinked", ErrTelegramNotLinked), FailureIdentityMissing},
		{"transient error", NewDeliveryError(FailureTransient, "timeout", nil), FailureTransient},
		{"wrapped delivery error", fmt.Errorf("sweep item: %w", NewDeliveryError(FailureConfig, "no links", nil)), FailureConfig},
		{"plain error defaults to transient", errors.New("connection reset"), FailureTransient},
		{"nil defaults to transient", nil, FailureTransient},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ClassOf(c.err); got != c.want {
				t.Errorf("expected %v, got %v", c.want, got)
			}
		})
	}
}

func TestDeliveryError_Unwrap(t *testing.T) {
	inner := errors.New("tcp timeout")
	err := NewDeliveryError(FailureTransient, "telegram send failed", inner)
	if !errors.Is(err, inner) {
		t.Error("expected errors.Is to reach the wrapped cause")
	}
	if err.Error() != "transient: telegram send failed: tcp timeout" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}
