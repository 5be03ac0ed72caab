package model

import "testing"

func TestDeliveryState_HadPriorFailure(t *testing.T) {
	cases := []struct {
		name string
		ds   DeliveryState
		want bool
	}{
		{"fresh state", DeliveryState{}, false},
		{"attempts recorded", DeliveryState{Attempts: 1}, true},
		{"failed status", DeliveryState{Status: DeliveryStatusFailed}, true},
		{"pending link", DeliveryState{Status: DeliveryStatusPendingLink}, true},
		{"retrying", DeliveryState{Status: DeliveryStatusRetrying}, true},
		{"clean success", DeliveryState{Status: DeliveryStatusSuccess, LinkDelivered: true, Attempts: 0}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.ds.HadPriorFailure(); got != c.want {
				t.Errorf("expected %v, got %v", c.want, got)
			}
		})
	}
}

func TestPayment_DeliveryEligible(t *testing.T) {
	if (&Payment{Status: PaymentStatusPending}).DeliveryEligible() {
		t.Error("pending payment must not be eligible")
	}
	if (&Payment{Status: PaymentStatusFailed}).DeliveryEligible() {
		t.Error("failed payment must not be eligible")
	}
	if !(&Payment{Status: PaymentStatusSucceeded}).DeliveryEligible() {
		t.Error("succeeded payment must be eligible")
	}
	var nilP *Payment
	if nilP.DeliveryEligible() {
		t.Error("nil payment must not be eligible")
	}
}

func TestUser_LinkTelegram(t *testing.T) {
	u, err := NewUser("", "buyer@example.com", "Buyer")
	if err != nil {
		t.Fatalf("new user: %v", err)
	}
	if u.HasTelegramLinked() {
		t.Error("fresh user must not be linked")
	}
	if err := u.LinkTelegram(0, "x"); err == nil {
		t.Error("zero telegram id must be rejected")
	}
	if err := u.LinkTelegram(12345, "buyer"); err != nil {
		t.Fatalf("link: %v", err)
	}
	if !u.HasTelegramLinked() || *u.TelegramID != 12345 || u.LinkedAt == nil {
		t.Errorf("link not recorded: %+v", u)
	}
}
