package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"   // awaiting gateway confirmation
	PaymentStatusSucceeded PaymentStatus = "succeeded" // confirmed by the gateway
	PaymentStatusFailed    PaymentStatus = "failed"    // gateway reported failure
)

type DeliveryStatus string

const (
	DeliveryStatusUnset       DeliveryStatus = ""
	DeliveryStatusSuccess     DeliveryStatus = "success"
	DeliveryStatusFailed      DeliveryStatus = "failed"
	DeliveryStatusPendingLink DeliveryStatus = "pending_telegram_link"
	DeliveryStatusRetrying    DeliveryStatus = "retrying"
)

// DeliveryState is the invite-link delivery audit trail attached to every
// succeeded payment. It is mutated exclusively by the recovery engine and is
// never deleted.
type DeliveryState struct {
	LinkDelivered        bool
	Status               DeliveryStatus
	Attempts             int // increments on every dispatch call, never on a gate skip
	LastAttemptAt        *time.Time
	FailureReason        string
	TelegramLinkRequired bool
	RecoveryCompleted    bool // delivered via the recovery path, not at purchase time
}

// HadPriorFailure reports whether any failed delivery work was recorded
// before the current attempt sequence.
func (d *DeliveryState) HadPriorFailure() bool {
	if d.Attempts > 0 {
		return true
	}
	switch d.Status {
	case DeliveryStatusFailed, DeliveryStatusPendingLink, DeliveryStatusRetrying:
		return true
	}
	return false
}

// Payment records a purchase of a channel-bundle plan.
type Payment struct {
	ID            string // UUID
	UserID        string // UUID -> User
	PlanID        string // UUID -> Plan
	Amount        int64  // stored in Rials (integer), to avoid float errors
	Currency      string
	InvoiceNumber int64 // assigned from the atomic counter on confirmation; 0 while pending
	Status        PaymentStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
	PaidAt        *time.Time

	Delivery DeliveryState
}

func (p *Payment) IsZero() bool { return p == nil || p.ID == "" }

// DeliveryEligible reports whether the recovery engine may touch this payment.
// Delivery state is meaningful only once the gateway confirmed the payment.
func (p *Payment) DeliveryEligible() bool {
	return p != nil && p.Status == PaymentStatusSucceeded
}
