package model

import "time"

// DeliveryAttempt is an append-only record of a single dispatch call,
// successful or not. One row per bot API send.
type DeliveryAttempt struct {
	ID        string    `json:"id"`
	PaymentID string    `json:"payment_id"`
	Attempt   int       `json:"attempt"` // 1-based attempt number within the payment's lifetime
	OK        bool      `json:"ok"`
	MessageID int       `json:"message_id,omitempty"` // Telegram message id when OK
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FailedDelivery is the admin dashboard view of a payment whose links were
// not (yet) delivered, joined with buyer and plan metadata.
type FailedDelivery struct {
	PaymentID     string         `json:"payment_id"`
	InvoiceNumber int64          `json:"invoice_number"`
	BuyerEmail    string         `json:"buyer_email"`
	BuyerName     string         `json:"buyer_name"`
	PlanName      string         `json:"plan_name"`
	Amount        int64          `json:"amount"`
	Currency      string         `json:"currency"`
	Status        DeliveryStatus `json:"delivery_status"`
	Attempts      int            `json:"delivery_attempts"`
	FailureReason string         `json:"failure_reason"`
	LastAttemptAt *time.Time     `json:"last_delivery_attempt,omitempty"`
}

// DeliveryStats are raw counters over succeeded payments; rates are computed
// by the stats use case.
type DeliveryStats struct {
	TotalSucceeded int64
	Delivered      int64
	Failed         int64
	PendingLink    int64
	Recovered      int64
}
