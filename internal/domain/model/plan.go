package model

import (
	"time"

	"telegram-channel-subscription/internal/domain"
)

// Channel is a Telegram channel bundled into a plan. Position fixes the
// order links appear in the delivery message.
type Channel struct {
	ID         string
	Title      string
	InviteLink string
	Position   int
}

// Plan represents a purchasable bundle of Telegram channels.
type Plan struct {
	ID           string
	Name         string
	DurationDays int
	PriceIRR     int64
	Channels     []Channel // ordered by Position
	CreatedAt    time.Time
}

func (p *Plan) IsZero() bool { return p == nil || p.ID == "" }

// NewPlan validates and constructs a plan.
func NewPlan(id, name string, durationDays int, priceIRR int64, channels []Channel) (*Plan, error) {
	if id == "" || name == "" || durationDays <= 0 || priceIRR <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Plan{
		ID:           id,
		Name:         name,
		DurationDays: durationDays,
		PriceIRR:     priceIRR,
		Channels:     channels,
		CreatedAt:    time.Now(),
	}, nil
}
