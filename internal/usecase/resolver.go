package usecase

import (
	"strings"

	"telegram-channel-subscription/internal/domain"
	"telegram-channel-subscription/internal/domain/model"
)

// ResolveInviteLinks returns the ordered list of channel entries a buyer of
// the plan is entitled to. Pure lookup, no side effects; entries without a
// usable invite link are dropped. An empty result is a configuration
// failure, not a transient one.
func ResolveInviteLinks(plan *model.Plan) ([]model.Channel, error) {
	if plan.IsZero() {
		return nil, domain.NewDeliveryError(domain.FailureConfig, "plan not resolved", domain.ErrNotFound)
	}
	if len(plan.Channels) == 0 {
		return nil, domain.NewDeliveryError(domain.FailureConfig, "plan has no channels", nil)
	}
	out := make([]model.Channel, 0, len(plan.Channels))
	for _, ch := range plan.Channels {
		if strings.TrimSpace(ch.InviteLink) == "" {
			continue
		}
		out = append(out, ch)
	}
	if len(out) == 0 {
		return nil, domain.NewDeliveryError(domain.FailureConfig, "plan channels have no invite links", nil)
	}
	return out, nil
}
