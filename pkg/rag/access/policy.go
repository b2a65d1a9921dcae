// Package access decides whether a user may use a chat model and meters
// daily premium usage.
package access

import (
	"time"

	"ai-assistant-be/internal/entity"
)

// Policy holds per-tier daily premium caps. Tiers without an entry are
// unlimited.
type Policy struct {
	PremiumDailyCap map[entity.Tier]int
}

func DefaultPolicy(tier1Cap int) Policy {
	return Policy{PremiumDailyCap: map[entity.Tier]int{entity.TierOne: tier1Cap}}
}

func (p Policy) capFor(t entity.Tier) (int, bool) {
	c, ok := p.PremiumDailyCap[t]
	return c, ok
}

// Decision is the outcome of an access check. Limit is -1 when unmetered.
type Decision struct {
	Admitted bool              `json:"admitted"`
	Reason   entity.DenyReason `json:"reason,omitempty"`
	Metered  bool              `json:"metered"`
	Limit    int               `json:"limit"`
	Used     int               `json:"used"`
	ResetAt  *time.Time        `json:"reset_at,omitempty"`
}

func deny(reason entity.DenyReason) Decision {
	return Decision{Reason: reason, Limit: -1}
}

// NextUTCMidnight is the next 00:00 UTC strictly after now.
func NextUTCMidnight(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year(), u.Month(), u.Day()+1, 0, 0, 0, 0, time.UTC)
}

// Evaluate is the pure access rule. It returns the decision and the state
// as it would be after the decision is applied.
func Evaluate(state entity.UserAccessState, model entity.ModelDescriptor, now time.Time, policy Policy) (Decision, entity.UserAccessState) {
	if d, ok := gate(state, model); !ok {
		return d, state
	}

	if model.IsPremium {
		if limit, metered := policy.capFor(state.Tier); metered {
			next, res := ApplyPremium(state, limit, now)
			return quotaDecision(res, limit), next
		}
	}
	return Decision{Admitted: true, Limit: -1}, state
}

// gate covers the checks that never touch the counter.
func gate(state entity.UserAccessState, model entity.ModelDescriptor) (Decision, bool) {
	if !model.IsActive || !model.ProviderEnabled {
		return deny(entity.DenyReasonModelUnavailable), false
	}
	if !state.Tier.AtLeast(model.MinTier) {
		return deny(entity.DenyReasonTierInsufficient), false
	}
	if model.IsPremium && state.Tier == entity.TierGuest {
		return deny(entity.DenyReasonTierInsufficient), false
	}
	return Decision{}, true
}

// ApplyPremium is the compare-and-increment on the premium counter. A
// counter whose reset time has passed counts as zero. Stores must apply
// it atomically per user.
func ApplyPremium(state entity.UserAccessState, limit int, now time.Time) (entity.UserAccessState, entity.QuotaResult) {
	usage := state.PremiumUsageToday
	lapsed := state.PremiumUsageResetAt != nil && now.After(*state.PremiumUsageResetAt)
	if lapsed {
		usage = 0
	}

	if usage >= limit {
		return state, entity.QuotaResult{Admitted: false, Usage: usage, ResetAt: state.PremiumUsageResetAt}
	}

	next := state
	next.PremiumUsageToday = usage + 1
	if state.PremiumUsageResetAt == nil || lapsed {
		reset := NextUTCMidnight(now)
		next.PremiumUsageResetAt = &reset
	}
	return next, entity.QuotaResult{Admitted: true, Usage: next.PremiumUsageToday, ResetAt: next.PremiumUsageResetAt}
}

func quotaDecision(res entity.QuotaResult, limit int) Decision {
	d := Decision{
		Admitted: res.Admitted,
		Metered:  true,
		Limit:    limit,
		Used:     res.Usage,
		ResetAt:  res.ResetAt,
	}
	if !res.Admitted {
		d.Reason = entity.DenyReasonQuotaExceeded
	}
	return d
}
