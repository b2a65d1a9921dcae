package entity

import (
	"time"

	"github.com/google/uuid"
)

// UserAccessState is the per-user tier and premium counter.
// PremiumUsageResetAt nil means the counter has never been started.
type UserAccessState struct {
	UserId              uuid.UUID
	Tier                Tier
	PremiumUsageToday   int
	PremiumUsageResetAt *time.Time
	UpdatedAt           *time.Time
}

// GuestAccessState is used for unauthenticated callers.
func GuestAccessState() UserAccessState {
	return UserAccessState{Tier: TierGuest}
}

type DenyReason string

const (
	DenyReasonNone             DenyReason = ""
	DenyReasonModelUnavailable DenyReason = "model_unavailable"
	DenyReasonTierInsufficient DenyReason = "tier_insufficient"
	DenyReasonQuotaExceeded    DenyReason = "quota_exceeded"
)

// QuotaResult is what an atomic premium consume returns.
type QuotaResult struct {
	Admitted bool
	Usage    int
	ResetAt  *time.Time
}
