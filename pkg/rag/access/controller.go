package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/pkg/logger"

	"github.com/google/uuid"
)

var ErrMissingUser = errors.New("access: metered request without a user id")

// QuotaStore holds premium counters. ConsumePremium must be a single atomic
// compare-and-increment keyed by user id.
type QuotaStore interface {
	ConsumePremium(ctx context.Context, userId uuid.UUID, limit int, now time.Time) (entity.QuotaResult, error)
	PremiumUsage(ctx context.Context, userId uuid.UUID) (int, *time.Time, error)
}

type Controller struct {
	store  QuotaStore
	policy Policy
	logger logger.ILogger
}

func NewController(store QuotaStore, policy Policy, log logger.ILogger) *Controller {
	return &Controller{store: store, policy: policy, logger: log}
}

// Authorize decides and, for metered premium requests, consumes one unit.
func (c *Controller) Authorize(ctx context.Context, state entity.UserAccessState, model entity.ModelDescriptor, now time.Time) (Decision, entity.UserAccessState, error) {
	if d, ok := gate(state, model); !ok {
		c.logDenied(state, model, d)
		return d, state, nil
	}

	limit, metered := c.policy.capFor(state.Tier)
	if !model.IsPremium || !metered {
		return Decision{Admitted: true, Limit: -1}, state, nil
	}
	if state.UserId == uuid.Nil {
		return deny(entity.DenyReasonQuotaExceeded), state, ErrMissingUser
	}

	res, err := c.store.ConsumePremium(ctx, state.UserId, limit, now)
	if err != nil {
		return deny(entity.DenyReasonQuotaExceeded), state, fmt.Errorf("consume premium quota: %w", err)
	}

	d := quotaDecision(res, limit)
	next := state
	next.PremiumUsageToday = res.Usage
	next.PremiumUsageResetAt = res.ResetAt
	if !d.Admitted {
		c.logDenied(state, model, d)
	}
	return d, next, nil
}

// Preview evaluates without consuming anything.
func (c *Controller) Preview(ctx context.Context, state entity.UserAccessState, model entity.ModelDescriptor, now time.Time) (Decision, error) {
	if state.UserId != uuid.Nil {
		usage, resetAt, err := c.store.PremiumUsage(ctx, state.UserId)
		if err != nil {
			return Decision{}, fmt.Errorf("read premium usage: %w", err)
		}
		state.PremiumUsageToday = usage
		state.PremiumUsageResetAt = resetAt
	}

	d, _ := Evaluate(state, model, now, c.policy)
	if d.Metered && d.Admitted {
		// report what has been used, not what would be after this request
		d.Used--
	}
	return d, nil
}

func (c *Controller) logDenied(state entity.UserAccessState, model entity.ModelDescriptor, d Decision) {
	c.logger.Info("Access", "model access denied", map[string]interface{}{
		"user_id": state.UserId.String(),
		"tier":    state.Tier.String(),
		"model":   model.Key,
		"reason":  string(d.Reason),
		"used":    d.Used,
		"limit":   d.Limit,
	})
}
