package access

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 14, 15, 30, 0, 0, time.UTC)

func premiumModel() entity.ModelDescriptor {
	return entity.ModelDescriptor{
		Key:             "gemini-2.5-pro",
		ProviderEnabled: true,
		MinTier:         entity.TierOne,
		IsPremium:       true,
		IsActive:        true,
	}
}

func basicModel() entity.ModelDescriptor {
	return entity.ModelDescriptor{
		Key:             "llama3.2",
		ProviderEnabled: true,
		MinTier:         entity.TierGuest,
		IsActive:        true,
	}
}

func ptr(t time.Time) *time.Time { return &t }

func TestEvaluate_Gates(t *testing.T) {
	policy := DefaultPolicy(10)
	tier1 := entity.UserAccessState{UserId: uuid.New(), Tier: entity.TierOne}

	tests := []struct {
		name   string
		state  entity.UserAccessState
		model  func() entity.ModelDescriptor
		reason entity.DenyReason
	}{
		{"inactive model", tier1, func() entity.ModelDescriptor { m := basicModel(); m.IsActive = false; return m }, entity.DenyReasonModelUnavailable},
		{"disabled provider", tier1, func() entity.ModelDescriptor { m := basicModel(); m.ProviderEnabled = false; return m }, entity.DenyReasonModelUnavailable},
		{"below min tier", tier1, func() entity.ModelDescriptor { m := basicModel(); m.MinTier = entity.TierThree; return m }, entity.DenyReasonTierInsufficient},
		{"guest premium", entity.GuestAccessState(), func() entity.ModelDescriptor { m := premiumModel(); m.MinTier = entity.TierGuest; return m }, entity.DenyReasonTierInsufficient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, next := Evaluate(tt.state, tt.model(), now, policy)
			assert.False(t, d.Admitted)
			assert.Equal(t, tt.reason, d.Reason)
			assert.Equal(t, tt.state, next)
		})
	}
}

func TestEvaluate_UnmeteredTiers(t *testing.T) {
	policy := DefaultPolicy(10)
	for _, tier := range []entity.Tier{entity.TierTwo, entity.TierThree, entity.TierAdmin} {
		state := entity.UserAccessState{UserId: uuid.New(), Tier: tier, PremiumUsageToday: 500}
		d, next := Evaluate(state, premiumModel(), now, policy)
		assert.True(t, d.Admitted, tier.String())
		assert.False(t, d.Metered)
		assert.Equal(t, 500, next.PremiumUsageToday, "counter untouched for %s", tier)
	}
}

func TestEvaluate_NonPremiumNeverCounts(t *testing.T) {
	state := entity.UserAccessState{UserId: uuid.New(), Tier: entity.TierOne, PremiumUsageToday: 10}
	d, next := Evaluate(state, basicModel(), now, DefaultPolicy(10))
	assert.True(t, d.Admitted)
	assert.Equal(t, 10, next.PremiumUsageToday)
}

func TestEvaluate_Tier1Cap(t *testing.T) {
	reset := ptr(NextUTCMidnight(now))

	t.Run("ninth use admitted", func(t *testing.T) {
		state := entity.UserAccessState{UserId: uuid.New(), Tier: entity.TierOne, PremiumUsageToday: 9, PremiumUsageResetAt: reset}
		d, next := Evaluate(state, premiumModel(), now, DefaultPolicy(10))
		assert.True(t, d.Admitted)
		assert.Equal(t, 10, next.PremiumUsageToday)
		assert.Equal(t, 10, d.Used)
		assert.Equal(t, 10, d.Limit)
	})

	t.Run("at cap denied", func(t *testing.T) {
		state := entity.UserAccessState{UserId: uuid.New(), Tier: entity.TierOne, PremiumUsageToday: 10, PremiumUsageResetAt: reset}
		d, next := Evaluate(state, premiumModel(), now, DefaultPolicy(10))
		assert.False(t, d.Admitted)
		assert.Equal(t, entity.DenyReasonQuotaExceeded, d.Reason)
		assert.Equal(t, state, next)
	})

	t.Run("lapsed reset starts over", func(t *testing.T) {
		past := now.Add(-time.Hour)
		state := entity.UserAccessState{UserId: uuid.New(), Tier: entity.TierOne, PremiumUsageToday: 10, PremiumUsageResetAt: &past}
		d, next := Evaluate(state, premiumModel(), now, DefaultPolicy(10))
		require.True(t, d.Admitted)
		assert.Equal(t, 1, next.PremiumUsageToday)
		require.NotNil(t, next.PremiumUsageResetAt)
		assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), *next.PremiumUsageResetAt)
	})

	t.Run("first use sets reset", func(t *testing.T) {
		state := entity.UserAccessState{UserId: uuid.New(), Tier: entity.TierOne}
		_, next := Evaluate(state, premiumModel(), now, DefaultPolicy(10))
		require.NotNil(t, next.PremiumUsageResetAt)
		assert.True(t, next.PremiumUsageResetAt.After(now))
	})
}

func TestNextUTCMidnight(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	local := time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC).In(loc)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), NextUTCMidnight(local))

	midnight := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, midnight.Add(24*time.Hour), NextUTCMidnight(midnight))
}

func TestController_ConcurrentPremiumAdmitsExactlyCap(t *testing.T) {
	store := NewMemoryQuotaStore()
	ctrl := NewController(store, DefaultPolicy(10), logger.NewNop())
	state := entity.UserAccessState{UserId: uuid.New(), Tier: entity.TierOne}
	store.Put(state)

	var admitted int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, _, err := ctrl.Authorize(context.Background(), state, premiumModel(), now)
			if err == nil && d.Admitted {
				atomic.AddInt32(&admitted, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), admitted)
	stored, ok := store.Get(state.UserId)
	require.True(t, ok)
	assert.Equal(t, 10, stored.PremiumUsageToday)
}

func TestController_AuthorizeReturnsUpdatedState(t *testing.T) {
	store := NewMemoryQuotaStore()
	ctrl := NewController(store, DefaultPolicy(10), logger.NewNop())
	state := entity.UserAccessState{UserId: uuid.New(), Tier: entity.TierOne}

	d, next, err := ctrl.Authorize(context.Background(), state, premiumModel(), now)
	require.NoError(t, err)
	assert.True(t, d.Admitted)
	assert.Equal(t, 1, next.PremiumUsageToday)
	assert.NotNil(t, next.PremiumUsageResetAt)
}

func TestController_MissingUserId(t *testing.T) {
	ctrl := NewController(NewMemoryQuotaStore(), DefaultPolicy(10), logger.NewNop())
	state := entity.UserAccessState{Tier: entity.TierOne}

	d, _, err := ctrl.Authorize(context.Background(), state, premiumModel(), now)
	assert.ErrorIs(t, err, ErrMissingUser)
	assert.False(t, d.Admitted)
}

func TestController_PreviewDoesNotConsume(t *testing.T) {
	store := NewMemoryQuotaStore()
	ctrl := NewController(store, DefaultPolicy(10), logger.NewNop())
	state := entity.UserAccessState{UserId: uuid.New(), Tier: entity.TierOne, PremiumUsageToday: 4, PremiumUsageResetAt: ptr(NextUTCMidnight(now))}
	store.Put(state)

	for i := 0; i < 3; i++ {
		d, err := ctrl.Preview(context.Background(), state, premiumModel(), now)
		require.NoError(t, err)
		assert.True(t, d.Admitted)
		assert.Equal(t, 4, d.Used)
	}

	stored, _ := store.Get(state.UserId)
	assert.Equal(t, 4, stored.PremiumUsageToday)
}

func TestController_GuestBasicModel(t *testing.T) {
	ctrl := NewController(NewMemoryQuotaStore(), DefaultPolicy(10), logger.NewNop())
	d, _, err := ctrl.Authorize(context.Background(), entity.GuestAccessState(), basicModel(), now)
	require.NoError(t, err)
	assert.True(t, d.Admitted)
}
