package access

import (
	"context"
	"sync"
	"time"

	"ai-assistant-be/internal/entity"

	"github.com/google/uuid"
)

// MemoryQuotaStore keeps counters in process; one mutex serialises updates.
type MemoryQuotaStore struct {
	mu     sync.Mutex
	states map[uuid.UUID]entity.UserAccessState
}

func NewMemoryQuotaStore() *MemoryQuotaStore {
	return &MemoryQuotaStore{states: map[uuid.UUID]entity.UserAccessState{}}
}

func (s *MemoryQuotaStore) Put(state entity.UserAccessState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.UserId] = state
}

func (s *MemoryQuotaStore) Get(userId uuid.UUID) (entity.UserAccessState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[userId]
	return st, ok
}

func (s *MemoryQuotaStore) ConsumePremium(ctx context.Context, userId uuid.UUID, limit int, now time.Time) (entity.QuotaResult, error) {
	if err := ctx.Err(); err != nil {
		return entity.QuotaResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[userId]
	if !ok {
		st = entity.UserAccessState{UserId: userId, Tier: entity.TierOne}
	}
	next, res := ApplyPremium(st, limit, now)
	s.states[userId] = next
	return res, nil
}

func (s *MemoryQuotaStore) PremiumUsage(_ context.Context, userId uuid.UUID) (int, *time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.states[userId]
	return st.PremiumUsageToday, st.PremiumUsageResetAt, nil
}
