package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/callpulse/call-engine/internal/model"
)

// MemoryStore implements Store with an in-memory map. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu    sync.RWMutex
	calls map[string]*model.TradingCall
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		calls: make(map[string]*model.TradingCall),
	}
}

func (s *MemoryStore) CreateCall(_ context.Context, c *model.TradingCall) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.calls[c.ID]; exists {
		return fmt.Errorf("call %s already exists", c.ID)
	}

	// Store a copy to avoid external mutation.
	copy := *c
	s.calls[c.ID] = &copy
	return nil
}

func (s *MemoryStore) GetCall(_ context.Context, id string) (*model.TradingCall, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.calls[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	copy := *c
	return &copy, nil
}

func (s *MemoryStore) ListCalls(_ context.Context, filter ListFilter) ([]model.TradingCall, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var calls []model.TradingCall
	for _, c := range s.calls {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.Symbol != "" && c.Symbol != filter.Symbol {
			continue
		}
		calls = append(calls, *c)
	}
	sortNewestFirst(calls)
	return calls, nil
}

func (s *MemoryStore) ListOpenCalls(_ context.Context) ([]model.TradingCall, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var calls []model.TradingCall
	for _, c := range s.calls {
		if c.Status == model.StatusScheduled || c.Status.Terminal() {
			continue
		}
		calls = append(calls, *c)
	}
	sortNewestFirst(calls)
	return calls, nil
}

func (s *MemoryStore) ListInconsistentCalls(_ context.Context) ([]model.TradingCall, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var calls []model.TradingCall
	for _, c := range s.calls {
		if !c.Consistent() {
			calls = append(calls, *c)
		}
	}
	sortNewestFirst(calls)
	return calls, nil
}

func (s *MemoryStore) ListExpiryCandidates(_ context.Context, cutoff time.Time) ([]model.TradingCall, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var calls []model.TradingCall
	for _, c := range s.calls {
		if c.TradeType != model.TradeSwing || c.Status != model.StatusActive {
			continue
		}
		if c.AnyHit() || !c.CallDate.Before(cutoff) {
			continue
		}
		calls = append(calls, *c)
	}
	sortNewestFirst(calls)
	return calls, nil
}

func (s *MemoryStore) UpdateCallState(_ context.Context, c *model.TradingCall) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.calls[c.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, c.ID)
	}
	existing.HitState = c.HitState
	existing.Status = c.Status
	existing.CurrentPrice = c.CurrentPrice
	existing.LastChecked = c.LastChecked
	return nil
}

func (s *MemoryStore) PublishCall(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.calls[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if c.Status != model.StatusScheduled {
		return fmt.Errorf("call %s is not scheduled", id)
	}
	c.Status = model.StatusActive
	return nil
}

func sortNewestFirst(calls []model.TradingCall) {
	sort.Slice(calls, func(i, j int) bool {
		return calls[i].CreatedAt.After(calls[j].CreatedAt)
	})
}
