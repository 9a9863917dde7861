package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/callpulse/call-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for single-call lookups. Writes go to the primary store and
// invalidate the cache; reads check Redis first then fall back to the
// primary. Batch listings always hit the primary — the poller must see
// fresh state.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateCall(ctx context.Context, c *model.TradingCall) error {
	if err := s.primary.CreateCall(ctx, c); err != nil {
		return err
	}
	s.cacheCall(ctx, c)
	return nil
}

func (s *CachedStore) UpdateCallState(ctx context.Context, c *model.TradingCall) error {
	if err := s.primary.UpdateCallState(ctx, c); err != nil {
		return err
	}
	// Invalidate; next read re-populates from the primary.
	s.rdb.Del(ctx, callKey(c.ID))
	return nil
}

func (s *CachedStore) PublishCall(ctx context.Context, id string) error {
	if err := s.primary.PublishCall(ctx, id); err != nil {
		return err
	}
	s.rdb.Del(ctx, callKey(id))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetCall(ctx context.Context, id string) (*model.TradingCall, error) {
	data, err := s.rdb.Get(ctx, callKey(id)).Bytes()
	if err == nil {
		var c model.TradingCall
		if json.Unmarshal(data, &c) == nil {
			return &c, nil
		}
	}

	// Cache miss: read from primary.
	c, err := s.primary.GetCall(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheCall(ctx, c)
	return c, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListCalls(ctx context.Context, filter ListFilter) ([]model.TradingCall, error) {
	return s.primary.ListCalls(ctx, filter)
}

func (s *CachedStore) ListOpenCalls(ctx context.Context) ([]model.TradingCall, error) {
	return s.primary.ListOpenCalls(ctx)
}

func (s *CachedStore) ListInconsistentCalls(ctx context.Context) ([]model.TradingCall, error) {
	return s.primary.ListInconsistentCalls(ctx)
}

func (s *CachedStore) ListExpiryCandidates(ctx context.Context, cutoff time.Time) ([]model.TradingCall, error) {
	return s.primary.ListExpiryCandidates(ctx, cutoff)
}

// --- Cache helpers ---

func (s *CachedStore) cacheCall(ctx context.Context, c *model.TradingCall) {
	if data, err := json.Marshal(c); err == nil {
		s.rdb.Set(ctx, callKey(c.ID), data, s.ttl)
	}
}

func callKey(id string) string { return fmt.Sprintf("call:%s", id) }
