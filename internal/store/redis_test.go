package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/callpulse/call-engine/internal/model"
)

func newCachedEnv(t *testing.T) (*CachedStore, *MemoryStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	primary := NewMemoryStore()
	return NewCachedStore(primary, rdb, 30*time.Second), primary, mr
}

func TestCachedStore_ReadThroughPopulatesCache(t *testing.T) {
	cs, primary, mr := newCachedEnv(t)
	seedCall(t, primary, "c1", model.StatusActive)

	c, err := cs.GetCall(context.Background(), "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ID != "c1" {
		t.Errorf("expected c1, got %s", c.ID)
	}
	if !mr.Exists("call:c1") {
		t.Error("expected call to be cached after read")
	}
}

func TestCachedStore_ServesFromCache(t *testing.T) {
	cs, primary, _ := newCachedEnv(t)
	seedCall(t, primary, "c1", model.StatusActive)

	if _, err := cs.GetCall(context.Background(), "c1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Remove from the primary; the cached copy still serves.
	delete(primary.calls, "c1")
	c, err := cs.GetCall(context.Background(), "c1")
	if err != nil {
		t.Fatalf("expected cache hit, got error: %v", err)
	}
	if c.ID != "c1" {
		t.Errorf("expected cached c1, got %s", c.ID)
	}
}

func TestCachedStore_UpdateInvalidates(t *testing.T) {
	cs, primary, mr := newCachedEnv(t)
	call := seedCall(t, primary, "c1", model.StatusActive)

	if _, err := cs.GetCall(context.Background(), "c1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	now := time.Now().UTC()
	call.Target1Hit = true
	call.Target1HitDate = &now
	call.Status = model.StatusTarget1Hit
	if err := cs.UpdateCallState(context.Background(), call); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if mr.Exists("call:c1") {
		t.Error("expected cache invalidation on update")
	}

	got, err := cs.GetCall(context.Background(), "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != model.StatusTarget1Hit {
		t.Errorf("expected fresh state after invalidation, got %s", got.Status)
	}
}

func TestCachedStore_PublishInvalidates(t *testing.T) {
	cs, primary, mr := newCachedEnv(t)
	seedCall(t, primary, "c1", model.StatusScheduled)

	if _, err := cs.GetCall(context.Background(), "c1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cs.PublishCall(context.Background(), "c1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mr.Exists("call:c1") {
		t.Error("expected cache invalidation on publish")
	}

	got, _ := cs.GetCall(context.Background(), "c1")
	if got.Status != model.StatusActive {
		t.Errorf("expected ACTIVE after publish, got %s", got.Status)
	}
}

func TestCachedStore_ListingsBypassCache(t *testing.T) {
	cs, primary, _ := newCachedEnv(t)
	seedCall(t, primary, "c1", model.StatusActive)

	open, err := cs.ListOpenCalls(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(open) != 1 {
		t.Errorf("expected 1 open call, got %d", len(open))
	}
}
