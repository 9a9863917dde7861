// Package store defines the persistence interface for the call engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/callpulse/call-engine/internal/model"
)

// ErrNotFound is returned when a call id does not exist.
var ErrNotFound = errors.New("store: call not found")

// ListFilter narrows ListCalls results. Zero values match everything.
type ListFilter struct {
	Status model.Status
	Symbol string
}

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer. Writes to a single call must
// be serialized by the implementation so concurrent poll cycles cannot lose
// flag or date updates.
type Store interface {
	// CreateCall persists a new trading call.
	CreateCall(ctx context.Context, call *model.TradingCall) error

	// GetCall retrieves a call by its ID.
	GetCall(ctx context.Context, id string) (*model.TradingCall, error)

	// ListCalls returns calls matching the filter, newest first.
	ListCalls(ctx context.Context, filter ListFilter) ([]model.TradingCall, error)

	// ListOpenCalls returns calls still subject to price polling: ACTIVE or
	// partially hit, excluding terminal and scheduled calls.
	ListOpenCalls(ctx context.Context) ([]model.TradingCall, error)

	// ListInconsistentCalls returns legacy records violating the
	// at-most-one-outcome invariant (stop-loss hit together with a target).
	ListInconsistentCalls(ctx context.Context) ([]model.TradingCall, error)

	// ListExpiryCandidates returns untouched ACTIVE swing calls issued
	// before the cutoff.
	ListExpiryCandidates(ctx context.Context, cutoff time.Time) ([]model.TradingCall, error)

	// UpdateCallState writes the evaluator-owned fields back: hit flags,
	// hit dates, status, current price, and last-checked.
	UpdateCallState(ctx context.Context, call *model.TradingCall) error

	// PublishCall flips a SCHEDULED call to ACTIVE.
	PublishCall(ctx context.Context, id string) error
}
