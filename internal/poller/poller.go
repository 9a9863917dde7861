// Package poller drives the periodic evaluation loop: fetch a quote for
// every open call, run it through the hit-state evaluator, and persist the
// result. It also hosts the maintenance passes (consistency repair and
// swing expiry) that share the same store plumbing.
//
// One bad symbol never aborts a cycle. Fetch failures and rejected quotes
// are counted, logged, and skipped; the rest of the batch proceeds.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/callpulse/call-engine/internal/hitstate"
	"github.com/callpulse/call-engine/internal/metrics"
	"github.com/callpulse/call-engine/internal/model"
	"github.com/callpulse/call-engine/internal/quote"
	"github.com/callpulse/call-engine/internal/store"
)

// Notifier receives call state changes for fan-out to connected clients.
// Pass nil if broadcasting is not needed.
type Notifier interface {
	NotifyStateChange(call model.TradingCall, previous model.Status)
}

// CycleSummary reports what one poll cycle did.
type CycleSummary struct {
	Checked  int      `json:"checked"`
	Updated  int      `json:"updated"`
	Skipped  int      `json:"skipped"`
	Failed   int      `json:"failed"`
	Warnings []string `json:"warnings,omitempty"`
}

// Poller evaluates open calls against fresh quotes on a fixed interval.
type Poller struct {
	store    store.Store
	quotes   quote.Provider
	guard    *quote.Guard
	notifier Notifier
	interval time.Duration
}

// New creates a poller. A non-positive interval falls back to one minute.
func New(st store.Store, quotes quote.Provider, guard *quote.Guard, notifier Notifier, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Poller{
		store:    st,
		quotes:   quotes,
		guard:    guard,
		notifier: notifier,
		interval: interval,
	}
}

// Start runs poll cycles until the context is cancelled. Must be called in
// a goroutine.
func (p *Poller) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	slog.Info("poller started", "interval", p.interval.String())
	for {
		select {
		case <-ctx.Done():
			slog.Info("poller stopped")
			return
		case <-ticker.C:
			summary, err := p.RunCycle(ctx)
			if err != nil {
				slog.Error("poll cycle failed", "err", err)
				continue
			}
			slog.Info("poll cycle complete",
				"checked", summary.Checked,
				"updated", summary.Updated,
				"skipped", summary.Skipped,
				"failed", summary.Failed,
			)
		}
	}
}

// RunCycle evaluates every open call once. Returns an error only when the
// open-call listing itself fails; per-call problems land in the summary.
func (p *Poller) RunCycle(ctx context.Context) (CycleSummary, error) {
	start := time.Now()
	defer func() {
		metrics.PollCycleDuration.Observe(time.Since(start).Seconds())
	}()

	open, err := p.store.ListOpenCalls(ctx)
	if err != nil {
		return CycleSummary{}, err
	}
	metrics.OpenCalls.Set(float64(len(open)))

	var summary CycleSummary
	for i := range open {
		call := open[i]
		summary.Checked++

		q, err := p.quotes.Fetch(ctx, call.Symbol)
		if err != nil {
			summary.Failed++
			summary.Warnings = append(summary.Warnings, call.Symbol+": "+err.Error())
			metrics.QuoteFailuresTotal.WithLabelValues("fetch").Inc()
			slog.Warn("quote fetch failed", "call_id", call.ID, "symbol", call.Symbol, "err", err)
			continue
		}

		if err := p.guard.Check(call.CurrentPrice, q); err != nil {
			summary.Skipped++
			summary.Warnings = append(summary.Warnings, call.Symbol+": "+err.Error())
			metrics.QuoteFailuresTotal.WithLabelValues(guardReason(err)).Inc()
			slog.Warn("quote rejected", "call_id", call.ID, "symbol", call.Symbol, "err", err)
			continue
		}

		updated, err := p.evaluate(call, q.Observation(), time.Now().UTC())
		if err != nil {
			summary.Failed++
			summary.Warnings = append(summary.Warnings, call.ID+": "+err.Error())
			slog.Error("evaluation failed", "call_id", call.ID, "err", err)
			continue
		}

		if err := p.store.UpdateCallState(ctx, &updated); err != nil {
			summary.Failed++
			summary.Warnings = append(summary.Warnings, call.ID+": "+err.Error())
			slog.Error("state update failed", "call_id", call.ID, "err", err)
			continue
		}

		recordHits(call.HitState, updated.HitState)
		if updated.Status != call.Status {
			summary.Updated++
			slog.Info("call state changed",
				"call_id", call.ID,
				"symbol", call.Symbol,
				"from", call.Status,
				"to", updated.Status,
				"price", updated.CurrentPrice.String(),
			)
			p.notify(updated, call.Status)
		}
	}
	return summary, nil
}

// evaluate dispatches on observation shape: day range when the source
// supplies one, last price otherwise.
func (p *Poller) evaluate(call model.TradingCall, obs model.PriceObservation, now time.Time) (model.TradingCall, error) {
	if obs.HasRange() {
		metrics.EvaluationsTotal.WithLabelValues("day_range").Inc()
		return hitstate.EvaluateRange(call, obs, now)
	}
	metrics.EvaluationsTotal.WithLabelValues("last_price").Inc()
	return hitstate.EvaluateLastPrice(call, obs, now)
}

// RunRepair rewrites every stored call violating the at-most-one-outcome
// invariant. Returns the number of calls fixed.
func (p *Poller) RunRepair(ctx context.Context) (int, error) {
	broken, err := p.store.ListInconsistentCalls(ctx)
	if err != nil {
		return 0, err
	}

	repaired := 0
	for i := range broken {
		fixed, changed := hitstate.RepairInconsistent(broken[i])
		if !changed {
			continue
		}
		if err := p.store.UpdateCallState(ctx, &fixed); err != nil {
			slog.Error("repair update failed", "call_id", fixed.ID, "err", err)
			continue
		}
		repaired++
		metrics.RepairsTotal.Inc()
		slog.Info("call repaired",
			"call_id", fixed.ID,
			"symbol", fixed.Symbol,
			"from", broken[i].Status,
			"to", fixed.Status,
		)
		p.notify(fixed, broken[i].Status)
	}
	return repaired, nil
}

// RunExpiry ages out untouched swing calls older than the expiry window.
// Returns the number of calls expired.
func (p *Poller) RunExpiry(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-hitstate.SwingExpiryAge)
	candidates, err := p.store.ListExpiryCandidates(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range candidates {
		aged, changed := hitstate.ExpireIfStale(candidates[i], now)
		if !changed {
			continue
		}
		if err := p.store.UpdateCallState(ctx, &aged); err != nil {
			slog.Error("expiry update failed", "call_id", aged.ID, "err", err)
			continue
		}
		expired++
		metrics.ExpiriesTotal.Inc()
		slog.Info("call expired", "call_id", aged.ID, "symbol", aged.Symbol, "call_date", aged.CallDate)
		p.notify(aged, candidates[i].Status)
	}
	return expired, nil
}

func (p *Poller) notify(call model.TradingCall, previous model.Status) {
	if p.notifier != nil {
		p.notifier.NotifyStateChange(call, previous)
	}
}

// recordHits bumps hit counters for flags that flipped this evaluation.
func recordHits(before, after model.HitState) {
	if after.Target1Hit && !before.Target1Hit {
		metrics.TargetHitsTotal.WithLabelValues("1").Inc()
	}
	if after.Target2Hit && !before.Target2Hit {
		metrics.TargetHitsTotal.WithLabelValues("2").Inc()
	}
	if after.Target3Hit && !before.Target3Hit {
		metrics.TargetHitsTotal.WithLabelValues("3").Inc()
	}
	if after.StopLossHit && !before.StopLossHit {
		metrics.StopLossHitsTotal.Inc()
	}
}

func guardReason(err error) string {
	switch {
	case errors.Is(err, quote.ErrInvalidRange):
		return "invalid_range"
	case errors.Is(err, quote.ErrSuspectQuote):
		return "suspect"
	default:
		return "no_quote"
	}
}
