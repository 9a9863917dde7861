// Package hitstate implements the hit-state evaluator for trading calls:
// the decision logic that classifies a call's outcome (target 1/2/3 hit,
// stop-loss hit, still active) from a stream of polled price observations.
//
// Two evaluation modes share one state machine:
//   - EvaluateLastPrice uses only the last trade price (ad-hoc checks).
//   - EvaluateRange uses intraday day-high/day-low extremes (scheduled
//     polling) and resolves the same-session race where both a target and
//     the stop-loss appear breached within one polling window.
//
// Hit flags are monotonic (once true, never cleared by evaluation), hit
// timestamps are set-once, and a call can never hold both a target hit and
// a stop-loss hit. All functions are pure: they take a call snapshot and
// return a replacement record, never mutating the input.
//
// All price comparisons use shopspring/decimal — never float64 for money.
package hitstate

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/callpulse/call-engine/internal/model"
)

var (
	// ErrInvalidLevels is returned when a call record carries non-monotonic
	// target levels or a missing/ill-placed stop-loss. The evaluator refuses
	// to classify such a call rather than produce a nonsensical status.
	ErrInvalidLevels = errors.New("hitstate: invalid call levels")

	// ErrMissingRange is returned when EvaluateRange receives an observation
	// without day-high/day-low extremes.
	ErrMissingRange = errors.New("hitstate: observation has no day range")
)

// ValidateLevels checks the structural invariants of a call's price levels:
// all positive, stop-loss below entry, targets strictly ascending.
func ValidateLevels(l model.Levels) error {
	if !l.StopLoss.IsPositive() {
		return fmt.Errorf("%w: stop-loss missing or non-positive", ErrInvalidLevels)
	}
	if !l.EntryPrice.IsPositive() {
		return fmt.Errorf("%w: entry price missing or non-positive", ErrInvalidLevels)
	}
	if !l.Target1.IsPositive() || !l.Target2.IsPositive() {
		return fmt.Errorf("%w: targets missing or non-positive", ErrInvalidLevels)
	}
	if l.StopLoss.GreaterThanOrEqual(l.EntryPrice) {
		return fmt.Errorf("%w: stop-loss %s must sit below entry %s",
			ErrInvalidLevels, l.StopLoss, l.EntryPrice)
	}
	if l.Target1.GreaterThanOrEqual(l.Target2) {
		return fmt.Errorf("%w: target1 %s must be below target2 %s",
			ErrInvalidLevels, l.Target1, l.Target2)
	}
	if l.HasTarget3() && l.Target2.GreaterThanOrEqual(l.Target3) {
		return fmt.Errorf("%w: target2 %s must be below target3 %s",
			ErrInvalidLevels, l.Target2, l.Target3)
	}
	return nil
}

// EvaluateLastPrice classifies a call against a single last-trade price
// (Mode A). Levels are checked in descending order; the stop-loss branch
// fires only while no target has ever been hit, so a call that banked
// progress can never be retroactively stopped out. The returned record has
// CurrentPrice and LastChecked refreshed regardless of which branch fires.
//
// EXPIRED calls are terminal and pass through untouched. Calls already
// stopped out get only the price refresh.
func EvaluateLastPrice(call model.TradingCall, obs model.PriceObservation, now time.Time) (model.TradingCall, error) {
	if call.Status == model.StatusExpired {
		return call, nil
	}
	if err := ValidateLevels(call.Levels); err != nil {
		return call, err
	}

	out := call
	observe(&out, obs, now)

	if call.StopLossHit {
		return out, nil
	}

	if lvl := highestQualifying(call.Levels, obs.Price); lvl > 0 {
		markTargets(&out, lvl, now)
		refreshOutcome(&out)
		return out, nil
	}

	if !call.AnyTargetHit() && obs.Price.LessThanOrEqual(call.StopLoss) {
		markStopLoss(&out, now)
		refreshOutcome(&out)
	}
	return out, nil
}

// EvaluateRange classifies a call against intraday extremes (Mode B).
//
// For a call with no prior hits, both dayHigh ≥ target1 and dayLow ≤
// stop-loss can hold within one polling window — a genuine ambiguity about
// intraday order. The tie-break assumes the extreme closer to the current
// price happened most recently, so the farther extreme is deemed to have
// occurred first and wins. This is a best-effort heuristic, not a
// reconstruction of tick order. Equal distances resolve to the stop-loss.
//
// For a call with prior target hits, the stop-loss is no longer evaluated;
// only not-yet-hit higher targets are checked against dayHigh. A higher
// target may fire without the one below having been separately observed —
// both flags are then set together, dates defaulting to now.
func EvaluateRange(call model.TradingCall, obs model.PriceObservation, now time.Time) (model.TradingCall, error) {
	if call.Status == model.StatusExpired {
		return call, nil
	}
	if err := ValidateLevels(call.Levels); err != nil {
		return call, err
	}
	if !obs.HasRange() {
		return call, ErrMissingRange
	}

	out := call
	observe(&out, obs, now)

	if call.StopLossHit {
		return out, nil
	}

	if call.AnyTargetHit() {
		if lvl := highestQualifying(call.Levels, obs.DayHigh); lvl > 0 {
			markTargets(&out, lvl, now)
			refreshOutcome(&out)
		}
		return out, nil
	}

	targetBreached := obs.DayHigh.GreaterThanOrEqual(call.Target1)
	stopBreached := obs.DayLow.LessThanOrEqual(call.StopLoss)

	switch {
	case targetBreached && stopBreached:
		distHigh := obs.Price.Sub(obs.DayHigh).Abs()
		distLow := obs.Price.Sub(obs.DayLow).Abs()
		if distHigh.GreaterThan(distLow) {
			// High is the farther extreme → it came first → target wins.
			markTargets(&out, highestQualifying(call.Levels, obs.DayHigh), now)
		} else {
			markStopLoss(&out, now)
		}
		refreshOutcome(&out)

	case targetBreached:
		markTargets(&out, highestQualifying(call.Levels, obs.DayHigh), now)
		refreshOutcome(&out)

	case stopBreached:
		markStopLoss(&out, now)
		refreshOutcome(&out)
	}
	return out, nil
}

// observe refreshes the observed fields updated on every evaluation.
func observe(c *model.TradingCall, obs model.PriceObservation, now time.Time) {
	c.CurrentPrice = obs.Price
	t := now
	c.LastChecked = &t
}

// highestQualifying returns the highest target level the given price
// reaches, in descending order: 3, 2, 1, or 0 for none.
func highestQualifying(l model.Levels, price decimal.Decimal) int {
	switch {
	case l.HasTarget3() && price.GreaterThanOrEqual(l.Target3):
		return 3
	case price.GreaterThanOrEqual(l.Target2):
		return 2
	case price.GreaterThanOrEqual(l.Target1):
		return 1
	default:
		return 0
	}
}

// markTargets sets target flags 1..lvl true. Each hit date is set-once:
// an already-populated date is never overwritten.
func markTargets(c *model.TradingCall, lvl int, now time.Time) {
	if lvl >= 1 {
		c.Target1Hit = true
		c.Target1HitDate = setOnce(c.Target1HitDate, now)
	}
	if lvl >= 2 {
		c.Target2Hit = true
		c.Target2HitDate = setOnce(c.Target2HitDate, now)
	}
	if lvl >= 3 {
		c.Target3Hit = true
		c.Target3HitDate = setOnce(c.Target3HitDate, now)
	}
}

// markStopLoss records the stop-loss hit. Callers must have established
// that no target flag is set.
func markStopLoss(c *model.TradingCall, now time.Time) {
	c.StopLossHit = true
	c.StopLossHitDate = setOnce(c.StopLossHitDate, now)
}

// refreshOutcome re-derives status and the summary hit date from the flags:
// always the highest-ranked outcome that is true. With no flags set the
// prior status stands (a previously-hit call never regresses to ACTIVE).
func refreshOutcome(c *model.TradingCall) {
	switch {
	case c.Target3Hit:
		c.Status = model.StatusTarget3Hit
		c.HitDate = c.Target3HitDate
	case c.Target2Hit:
		c.Status = model.StatusTarget2Hit
		c.HitDate = c.Target2HitDate
	case c.Target1Hit:
		c.Status = model.StatusTarget1Hit
		c.HitDate = c.Target1HitDate
	case c.StopLossHit:
		c.Status = model.StatusSLHit
		c.HitDate = c.StopLossHitDate
	}
}

// setOnce returns the existing timestamp if populated, otherwise now.
func setOnce(existing *time.Time, now time.Time) *time.Time {
	if existing != nil {
		return existing
	}
	t := now
	return &t
}
