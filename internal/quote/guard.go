package quote

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidRange is returned when a quote's intraday extremes are
	// internally inconsistent (high below low, or last price outside them).
	ErrInvalidRange = errors.New("quote: inconsistent day range")

	// ErrSuspectQuote is returned when a price moved implausibly far from
	// the last stored price, suggesting a bad tick or a symbol mix-up.
	ErrSuspectQuote = errors.New("quote: implausible price move")
)

// Guard sanity-checks fetched quotes before they drive hit-state changes.
// A hit flag is permanent once set, so one glitched tick would otherwise
// corrupt a call's outcome for good. Suspect quotes are skipped for the
// cycle, the same way a fetch failure is.
type Guard struct {
	// MaxJumpRatio is the largest tolerated relative move between the last
	// stored price and the fresh quote, e.g. 0.5 = 50%.
	MaxJumpRatio decimal.Decimal
}

// NewGuard creates a guard with the given maximum jump ratio. A
// non-positive ratio falls back to 0.5.
func NewGuard(maxJumpRatio decimal.Decimal) *Guard {
	if !maxJumpRatio.IsPositive() {
		maxJumpRatio = decimal.NewFromFloat(0.5)
	}
	return &Guard{MaxJumpRatio: maxJumpRatio}
}

// Check validates a fresh quote against the call's last stored price.
// lastKnown may be zero (call never polled); the jump check is skipped then.
func (g *Guard) Check(lastKnown decimal.Decimal, q Quote) error {
	if !q.Price.IsPositive() {
		return ErrNoQuote
	}

	if q.DayHigh.IsPositive() || q.DayLow.IsPositive() {
		if !q.DayHigh.IsPositive() || !q.DayLow.IsPositive() {
			return ErrInvalidRange
		}
		if q.DayHigh.LessThan(q.DayLow) {
			return ErrInvalidRange
		}
		if q.Price.GreaterThan(q.DayHigh) || q.Price.LessThan(q.DayLow) {
			return ErrInvalidRange
		}
	}

	if lastKnown.IsPositive() {
		jump := q.Price.Sub(lastKnown).Abs().Div(lastKnown)
		if jump.GreaterThan(g.MaxJumpRatio) {
			return ErrSuspectQuote
		}
	}
	return nil
}
