// Package model defines the core domain types shared across the call engine.
// All price levels use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the derived outcome of a trading call. It is a closed set:
// always the highest-ranked outcome consistent with the hit flags.
type Status string

const (
	// StatusScheduled marks a future-dated call not yet open for polling.
	StatusScheduled Status = "SCHEDULED"

	// StatusActive marks a live call with no outcome yet.
	StatusActive Status = "ACTIVE"

	StatusTarget1Hit Status = "TARGET1_HIT"
	StatusTarget2Hit Status = "TARGET2_HIT"
	StatusTarget3Hit Status = "TARGET3_HIT"

	// StatusSLHit marks a call stopped out. Terminal.
	StatusSLHit Status = "SL_HIT"

	// StatusExpired marks a stale SWING call that never triggered. Terminal.
	StatusExpired Status = "EXPIRED"
)

// Rank orders hit outcomes; the higher rank wins when several levels appear
// breached within one observation. Non-outcome statuses rank below all hits.
func (s Status) Rank() int {
	switch s {
	case StatusTarget3Hit:
		return 3
	case StatusTarget2Hit:
		return 2
	case StatusTarget1Hit:
		return 1
	case StatusSLHit:
		return 0
	default:
		return -1
	}
}

// Terminal reports whether a call in this status is done being evaluated.
func (s Status) Terminal() bool {
	return s == StatusSLHit || s == StatusTarget3Hit || s == StatusExpired
}

// TradeType distinguishes swing calls (subject to 30-day expiry) from
// long-term calls (exempt).
type TradeType string

const (
	TradeSwing    TradeType = "SWING"
	TradeLongTerm TradeType = "LONG_TERM"
)

// Levels holds a call's price levels. Immutable once the call is created.
// Targets ascend: target1 < target2 < target3; stop-loss sits below entry.
// Target3 is optional — zero means the call has only two targets.
type Levels struct {
	EntryPrice decimal.Decimal `json:"entry_price" db:"entry_price"`
	Target1    decimal.Decimal `json:"target1" db:"target1"`
	Target2    decimal.Decimal `json:"target2" db:"target2"`
	Target3    decimal.Decimal `json:"target3" db:"target3"`
	StopLoss   decimal.Decimal `json:"stop_loss" db:"stop_loss"`
}

// HasTarget3 reports whether the optional third target is set.
func (l Levels) HasTarget3() bool {
	return l.Target3.IsPositive()
}

// HitState holds the monotonic hit flags and their set-once timestamps.
// A flag, once true, is never reset by evaluation; a date, once set, is
// never overwritten. HitDate summarizes the currently-reported outcome.
type HitState struct {
	Target1Hit  bool `json:"target1_hit" db:"target1_hit"`
	Target2Hit  bool `json:"target2_hit" db:"target2_hit"`
	Target3Hit  bool `json:"target3_hit" db:"target3_hit"`
	StopLossHit bool `json:"stop_loss_hit" db:"stop_loss_hit"`

	Target1HitDate  *time.Time `json:"target1_hit_date,omitempty" db:"target1_hit_date"`
	Target2HitDate  *time.Time `json:"target2_hit_date,omitempty" db:"target2_hit_date"`
	Target3HitDate  *time.Time `json:"target3_hit_date,omitempty" db:"target3_hit_date"`
	StopLossHitDate *time.Time `json:"stop_loss_hit_date,omitempty" db:"stop_loss_hit_date"`

	HitDate *time.Time `json:"hit_date,omitempty" db:"hit_date"`
}

// AnyTargetHit reports whether any profit target has been reached.
func (h HitState) AnyTargetHit() bool {
	return h.Target1Hit || h.Target2Hit || h.Target3Hit
}

// AnyHit reports whether any outcome (target or stop-loss) has been recorded.
func (h HitState) AnyHit() bool {
	return h.AnyTargetHit() || h.StopLossHit
}

// Consistent reports whether the at-most-one-outcome invariant holds: a call
// cannot both succeed (target hit) and fail (stop-loss hit). Legacy records
// may violate this; new writes must not.
func (h HitState) Consistent() bool {
	return !(h.StopLossHit && h.AnyTargetHit())
}

// TradingCall is the central entity: a published trade idea with entry,
// targets, stop-loss, and the evolving hit-state driven by price polling.
type TradingCall struct {
	ID        string    `json:"id" db:"id"`
	Symbol    string    `json:"symbol" db:"symbol"`
	TradeType TradeType `json:"trade_type" db:"trade_type"`
	CallDate  time.Time `json:"call_date" db:"call_date"`

	Levels
	HitState

	// CurrentPrice is the last polled price; zero until the first poll.
	CurrentPrice decimal.Decimal `json:"current_price" db:"current_price"`
	LastChecked  *time.Time      `json:"last_checked,omitempty" db:"last_checked"`

	Status    Status    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// PriceObservation is one quote sample consumed by a single evaluation and
// then discarded. DayHigh/DayLow are zero when the source only supplies the
// last trade price.
type PriceObservation struct {
	Price      decimal.Decimal `json:"price"`
	DayHigh    decimal.Decimal `json:"day_high"`
	DayLow     decimal.Decimal `json:"day_low"`
	ObservedAt time.Time       `json:"observed_at"`
}

// HasRange reports whether the observation carries intraday extremes.
func (o PriceObservation) HasRange() bool {
	return o.DayHigh.IsPositive() && o.DayLow.IsPositive()
}
