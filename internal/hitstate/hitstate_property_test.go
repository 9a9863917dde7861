package hitstate

import (
	"sort"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/callpulse/call-engine/internal/model"
)

// statusMatchesFlags checks rank consistency: the status must name the
// highest-ranked true flag, or stay ACTIVE with no flags set.
func statusMatchesFlags(c model.TradingCall) bool {
	switch {
	case c.Target3Hit:
		return c.Status == model.StatusTarget3Hit
	case c.Target2Hit:
		return c.Status == model.StatusTarget2Hit
	case c.Target1Hit:
		return c.Status == model.StatusTarget1Hit
	case c.StopLossHit:
		return c.Status == model.StatusSLHit
	default:
		return c.Status == model.StatusActive
	}
}

// flagsRegressed reports whether any flag that was true went false.
func flagsRegressed(before, after model.HitState) bool {
	return (before.Target1Hit && !after.Target1Hit) ||
		(before.Target2Hit && !after.Target2Hit) ||
		(before.Target3Hit && !after.Target3Hit) ||
		(before.StopLossHit && !after.StopLossHit)
}

func TestProperty_LastPriceSequences(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	pricesGen := gen.SliceOfN(12, gen.Float64Range(50, 180))

	properties.Property("flags stay monotonic, invariant and rank consistency hold", prop.ForAll(
		func(prices []float64) bool {
			call := newCall()
			now := pollTime
			for _, p := range prices {
				before := call.HitState
				out, err := EvaluateLastPrice(call, model.PriceObservation{Price: d(p), ObservedAt: now}, now)
				if err != nil {
					return false
				}
				if flagsRegressed(before, out.HitState) {
					return false
				}
				if !out.Consistent() {
					return false
				}
				if !statusMatchesFlags(out) {
					return false
				}
				call = out
				now = now.Add(time.Hour)
			}
			return true
		},
		pricesGen,
	))

	properties.Property("hit dates are set-once across any sequence", prop.ForAll(
		func(prices []float64) bool {
			call := newCall()
			now := pollTime
			var firstT1 *time.Time
			for _, p := range prices {
				out, err := EvaluateLastPrice(call, model.PriceObservation{Price: d(p), ObservedAt: now}, now)
				if err != nil {
					return false
				}
				if firstT1 == nil && out.Target1HitDate != nil {
					firstT1 = out.Target1HitDate
				}
				if firstT1 != nil && !out.Target1HitDate.Equal(*firstT1) {
					return false
				}
				call = out
				now = now.Add(time.Hour)
			}
			return true
		},
		pricesGen,
	))

	properties.TestingRun(t)
}

func TestProperty_RangeSequences(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	// Triples sorted into low ≤ price ≤ high form one day's observation.
	obsGen := gen.SliceOfN(3, gen.Float64Range(50, 180)).Map(func(vs []float64) model.PriceObservation {
		sort.Float64s(vs)
		return model.PriceObservation{
			Price:   d(vs[1]),
			DayHigh: d(vs[2]),
			DayLow:  d(vs[0]),
		}
	})
	daysGen := gen.SliceOfN(8, obsGen)

	properties.Property("range evaluation preserves monotonicity and the invariant", prop.ForAll(
		func(days []model.PriceObservation) bool {
			call := newCall()
			now := pollTime
			for _, obs := range days {
				before := call.HitState
				obs.ObservedAt = now
				out, err := EvaluateRange(call, obs, now)
				if err != nil {
					return false
				}
				if flagsRegressed(before, out.HitState) {
					return false
				}
				if !out.Consistent() {
					return false
				}
				if !statusMatchesFlags(out) {
					return false
				}
				call = out
				now = now.Add(24 * time.Hour)
			}
			return true
		},
		daysGen,
	))

	properties.TestingRun(t)
}
