package hitstate

import (
	"time"

	"github.com/callpulse/call-engine/internal/model"
)

// RepairInconsistent re-derives the canonical state of a legacy record that
// violates the at-most-one-outcome invariant (stop-loss hit together with a
// target hit). The earliest-dated hit event decides which side is real:
//
//   - Stop-loss first: the call is reclassified SL_HIT; all target flags and
//     target dates are cleared and the summary hit date becomes the
//     stop-loss date.
//   - Target first: the stop-loss flag and date are cleared and the call
//     reports the highest true target, summary date from that target.
//
// Runs only as a maintenance pass over persisted calls — never as part of
// normal evaluation, which cannot produce this state. Returns the input
// unchanged (false) for consistent records.
func RepairInconsistent(call model.TradingCall) (model.TradingCall, bool) {
	if call.Consistent() {
		return call, false
	}

	out := call
	if stopLossFirst(call.HitState) {
		out.Target1Hit = false
		out.Target2Hit = false
		out.Target3Hit = false
		out.Target1HitDate = nil
		out.Target2HitDate = nil
		out.Target3HitDate = nil
		out.Status = model.StatusSLHit
		out.HitDate = out.StopLossHitDate
	} else {
		out.StopLossHit = false
		out.StopLossHitDate = nil
		refreshOutcome(&out)
	}
	return out, true
}

// stopLossFirst reports whether the stop-loss is the earliest-dated event
// among the populated hit dates. Undated events cannot be ordered and lose:
// if the stop-loss carries no date the banked target progress is kept, and
// a date tie also resolves in favor of the targets.
func stopLossFirst(h model.HitState) bool {
	if h.StopLossHitDate == nil {
		return false
	}
	earliest := earliestTargetDate(h)
	if earliest == nil {
		return true
	}
	return h.StopLossHitDate.Before(*earliest)
}

func earliestTargetDate(h model.HitState) *time.Time {
	var earliest *time.Time
	for _, d := range []*time.Time{h.Target1HitDate, h.Target2HitDate, h.Target3HitDate} {
		if d == nil {
			continue
		}
		if earliest == nil || d.Before(*earliest) {
			earliest = d
		}
	}
	return earliest
}
