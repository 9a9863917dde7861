package hitstate

import (
	"time"

	"github.com/callpulse/call-engine/internal/model"
)

// SwingExpiryAge is how long an untriggered SWING call stays ACTIVE before
// it is demoted to EXPIRED. LONG_TERM calls are exempt.
const SwingExpiryAge = 30 * 24 * time.Hour

// ExpireIfStale demotes a stale, never-triggered SWING call to the EXPIRED
// terminal state: trade type SWING, status ACTIVE, no hit flags, and a call
// date more than SwingExpiryAge before now. Everything else passes through
// unchanged (false). EXPIRED is terminal — the evaluator never transitions
// a call out of it.
func ExpireIfStale(call model.TradingCall, now time.Time) (model.TradingCall, bool) {
	if call.TradeType != model.TradeSwing {
		return call, false
	}
	if call.Status != model.StatusActive {
		return call, false
	}
	if call.AnyHit() {
		return call, false
	}
	if now.Sub(call.CallDate) <= SwingExpiryAge {
		return call, false
	}

	out := call
	out.Status = model.StatusExpired
	return out, true
}
