package breaker

import "time"

// Diagnostics combines the current metrics with forward-looking
// predictions useful for incident response and proactive alerting.
type Diagnostics struct {
	Name    string
	Metrics Metrics

	// WillTripNext predicts whether recording one more failure right now
	// would cross the threshold. Only meaningful in Closed/HalfOpen
	// (always false while Open, since no live buffer is being recorded
	// into).
	WillTripNext bool

	// TimeUntilHalfOpen is the remaining wait before an Open breaker
	// becomes eligible to probe. Zero outside the Open state.
	TimeUntilHalfOpen time.Duration
}

// Diagnostics returns a diagnostic snapshot of the breaker.
func (cb *CircuitBreaker) Diagnostics() Diagnostics {
	cur := cb.snap.Load()
	metrics := cb.Metrics()

	var willTripNext bool
	if cur.buffer != nil {
		willTripNext = cur.buffer.WouldTripIfFailed(cb.cfg.FailureRateThreshold)
	}

	var timeUntilHalfOpen time.Duration
	if cur.state == StateOpen {
		if remaining := time.Until(time.Unix(0, cur.deadline)); remaining > 0 {
			timeUntilHalfOpen = remaining
		}
	}

	return Diagnostics{
		Name:              cb.name,
		Metrics:           metrics,
		WillTripNext:      willTripNext,
		TimeUntilHalfOpen: timeUntilHalfOpen,
	}
}
