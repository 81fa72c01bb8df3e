package breaker

// Metrics is the read-only view over a CircuitBreaker's current state and
// buffered statistics (C3), sourced directly from the live ring buffer.
type Metrics struct {
	State State

	// FailureRate is the percentage of failed calls in the current
	// buffer, or -1 if the buffer has not yet filled (see
	// internal/ringbuffer's sentinel convention).
	FailureRate float64

	NumberOfBufferedCalls    int
	NumberOfFailedCalls      int
	NumberOfSuccessfulCalls  int
	MaxNumberOfBufferedCalls int
}

// Metrics returns a snapshot of the breaker's buffered statistics. Safe to
// call concurrently with IsCallPermitted/OnSuccess/OnError; the buffer
// observed may be replaced by a concurrent state transition immediately
// after this call returns.
func (cb *CircuitBreaker) Metrics() Metrics {
	cur := cb.snap.Load()
	if cur.buffer == nil {
		// Open: no live buffer. Report the shape with zeroed statistics.
		return Metrics{State: cur.state, FailureRate: -1}
	}
	return Metrics{
		State:                    cur.state,
		FailureRate:              cur.buffer.FailureRate(),
		NumberOfBufferedCalls:    cur.buffer.NumberOfRecordedCalls(),
		NumberOfFailedCalls:      cur.buffer.NumberOfFailedCalls(),
		NumberOfSuccessfulCalls:  cur.buffer.NumberOfSuccessfulCalls(),
		MaxNumberOfBufferedCalls: cur.buffer.Size(),
	}
}
