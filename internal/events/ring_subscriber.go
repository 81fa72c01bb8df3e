package events

import "sync"

// RingSubscriber is the bounded circular-buffer subscriber spec.md §4.6
// describes as provided "out-of-core": it drains a Stream's subscription in
// the background and retains only the most recent N events, overwriting
// the oldest once full. Useful for admin endpoints that want "show me the
// last 50 transitions" without unbounded memory growth.
type RingSubscriber struct {
	mu     sync.Mutex
	buf    []Event
	size   int
	cursor int
	count  int

	sub *Subscription
	done chan struct{}
}

// NewRingSubscriber subscribes to stream and begins retaining the most
// recent size events in the background. Call Close to stop.
func NewRingSubscriber(stream *Stream, size int) *RingSubscriber {
	if size < 1 {
		panic("events: RingSubscriber size must be >= 1")
	}
	r := &RingSubscriber{
		buf:  make([]Event, size),
		size: size,
		sub:  stream.Subscribe(),
		done: make(chan struct{}),
	}
	go r.drain()
	return r
}

func (r *RingSubscriber) drain() {
	for {
		select {
		case evt, ok := <-r.sub.C:
			if !ok {
				return
			}
			r.mu.Lock()
			r.buf[r.cursor] = evt
			r.cursor = (r.cursor + 1) % r.size
			if r.count < r.size {
				r.count++
			}
			r.mu.Unlock()
		case <-r.done:
			return
		}
	}
}

// Close stops the background drain and unsubscribes from the stream.
func (r *RingSubscriber) Close() {
	select {
	case <-r.done:
		return
	default:
		close(r.done)
	}
	r.sub.Unsubscribe()
}

// Snapshot returns the currently retained events, oldest first.
func (r *RingSubscriber) Snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Event, r.count)
	if r.count < r.size {
		copy(out, r.buf[:r.count])
		return out
	}
	// full: oldest is at r.cursor
	n := copy(out, r.buf[r.cursor:])
	copy(out[n:], r.buf[:r.cursor])
	return out
}
