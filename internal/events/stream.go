// Package events implements the publish-subscribe stream shared by the
// circuit breaker and rate limiter cores.
//
// The source library this spec is derived from relies on a reactive-stream
// library for event publication; here that is modeled as a synchronous
// listener-list protected by a read-mostly lock, the alternative the spec
// names explicitly for a non-reactive reimplementation. Backpressure is the
// subscriber's responsibility: a slow or absent reader simply misses events
// past its channel's buffer, it never blocks the publisher.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind tags the variant of an Event.
type Kind int

const (
	// KindSuccess marks a recorded successful call.
	KindSuccess Kind = iota
	// KindError marks a recorded, recordable failure.
	KindError
	// KindIgnoredError marks a failure the predicate chose not to record.
	KindIgnoredError
	// KindStateTransition marks a circuit breaker state change.
	KindStateTransition
	// KindPermitAcquired marks a granted rate-limiter permit.
	KindPermitAcquired
	// KindPermitDenied marks a denied rate-limiter permit.
	KindPermitDenied
)

// String returns a human-readable name for the event kind.
func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindError:
		return "error"
	case KindIgnoredError:
		return "ignored_error"
	case KindStateTransition:
		return "state_transition"
	case KindPermitAcquired:
		return "permit_acquired"
	case KindPermitDenied:
		return "permit_denied"
	default:
		return "unknown"
	}
}

// Event is an immutable value describing one outcome or transition emitted
// by a core instance.
type Event struct {
	ID        string // uuid, lets subscribers dedupe/correlate
	Name      string // name of the emitting instance
	Kind      Kind
	CreatedAt time.Time

	// Cause is populated for KindError / KindIgnoredError.
	Cause error

	// FromState / ToState are populated for KindStateTransition. Typed as
	// `any` here so this package stays independent of the breaker's State
	// type; callers type-assert to their own state type.
	FromState any
	ToState   any
}

const subscriberBuffer = 64

// Stream is a hot (non-replaying) multi-subscriber broadcaster. The zero
// value is ready to use.
type Stream struct {
	mu          sync.RWMutex
	subscribers map[int]chan Event
	nextID      int
}

// Subscription is a handle returned by Subscribe. Call Unsubscribe to stop
// receiving events and release the underlying channel.
type Subscription struct {
	stream *Stream
	id     int
	C      <-chan Event
}

// Unsubscribe removes the subscription from the stream and closes its
// channel. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.stream.mu.Lock()
	defer s.stream.mu.Unlock()
	if ch, ok := s.stream.subscribers[s.id]; ok {
		delete(s.stream.subscribers, s.id)
		close(ch)
	}
}

// Subscribe registers a new subscriber. The returned subscription's channel
// receives every event published after this call; events published before
// subscribing are never replayed. The channel is buffered
// (subscriberBuffer); once a subscriber's buffer is full, newly published
// events are dropped for it (its oldest unread events are kept) rather
// than blocking Publish — backpressure is the subscriber's responsibility.
func (s *Stream) Subscribe() *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subscribers == nil {
		s.subscribers = make(map[int]chan Event)
	}
	id := s.nextID
	s.nextID++

	ch := make(chan Event, subscriberBuffer)
	s.subscribers[id] = ch

	return &Subscription{stream: s, id: id, C: ch}
}

// Publish stamps the event with an ID and timestamp (if unset) and delivers
// it to every current subscriber in a single publication order. A
// subscriber whose buffer is full has the event dropped for it rather than
// blocking this call or other subscribers.
func (s *Stream) Publish(evt Event) Event {
	if evt.ID == "" {
		evt.ID = uuid.New().String()
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = time.Now()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- evt:
		default:
			// subscriber fell behind; drop rather than block the publisher.
		}
	}
	return evt
}

// SubscriberCount returns the current number of live subscriptions. Useful
// for diagnostics/tests.
func (s *Stream) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}
