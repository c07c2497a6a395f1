// Package event implements the single-writer, many-listener output channel
// described in spec.md §4.8: progress, message, logging, content,
// completion, failure, and RAG events flow from an agent process to its
// subscribers. The Bus is a synchronous fan-out grounded directly on the
// teacher's runtime/agent/hooks.Bus.
package event

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// Kind identifies the category of a published Event.
type Kind string

const (
	// KindMessage carries an assistant or user chat message.
	KindMessage Kind = "message"
	// KindProgress carries a short, human-readable progress string.
	KindProgress Kind = "progress"
	// KindLogging carries a level + message pair for out-of-band logging.
	KindLogging Kind = "logging"
	// KindContent carries a typed object emitted mid-process.
	KindContent Kind = "content"
	// KindCompletion signals the process reached a terminal, successful state.
	KindCompletion Kind = "completion"
	// KindFailure signals the process reached a terminal, failed state.
	KindFailure Kind = "failure"
	// KindRAGRequest carries an opaque retrieval request (external collaborator boundary).
	KindRAGRequest Kind = "rag_request"
	// KindRAGResponse carries an opaque retrieval response (external collaborator boundary).
	KindRAGResponse Kind = "rag_response"
)

// Level is the severity associated with a KindLogging event.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Event is the sum type delivered to subscribers. Exactly the fields
// relevant to Kind are populated; the rest are zero.
type Event struct {
	Kind Kind
	// ProcessID identifies the emitting agent process.
	ProcessID string
	// Timestamp is when the event was produced.
	Timestamp time.Time

	// Message (KindMessage): role is "assistant" or "user".
	Role string
	Text string

	// Logging (KindLogging)
	Level Level

	// Content (KindContent)
	Content any

	// Failure (KindFailure)
	Reason string

	// RAG (KindRAGRequest / KindRAGResponse): opaque payloads the core never
	// interprets (see SPEC_FULL.md §9, Open Question 2).
	RAGPayload any
}

type (
	// Bus publishes process events to registered subscribers in a fan-out
	// pattern. The bus is thread-safe and supports concurrent Publish,
	// Register, and Close.
	//
	// Events are delivered synchronously in the publisher's goroutine.
	// Subscriber errors are never propagated to the publisher as a Go
	// error value; they are reported to onSubscriberErr, if set, and stop
	// delivery of that event to any subscriber registered after the
	// failing one.
	Bus interface {
		// Publish delivers event to every currently registered subscriber,
		// in registration order, stopping at the first subscriber error.
		Publish(ctx context.Context, evt Event)
		// Register adds a subscriber and returns a Subscription that can be
		// closed to unregister it.
		Register(sub Subscriber) (Subscription, error)
	}

	// Subscriber reacts to published events.
	Subscriber interface {
		HandleEvent(ctx context.Context, evt Event) error
	}

	// SubscriberFunc adapts a plain function to the Subscriber interface.
	SubscriberFunc func(ctx context.Context, evt Event) error

	// Subscription represents an active registration on a Bus.
	Subscription interface {
		Close() error
	}

	bus struct {
		mu               sync.RWMutex
		subscribers      map[*subscription]Subscriber
		nextSeq          uint64
		onSubscriberErr  func(sub Subscriber, evt Event, err error)
	}

	subscription struct {
		bus  *bus
		once sync.Once
		seq  uint64 // registration order
	}
)

// HandleEvent implements Subscriber.
func (f SubscriberFunc) HandleEvent(ctx context.Context, evt Event) error { return f(ctx, evt) }

// NewBus constructs a new in-memory event bus. onSubscriberErr, if
// non-nil, is invoked (not propagated) whenever a subscriber's HandleEvent
// returns an error, matching spec.md §7's "listener exceptions ... never
// affect process status."
func NewBus(onSubscriberErr func(sub Subscriber, evt Event, err error)) Bus {
	return &bus{
		subscribers:     make(map[*subscription]Subscriber),
		onSubscriberErr: onSubscriberErr,
	}
}

// Publish delivers evt to a stable snapshot of subscribers taken before
// iteration begins, so registration changes during Publish never affect
// the current delivery. Delivery stops at the first subscriber error: the
// failing subscriber is reported via onSubscriberErr, but subscribers
// registered after it in this snapshot do not see evt. Callers that need
// every subscriber to observe every event regardless of a sibling's
// failure (e.g. a process driver's internal listener) should register
// that listener first and make sure it never errors.
func (b *bus) Publish(ctx context.Context, evt Event) {
	b.mu.RLock()
	regs := make([]*subscription, 0, len(b.subscribers))
	for s := range b.subscribers {
		regs = append(regs, s)
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i].seq < regs[j].seq })
	subs := make([]Subscriber, 0, len(regs))
	for _, s := range regs {
		subs = append(subs, b.subscribers[s])
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		if err := sub.HandleEvent(ctx, evt); err != nil {
			if b.onSubscriberErr != nil {
				b.onSubscriberErr(sub, evt, err)
			}
			return
		}
	}
}

// Register adds sub to the bus and returns a Subscription to unregister
// it. Returns an error if sub is nil.
func (b *bus) Register(sub Subscriber) (Subscription, error) {
	if sub == nil {
		return nil, errors.New("event: subscriber is required")
	}
	s := &subscription{bus: b}
	b.mu.Lock()
	b.nextSeq++
	s.seq = b.nextSeq
	b.subscribers[s] = sub
	b.mu.Unlock()
	return s, nil
}

// Close unregisters the subscription. Idempotent and thread-safe.
func (s *subscription) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subscribers, s)
		s.bus.mu.Unlock()
	})
	return nil
}
