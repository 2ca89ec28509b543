package events

import (
	"context"
	"sync"
	"sync/atomic"
)

// DefaultSubscriptionBuffer is the per-subscription channel capacity.
const DefaultSubscriptionBuffer = 256

// Subscription receives events from a Broadcaster. Events dropped because
// the buffer was full are counted rather than blocking the publisher; a
// consumer can compare Dropped between reads to detect that it lagged.
type Subscription struct {
	ch      chan Event
	dropped atomic.Uint64

	mu     sync.Mutex
	closed bool
}

func newSubscription(buffer int) *Subscription {
	return &Subscription{ch: make(chan Event, buffer)}
}

// Events returns the receive channel. It is closed when the subscription
// or the broadcaster is closed.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Dropped returns how many events have been dropped for this subscription
// because its buffer was full.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close closes the subscription. Idempotent.
func (s *Subscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		close(s.ch)
		s.closed = true
	}
	return nil
}

// send delivers without blocking; a full buffer counts as a drop.
func (s *Subscription) send(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- e:
	default:
		s.dropped.Add(1)
	}
}

// Broadcaster fans domain events out to any number of subscriptions.
// Publishing never blocks: slow consumers lose events instead of slowing
// the producer. Safe for concurrent use.
type Broadcaster struct {
	mu        sync.RWMutex
	subs      map[*Subscription]struct{}
	buffer    int
	closed    bool
	done      chan struct{}
	cleanupWg sync.WaitGroup
}

// NewBroadcaster creates a broadcaster whose subscriptions buffer up to
// buffer events each. A minimum of 1 is enforced so sends stay
// non-blocking.
func NewBroadcaster(buffer int) *Broadcaster {
	return &Broadcaster{
		subs:   make(map[*Subscription]struct{}),
		buffer: max(buffer, 1),
		done:   make(chan struct{}),
	}
}

// Subscribe registers a new subscription. It is cleaned up automatically
// when ctx is cancelled. Subscribing on a closed broadcaster returns an
// already-closed subscription.
func (b *Broadcaster) Subscribe(ctx context.Context) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := newSubscription(b.buffer)
	if b.closed {
		_ = sub.Close()
		return sub
	}
	b.subs[sub] = struct{}{}

	if ctx.Done() != nil {
		b.cleanupWg.Add(1)
		go func() {
			defer b.cleanupWg.Done()
			select {
			case <-ctx.Done():
				b.unsubscribe(sub)
			case <-b.done:
			}
		}()
	}
	return sub
}

// Publish sends the event to every subscription, dropping it for any
// whose buffer is full.
func (b *Broadcaster) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for sub := range b.subs {
		sub.send(e)
	}
}

// Close shuts the broadcaster down and closes all subscriptions.
// Idempotent.
func (b *Broadcaster) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.done)
	for sub := range b.subs {
		_ = sub.Close()
	}
	clear(b.subs)
	b.mu.Unlock()

	b.cleanupWg.Wait()
	return nil
}

func (b *Broadcaster) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, sub)
	_ = sub.Close()
}
