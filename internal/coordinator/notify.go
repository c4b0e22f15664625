package coordinator

import (
	"sync"
)

// Notifier tells subscribers that the cache may have changed.
//
// Each subscriber owns a one-slot signal channel drained by its own
// goroutine. Notify never blocks: if a subscriber has not yet consumed the
// previous signal the new one is coalesced into it. Subscribers are told
// "re-read", never handed a payload, so a coalesced signal loses nothing.
type Notifier struct {
	mu     sync.Mutex
	subs   map[uint64]*subscriber
	nextID uint64
	closed bool
}

type subscriber struct {
	signal chan struct{}
	done   chan struct{}
	once   sync.Once
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

// trySend delivers a signal without blocking.
func (s *subscriber) trySend() {
	select {
	case s.signal <- struct{}{}:
	default:
		// A signal is already pending.
	}
}

// NewNotifier creates a notifier with no subscribers.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[uint64]*subscriber)}
}

// Subscribe registers fn to run after every notification.
//
// fn runs on a goroutine dedicated to this subscriber, never concurrently
// with itself, and never on the notifying goroutine. A slow fn only delays
// its own later calls.
//
// Returns:
//   - func(): Unsubscribe; safe to call more than once
func (n *Notifier) Subscribe(fn func()) func() {
	sub := &subscriber{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return func() {}
	}
	id := n.nextID
	n.nextID++
	n.subs[id] = sub
	n.mu.Unlock()

	go func() {
		for {
			select {
			case <-sub.done:
				return
			case <-sub.signal:
				fn()
			}
		}
	}()

	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
		sub.stop()
	}
}

// Notify signals every subscriber. It never blocks and may be called
// redundantly.
func (n *Notifier) Notify() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, sub := range n.subs {
		sub.trySend()
	}
}

// Len returns the number of active subscribers.
func (n *Notifier) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}

// Close stops every subscriber goroutine. Later Subscribe calls are no-ops.
// A callback already running is allowed to finish.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.closed = true
	for id, sub := range n.subs {
		sub.stop()
		delete(n.subs, id)
	}
}
