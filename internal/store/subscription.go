package store

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
)

// Snapshot is one full result set of a live query. Versions increase with
// every committed change the store observes.
type Snapshot[T any] struct {
	Version uint64
	Data    T
}

// Subscription delivers the latest snapshot of a live query. Only the newest
// pending snapshot is kept: a slow reader skips intermediate states but never
// sees an older one after a newer one.
type Subscription[T any] struct {
	ch     chan Snapshot[T]
	mu     sync.Mutex
	last   uint64
	closed bool
	err    error
	stop   func()
	done   chan struct{}
}

// NewSubscription creates an open subscription. Backends feed it with
// Publish and end it with Fail or Close.
func NewSubscription[T any]() *Subscription[T] {
	return &Subscription[T]{
		ch:   make(chan Snapshot[T], 1),
		done: make(chan struct{}),
	}
}

// C returns the snapshot channel. It is closed when the subscription ends.
func (s *Subscription[T]) C() <-chan Snapshot[T] {
	return s.ch
}

// Done is closed when the subscription ends.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

// Err reports why the subscription ended, nil while it is live or after a
// plain Close.
func (s *Subscription[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Publish replaces any undelivered snapshot with snap. Snapshots not newer
// than the last published one are dropped.
func (s *Subscription[T]) Publish(snap Snapshot[T]) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || snap.Version <= s.last {
		return false
	}
	select {
	case <-s.ch:
	default:
	}
	s.ch <- snap
	s.last = snap.Version
	return true
}

// Close ends the subscription and releases its resources.
func (s *Subscription[T]) Close() {
	s.Fail(nil)
}

// Fail ends the subscription with err.
func (s *Subscription[T]) Fail(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.err = err
	stop := s.stop
	close(s.ch)
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	close(s.done)
}

// OnClose registers stop to run once when the subscription ends.
func (s *Subscription[T]) OnClose(stop func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stop = stop
}

// Gate admits snapshots in version order and rejects stale ones. Readers that
// merge several feeds use it to render only the latest state.
type Gate struct {
	last atomic.Uint64
}

// Admit reports whether version is newer than every version admitted so far.
func (g *Gate) Admit(version uint64) bool {
	for {
		last := g.last.Load()
		if version <= last {
			return false
		}
		if g.last.CompareAndSwap(last, version) {
			return true
		}
	}
}

type topic int

const (
	topicMenu topic = iota
	topicOrders
)

// hub fans committed changes out to live queries.
type hub struct {
	mu       sync.Mutex
	nextID   int
	watchers map[int]watcher
	version  atomic.Uint64
}

type watcher struct {
	topic   topic
	refresh func(version uint64)
	fail    func(err error)
}

func newHub() *hub {
	return &hub{watchers: make(map[int]watcher)}
}

// watch registers refresh for t and returns the function that removes it.
func (h *hub) watch(t topic, refresh func(version uint64), fail func(err error)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.watchers[id] = watcher{topic: t, refresh: refresh, fail: fail}
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.watchers, id)
	}
}

// tick returns a fresh version number.
func (h *hub) tick() uint64 {
	return h.version.Add(1)
}

// notify refreshes every watcher of t. It must be called after the change
// committed so the refresh reads it.
func (h *hub) notify(t topic) {
	version := h.tick()

	h.mu.Lock()
	targets := make([]watcher, 0, len(h.watchers))
	for _, w := range h.watchers {
		if w.topic == t {
			targets = append(targets, w)
		}
	}
	h.mu.Unlock()

	for _, w := range targets {
		w.refresh(version)
	}
}

// close ends every live query with ErrSubscriptionClosed.
func (h *hub) close() {
	h.mu.Lock()
	targets := make([]watcher, 0, len(h.watchers))
	for _, w := range h.watchers {
		targets = append(targets, w)
	}
	h.mu.Unlock()

	for _, w := range targets {
		w.fail(ErrSubscriptionClosed)
	}
}

// liveQuery runs load now and again after every change to t, publishing each
// result. A failed load is logged and retried on the next change. The
// subscription ends when ctx is done.
func liveQuery[T any](ctx context.Context, h *hub, t topic, load func() (T, error)) (*Subscription[T], error) {
	sub := NewSubscription[T]()
	refresh := func(version uint64) {
		data, err := load()
		if err != nil {
			log.Printf("live query refresh failed: %v", err)
			return
		}
		sub.Publish(Snapshot[T]{Version: version, Data: data})
	}
	sub.OnClose(h.watch(t, refresh, sub.Fail))

	version := h.tick()
	data, err := load()
	if err != nil {
		sub.Close()
		return nil, err
	}
	sub.Publish(Snapshot[T]{Version: version, Data: data})

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.Done():
		}
	}()
	return sub, nil
}
