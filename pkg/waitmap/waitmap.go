// Package waitmap provides a keyed rendezvous map: readers block on a key
// until some writer resolves it, after which the value is served to every
// current and future reader without copying.
package waitmap // import "waitmap.dev/cmd/pkg/waitmap"

import (
	"context"
	"sync"

	"waitmap.dev/cmd/pkg/errors"
	"waitmap.dev/cmd/pkg/trace"

	"golang.org/x/sync/semaphore"
)

var (
	// ErrClosed is returned by every operation, including already-blocked
	// Get calls, once Close has run.
	ErrClosed = errors.New("waitmap: map is closed")

	// ErrDuplicateKey is returned by Insert on an already-resolved key.
	// The stored value is left unchanged.
	ErrDuplicateKey = errors.New("waitmap: duplicate key")

	// ErrWouldBlock is returned by TryInsert when admission to a bounded
	// map would require waiting.
	ErrWouldBlock = errors.New("waitmap: would block")
)

type result[V any] struct {
	value V
	err   error
}

// waiter is a one-shot completion slot for a single blocked Get. A waiter
// leaves its entry's list exactly once: fulfilled on resolution, failed on
// close, or dropped when the awaiting caller gives up. Only list members
// are ever completed, which is what makes each transition exactly-once.
type waiter[V any] struct {
	ch chan result[V]
}

func newWaiter[V any]() *waiter[V] {
	return &waiter[V]{ch: make(chan result[V], 1)}
}

func (w *waiter[V]) fulfill(v V) { w.ch <- result[V]{value: v} }

func (w *waiter[V]) close() { w.ch <- result[V]{err: ErrClosed} }

// entry is the per-key state record: pending with a FIFO waiter list, or
// resolved with the stored value. The list is non-empty only while pending.
type entry[V any] struct {
	resolved bool
	value    V
	waiters  []*waiter[V]
}

func (e *entry[V]) drop(w *waiter[V]) bool {
	for i, x := range e.waiters {
		if x == w {
			e.waiters = append(e.waiters[:i], e.waiters[i+1:]...)
			return true
		}
	}
	return false
}

// Map is a shareable rendezvous map from K to V. The zero value is not
// usable; construct with New. All methods are safe for concurrent use.
//
// A key is written at most once: the first Insert resolves it and every
// later Insert fails with ErrDuplicateKey until the key is removed. Values
// are treated as immutable once stored; readers all observe the same value.
type Map[K comparable, V any] struct {
	policy Policy

	sem  *semaphore.Weighted // nil for the unbounded variant
	done context.Context     // fires on Close; unblocks admission waits
	stop context.CancelFunc

	mu      sync.Mutex
	closed  bool
	entries map[K]*entry[V]
	order   []K // resolved keys, oldest first
}

// New constructs a map. Without options the map is unbounded and grows with
// the number of distinct keys; WithCapacity selects the bounded variant.
func New[K comparable, V any](opts ...Option) *Map[K, V] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	m := &Map[K, V]{
		policy:  o.policy,
		entries: make(map[K]*entry[V]),
	}
	if o.capacity > 0 {
		m.sem = semaphore.NewWeighted(int64(o.capacity))
	}
	m.done, m.stop = context.WithCancel(context.Background())

	return m
}

// Get returns the value stored under key, blocking until some Insert
// resolves it. Inspecting the entry and registering as a waiter happen in
// one critical section, so an Insert that lands concurrently either sees
// the registration or is seen by it; there is no window for a lost wakeup.
//
// Get fails with ErrClosed if the map closes first, or with ctx.Err() if
// the caller gives up; a cancelled call deregisters its slot and leaves
// every other waiter on the key untouched.
func (m *Map[K, V]) Get(ctx context.Context, key K) (V, error) {
	tr := trace.ContextMap(ctx)

	var zero V

	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return zero, ErrClosed
		}
		if e, ok := m.entries[key]; ok {
			if e.resolved {
				v := e.value
				m.mu.Unlock()
				tr.Hit(ctx, key)
				return v, nil
			}

			w := newWaiter[V]()
			e.waiters = append(e.waiters, w)
			m.mu.Unlock()

			tr.Wait(ctx, key)
			return m.await(ctx, key, w)
		}
		m.mu.Unlock()

		// Absent key: a pending entry occupies a capacity slot, so the
		// caller goes through admission before creating one.
		if err := m.admit(ctx, key, true); err != nil {
			return zero, err
		}

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			m.release()
			return zero, ErrClosed
		}
		if _, ok := m.entries[key]; ok {
			// Lost the creation race while waiting for admission; hand the
			// slot back and start over.
			m.mu.Unlock()
			m.release()
			continue
		}

		w := newWaiter[V]()
		m.entries[key] = &entry[V]{waiters: []*waiter[V]{w}}
		m.mu.Unlock()

		tr.Wait(ctx, key)
		return m.await(ctx, key, w)
	}
}

func (m *Map[K, V]) await(ctx context.Context, key K, w *waiter[V]) (V, error) {
	var zero V

	select {
	case r := <-w.ch:
		return r.value, r.err
	case <-ctx.Done():
	}

	m.mu.Lock()
	var removed, drained bool
	if e, ok := m.entries[key]; ok && !e.resolved {
		removed = e.drop(w)
		if drained = removed && len(e.waiters) == 0; drained {
			// Last waiter gone. A pending entry no one awaits would pin a
			// capacity slot forever, so it goes with us.
			delete(m.entries, key)
		}
	}
	m.mu.Unlock()

	if drained {
		m.release()
	}
	if !removed {
		// Resolution or close already detached the slot from the list; the
		// completion is on its way, take it instead of the cancellation.
		r := <-w.ch
		return r.value, r.err
	}

	trace.ContextMap(ctx).Cancel(ctx, key)
	return zero, ctx.Err()
}

// TryGet returns the value stored under key if the key is resolved. It
// never blocks, never creates an entry and never registers a waiter.
func (m *Map[K, V]) TryGet(key K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero V

	e, ok := m.entries[key]
	if !ok || !e.resolved {
		return zero, false
	}
	return e.value, true
}

// Insert resolves key to value. If readers are already blocked on the key
// they are all woken with this value, in the order they arrived. Inserting
// into an already-resolved key fails with ErrDuplicateKey and leaves the
// stored value unchanged.
//
// On a bounded map an Insert that creates a new entry waits for admission;
// ctx cancels the wait. Resolving an existing pending key and duplicate
// inserts are exempt, since neither creates an entry.
func (m *Map[K, V]) Insert(ctx context.Context, key K, value V) error {
	return m.insert(ctx, key, value, true)
}

// TryInsert is the non-blocking variant of Insert: when admission to a
// bounded map would require waiting it fails with ErrWouldBlock instead.
func (m *Map[K, V]) TryInsert(key K, value V) error {
	return m.insert(context.Background(), key, value, false)
}

func (m *Map[K, V]) insert(ctx context.Context, key K, value V, wait bool) error {
	tr := trace.ContextMap(ctx)

	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return ErrClosed
		}
		if e, ok := m.entries[key]; ok {
			if e.resolved {
				m.mu.Unlock()
				tr.Duplicate(ctx, key)
				return ErrDuplicateKey
			}

			waiters := e.waiters
			e.resolved = true
			e.value = value
			e.waiters = nil
			m.order = append(m.order, key)
			m.mu.Unlock()

			// The list was detached under the lock, so each slot here is
			// completed exactly once. Sends are in registration order and
			// never block: every slot buffers one result.
			for _, w := range waiters {
				w.fulfill(value)
			}

			tr.Resolve(ctx, key, len(waiters))
			return nil
		}
		m.mu.Unlock()

		if err := m.admit(ctx, key, wait); err != nil {
			return err
		}

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			m.release()
			return ErrClosed
		}
		if _, ok := m.entries[key]; ok {
			m.mu.Unlock()
			m.release()
			continue
		}

		m.entries[key] = &entry[V]{resolved: true, value: value}
		m.order = append(m.order, key)
		m.mu.Unlock()

		tr.Resolve(ctx, key, 0)
		return nil
	}
}

// Remove deletes a resolved entry and returns its value, freeing one
// capacity slot on a bounded map. Removing a pending key is a no-op
// returning (zero, false): its waiters stay registered and resolve
// normally once the key is inserted.
func (m *Map[K, V]) Remove(key K) (V, bool) {
	m.mu.Lock()

	var zero V

	e, ok := m.entries[key]
	if !ok || !e.resolved {
		m.mu.Unlock()
		return zero, false
	}

	delete(m.entries, key)
	m.dropOrder(key)
	m.mu.Unlock()

	m.release()
	return e.value, true
}

// Close tears the map down: every blocked Get fails with ErrClosed, blocked
// admission waits are released, and all subsequent Get, Insert and
// TryInsert calls fail with ErrClosed. Close is idempotent.
func (m *Map[K, V]) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true

	var waiters []*waiter[V]
	for _, e := range m.entries {
		waiters = append(waiters, e.waiters...)
		e.waiters = nil
	}
	m.entries = nil
	m.order = nil
	m.mu.Unlock()

	m.stop()
	for _, w := range waiters {
		w.close()
	}
}

// Len reports the number of live entries, pending and resolved alike.
func (m *Map[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Map[K, V]) IsEmpty() bool {
	return m.Len() == 0
}

func (m *Map[K, V]) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// dropOrder removes key from the eviction order. Caller holds m.mu.
func (m *Map[K, V]) dropOrder(key K) {
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}
