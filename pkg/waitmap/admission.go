package waitmap

import (
	"context"

	"waitmap.dev/cmd/pkg/trace"
)

// admit claims one capacity slot before the caller creates a new entry.
// Unbounded maps admit everything. At capacity, PolicyEvictOldest first
// tries to push out the oldest resolved entry; if every entry is pending
// there is nothing safe to evict and the caller waits like PolicyBlock.
// Blocked callers are admitted longest-waiting first.
func (m *Map[K, V]) admit(ctx context.Context, key K, wait bool) error {
	if m.sem == nil {
		return nil
	}

	tr := trace.ContextMap(ctx)

	if m.sem.TryAcquire(1) {
		tr.Admit(ctx, key, false)
		return nil
	}

	if m.policy == PolicyEvictOldest {
		if k, ok := m.evictOldest(); ok {
			tr.Evict(ctx, k)
		}
		if m.sem.TryAcquire(1) {
			tr.Admit(ctx, key, false)
			return nil
		}
	}

	if !wait {
		return ErrWouldBlock
	}

	// Join the wait to both the caller's context and the close signal, so
	// Close never strands a producer in the admission queue.
	actx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(m.done, cancel)
	defer stop()

	if err := m.sem.Acquire(actx, 1); err != nil {
		if m.isClosed() {
			return ErrClosed
		}
		return err
	}
	if m.isClosed() {
		m.sem.Release(1)
		return ErrClosed
	}

	tr.Admit(ctx, key, true)
	return nil
}

// release returns one capacity slot. No-op on unbounded maps.
func (m *Map[K, V]) release() {
	if m.sem != nil {
		m.sem.Release(1)
	}
}

// evictOldest drops the oldest resolved entry and frees its slot. Reports
// false when no resolved entry exists.
func (m *Map[K, V]) evictOldest() (K, bool) {
	m.mu.Lock()

	var zero K

	if len(m.order) == 0 {
		m.mu.Unlock()
		return zero, false
	}

	key := m.order[0]
	m.order = m.order[1:]
	delete(m.entries, key)
	m.mu.Unlock()

	m.sem.Release(1)
	return key, true
}
