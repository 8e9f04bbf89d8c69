package cache

import (
	"sync"
	"time"
)

// entry is a single cached blob plus its absolute expiry.
type entry struct {
	blob      string
	expiresAt time.Time
}

// Memory implements Store with an in-process mutex-guarded map. It is
// suitable for single-instance deployments; adapted from the teacher's
// MemoryLimiter (internal/ratelimit/memory.go), replacing sliding-window
// attempt-counting with single-use take semantics and a background
// sweep that reclaims expired entries.
type Memory struct {
	mu          sync.Mutex
	entries     map[string]entry
	stopCh      chan struct{}
	cleanupDone chan struct{}
}

// NewMemory creates a Memory store and starts its background cleanup
// goroutine, which runs every sweepInterval to reclaim expired entries
// that were never redeemed.
func NewMemory(sweepInterval time.Duration) *Memory {
	m := &Memory{
		entries:     make(map[string]entry),
		stopCh:      make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
	go m.cleanupLoop(sweepInterval)
	return m
}

// Put implements Store.
func (m *Memory) Put(handle, blob string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[handle] = entry{blob: blob, expiresAt: expiresAt}
	return nil
}

// Take implements Store: the read and the delete happen under a single
// lock acquisition, so concurrent redeemers race for the same map entry
// and only one observes ok=true (P3).
func (m *Memory) Take(handle string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, found := m.entries[handle]
	if !found {
		return "", false
	}
	delete(m.entries, handle)
	if time.Now().After(e.expiresAt) {
		return "", false
	}
	return e.blob, true
}

// Remove implements Store.
func (m *Memory) Remove(handle string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, handle)
}

// Stop halts the background cleanup goroutine and waits for it to exit.
func (m *Memory) Stop() {
	close(m.stopCh)
	<-m.cleanupDone
}

func (m *Memory) cleanupLoop(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stopCh:
			return
		}
	}
}

func (m *Memory) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for handle, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, handle)
		}
	}
}
