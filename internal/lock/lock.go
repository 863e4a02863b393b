// Package lock provides the short-lived exclusive lock the perpetual task
// scheduler claims per record before handling it. The interface leaves room
// for a distributed implementation; the in-memory lease is the reference.
package lock

import (
	"sync"
	"time"
)

// Locker hands out exclusive, TTL-bounded leases keyed by name.
type Locker interface {
	// TryAcquire claims the lock for ttl. It returns a release func and true
	// on success, or nil and false when the lock is held by someone else.
	TryAcquire(name string, ttl time.Duration) (release func(), ok bool)
}

// lease records who holds a lock and until when.
type lease struct {
	expiresAt time.Time
	token     uint64
}

// MemoryLocker is the in-memory Locker. Expired leases are reclaimed lazily
// on the next acquire attempt for the same name.
type MemoryLocker struct {
	mu        sync.Mutex
	leases    map[string]*lease
	nextToken uint64

	// nowFunc is swapped out in tests.
	nowFunc func() time.Time
}

// NewMemoryLocker creates an empty in-memory lock table.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		leases:  make(map[string]*lease),
		nowFunc: time.Now,
	}
}

var _ Locker = (*MemoryLocker)(nil)

// TryAcquire implements Locker. The returned release func is idempotent and
// only releases the lease it belongs to, so a release racing a TTL expiry
// cannot free a successor's lease.
func (l *MemoryLocker) TryAcquire(name string, ttl time.Duration) (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	if existing, held := l.leases[name]; held && existing.expiresAt.After(now) {
		return nil, false
	}

	l.nextToken++
	granted := &lease{expiresAt: now.Add(ttl), token: l.nextToken}
	l.leases[name] = granted

	token := granted.token
	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if current, held := l.leases[name]; held && current.token == token {
			delete(l.leases, name)
		}
	}
	return release, true
}
