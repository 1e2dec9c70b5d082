package lease

import (
	"context"
	"sync"
	"time"
)

type localLease struct {
	token     uint64
	expiresAt time.Time
}

// LocalLocker implements Locker with in-process state. Suitable for a
// single-instance deployment; a fleet needs the redis locker.
type LocalLocker struct {
	mu     sync.Mutex
	leases map[string]localLease
	next   uint64
}

// NewLocalLocker creates an in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		leases: make(map[string]localLease),
	}
}

// Acquire implements Locker. Expired leases are treated as free.
func (l *LocalLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if held, ok := l.leases[key]; ok && held.expiresAt.After(now) {
		return nil, false, nil
	}

	l.next++
	token := l.next
	l.leases[key] = localLease{token: token, expiresAt: now.Add(ttl)}

	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		// Only the holder's token may release: an expired lease can have
		// been re-acquired by someone else in the meantime.
		if held, ok := l.leases[key]; ok && held.token == token {
			delete(l.leases, key)
		}
	}
	return release, true, nil
}

// Close implements Locker.
func (l *LocalLocker) Close() error {
	return nil
}
