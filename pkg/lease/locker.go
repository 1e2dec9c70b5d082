// Package lease provides short-lived exclusive locks around policy
// execution so two runners never process the same tenant and data type
// at once. The local locker covers a single process; the redis locker
// coordinates a fleet.
package lease

import (
	"context"
	"time"
)

// Locker grants time-bounded exclusive leases on string keys.
type Locker interface {
	// Acquire attempts to take the lease for key. On success it returns
	// a release func and true. When another holder owns the lease it
	// returns (nil, false, nil); the caller should skip the protected
	// work rather than wait.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)

	// Close releases locker resources.
	Close() error
}

// Key builds the lease key for a tenant and data type pair.
func Key(tenantID, dataType string) string {
	return tenantID + ":" + dataType
}
