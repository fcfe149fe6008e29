// ABOUTME: Per-contact distributed lease on Redis
// ABOUTME: SET NX with TTL gives at most one holder system-wide per contact

package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "chatdesk:lease:"

// Manager hands out short-lived exclusive leases keyed by contact id.
// While a lease is held, no other gateway instance processes messages
// for that contact.
type Manager struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewManager creates a lease manager with the given default TTL
func NewManager(rdb *redis.Client, ttl time.Duration) *Manager {
	return &Manager{rdb: rdb, ttl: ttl}
}

// Acquire attempts to take the lease for a contact. Returns true if this
// caller now holds it, false if another holder exists. The lease expires
// after the manager's TTL even if never released.
func (m *Manager) Acquire(ctx context.Context, contactID string) (bool, error) {
	ok, err := m.rdb.SetNX(ctx, keyPrefix+contactID, time.Now().UTC().Format(time.RFC3339Nano), m.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquiring lease for %s: %w", contactID, err)
	}
	return ok, nil
}

// Release drops the lease for a contact. Releasing a lease that is not
// held is not an error.
//
// The delete is unconditional: if processing outlives the lease TTL,
// Release removes a lease another instance has since acquired. Accepted
// limitation of the SETNX/DEL primitive set; keep handler work well under
// the TTL.
func (m *Manager) Release(ctx context.Context, contactID string) error {
	if err := m.rdb.Del(ctx, keyPrefix+contactID).Err(); err != nil {
		return fmt.Errorf("releasing lease for %s: %w", contactID, err)
	}
	return nil
}

// Held reports whether a lease currently exists for the contact
func (m *Manager) Held(ctx context.Context, contactID string) (bool, error) {
	n, err := m.rdb.Exists(ctx, keyPrefix+contactID).Result()
	if err != nil {
		return false, fmt.Errorf("checking lease for %s: %w", contactID, err)
	}
	return n > 0, nil
}
