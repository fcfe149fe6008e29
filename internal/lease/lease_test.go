// ABOUTME: Tests for the distributed lease manager
// ABOUTME: Uses miniredis to verify mutual exclusion and TTL expiry

package lease

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, ttl time.Duration) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewManager(rdb, ttl), mr
}

func TestAcquire_Exclusive(t *testing.T) {
	m, _ := setup(t, 30*time.Second)
	ctx := context.Background()

	ok, err := m.Acquire(ctx, "contact-1")
	require.NoError(t, err)
	assert.True(t, ok)

	// Second acquire for the same contact fails while held
	ok, err = m.Acquire(ctx, "contact-1")
	require.NoError(t, err)
	assert.False(t, ok)

	// A different contact is unaffected
	ok, err = m.Acquire(ctx, "contact-2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRelease_AllowsReacquire(t *testing.T) {
	m, _ := setup(t, 30*time.Second)
	ctx := context.Background()

	ok, err := m.Acquire(ctx, "contact-1")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, m.Release(ctx, "contact-1"))

	ok, err = m.Acquire(ctx, "contact-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRelease_NotHeldIsNoop(t *testing.T) {
	m, _ := setup(t, 30*time.Second)
	assert.NoError(t, m.Release(context.Background(), "never-held"))
}

func TestHeld(t *testing.T) {
	m, _ := setup(t, 30*time.Second)
	ctx := context.Background()

	held, err := m.Held(ctx, "contact-1")
	require.NoError(t, err)
	assert.False(t, held)

	_, err = m.Acquire(ctx, "contact-1")
	require.NoError(t, err)

	held, err = m.Held(ctx, "contact-1")
	require.NoError(t, err)
	assert.True(t, held)
}

func TestAcquire_TTLExpiry(t *testing.T) {
	m, mr := setup(t, 5*time.Second)
	ctx := context.Background()

	ok, err := m.Acquire(ctx, "contact-1")
	require.NoError(t, err)
	require.True(t, ok)

	// A crashed holder never releases; the TTL frees the contact
	mr.FastForward(6 * time.Second)

	ok, err = m.Acquire(ctx, "contact-1")
	require.NoError(t, err)
	assert.True(t, ok)
}
