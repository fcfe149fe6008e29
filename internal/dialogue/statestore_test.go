// ABOUTME: Tests for the Redis-backed dialogue state store
// ABOUTME: Covers default-on-miss, TTL refresh, corruption recovery and reset

package dialogue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStateStore(t *testing.T, ttl time.Duration) (*StateStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewStateStore(rdb, ttl, nil), mr
}

func TestGet_FreshContactIsIdempotent(t *testing.T) {
	s, _ := setupStateStore(t, 24*time.Hour)
	ctx := context.Background()

	first, err := s.Get(ctx, "contact-1")
	require.NoError(t, err)
	second, err := s.Get(ctx, "contact-1")
	require.NoError(t, err)

	assert.Equal(t, DefaultState(), first)
	assert.Equal(t, first, second)
}

func TestSetAndGet_RoundTrip(t *testing.T) {
	s, _ := setupStateStore(t, 24*time.Hour)
	ctx := context.Background()

	want := State{Step: StepAwaitID, TermsAccepted: true, Cedula: "1033456789"}
	require.NoError(t, s.Set(ctx, "contact-1", want))

	got, err := s.Get(ctx, "contact-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestGet_ExpiredStateFallsBackToDefault(t *testing.T) {
	s, mr := setupStateStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "contact-1", State{Step: StepMainMenu, TermsAccepted: true}))
	mr.FastForward(2 * time.Hour)

	got, err := s.Get(ctx, "contact-1")
	require.NoError(t, err)
	assert.Equal(t, DefaultState(), got)
}

func TestSet_RefreshesTTL(t *testing.T) {
	s, mr := setupStateStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "contact-1", State{Step: StepMainMenu}))
	mr.FastForward(45 * time.Minute)

	// A write inside the window restarts the clock
	require.NoError(t, s.Set(ctx, "contact-1", State{Step: StepAwaitID, TermsAccepted: true}))
	mr.FastForward(45 * time.Minute)

	got, err := s.Get(ctx, "contact-1")
	require.NoError(t, err)
	assert.Equal(t, StepAwaitID, got.Step)
}

func TestGet_CorruptedStateRecovers(t *testing.T) {
	s, mr := setupStateStore(t, time.Hour)

	require.NoError(t, mr.Set("chatdesk:state:contact-1", "{not json"))

	got, err := s.Get(context.Background(), "contact-1")
	require.NoError(t, err)
	assert.Equal(t, DefaultState(), got)
}

func TestReset(t *testing.T) {
	s, _ := setupStateStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "contact-1", State{Step: StepSurvey, TermsAccepted: true}))
	require.NoError(t, s.Reset(ctx, "contact-1"))

	got, err := s.Get(ctx, "contact-1")
	require.NoError(t, err)
	assert.Equal(t, DefaultState(), got)
}
