// ABOUTME: Redis-backed store for per-contact dialogue state
// ABOUTME: 24h TTL refreshed on every write, default state on miss or corruption

package dialogue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const stateKeyPrefix = "chatdesk:state:"

// StateStore persists dialogue state in the shared Redis instance so any
// gateway instance can continue a contact's session.
type StateStore struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewStateStore creates a state store with the given TTL. Pass nil logger
// for the default.
func NewStateStore(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *StateStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &StateStore{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger.With("component", "statestore"),
	}
}

// Get returns the contact's dialogue state, writing and returning the
// default state when none exists or the stored value no longer parses.
func (s *StateStore) Get(ctx context.Context, contactID string) (State, error) {
	data, err := s.rdb.Get(ctx, stateKeyPrefix+contactID).Bytes()
	if errors.Is(err, redis.Nil) {
		st := DefaultState()
		if err := s.Set(ctx, contactID, st); err != nil {
			return State{}, err
		}
		return st, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("reading state for %s: %w", contactID, err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		// Corrupted state is replaced, not surfaced
		s.logger.Warn("discarding unparseable dialogue state", "contact_id", contactID, "error", err)
		st = DefaultState()
		if err := s.Set(ctx, contactID, st); err != nil {
			return State{}, err
		}
	}
	return st, nil
}

// Set stores the contact's dialogue state and refreshes the TTL
func (s *StateStore) Set(ctx context.Context, contactID string, st State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshaling state for %s: %w", contactID, err)
	}
	if err := s.rdb.Set(ctx, stateKeyPrefix+contactID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("writing state for %s: %w", contactID, err)
	}
	return nil
}

// Reset deletes the contact's dialogue state; the next Get returns the default
func (s *StateStore) Reset(ctx context.Context, contactID string) error {
	if err := s.rdb.Del(ctx, stateKeyPrefix+contactID).Err(); err != nil {
		return fmt.Errorf("resetting state for %s: %w", contactID, err)
	}
	return nil
}
