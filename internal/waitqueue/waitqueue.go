// ABOUTME: FIFO queue of chat ids awaiting human assignment, backed by Redis
// ABOUTME: LPUSH/RPOP preserve insertion order across gateway instances

package waitqueue

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const queueKey = "chatdesk:waitqueue"

// Queue is a shared FIFO list of chat identifiers waiting for an agent.
// All gateway instances push and pop the same list.
type Queue struct {
	rdb *redis.Client
}

// New creates a wait queue over the given Redis client
func New(rdb *redis.Client) *Queue {
	return &Queue{rdb: rdb}
}

// Push appends a chat id to the tail of the queue
func (q *Queue) Push(ctx context.Context, chatID string) error {
	if err := q.rdb.LPush(ctx, queueKey, chatID).Err(); err != nil {
		return fmt.Errorf("pushing chat %s onto wait queue: %w", chatID, err)
	}
	return nil
}

// Pop removes and returns the chat id at the head of the queue.
// Returns ok=false when the queue is empty.
func (q *Queue) Pop(ctx context.Context) (string, bool, error) {
	chatID, err := q.rdb.RPop(ctx, queueKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("popping wait queue: %w", err)
	}
	return chatID, true, nil
}

// Len returns the number of chats currently waiting
func (q *Queue) Len(ctx context.Context) (int64, error) {
	n, err := q.rdb.LLen(ctx, queueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("measuring wait queue: %w", err)
	}
	return n, nil
}

// Peek returns the chat id at the head of the queue without removing it.
// Returns ok=false when the queue is empty.
func (q *Queue) Peek(ctx context.Context) (string, bool, error) {
	chatID, err := q.rdb.LIndex(ctx, queueKey, -1).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("peeking wait queue: %w", err)
	}
	return chatID, true, nil
}
