// Package flash queues one-shot user messages between requests.
package flash

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Message is a single flash entry.
type Message struct {
	Level string `json:"level"`
	Text  string `json:"message"`
}

// Store keeps pending messages per user. Drain returns and clears them in
// insertion order.
type Store interface {
	Push(ctx context.Context, userID int64, msg Message) error
	Drain(ctx context.Context, userID int64) ([]Message, error)
}

const defaultTTL = 24 * time.Hour

func key(userID int64) string {
	return fmt.Sprintf("flash:%d", userID)
}

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore keeps messages in a Redis list per user.
func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client, ttl: defaultTTL}
}

func (s *redisStore) Push(ctx context.Context, userID int64, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key(userID), payload)
	pipe.Expire(ctx, key(userID), s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *redisStore) Drain(ctx context.Context, userID int64) ([]Message, error) {
	pipe := s.client.TxPipeline()
	rangeCmd := pipe.LRange(ctx, key(userID), 0, -1)
	pipe.Del(ctx, key(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	raw := rangeCmd.Val()
	messages := make([]Message, 0, len(raw))
	for _, item := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

type memoryStore struct {
	mu      sync.Mutex
	pending map[int64][]Message
}

// NewMemoryStore keeps messages in process memory.
func NewMemoryStore() Store {
	return &memoryStore{pending: make(map[int64][]Message)}
}

func (s *memoryStore) Push(_ context.Context, userID int64, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[userID] = append(s.pending[userID], msg)
	return nil
}

func (s *memoryStore) Drain(_ context.Context, userID int64) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	messages := s.pending[userID]
	delete(s.pending, userID)
	if messages == nil {
		messages = []Message{}
	}
	return messages, nil
}
