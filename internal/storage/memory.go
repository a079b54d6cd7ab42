package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"leadqualify/pkg"
)

// ErrNotFound is returned when a user has no stored conversation yet.
var ErrNotFound = errors.New("storage: conversation not found")

// MemoryStore persists the per-user conversation memory and transcript.
// Upsert writes one consistent snapshot per turn; there is no partial write.
type MemoryStore interface {
	Get(ctx context.Context, userID string) (*pkg.Memory, []string, error)
	Upsert(ctx context.Context, userID string, memory pkg.Memory, history []string) error
}

// conversationRecord is the stored shape: memory plus the full transcript.
type conversationRecord struct {
	Memory  pkg.Memory `json:"memory"`
	History []string   `json:"history"`
}

const memoryPrefix = "memory:"

// RedisMemoryStore is the production MemoryStore. Entries carry no TTL:
// conversation memory is never deleted by this service.
type RedisMemoryStore struct {
	client *redis.Client
}

// NewRedisMemoryStore wraps an existing Redis client.
func NewRedisMemoryStore(client *redis.Client) *RedisMemoryStore {
	return &RedisMemoryStore{client: client}
}

func (s *RedisMemoryStore) Get(ctx context.Context, userID string) (*pkg.Memory, []string, error) {
	data, err := s.client.Get(ctx, memoryPrefix+userID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to get conversation memory: %w", err)
	}

	var record conversationRecord
	if err := sonic.Unmarshal([]byte(data), &record); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal conversation memory: %w", err)
	}
	return &record.Memory, record.History, nil
}

func (s *RedisMemoryStore) Upsert(ctx context.Context, userID string, memory pkg.Memory, history []string) error {
	if userID == "" {
		return fmt.Errorf("user ID cannot be empty")
	}

	data, err := sonic.Marshal(conversationRecord{Memory: memory, History: history})
	if err != nil {
		return fmt.Errorf("failed to marshal conversation memory: %w", err)
	}

	if err := s.client.Set(ctx, memoryPrefix+userID, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to upsert conversation memory: %w", err)
	}
	return nil
}

// InMemoryStore is an in-process MemoryStore for development and tests.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]conversationRecord
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]conversationRecord)}
}

func (s *InMemoryStore) Get(ctx context.Context, userID string) (*pkg.Memory, []string, error) {
	s.mu.RLock()
	record, ok := s.records[userID]
	s.mu.RUnlock()

	if !ok {
		return nil, nil, ErrNotFound
	}
	memory := record.Memory
	history := append([]string(nil), record.History...)
	return &memory, history, nil
}

func (s *InMemoryStore) Upsert(ctx context.Context, userID string, memory pkg.Memory, history []string) error {
	if userID == "" {
		return fmt.Errorf("user ID cannot be empty")
	}

	s.mu.Lock()
	s.records[userID] = conversationRecord{
		Memory:  memory,
		History: append([]string(nil), history...),
	}
	s.mu.Unlock()
	return nil
}
