package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CancelRegistry stores out-of-band cancellation flags keyed by request id.
// The pipeline polls it between stages and between streamed tokens.
type CancelRegistry interface {
	RequestCancel(ctx context.Context, requestID string) error
	IsCancelled(ctx context.Context, requestID string) bool
	Clear(ctx context.Context, requestID string)
}

// MemoryCancelRegistry is the single-process registry.
type MemoryCancelRegistry struct {
	mu    sync.Mutex
	flags map[string]bool
}

func NewMemoryCancelRegistry() *MemoryCancelRegistry {
	return &MemoryCancelRegistry{flags: make(map[string]bool)}
}

func (m *MemoryCancelRegistry) RequestCancel(ctx context.Context, requestID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags[requestID] = true
	return nil
}

func (m *MemoryCancelRegistry) IsCancelled(ctx context.Context, requestID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flags[requestID]
}

func (m *MemoryCancelRegistry) Clear(ctx context.Context, requestID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.flags, requestID)
}

// RedisCancelRegistry shares cancellation flags across replicas. Flags expire
// on their own so abandoned requests do not accumulate keys.
type RedisCancelRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCancelRegistry(client *redis.Client, ttl time.Duration) *RedisCancelRegistry {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisCancelRegistry{client: client, ttl: ttl}
}

func cancelKey(requestID string) string { return "campusqa:cancel:" + requestID }

func (r *RedisCancelRegistry) RequestCancel(ctx context.Context, requestID string) error {
	return r.client.Set(ctx, cancelKey(requestID), "1", r.ttl).Err()
}

func (r *RedisCancelRegistry) IsCancelled(ctx context.Context, requestID string) bool {
	n, err := r.client.Exists(ctx, cancelKey(requestID)).Result()
	if err != nil {
		// Registry errors degrade to not-cancelled.
		return false
	}
	return n > 0
}

func (r *RedisCancelRegistry) Clear(ctx context.Context, requestID string) {
	r.client.Del(ctx, cancelKey(requestID))
}
