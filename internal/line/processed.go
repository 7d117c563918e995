package line

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ProcessedTracker remembers webhook event IDs so redeliveries are skipped.
type ProcessedTracker interface {
	// MarkProcessed records eventID and reports whether it was new.
	MarkProcessed(ctx context.Context, eventID string) (bool, error)
}

// MemoryProcessed is a process-local tracker with a retention window.
type MemoryProcessed struct {
	mu        sync.Mutex
	retention time.Duration
	seen      map[string]time.Time
	now       func() time.Time
}

func NewMemoryProcessed(retention time.Duration) *MemoryProcessed {
	if retention <= 0 {
		retention = time.Hour
	}
	return &MemoryProcessed{
		retention: retention,
		seen:      make(map[string]time.Time),
		now:       time.Now,
	}
}

func (m *MemoryProcessed) MarkProcessed(_ context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for id, at := range m.seen {
		if now.Sub(at) > m.retention {
			delete(m.seen, id)
		}
	}
	if _, ok := m.seen[eventID]; ok {
		return false, nil
	}
	m.seen[eventID] = now
	return true, nil
}

// RedisProcessed shares the processed set between replicas.
type RedisProcessed struct {
	redis     *redis.Client
	retention time.Duration
}

func NewRedisProcessed(client *redis.Client, retention time.Duration) *RedisProcessed {
	if client == nil {
		panic("line: redis client cannot be nil")
	}
	if retention <= 0 {
		retention = time.Hour
	}
	return &RedisProcessed{redis: client, retention: retention}
}

func (r *RedisProcessed) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	ok, err := r.redis.SetNX(ctx, processedKey(eventID), 1, r.retention).Result()
	if err != nil {
		return false, fmt.Errorf("line: mark processed: %w", err)
	}
	return ok, nil
}

func processedKey(eventID string) string {
	return fmt.Sprintf("mailbot:line:processed:%s", eventID)
}
