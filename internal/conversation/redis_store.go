package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RedisStore keeps states in Redis with a sliding TTL, so abandoned
// conversations expire without a janitor.
type RedisStore struct {
	redis  *redis.Client
	tracer trace.Tracer
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration, tracer trace.Tracer) *RedisStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("mailbot.internal.conversation.store")
	}
	return &RedisStore{
		redis:  client,
		tracer: tracer,
		ttl:    ttl,
	}
}

func (s *RedisStore) Get(ctx context.Context, identifier string) (State, bool, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.get_state", trace.WithAttributes(attribute.String("conversation.identifier", identifier)))
	defer span.End()

	data, err := s.redis.Get(ctx, stateKey(identifier)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return State{}, false, nil
		}
		span.RecordError(err)
		return State{}, false, fmt.Errorf("conversation: failed to load state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		span.RecordError(err)
		return State{}, false, fmt.Errorf("conversation: failed to decode state: %w", err)
	}
	return state, true, nil
}

func (s *RedisStore) Set(ctx context.Context, state State) error {
	ctx, span := s.tracer.Start(ctx, "conversation.set_state", trace.WithAttributes(
		attribute.String("conversation.identifier", state.Identifier),
		attribute.String("conversation.phase", string(state.Phase)),
	))
	defer span.End()

	if state.Identifier == "" {
		return errors.New("conversation: identifier is required")
	}
	data, err := json.Marshal(state)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal state: %w", err)
	}
	if err := s.redis.Set(ctx, stateKey(state.Identifier), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist state: %w", err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, identifier string) error {
	ctx, span := s.tracer.Start(ctx, "conversation.remove_state", trace.WithAttributes(attribute.String("conversation.identifier", identifier)))
	defer span.End()

	if err := s.redis.Del(ctx, stateKey(identifier)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to remove state: %w", err)
	}
	return nil
}

func stateKey(identifier string) string {
	return fmt.Sprintf("mailbot:conversation:%s", identifier)
}
