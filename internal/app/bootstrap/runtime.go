package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/ai-mail-assistant/internal/config"
	"github.com/wolfman30/ai-mail-assistant/internal/conversation"
	"github.com/wolfman30/ai-mail-assistant/internal/line"
	"github.com/wolfman30/ai-mail-assistant/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildStore selects the conversation store named by STATE_BACKEND. The
// in-memory store gets a janitor that runs until ctx is done.
func BuildStore(ctx context.Context, cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) (conversation.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch cfg.StateBackend {
	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("bootstrap: redis state backend requires a reachable redis at %q", cfg.RedisAddr)
		}
		logger.Info("conversation state stored in redis", "addr", cfg.RedisAddr, "ttl", cfg.SessionTTL.String())
		return conversation.NewRedisStore(redisClient, cfg.SessionTTL, nil), nil
	case "", "memory":
		store := conversation.NewMemoryStore()
		if ctx != nil && cfg.SessionTTL > 0 {
			go store.RunJanitor(ctx, cfg.SessionTTL, janitorInterval(cfg.SessionTTL), func(n int) {
				logger.Info("pruned idle conversations", "count", n)
			})
		}
		logger.Info("conversation state kept in memory", "ttl", cfg.SessionTTL.String())
		return store, nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown state backend %q", cfg.StateBackend)
	}
}

// BuildProcessed returns the webhook dedup set, shared through Redis when available.
func BuildProcessed(redisClient *redis.Client, retention time.Duration) line.ProcessedTracker {
	if redisClient == nil {
		return line.NewMemoryProcessed(retention)
	}
	return line.NewRedisProcessed(redisClient, retention)
}

func janitorInterval(ttl time.Duration) time.Duration {
	interval := ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}
