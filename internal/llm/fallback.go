package llm

import (
	"context"

	"github.com/wolfman30/ai-mail-assistant/pkg/logging"
)

// FallbackClient wraps a primary client with a fallback provider.
// If the primary fails, the same request is retried once on the fallback.
type FallbackClient struct {
	primary  Client
	fallback Client
	logger   *logging.Logger
}

// NewFallbackClient creates a new fallback-enabled client.
// If fallback is nil, the client will only use the primary provider.
func NewFallbackClient(primary, fallback Client, logger *logging.Logger) *FallbackClient {
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackClient{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (c *FallbackClient) Complete(ctx context.Context, req Request) (Response, error) {
	resp, err := c.primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}

	c.logger.Warn("primary LLM failed, attempting fallback",
		"error", err.Error(),
		"fallback_available", c.fallback != nil,
	)
	if c.fallback == nil || ctx.Err() != nil {
		return nil, err
	}

	fallbackResp, fallbackErr := c.fallback.Complete(ctx, req)
	if fallbackErr != nil {
		c.logger.Error("fallback LLM also failed",
			"primary_error", err.Error(),
			"fallback_error", fallbackErr.Error(),
		)
		return nil, fallbackErr
	}

	c.logger.Info("fallback LLM succeeded after primary failure")
	return fallbackResp, nil
}
