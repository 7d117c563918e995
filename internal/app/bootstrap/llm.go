package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/ai-mail-assistant/internal/config"
	"github.com/wolfman30/ai-mail-assistant/internal/llm"
	"github.com/wolfman30/ai-mail-assistant/pkg/logging"
)

// BuildLLMClient wires the provider named by LLM_PROVIDER. With LLM_FALLBACK the
// other provider, when configured, answers requests the primary fails.
// The returned func releases provider connections.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (llm.Client, func(), error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var closers []func()
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}

	primaryName := cfg.LLMProvider
	if primaryName == "" {
		primaryName = "gemini"
	}
	primary, closer, err := buildProvider(ctx, primaryName, cfg, awsCfg)
	if err != nil {
		return nil, nil, err
	}
	if closer != nil {
		closers = append(closers, closer)
	}
	logger.Info("llm provider configured", "provider", primaryName)

	if !cfg.LLMFallback {
		return primary, cleanup, nil
	}

	fallbackName := "bedrock"
	if primaryName == "bedrock" {
		fallbackName = "gemini"
	}
	fallback, closer, err := buildProvider(ctx, fallbackName, cfg, awsCfg)
	if err != nil {
		logger.Warn("llm fallback unavailable", "provider", fallbackName, "error", err)
		return primary, cleanup, nil
	}
	if closer != nil {
		closers = append(closers, closer)
	}
	logger.Info("llm fallback configured", "primary", primaryName, "fallback", fallbackName)
	return llm.NewFallbackClient(primary, fallback, logger), cleanup, nil
}

func buildProvider(ctx context.Context, name string, cfg *appconfig.Config, awsCfg aws.Config) (llm.Client, func(), error) {
	switch name {
	case "gemini":
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			return nil, nil, fmt.Errorf("bootstrap: GEMINI_API_KEY is required for the gemini provider")
		}
		client, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: %w", err)
		}
		return client, func() { _ = client.Close() }, nil
	case "bedrock":
		if strings.TrimSpace(cfg.BedrockModelID) == "" {
			return nil, nil, fmt.Errorf("bootstrap: BEDROCK_MODEL_ID is required for the bedrock provider")
		}
		client, err := llm.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: %w", err)
		}
		return client, nil, nil
	default:
		return nil, nil, fmt.Errorf("bootstrap: unknown llm provider %q", name)
	}
}
