package bootstrap

import (
	"fmt"

	appconfig "github.com/wolfman30/ai-mail-assistant/internal/config"
	"github.com/wolfman30/ai-mail-assistant/internal/conversation"
	"github.com/wolfman30/ai-mail-assistant/internal/drafts"
	"github.com/wolfman30/ai-mail-assistant/internal/llm"
	"github.com/wolfman30/ai-mail-assistant/internal/observability/metrics"
	"github.com/wolfman30/ai-mail-assistant/pkg/logging"
)

// BuildEngine assembles the conversation engine shared by every front end.
func BuildEngine(cfg *appconfig.Config, store conversation.Store, client llm.Client, dispatcher conversation.Dispatcher, m *metrics.ConversationMetrics, logger *logging.Logger) (*conversation.Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if store == nil || client == nil || dispatcher == nil {
		return nil, fmt.Errorf("bootstrap: store, llm client and dispatcher are required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	opts := []conversation.EngineOption{conversation.WithMetrics(m)}
	if cfg.LLMToolFinalize {
		opts = append(opts, conversation.WithFinalizer(drafts.NewFinalizer(client)))
		logger.Info("selections confirmed through send_email tool call")
	}

	return conversation.NewEngine(
		store,
		drafts.NewGenerator(client, logger),
		dispatcher,
		conversation.EngineConfig{
			TriggerPhrase:  cfg.TriggerPhrase,
			CancelKeywords: cfg.CancelKeywords,
			SessionTTL:     cfg.SessionTTL,
			LLMTimeout:     cfg.LLMTimeout,
			PreviewRunes:   cfg.DraftPreviewRunes,
		},
		logger,
		opts...,
	), nil
}
