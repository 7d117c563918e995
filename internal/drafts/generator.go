package drafts

import (
	"context"
	"errors"
	"strings"

	"github.com/wolfman30/ai-mail-assistant/internal/llm"
	"github.com/wolfman30/ai-mail-assistant/pkg/logging"
)

// Generator produces draft emails with one fixed prompt.
type Generator struct {
	client      llm.Client
	logger      *logging.Logger
	maxTokens   int32
	temperature float32
}

// GeneratorOption customizes a Generator.
type GeneratorOption func(*Generator)

// WithSampling overrides the output token budget and temperature.
func WithSampling(maxTokens int32, temperature float32) GeneratorOption {
	return func(g *Generator) {
		g.maxTokens = maxTokens
		g.temperature = temperature
	}
}

func NewGenerator(client llm.Client, logger *logging.Logger, opts ...GeneratorOption) *Generator {
	if client == nil {
		panic("drafts: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	g := &Generator{
		client:      client,
		logger:      logger,
		maxTokens:   2048,
		temperature: 0.8,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate asks the provider for ExpectedCount variants and parses them.
// Fewer drafts than requested is not an error; zero is.
func (g *Generator) Generate(ctx context.Context, recipient, intent string) ([]Draft, error) {
	if strings.TrimSpace(intent) == "" {
		return nil, generationError("intent is empty", nil)
	}

	resp, err := g.client.Complete(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      BuildPrompt(recipient, intent),
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, generationError("provider timed out", err)
		}
		return nil, generationError("provider call failed", err)
	}

	var raw string
	switch r := resp.(type) {
	case llm.PlainText:
		raw = r.Text
	case llm.ActionInvocation:
		return nil, generationError("provider returned action "+r.Name+" instead of drafts", nil)
	default:
		return nil, generationError("provider returned an unknown response", nil)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, generationError("provider returned empty text", nil)
	}

	drafts := Parse(raw, intent)
	if len(drafts) == 0 {
		return nil, generationError("no usable drafts in provider output", nil)
	}
	if len(drafts) < ExpectedCount {
		g.logger.Warn("provider returned fewer drafts than requested",
			"expected", ExpectedCount,
			"got", len(drafts),
		)
	}
	return drafts, nil
}
