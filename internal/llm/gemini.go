package llm

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiClient implements Client using Google's Gemini API.
type GeminiClient struct {
	client  *genai.Client
	modelID string
}

// ModelInfo describes a model available to the configured API key.
type ModelInfo struct {
	ID          string
	DisplayName string
	InputLimit  int32
	OutputLimit int32
}

// NewGeminiClient creates a new Gemini client.
func NewGeminiClient(ctx context.Context, apiKey, modelID string) (*GeminiClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("llm: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = defaultGeminiModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("llm: failed to create gemini client: %w", err)
	}

	return &GeminiClient{
		client:  client,
		modelID: modelID,
	}, nil
}

// Complete sends a single prompt to Gemini.
func (c *GeminiClient) Complete(ctx context.Context, req Request) (Response, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	model := c.client.GenerativeModel(c.modelID)

	if req.Temperature >= 0 {
		model.SetTemperature(req.Temperature)
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(req.MaxTokens)
	}
	if strings.TrimSpace(req.System) != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.System))
	}
	if len(req.Tools) > 0 {
		model.Tools = []*genai.Tool{geminiTool(req.Tools)}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return nil, fmt.Errorf("llm: gemini completion failed: %w", err)
	}
	return geminiResponse(resp)
}

// ListModels returns the models that support content generation.
func (c *GeminiClient) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var models []ModelInfo
	it := c.client.ListModels(ctx)
	for {
		m, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("llm: list gemini models: %w", err)
		}
		if !slices.Contains(m.SupportedGenerationMethods, "generateContent") {
			continue
		}
		models = append(models, ModelInfo{
			ID:          strings.TrimPrefix(m.Name, "models/"),
			DisplayName: m.DisplayName,
			InputLimit:  m.InputTokenLimit,
			OutputLimit: m.OutputTokenLimit,
		})
	}
	return models, nil
}

// Close releases resources held by the Gemini client.
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func geminiTool(tools []Tool) *genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		props := make(map[string]*genai.Schema, len(tool.Params))
		required := make([]string, 0, len(tool.Params))
		for _, p := range tool.Params {
			props[p.Name] = &genai.Schema{Type: genai.TypeString, Description: p.Description}
			required = append(required, p.Name)
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: props,
				Required:   required,
			},
		})
	}
	return &genai.Tool{FunctionDeclarations: decls}
}

// geminiResponse prefers a function call over text when both are present.
func geminiResponse(resp *genai.GenerateContentResponse) (Response, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: gemini returned no candidates", ErrEmptyResponse)
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: gemini returned empty content", ErrEmptyResponse)
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		switch p := part.(type) {
		case genai.FunctionCall:
			return ActionInvocation{Name: p.Name, Args: stringArgs(p.Args)}, nil
		case genai.Text:
			text.WriteString(string(p))
		}
	}
	out := strings.TrimSpace(text.String())
	if out == "" {
		return nil, fmt.Errorf("%w: gemini returned no text parts", ErrEmptyResponse)
	}
	return PlainText{Text: out}, nil
}
