package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockClient implements Client with the Bedrock Converse API.
type BedrockClient struct {
	api     bedrockConverseAPI
	modelID string
}

func NewBedrockClient(api bedrockConverseAPI, modelID string) (*BedrockClient, error) {
	if api == nil {
		return nil, errors.New("llm: bedrock converse client is required")
	}
	if strings.TrimSpace(modelID) == "" {
		return nil, errors.New("llm: bedrock model id is required")
	}
	return &BedrockClient{api: api, modelID: modelID}, nil
}

func (c *BedrockClient) Complete(ctx context.Context, req Request) (Response, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var system []brtypes.SystemContentBlock
	if strings.TrimSpace(req.System) != "" {
		system = append(system, &brtypes.SystemContentBlockMemberText{Value: req.System})
	}

	inference := &brtypes.InferenceConfiguration{}
	if req.MaxTokens > 0 {
		inference.MaxTokens = aws.Int32(req.MaxTokens)
	}
	// Allow callers to omit temperature by passing a negative value.
	if req.Temperature >= 0 {
		inference.Temperature = aws.Float32(req.Temperature)
	}
	if inference.MaxTokens == nil && inference.Temperature == nil {
		inference = nil
	}

	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(c.modelID),
		System:  system,
		Messages: []brtypes.Message{{
			Role:    brtypes.ConversationRoleUser,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: req.Prompt}},
		}},
		InferenceConfig: inference,
	}
	if len(req.Tools) > 0 {
		input.ToolConfig = bedrockToolConfig(req.Tools)
	}

	out, err := c.api.Converse(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("llm: bedrock converse failed: %w", err)
	}
	return bedrockResponse(out)
}

func bedrockToolConfig(tools []Tool) *brtypes.ToolConfiguration {
	specs := make([]brtypes.Tool, 0, len(tools))
	for _, tool := range tools {
		props := make(map[string]any, len(tool.Params))
		required := make([]string, 0, len(tool.Params))
		for _, p := range tool.Params {
			props[p.Name] = map[string]any{"type": "string", "description": p.Description}
			required = append(required, p.Name)
		}
		schema := map[string]any{
			"type":       "object",
			"properties": props,
			"required":   required,
		}
		specs = append(specs, &brtypes.ToolMemberToolSpec{Value: brtypes.ToolSpecification{
			Name:        aws.String(tool.Name),
			Description: aws.String(tool.Description),
			InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
		}})
	}
	return &brtypes.ToolConfiguration{Tools: specs}
}

func bedrockResponse(out *bedrockruntime.ConverseOutput) (Response, error) {
	if out == nil {
		return nil, fmt.Errorf("%w: bedrock response is nil", ErrEmptyResponse)
	}
	msgOut, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok || len(msgOut.Value.Content) == 0 {
		return nil, fmt.Errorf("%w: bedrock response did not include a message", ErrEmptyResponse)
	}

	var builder strings.Builder
	for _, block := range msgOut.Value.Content {
		switch b := block.(type) {
		case *brtypes.ContentBlockMemberToolUse:
			raw := map[string]any{}
			if b.Value.Input != nil {
				if err := b.Value.Input.UnmarshalSmithyDocument(&raw); err != nil {
					return nil, fmt.Errorf("llm: decode bedrock tool input: %w", err)
				}
			}
			return ActionInvocation{Name: aws.ToString(b.Value.Name), Args: stringArgs(raw)}, nil
		case *brtypes.ContentBlockMemberText:
			builder.WriteString(b.Value)
		}
	}
	text := strings.TrimSpace(builder.String())
	if text == "" {
		return nil, fmt.Errorf("%w: bedrock response contained no text", ErrEmptyResponse)
	}
	return PlainText{Text: text}, nil
}
