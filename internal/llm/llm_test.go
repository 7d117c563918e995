package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/ai-mail-assistant/pkg/logging"
)

type fakeConverse struct {
	out   *bedrockruntime.ConverseOutput
	err   error
	input *bedrockruntime.ConverseInput
}

func (f *fakeConverse) Converse(_ context.Context, params *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.input = params
	return f.out, f.err
}

func messageOutput(blocks ...brtypes.ContentBlock) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role:    brtypes.ConversationRoleAssistant,
			Content: blocks,
		}},
	}
}

type scriptedClient struct {
	resp  Response
	err   error
	calls int
}

func (s *scriptedClient) Complete(context.Context, Request) (Response, error) {
	s.calls++
	return s.resp, s.err
}

func TestBedrockClientPlainText(t *testing.T) {
	api := &fakeConverse{out: messageOutput(&brtypes.ContentBlockMemberText{Value: "  draft text  "})}
	client, err := NewBedrockClient(api, "anthropic.claude-3-haiku")
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), Request{System: "be brief", Prompt: "write", MaxTokens: 100, Temperature: 0.7})
	require.NoError(t, err)
	assert.Equal(t, PlainText{Text: "draft text"}, resp)

	require.NotNil(t, api.input)
	assert.Equal(t, "anthropic.claude-3-haiku", aws.ToString(api.input.ModelId))
	assert.Len(t, api.input.System, 1)
	assert.Nil(t, api.input.ToolConfig)
	require.NotNil(t, api.input.InferenceConfig)
	assert.Equal(t, int32(100), aws.ToInt32(api.input.InferenceConfig.MaxTokens))
}

func TestBedrockClientToolUse(t *testing.T) {
	api := &fakeConverse{out: messageOutput(
		&brtypes.ContentBlockMemberText{Value: "calling tool"},
		&brtypes.ContentBlockMemberToolUse{Value: brtypes.ToolUseBlock{
			Name:      aws.String("send_email"),
			ToolUseId: aws.String("t1"),
			Input: document.NewLazyDocument(map[string]any{
				"recipient": "a@b.com",
				"subject":   "Hello",
				"body":      "Body",
			}),
		}},
	)}
	client, err := NewBedrockClient(api, "model")
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), Request{
		Prompt:      "finalize",
		Temperature: -1,
		Tools: []Tool{{Name: "send_email", Params: []ToolParam{
			{Name: "recipient"}, {Name: "subject"}, {Name: "body"},
		}}},
	})
	require.NoError(t, err)
	action, ok := resp.(ActionInvocation)
	require.True(t, ok, "expected action invocation, got %T", resp)
	assert.Equal(t, "send_email", action.Name)
	assert.Equal(t, "a@b.com", action.Arg("recipient"))
	assert.Equal(t, "Hello", action.Arg("subject"))
	require.NotNil(t, api.input.ToolConfig)
	assert.Len(t, api.input.ToolConfig.Tools, 1)
	assert.Nil(t, api.input.InferenceConfig)
}

func TestBedrockClientErrors(t *testing.T) {
	_, err := NewBedrockClient(nil, "model")
	assert.Error(t, err)
	_, err = NewBedrockClient(&fakeConverse{}, " ")
	assert.Error(t, err)

	client, err := NewBedrockClient(&fakeConverse{err: errors.New("throttled")}, "model")
	require.NoError(t, err)
	_, err = client.Complete(context.Background(), Request{Prompt: "x"})
	assert.ErrorContains(t, err, "throttled")

	_, err = client.Complete(context.Background(), Request{Prompt: "  "})
	assert.Error(t, err)

	empty, err := NewBedrockClient(&fakeConverse{out: messageOutput(&brtypes.ContentBlockMemberText{Value: "  "})}, "model")
	require.NoError(t, err)
	_, err = empty.Complete(context.Background(), Request{Prompt: "x"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestGeminiResponse(t *testing.T) {
	text := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{genai.Text("part one "), genai.Text("part two")}},
	}}}
	resp, err := geminiResponse(text)
	require.NoError(t, err)
	assert.Equal(t, PlainText{Text: "part one part two"}, resp)

	call := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{
			genai.Text("sure"),
			genai.FunctionCall{Name: "send_email", Args: map[string]any{"recipient": "a@b.com", "count": 2.0, "skip": nil}},
		}},
	}}}
	resp, err = geminiResponse(call)
	require.NoError(t, err)
	action, ok := resp.(ActionInvocation)
	require.True(t, ok)
	assert.Equal(t, "a@b.com", action.Args["recipient"])
	assert.Equal(t, "2", action.Args["count"])
	_, present := action.Args["skip"]
	assert.False(t, present)

	_, err = geminiResponse(&genai.GenerateContentResponse{})
	assert.ErrorIs(t, err, ErrEmptyResponse)
	_, err = geminiResponse(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: &genai.Content{}}}})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestGeminiToolSchema(t *testing.T) {
	tool := geminiTool([]Tool{{Name: "send_email", Description: "send", Params: []ToolParam{{Name: "recipient"}, {Name: "body"}}}})
	require.Len(t, tool.FunctionDeclarations, 1)
	decl := tool.FunctionDeclarations[0]
	assert.Equal(t, "send_email", decl.Name)
	assert.Equal(t, genai.TypeObject, decl.Parameters.Type)
	assert.ElementsMatch(t, []string{"recipient", "body"}, decl.Parameters.Required)
	assert.Equal(t, genai.TypeString, decl.Parameters.Properties["body"].Type)
}

func TestNewGeminiClientRequiresKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), " ", "")
	assert.Error(t, err)
}

func TestFallbackClient(t *testing.T) {
	logger := logging.New("error")

	primary := &scriptedClient{resp: PlainText{Text: "primary"}}
	fallback := &scriptedClient{resp: PlainText{Text: "fallback"}}
	resp, err := NewFallbackClient(primary, fallback, logger).Complete(context.Background(), Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, PlainText{Text: "primary"}, resp)
	assert.Equal(t, 0, fallback.calls)

	primary = &scriptedClient{err: errors.New("down")}
	resp, err = NewFallbackClient(primary, fallback, logger).Complete(context.Background(), Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, PlainText{Text: "fallback"}, resp)

	_, err = NewFallbackClient(primary, nil, logger).Complete(context.Background(), Request{Prompt: "x"})
	assert.ErrorContains(t, err, "down")

	failing := &scriptedClient{err: errors.New("also down")}
	_, err = NewFallbackClient(primary, failing, logger).Complete(context.Background(), Request{Prompt: "x"})
	assert.ErrorContains(t, err, "also down")
}
