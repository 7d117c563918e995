// Package llm talks to generative-text providers. Provider output is returned
// as a Response sum type so callers never guess its shape from field presence.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyResponse is returned when a provider answers with nothing usable.
var ErrEmptyResponse = errors.New("llm: provider returned no content")

// Tool declares an action the provider may invoke instead of answering in text.
// Every parameter is a required string.
type Tool struct {
	Name        string
	Description string
	Params      []ToolParam
}

// ToolParam is one string argument of a Tool.
type ToolParam struct {
	Name        string
	Description string
}

// Request is a single-prompt completion request.
type Request struct {
	System      string
	Prompt      string
	Tools       []Tool
	MaxTokens   int32
	Temperature float32 // negative leaves the provider default
}

// Response is either PlainText or ActionInvocation.
type Response interface {
	isResponse()
}

// PlainText is a free-form text answer.
type PlainText struct {
	Text string
}

// ActionInvocation is a structured call of one declared Tool.
type ActionInvocation struct {
	Name string
	Args map[string]string
}

func (PlainText) isResponse()        {}
func (ActionInvocation) isResponse() {}

// Arg returns the trimmed value of a named argument.
func (a ActionInvocation) Arg(name string) string {
	return strings.TrimSpace(a.Args[name])
}

// Client is implemented by every provider.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

func (r Request) validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return errors.New("llm: prompt is required")
	}
	for _, tool := range r.Tools {
		if strings.TrimSpace(tool.Name) == "" {
			return errors.New("llm: tool name is required")
		}
	}
	return nil
}

// stringArgs flattens decoded tool arguments into strings.
func stringArgs(raw map[string]any) map[string]string {
	args := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			args[k] = val
		default:
			args[k] = fmt.Sprint(val)
		}
	}
	return args
}
