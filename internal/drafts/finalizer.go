package drafts

import (
	"context"
	"strings"

	"github.com/wolfman30/ai-mail-assistant/internal/llm"
)

// SendEmailTool is the action the provider is offered when finalizing.
var SendEmailTool = llm.Tool{
	Name:        "send_email",
	Description: "Send the approved email to the recipient.",
	Params: []llm.ToolParam{
		{Name: "recipient", Description: "Email address of the recipient."},
		{Name: "subject", Description: "Subject line of the email."},
		{Name: "body", Description: "Plain text body of the email."},
	},
}

// Action is a validated send_email invocation.
type Action struct {
	Recipient string
	Subject   string
	Body      string
}

// Finalizer asks the provider to turn an approved draft into a structured
// send_email invocation.
type Finalizer struct {
	client llm.Client
}

func NewFinalizer(client llm.Client) *Finalizer {
	if client == nil {
		panic("drafts: llm client cannot be nil")
	}
	return &Finalizer{client: client}
}

// Finalize returns the action to dispatch. Plain text, a different action,
// missing fields or a recipient other than the approved one are all
// reported as *GenerationError.
func (f *Finalizer) Finalize(ctx context.Context, recipient string, d Draft) (Action, error) {
	resp, err := f.client.Complete(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      buildFinalizePrompt(recipient, d),
		Tools:       []llm.Tool{SendEmailTool},
		Temperature: 0,
	})
	if err != nil {
		return Action{}, generationError("provider call failed", err)
	}

	call, ok := resp.(llm.ActionInvocation)
	if !ok {
		return Action{}, generationError("provider answered in text instead of calling send_email", nil)
	}
	if call.Name != SendEmailTool.Name {
		return Action{}, generationError("provider called unknown action "+call.Name, nil)
	}
	action := Action{
		Recipient: call.Arg("recipient"),
		Subject:   call.Arg("subject"),
		Body:      call.Arg("body"),
	}
	if action.Recipient == "" || action.Subject == "" || action.Body == "" {
		return Action{}, generationError("send_email invocation is missing fields", nil)
	}
	if !strings.EqualFold(action.Recipient, strings.TrimSpace(recipient)) {
		return Action{}, generationError("send_email invocation changed the recipient", nil)
	}
	return action, nil
}
