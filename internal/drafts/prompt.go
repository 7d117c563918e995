package drafts

import (
	"fmt"
	"strings"
)

// Delimiter separates variants in the provider output. It is chosen so it
// does not occur in ordinary prose or markdown.
const Delimiter = "<<<DRAFT_BREAK>>>"

const systemPrompt = `You are a professional email writing assistant. You write complete, ready to send emails.
Never add commentary before or after the emails.`

const draftPromptTemplate = `Write %d different versions of an email to %s.
What the email should say: %s

Versions, in this order:
1. Professional: formal and precise.
2. Friendly: warm and approachable.
3. Concise: short and direct.

Format rules:
- Start every version with a single line "Subject: <subject>", then a blank line, then the body.
- Do not label the versions and do not number them.
- Put the line %s between consecutive versions and nowhere else.`

// BuildPrompt renders the fixed draft prompt.
func BuildPrompt(recipient, intent string) string {
	return fmt.Sprintf(draftPromptTemplate, ExpectedCount, strings.TrimSpace(recipient), strings.TrimSpace(intent), Delimiter)
}

const finalizePromptTemplate = `The user approved the email below for %s.
Send it by calling send_email exactly once with the recipient, subject and body unchanged.

Subject: %s

%s`

func buildFinalizePrompt(recipient string, d Draft) string {
	return fmt.Sprintf(finalizePromptTemplate, recipient, d.Subject, d.Body)
}
