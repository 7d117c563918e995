package conversation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/wolfman30/ai-mail-assistant/internal/drafts"
	"github.com/wolfman30/ai-mail-assistant/internal/mail"
)

const (
	replyAskRecipient     = "Who should receive the email? Please enter an email address."
	replyInvalidRecipient = "That doesn't look like a valid email address. Please enter something like name@example.com."
	replyAskIntentAgain   = "Please describe what the email should say."
	replyCancelled        = "Cancelled. Nothing was sent."
	replyGenerationFailed = "Sorry, I couldn't write drafts right now. Please start again later."
	replyFinalizeFailed   = "Sorry, I couldn't prepare that draft for sending. Please choose again or reply \"%s\"."
	replyInternalError    = "Sorry, something went wrong. Please try again."
)

func replyHelp(trigger string) string {
	return fmt.Sprintf("Hi! Send \"%s\" and I'll help you draft and send an email.", trigger)
}

func replyAskIntent(recipient, cancel string) string {
	return fmt.Sprintf("Got it, writing to %s. What should the email say? (Reply \"%s\" to stop.)", recipient, cancel)
}

func replySelectionHint(count int, cancel string) string {
	if count == 1 {
		return fmt.Sprintf("Reply 1 to send the draft, or \"%s\" to stop.", cancel)
	}
	return fmt.Sprintf("Reply with a number from 1 to %d to send that draft, or \"%s\" to stop.", count, cancel)
}

func replySent(subject, recipient string) string {
	return fmt.Sprintf("Sent \"%s\" to %s.", subject, recipient)
}

func replySendFailed(err *mail.SendError, cancel string) string {
	if err.Retryable() {
		return fmt.Sprintf("Sending failed, probably a temporary problem. Your drafts are kept; pick one to retry or reply \"%s\".", cancel)
	}
	switch err.Kind {
	case mail.KindAuth:
		return fmt.Sprintf("Sending failed: the mail account was refused. Your drafts are kept, but sending will keep failing until the mail settings are fixed. Reply \"%s\" to stop.", cancel)
	default:
		return fmt.Sprintf("Sending failed: the mail server rejected the message. Your drafts are kept; choose a different draft or reply \"%s\".", cancel)
	}
}

// renderDrafts lists every draft with a preview of its body.
func renderDrafts(recipient string, list []drafts.Draft, previewRunes int, cancel string) string {
	var b strings.Builder
	if len(list) < drafts.ExpectedCount {
		fmt.Fprintf(&b, "I could only write %d of %d drafts for %s:\n", len(list), drafts.ExpectedCount, recipient)
	} else {
		fmt.Fprintf(&b, "Here are %d drafts for %s:\n", len(list), recipient)
	}
	for _, d := range list {
		b.WriteString("\n")
		fmt.Fprintf(&b, "%d.", d.Index)
		if d.Style != "" {
			fmt.Fprintf(&b, " (%s)", d.Style)
		}
		fmt.Fprintf(&b, " Subject: %s\n%s\n", d.Subject, preview(d.Body, previewRunes))
	}
	b.WriteString("\n")
	b.WriteString(replySelectionHint(len(list), cancel))
	return b.String()
}

func preview(body string, limit int) string {
	body = strings.TrimSpace(body)
	if limit <= 0 || utf8.RuneCountInString(body) <= limit {
		return body
	}
	return strings.TrimSpace(string([]rune(body)[:limit])) + "..."
}
