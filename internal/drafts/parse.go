package drafts

import (
	"strings"
	"unicode/utf8"
)

const maxSubjectRunes = 80

// Parse splits raw provider output into at most ExpectedCount drafts.
// Segments are trimmed, empty ones dropped, and indices assigned by position
// among the kept segments. A segment without a "Subject:" line gets a subject
// derived from the intent. It returns nil when nothing usable remains.
func Parse(raw, intent string) []Draft {
	var out []Draft
	for _, segment := range strings.Split(raw, Delimiter) {
		if len(out) == ExpectedCount {
			break
		}
		subject, body := splitSegment(segment)
		if body == "" {
			continue
		}
		if subject == "" {
			subject = FallbackSubject(intent)
		}
		index := len(out) + 1
		out = append(out, Draft{
			Index:   index,
			Style:   styleFor(index),
			Subject: subject,
			Body:    body,
		})
	}
	return out
}

// FallbackSubject derives a subject line from the user's intent.
func FallbackSubject(intent string) string {
	intent = strings.Join(strings.Fields(intent), " ")
	if intent == "" {
		return "(no subject)"
	}
	return truncateRunes("Re: "+intent, maxSubjectRunes)
}

func splitSegment(segment string) (subject, body string) {
	lines := strings.Split(strings.ReplaceAll(strings.TrimSpace(segment), "\r\n", "\n"), "\n")

	// Drop a leading style label such as "Professional:" or "**Version 2**".
	if len(lines) > 0 && isStyleLabel(lines[0]) {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	if len(lines) > 0 {
		if s, ok := subjectLine(lines[0]); ok {
			subject = s
			lines = lines[1:]
		}
	}
	return subject, strings.TrimSpace(strings.Join(lines, "\n"))
}

func subjectLine(line string) (string, bool) {
	clean := stripEmphasis(line)
	if len(clean) < len("subject:") || !strings.EqualFold(clean[:len("subject:")], "subject:") {
		return "", false
	}
	return truncateRunes(strings.TrimSpace(stripEmphasis(clean[len("subject:"):])), maxSubjectRunes), true
}

func isStyleLabel(line string) bool {
	clean := strings.ToLower(strings.TrimSuffix(stripEmphasis(line), ":"))
	clean = strings.TrimSpace(clean)
	for _, style := range Styles {
		if clean == style {
			return true
		}
	}
	return strings.HasPrefix(clean, "version ") && len(clean) <= len("version 10")
}

func stripEmphasis(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "*_#"))
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit-1])) + "…"
}
