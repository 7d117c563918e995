// Package conversation runs the per-user drafting dialogue: it collects a
// recipient and an intent, offers generated drafts and dispatches the one the
// user picks.
package conversation

import (
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/ai-mail-assistant/internal/drafts"
)

// Phase is the dialogue position of one user.
type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhaseAwaitingRecipient Phase = "awaiting_recipient"
	PhaseAwaitingIntent    Phase = "awaiting_intent"
	PhaseAwaitingSelection Phase = "awaiting_selection"
)

func (p Phase) valid() bool {
	switch p {
	case PhaseIdle, PhaseAwaitingRecipient, PhaseAwaitingIntent, PhaseAwaitingSelection:
		return true
	}
	return false
}

// State is everything remembered about one user between messages. A missing
// State is equivalent to an idle one.
type State struct {
	Identifier     string         `json:"identifier"`
	Phase          Phase          `json:"phase"`
	Recipient      string         `json:"recipient,omitempty"`
	Intent         string         `json:"intent,omitempty"`
	Drafts         []drafts.Draft `json:"drafts,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	LastActivityAt time.Time      `json:"last_activity_at"`
}

func newState(identifier string, now time.Time) State {
	return State{
		Identifier:     identifier,
		Phase:          PhaseIdle,
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

// Validate reports the first violated invariant, if any.
func (s State) Validate() error {
	if s.Identifier == "" {
		return errors.New("conversation: state has no identifier")
	}
	if !s.Phase.valid() {
		return fmt.Errorf("conversation: unknown phase %q", s.Phase)
	}

	hasRecipient := s.Recipient != ""
	switch s.Phase {
	case PhaseIdle, PhaseAwaitingRecipient:
		if hasRecipient || s.Intent != "" || len(s.Drafts) > 0 {
			return fmt.Errorf("conversation: %s state carries draft data", s.Phase)
		}
	case PhaseAwaitingIntent:
		if !hasRecipient {
			return errors.New("conversation: awaiting_intent without recipient")
		}
		if len(s.Drafts) > 0 {
			return errors.New("conversation: drafts present before selection")
		}
	case PhaseAwaitingSelection:
		if !hasRecipient {
			return errors.New("conversation: awaiting_selection without recipient")
		}
		if len(s.Drafts) == 0 {
			return errors.New("conversation: awaiting_selection without drafts")
		}
	}
	return nil
}

// reset returns the state to idle, dropping all collected data.
func (s *State) reset() {
	s.Phase = PhaseIdle
	s.Recipient = ""
	s.Intent = ""
	s.Drafts = nil
}

func (s State) clone() State {
	if s.Drafts != nil {
		s.Drafts = append([]drafts.Draft(nil), s.Drafts...)
	}
	return s
}

// InputValidationError is a user message that does not fit the current phase.
// It never mutates state.
type InputValidationError struct {
	Phase  Phase
	Reason string
}

func (e *InputValidationError) Error() string {
	return fmt.Sprintf("conversation: invalid input in %s: %s", e.Phase, e.Reason)
}
