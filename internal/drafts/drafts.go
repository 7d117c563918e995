// Package drafts turns a recipient and a free-form intent into candidate
// emails using a generative-text provider.
package drafts

import (
	"errors"
	"fmt"
)

// ExpectedCount is how many variants the prompt asks for.
const ExpectedCount = 3

// Styles lists the variant labels in prompt order.
var Styles = [ExpectedCount]string{"professional", "friendly", "concise"}

// ErrGeneration matches any *GenerationError via errors.Is.
var ErrGeneration = errors.New("drafts: generation failed")

// Draft is one subject+body candidate. Index is 1-based.
type Draft struct {
	Index   int    `json:"index"`
	Style   string `json:"style,omitempty"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// GenerationError reports that no usable drafts (or no usable action) came
// back from the provider.
type GenerationError struct {
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("drafts: %s: %v", e.Reason, e.Err)
	}
	return "drafts: " + e.Reason
}

func (e *GenerationError) Unwrap() error { return e.Err }

func (e *GenerationError) Is(target error) bool { return target == ErrGeneration }

func generationError(reason string, err error) error {
	return &GenerationError{Reason: reason, Err: err}
}

func styleFor(index int) string {
	if index < 1 || index > len(Styles) {
		return ""
	}
	return Styles[index-1]
}
