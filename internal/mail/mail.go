// Package mail delivers approved drafts through a single configured transport.
package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	msgmail "github.com/emersion/go-message/mail"

	"github.com/wolfman30/ai-mail-assistant/pkg/logging"
)

// ErrSend matches any *SendError via errors.Is.
var ErrSend = errors.New("mail: send failed")

// ErrorKind classifies a transport failure.
type ErrorKind string

const (
	KindAuth      ErrorKind = "auth"
	KindRejected  ErrorKind = "rejected"
	KindTransient ErrorKind = "transient"
	KindUnknown   ErrorKind = "unknown"
)

// SendError reports a failed dispatch.
type SendError struct {
	Kind     ErrorKind
	Provider string
	Err      error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("mail: %s send failed (%s): %v", e.Provider, e.Kind, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

func (e *SendError) Is(target error) bool { return target == ErrSend }

// Retryable reports whether the same message may succeed if sent again.
func (e *SendError) Retryable() bool {
	return e.Kind == KindTransient || e.Kind == KindUnknown
}

func sendError(provider string, kind ErrorKind, err error) *SendError {
	return &SendError{Kind: kind, Provider: provider, Err: err}
}

// Message is a single plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Receipt confirms the transport accepted a message.
type Receipt struct {
	ID         string    `json:"id"`
	Provider   string    `json:"provider"`
	AcceptedAt time.Time `json:"accepted_at"`
}

// Sender is one concrete transport (SMTP, SES, SendGrid, stub).
// Implementations return *SendError on failure.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg Message) (Receipt, error)
}

// Dispatcher validates a message and hands it to its Sender exactly once.
type Dispatcher struct {
	sender  Sender
	timeout time.Duration
	logger  *logging.Logger
	now     func() time.Time
}

func NewDispatcher(sender Sender, timeout time.Duration, logger *logging.Logger) *Dispatcher {
	if sender == nil {
		panic("mail: sender cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		sender:  sender,
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}
}

// Provider names the underlying transport.
func (d *Dispatcher) Provider() string { return d.sender.Name() }

// Send delivers one email. Invalid input is reported as a rejected SendError
// without touching the transport.
func (d *Dispatcher) Send(ctx context.Context, recipient, subject, body string) (Receipt, error) {
	recipient = strings.TrimSpace(recipient)
	if _, err := msgmail.ParseAddress(recipient); err != nil {
		return Receipt{}, sendError(d.sender.Name(), KindRejected, fmt.Errorf("invalid recipient %q: %w", recipient, err))
	}
	if strings.TrimSpace(subject) == "" || strings.TrimSpace(body) == "" {
		return Receipt{}, sendError(d.sender.Name(), KindRejected, errors.New("subject and body are required"))
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	receipt, err := d.sender.Send(ctx, Message{To: recipient, Subject: subject, Body: body})
	if err != nil {
		var se *SendError
		if !errors.As(err, &se) {
			se = sendError(d.sender.Name(), classifyContext(err), err)
		}
		d.logger.Error("email dispatch failed", "provider", se.Provider, "kind", string(se.Kind), "to", recipient, "error", se.Err)
		return Receipt{}, se
	}
	if receipt.Provider == "" {
		receipt.Provider = d.sender.Name()
	}
	if receipt.AcceptedAt.IsZero() {
		receipt.AcceptedAt = d.now().UTC()
	}
	d.logger.Info("email dispatched", "provider", receipt.Provider, "to", recipient, "subject", subject, "message_id", receipt.ID)
	return receipt, nil
}

// classifyContext maps errors that carry no transport detail.
func classifyContext(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTransient
	}
	return KindUnknown
}
