package mail

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/ai-mail-assistant/pkg/logging"
)

// StubSender logs instead of sending. It remembers what it accepted so local
// runs and tests can inspect the outbox.
type StubSender struct {
	logger *logging.Logger

	mu   sync.Mutex
	sent []Message
}

func NewStubSender(logger *logging.Logger) *StubSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubSender{logger: logger}
}

func (s *StubSender) Name() string { return "stub" }

func (s *StubSender) Send(_ context.Context, msg Message) (Receipt, error) {
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()

	s.logger.Info("stub sender: would send email", "to", msg.To, "subject", msg.Subject)
	return Receipt{ID: uuid.NewString(), Provider: s.Name(), AcceptedAt: time.Now().UTC()}, nil
}

// Sent returns a copy of every accepted message.
func (s *StubSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}

var (
	_ Sender = (*StubSender)(nil)
	_ Sender = (*SMTPSender)(nil)
	_ Sender = (*SESSender)(nil)
	_ Sender = (*SendGridSender)(nil)
)
