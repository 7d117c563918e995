package mail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

type sendgridAPI interface {
	SendWithContext(ctx context.Context, email *sgmail.SGMailV3) (*rest.Response, error)
}

// SendGridConfig holds configuration for SendGrid.
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// SendGridSender sends through the SendGrid v3 API.
type SendGridSender struct {
	client    sendgridAPI
	fromEmail string
	fromName  string
	now       func() time.Time
}

func NewSendGridSender(cfg SendGridConfig) (*SendGridSender, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("mail: sendgrid api key is required")
	}
	if cfg.FromEmail == "" {
		return nil, errors.New("mail: sendgrid sender address is required")
	}
	return &SendGridSender{
		client:    sendgrid.NewSendClient(cfg.APIKey),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		now:       time.Now,
	}, nil
}

func (s *SendGridSender) Name() string { return "sendgrid" }

func (s *SendGridSender) Send(ctx context.Context, msg Message) (Receipt, error) {
	from := sgmail.NewEmail(s.fromName, s.fromEmail)
	to := sgmail.NewEmail("", msg.To)
	message := sgmail.NewSingleEmailPlainText(from, msg.Subject, to, msg.Body)

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return Receipt{}, sendError(s.Name(), classifyContext(err), err)
	}
	if resp.StatusCode >= 300 {
		return Receipt{}, sendError(s.Name(), classifyStatus(resp.StatusCode), fmt.Errorf("status %d: %s", resp.StatusCode, resp.Body))
	}

	var id string
	if values := resp.Headers["X-Message-Id"]; len(values) > 0 {
		id = values[0]
	}
	return Receipt{ID: id, Provider: s.Name(), AcceptedAt: s.now().UTC()}, nil
}

func classifyStatus(code int) ErrorKind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindAuth
	case code == http.StatusTooManyRequests || code >= 500:
		return KindTransient
	case code >= 400:
		return KindRejected
	default:
		return KindUnknown
	}
}
