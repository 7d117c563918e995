package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	msgmail "github.com/emersion/go-message/mail"
	"github.com/google/uuid"

	"github.com/wolfman30/ai-mail-assistant/pkg/logging"
)

// SMTPConfig holds relay settings. Addr defaults to Gmail's submission port.
type SMTPConfig struct {
	Addr     string
	Username string
	Password string
	From     string
	FromName string
}

// smtpTransport performs one SMTP transaction.
type smtpTransport func(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender relays mail through an authenticated SMTP server.
type SMTPSender struct {
	cfg      SMTPConfig
	host     string
	logger   *logging.Logger
	now      func() time.Time
	transmit smtpTransport
}

func NewSMTPSender(cfg SMTPConfig, logger *logging.Logger) (*SMTPSender, error) {
	if cfg.Addr == "" {
		cfg.Addr = "smtp.gmail.com:587"
	}
	if !strings.Contains(cfg.Addr, ":") {
		cfg.Addr += ":587"
	}
	host, _, err := net.SplitHostPort(cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("mail: invalid smtp address %q: %w", cfg.Addr, err)
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.From == "" {
		return nil, errors.New("mail: smtp sender address is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SMTPSender{
		cfg:      cfg,
		host:     host,
		logger:   logger,
		now:      time.Now,
		transmit: dialAndSend,
	}, nil
}

func (s *SMTPSender) Name() string { return "smtp" }

func (s *SMTPSender) Send(ctx context.Context, msg Message) (Receipt, error) {
	messageID := uuid.NewString() + "@" + s.host
	raw, err := s.compose(msg, messageID)
	if err != nil {
		return Receipt{}, sendError(s.Name(), KindRejected, err)
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.host)
	}
	if err := s.transmit(ctx, s.cfg.Addr, auth, s.cfg.From, []string{msg.To}, raw); err != nil {
		return Receipt{}, sendError(s.Name(), classifySMTP(err), err)
	}

	return Receipt{ID: messageID, Provider: s.Name(), AcceptedAt: s.now().UTC()}, nil
}

func (s *SMTPSender) compose(msg Message, messageID string) ([]byte, error) {
	var h msgmail.Header
	h.SetDate(s.now())
	h.SetAddressList("From", []*msgmail.Address{{Name: s.cfg.FromName, Address: s.cfg.From}})
	h.SetAddressList("To", []*msgmail.Address{{Address: msg.To}})
	h.SetSubject(msg.Subject)
	h.SetMessageID(messageID)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := msgmail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("mail: compose message: %w", err)
	}
	if _, err := w.Write([]byte(msg.Body)); err != nil {
		return nil, fmt.Errorf("mail: write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("mail: close body: %w", err)
	}
	return buf.Bytes(), nil
}

// dialAndSend is smtp.SendMail with the dial and deadline bound to ctx.
func dialAndSend(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	host, _, _ := net.SplitHostPort(addr)

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}); err != nil {
			return err
		}
	}
	if auth != nil {
		if err := c.Auth(auth); err != nil {
			return err
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func classifySMTP(err error) ErrorKind {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		switch {
		case tpErr.Code == 530 || tpErr.Code == 534 || tpErr.Code == 535:
			return KindAuth
		case tpErr.Code >= 500:
			return KindRejected
		case tpErr.Code >= 400:
			return KindTransient
		}
		return KindUnknown
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}
	if strings.Contains(err.Error(), "unencrypted connection") {
		return KindAuth
	}
	return classifyContext(err)
}
