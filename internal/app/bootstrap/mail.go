package bootstrap

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/wolfman30/ai-mail-assistant/internal/config"
	"github.com/wolfman30/ai-mail-assistant/internal/mail"
	"github.com/wolfman30/ai-mail-assistant/pkg/logging"
)

// BuildDispatcher creates the mail dispatcher for MAIL_PROVIDER.
func BuildDispatcher(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (*mail.Dispatcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	var (
		sender mail.Sender
		err    error
	)
	switch cfg.MailProvider {
	case "", "smtp":
		sender, err = mail.NewSMTPSender(mail.SMTPConfig{
			Addr:     cfg.SMTPAddr,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFromAddress,
			FromName: cfg.MailFromName,
		}, logger)
	case "ses":
		sender, err = mail.NewSESSender(sesv2.NewFromConfig(awsCfg), mail.SESConfig{
			FromEmail: cfg.MailFromAddress,
			FromName:  cfg.MailFromName,
		})
	case "sendgrid":
		sender, err = mail.NewSendGridSender(mail.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.MailFromAddress,
			FromName:  cfg.MailFromName,
		})
	case "stub":
		logger.Warn("using stub mail sender; nothing will be delivered")
		sender = mail.NewStubSender(logger)
	default:
		return nil, fmt.Errorf("bootstrap: unknown mail provider %q", cfg.MailProvider)
	}
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	logger.Info("mail provider configured", "provider", sender.Name(), "from", cfg.MailFromAddress)
	return mail.NewDispatcher(sender, cfg.MailTimeout, logger), nil
}
