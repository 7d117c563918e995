package mail

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/smithy-go"
)

type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESConfig holds the verified sender identity.
type SESConfig struct {
	FromEmail string
	FromName  string
}

// SESSender sends through AWS SES v2.
type SESSender struct {
	client    sesAPI
	fromEmail string
	fromName  string
	now       func() time.Time
}

func NewSESSender(client sesAPI, cfg SESConfig) (*SESSender, error) {
	if client == nil {
		return nil, errors.New("mail: ses client is required")
	}
	if cfg.FromEmail == "" {
		return nil, errors.New("mail: ses sender address is required")
	}
	return &SESSender{
		client:    client,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		now:       time.Now,
	}, nil
}

func (s *SESSender) Name() string { return "ses" }

func (s *SESSender) Send(ctx context.Context, msg Message) (Receipt, error) {
	from := s.fromEmail
	if s.fromName != "" {
		from = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(msg.Body), Charset: aws.String("UTF-8")},
				},
			},
		},
	})
	if err != nil {
		return Receipt{}, sendError(s.Name(), classifySES(err), err)
	}
	return Receipt{ID: aws.ToString(out.MessageId), Provider: s.Name(), AcceptedAt: s.now().UTC()}, nil
}

func classifySES(err error) ErrorKind {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDeniedException", "UnrecognizedClientException", "InvalidClientTokenId",
			"SignatureDoesNotMatch", "ExpiredTokenException", "MissingAuthenticationToken":
			return KindAuth
		case "MessageRejected", "MailFromDomainNotVerifiedException", "AccountSuspendedException",
			"SendingPausedException", "NotFoundException", "BadRequestException":
			return KindRejected
		case "TooManyRequestsException", "LimitExceededException", "Throttling", "ThrottlingException",
			"ServiceUnavailable", "InternalFailure":
			return KindTransient
		}
		if apiErr.ErrorFault() == smithy.FaultServer {
			return KindTransient
		}
		return KindUnknown
	}
	return classifyContext(err)
}
