package emailsend

import (
	"context"

	"candidate-notifier/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/wneessen/go-mail"
)

type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// MailClient is the subset of *mail.Client used for SMTP delivery.
type MailClient interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type ServiceDependencies struct {
	Logger logger.Logger
	SES    SESService
	// Mailer overrides the SMTP client built from Config.
	Mailer MailClient
}
