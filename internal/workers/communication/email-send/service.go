package emailsend

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"candidate-notifier/internal/common/errors"
	"candidate-notifier/internal/common/logger"
	"candidate-notifier/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/smithy-go"
	"github.com/wneessen/go-mail"
)

// SES error codes tied to one recipient or message. Account-wide failures
// such as AccountSendingPausedException stay retryable.
var sesPermanentCodes = map[string]bool{
	"MessageRejected":       true,
	"InvalidParameterValue": true,
}

// Service delivers email through SES or SMTP.
type Service struct {
	config *Config
	logger logger.Logger
	ses    SESService
	mailer MailClient
}

func NewService(deps ServiceDependencies, cfg *Config) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid email config: %w", err)
	}

	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	s := &Service{
		config: cfg,
		logger: log.WithFields(map[string]interface{}{"provider": cfg.Provider}),
		ses:    deps.SES,
		mailer: deps.Mailer,
	}

	switch cfg.Provider {
	case ProviderSES:
		if s.ses == nil {
			return nil, fmt.Errorf("ses client is required for provider %q", cfg.Provider)
		}
	case ProviderSMTP:
		if s.mailer == nil {
			client, err := newMailClient(cfg)
			if err != nil {
				return nil, err
			}
			s.mailer = client
		}
	}

	return s, nil
}

func newMailClient(cfg *Config) (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.SMTPPort),
		mail.WithTimeout(cfg.Timeout),
	}
	if cfg.SMTPUsername != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.SMTPUsername),
			mail.WithPassword(cfg.SMTPPassword),
		)
	}
	if cfg.UseTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	client, err := mail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}
	return client, nil
}

func (s *Service) Name() string {
	return s.config.Provider
}

func (s *Service) Channel() models.Channel {
	return models.ChannelEmail
}

// Send delivers msg. Returned errors are *errors.StandardError with the
// retryable flag set for transient provider failures.
func (s *Service) Send(ctx context.Context, msg *models.Message) (*models.DeliveryReceipt, error) {
	if msg == nil || msg.To == "" {
		return nil, errors.NewInvalidEmailError("")
	}

	s.logger.Debug("sending email", map[string]interface{}{
		"applicationId": msg.Application,
		"subject":       msg.Subject,
	})

	var (
		messageID string
		err       error
	)
	switch s.config.Provider {
	case ProviderSMTP:
		messageID, err = s.sendSMTP(ctx, msg)
	default:
		messageID, err = s.sendSES(ctx, msg)
	}
	if err != nil {
		return nil, err
	}

	return &models.DeliveryReceipt{
		Provider:  s.config.Provider,
		MessageID: messageID,
		SentAt:    time.Now().UTC(),
	}, nil
}

func (s *Service) sendSES(ctx context.Context, msg *models.Message) (string, error) {
	input := &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(msg.Body), Charset: aws.String("UTF-8")},
			},
		},
		Source: aws.String(s.config.FromEmail),
	}
	if msg.TextBody != "" {
		input.Message.Body.Text = &types.Content{Data: aws.String(msg.TextBody), Charset: aws.String("UTF-8")}
	}
	if s.config.ReplyToEmail != "" {
		input.ReplyToAddresses = []string{s.config.ReplyToEmail}
	}

	out, err := s.ses.SendEmail(ctx, input)
	if err != nil {
		return "", classifySESError(err)
	}
	return aws.ToString(out.MessageId), nil
}

func (s *Service) sendSMTP(ctx context.Context, msg *models.Message) (string, error) {
	m, err := s.buildMailMessage(msg)
	if err != nil {
		return "", err
	}

	if err := s.mailer.DialAndSendWithContext(ctx, m); err != nil {
		return "", classifySMTPError(err)
	}
	return m.GetMessageID(), nil
}

func (s *Service) buildMailMessage(msg *models.Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(s.config.FromEmail); err != nil {
		return nil, errors.NewProviderError(ProviderSMTP, fmt.Errorf("invalid from address: %w", err))
	}
	if err := m.To(msg.To); err != nil {
		return nil, errors.NewInvalidEmailError(msg.To)
	}
	if s.config.ReplyToEmail != "" {
		if err := m.ReplyTo(s.config.ReplyToEmail); err != nil {
			return nil, errors.NewProviderError(ProviderSMTP, fmt.Errorf("invalid reply-to address: %w", err))
		}
	}

	m.Subject(msg.Subject)
	m.SetMessageID()
	m.SetDate()

	if msg.TextBody != "" {
		m.SetBodyString(mail.TypeTextPlain, msg.TextBody)
		m.AddAlternativeString(mail.TypeTextHTML, msg.Body)
	} else {
		m.SetBodyString(mail.TypeTextHTML, msg.Body)
	}
	return m, nil
}

func classifySESError(err error) error {
	if errors.IsTimeout(err) {
		return errors.NewProviderTimeoutError(ProviderSES, err)
	}
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) && sesPermanentCodes[apiErr.ErrorCode()] {
		return errors.NewProviderRejectedError(ProviderSES, err)
	}
	return errors.NewProviderError(ProviderSES, err)
}

func classifySMTPError(err error) error {
	if errors.IsTimeout(err) {
		return errors.NewProviderTimeoutError(ProviderSMTP, err)
	}
	var sendErr *mail.SendError
	if stderrors.As(err, &sendErr) && sendErr.Reason == mail.ErrSMTPRcptTo && !sendErr.IsTemp() {
		return errors.NewProviderRejectedError(ProviderSMTP, err)
	}
	return errors.NewProviderError(ProviderSMTP, err)
}
