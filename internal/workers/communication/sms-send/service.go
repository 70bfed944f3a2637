package smssend

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"
	"unicode/utf8"

	"candidate-notifier/internal/common/errors"
	"candidate-notifier/internal/common/logger"
	"candidate-notifier/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/smithy-go"
	"golang.org/x/time/rate"
)

const providerName = "sns"

// SNS error codes tied to the destination number. Account and configuration
// failures (AuthorizationError, KMS*, quota) stay retryable.
var snsPermanentCodes = map[string]bool{
	"InvalidParameter":      true,
	"InvalidParameterValue": true,
	"OptedOut":              true,
}

// Service publishes SMS through SNS, throttled to the account's send rate.
type Service struct {
	config  *Config
	logger  logger.Logger
	sns     SNSService
	limiter *rate.Limiter
}

func NewService(deps ServiceDependencies, cfg *Config) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sms config: %w", err)
	}
	if deps.SNS == nil {
		return nil, fmt.Errorf("sns client is required")
	}

	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	burst := int(cfg.RatePerSecond)
	if burst < 1 {
		burst = 1
	}

	return &Service{
		config:  cfg,
		logger:  log.WithFields(map[string]interface{}{"provider": providerName}),
		sns:     deps.SNS,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst),
	}, nil
}

func (s *Service) Name() string {
	return providerName
}

func (s *Service) Channel() models.Channel {
	return models.ChannelSMS
}

// Send publishes msg.Body to msg.To, which must already be in E.164 form.
func (s *Service) Send(ctx context.Context, msg *models.Message) (*models.DeliveryReceipt, error) {
	if msg == nil || msg.To == "" {
		return nil, errors.NewNoContactError(string(models.ChannelSMS))
	}
	if n := utf8.RuneCountInString(msg.Body); n > MaxMessageLength {
		return nil, errors.NewPayloadTooLargeError(string(models.ChannelSMS), n, MaxMessageLength)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, errors.NewProviderTimeoutError(providerName, err)
	}

	out, err := s.sns.Publish(ctx, s.buildInput(msg))
	if err != nil {
		return nil, classifySNSError(err)
	}

	s.logger.Debug("sms published", map[string]interface{}{
		"applicationId": msg.Application,
		"messageId":     aws.ToString(out.MessageId),
	})

	return &models.DeliveryReceipt{
		Provider:  providerName,
		MessageID: aws.ToString(out.MessageId),
		SentAt:    time.Now().UTC(),
	}, nil
}

func (s *Service) buildInput(msg *models.Message) *sns.PublishInput {
	attrs := map[string]types.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {
			DataType:    aws.String("String"),
			StringValue: aws.String("Transactional"),
		},
	}
	if s.config.SenderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(s.config.SenderID),
		}
	}
	if s.config.OriginationNumber != "" {
		attrs["AWS.MM.SMS.OriginationNumber"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(s.config.OriginationNumber),
		}
	}

	return &sns.PublishInput{
		PhoneNumber:       aws.String(msg.To),
		Message:           aws.String(msg.Body),
		MessageAttributes: attrs,
	}
}

func classifySNSError(err error) error {
	if errors.IsTimeout(err) {
		return errors.NewProviderTimeoutError(providerName, err)
	}
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) && snsPermanentCodes[apiErr.ErrorCode()] {
		return errors.NewProviderRejectedError(providerName, err)
	}
	return errors.NewProviderError(providerName, err)
}
