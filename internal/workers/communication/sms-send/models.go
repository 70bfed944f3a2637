package smssend

import (
	"context"

	"candidate-notifier/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/service/sns"
)

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type ServiceDependencies struct {
	Logger logger.Logger
	SNS    SNSService
}
