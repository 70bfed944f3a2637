// internal/common/aws/session.go
package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
)

// Options controls how the shared AWS configuration is loaded.
type Options struct {
	Region string
	// Endpoint overrides service endpoints, e.g. for localstack.
	Endpoint   string
	HTTPClient config.HTTPClient
}

// LoadConfig resolves credentials from the default chain.
func LoadConfig(ctx context.Context, opts Options) (awssdk.Config, error) {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(opts.Region),
	}

	if opts.HTTPClient != nil {
		loadOpts = append(loadOpts, config.WithHTTPClient(opts.HTTPClient))
	}

	if opts.Endpoint != "" {
		endpoint := opts.Endpoint
		resolver := awssdk.EndpointResolverWithOptionsFunc(
			func(service, region string, _ ...interface{}) (awssdk.Endpoint, error) {
				return awssdk.Endpoint{
					URL:               endpoint,
					HostnameImmutable: true,
					SigningRegion:     region,
				}, nil
			},
		)
		loadOpts = append(loadOpts, config.WithEndpointResolverWithOptions(resolver))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return awssdk.Config{}, fmt.Errorf("failed to load aws config: %w", err)
	}
	return cfg, nil
}
