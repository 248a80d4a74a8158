package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// ConfigOptions selects how the AWS configuration is loaded.
type ConfigOptions struct {
	Region string
	// Endpoint overrides every service endpoint, e.g. a localstack URL.
	Endpoint string
	// AccessKeyID and SecretAccessKey, when set, replace the default
	// credential chain with static credentials.
	AccessKeyID     string
	SecretAccessKey string
}

// LoadConfig loads the AWS configuration using the default chain
// (environment variables, shared config, IAM role) adjusted by opts.
func LoadConfig(ctx context.Context, opts ConfigOptions) (aws.Config, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.Endpoint != "" {
		loadOpts = append(loadOpts, config.WithBaseEndpoint(opts.Endpoint))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}
	return cfg, nil
}
