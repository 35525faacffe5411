package preflight

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ClientConfig carries the candidate connection values for the probe,
// the same ones the provisioned secret will hold.
type ClientConfig struct {
	// Endpoint is the S3 endpoint URL. Required for S3-compatible
	// stores; leave empty for AWS S3.
	Endpoint string

	// Region is the S3 region.
	Region string

	// AccessKeyID and SecretAccessKey are the candidate credentials.
	AccessKeyID     string
	SecretAccessKey string

	// SessionToken is set for temporary credentials, empty otherwise.
	SessionToken string

	// ForcePathStyle forces path-style addressing, required by most
	// S3-compatible stores.
	ForcePathStyle bool
}

// NewClient builds an S3 client from explicit candidate credentials.
//
// Unlike a normal SDK client this never falls back to the ambient
// credential chain: the probe must see exactly the credentials the
// workload will receive, or its verdict is meaningless.
func NewClient(ctx context.Context, cfg ClientConfig) (*s3.Client, error) {
	staticCreds := credentials.NewStaticCredentialsProvider(
		cfg.AccessKeyID,
		cfg.SecretAccessKey,
		cfg.SessionToken,
	)

	opts := []func(*config.LoadOptions) error{
		config.WithCredentialsProvider(staticCreds),
	}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	s3Opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}
		},
	}
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return s3.NewFromConfig(awsCfg, s3Opts...), nil
}
