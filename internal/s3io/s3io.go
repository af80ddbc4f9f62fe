// Package s3io builds the S3 client shared by the S3 source and the
// S3 destination.
package s3io

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Config selects how the client reaches S3. The zero value uses the
// default AWS credential chain and the real S3 endpoint.
type Config struct {
	Region    string
	AccessKey string
	SecretKey string

	// Endpoint points the client at an S3-compatible store (minio,
	// localstack). Path-style addressing is switched on with it.
	Endpoint string
}

// FromEnv reads the client configuration from the process environment.
// S3_ENDPOINT, S3_ACCESS_KEY and S3_SECRET_KEY cover S3-compatible
// stores with their own credentials; AWS_REGION and the rest of the
// standard AWS variables keep working through the default chain.
func FromEnv() Config {
	return Config{
		Region:    os.Getenv("AWS_REGION"),
		AccessKey: os.Getenv("S3_ACCESS_KEY"),
		SecretKey: os.Getenv("S3_SECRET_KEY"),
		Endpoint:  os.Getenv("S3_ENDPOINT"),
	}
}

// New builds an S3 client for cfg.
func New(ctx context.Context, cfg Config) (*s3.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}
	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(awsCfg, clientOpts...), nil
}

// ParseURI splits an s3://bucket/key URI into its bucket and key.
func ParseURI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("s3: uri %q must start with s3://", uri)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("s3: uri %q has no bucket", uri)
	}
	return bucket, key, nil
}
