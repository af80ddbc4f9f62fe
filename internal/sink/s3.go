package sink

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/s3io"
)

// S3API is the slice of the S3 client the writer uses.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 writes objects to S3.
type S3 struct {
	api S3API
}

// NewS3 builds a writer on the ambient AWS configuration.
func NewS3(ctx context.Context) (*S3, error) {
	client, err := s3io.New(ctx, s3io.FromEnv())
	if err != nil {
		return nil, err
	}
	return &S3{api: client}, nil
}

// NewS3WithClient builds a writer over an existing client.
func NewS3WithClient(api S3API) *S3 {
	return &S3{api: api}
}

// Put uploads body to uri.
func (s *S3) Put(ctx context.Context, uri, contentType string, body []byte) error {
	bucket, key, err := s3io.ParseURI(uri)
	if err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("s3: uri %q has no object key", uri)
	}
	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3: put s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}
