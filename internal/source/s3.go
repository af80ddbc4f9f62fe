package source

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/frame"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/s3io"
)

// S3API is the slice of the S3 client the reader uses.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3 reads datasets stored in S3.
type S3 struct {
	api S3API
}

// NewS3 builds a reader on the ambient AWS configuration.
func NewS3(ctx context.Context) (*S3, error) {
	client, err := s3io.New(ctx, s3io.FromEnv())
	if err != nil {
		return nil, err
	}
	return &S3{api: client}, nil
}

// NewS3WithClient builds a reader over an existing client.
func NewS3WithClient(api S3API) *S3 {
	return &S3{api: api}
}

// ListKeys resolves uri to the object keys it covers. A uri naming an
// object returns exactly that key; a prefix returns the objects under
// it, descending into sub-prefixes only when nested is true.
func (s *S3) ListKeys(ctx context.Context, uri string, nested bool) ([]string, error) {
	bucket, key, err := s3io.ParseURI(uri)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimSuffix(key, "/")

	var keys []string
	var token *string
	for {
		page, err := s.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("s3: list %s: %w", uri, err)
		}
		for _, obj := range page.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
		if !aws.ToBool(page.IsTruncated) {
			break
		}
		token = page.NextContinuationToken
	}

	for _, k := range keys {
		if k == prefix {
			return []string{k}, nil
		}
	}

	dir := ""
	if prefix != "" {
		dir = prefix + "/"
	}
	var out []string
	for _, k := range keys {
		if strings.HasSuffix(k, "/") {
			continue
		}
		rel, ok := strings.CutPrefix(k, dir)
		if !ok {
			continue
		}
		if !nested && strings.Contains(rel, "/") {
			continue
		}
		out = append(out, k)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("s3: no objects under %s", uri)
	}
	sort.Strings(out)
	return out, nil
}

// Open fetches one object for reading. The caller owns the returned
// body.
func (s *S3) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3: get s3://%s/%s: %w", bucket, key, err)
	}
	return out.Body, nil
}

// ReadURI loads every object uri covers and stacks them into one
// frame. With filenameColumn each object contributes a column
// recording its own URI. The second return value counts stored bytes
// read.
func (s *S3) ReadURI(ctx context.Context, uri string, nested, filenameColumn bool, opts Options) (*frame.Frame, int64, error) {
	bucket, _, err := s3io.ParseURI(uri)
	if err != nil {
		return nil, 0, err
	}
	keys, err := s.ListKeys(ctx, uri, nested)
	if err != nil {
		return nil, 0, err
	}

	var frames []*frame.Frame
	var read int64
	for _, key := range keys {
		body, err := s.Open(ctx, bucket, key)
		if err != nil {
			return nil, read, err
		}
		cr := &countReader{r: body}
		f, err := Read(cr, key, opts)
		closeErr := body.Close()
		read += cr.n
		if err != nil {
			return nil, read, fmt.Errorf("s3: read s3://%s/%s: %w", bucket, key, err)
		}
		if closeErr != nil {
			return nil, read, closeErr
		}
		if filenameColumn {
			f = AddFilename(f, fmt.Sprintf("s3://%s/%s", bucket, key))
		}
		frames = append(frames, f)
	}
	f, err := Concat(frames)
	return f, read, err
}

type countReader struct {
	r io.Reader
	n int64
}

func (c *countReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
