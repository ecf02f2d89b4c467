package fetch

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used by Stager.
type S3API interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Stager writes raw API payloads to the S3 staging area for the loader.
type Stager struct {
	client S3API
	bucket string
	prefix string
}

// StagerOption configures a Stager.
type StagerOption func(*Stager)

// WithS3Client sets a custom S3 client (useful for testing).
func WithS3Client(c S3API) StagerOption {
	return func(s *Stager) { s.client = c }
}

// NewStager creates an S3 stager.
func NewStager(bucket, prefix string, opts ...StagerOption) (*Stager, error) {
	if bucket == "" {
		return nil, fmt.Errorf("staging bucket required")
	}
	s := &Stager{
		bucket: bucket,
		prefix: strings.TrimRight(prefix, "/"),
	}
	for _, o := range opts {
		o(s)
	}
	if s.client == nil {
		cfg, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		s.client = s3.NewFromConfig(cfg)
	}
	return s, nil
}

// Stage writes a payload and returns its location.
// Key format: {prefix}/{target}/{symbol}/{unix_millis}.json
func (s *Stager) Stage(ctx context.Context, req Request, body []byte) (string, error) {
	key := fmt.Sprintf("%s/%s/%s/%d.json",
		s.prefix, req.Target, req.Symbol, time.Now().UnixMilli())
	key = strings.TrimLeft(key, "/")

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", Transient("stage payload", err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}
