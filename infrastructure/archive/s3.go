package archive

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used by S3Sink.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config configures the S3 sink.
type S3Config struct {
	Region          string
	Endpoint        string // S3-compatible endpoint such as MinIO
	AccessKeyID     string
	SecretAccessKey string
}

// S3Sink writes archive objects to an S3 bucket.
type S3Sink struct {
	api    S3API
	bucket string
}

// NewS3Sink creates an S3 sink. Without static keys the default AWS
// credential chain is used.
func NewS3Sink(ctx context.Context, bucket string, cfg S3Config) (*S3Sink, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return NewS3SinkFromAPI(s3.NewFromConfig(awsCfg, s3Opts...), bucket), nil
}

// NewS3SinkFromAPI creates a sink around an existing client.
func NewS3SinkFromAPI(api S3API, bucket string) *S3Sink {
	return &S3Sink{api: api, bucket: bucket}
}

// Name returns "s3".
func (s *S3Sink) Name() string { return "s3" }

// Put uploads body as an object.
func (s *S3Sink) Put(ctx context.Context, key string, body io.Reader, meta Metadata) error {
	in := &s3.PutObjectInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		Body:     body,
		Metadata: meta.Labels,
	}
	if meta.ContentType != "" {
		in.ContentType = aws.String(meta.ContentType)
	}
	if meta.ContentEncoding != "" {
		in.ContentEncoding = aws.String(meta.ContentEncoding)
	}

	if _, err := s.api.PutObject(ctx, in); err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// Close is a no-op.
func (s *S3Sink) Close() error { return nil }
