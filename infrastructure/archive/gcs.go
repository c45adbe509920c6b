package archive

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSUploader writes one object to Google Cloud Storage.
type GCSUploader interface {
	Upload(ctx context.Context, bucket, object string, body io.Reader, meta Metadata) error
	Close() error
}

// GCSConfig configures the GCS sink.
type GCSConfig struct {
	// CredentialsFile is a service account JSON file. Empty uses
	// Application Default Credentials.
	CredentialsFile string
}

// GCSSink writes archive objects to a GCS bucket.
type GCSSink struct {
	client GCSUploader
	bucket string
}

// NewGCSSink creates a GCS sink backed by the official client.
func NewGCSSink(ctx context.Context, bucket string, cfg GCSConfig) (*GCSSink, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return NewGCSSinkFromUploader(&storageUploader{client: client}, bucket), nil
}

// NewGCSSinkFromUploader creates a sink around an existing uploader.
func NewGCSSinkFromUploader(client GCSUploader, bucket string) *GCSSink {
	return &GCSSink{client: client, bucket: bucket}
}

// Name returns "gs".
func (s *GCSSink) Name() string { return "gs" }

// Put uploads body as an object.
func (s *GCSSink) Put(ctx context.Context, key string, body io.Reader, meta Metadata) error {
	return s.client.Upload(ctx, s.bucket, key, body, meta)
}

// Close closes the underlying client.
func (s *GCSSink) Close() error {
	return s.client.Close()
}

type storageUploader struct {
	client *storage.Client
}

func (u *storageUploader) Upload(ctx context.Context, bucket, object string, body io.Reader, meta Metadata) error {
	w := u.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = meta.ContentType
	w.ContentEncoding = meta.ContentEncoding
	w.Metadata = meta.Labels

	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize object: %w", err)
	}
	return nil
}

func (u *storageUploader) Close() error {
	return u.client.Close()
}
