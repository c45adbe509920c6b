package archive

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Target is a parsed archive destination.
type Target struct {
	// Scheme is one of file, s3, gs or azblob.
	Scheme string

	// Bucket is the bucket or container name. Empty for file targets.
	Bucket string

	// Prefix is the key prefix inside the bucket, or the directory for
	// file targets.
	Prefix string

	// Params holds the query parameters of the target URL.
	Params url.Values
}

// ParseTarget parses an archive URL. A bare path is treated as a file target.
func ParseTarget(raw string) (Target, error) {
	if raw == "" {
		return Target{}, fmt.Errorf("%w: empty target", ErrInvalidTarget)
	}
	if !strings.Contains(raw, "://") {
		return Target{Scheme: "file", Prefix: raw, Params: url.Values{}}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}

	t := Target{Scheme: u.Scheme, Params: u.Query()}
	switch u.Scheme {
	case "file":
		t.Prefix = u.Path
		if t.Prefix == "" {
			return Target{}, fmt.Errorf("%w: file target needs a path", ErrInvalidTarget)
		}
	case "s3", "gs", "azblob":
		t.Bucket = u.Host
		t.Prefix = strings.Trim(u.Path, "/")
		if t.Bucket == "" {
			return Target{}, fmt.Errorf("%w: %s target needs a bucket", ErrInvalidTarget, u.Scheme)
		}
	default:
		return Target{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidTarget, u.Scheme)
	}
	return t, nil
}

// Open creates the sink addressed by t.
func Open(ctx context.Context, t Target) (Sink, error) {
	switch t.Scheme {
	case "file":
		return NewFileSink(t.Prefix)
	case "s3":
		return NewS3Sink(ctx, t.Bucket, S3Config{
			Region:          t.Params.Get("region"),
			Endpoint:        t.Params.Get("endpoint"),
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		})
	case "gs":
		return NewGCSSink(ctx, t.Bucket, GCSConfig{
			CredentialsFile: t.Params.Get("credentials"),
		})
	case "azblob":
		return NewAzureSink(t.Bucket, AzureConfig{
			AccountName:      t.Params.Get("account"),
			AccountKey:       os.Getenv("AZURE_STORAGE_KEY"),
			ConnectionString: os.Getenv("AZURE_STORAGE_CONNECTION_STRING"),
		})
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidTarget, t.Scheme)
	}
}

// KeyPrefix returns the prefix objects are written under. File sinks root
// themselves at the directory, so their keys carry no prefix.
func (t Target) KeyPrefix() string {
	if t.Scheme == "file" {
		return ""
	}
	return t.Prefix
}
