package archive

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
)

// AzureAPI is the subset of the blob client used by AzureSink.
type AzureAPI interface {
	UploadStream(ctx context.Context, containerName, blobName string, body io.Reader, o *azblob.UploadStreamOptions) (azblob.UploadStreamResponse, error)
}

// AzureConfig configures the Azure Blob Storage sink. A connection string
// wins over an account key; with neither, DefaultAzureCredential is used.
type AzureConfig struct {
	AccountName      string
	AccountKey       string
	ConnectionString string
}

// AzureSink writes archive objects to an Azure Blob Storage container.
type AzureSink struct {
	api       AzureAPI
	container string
}

// NewAzureSink creates an Azure sink.
func NewAzureSink(container string, cfg AzureConfig) (*AzureSink, error) {
	if cfg.ConnectionString != "" {
		client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
		if err != nil {
			return nil, fmt.Errorf("create client from connection string: %w", err)
		}
		return NewAzureSinkFromAPI(client, container), nil
	}

	if cfg.AccountName == "" {
		return nil, fmt.Errorf("%w: azblob target needs an account or a connection string", ErrInvalidTarget)
	}
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccountName)

	if cfg.AccountKey != "" {
		cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
		if err != nil {
			return nil, fmt.Errorf("create shared key credential: %w", err)
		}
		client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("create client with shared key: %w", err)
		}
		return NewAzureSinkFromAPI(client, container), nil
	}

	var cred azcore.TokenCredential
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("create default credential: %w", err)
	}
	client, err := azblob.NewClient(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return NewAzureSinkFromAPI(client, container), nil
}

// NewAzureSinkFromAPI creates a sink around an existing client.
func NewAzureSinkFromAPI(api AzureAPI, container string) *AzureSink {
	return &AzureSink{api: api, container: container}
}

// Name returns "azblob".
func (s *AzureSink) Name() string { return "azblob" }

// Put uploads body as a block blob.
func (s *AzureSink) Put(ctx context.Context, key string, body io.Reader, meta Metadata) error {
	opts := &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{},
	}
	if meta.ContentType != "" {
		opts.HTTPHeaders.BlobContentType = &meta.ContentType
	}
	if meta.ContentEncoding != "" {
		opts.HTTPHeaders.BlobContentEncoding = &meta.ContentEncoding
	}
	if len(meta.Labels) > 0 {
		opts.Metadata = make(map[string]*string, len(meta.Labels))
		for k, v := range meta.Labels {
			opts.Metadata[k] = &v
		}
	}

	if _, err := s.api.UploadStream(ctx, s.container, key, body, opts); err != nil {
		return fmt.Errorf("upload blob: %w", err)
	}
	return nil
}

// Close is a no-op.
func (s *AzureSink) Close() error { return nil }
