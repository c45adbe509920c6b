// Package dynamodb provides a DynamoDB-backed journal store.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/felixgeelhaar/toolchanger/domain/event"
)

// ErrConnectionFailed is returned when DynamoDB calls fail.
var ErrConnectionFailed = fmt.Errorf("dynamodb: %w", event.ErrConnectionFailed)

// Config contains DynamoDB connection configuration.
type Config struct {
	// Region is the AWS region.
	Region string

	// Endpoint is the DynamoDB endpoint (useful for local development).
	Endpoint string

	// AccessKeyID and SecretAccessKey select static credentials. When
	// empty the default AWS credential chain is used.
	AccessKeyID     string
	SecretAccessKey string

	// QueryTimeout is the default timeout for queries.
	QueryTimeout time.Duration

	// TableName is the journal table.
	TableName string
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Region:       "us-east-1",
		QueryTimeout: 30 * time.Second,
		TableName:    "toolchanger_journal",
	}
}

// ConfigFromDSN parses dynamodb://[key:secret@]region[/table][?endpoint=url].
func ConfigFromDSN(dsn string) (Config, error) {
	cfg := DefaultConfig()
	if dsn == "" {
		return cfg, nil
	}

	u, err := url.Parse(dsn)
	if err != nil {
		return cfg, fmt.Errorf("dynamodb: parse dsn: %w", err)
	}
	if u.Scheme != "dynamodb" {
		return cfg, fmt.Errorf("dynamodb: unsupported dsn scheme %q", u.Scheme)
	}
	if u.Host != "" {
		cfg.Region = u.Host
	}
	if table := strings.Trim(u.Path, "/"); table != "" {
		cfg.TableName = table
	}
	if u.User != nil {
		cfg.AccessKeyID = u.User.Username()
		cfg.SecretAccessKey, _ = u.User.Password()
	}
	cfg.Endpoint = u.Query().Get("endpoint")
	return cfg, nil
}

// Option configures the DynamoDB connection.
type Option func(*Config)

// WithRegion sets the AWS region.
func WithRegion(region string) Option {
	return func(c *Config) {
		c.Region = region
	}
}

// WithEndpoint sets the DynamoDB endpoint (for local development).
func WithEndpoint(endpoint string) Option {
	return func(c *Config) {
		c.Endpoint = endpoint
	}
}

// WithStaticCredentials sets a fixed access key pair.
func WithStaticCredentials(keyID, secret string) Option {
	return func(c *Config) {
		c.AccessKeyID = keyID
		c.SecretAccessKey = secret
	}
}

// WithTableName sets the journal table name.
func WithTableName(name string) Option {
	return func(c *Config) {
		c.TableName = name
	}
}

// Client wraps a DynamoDB client with configuration.
type Client struct {
	api    API
	config Config
}

// NewClient creates a DynamoDB client from cfg.
func NewClient(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	var ddbOpts []func(*dynamodb.Options)
	if cfg.Endpoint != "" {
		ddbOpts = append(ddbOpts, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return NewClientFromAPI(dynamodb.NewFromConfig(awsCfg, ddbOpts...), cfg), nil
}

// NewClientFromAPI wraps an existing DynamoDB API implementation.
func NewClientFromAPI(api API, cfg Config) *Client {
	return &Client{api: api, config: cfg}
}

// CreateTable creates the journal table if it doesn't exist and waits for
// it to become active.
func (c *Client) CreateTable(ctx context.Context) error {
	ddb, ok := c.api.(*dynamodb.Client)
	if !ok {
		return errors.New("dynamodb: CreateTable needs a *dynamodb.Client")
	}

	_, err := ddb.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(c.config.TableName),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("stream"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("sequence"), KeyType: types.KeyTypeRange},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("stream"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("sequence"), AttributeType: types.ScalarAttributeTypeN},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(ddb)
	return waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(c.config.TableName),
	}, 2*time.Minute)
}
