// Package dynamo implements store.Store using Amazon DynamoDB. Job records
// live in a table keyed by caller_id (hash) and job_id (range); API keys
// live in a table keyed by api_key.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/inferent/runway/auth"
	"github.com/inferent/runway/job"
)

// Compile-time interface checks.
var (
	_ job.Store     = (*Store)(nil)
	_ auth.KeyStore = (*Store)(nil)
)

// Store implements store.Store backed by DynamoDB.
type Store struct {
	client    *dynamodb.Client
	jobsTable string
	keysTable string
	logger    *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithTables overrides the default table names.
func WithTables(jobs, keys string) Option {
	return func(s *Store) {
		s.jobsTable = jobs
		s.keysTable = keys
	}
}

// New creates a store from an existing DynamoDB client.
func New(client *dynamodb.Client, opts ...Option) *Store {
	s := &Store{
		client:    client,
		jobsTable: "runway_jobs",
		keysTable: "runway_api_keys",
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// NewFromRegion creates a store using the default AWS credential chain.
func NewFromRegion(ctx context.Context, region string, opts ...Option) (*Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("runway/dynamo: load aws config: %w", err)
	}
	return New(dynamodb.NewFromConfig(cfg), opts...), nil
}

// Migrate creates the tables if they do not exist and waits until they are
// active. Safe to run at every startup.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.ensureTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.jobsTable),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("caller_id"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("job_id"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("caller_id"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("job_id"), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	}); err != nil {
		return err
	}

	return s.ensureTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.keysTable),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("api_key"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("api_key"), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
}

func (s *Store) ensureTable(ctx context.Context, input *dynamodb.CreateTableInput) error {
	_, err := s.client.CreateTable(ctx, input)
	if err != nil {
		var exists *types.ResourceInUseException
		if errors.As(err, &exists) {
			return nil
		}
		return fmt.Errorf("runway/dynamo: create table %s: %w", aws.ToString(input.TableName), err)
	}

	waiter := dynamodb.NewTableExistsWaiter(s.client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: input.TableName,
	}, 2*time.Minute); err != nil {
		return fmt.Errorf("runway/dynamo: wait for table %s: %w", aws.ToString(input.TableName), err)
	}

	s.logger.Info("dynamo table created", slog.String("table", aws.ToString(input.TableName)))
	return nil
}

// Ping checks connectivity by describing the jobs table.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.jobsTable),
	})
	return err
}

// Close is a no-op; the SDK client holds no long-lived connections that
// need explicit teardown.
func (s *Store) Close() error { return nil }
