package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/inferent/runway"
	"github.com/inferent/runway/job"
)

// PutRecord upserts a record; PutItem replaces the whole item atomically.
func (s *Store) PutRecord(ctx context.Context, rec *job.Record) error {
	item, err := attributevalue.MarshalMap(fromRecord(rec))
	if err != nil {
		return fmt.Errorf("runway/dynamo: marshal record: %w", err)
	}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.jobsTable),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("runway/dynamo: put record: %w", err)
	}
	return nil
}

// GetRecord retrieves one record by its composite key.
func (s *Store) GetRecord(ctx context.Context, callerID, jobID string) (*job.Record, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.jobsTable),
		Key: map[string]types.AttributeValue{
			"caller_id": &types.AttributeValueMemberS{Value: callerID},
			"job_id":    &types.AttributeValueMemberS{Value: jobID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("runway/dynamo: get record: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, runway.ErrJobNotFound
	}

	var item recordItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("runway/dynamo: unmarshal record: %w", err)
	}
	return item.toRecord()
}

// ListRecords queries all records under the caller's hash key.
func (s *Store) ListRecords(ctx context.Context, callerID string) ([]*job.Record, error) {
	var recs []*job.Record

	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:              aws.String(s.jobsTable),
		KeyConditionExpression: aws.String("caller_id = :caller"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":caller": &types.AttributeValueMemberS{Value: callerID},
		},
		ConsistentRead: aws.Bool(true),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("runway/dynamo: list records: %w", err)
		}

		var items []recordItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("runway/dynamo: unmarshal records: %w", err)
		}
		for i := range items {
			rec, err := items[i].toRecord()
			if err != nil {
				return nil, err
			}
			recs = append(recs, rec)
		}
	}
	return recs, nil
}
