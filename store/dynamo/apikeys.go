package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// PutKey registers an API key for the given account email.
func (s *Store) PutKey(ctx context.Context, key, email string) error {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.keysTable),
		Item: map[string]types.AttributeValue{
			"api_key": &types.AttributeValueMemberS{Value: key},
			"email":   &types.AttributeValueMemberS{Value: email},
		},
	})
	if err != nil {
		return fmt.Errorf("runway/dynamo: put key: %w", err)
	}
	return nil
}

// HasKey reports whether the key has been issued.
func (s *Store) HasKey(ctx context.Context, key string) (bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.keysTable),
		Key: map[string]types.AttributeValue{
			"api_key": &types.AttributeValueMemberS{Value: key},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("runway/dynamo: has key: %w", err)
	}
	return len(out.Item) > 0, nil
}
