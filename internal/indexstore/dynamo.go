package indexstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/sh3r4rd/object_index/internal/model"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Condition expressions used by PutIf.
const (
	condAbsent    = "attribute_not_exists(#filename)"
	condUnchanged = "#created = :created AND #last_modified = :last_modified"
)

// DynamoStore keeps index records in a DynamoDB table whose hash key is
// "filename".
type DynamoStore struct {
	client DynamoAPI
	table  string
}

// NewDynamoStore returns a store backed by table.
func NewDynamoStore(client DynamoAPI, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table}
}

func (s *DynamoStore) Lookup(ctx context.Context, filename string) (model.IndexRecord, bool, error) {
	if filename == "" {
		return model.IndexRecord{}, false, ErrEmptyKey
	}

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            filenameKey(filename),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return model.IndexRecord{}, false, newTransportError(OpLookup, filename, err)
	}
	if len(out.Item) == 0 {
		return model.IndexRecord{}, false, nil
	}

	var rec model.IndexRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return model.IndexRecord{}, false, newTransportError(OpLookup, filename, fmt.Errorf("unmarshal item: %w", err))
	}

	return rec, true, nil
}

func (s *DynamoStore) Put(ctx context.Context, rec model.IndexRecord) error {
	input, err := s.putInput(rec)
	if err != nil {
		return err
	}

	if _, err := s.client.PutItem(ctx, input); err != nil {
		return newTransportError(OpPut, rec.Filename, err)
	}

	return nil
}

func (s *DynamoStore) PutIf(ctx context.Context, rec model.IndexRecord, prev *model.IndexRecord) error {
	input, err := s.putInput(rec)
	if err != nil {
		return err
	}

	if prev == nil {
		input.ConditionExpression = aws.String(condAbsent)
		input.ExpressionAttributeNames = map[string]string{"#filename": "filename"}
	} else {
		input.ConditionExpression = aws.String(condUnchanged)
		input.ExpressionAttributeNames = map[string]string{
			"#created":       "created",
			"#last_modified": "last_modified",
		}
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":created":       numberValue(prev.Created),
			":last_modified": numberValue(prev.LastModified),
		}
	}

	if _, err := s.client.PutItem(ctx, input); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrConflict
		}
		return newTransportError(OpPut, rec.Filename, err)
	}

	return nil
}

func (s *DynamoStore) Delete(ctx context.Context, filename string) error {
	if filename == "" {
		return ErrEmptyKey
	}

	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       filenameKey(filename),
	})
	if err != nil {
		return newTransportError(OpDelete, filename, err)
	}

	return nil
}

func (s *DynamoStore) putInput(rec model.IndexRecord) (*dynamodb.PutItemInput, error) {
	if rec.Filename == "" {
		return nil, ErrEmptyKey
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal index record: %w", err)
	}

	return &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	}, nil
}

func filenameKey(filename string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"filename": &types.AttributeValueMemberS{Value: filename},
	}
}

func numberValue(n int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}
