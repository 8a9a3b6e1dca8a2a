package normalize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/anatoliahealth/medtour-crm/internal/canonical"
)

// ErrCanonicalNotFound indicates no canonical record exists for the lead yet.
var ErrCanonicalNotFound = errors.New("normalize: canonical record not found")

// CanonicalStore persists canonical records keyed by (orgID, leadID).
type CanonicalStore interface {
	Put(ctx context.Context, orgID string, record *canonical.Record) error
	Get(ctx context.Context, orgID, leadID string) (*canonical.Record, error)
}

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// canonicalItem is the DynamoDB row shape. The record itself is stored as a
// JSON document string so the table schema never chases the record schema.
type canonicalItem struct {
	PK        string `dynamodbav:"pk"`
	LeadID    string `dynamodbav:"leadId"`
	Version   string `dynamodbav:"version"`
	Payload   string `dynamodbav:"payload"`
	UpdatedAt string `dynamodbav:"updatedAt"`
}

// DynamoStore persists canonical records to DynamoDB.
type DynamoStore struct {
	client    dynamoAPI
	tableName string
}

// NewDynamoStore builds a store backed by the provided DynamoDB client.
func NewDynamoStore(client dynamoAPI, tableName string) *DynamoStore {
	if client == nil {
		panic("normalize: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("normalize: table name cannot be empty")
	}
	return &DynamoStore{client: client, tableName: tableName}
}

func canonicalPK(orgID, leadID string) string {
	return "ORG#" + orgID + "#LEAD#" + leadID
}

// Put upserts the canonical record for a lead.
func (s *DynamoStore) Put(ctx context.Context, orgID string, record *canonical.Record) error {
	if record == nil {
		return errors.New("normalize: record cannot be nil")
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("normalize: failed to marshal record: %w", err)
	}

	item, err := attributevalue.MarshalMap(canonicalItem{
		PK:        canonicalPK(orgID, record.LeadID),
		LeadID:    record.LeadID,
		Version:   record.Version,
		Payload:   string(payload),
		UpdatedAt: record.UpdatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("normalize: failed to marshal item: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("normalize: failed to persist canonical record: %w", err)
	}
	return nil
}

// Get fetches the canonical record for a lead.
func (s *DynamoStore) Get(ctx context.Context, orgID, leadID string) (*canonical.Record, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: canonicalPK(orgID, leadID)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("normalize: failed to fetch canonical record: %w", err)
	}
	if out.Item == nil {
		return nil, ErrCanonicalNotFound
	}

	var item canonicalItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("normalize: failed to decode item: %w", err)
	}

	var record canonical.Record
	if err := json.Unmarshal([]byte(item.Payload), &record); err != nil {
		return nil, fmt.Errorf("normalize: failed to decode record payload: %w", err)
	}
	return &record, nil
}

var _ CanonicalStore = (*DynamoStore)(nil)
