package normalize

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatoliahealth/medtour-crm/internal/canonical"
)

type fakeDynamoAPI struct {
	items     map[string]map[string]types.AttributeValue
	lastTable string
}

func newFakeDynamoAPI() *fakeDynamoAPI {
	return &fakeDynamoAPI{items: make(map[string]map[string]types.AttributeValue)}
}

func itemKey(item map[string]types.AttributeValue) string {
	pk, _ := item["pk"].(*types.AttributeValueMemberS)
	if pk == nil {
		return ""
	}
	return pk.Value
}

func (f *fakeDynamoAPI) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastTable = aws.ToString(params.TableName)
	f.items[itemKey(params.Item)] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamoAPI) GetItem(_ context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lastTable = aws.ToString(params.TableName)
	item, ok := f.items[itemKey(params.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func sampleRecord(leadID string) *canonical.Record {
	confidence := 90.0
	return &canonical.Record{
		Version:    canonical.SchemaVersion,
		LeadID:     leadID,
		UpdatedAt:  time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Facts:      canonical.Facts{Name: "Test Lead", Phone: "+90 532 111 22 33"},
		Confidence: &confidence,
	}
}

func TestDynamoStoreRoundTrip(t *testing.T) {
	api := newFakeDynamoAPI()
	store := NewDynamoStore(api, "canonical-records")

	rec := sampleRecord("lead-1")
	require.NoError(t, store.Put(context.Background(), "clinic-1", rec))
	assert.Equal(t, "canonical-records", api.lastTable)

	got, err := store.Get(context.Background(), "clinic-1", "lead-1")
	require.NoError(t, err)
	assert.Equal(t, rec.LeadID, got.LeadID)
	assert.Equal(t, rec.Facts.Phone, got.Facts.Phone)
	require.NotNil(t, got.Confidence)
	assert.Equal(t, 90.0, *got.Confidence)
	assert.True(t, rec.UpdatedAt.Equal(got.UpdatedAt))
}

func TestDynamoStoreGetNotFound(t *testing.T) {
	store := NewDynamoStore(newFakeDynamoAPI(), "canonical-records")

	_, err := store.Get(context.Background(), "clinic-1", "missing")
	assert.ErrorIs(t, err, ErrCanonicalNotFound)
}

func TestDynamoStoreOrgIsolation(t *testing.T) {
	api := newFakeDynamoAPI()
	store := NewDynamoStore(api, "canonical-records")

	require.NoError(t, store.Put(context.Background(), "clinic-1", sampleRecord("lead-1")))

	_, err := store.Get(context.Background(), "clinic-2", "lead-1")
	assert.ErrorIs(t, err, ErrCanonicalNotFound)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	rec := sampleRecord("lead-1")
	require.NoError(t, store.Put(context.Background(), "clinic-1", rec))

	first, err := store.Get(context.Background(), "clinic-1", "lead-1")
	require.NoError(t, err)
	first.Facts.Name = "mutated"

	second, err := store.Get(context.Background(), "clinic-1", "lead-1")
	require.NoError(t, err)
	assert.Equal(t, "Test Lead", second.Facts.Name)
}
