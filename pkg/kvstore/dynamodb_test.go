package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDynamoAPI struct {
	mock.Mock
}

func (m *MockDynamoAPI) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.GetItemOutput), args.Error(1)
}

func (m *MockDynamoAPI) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, params)
	return &dynamodb.UpdateItemOutput{}, args.Error(0)
}

func (m *MockDynamoAPI) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := m.Called(ctx, params)
	return &dynamodb.DeleteItemOutput{}, args.Error(0)
}

func (m *MockDynamoAPI) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.ScanOutput), args.Error(1)
}

func (m *MockDynamoAPI) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	args := m.Called(ctx, params)
	return &dynamodb.TransactWriteItemsOutput{}, args.Error(0)
}

func item(key, value string, version string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk":      &types.AttributeValueMemberS{Value: key},
		"value":   &types.AttributeValueMemberS{Value: value},
		"version": &types.AttributeValueMemberN{Value: version},
	}
}

func getKey(key string) interface{} {
	return mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		pk, ok := in.Key["pk"].(*types.AttributeValueMemberS)
		return ok && pk.Value == key && aws.ToBool(in.ConsistentRead)
	})
}

func TestDynamoStore_Get(t *testing.T) {
	ctx := context.Background()
	api := new(MockDynamoAPI)
	store := NewDynamoStore(api, "registry")

	api.On("GetItem", ctx, getKey("credit_1")).
		Return(&dynamodb.GetItemOutput{Item: item("credit_1", `{"amount":90}`, "4")}, nil)
	api.On("GetItem", ctx, getKey("credit_2")).
		Return(&dynamodb.GetItemOutput{}, nil)

	entry, err := store.Get(ctx, "credit_1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":90}`, string(entry.Value))
	assert.Equal(t, int64(4), entry.Version)

	_, err = store.Get(ctx, "credit_2")
	assert.ErrorIs(t, err, ErrNotFound)
	api.AssertExpectations(t)
}

func TestDynamoStore_GetByPrefix(t *testing.T) {
	ctx := context.Background()
	api := new(MockDynamoAPI)
	store := NewDynamoStore(api, "registry")

	api.On("Scan", mock.Anything, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
		return in.ExclusiveStartKey == nil
	})).Return(&dynamodb.ScanOutput{
		Items:            []map[string]types.AttributeValue{item("mrv_b", `{}`, "1")},
		LastEvaluatedKey: map[string]types.AttributeValue{"pk": &types.AttributeValueMemberS{Value: "mrv_b"}},
	}, nil).Once()
	api.On("Scan", mock.Anything, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
		return in.ExclusiveStartKey != nil
	})).Return(&dynamodb.ScanOutput{
		Items: []map[string]types.AttributeValue{item("mrv_a", `{}`, "2")},
	}, nil).Once()

	entries, err := store.GetByPrefix(ctx, "mrv_")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "mrv_a", entries[0].Key)
	assert.Equal(t, "mrv_b", entries[1].Key)
	api.AssertExpectations(t)
}

func TestDynamoStore_TransactConditionsOnReadVersions(t *testing.T) {
	ctx := context.Background()
	api := new(MockDynamoAPI)
	store := NewDynamoStore(api, "registry")

	api.On("GetItem", ctx, getKey("credit_1")).
		Return(&dynamodb.GetItemOutput{Item: item("credit_1", `{"amount":90}`, "7")}, nil)
	api.On("GetItem", ctx, getKey("total_credits_retired")).
		Return(&dynamodb.GetItemOutput{}, nil)

	var captured *dynamodb.TransactWriteItemsInput
	api.On("TransactWriteItems", ctx, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(*dynamodb.TransactWriteItemsInput)
		}).
		Return(nil).Once()

	err := store.Transact(ctx, func(tx Tx) error {
		if _, err := tx.Get(ctx, "credit_1"); err != nil {
			return err
		}
		if err := tx.Set(ctx, "credit_1", json.RawMessage(`{"amount":90,"isRetired":true}`)); err != nil {
			return err
		}
		_, err := Increment(ctx, tx, "total_credits_retired", 90)
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, captured)
	require.Len(t, captured.TransactItems, 2)

	conditions := map[string]string{}
	for _, ti := range captured.TransactItems {
		require.NotNil(t, ti.Update)
		pk := ti.Update.Key["pk"].(*types.AttributeValueMemberS).Value
		conditions[pk] = aws.ToString(ti.Update.ConditionExpression)
	}
	assert.Equal(t, "#ver = :expected", conditions["credit_1"])
	assert.Equal(t, "attribute_not_exists(pk)", conditions["total_credits_retired"])
	api.AssertExpectations(t)
}

func TestDynamoStore_TransactRetriesOnCancellation(t *testing.T) {
	ctx := context.Background()
	api := new(MockDynamoAPI)
	store := NewDynamoStore(api, "registry")

	api.On("GetItem", ctx, getKey("credit_1")).
		Return(&dynamodb.GetItemOutput{Item: item("credit_1", `{}`, "1")}, nil)
	api.On("TransactWriteItems", ctx, mock.Anything).
		Return(&types.TransactionCanceledException{Message: aws.String("conditional check failed")}).Once()
	api.On("TransactWriteItems", ctx, mock.Anything).Return(nil).Once()

	calls := 0
	err := store.Transact(ctx, func(tx Tx) error {
		calls++
		if _, err := tx.Get(ctx, "credit_1"); err != nil {
			return err
		}
		return tx.Set(ctx, "credit_1", json.RawMessage(`{"ownerId":"u1"}`))
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	api.AssertExpectations(t)
}

func TestDynamoStore_TransactGivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	api := new(MockDynamoAPI)
	store := NewDynamoStore(api, "registry")

	api.On("GetItem", ctx, getKey("k")).Return(&dynamodb.GetItemOutput{}, nil)
	api.On("TransactWriteItems", ctx, mock.Anything).
		Return(&types.TransactionCanceledException{Message: aws.String("conflict")})

	err := store.Transact(ctx, func(tx Tx) error {
		if _, err := tx.Get(ctx, "k"); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		return tx.Set(ctx, "k", json.RawMessage(`1`))
	})
	assert.ErrorIs(t, err, ErrConflict)
	api.AssertNumberOfCalls(t, "TransactWriteItems", 3)
}

func TestDynamoStore_ReadOnlyTransactSkipsCommit(t *testing.T) {
	ctx := context.Background()
	api := new(MockDynamoAPI)
	store := NewDynamoStore(api, "registry")

	api.On("GetItem", ctx, getKey("k")).Return(&dynamodb.GetItemOutput{}, nil)

	err := store.Transact(ctx, func(tx Tx) error {
		_, err := tx.Get(ctx, "k")
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	})
	require.NoError(t, err)
	api.AssertNotCalled(t, "TransactWriteItems", mock.Anything, mock.Anything)
}
