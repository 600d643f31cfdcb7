package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of the DynamoDB client the store uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// dynamoItem is the table layout: pk (string hash key), value (JSON text),
// version (number).
type dynamoItem struct {
	PK      string `dynamodbav:"pk"`
	Value   string `dynamodbav:"value"`
	Version int64  `dynamodbav:"version"`
}

// DynamoStore keeps entries in a DynamoDB table. Transactions are optimistic:
// every key read records its version, and the commit is a TransactWriteItems
// call conditioned on those versions. A cancelled commit re-runs the body.
type DynamoStore struct {
	client      DynamoAPI
	table       string
	maxAttempts int
}

var _ Store = (*DynamoStore)(nil)

// NewDynamoStore returns a store over table.
func NewDynamoStore(client DynamoAPI, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table, maxAttempts: 3}
}

func (s *DynamoStore) keyAttr(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"pk": &types.AttributeValueMemberS{Value: key}}
}

func (s *DynamoStore) Get(ctx context.Context, key string) (*Entry, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            s.keyAttr(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var item dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &Entry{Key: item.PK, Value: json.RawMessage(item.Value), Version: item.Version}, nil
}

func (s *DynamoStore) updateInput(key string, value json.RawMessage) *dynamodb.UpdateItemInput {
	return &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.table),
		Key:              s.keyAttr(key),
		UpdateExpression: aws.String("SET #v = :value, #ver = if_not_exists(#ver, :zero) + :one"),
		ExpressionAttributeNames: map[string]string{
			"#v":   "value",
			"#ver": "version",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":value": &types.AttributeValueMemberS{Value: string(value)},
			":zero":  &types.AttributeValueMemberN{Value: "0"},
			":one":   &types.AttributeValueMemberN{Value: "1"},
		},
	}
}

func (s *DynamoStore) Set(ctx context.Context, key string, value json.RawMessage) error {
	if _, err := s.client.UpdateItem(ctx, s.updateInput(key, value)); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *DynamoStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       s.keyAttr(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *DynamoStore) GetByPrefix(ctx context.Context, prefix string) ([]Entry, error) {
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:        aws.String(s.table),
		FilterExpression: aws.String("begins_with(pk, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":prefix": &types.AttributeValueMemberS{Value: prefix},
		},
		ConsistentRead: aws.Bool(true),
	})

	out := make([]Entry, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan %s*: %w", prefix, err)
		}
		var items []dynamoItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("decode scan page: %w", err)
		}
		for _, item := range items {
			out = append(out, Entry{Key: item.PK, Value: json.RawMessage(item.Value), Version: item.Version})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *DynamoStore) Transact(ctx context.Context, fn func(tx Tx) error) error {
	for attempt := 1; ; attempt++ {
		tx := &dynamoTx{
			store:  s,
			reads:  make(map[string]int64),
			writes: make(map[string]*json.RawMessage),
		}
		if err := fn(tx); err != nil {
			return err
		}

		err := tx.commit(ctx)
		if !errors.Is(err, ErrConflict) {
			return err
		}
		if attempt >= s.maxAttempts {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 20 * time.Millisecond):
		}
	}
}

func (s *DynamoStore) Close() error { return nil }

// dynamoTx records the version of every key read (0 = absent) and stages
// writes until commit. A nil staged value marks a delete.
type dynamoTx struct {
	store  *DynamoStore
	reads  map[string]int64
	writes map[string]*json.RawMessage
}

func (t *dynamoTx) Get(ctx context.Context, key string) (*Entry, error) {
	if staged, ok := t.writes[key]; ok {
		if staged == nil {
			return nil, ErrNotFound
		}
		return &Entry{Key: key, Value: *staged}, nil
	}

	entry, err := t.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		t.reads[key] = 0
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	t.reads[key] = entry.Version
	return entry, nil
}

func (t *dynamoTx) Set(ctx context.Context, key string, value json.RawMessage) error {
	v := append(json.RawMessage(nil), value...)
	t.writes[key] = &v
	return nil
}

func (t *dynamoTx) Delete(ctx context.Context, key string) error {
	t.writes[key] = nil
	return nil
}

// condition builds the optimistic check for a key that was read.
func condition(version int64) (string, map[string]types.AttributeValue) {
	if version == 0 {
		return "attribute_not_exists(pk)", nil
	}
	return "#ver = :expected", map[string]types.AttributeValue{
		":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(version, 10)},
	}
}

func (t *dynamoTx) commit(ctx context.Context) error {
	if len(t.writes) == 0 {
		return nil
	}

	table := aws.String(t.store.table)
	items := make([]types.TransactWriteItem, 0, len(t.writes)+len(t.reads))

	for key, value := range t.writes {
		version, wasRead := t.reads[key]

		if value == nil {
			del := &types.Delete{TableName: table, Key: t.store.keyAttr(key)}
			if wasRead {
				expr, values := condition(version)
				del.ConditionExpression = aws.String(expr)
				del.ExpressionAttributeValues = values
				if version != 0 {
					del.ExpressionAttributeNames = map[string]string{"#ver": "version"}
				}
			}
			items = append(items, types.TransactWriteItem{Delete: del})
			continue
		}

		in := t.store.updateInput(key, *value)
		update := &types.Update{
			TableName:                 table,
			Key:                       in.Key,
			UpdateExpression:          in.UpdateExpression,
			ExpressionAttributeNames:  in.ExpressionAttributeNames,
			ExpressionAttributeValues: in.ExpressionAttributeValues,
		}
		if wasRead {
			expr, values := condition(version)
			update.ConditionExpression = aws.String(expr)
			for k, v := range values {
				update.ExpressionAttributeValues[k] = v
			}
		}
		items = append(items, types.TransactWriteItem{Update: update})
	}

	for key, version := range t.reads {
		if _, written := t.writes[key]; written {
			continue
		}
		expr, values := condition(version)
		check := &types.ConditionCheck{
			TableName:                 table,
			Key:                       t.store.keyAttr(key),
			ConditionExpression:       aws.String(expr),
			ExpressionAttributeValues: values,
		}
		if version != 0 {
			check.ExpressionAttributeNames = map[string]string{"#ver": "version"}
		}
		items = append(items, types.TransactWriteItem{ConditionCheck: check})
	}

	_, err := t.store.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	var cancelled *types.TransactionCanceledException
	if errors.As(err, &cancelled) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
