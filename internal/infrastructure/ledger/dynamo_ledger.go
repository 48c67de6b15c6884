package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/example/trade-compliance/internal/domain/snapshot"
	"github.com/google/uuid"
)

// DynamoLedger stores snapshots in DynamoDB. Partition key is the composite
// entity key, sort key the creation timestamp, so per-entity queries stay on
// one partition and come back ordered. The sparse "unprocessed" attribute
// filters the backlog without a second table.
type DynamoLedger struct {
	client    *dynamodb.Client
	tableName string
}

// dynamoSnapshot is the DynamoDB item structure
type dynamoSnapshot struct {
	EntityKey   string `dynamodbav:"entity_key"`
	CreatedAt   string `dynamodbav:"created_at"`
	ID          string `dynamodbav:"id"`
	EntityType  string `dynamodbav:"entity_type"`
	EntityID    string `dynamodbav:"entity_id"`
	Kind        string `dynamodbav:"kind"`
	Bucket      string `dynamodbav:"bucket"`
	Key         string `dynamodbav:"key"`
	Version     string `dynamodbav:"version"`
	ProcessedAt string `dynamodbav:"processed_at,omitempty"`
	Unprocessed string `dynamodbav:"unprocessed,omitempty"` // sparse GSI attribute, removed on processing
}

func NewDynamoLedger(client *dynamodb.Client, tableName string) *DynamoLedger {
	return &DynamoLedger{
		client:    client,
		tableName: tableName,
	}
}

func (l *DynamoLedger) Append(ctx context.Context, entityType, entityID string, kind snapshot.Kind, ptr snapshot.Pointer) (*snapshot.Snapshot, error) {
	snap := snapshot.Snapshot{
		ID:         uuid.New().String(),
		EntityType: entityType,
		EntityID:   entityID,
		Kind:       kind,
		Pointer:    ptr,
		CreatedAt:  time.Now(),
	}

	item := dynamoSnapshot{
		EntityKey:   snap.EntityKey(),
		CreatedAt:   snap.CreatedAt.Format(time.RFC3339Nano),
		ID:          snap.ID,
		EntityType:  snap.EntityType,
		EntityID:    snap.EntityID,
		Kind:        string(snap.Kind),
		Bucket:      ptr.Bucket,
		Key:         ptr.Key,
		Version:     ptr.Version,
		Unprocessed: "Y",
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	// Conditional write so two captures in the same nanosecond cannot collide
	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(l.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(entity_key) AND attribute_not_exists(created_at)"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to put snapshot: %w", err)
	}

	return &snap, nil
}

func (l *DynamoLedger) Unprocessed(ctx context.Context, entityType, entityID string, kind snapshot.Kind) ([]snapshot.Snapshot, error) {
	result, err := l.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(l.tableName),
		KeyConditionExpression: aws.String("entity_key = :ek"),
		FilterExpression:       aws.String("attribute_exists(unprocessed) AND kind = :kind"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ek":   &types.AttributeValueMemberS{Value: snapshot.EntityKey(entityType, entityID)},
			":kind": &types.AttributeValueMemberS{Value: string(kind)},
		},
		ScanIndexForward: aws.Bool(true), // ascending by created_at
	})
	if err != nil {
		return nil, err
	}
	return l.unmarshalSnapshots(result.Items)
}

func (l *DynamoLedger) LastProcessed(ctx context.Context, entityType, entityID string, kind snapshot.Kind) (*snapshot.Snapshot, error) {
	// Walk the entity partition newest-first and return the first processed
	// row; unprocessed rows cluster at the tail, so this terminates quickly.
	result, err := l.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(l.tableName),
		KeyConditionExpression: aws.String("entity_key = :ek"),
		FilterExpression:       aws.String("attribute_exists(processed_at) AND kind = :kind"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ek":   &types.AttributeValueMemberS{Value: snapshot.EntityKey(entityType, entityID)},
			":kind": &types.AttributeValueMemberS{Value: string(kind)},
		},
		ScanIndexForward: aws.Bool(false), // descending order
	})
	if err != nil {
		return nil, err
	}

	snaps, err := l.unmarshalSnapshots(result.Items)
	if err != nil {
		return nil, err
	}
	var last *snapshot.Snapshot
	for i := range snaps {
		s := snaps[i]
		if last == nil || s.ProcessedAt.After(*last.ProcessedAt) {
			last = &s
		}
	}
	return last, nil
}

func (l *DynamoLedger) MarkProcessed(ctx context.Context, snaps []snapshot.Snapshot, at time.Time) error {
	for _, s := range snaps {
		_, err := l.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName: aws.String(l.tableName),
			Key: map[string]types.AttributeValue{
				"entity_key": &types.AttributeValueMemberS{Value: s.EntityKey()},
				"created_at": &types.AttributeValueMemberS{Value: s.CreatedAt.Format(time.RFC3339Nano)},
			},
			UpdateExpression:    aws.String("SET processed_at = :at REMOVE unprocessed"),
			ConditionExpression: aws.String("attribute_not_exists(processed_at)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":at": &types.AttributeValueMemberS{Value: at.Format(time.RFC3339Nano)},
			},
		})
		if err != nil {
			// Already-processed rows fail the condition; that is the
			// idempotent no-op case, not an error.
			var ccf *types.ConditionalCheckFailedException
			if errors.As(err, &ccf) {
				continue
			}
			return fmt.Errorf("failed to mark snapshot %s processed: %w", s.ID, err)
		}
	}
	return nil
}

func (l *DynamoLedger) unmarshalSnapshots(items []map[string]types.AttributeValue) ([]snapshot.Snapshot, error) {
	snaps := make([]snapshot.Snapshot, 0, len(items))

	for _, item := range items {
		var ds dynamoSnapshot
		if err := attributevalue.UnmarshalMap(item, &ds); err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}

		createdAt, _ := time.Parse(time.RFC3339Nano, ds.CreatedAt)
		snap := snapshot.Snapshot{
			ID:         ds.ID,
			EntityType: ds.EntityType,
			EntityID:   ds.EntityID,
			Kind:       snapshot.Kind(ds.Kind),
			Pointer:    snapshot.Pointer{Bucket: ds.Bucket, Key: ds.Key, Version: ds.Version},
			CreatedAt:  createdAt,
		}
		if ds.ProcessedAt != "" {
			t, _ := time.Parse(time.RFC3339Nano, ds.ProcessedAt)
			snap.ProcessedAt = &t
		}
		snaps = append(snaps, snap)
	}

	return snaps, nil
}
