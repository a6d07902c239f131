package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/otp-auth-api/internal/domain"
)

// RateLimitRepo manages sliding-window rows.
// PK: identifier, SK: action — one live row per pair; a fresh window
// overwrites the previous row in place.
type RateLimitRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewRateLimitRepo(client *dynamodb.Client, tableName string) *RateLimitRepo {
	return &RateLimitRepo{client: client, tableName: tableName}
}

func (r *RateLimitRepo) Get(ctx context.Context, identifier, action string) (*domain.RateLimitWindow, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("identifier", identifier, "action", action),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("rate limit window not found: %w", domain.ErrNotFound)
	}
	var w domain.RateLimitWindow
	if err := attributevalue.UnmarshalMap(out.Item, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *RateLimitRepo) Put(ctx context.Context, w *domain.RateLimitWindow) error {
	item, err := attributevalue.MarshalMap(w)
	if err != nil {
		return fmt.Errorf("marshal rate limit window: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// Update applies partial field changes to an existing window row. Losing a
// concurrent increment here only under-counts by one, which relaxes the
// throttle slightly; no conditional write is needed.
func (r *RateLimitRepo) Update(ctx context.Context, identifier, action string, updates map[string]interface{}) error {
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       compositeKey("identifier", identifier, "action", action),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}
