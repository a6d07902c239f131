package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/otp-auth-api/internal/domain"
)

// OtpRepo manages one-time passcode records.
// PK: identifier, SK: code — several live codes may coexist for one
// identifier, so the code itself is the sort key.
type OtpRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewOtpRepo(client *dynamodb.Client, tableName string) *OtpRepo {
	return &OtpRepo{client: client, tableName: tableName}
}

func (r *OtpRepo) Put(ctx context.Context, rec *domain.OtpRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal otp record: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *OtpRepo) Get(ctx context.Context, identifier, code string) (*domain.OtpRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("identifier", identifier, "code", code),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("otp record not found: %w", domain.ErrNotFound)
	}
	var rec domain.OtpRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Consume flips the record's consumed flag. The update is conditioned on the
// record still being unconsumed, so when two verification requests race only
// one succeeds; the loser gets domain.ErrNotFound.
func (r *OtpRepo) Consume(ctx context.Context, identifier, code string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 compositeKey("identifier", identifier, "code", code),
		UpdateExpression:    aws.String("SET consumed = :t"),
		ConditionExpression: aws.String("attribute_exists(identifier) AND consumed = :f"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t": &types.AttributeValueMemberBOOL{Value: true},
			":f": &types.AttributeValueMemberBOOL{Value: false},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("otp already consumed or missing: %w", domain.ErrNotFound)
		}
		return err
	}
	return nil
}

// LatestLive returns the most recently issued record for the identifier that
// is still unconsumed and unexpired, or domain.ErrNotFound when none exists.
func (r *OtpRepo) LatestLive(ctx context.Context, identifier string, now int64) (*domain.OtpRecord, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("identifier = :id"),
		FilterExpression:       aws.String("consumed = :f AND expires_at > :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id":  &types.AttributeValueMemberS{Value: identifier},
			":f":   &types.AttributeValueMemberBOOL{Value: false},
			":now": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now)},
		},
	})
	if err != nil {
		return nil, err
	}
	var recs []domain.OtpRecord
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &recs); err != nil {
		return nil, err
	}
	var latest *domain.OtpRecord
	for i := range recs {
		if latest == nil || recs[i].IssuedAt > latest.IssuedAt {
			latest = &recs[i]
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("no live otp for identifier: %w", domain.ErrNotFound)
	}
	return latest, nil
}
