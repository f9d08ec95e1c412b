package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-identity-sync/internal/domain"
)

// OTPRepo manages pending one-time codes.
// PK: user_id, SK: method ("email" | "sms"). A plain PutItem on the composite
// key gives the at-most-one-active-code-per-(user, method) upsert.
type OTPRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewOTPRepo(client *dynamodb.Client, tableName string) *OTPRepo {
	return &OTPRepo{client: client, tableName: tableName}
}

func (r *OTPRepo) Upsert(ctx context.Context, rec *domain.OTPRecord) error {
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

// ListForUser returns every pending record for the user across methods.
func (r *OTPRepo) ListForUser(ctx context.Context, userID string) ([]domain.OTPRecord, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    aws.String("user_id = :u"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":u": &types.AttributeValueMemberS{Value: userID}},
	})
	if err != nil {
		return nil, err
	}
	var recs []domain.OTPRecord
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// Consume atomically deletes the (user, method) record if its code matches
// and it has not expired, returning whether a record was consumed. Two
// concurrent verifications of the same code cannot both observe true: the
// condition is evaluated inside the delete.
func (r *OTPRepo) Consume(ctx context.Context, userID, method, code string, now int64) (bool, error) {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 compositeKey("user_id", userID, "method", method),
		ConditionExpression: aws.String("code = :c AND expires_at > :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":c":   &types.AttributeValueMemberS{Value: code},
			":now": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now)},
		},
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *OTPRepo) Delete(ctx context.Context, userID, method string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("user_id", userID, "method", method),
	})
	return err
}

// DeleteAllForUser removes every pending record for the user, across both
// delivery methods.
func (r *OTPRepo) DeleteAllForUser(ctx context.Context, userID string) error {
	for _, method := range []string{domain.OTPMethodEmail, domain.OTPMethodSMS} {
		if err := r.Delete(ctx, userID, method); err != nil {
			return err
		}
	}
	return nil
}

// SweepExpired deletes records whose expires_at has passed and returns how
// many were removed. DynamoDB TTL eventually collects these anyway; the sweep
// keeps the lag bounded.
func (r *OTPRepo) SweepExpired(ctx context.Context, now int64) (int, error) {
	out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:            aws.String(r.tableName),
		FilterExpression:     aws.String("expires_at <= :now"),
		ProjectionExpression: aws.String("user_id, #m"),
		ExpressionAttributeNames: map[string]string{
			"#m": "method",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now)},
		},
	})
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, item := range out.Items {
		uid, ok := item["user_id"].(*types.AttributeValueMemberS)
		method, ok2 := item["method"].(*types.AttributeValueMemberS)
		if !ok || !ok2 {
			continue
		}
		if err := r.Delete(ctx, uid.Value, method.Value); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}
