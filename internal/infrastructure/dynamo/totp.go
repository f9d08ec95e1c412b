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

// TOTPRepo manages pending enrollment secrets and enabled credentials across
// two tables, both keyed by user_id.
type TOTPRepo struct {
	client         *dynamodb.Client
	pendingTable   string
	credentialTable string
}

func NewTOTPRepo(client *dynamodb.Client, pendingTable, credentialTable string) *TOTPRepo {
	return &TOTPRepo{client: client, pendingTable: pendingTable, credentialTable: credentialTable}
}

// PutPending upserts the pending enrollment secret. Restarting enrollment
// simply replaces the previous pending row.
func (r *TOTPRepo) PutPending(ctx context.Context, p *domain.PendingTOTPSecret) error {
	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return fmt.Errorf("marshal pending totp secret: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.pendingTable),
		Item:      item,
	})
	return err
}

func (r *TOTPRepo) GetPending(ctx context.Context, userID string) (*domain.PendingTOTPSecret, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.pendingTable),
		Key:       strKey("user_id", userID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("pending totp secret for %s: %w", userID, domain.ErrNotFound)
	}
	var p domain.PendingTOTPSecret
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *TOTPRepo) DeletePending(ctx context.Context, userID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.pendingTable),
		Key:       strKey("user_id", userID),
	})
	return err
}

// Promote atomically replaces the pending secret with the enabled credential:
// the pending row must still exist and no credential may exist yet, otherwise
// the whole transaction fails with domain.ErrConflict and writes nothing.
// This is what makes a replayed confirm unable to mint a second credential.
func (r *TOTPRepo) Promote(ctx context.Context, cred *domain.TOTPCredential) error {
	item, err := attributevalue.MarshalMap(cred)
	if err != nil {
		return fmt.Errorf("marshal totp credential: %w", err)
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Delete: &types.Delete{
				TableName:           aws.String(r.pendingTable),
				Key:                 strKey("user_id", cred.UserID),
				ConditionExpression: aws.String("attribute_exists(user_id)"),
			}},
			{Put: &types.Put{
				TableName:           aws.String(r.credentialTable),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(user_id)"),
			}},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return fmt.Errorf("totp enrollment already confirmed or abandoned: %w", domain.ErrConflict)
		}
		return err
	}
	return nil
}

func (r *TOTPRepo) GetCredential(ctx context.Context, userID string) (*domain.TOTPCredential, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.credentialTable),
		Key:       strKey("user_id", userID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("totp credential for %s: %w", userID, domain.ErrNotFound)
	}
	var c domain.TOTPCredential
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateBackupCodes rewrites the stored hash set after a backup code is
// consumed.
func (r *TOTPRepo) UpdateBackupCodes(ctx context.Context, userID string, hashes []string) error {
	av, err := attributevalue.Marshal(hashes)
	if err != nil {
		return fmt.Errorf("marshal backup code hashes: %w", err)
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.credentialTable),
		Key:                       strKey("user_id", userID),
		UpdateExpression:          aws.String("SET backup_code_hashes = :h"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":h": av},
	})
	return err
}

func (r *TOTPRepo) DeleteCredential(ctx context.Context, userID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.credentialTable),
		Key:       strKey("user_id", userID),
	})
	return err
}

// SweepPendingBefore deletes pending secrets created before the cutoff and
// returns how many were removed.
func (r *TOTPRepo) SweepPendingBefore(ctx context.Context, cutoff int64) (int, error) {
	out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:            aws.String(r.pendingTable),
		FilterExpression:     aws.String("created_at < :cutoff"),
		ProjectionExpression: aws.String("user_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cutoff": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", cutoff)},
		},
	})
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, item := range out.Items {
		uid, ok := item["user_id"].(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		if err := r.DeletePending(ctx, uid.Value); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}
