package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/verify-bot/internal/domain"
)

// MemberRepo manages permanent verified-member records.
// PK: guild_id, SK: user_id, plus the guild_id-email-index GSI.
type MemberRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewMemberRepo(client *dynamodb.Client, tableName string) *MemberRepo {
	return &MemberRepo{client: client, tableName: tableName}
}

// Put writes a verified record. Records are immutable: the write is
// conditional on non-existence and a duplicate surfaces as ErrConflict.
func (r *MemberRepo) Put(ctx context.Context, m *domain.VerifiedMember) error {
	item, err := attributevalue.MarshalMap(m)
	if err != nil {
		return fmt.Errorf("marshal verified member: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(guild_id) AND attribute_not_exists(user_id)"),
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("member already verified: %w", domain.ErrConflict)
	}
	return err
}

func (r *MemberRepo) Get(ctx context.Context, guildID, userID string) (*domain.VerifiedMember, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("guild_id", guildID, "user_id", userID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("verified member not found: %w", domain.ErrNotFound)
	}
	var m domain.VerifiedMember
	if err := attributevalue.UnmarshalMap(out.Item, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// GetByEmail finds the verified record bound to an email within a guild via
// the guild_id-email-index GSI.
func (r *MemberRepo) GetByEmail(ctx context.Context, guildID, email string) (*domain.VerifiedMember, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("guild_id-email-index"),
		KeyConditionExpression: aws.String("guild_id = :g AND email = :e"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":g": &types.AttributeValueMemberS{Value: guildID},
			":e": &types.AttributeValueMemberS{Value: email},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("no verified member for email: %w", domain.ErrNotFound)
	}
	var m domain.VerifiedMember
	if err := attributevalue.UnmarshalMap(out.Items[0], &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MemberRepo) Delete(ctx context.Context, guildID, userID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("guild_id", guildID, "user_id", userID),
	})
	return err
}
