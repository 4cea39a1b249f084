package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/verify-bot/internal/domain"
)

// PolicyRepo manages per-guild verification policies. PK: guild_id.
// Every write is an upsert: UpdateItem creates the row when it is missing,
// which gives the lazy create-on-first-admin-command behaviour for free.
type PolicyRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewPolicyRepo(client *dynamodb.Client, tableName string) *PolicyRepo {
	return &PolicyRepo{client: client, tableName: tableName}
}

func (r *PolicyRepo) Get(ctx context.Context, guildID string) (*domain.GuildPolicy, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("guild_id", guildID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("policy not found: %w", domain.ErrNotFound)
	}
	var p domain.GuildPolicy
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SetOnJoin toggles the prompt-on-join flag.
func (r *PolicyRepo) SetOnJoin(ctx context.Context, guildID string, enabled bool) error {
	return r.setFields(ctx, guildID, map[string]interface{}{"on_join": enabled})
}

// SetRoleName stores the display name of the role granted on verification.
func (r *PolicyRepo) SetRoleName(ctx context.Context, guildID, name string) error {
	return r.setFields(ctx, guildID, map[string]interface{}{"role_name": name})
}

func (r *PolicyRepo) setFields(ctx context.Context, guildID string, updates map[string]interface{}) error {
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("guild_id", guildID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}

// AddDomain adds a domain to the guild's allow-list (string set ADD is
// idempotent, duplicates are no-ops).
func (r *PolicyRepo) AddDomain(ctx context.Context, guildID, emailDomain string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              strKey("guild_id", guildID),
		UpdateExpression: aws.String("ADD #d :d"),
		ExpressionAttributeNames: map[string]string{
			"#d": "domains",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":d": &types.AttributeValueMemberSS{Value: []string{emailDomain}},
		},
	})
	return err
}

// RemoveDomain removes a domain from the guild's allow-list.
func (r *PolicyRepo) RemoveDomain(ctx context.Context, guildID, emailDomain string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              strKey("guild_id", guildID),
		UpdateExpression: aws.String("DELETE #d :d"),
		ExpressionAttributeNames: map[string]string{
			"#d": "domains",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":d": &types.AttributeValueMemberSS{Value: []string{emailDomain}},
		},
	})
	return err
}

// Ping verifies the table is reachable; used by the health endpoint.
func (r *PolicyRepo) Ping(ctx context.Context) error {
	_, err := r.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(r.tableName),
	})
	return err
}
