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

// Ledger performs the cross-table redemption commit: the pending attempt is
// deleted and the permanent verified record written in a single transaction.
type Ledger struct {
	client        *dynamodb.Client
	attemptsTable string
	membersTable  string
}

func NewLedger(client *dynamodb.Client, attemptsTable, membersTable string) *Ledger {
	return &Ledger{client: client, attemptsTable: attemptsTable, membersTable: membersTable}
}

// Commit turns a pending attempt into a verified record. The delete is
// conditioned on the attempt still holding the exact code that was looked
// up, and the insert on no record existing for the pair. Any condition
// failure (concurrent redeem, supersession between lookup and commit, or a
// duplicate verification) cancels the whole transaction and surfaces as
// ErrConflict.
func (l *Ledger) Commit(ctx context.Context, a *domain.VerificationAttempt, m *domain.VerifiedMember) error {
	item, err := attributevalue.MarshalMap(m)
	if err != nil {
		return fmt.Errorf("marshal verified member: %w", err)
	}

	_, err = l.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Delete: &types.Delete{
					TableName:           aws.String(l.attemptsTable),
					Key:                 compositeKey("guild_id", a.GuildID, "user_id", a.UserID),
					ConditionExpression: aws.String("attribute_exists(user_id) AND code = :c"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":c": &types.AttributeValueMemberS{Value: a.Code},
					},
				},
			},
			{
				Put: &types.Put{
					TableName:           aws.String(l.membersTable),
					Item:                item,
					ConditionExpression: aws.String("attribute_not_exists(guild_id) AND attribute_not_exists(user_id)"),
				},
			},
		},
	})
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		return fmt.Errorf("redemption commit lost: %w", domain.ErrConflict)
	}
	return err
}
