package domain

import "time"

// AttemptTTL is how long an issued code stays redeemable.
const AttemptTTL = 10 * time.Minute

// VerificationAttempt is a pending one-time code issued to a user in a guild.
// PK: guild_id, SK: user_id — the table key itself guarantees at most one
// unverified attempt per (user, guild) pair. Issuing a new code replaces the
// whole item (delete then conditional insert), never updates it in place.
// ExpiresAt is a Unix timestamp used as DynamoDB TTL.
type VerificationAttempt struct {
	GuildID   string    `json:"guild_id" dynamodbav:"guild_id"`
	UserID    string    `json:"user_id" dynamodbav:"user_id"`
	Email     string    `json:"email" dynamodbav:"email"` // lowercased before storage
	Code      string    `json:"code" dynamodbav:"code"`   // 6 decimal digits
	CreatedAt time.Time `json:"created_at" dynamodbav:"created_at"`
	ExpiresAt int64     `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
}

// Expired reports whether the attempt is past its TTL. DynamoDB reclaims
// expired items lazily, so lookups must re-check and treat stale rows as
// absent.
func (a *VerificationAttempt) Expired(now time.Time) bool {
	return now.Unix() >= a.ExpiresAt
}
