package domain

import "time"

// VerifiedMember is the permanent record that a user verified with an email
// in a guild. PK: guild_id, SK: user_id, plus a guild_id+email GSI for the
// one-email-one-identity rule. Records are immutable once written: the
// insert is conditional on non-existence, so a second verification for the
// same pair is rejected instead of overwriting the first.
type VerifiedMember struct {
	GuildID    string    `json:"guild_id" dynamodbav:"guild_id"`
	UserID     string    `json:"user_id" dynamodbav:"user_id"`
	Email      string    `json:"email" dynamodbav:"email"`
	AttemptID  string    `json:"attempt_id" dynamodbav:"attempt_id"` // ULID of the redeemed attempt
	VerifiedAt time.Time `json:"verified_at" dynamodbav:"verified_at"`
}

// Role is a guild role as reported by the chat platform.
type Role struct {
	ID   string
	Name string
}
