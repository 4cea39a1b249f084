package issuance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/verify-bot/internal/domain"
	"github.com/verify-bot/internal/infrastructure/smtp"
	"github.com/verify-bot/internal/pkg/code"
	"github.com/verify-bot/internal/pkg/validate"
)

// AttemptStore is the pending-attempt storage surface issuance needs.
type AttemptStore interface {
	Put(ctx context.Context, a *domain.VerificationAttempt) error
	Delete(ctx context.Context, guildID, userID string) error
}

// MemberStore is the verified-record read surface issuance needs.
type MemberStore interface {
	Get(ctx context.Context, guildID, userID string) (*domain.VerifiedMember, error)
	GetByEmail(ctx context.Context, guildID, email string) (*domain.VerifiedMember, error)
}

// PolicyReader resolves a guild's policy (with defaults).
type PolicyReader interface {
	Get(ctx context.Context, guildID string) (*domain.GuildPolicy, error)
}

// IssueResult is the outcome of a successful issuance. Dispatched is false
// when the email could not be sent; the attempt stays in place either way
// and a retry supersedes it.
type IssueResult struct {
	Email      string
	Code       string
	Dispatched bool
}

// Service is the Code Issuance Engine: it validates an email candidate
// against the ledger and the guild policy, supersedes any pending attempt
// for the pair and dispatches a fresh one-time code.
type Service interface {
	Issue(ctx context.Context, userID, guildID, emailCandidate string) (*IssueResult, error)
}

type ServiceDeps struct {
	Attempts      AttemptStore
	Members       MemberStore
	Policies      PolicyReader
	Mailer        smtp.Mailer
	DefaultDomain string
	Now           func() time.Time
}

type service struct {
	attempts      AttemptStore
	members       MemberStore
	policies      PolicyReader
	mailer        smtp.Mailer
	defaultDomain string
	now           func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		attempts:      deps.Attempts,
		members:       deps.Members,
		policies:      deps.Policies,
		mailer:        deps.Mailer,
		defaultDomain: deps.DefaultDomain,
		now:           now,
	}
}

func (s *service) Issue(ctx context.Context, userID, guildID, emailCandidate string) (*IssueResult, error) {
	email, emailDomain, err := parseEmail(emailCandidate)
	if err != nil {
		return nil, err
	}

	// Rejection order matters: same-email first (idempotent signal), then
	// conflicting identity, then claimed email, then the domain policy.
	existing, err := s.members.Get(ctx, guildID, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		if existing.Email == email {
			return nil, fmt.Errorf("user %s: %w", userID, domain.ErrAlreadyVerified)
		}
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrVerifiedOtherEmail)
	}

	claimed, err := s.members.GetByEmail(ctx, guildID, email)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if claimed != nil && claimed.UserID != userID {
		return nil, fmt.Errorf("email %s: %w", email, domain.ErrEmailClaimed)
	}

	pol, err := s.policies.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if !pol.AllowsDomain(emailDomain, s.defaultDomain) {
		return nil, fmt.Errorf("domain %s: %w", emailDomain, domain.ErrDomainNotAllowed)
	}

	// Supersede any pending attempt: delete then insert, never update in
	// place, since the email may differ. The conditional insert turns a
	// lost race into ErrAttemptRace instead of a second live code.
	if err := s.attempts.Delete(ctx, guildID, userID); err != nil {
		return nil, err
	}
	c, err := code.New()
	if err != nil {
		return nil, err
	}
	now := s.now()
	attempt := &domain.VerificationAttempt{
		GuildID:   guildID,
		UserID:    userID,
		Email:     email,
		Code:      c,
		CreatedAt: now,
		ExpiresAt: now.Add(domain.AttemptTTL).Unix(),
	}
	if err := s.attempts.Put(ctx, attempt); err != nil {
		return nil, err
	}

	res := &IssueResult{Email: email, Code: c, Dispatched: true}
	if err := s.mailer.SendVerificationCode(email, c); err != nil {
		// The attempt is not rolled back: a retry supersedes it anyway.
		slog.Error("verification email dispatch failed", "guild_id", guildID, "user_id", userID, "err", err)
		res.Dispatched = false
	}
	return res, nil
}

type emailCandidate struct {
	Email string `validate:"required,email"`
}

// parseEmail lowercases and validates the candidate: local-part "@"
// domain-part, with the domain-part containing a dot.
func parseEmail(raw string) (email, emailDomain string, err error) {
	email = strings.ToLower(strings.TrimSpace(raw))
	if err := validate.Struct(emailCandidate{Email: email}); err != nil {
		return "", "", fmt.Errorf("%q: %w", raw, domain.ErrInvalidEmail)
	}
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "", "", fmt.Errorf("%q: %w", raw, domain.ErrInvalidEmail)
	}
	emailDomain = email[at+1:]
	if !strings.Contains(emailDomain, ".") {
		return "", "", fmt.Errorf("%q: %w", raw, domain.ErrInvalidEmail)
	}
	return email, emailDomain, nil
}
