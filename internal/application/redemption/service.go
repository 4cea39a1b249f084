package redemption

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/verify-bot/internal/domain"
	"github.com/verify-bot/internal/pkg/id"
)

// AttemptStore is the pending-attempt surface redemption needs.
type AttemptStore interface {
	Get(ctx context.Context, guildID, userID string) (*domain.VerificationAttempt, error)
	Delete(ctx context.Context, guildID, userID string) error
}

// MemberStore is the verified-record surface redemption needs.
type MemberStore interface {
	Delete(ctx context.Context, guildID, userID string) error
}

// Ledger performs the atomic commit of a pending attempt into a verified
// record.
type Ledger interface {
	Commit(ctx context.Context, a *domain.VerificationAttempt, m *domain.VerifiedMember) error
}

// PolicyStore resolves and self-heals the guild policy.
type PolicyStore interface {
	Get(ctx context.Context, guildID string) (*domain.GuildPolicy, error)
	SetRoleName(ctx context.Context, guildID, name string) error
}

// RoleAPI is the chat-platform surface for the post-commit side effects.
type RoleAPI interface {
	GuildRoles(ctx context.Context, guildID string) ([]domain.Role, error)
	AddMemberRole(ctx context.Context, guildID, userID, roleID string) error
	SetNickname(ctx context.Context, guildID, userID, nick string) error
}

// RedeemResult is the outcome of a committed redemption.
type RedeemResult struct {
	Email string
}

// GrantResult is the outcome of the best-effort role grant that follows a
// committed redemption.
type GrantResult struct {
	Granted     bool
	RoleName    string
	Candidates  []string // populated when no role matched the configured name
	NicknameSet bool
}

// Service is the Code Redemption Engine. Redeem is the single atomic state
// transition the design protects; GrantRole runs afterwards as an
// independent best-effort unit and can never undo a commit.
type Service interface {
	Redeem(ctx context.Context, userID, guildID, submittedCode string) (*RedeemResult, error)
	GrantRole(ctx context.Context, guildID, userID, email string) (*GrantResult, error)
	Reset(ctx context.Context, guildID, userID string) error
}

type ServiceDeps struct {
	Attempts AttemptStore
	Members  MemberStore
	Ledger   Ledger
	Policies PolicyStore
	Roles    RoleAPI
	Now      func() time.Time
}

type service struct {
	attempts AttemptStore
	members  MemberStore
	ledger   Ledger
	policies PolicyStore
	roles    RoleAPI
	now      func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		attempts: deps.Attempts,
		members:  deps.Members,
		ledger:   deps.Ledger,
		policies: deps.Policies,
		roles:    deps.Roles,
		now:      now,
	}
}

func (s *service) Redeem(ctx context.Context, userID, guildID, submittedCode string) (*RedeemResult, error) {
	a, err := s.attempts.Get(ctx, guildID, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("no pending attempt: %w", domain.ErrCodeInvalid)
	}
	if err != nil {
		return nil, err
	}
	// Wrong code, stale row awaiting TTL reclamation and no attempt at all
	// must be indistinguishable to the caller.
	if a.Code != submittedCode || a.Expired(s.now()) {
		return nil, fmt.Errorf("code mismatch or stale: %w", domain.ErrCodeInvalid)
	}

	m := &domain.VerifiedMember{
		GuildID:    guildID,
		UserID:     userID,
		Email:      a.Email,
		AttemptID:  id.New(),
		VerifiedAt: s.now(),
	}
	if err := s.ledger.Commit(ctx, a, m); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// Lost to a concurrent redeem or a supersession; fail closed.
			return nil, fmt.Errorf("commit lost: %w", domain.ErrCodeInvalid)
		}
		return nil, err
	}
	return &RedeemResult{Email: a.Email}, nil
}

func (s *service) GrantRole(ctx context.Context, guildID, userID, email string) (*GrantResult, error) {
	pol, err := s.policies.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}
	res := &GrantResult{RoleName: pol.RoleName}

	roles, err := s.roles.GuildRoles(ctx, guildID)
	if err != nil {
		return res, err
	}

	target, exact := findRole(roles, pol.RoleName)
	if target == nil {
		for _, r := range roles {
			res.Candidates = append(res.Candidates, r.Name)
		}
		return res, nil
	}
	if !exact {
		// Heal casing drift: store the canonical role name back.
		res.RoleName = target.Name
		if err := s.policies.SetRoleName(ctx, guildID, target.Name); err != nil {
			slog.Warn("could not persist canonical role name", "guild_id", guildID, "role", target.Name, "err", err)
		}
	}

	if err := s.roles.AddMemberRole(ctx, guildID, userID, target.ID); err != nil {
		return res, err
	}
	res.Granted = true

	// Cosmetic: nickname the member after the email local-part.
	if nick := localPart(email); nick != "" {
		if err := s.roles.SetNickname(ctx, guildID, userID, nick); err != nil {
			slog.Warn("could not set nickname", "guild_id", guildID, "user_id", userID, "err", err)
		} else {
			res.NicknameSet = true
		}
	}
	return res, nil
}

// Reset clears both the pending attempt and the permanent record for a user
// so they can verify again. Admin-only; roles are untouched.
func (s *service) Reset(ctx context.Context, guildID, userID string) error {
	if err := s.attempts.Delete(ctx, guildID, userID); err != nil {
		return err
	}
	return s.members.Delete(ctx, guildID, userID)
}

// findRole matches by exact name first, then case-insensitively.
func findRole(roles []domain.Role, name string) (match *domain.Role, exact bool) {
	for i := range roles {
		if roles[i].Name == name {
			return &roles[i], true
		}
	}
	for i := range roles {
		if strings.EqualFold(roles[i].Name, name) {
			return &roles[i], false
		}
	}
	return nil, false
}

func localPart(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return ""
}
