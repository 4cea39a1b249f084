package policy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/verify-bot/internal/domain"
)

// Repo is the storage surface the policy service needs.
type Repo interface {
	Get(ctx context.Context, guildID string) (*domain.GuildPolicy, error)
	SetOnJoin(ctx context.Context, guildID string, enabled bool) error
	SetRoleName(ctx context.Context, guildID, name string) error
	AddDomain(ctx context.Context, guildID, emailDomain string) error
	RemoveDomain(ctx context.Context, guildID, emailDomain string) error
}

// Service is the Domain Policy Store: per-guild configuration with defaults.
type Service interface {
	// Get never returns ErrNotFound; missing guilds get the default policy.
	Get(ctx context.Context, guildID string) (*domain.GuildPolicy, error)
	SetOnJoin(ctx context.Context, guildID string, enabled bool) error
	SetRoleName(ctx context.Context, guildID, name string) error
	// AddDomain and RemoveDomain return the normalized (lowercased) domain.
	AddDomain(ctx context.Context, guildID, emailDomain string) (string, error)
	RemoveDomain(ctx context.Context, guildID, emailDomain string) (string, error)
}

type service struct {
	repo Repo
}

func NewService(repo Repo) Service {
	return &service{repo: repo}
}

func (s *service) Get(ctx context.Context, guildID string) (*domain.GuildPolicy, error) {
	p, err := s.repo.Get(ctx, guildID)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.GuildPolicy{GuildID: guildID, RoleName: domain.DefaultRoleName}, nil
	}
	if err != nil {
		return nil, err
	}
	if p.RoleName == "" {
		p.RoleName = domain.DefaultRoleName
	}
	return p, nil
}

func (s *service) SetOnJoin(ctx context.Context, guildID string, enabled bool) error {
	return s.repo.SetOnJoin(ctx, guildID, enabled)
}

func (s *service) SetRoleName(ctx context.Context, guildID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("role name required: %w", domain.ErrBadRequest)
	}
	return s.repo.SetRoleName(ctx, guildID, name)
}

func (s *service) AddDomain(ctx context.Context, guildID, emailDomain string) (string, error) {
	d, err := normalizeDomain(emailDomain)
	if err != nil {
		return "", err
	}
	return d, s.repo.AddDomain(ctx, guildID, d)
}

func (s *service) RemoveDomain(ctx context.Context, guildID, emailDomain string) (string, error) {
	d, err := normalizeDomain(emailDomain)
	if err != nil {
		return "", err
	}
	return d, s.repo.RemoveDomain(ctx, guildID, d)
}

func normalizeDomain(emailDomain string) (string, error) {
	d := strings.ToLower(strings.TrimSpace(emailDomain))
	if d == "" {
		return "", fmt.Errorf("domain required: %w", domain.ErrBadRequest)
	}
	return d, nil
}
