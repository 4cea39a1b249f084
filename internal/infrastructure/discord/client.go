package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/verify-bot/internal/domain"
)

// Client wraps the Discord REST surface the engines need: role listing,
// role grants, nickname changes, DMs and interaction follow-ups.
type Client struct {
	session *discordgo.Session
}

func NewClient(token string) (*Client, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return &Client{session: s}, nil
}

// Session exposes the underlying session for the gateway transport.
func (c *Client) Session() *discordgo.Session {
	return c.session
}

func (c *Client) GuildRoles(ctx context.Context, guildID string) ([]domain.Role, error) {
	roles, err := c.session.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("list guild roles: %w", err)
	}
	out := make([]domain.Role, 0, len(roles))
	for _, r := range roles {
		out = append(out, domain.Role{ID: r.ID, Name: r.Name})
	}
	return out, nil
}

func (c *Client) AddMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	if err := c.session.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("add member role: %w", err)
	}
	return nil
}

func (c *Client) SetNickname(ctx context.Context, guildID, userID, nick string) error {
	if err := c.session.GuildMemberNickname(guildID, userID, nick, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("set nickname: %w", err)
	}
	return nil
}

// SendDM opens (or reuses) the DM channel with a user and sends a message.
func (c *Client) SendDM(ctx context.Context, userID, content string) error {
	ch, err := c.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open dm channel: %w", err)
	}
	if _, err := c.session.ChannelMessageSend(ch.ID, content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send dm: %w", err)
	}
	return nil
}

// Followup delivers an ephemeral follow-up message for an already-answered
// interaction over the webhook follow-up channel.
func (c *Client) Followup(ctx context.Context, appID, token, content string) error {
	_, err := c.session.FollowupMessageCreate(
		&discordgo.Interaction{AppID: appID, Token: token},
		true,
		&discordgo.WebhookParams{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
		discordgo.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("send followup: %w", err)
	}
	return nil
}
