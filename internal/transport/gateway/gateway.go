package gateway

import (
	"context"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/verify-bot/internal/core"
	"github.com/verify-bot/internal/infrastructure/discord"
)

// Gateway is the persistent-connection ingress. It handles direct-message
// interactions (the webhook owns guild interactions) and the on-join
// verification prompt. Like the webhook, it only authenticates, parses and
// formats — the core handler owns all command semantics.
type Gateway struct {
	session *discordgo.Session
	core    *core.Handler
	rest    *discord.Client
}

func New(client *discord.Client, h *core.Handler) *Gateway {
	return &Gateway{session: client.Session(), core: h, rest: client}
}

// Start registers event handlers and opens the gateway connection.
func (g *Gateway) Start() error {
	g.session.Identify.Intents = discordgo.IntentsDirectMessages |
		discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers

	g.session.AddHandler(g.onReady)
	g.session.AddHandler(g.onInteraction)
	g.session.AddHandler(g.onGuildMemberAdd)

	return g.session.Open()
}

func (g *Gateway) Stop() error {
	return g.session.Close()
}

func (g *Gateway) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	slog.Info("gateway connected", "username", r.User.Username)
}

func (g *Gateway) onInteraction(s *discordgo.Session, e *discordgo.InteractionCreate) {
	// Guild interactions arrive over the signed webhook; handling them here
	// too would double-process a single user action.
	if e.GuildID != "" {
		return
	}

	ctx := context.Background()
	switch e.Type {
	case discordgo.InteractionApplicationCommand:
		data := e.ApplicationCommandData()
		ic := &core.Interaction{
			Kind:    core.KindCommand,
			Context: contextOf(e),
			Command: data.Name,
			Options: optionsOf(data.Options),
		}
		g.respond(s, e, g.core.HandleCommand(ctx, ic, g.followupFunc(e)))

	case discordgo.InteractionModalSubmit:
		data := e.ModalSubmitData()
		ic := &core.Interaction{
			Kind:    core.KindModalSubmit,
			Context: contextOf(e),
			ModalID: data.CustomID,
			Fields:  fieldsOf(data.Components),
		}
		g.respond(s, e, g.core.HandleModalSubmit(ctx, ic, g.followupFunc(e)))
	}
}

func (g *Gateway) onGuildMemberAdd(_ *discordgo.Session, e *discordgo.GuildMemberAdd) {
	ctx := context.Background()
	prompt, ok := g.core.OnJoinPrompt(ctx, e.GuildID)
	if !ok {
		return
	}
	if err := g.rest.SendDM(ctx, e.User.ID, prompt); err != nil {
		slog.Warn("could not DM join prompt", "guild_id", e.GuildID, "user_id", e.User.ID, "err", err)
	}
}

func (g *Gateway) respond(s *discordgo.Session, e *discordgo.InteractionCreate, reply core.Reply) {
	if err := s.InteractionRespond(e.Interaction, renderReply(reply)); err != nil {
		slog.Error("could not respond to interaction", "err", err)
	}
}

func (g *Gateway) followupFunc(e *discordgo.InteractionCreate) core.Followup {
	appID, token := e.AppID, e.Token
	return func(ctx context.Context, content string) {
		if err := g.rest.Followup(ctx, appID, token, content); err != nil {
			slog.Error("could not deliver follow-up", "err", err)
		}
	}
}

func contextOf(e *discordgo.InteractionCreate) core.Context {
	cc := core.Context{GuildID: e.GuildID}
	if e.Member != nil {
		cc.UserID = e.Member.User.ID
		cc.Permissions = e.Member.Permissions
	} else if e.User != nil {
		cc.UserID = e.User.ID
	}
	return cc
}

func optionsOf(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]string {
	out := make(map[string]string, len(opts))
	for _, o := range opts {
		if s, ok := o.Value.(string); ok {
			out[o.Name] = s
		}
	}
	return out
}

func fieldsOf(rows []discordgo.MessageComponent) map[string]string {
	fields := make(map[string]string)
	for _, row := range rows {
		ar, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, c := range ar.Components {
			if in, ok := c.(*discordgo.TextInput); ok {
				fields[in.CustomID] = in.Value
			}
		}
	}
	return fields
}

func renderReply(reply core.Reply) *discordgo.InteractionResponse {
	if reply.Modal != nil {
		rows := make([]discordgo.MessageComponent, 0, len(reply.Modal.Inputs))
		for _, in := range reply.Modal.Inputs {
			rows = append(rows, discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{discordgo.TextInput{
					CustomID:    in.CustomID,
					Label:       in.Label,
					Style:       discordgo.TextInputShort,
					Placeholder: in.Placeholder,
					Required:    in.Required,
				}},
			})
		}
		return &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseModal,
			Data: &discordgo.InteractionResponseData{
				CustomID:   reply.Modal.CustomID,
				Title:      reply.Modal.Title,
				Components: rows,
			},
		}
	}

	data := &discordgo.InteractionResponseData{Content: reply.Content}
	if reply.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}
}
