package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/verify-bot/internal/core"
)

// FollowupSender delivers out-of-band follow-up messages for an
// already-answered interaction.
type FollowupSender interface {
	Followup(ctx context.Context, appID, token, content string) error
}

// InteractionHandler parses signed interaction payloads, routes them through
// the core handler and formats the response. It holds no command logic.
type InteractionHandler struct {
	core     *core.Handler
	followup FollowupSender
}

func NewInteractionHandler(h *core.Handler, followup FollowupSender) *InteractionHandler {
	return &InteractionHandler{core: h, followup: followup}
}

// ── wire format ──────────────────────────────────────────────────────────

type interactionPayload struct {
	Type          int    `json:"type"`
	ApplicationID string `json:"application_id"`
	Token         string `json:"token"`
	GuildID       string `json:"guild_id"`
	Member        *struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
		Permissions string `json:"permissions"`
	} `json:"member"`
	User *struct {
		ID string `json:"id"`
	} `json:"user"`
	Data struct {
		Name     string `json:"name"`
		CustomID string `json:"custom_id"`
		Options  []struct {
			Name  string          `json:"name"`
			Value json.RawMessage `json:"value"`
		} `json:"options"`
		Components []actionRow `json:"components"`
	} `json:"data"`
}

type actionRow struct {
	Components []struct {
		CustomID string `json:"custom_id"`
		Value    string `json:"value"`
	} `json:"components"`
}

type interactionResponse struct {
	Type int           `json:"type"`
	Data *responseData `json:"data,omitempty"`
}

type responseData struct {
	Content    string        `json:"content,omitempty"`
	Flags      int           `json:"flags,omitempty"`
	Title      string        `json:"title,omitempty"`
	CustomID   string        `json:"custom_id,omitempty"`
	Components []responseRow `json:"components,omitempty"`
}

type responseRow struct {
	Type       int                 `json:"type"` // 1 = action row
	Components []responseTextInput `json:"components"`
}

type responseTextInput struct {
	Type        int    `json:"type"`  // 4 = text input
	Style       int    `json:"style"` // 1 = short
	CustomID    string `json:"custom_id"`
	Label       string `json:"label"`
	Placeholder string `json:"placeholder,omitempty"`
	Required    bool   `json:"required"`
}

// ── handler ──────────────────────────────────────────────────────────────

func (h *InteractionHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var p interactionPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch core.InteractionKind(p.Type) {
	case core.KindPing:
		h.core.HandlePing()
		writeJSON(w, http.StatusOK, interactionResponse{Type: core.ResponsePong})

	case core.KindCommand:
		ic := &core.Interaction{
			Kind:    core.KindCommand,
			Context: contextOf(&p),
			Command: p.Data.Name,
			Options: optionsOf(&p),
		}
		reply := h.core.HandleCommand(r.Context(), ic, h.followupFunc(&p))
		writeJSON(w, http.StatusOK, renderReply(reply))

	case core.KindModalSubmit:
		ic := &core.Interaction{
			Kind:    core.KindModalSubmit,
			Context: contextOf(&p),
			ModalID: p.Data.CustomID,
			Fields:  fieldsOf(&p),
		}
		reply := h.core.HandleModalSubmit(r.Context(), ic, h.followupFunc(&p))
		writeJSON(w, http.StatusOK, renderReply(reply))

	default:
		writeError(w, http.StatusBadRequest, "unknown interaction type")
	}
}

func contextOf(p *interactionPayload) core.Context {
	cc := core.Context{GuildID: p.GuildID}
	if p.Member != nil {
		cc.UserID = p.Member.User.ID
		cc.Permissions, _ = strconv.ParseInt(p.Member.Permissions, 10, 64)
	} else if p.User != nil {
		cc.UserID = p.User.ID
	}
	return cc
}

func optionsOf(p *interactionPayload) map[string]string {
	opts := make(map[string]string, len(p.Data.Options))
	for _, o := range p.Data.Options {
		opts[o.Name] = optString(o.Value)
	}
	return opts
}

// optString coerces an option value to a string; the platform sends strings
// for string and user options but numbers for integer ones.
func optString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func fieldsOf(p *interactionPayload) map[string]string {
	fields := make(map[string]string)
	for _, row := range p.Data.Components {
		for _, c := range row.Components {
			fields[c.CustomID] = c.Value
		}
	}
	return fields
}

func (h *InteractionHandler) followupFunc(p *interactionPayload) core.Followup {
	if h.followup == nil {
		return nil
	}
	appID, token := p.ApplicationID, p.Token
	return func(ctx context.Context, content string) {
		if err := h.followup.Followup(ctx, appID, token, content); err != nil {
			slog.Error("could not deliver follow-up", "err", err)
		}
	}
}

func renderReply(reply core.Reply) interactionResponse {
	if reply.Modal != nil {
		rows := make([]responseRow, 0, len(reply.Modal.Inputs))
		for _, in := range reply.Modal.Inputs {
			rows = append(rows, responseRow{
				Type: 1,
				Components: []responseTextInput{{
					Type:        4,
					Style:       1,
					CustomID:    in.CustomID,
					Label:       in.Label,
					Placeholder: in.Placeholder,
					Required:    in.Required,
				}},
			})
		}
		return interactionResponse{
			Type: core.ResponseModal,
			Data: &responseData{
				Title:      reply.Modal.Title,
				CustomID:   reply.Modal.CustomID,
				Components: rows,
			},
		}
	}

	data := &responseData{Content: reply.Content}
	if reply.Ephemeral {
		data.Flags = core.EphemeralFlag
	}
	return interactionResponse{Type: core.ResponseMessage, Data: data}
}
