package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/verify-bot/internal/application/issuance"
	"github.com/verify-bot/internal/application/redemption"
	"github.com/verify-bot/internal/domain"
)

// PolicyService is the policy surface the handler needs.
type PolicyService interface {
	Get(ctx context.Context, guildID string) (*domain.GuildPolicy, error)
	SetOnJoin(ctx context.Context, guildID string, enabled bool) error
	SetRoleName(ctx context.Context, guildID, name string) error
	AddDomain(ctx context.Context, guildID, emailDomain string) (string, error)
	RemoveDomain(ctx context.Context, guildID, emailDomain string) (string, error)
}

// Issuer is the issuance surface the handler needs.
type Issuer interface {
	Issue(ctx context.Context, userID, guildID, emailCandidate string) (*issuance.IssueResult, error)
}

// Redeemer is the redemption surface the handler needs.
type Redeemer interface {
	Redeem(ctx context.Context, userID, guildID, submittedCode string) (*redemption.RedeemResult, error)
	GrantRole(ctx context.Context, guildID, userID, email string) (*redemption.GrantResult, error)
	Reset(ctx context.Context, guildID, userID string) error
}

// Handler implements the command semantics once, for both ingress
// transports. Transports authenticate, parse and format; nothing else.
type Handler struct {
	policies      PolicyService
	issuer        Issuer
	redeemer      Redeemer
	defaultDomain string
}

func NewHandler(policies PolicyService, issuer Issuer, redeemer Redeemer, defaultDomain string) *Handler {
	return &Handler{
		policies:      policies,
		issuer:        issuer,
		redeemer:      redeemer,
		defaultDomain: defaultDomain,
	}
}

const (
	msgRequiresGuild = "This command only works inside a server. DM commands: /vping, /vstatus, /help."
	msgDenied        = "You need administrator permissions to use this command."
	msgCodeInvalid   = "The verification code is incorrect or has expired. Please try again."
	msgInternal      = "Something went wrong while processing your request. Please try again."

	helpText = "User commands:\n" +
		"  /verify - start email verification\n" +
		"  /verifycode <code> - complete verification with the emailed code\n" +
		"  /vstatus - bot status and server settings\n" +
		"  /vping - response check\n" +
		"  /help - this message\n\n" +
		"Admin commands:\n" +
		"  /enableonjoin - prompt new members to verify\n" +
		"  /disableonjoin - stop prompting new members\n" +
		"  /domainadd <domain> - allow an email domain\n" +
		"  /domainremove <domain> - remove an email domain\n" +
		"  /rolechange <rolename> - change the verified role\n" +
		"  /resetuser <user> - clear a user's verification records"
)

// HandlePing answers the transport's liveness probe.
func (h *Handler) HandlePing() Reply {
	return Reply{}
}

// HandleCommand executes a slash command. The followup channel is used for
// results produced after the initial response has been sent; it may be nil
// for transports without one.
func (h *Handler) HandleCommand(ctx context.Context, ic *Interaction, followup Followup) Reply {
	switch ic.Command {
	case CmdPing:
		return Reply{Content: "Pong!", Ephemeral: true}

	case CmdHelp:
		return Reply{Content: helpText, Ephemeral: true}

	case CmdStatus:
		return h.status(ctx, ic.Context)

	case CmdVerify:
		if !ic.Context.InGuild() {
			return Reply{Content: msgRequiresGuild, Ephemeral: true}
		}
		return Reply{Modal: &Modal{
			CustomID: ModalEmail,
			Title:    "Email Verification",
			Inputs: []ModalInput{{
				CustomID:    FieldEmail,
				Label:       "Your Email Address",
				Placeholder: "example@domain.com",
				Required:    true,
			}},
		}}

	case CmdVerifyCode:
		if !ic.Context.InGuild() {
			return Reply{Content: msgRequiresGuild, Ephemeral: true}
		}
		return h.verifyCode(ctx, ic, followup)

	case CmdEnableOnJoin, CmdDisableOnJoin, CmdDomainAdd, CmdDomainRemove, CmdRoleChange, CmdResetUser:
		// Permission gating comes before any other validation.
		if !ic.Context.IsAdmin() {
			return Reply{Content: msgDenied, Ephemeral: true}
		}
		if !ic.Context.InGuild() {
			return Reply{Content: msgRequiresGuild, Ephemeral: true}
		}
		return h.adminCommand(ctx, ic)

	default:
		return Reply{Content: "Unknown command.", Ephemeral: true}
	}
}

// HandleModalSubmit processes a submitted form.
func (h *Handler) HandleModalSubmit(ctx context.Context, ic *Interaction, _ Followup) Reply {
	if ic.ModalID != ModalEmail {
		return Reply{Content: "Unknown form.", Ephemeral: true}
	}
	if !ic.Context.InGuild() {
		return Reply{Content: msgRequiresGuild, Ephemeral: true}
	}
	email := ic.Fields[FieldEmail]
	res, err := h.issuer.Issue(ctx, ic.Context.UserID, ic.Context.GuildID, email)
	if err != nil {
		return Reply{Content: issueMessage(err), Ephemeral: true}
	}
	if !res.Dispatched {
		return Reply{
			Content:   fmt.Sprintf("Could not send the verification email to **%s**. Please run /verify again.", res.Email),
			Ephemeral: true,
		}
	}
	return Reply{
		Content: fmt.Sprintf("A verification code has been sent to **%s**.\n"+
			"Use /verifycode to complete verification. The code expires in 10 minutes.", res.Email),
		Ephemeral: true,
	}
}

// OnJoinPrompt returns the message to DM a newly joined member, if the
// guild's policy asks for one.
func (h *Handler) OnJoinPrompt(ctx context.Context, guildID string) (string, bool) {
	pol, err := h.policies.Get(ctx, guildID)
	if err != nil {
		slog.Error("could not load policy for join prompt", "guild_id", guildID, "err", err)
		return "", false
	}
	if !pol.OnJoin {
		return "", false
	}
	return "Welcome! Please verify your email address by using the /verify command in the server.", true
}

func (h *Handler) verifyCode(ctx context.Context, ic *Interaction, followup Followup) Reply {
	submitted := strings.TrimSpace(ic.Options["code"])
	if submitted == "" {
		return Reply{Content: "Please provide a verification code.", Ephemeral: true}
	}
	res, err := h.redeemer.Redeem(ctx, ic.Context.UserID, ic.Context.GuildID, submitted)
	if err != nil {
		if errors.Is(err, domain.ErrCodeInvalid) {
			return Reply{Content: msgCodeInvalid, Ephemeral: true}
		}
		slog.Error("redemption failed", "guild_id", ic.Context.GuildID, "user_id", ic.Context.UserID, "err", err)
		return Reply{Content: msgInternal, Ephemeral: true}
	}

	// The verification is committed; the role grant runs as a follow-up
	// unit whose outcome can only affect the follow-up message.
	if followup != nil {
		cc := ic.Context
		go h.deliverGrant(context.WithoutCancel(ctx), cc, res.Email, followup)
	}
	return Reply{
		Content:   "Your email has been successfully verified! Assigning your role...",
		Ephemeral: true,
	}
}

func (h *Handler) deliverGrant(ctx context.Context, cc Context, email string, followup Followup) {
	res, err := h.redeemer.GrantRole(ctx, cc.GuildID, cc.UserID, email)
	switch {
	case err != nil:
		slog.Error("role grant failed", "guild_id", cc.GuildID, "user_id", cc.UserID, "err", err)
		followup(ctx, "You are verified, but the role could not be assigned. Please contact an admin.")
	case res.Granted:
		followup(ctx, fmt.Sprintf("You have been given the **%s** role.", res.RoleName))
	default:
		msg := fmt.Sprintf("You are verified, but no role named **%s** exists in this server. "+
			"Ask an admin to create it or run /rolechange.", res.RoleName)
		if len(res.Candidates) > 0 {
			msg += "\nExisting roles: " + strings.Join(res.Candidates, ", ")
		}
		followup(ctx, msg)
	}
}

func (h *Handler) status(ctx context.Context, cc Context) Reply {
	if !cc.InGuild() {
		return Reply{
			Content:   "Bot is online. Server commands are handled in server channels; /vping and /help work here.",
			Ephemeral: true,
		}
	}
	pol, err := h.policies.Get(ctx, cc.GuildID)
	if err != nil {
		slog.Error("could not load policy for status", "guild_id", cc.GuildID, "err", err)
		return Reply{Content: msgInternal, Ephemeral: true}
	}
	domains := strings.Join(pol.Domains, ", ")
	if domains == "" {
		domains = fmt.Sprintf("none (default: %s)", h.defaultDomain)
	}
	return Reply{
		Content: fmt.Sprintf("%s\n\nCurrent settings:\nDomains: %s\nVerify when a user joins? %t\nVerified role: %s",
			helpText, domains, pol.OnJoin, pol.RoleName),
		Ephemeral: true,
	}
}

func (h *Handler) adminCommand(ctx context.Context, ic *Interaction) Reply {
	guildID := ic.Context.GuildID
	switch ic.Command {
	case CmdEnableOnJoin:
		if err := h.policies.SetOnJoin(ctx, guildID, true); err != nil {
			return h.adminError(ic, err)
		}
		return Reply{Content: "Verification on join has been enabled."}

	case CmdDisableOnJoin:
		if err := h.policies.SetOnJoin(ctx, guildID, false); err != nil {
			return h.adminError(ic, err)
		}
		return Reply{Content: "Verification on join has been disabled."}

	case CmdDomainAdd:
		d, err := h.policies.AddDomain(ctx, guildID, ic.Options["domain"])
		if errors.Is(err, domain.ErrBadRequest) {
			return Reply{Content: "Please provide a domain to add.", Ephemeral: true}
		}
		if err != nil {
			return h.adminError(ic, err)
		}
		return Reply{Content: fmt.Sprintf("Domain %s has been added.", d)}

	case CmdDomainRemove:
		d, err := h.policies.RemoveDomain(ctx, guildID, ic.Options["domain"])
		if errors.Is(err, domain.ErrBadRequest) {
			return Reply{Content: "Please provide a domain to remove.", Ephemeral: true}
		}
		if err != nil {
			return h.adminError(ic, err)
		}
		return Reply{Content: fmt.Sprintf("Domain %s has been removed.", d)}

	case CmdRoleChange:
		name := ic.Options["rolename"]
		if err := h.policies.SetRoleName(ctx, guildID, name); err != nil {
			if errors.Is(err, domain.ErrBadRequest) {
				return Reply{Content: "Please provide the name of the new verified role.", Ephemeral: true}
			}
			return h.adminError(ic, err)
		}
		return Reply{Content: fmt.Sprintf("Verified role has been changed to %s.", name)}

	case CmdResetUser:
		target := strings.TrimSpace(ic.Options["user"])
		if target == "" {
			return Reply{Content: "Please provide a user to reset.", Ephemeral: true}
		}
		if err := h.redeemer.Reset(ctx, guildID, target); err != nil {
			return h.adminError(ic, err)
		}
		return Reply{Content: fmt.Sprintf("Verification records for <@%s> have been cleared.", target), Ephemeral: true}
	}
	return Reply{Content: "Unknown command.", Ephemeral: true}
}

func (h *Handler) adminError(ic *Interaction, err error) Reply {
	slog.Error("admin command failed", "command", ic.Command, "guild_id", ic.Context.GuildID, "err", err)
	return Reply{Content: msgInternal, Ephemeral: true}
}

// issueMessage maps an issuance rejection to its user-facing reply.
func issueMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidEmail):
		return "That doesn't look like a valid email address."
	case errors.Is(err, domain.ErrAlreadyVerified):
		return "You are already verified with that email."
	case errors.Is(err, domain.ErrVerifiedOtherEmail):
		return "You are already verified with a different email. Contact an administrator to change it."
	case errors.Is(err, domain.ErrEmailClaimed):
		return "That email is already used by another verified member."
	case errors.Is(err, domain.ErrDomainNotAllowed):
		return "The provided email domain is not allowed."
	case errors.Is(err, domain.ErrAttemptRace):
		return "Another verification is already in progress. Please try again."
	default:
		slog.Error("issuance failed", "err", err)
		return msgInternal
	}
}
