package core

import "context"

// InteractionKind mirrors the platform's interaction type tags.
type InteractionKind int

const (
	KindPing        InteractionKind = 1
	KindCommand     InteractionKind = 2
	KindModalSubmit InteractionKind = 5
)

// Interaction response type tags.
const (
	ResponsePong    = 1
	ResponseMessage = 4
	ResponseModal   = 9
)

// EphemeralFlag marks a response as visible only to the requesting user.
const EphemeralFlag = 1 << 6

// AdministratorBit is the administrator permission in the member bitmask.
const AdministratorBit = 1 << 3

// Command names.
const (
	CmdVerify        = "verify"
	CmdVerifyCode    = "verifycode"
	CmdStatus        = "vstatus"
	CmdPing          = "vping"
	CmdHelp          = "help"
	CmdEnableOnJoin  = "enableonjoin"
	CmdDisableOnJoin = "disableonjoin"
	CmdDomainAdd     = "domainadd"
	CmdDomainRemove  = "domainremove"
	CmdRoleChange    = "rolechange"
	CmdResetUser     = "resetuser"
)

// Email modal identifiers.
const (
	ModalEmail = "email_verification_modal"
	FieldEmail = "email_input"
)

// Context identifies the subject of an interaction. GuildID is empty for
// direct-message interactions.
type Context struct {
	UserID      string
	GuildID     string
	Permissions int64
}

func (c Context) InGuild() bool { return c.GuildID != "" }

func (c Context) IsAdmin() bool { return c.Permissions&AdministratorBit != 0 }

// Interaction is the transport-neutral form of an inbound interaction.
// Exactly one of the kind-specific field groups is populated.
type Interaction struct {
	Kind    InteractionKind
	Context Context

	// KindCommand
	Command string
	Options map[string]string

	// KindModalSubmit
	ModalID string
	Fields  map[string]string
}

// Reply is the transport-neutral response. When Modal is set the transport
// renders a form instead of a message.
type Reply struct {
	Content   string
	Ephemeral bool
	Modal     *Modal
}

// Modal describes a form the transport should present.
type Modal struct {
	CustomID string
	Title    string
	Inputs   []ModalInput
}

// ModalInput is a single short text field in a modal.
type ModalInput struct {
	CustomID    string
	Label       string
	Placeholder string
	Required    bool
}

// Followup delivers a message over the transport's out-of-band follow-up
// channel after the initial response has already been sent.
type Followup func(ctx context.Context, content string)
