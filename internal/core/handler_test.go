package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/verify-bot/internal/application/issuance"
	"github.com/verify-bot/internal/application/redemption"
	"github.com/verify-bot/internal/domain"
)

// --- mocks ---

type mockPolicies struct{ mock.Mock }

func (m *mockPolicies) Get(ctx context.Context, guildID string) (*domain.GuildPolicy, error) {
	args := m.Called(ctx, guildID)
	if p, _ := args.Get(0).(*domain.GuildPolicy); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockPolicies) SetOnJoin(ctx context.Context, guildID string, enabled bool) error {
	return m.Called(ctx, guildID, enabled).Error(0)
}
func (m *mockPolicies) SetRoleName(ctx context.Context, guildID, name string) error {
	return m.Called(ctx, guildID, name).Error(0)
}
func (m *mockPolicies) AddDomain(ctx context.Context, guildID, emailDomain string) (string, error) {
	args := m.Called(ctx, guildID, emailDomain)
	return args.String(0), args.Error(1)
}
func (m *mockPolicies) RemoveDomain(ctx context.Context, guildID, emailDomain string) (string, error) {
	args := m.Called(ctx, guildID, emailDomain)
	return args.String(0), args.Error(1)
}

type mockIssuer struct{ mock.Mock }

func (m *mockIssuer) Issue(ctx context.Context, userID, guildID, email string) (*issuance.IssueResult, error) {
	args := m.Called(ctx, userID, guildID, email)
	if r, _ := args.Get(0).(*issuance.IssueResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockRedeemer struct{ mock.Mock }

func (m *mockRedeemer) Redeem(ctx context.Context, userID, guildID, code string) (*redemption.RedeemResult, error) {
	args := m.Called(ctx, userID, guildID, code)
	if r, _ := args.Get(0).(*redemption.RedeemResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockRedeemer) GrantRole(ctx context.Context, guildID, userID, email string) (*redemption.GrantResult, error) {
	args := m.Called(ctx, guildID, userID, email)
	if r, _ := args.Get(0).(*redemption.GrantResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockRedeemer) Reset(ctx context.Context, guildID, userID string) error {
	return m.Called(ctx, guildID, userID).Error(0)
}

func newHandler(p *mockPolicies, i *mockIssuer, r *mockRedeemer) *Handler {
	return NewHandler(p, i, r, "example.edu")
}

func guildAdmin() Context {
	return Context{UserID: "u1", GuildID: "g1", Permissions: AdministratorBit}
}

func guildMember() Context {
	return Context{UserID: "u1", GuildID: "g1"}
}

func dmUser() Context {
	return Context{UserID: "u1"}
}

// collectFollowup returns a Followup that forwards messages to a channel.
func collectFollowup() (Followup, chan string) {
	ch := make(chan string, 1)
	return func(_ context.Context, content string) { ch <- content }, ch
}

func waitFollowup(t *testing.T, ch chan string) string {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no follow-up message delivered")
		return ""
	}
}

// --- ping / help / unknown ---

func TestHandlePing(t *testing.T) {
	h := newHandler(&mockPolicies{}, &mockIssuer{}, &mockRedeemer{})
	assert.Equal(t, Reply{}, h.HandlePing())
}

func TestHandleCommand_Ping(t *testing.T) {
	h := newHandler(&mockPolicies{}, &mockIssuer{}, &mockRedeemer{})
	r := h.HandleCommand(context.Background(), &Interaction{Kind: KindCommand, Command: CmdPing, Context: dmUser()}, nil)

	assert.Equal(t, "Pong!", r.Content)
	assert.True(t, r.Ephemeral)
}

func TestHandleCommand_Unknown(t *testing.T) {
	h := newHandler(&mockPolicies{}, &mockIssuer{}, &mockRedeemer{})
	r := h.HandleCommand(context.Background(), &Interaction{Kind: KindCommand, Command: "bogus", Context: guildMember()}, nil)

	assert.Equal(t, "Unknown command.", r.Content)
}

// --- verify ---

func TestHandleCommand_VerifyOpensModal(t *testing.T) {
	h := newHandler(&mockPolicies{}, &mockIssuer{}, &mockRedeemer{})
	r := h.HandleCommand(context.Background(), &Interaction{Kind: KindCommand, Command: CmdVerify, Context: guildMember()}, nil)

	require.NotNil(t, r.Modal)
	assert.Equal(t, ModalEmail, r.Modal.CustomID)
	require.Len(t, r.Modal.Inputs, 1)
	assert.Equal(t, FieldEmail, r.Modal.Inputs[0].CustomID)
}

func TestHandleCommand_VerifyRejectedInDM(t *testing.T) {
	h := newHandler(&mockPolicies{}, &mockIssuer{}, &mockRedeemer{})
	r := h.HandleCommand(context.Background(), &Interaction{Kind: KindCommand, Command: CmdVerify, Context: dmUser()}, nil)

	assert.Nil(t, r.Modal)
	assert.Contains(t, r.Content, "only works inside a server")
}

// --- modal submit ---

func TestHandleModalSubmit_Success(t *testing.T) {
	is := &mockIssuer{}
	is.On("Issue", mock.Anything, "u1", "g1", "a@example.edu").Return(&issuance.IssueResult{
		Email: "a@example.edu", Code: "123456", Dispatched: true,
	}, nil)

	h := newHandler(&mockPolicies{}, is, &mockRedeemer{})
	r := h.HandleModalSubmit(context.Background(), &Interaction{
		Kind:    KindModalSubmit,
		Context: guildMember(),
		ModalID: ModalEmail,
		Fields:  map[string]string{FieldEmail: "a@example.edu"},
	}, nil)

	assert.Contains(t, r.Content, "a@example.edu")
	assert.Contains(t, r.Content, "expires in 10 minutes")
	// The code itself never appears in chat.
	assert.NotContains(t, r.Content, "123456")
	assert.True(t, r.Ephemeral)
}

func TestHandleModalSubmit_DispatchFailure(t *testing.T) {
	is := &mockIssuer{}
	is.On("Issue", mock.Anything, "u1", "g1", "a@example.edu").Return(&issuance.IssueResult{
		Email: "a@example.edu", Code: "123456", Dispatched: false,
	}, nil)

	h := newHandler(&mockPolicies{}, is, &mockRedeemer{})
	r := h.HandleModalSubmit(context.Background(), &Interaction{
		Kind:    KindModalSubmit,
		Context: guildMember(),
		ModalID: ModalEmail,
		Fields:  map[string]string{FieldEmail: "a@example.edu"},
	}, nil)

	assert.Contains(t, r.Content, "Could not send the verification email")
}

func TestHandleModalSubmit_RejectionMessages(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{domain.ErrInvalidEmail, "valid email"},
		{domain.ErrAlreadyVerified, "already verified with that email"},
		{domain.ErrVerifiedOtherEmail, "different email"},
		{domain.ErrEmailClaimed, "another verified member"},
		{domain.ErrDomainNotAllowed, "not allowed"},
		{domain.ErrAttemptRace, "already in progress"},
		{errors.New("dynamo down"), "Something went wrong"},
	}
	for _, tc := range cases {
		is := &mockIssuer{}
		is.On("Issue", mock.Anything, "u1", "g1", "x").Return(nil, tc.err)

		h := newHandler(&mockPolicies{}, is, &mockRedeemer{})
		r := h.HandleModalSubmit(context.Background(), &Interaction{
			Kind:    KindModalSubmit,
			Context: guildMember(),
			ModalID: ModalEmail,
			Fields:  map[string]string{FieldEmail: "x"},
		}, nil)

		assert.Contains(t, r.Content, tc.want, "error %v", tc.err)
		assert.True(t, r.Ephemeral)
	}
}

// --- verifycode ---

func TestVerifyCode_SuccessThenGrantFollowup(t *testing.T) {
	rd := &mockRedeemer{}
	rd.On("Redeem", mock.Anything, "u1", "g1", "123456").Return(&redemption.RedeemResult{Email: "a@example.edu"}, nil)
	rd.On("GrantRole", mock.Anything, "g1", "u1", "a@example.edu").Return(&redemption.GrantResult{
		Granted: true, RoleName: "Verified",
	}, nil)

	h := newHandler(&mockPolicies{}, &mockIssuer{}, rd)
	followup, ch := collectFollowup()
	r := h.HandleCommand(context.Background(), &Interaction{
		Kind:    KindCommand,
		Command: CmdVerifyCode,
		Context: guildMember(),
		Options: map[string]string{"code": "123456"},
	}, followup)

	assert.Contains(t, r.Content, "successfully verified")
	assert.Contains(t, waitFollowup(t, ch), "**Verified**")
}

func TestVerifyCode_GrantFailureFollowup(t *testing.T) {
	rd := &mockRedeemer{}
	rd.On("Redeem", mock.Anything, "u1", "g1", "123456").Return(&redemption.RedeemResult{Email: "a@example.edu"}, nil)
	rd.On("GrantRole", mock.Anything, "g1", "u1", "a@example.edu").Return(nil, errors.New("missing permission"))

	h := newHandler(&mockPolicies{}, &mockIssuer{}, rd)
	followup, ch := collectFollowup()
	r := h.HandleCommand(context.Background(), &Interaction{
		Kind:    KindCommand,
		Command: CmdVerifyCode,
		Context: guildMember(),
		Options: map[string]string{"code": "123456"},
	}, followup)

	assert.Contains(t, r.Content, "successfully verified")
	assert.Contains(t, waitFollowup(t, ch), "could not be assigned")
}

func TestVerifyCode_NoRoleMatchListsCandidates(t *testing.T) {
	rd := &mockRedeemer{}
	rd.On("Redeem", mock.Anything, "u1", "g1", "123456").Return(&redemption.RedeemResult{Email: "a@example.edu"}, nil)
	rd.On("GrantRole", mock.Anything, "g1", "u1", "a@example.edu").Return(&redemption.GrantResult{
		RoleName: "Members", Candidates: []string{"@everyone", "Verified"},
	}, nil)

	h := newHandler(&mockPolicies{}, &mockIssuer{}, rd)
	followup, ch := collectFollowup()
	h.HandleCommand(context.Background(), &Interaction{
		Kind:    KindCommand,
		Command: CmdVerifyCode,
		Context: guildMember(),
		Options: map[string]string{"code": "123456"},
	}, followup)

	msg := waitFollowup(t, ch)
	assert.Contains(t, msg, "no role named **Members**")
	assert.Contains(t, msg, "@everyone, Verified")
}

func TestVerifyCode_InvalidCode(t *testing.T) {
	rd := &mockRedeemer{}
	rd.On("Redeem", mock.Anything, "u1", "g1", "000000").Return(nil, domain.ErrCodeInvalid)

	h := newHandler(&mockPolicies{}, &mockIssuer{}, rd)
	r := h.HandleCommand(context.Background(), &Interaction{
		Kind:    KindCommand,
		Command: CmdVerifyCode,
		Context: guildMember(),
		Options: map[string]string{"code": "000000"},
	}, nil)

	assert.Equal(t, msgCodeInvalid, r.Content)
	rd.AssertNotCalled(t, "GrantRole", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyCode_EmptyCode(t *testing.T) {
	rd := &mockRedeemer{}
	h := newHandler(&mockPolicies{}, &mockIssuer{}, rd)
	r := h.HandleCommand(context.Background(), &Interaction{
		Kind:    KindCommand,
		Command: CmdVerifyCode,
		Context: guildMember(),
		Options: map[string]string{"code": "  "},
	}, nil)

	assert.Contains(t, r.Content, "provide a verification code")
	rd.AssertNotCalled(t, "Redeem", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// --- admin gating ---

func TestAdminCommands_DeniedWithoutPermission(t *testing.T) {
	for _, cmd := range []string{CmdEnableOnJoin, CmdDisableOnJoin, CmdDomainAdd, CmdDomainRemove, CmdRoleChange, CmdResetUser} {
		p := &mockPolicies{}
		rd := &mockRedeemer{}
		h := newHandler(p, &mockIssuer{}, rd)
		r := h.HandleCommand(context.Background(), &Interaction{
			Kind: KindCommand, Command: cmd, Context: guildMember(),
		}, nil)

		assert.Equal(t, msgDenied, r.Content, "command %s", cmd)
	}
}

func TestAdminCommands_PermissionCheckedBeforeGuildContext(t *testing.T) {
	h := newHandler(&mockPolicies{}, &mockIssuer{}, &mockRedeemer{})

	// A DM user with no admin bit gets the permission message, not the
	// guild-context one.
	r := h.HandleCommand(context.Background(), &Interaction{
		Kind: KindCommand, Command: CmdDomainAdd, Context: dmUser(),
	}, nil)
	assert.Equal(t, msgDenied, r.Content)

	// An admin in a DM then hits the guild-context requirement.
	r = h.HandleCommand(context.Background(), &Interaction{
		Kind: KindCommand, Command: CmdDomainAdd,
		Context: Context{UserID: "u1", Permissions: AdministratorBit},
	}, nil)
	assert.Equal(t, msgRequiresGuild, r.Content)
}

func TestAdminCommand_OnJoinToggle(t *testing.T) {
	p := &mockPolicies{}
	p.On("SetOnJoin", mock.Anything, "g1", true).Return(nil)
	p.On("SetOnJoin", mock.Anything, "g1", false).Return(nil)

	h := newHandler(p, &mockIssuer{}, &mockRedeemer{})
	r := h.HandleCommand(context.Background(), &Interaction{Kind: KindCommand, Command: CmdEnableOnJoin, Context: guildAdmin()}, nil)
	assert.Contains(t, r.Content, "enabled")

	r = h.HandleCommand(context.Background(), &Interaction{Kind: KindCommand, Command: CmdDisableOnJoin, Context: guildAdmin()}, nil)
	assert.Contains(t, r.Content, "disabled")
	p.AssertExpectations(t)
}

func TestAdminCommand_DomainAdd(t *testing.T) {
	p := &mockPolicies{}
	p.On("AddDomain", mock.Anything, "g1", "Example.EDU").Return("example.edu", nil)

	h := newHandler(p, &mockIssuer{}, &mockRedeemer{})
	r := h.HandleCommand(context.Background(), &Interaction{
		Kind: KindCommand, Command: CmdDomainAdd, Context: guildAdmin(),
		Options: map[string]string{"domain": "Example.EDU"},
	}, nil)

	assert.Contains(t, r.Content, "example.edu has been added")
}

func TestAdminCommand_DomainAddMissingArg(t *testing.T) {
	p := &mockPolicies{}
	p.On("AddDomain", mock.Anything, "g1", "").Return("", domain.ErrBadRequest)

	h := newHandler(p, &mockIssuer{}, &mockRedeemer{})
	r := h.HandleCommand(context.Background(), &Interaction{
		Kind: KindCommand, Command: CmdDomainAdd, Context: guildAdmin(),
	}, nil)

	assert.Contains(t, r.Content, "provide a domain")
}

func TestAdminCommand_RoleChange(t *testing.T) {
	p := &mockPolicies{}
	p.On("SetRoleName", mock.Anything, "g1", "Members").Return(nil)

	h := newHandler(p, &mockIssuer{}, &mockRedeemer{})
	r := h.HandleCommand(context.Background(), &Interaction{
		Kind: KindCommand, Command: CmdRoleChange, Context: guildAdmin(),
		Options: map[string]string{"rolename": "Members"},
	}, nil)

	assert.Contains(t, r.Content, "changed to Members")
}

func TestAdminCommand_ResetUser(t *testing.T) {
	rd := &mockRedeemer{}
	rd.On("Reset", mock.Anything, "g1", "u9").Return(nil)

	h := newHandler(&mockPolicies{}, &mockIssuer{}, rd)
	r := h.HandleCommand(context.Background(), &Interaction{
		Kind: KindCommand, Command: CmdResetUser, Context: guildAdmin(),
		Options: map[string]string{"user": "u9"},
	}, nil)

	assert.Contains(t, r.Content, "<@u9>")
	rd.AssertExpectations(t)
}

// --- status / join prompt ---

func TestStatus_InGuildShowsSettings(t *testing.T) {
	p := &mockPolicies{}
	p.On("Get", mock.Anything, "g1").Return(&domain.GuildPolicy{
		GuildID: "g1", Domains: []string{"example.edu"}, OnJoin: true, RoleName: "Verified",
	}, nil)

	h := newHandler(p, &mockIssuer{}, &mockRedeemer{})
	r := h.HandleCommand(context.Background(), &Interaction{Kind: KindCommand, Command: CmdStatus, Context: guildMember()}, nil)

	assert.Contains(t, r.Content, "Domains: example.edu")
	assert.Contains(t, r.Content, "joins? true")
	assert.Contains(t, r.Content, "Verified role: Verified")
}

func TestStatus_NoDomainsShowsDefault(t *testing.T) {
	p := &mockPolicies{}
	p.On("Get", mock.Anything, "g1").Return(&domain.GuildPolicy{
		GuildID: "g1", RoleName: "Verified",
	}, nil)

	h := newHandler(p, &mockIssuer{}, &mockRedeemer{})
	r := h.HandleCommand(context.Background(), &Interaction{Kind: KindCommand, Command: CmdStatus, Context: guildMember()}, nil)

	assert.Contains(t, r.Content, "none (default: example.edu)")
}

func TestStatus_InDM(t *testing.T) {
	h := newHandler(&mockPolicies{}, &mockIssuer{}, &mockRedeemer{})
	r := h.HandleCommand(context.Background(), &Interaction{Kind: KindCommand, Command: CmdStatus, Context: dmUser()}, nil)

	assert.Contains(t, r.Content, "Bot is online")
}

func TestOnJoinPrompt(t *testing.T) {
	p := &mockPolicies{}
	p.On("Get", mock.Anything, "g1").Return(&domain.GuildPolicy{GuildID: "g1", OnJoin: true}, nil)
	p.On("Get", mock.Anything, "g2").Return(&domain.GuildPolicy{GuildID: "g2"}, nil)

	h := newHandler(p, &mockIssuer{}, &mockRedeemer{})

	msg, ok := h.OnJoinPrompt(context.Background(), "g1")
	assert.True(t, ok)
	assert.Contains(t, msg, "/verify")

	_, ok = h.OnJoinPrompt(context.Background(), "g2")
	assert.False(t, ok)
}
