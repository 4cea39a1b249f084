package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verify-bot/internal/core"
)

// The routed commands below never reach the services, so a handler with nil
// dependencies is enough to exercise parsing and rendering.
func newTestHandler() *InteractionHandler {
	return NewInteractionHandler(core.NewHandler(nil, nil, nil, "example.edu"), nil)
}

func post(t *testing.T, h *InteractionHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/interactions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) interactionResponse {
	t.Helper()
	var res interactionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func TestHandle_PingPong(t *testing.T) {
	rec := post(t, newTestHandler(), `{"type":1}`)

	require.Equal(t, http.StatusOK, rec.Code)
	res := decode(t, rec)
	assert.Equal(t, core.ResponsePong, res.Type)
	assert.Nil(t, res.Data)
}

func TestHandle_InvalidBody(t *testing.T) {
	rec := post(t, newTestHandler(), `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandle_UnknownInteractionType(t *testing.T) {
	rec := post(t, newTestHandler(), `{"type":99}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandle_VerifyCommandRendersModal(t *testing.T) {
	rec := post(t, newTestHandler(), `{
		"type": 2,
		"guild_id": "g1",
		"member": {"user": {"id": "u1"}, "permissions": "0"},
		"data": {"name": "verify"}
	}`)

	require.Equal(t, http.StatusOK, rec.Code)
	res := decode(t, rec)
	assert.Equal(t, core.ResponseModal, res.Type)
	require.NotNil(t, res.Data)
	assert.Equal(t, core.ModalEmail, res.Data.CustomID)
	require.Len(t, res.Data.Components, 1)
	row := res.Data.Components[0]
	assert.Equal(t, 1, row.Type)
	require.Len(t, row.Components, 1)
	assert.Equal(t, core.FieldEmail, row.Components[0].CustomID)
	assert.Equal(t, 4, row.Components[0].Type)
	assert.Equal(t, 1, row.Components[0].Style)
}

func TestHandle_AdminCommandDeniedForPlainMember(t *testing.T) {
	rec := post(t, newTestHandler(), `{
		"type": 2,
		"guild_id": "g1",
		"member": {"user": {"id": "u1"}, "permissions": "0"},
		"data": {"name": "domainadd", "options": [{"name": "domain", "value": "example.edu"}]}
	}`)

	res := decode(t, rec)
	assert.Equal(t, core.ResponseMessage, res.Type)
	assert.Contains(t, res.Data.Content, "administrator permissions")
	assert.Equal(t, core.EphemeralFlag, res.Data.Flags)
}

func TestHandle_DMUserContext(t *testing.T) {
	// No member block: a DM interaction carries a top-level user instead.
	rec := post(t, newTestHandler(), `{
		"type": 2,
		"user": {"id": "u1"},
		"data": {"name": "verify"}
	}`)

	res := decode(t, rec)
	assert.Equal(t, core.ResponseMessage, res.Type)
	assert.Contains(t, res.Data.Content, "only works inside a server")
}

func TestContextOf_ParsesPermissionBitmask(t *testing.T) {
	var p interactionPayload
	require.NoError(t, json.Unmarshal([]byte(`{
		"guild_id": "g1",
		"member": {"user": {"id": "u1"}, "permissions": "2147483655"}
	}`), &p))

	cc := contextOf(&p)
	assert.Equal(t, "u1", cc.UserID)
	assert.Equal(t, "g1", cc.GuildID)
	assert.True(t, cc.IsAdmin())
}

func TestOptString_CoercesNumbers(t *testing.T) {
	assert.Equal(t, "abc", optString(json.RawMessage(`"abc"`)))
	assert.Equal(t, "42", optString(json.RawMessage(`42`)))
	assert.Equal(t, "", optString(json.RawMessage(`[1]`)))
}

func TestFieldsOf_FlattensModalRows(t *testing.T) {
	var p interactionPayload
	require.NoError(t, json.Unmarshal([]byte(`{
		"data": {"components": [
			{"components": [{"custom_id": "email_input", "value": "a@example.edu"}]}
		]}
	}`), &p))

	assert.Equal(t, map[string]string{"email_input": "a@example.edu"}, fieldsOf(&p))
}
