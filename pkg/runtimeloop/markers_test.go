package runtimeloop

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommitLines_PlainText(t *testing.T) {
	out := parseCommitLines("Some reply.\nCOMMIT: ship the retrieval pipeline\nmore text")
	assert := assert.New(t)
	if assert.Len(out, 1) {
		assert.Equal("ship the retrieval pipeline", out[0].Title)
	}
}

func TestParseCommitLines_StructuredJSON(t *testing.T) {
	out := parseCommitLines(`COMMIT: {"title":"ship it","intended_outcome":"merged","criteria":["tests pass","reviewed"]}`)
	assert := assert.New(t)
	if assert.Len(out, 1) {
		assert.Equal("ship it", out[0].Title)
		assert.Equal("merged", out[0].IntendedOutcome)
		assert.Equal([]string{"tests pass", "reviewed"}, out[0].Criteria)
	}
}

func TestParseCloseLines_OutcomeScore(t *testing.T) {
	out := parseCloseLines(`CLOSE: {"cid":"mc_abc123","criteria_met":{"a":true,"b":false}}`)
	assert := assert.New(t)
	if assert.Len(out, 1) {
		assert.Equal("mc_abc123", out[0].CID)
		assert.InDelta(0.5, out[0].outcomeScore(), 0.0001)
	}
}

func TestParseCloseLines_PlainCIDHasNoScore(t *testing.T) {
	out := parseCloseLines("CLOSE: mc_abc123")
	assert := assert.New(t)
	if assert.Len(out, 1) {
		assert.Equal(float64(-1), out[0].outcomeScore())
	}
}

func TestParseClaimLines(t *testing.T) {
	out := parseClaimLines(`CLAIM:identity_ratify={"value":"engineer"}`)
	assert := assert.New(t)
	if assert.Len(out, 1) {
		assert.Equal("identity_ratify", out[0].Type)
		assert.Equal(`{"value":"engineer"}`, out[0].Raw)
	}
}

func TestParseRefLines(t *testing.T) {
	out := parseRefLines("REF: other_log#42")
	assert := assert.New(t)
	if assert.Len(out, 1) {
		assert.Equal("other_log", out[0].Path)
		assert.Equal(int64(42), out[0].ID)
	}
}

func TestParseAssistantHeader_RequiresAllFields(t *testing.T) {
	_, ok := parseAssistantHeader(`{"intent":"x","outcome":"y"}`)
	assert.False(t, ok)

	h, ok := parseAssistantHeader(`{"intent":"x","outcome":"y","next":"z","self_model":"w","concepts":["a"]}` + "\nbody")
	if assert.True(t, ok) {
		assert.Equal(t, []string{"a"}, h.Concepts)
	}
}

func TestFindWebCall_PlainQuery(t *testing.T) {
	call, ok := findWebCall("WEB: latest release notes")
	assert := assert.New(t)
	if assert.True(ok) {
		assert.Equal("latest release notes", call.Args["query"])
	}
}

func TestFindLedgerCall_PriorityAndForms(t *testing.T) {
	call, ok := findLedgerCall("LEDGER_GET: 17")
	assert := assert.New(t)
	if assert.True(ok) {
		assert.Equal("ledger_get", call.Tool)
		assert.EqualValues(17, call.Args["id"])
	}

	call, ok = findLedgerCall(`{"tool":"ledger_find","arguments":{"query":"identity"}}`)
	if assert.True(ok) {
		assert.Equal("ledger_find", call.Tool)
		assert.Equal("identity", call.Args["query"])
	}

	call, ok = findLedgerCall(`<invoke name="LEDGER_GET"><parameter name="id">9</parameter></invoke>`)
	if assert.True(ok) {
		assert.Equal("ledger_get", call.Tool)
		assert.EqualValues(9, call.Args["id"])
	}
}

func TestLedgerGetID_WrongParamNameFlagged(t *testing.T) {
	_, _, wrong := ledgerGetID(map[string]interface{}{"event_id": float64(3)})
	assert.True(t, wrong)

	id, ok, wrong := ledgerGetID(map[string]interface{}{"id": float64(3)})
	assert.True(t, ok)
	assert.False(t, wrong)
	assert.EqualValues(t, 3, id)
}
