package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSessionMetadata_Empty(t *testing.T) {
	meta, err := ParseSessionMetadata(nil)
	require.NoError(t, err)
	assert.Nil(t, meta.LastItemAdded)
	assert.Empty(t, meta.PlaidStatus)

	empty := json.RawMessage("")
	meta, err = ParseSessionMetadata(&empty)
	require.NoError(t, err)
	assert.Nil(t, meta.Exchange)
}

func TestParseSessionMetadata_Corrupt(t *testing.T) {
	bad := json.RawMessage(`{broken`)
	_, err := ParseSessionMetadata(&bad)
	assert.Error(t, err)
}

func TestSessionMetadata_Raw(t *testing.T) {
	meta := SessionMetadata{
		LastItemAdded: &ItemDescriptor{ItemID: "item_1", InstitutionName: "First Platypus Bank"},
		PlaidStatus:   "SUCCESS",
		Exchange: &ExchangeOutcome{
			Succeeded: []string{"item_1"},
			Failed:    []TokenFailure{{PublicToken: "public-sandbox-bad", Reason: "invalid"}},
		},
	}

	raw, err := meta.Raw()
	require.NoError(t, err)

	parsed, err := ParseSessionMetadata(raw)
	require.NoError(t, err)
	require.NotNil(t, parsed.LastItemAdded)
	assert.Equal(t, "item_1", parsed.LastItemAdded.ItemID)
	require.NotNil(t, parsed.Exchange)
	assert.Equal(t, []string{"item_1"}, parsed.Exchange.Succeeded)
	assert.Len(t, parsed.Exchange.Failed, 1)
}

// The access token and link token carry json:"-" so they can never leak
// through a serialized response.
func TestSensitiveFieldsNeverSerialize(t *testing.T) {
	item := Item{ItemID: "item_1", AccessToken: "access-sandbox-secret"}
	data, err := json.Marshal(item)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "access-sandbox-secret")

	session := LinkSession{ID: "sess_1", LinkToken: "link-sandbox-secret"}
	data, err = json.Marshal(session)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "link-sandbox-secret")
}
