// ABOUTME: Tests for Lead JSON round-tripping and deep copies
// ABOUTME: Covers unknown-field preservation, collision rules, and Clone independence
package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeadUnknownFieldsRoundTrip(t *testing.T) {
	payload := []byte(`{
		"id": "lead_1",
		"updatedAt": 100,
		"companyName": "Acme Corp",
		"status": "Novo Lead",
		"aiScore": 0.92,
		"pipelineStage": {"name": "warm", "rank": 2}
	}`)

	var lead Lead
	require.NoError(t, json.Unmarshal(payload, &lead))

	assert.Equal(t, "lead_1", lead.ID)
	assert.Equal(t, int64(100), lead.UpdatedAt)
	assert.Equal(t, "Acme Corp", lead.CompanyName)
	require.Contains(t, lead.Extra, "aiScore")
	require.Contains(t, lead.Extra, "pipelineStage")
	assert.NotContains(t, lead.Extra, "companyName")

	out, err := json.Marshal(lead)
	require.NoError(t, err)

	var round map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &round))
	assert.JSONEq(t, `0.92`, string(round["aiScore"]))
	assert.JSONEq(t, `{"name": "warm", "rank": 2}`, string(round["pipelineStage"]))
	assert.JSONEq(t, `"Acme Corp"`, string(round["companyName"]))
}

func TestLeadMarshalKnownFieldWinsCollision(t *testing.T) {
	lead := Lead{
		ID:          "lead_1",
		UpdatedAt:   50,
		CompanyName: "Real Name",
		Status:      StatusNew,
		Extra: map[string]json.RawMessage{
			"companyName": json.RawMessage(`"Stale Name"`),
		},
	}

	out, err := json.Marshal(lead)
	require.NoError(t, err)

	var round map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &round))
	assert.JSONEq(t, `"Real Name"`, string(round["companyName"]))
}

func TestLeadNeedsSyncTag(t *testing.T) {
	lead := Lead{ID: "lead_1", Status: StatusNew, NeedsSync: true}
	out, err := json.Marshal(lead)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"_needsSync":true`)

	// Omitted when false
	lead.NeedsSync = false
	out, err = json.Marshal(lead)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "_needsSync")
}

func TestLeadActive(t *testing.T) {
	lead := Lead{ID: "lead_1"}
	assert.True(t, lead.Active())

	deletedAt := int64(100)
	lead.DeletedAt = &deletedAt
	assert.False(t, lead.Active())
}

func TestLeadCloneIndependence(t *testing.T) {
	rating := 4.5
	script := "custom"
	original := Lead{
		ID:             "lead_1",
		CompanyName:    "Acme",
		OriginRating:   &rating,
		CustomScript:   &script,
		Decisors:       []Contact{{Name: "Ana", Phone: "11 99999-0000"}},
		SitePainPoints: []string{"Carregamento lento"},
		Extra: map[string]json.RawMessage{
			"aiScore": json.RawMessage(`1`),
		},
	}

	clone := original.Clone()
	clone.Decisors[0].Name = "Changed"
	*clone.OriginRating = 1.0
	*clone.CustomScript = "changed"
	clone.SitePainPoints[0] = "changed"
	clone.Extra["aiScore"] = json.RawMessage(`2`)

	assert.Equal(t, "Ana", original.Decisors[0].Name)
	assert.Equal(t, 4.5, *original.OriginRating)
	assert.Equal(t, "custom", *original.CustomScript)
	assert.Equal(t, "Carregamento lento", original.SitePainPoints[0])
	assert.JSONEq(t, `1`, string(original.Extra["aiScore"]))
}
