// ABOUTME: Tests for the field-level lead merge policy
// ABOUTME: Covers sticky vs prefer-incoming fields, counters, unions, and the status guard
package sync

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldflow/coldflow/models"
)

func TestMergeContactsByPhone(t *testing.T) {
	current := []models.Contact{{Name: "", Phone: "11 98765-4321"}}
	incoming := []models.Contact{{Name: "Ana", Phone: "(11) 98765-4321", Role: "Sócia"}}

	merged := MergeContacts(current, incoming)
	require.Len(t, merged, 1)
	assert.Equal(t, "Ana", merged[0].Name)
	assert.Equal(t, "Sócia", merged[0].Role)
	// Existing phone formatting is kept
	assert.Equal(t, "11 98765-4321", merged[0].Phone)
}

func TestMergeContactsByNameFallback(t *testing.T) {
	current := []models.Contact{{Name: "João"}}
	incoming := []models.Contact{{Name: "joao", Role: "Sócio"}}

	merged := MergeContacts(current, incoming)
	require.Len(t, merged, 1)
	assert.Equal(t, "João", merged[0].Name)
	assert.Equal(t, "Sócio", merged[0].Role)
}

func TestMergeContactsPhoneKeyNeverCollidesWithNameKey(t *testing.T) {
	// A contact carrying a phone is keyed by it, so it lands next to a
	// phoneless same-name contact rather than folding into it.
	current := []models.Contact{{Name: "João"}}
	incoming := []models.Contact{{Name: "joao", Phone: "11 1111-1111"}}

	merged := MergeContacts(current, incoming)
	assert.Len(t, merged, 2)
}

func TestMergeContactsNoKeyKept(t *testing.T) {
	current := []models.Contact{{Role: "Recepção"}}
	incoming := []models.Contact{{Role: "Gerente"}}

	merged := MergeContacts(current, incoming)
	assert.Len(t, merged, 2)
}

func TestMergeReferencesByLink(t *testing.T) {
	current := []models.Reference{{Type: "social", Platform: "instagram", Link: "https://instagram.com/acme"}}
	incoming := []models.Reference{
		{Type: "social", Platform: "instagram", Link: "instagram.com/acme/"},
		{Type: "review", Platform: "google", Link: "https://g.page/acme"},
	}

	merged := MergeReferences(current, incoming)
	assert.Len(t, merged, 2)
}

func TestMergeLeadsStickyIdentityFields(t *testing.T) {
	existing := models.Lead{ID: "a", CompanyName: "Acme Ltda", Segment: "Advogados", SiteURL: "acme.com"}
	incoming := models.Lead{ID: "b", CompanyName: "Acme", Segment: "Outros", SiteURL: "other.com", Origin: "Google Maps"}

	merged := MergeLeads(existing, incoming, false)
	assert.Equal(t, "a", merged.ID)
	assert.Equal(t, "Acme Ltda", merged.CompanyName)
	assert.Equal(t, "Advogados", merged.Segment)
	assert.Equal(t, "acme.com", merged.SiteURL)
	// Empty existing fields take the incoming value
	assert.Equal(t, "Google Maps", merged.Origin)
}

func TestMergeLeadsPreferIncomingOperationalFields(t *testing.T) {
	existing := models.Lead{ID: "a", Notes: "old notes", ChannelLastAttempt: "Ligação"}
	incoming := models.Lead{ID: "b", Notes: "new notes"}

	merged := MergeLeads(existing, incoming, false)
	assert.Equal(t, "new notes", merged.Notes)
	// Incoming blank keeps the existing value
	assert.Equal(t, "Ligação", merged.ChannelLastAttempt)
}

func TestMergeLeadsCountersTakeMax(t *testing.T) {
	existing := models.Lead{ID: "a", Attempts: 5, YearsInBusiness: 2}
	incoming := models.Lead{ID: "b", Attempts: 3, YearsInBusiness: 10}

	merged := MergeLeads(existing, incoming, false)
	assert.Equal(t, 5, merged.Attempts)
	assert.Equal(t, 10, merged.YearsInBusiness)
}

func TestMergeLeadsMostRecentContactDate(t *testing.T) {
	existing := models.Lead{ID: "a", LastContactDate: "2026-01-10"}
	incoming := models.Lead{ID: "b", LastContactDate: "2026-02-01"}

	merged := MergeLeads(existing, incoming, false)
	assert.Equal(t, "2026-02-01", merged.LastContactDate)

	// Reversed order keeps the later date too
	merged = MergeLeads(incoming, existing, false)
	assert.Equal(t, "2026-02-01", merged.LastContactDate)
}

func TestMergeLeadsPainPointsUnion(t *testing.T) {
	existing := models.Lead{ID: "a", SitePainPoints: []string{"Carregamento lento", "Sem SSL (site inseguro)"}}
	incoming := models.Lead{ID: "b", SitePainPoints: []string{"Sem SSL (site inseguro)", "Template genérico"}}

	merged := MergeLeads(existing, incoming, false)
	assert.ElementsMatch(t, []string{"Carregamento lento", "Sem SSL (site inseguro)", "Template genérico"}, merged.SitePainPoints)
}

func TestMergeLeadsStatusRegressionGuard(t *testing.T) {
	existing := models.Lead{ID: "a", Status: models.StatusProposalSent}
	incoming := models.Lead{ID: "b", Status: models.StatusNew}

	merged := MergeLeads(existing, incoming, false)
	assert.Equal(t, models.StatusProposalSent, merged.Status)

	// A live save explicitly setting the status wins
	merged = MergeLeads(existing, incoming, true)
	assert.Equal(t, models.StatusNew, merged.Status)

	// Non-default incoming status always applies
	incoming.Status = models.StatusInterested
	merged = MergeLeads(existing, incoming, false)
	assert.Equal(t, models.StatusInterested, merged.Status)
}

func TestMergeLeadsIdempotent(t *testing.T) {
	rating := 4.2
	existing := models.Lead{
		ID:           "a",
		CompanyName:  "Acme",
		Attempts:     3,
		OriginRating: &rating,
		Decisors:     []models.Contact{{Name: "Ana", Phone: "11 1111-1111"}},
		Status:       models.StatusInterested,
	}
	incoming := models.Lead{
		ID:          "b",
		CompanyName: "Acme",
		Attempts:    1,
		Decisors:    []models.Contact{{Name: "Bruno", Phone: "11 2222-2222"}},
		Notes:       "ligar amanhã",
		Status:      models.StatusNew,
	}

	once := MergeLeads(existing, incoming, false)
	twice := MergeLeads(once, incoming, false)
	assert.Equal(t, once, twice)
}

func TestMergeLeadsExtrasSurvive(t *testing.T) {
	existing := models.Lead{ID: "a", Extra: map[string]json.RawMessage{
		"aiScore": json.RawMessage(`1`),
		"shared":  json.RawMessage(`"existing"`),
	}}
	incoming := models.Lead{ID: "b", Extra: map[string]json.RawMessage{
		"otherField": json.RawMessage(`true`),
		"shared":     json.RawMessage(`"incoming"`),
	}}

	merged := MergeLeads(existing, incoming, false)
	assert.JSONEq(t, `1`, string(merged.Extra["aiScore"]))
	assert.JSONEq(t, `true`, string(merged.Extra["otherField"]))
	assert.JSONEq(t, `"existing"`, string(merged.Extra["shared"]))
}

func TestSanitizeContacts(t *testing.T) {
	lead := models.Lead{
		Decisors: []models.Contact{
			{Name: "Ana", Phone: "11 1111-1111"},
			{Name: "Ana Maria", Phone: "(11) 1111-1111"},
		},
	}
	clean := SanitizeContacts(lead)
	assert.Len(t, clean.Decisors, 1)
}
