// ABOUTME: Tests for the CSV export layout
package csvio

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldflow/coldflow/models"
)

func TestWriteLeadsLayout(t *testing.T) {
	rating := 4.8
	leads := []models.Lead{
		{
			CompanyName:     "Padaria Pão Quente",
			Origin:          models.OriginGoogleMaps,
			OriginLink:      "https://maps.app.goo.gl/xyz",
			OriginRating:    &rating,
			Segment:         "Restaurante",
			SiteURL:         "www.paoquente.com.br",
			Decisors:        []models.Contact{{Name: "João", Phone: "(11) 91234-5678"}},
			Status:          models.StatusInterested,
			TicketPotential: "R$ 1.000 - R$ 2.000",
			Attempts:        3,
			LastContactDate: "2026-03-10",
			NextAttemptDate: "2026-03-20",
			NextAttemptTime: "14:30",
			Notes:           "pediu retorno à tarde",
		},
		{
			CompanyName: "Sem Contato Ltda",
			Status:      models.StatusNew,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteLeads(&buf, leads))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "\uFEFF"), "spreadsheet apps need the BOM")

	reader := csv.NewReader(strings.NewReader(strings.TrimPrefix(out, "\uFEFF")))
	records, err := reader.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, exportHeaders, records[0])

	row := records[1]
	assert.Equal(t, "https://maps.app.goo.gl/xyz", row[0])
	assert.Equal(t, "Padaria Pão Quente", row[1])
	assert.Equal(t, "4.8", row[2])
	assert.Equal(t, "Restaurante", row[3])
	assert.Equal(t, "(11) 91234-5678", row[4])
	assert.Equal(t, "www.paoquente.com.br", row[5])
	assert.Equal(t, models.OriginGoogleMaps, row[6])
	assert.Equal(t, "João", row[7])
	assert.Equal(t, models.StatusInterested, row[8])
	assert.Equal(t, "R$ 1.000 - R$ 2.000", row[9])
	assert.Equal(t, "3", row[10])
	assert.Equal(t, "2026-03-10", row[11])
	assert.Equal(t, "2026-03-20 14:30", row[12])
	assert.Equal(t, "pediu retorno à tarde", row[13])

	// A lead with no decisors or rating exports blanks, not panics
	empty := records[2]
	assert.Equal(t, "Sem Contato Ltda", empty[1])
	assert.Equal(t, "", empty[2])
	assert.Equal(t, "", empty[4])
	assert.Equal(t, "0", empty[10])
}

func TestExportImportRoundTrip(t *testing.T) {
	rating := 4.2
	leads := []models.Lead{
		{
			CompanyName:  "Clínica Sorriso",
			Origin:       models.OriginSite,
			OriginRating: &rating,
			Segment:      "Clínica Odontológica",
			SiteURL:      "clinicasorriso.com.br",
			Decisors:     []models.Contact{{Name: "Dra. Paula", Phone: "(31) 97777-0000"}},
			Status:       models.StatusNew,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteLeads(&buf, leads))

	result, err := ReadLeads(&buf, Options{Now: importNow})
	require.NoError(t, err)
	require.Len(t, result.Leads, 1)

	back := result.Leads[0]
	assert.Equal(t, "Clínica Sorriso", back.CompanyName)
	assert.Equal(t, "Clínica Odontológica", back.Segment)
	require.Len(t, back.Decisors, 1)
	assert.Equal(t, "Dra. Paula", back.Decisors[0].Name)
	assert.Equal(t, "(31) 97777-0000", back.Decisors[0].Phone)
	require.NotNil(t, back.OriginRating)
	assert.Equal(t, 4.2, *back.OriginRating)
}
