// ABOUTME: CSV lead export in the fixed prospecting-sheet column layout
// ABOUTME: Writes a UTF-8 BOM so spreadsheet apps render accented text
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/coldflow/coldflow/models"
)

var exportHeaders = []string{
	"GOOGLEMAPS",
	"EMPRESA",
	"AVALIAÇÃO",
	"PROFISSÃO",
	"TELEFONE",
	"SITE",
	"ORIGEM",
	"DECISOR",
	"STATUS",
	"TICKET",
	"TENTATIVAS",
	"ÚLTIMO CONTATO",
	"PRÓXIMA TENTATIVA",
	"OBSERVAÇÕES",
}

// WriteLeads writes leads as CSV to w, header row first.
func WriteLeads(w io.Writer, leads []models.Lead) error {
	if _, err := io.WriteString(w, "\uFEFF"); err != nil {
		return fmt.Errorf("failed to write BOM: %w", err)
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeaders); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}

	for _, lead := range leads {
		if err := writer.Write(exportRow(lead)); err != nil {
			return fmt.Errorf("failed to write lead row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

func exportRow(lead models.Lead) []string {
	var decisorName, decisorPhone string
	if len(lead.Decisors) > 0 {
		decisorName = lead.Decisors[0].Name
		decisorPhone = lead.Decisors[0].Phone
	}

	rating := ""
	if lead.OriginRating != nil {
		rating = strconv.FormatFloat(*lead.OriginRating, 'f', -1, 64)
	}

	nextAttempt := lead.NextAttemptDate
	if nextAttempt != "" && lead.NextAttemptTime != "" {
		nextAttempt += " " + lead.NextAttemptTime
	}

	return []string{
		lead.OriginLink,
		lead.CompanyName,
		rating,
		lead.Segment,
		decisorPhone,
		lead.SiteURL,
		lead.Origin,
		decisorName,
		lead.Status,
		lead.TicketPotential,
		strconv.Itoa(lead.Attempts),
		lead.LastContactDate,
		nextAttempt,
		lead.Notes,
	}
}
