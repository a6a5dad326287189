// ABOUTME: Lead CLI commands
// ABOUTME: Human-friendly commands for listing, inspecting, and editing leads
package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/coldflow/coldflow/models"
	"github.com/coldflow/coldflow/sync"
)

// ListLeadsCommand prints active leads, optionally filtered.
func ListLeadsCommand(svc *sync.Service, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	query := fs.String("query", "", "Filter by company name substring")
	status := fs.String("status", "", "Filter by exact status")
	segment := fs.String("segment", "", "Filter by exact segment")
	limit := fs.Int("limit", 50, "Max results")
	_ = fs.Parse(args)

	leads := svc.Leads()

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCOMPANY\tSTATUS\tSEGMENT\tATTEMPTS\tLAST CONTACT")

	shown := 0
	for _, lead := range leads {
		if *query != "" && !strings.Contains(sync.NormalizeText(lead.CompanyName), sync.NormalizeText(*query)) {
			continue
		}
		if *status != "" && lead.Status != *status {
			continue
		}
		if *segment != "" && lead.Segment != *segment {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			lead.ID, lead.CompanyName, lead.Status, lead.Segment, lead.Attempts, lead.LastContactDate)
		shown++
		if shown >= *limit {
			break
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}

	fmt.Printf("\n%d lead(s)\n", shown)
	return nil
}

// ShowLeadCommand prints one lead as indented JSON.
func ShowLeadCommand(svc *sync.Service, args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	_ = fs.Parse(args)

	if fs.NArg() == 0 {
		return fmt.Errorf("lead id is required")
	}
	id := fs.Arg(0)

	for _, lead := range svc.Leads() {
		if lead.ID == id {
			out, err := json.MarshalIndent(lead, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal lead: %w", err)
			}
			fmt.Println(string(out))
			return nil
		}
	}
	return fmt.Errorf("lead %s not found", id)
}

// SaveLeadCommand creates or updates a lead. Without --id a new lead is
// created; duplicate detection may fold it into an existing one.
func SaveLeadCommand(svc *sync.Service, args []string) error {
	fs := flag.NewFlagSet("save", flag.ExitOnError)
	id := fs.String("id", "", "Lead ID (empty creates a new lead)")
	company := fs.String("company", "", "Company name (required for new leads)")
	contact := fs.String("contact", "", "Decision maker name")
	phone := fs.String("phone", "", "Decision maker phone")
	status := fs.String("status", "", "Lead status")
	segment := fs.String("segment", "", "Business segment")
	site := fs.String("site", "", "Site URL")
	notes := fs.String("notes", "", "Notes")
	_ = fs.Parse(args)

	var lead models.Lead
	if *id != "" {
		found := false
		for _, existing := range svc.Leads() {
			if existing.ID == *id {
				lead = existing
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("lead %s not found", *id)
		}
	} else {
		if *company == "" {
			return fmt.Errorf("--company is required for a new lead")
		}
		lead = models.Lead{Status: models.StatusNew}
	}

	if *company != "" {
		lead.CompanyName = *company
	}
	if *contact != "" || *phone != "" {
		lead.Decisors = append(lead.Decisors, models.Contact{Name: *contact, Phone: *phone})
	}
	if *status != "" {
		lead.Status = *status
	}
	if *segment != "" {
		lead.Segment = *segment
	}
	if *site != "" {
		lead.SiteURL = *site
	}
	if *notes != "" {
		lead.Notes = *notes
	}

	stored, err := svc.SaveLead(context.Background(), lead)
	if err != nil {
		return fmt.Errorf("failed to save lead: %w", err)
	}

	fmt.Printf("Saved lead %s (%s)\n", stored.ID, stored.CompanyName)
	return nil
}

// DeleteLeadCommand soft-deletes a lead.
func DeleteLeadCommand(svc *sync.Service, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	_ = fs.Parse(args)

	if fs.NArg() == 0 {
		return fmt.Errorf("lead id is required")
	}
	id := fs.Arg(0)

	if err := svc.DeleteLead(context.Background(), id); err != nil {
		return fmt.Errorf("failed to delete lead: %w", err)
	}
	fmt.Printf("Deleted lead %s\n", id)
	return nil
}
