// ABOUTME: CSV import/export CLI commands
// ABOUTME: Bridges prospecting spreadsheets in and out of the local store
package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/coldflow/coldflow/csvio"
	"github.com/coldflow/coldflow/sync"
)

// ImportLeadsCommand loads a CSV file of prospects into the store. Column
// layout is detected from the header row; duplicates fold into existing
// leads.
func ImportLeadsCommand(svc *sync.Service, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	origin := fs.String("origin", "", "Force origin label on every imported lead")
	originOther := fs.String("origin-other", "", "Origin label when --origin is 'Outro'")
	dryRun := fs.Bool("dry-run", false, "Parse and report without saving")
	_ = fs.Parse(args)

	if fs.NArg() == 0 {
		return fmt.Errorf("csv file path is required")
	}
	path := fs.Arg(0)

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open csv file: %w", err)
	}
	defer func() { _ = f.Close() }()

	result, err := csvio.ReadLeads(f, csvio.Options{
		OriginOverride:   *origin,
		OriginOtherLabel: *originOther,
		Now:              time.Now(),
	})
	if err != nil {
		return err
	}

	for _, warning := range result.Warnings {
		fmt.Printf("warning: %s\n", warning)
	}
	fmt.Printf("Parsed %d lead(s), skipped %d row(s)\n", len(result.Leads), result.Skipped)

	if *dryRun {
		return nil
	}

	if err := svc.SaveLeadsBatch(context.Background(), result.Leads); err != nil {
		return fmt.Errorf("failed to save imported leads: %w", err)
	}
	fmt.Println("Import complete")
	return nil
}

// ExportLeadsCommand writes all active leads to a CSV file, or stdout when
// no path is given.
func ExportLeadsCommand(svc *sync.Service, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	output := fs.String("output", "", "Output file (default: stdout)")
	_ = fs.Parse(args)

	out := os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	leads := svc.Leads()
	if err := csvio.WriteLeads(out, leads); err != nil {
		return err
	}

	if *output != "" {
		fmt.Printf("Exported %d lead(s) to %s\n", len(leads), *output)
	}
	return nil
}
