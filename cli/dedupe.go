// ABOUTME: Duplicate detection CLI commands
// ABOUTME: Preview and apply merges for leads that look like the same company
package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/coldflow/coldflow/sync"
)

// DedupePreviewCommand reports duplicate clusters without changing data.
func DedupePreviewCommand(svc *sync.Service, args []string) error {
	fs := flag.NewFlagSet("preview", flag.ExitOnError)
	_ = fs.Parse(args)

	summary := svc.PreviewDuplicates()
	if summary.Groups == 0 {
		fmt.Println("No duplicates found")
		return nil
	}

	fmt.Printf("%d duplicate group(s), %d lead(s) would be merged away (of %d active)\n",
		summary.Groups, summary.Duplicates, summary.Total)
	return nil
}

// DedupeApplyCommand merges every duplicate cluster into its oldest lead.
func DedupeApplyCommand(svc *sync.Service, args []string) error {
	fs := flag.NewFlagSet("apply", flag.ExitOnError)
	_ = fs.Parse(args)

	result, err := svc.DedupeDuplicates(context.Background())
	if err != nil {
		return fmt.Errorf("failed to dedupe leads: %w", err)
	}

	if result.Groups == 0 {
		fmt.Println("No duplicates found")
		return nil
	}
	fmt.Printf("Merged %d group(s): %d lead(s) folded in, %d removed\n",
		result.Groups, result.Merged, result.Deleted)
	return nil
}
