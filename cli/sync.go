// ABOUTME: Sync CLI commands
// ABOUTME: Manual pull/drain, status reporting, and circuit-breaker retry
package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/fatih/color"

	"github.com/coldflow/coldflow/sync"
)

// SyncNowCommand forces a pull and drains the outbound queues.
func SyncNowCommand(svc *sync.Service, args []string) error {
	fs := flag.NewFlagSet("now", flag.ExitOnError)
	full := fs.Bool("full", false, "Pull the entire remote table instead of changes since last sync")
	_ = fs.Parse(args)

	ctx := context.Background()
	svc.FetchRemote(ctx, sync.FetchOptions{Force: true, Full: *full})
	if err := svc.ProcessQueue(ctx); err != nil {
		return fmt.Errorf("failed to drain queue: %w", err)
	}

	return SyncStatusCommand(svc, nil)
}

// SyncStatusCommand prints sync health: last pull time, queue backlog, and
// breaker state.
func SyncStatusCommand(svc *sync.Service, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	_ = fs.Parse(args)

	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	last := svc.LastSyncTime()
	if last.IsZero() {
		fmt.Printf("Last sync:  %s\n", yellow("never"))
	} else {
		fmt.Printf("Last sync:  %s\n", last.Format("2006-01-02 15:04:05"))
	}

	mutations, events := svc.QueueDepth()
	backlog := fmt.Sprintf("%d mutation(s), %d event(s)", mutations, events)
	if mutations+events == 0 {
		fmt.Printf("Queue:      %s\n", green("empty"))
	} else {
		fmt.Printf("Queue:      %s\n", yellow(backlog))
	}

	if svc.BackendDisabled() {
		fmt.Printf("Backend:    %s\n", red("disabled (authorization failed)"))
		fmt.Println("\nRun 'coldflow sync retry' after fixing credentials.")
	} else {
		fmt.Printf("Backend:    %s\n", green("enabled"))
	}

	fmt.Printf("Leads:      %d active\n", len(svc.Leads()))
	return nil
}

// SyncRetryCommand clears the circuit breaker and forces a full pull.
func SyncRetryCommand(svc *sync.Service, args []string) error {
	fs := flag.NewFlagSet("retry", flag.ExitOnError)
	_ = fs.Parse(args)

	svc.RetryBackend(context.Background())
	return SyncStatusCommand(svc, nil)
}
