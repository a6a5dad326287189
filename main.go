// ABOUTME: Entry point for the coldflow lead sync CLI
// ABOUTME: Routes subcommands to lead, dedupe, import/export, and sync handlers
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/coldflow/coldflow/cli"
	"github.com/coldflow/coldflow/config"
	"github.com/coldflow/coldflow/db"
	"github.com/coldflow/coldflow/remote"
	"github.com/coldflow/coldflow/sync"
)

const version = "0.2.0"

func main() {
	showVersion := flag.Bool("version", false, "Show version and exit")
	dbPath := flag.String("db-path", "", "Database path (default from config)")

	_ = flag.CommandLine.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("coldflow version %s\n", version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	logger := config.SetupLogger(cfg)

	session := remote.NewFileSession(cfg.SessionPath)

	command := args[0]
	commandArgs := args[1:]

	// Session commands need no database or engine.
	switch command {
	case "login":
		if err := cli.LoginCommand(session, commandArgs); err != nil {
			log.Fatalf("Error: %v", err)
		}
		return
	case "logout":
		if err := cli.LogoutCommand(session, commandArgs); err != nil {
			log.Fatalf("Error: %v", err)
		}
		return
	}

	database, err := db.OpenDatabase(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	var rows sync.Remote
	if cfg.RemoteURL != "" {
		rows = remote.NewClient(cfg.RemoteURL, cfg.RemoteAPIKey, session.Token)
	}

	svc, err := sync.New(database, rows, session, sync.Options{
		MinSyncInterval: cfg.MinSyncInterval(),
		MorningSyncHour: cfg.MorningSyncHour,
		AllowedEmails:   cfg.AllowedEmails,
		Logger:          logger,
	})
	if err != nil {
		log.Fatalf("Failed to start sync engine: %v", err)
	}

	switch command {
	case "leads":
		if len(commandArgs) == 0 {
			fmt.Println("Error: leads requires a subcommand")
			printUsage()
			os.Exit(1)
		}
		sub := commandArgs[0]
		subArgs := commandArgs[1:]

		switch sub {
		case "list":
			err = cli.ListLeadsCommand(svc, subArgs)
		case "show":
			err = cli.ShowLeadCommand(svc, subArgs)
		case "save":
			err = cli.SaveLeadCommand(svc, subArgs)
		case "delete":
			err = cli.DeleteLeadCommand(svc, subArgs)
		default:
			fmt.Printf("Unknown leads command: %s\n\n", sub)
			printUsage()
			os.Exit(1)
		}
		if err != nil {
			log.Fatalf("Error: %v", err)
		}

	case "import":
		if err := cli.ImportLeadsCommand(svc, commandArgs); err != nil {
			log.Fatalf("Error: %v", err)
		}

	case "export":
		if err := cli.ExportLeadsCommand(svc, commandArgs); err != nil {
			log.Fatalf("Error: %v", err)
		}

	case "dedupe":
		if len(commandArgs) == 0 {
			fmt.Println("Error: dedupe requires a subcommand")
			printUsage()
			os.Exit(1)
		}
		sub := commandArgs[0]
		subArgs := commandArgs[1:]

		switch sub {
		case "preview":
			err = cli.DedupePreviewCommand(svc, subArgs)
		case "apply":
			err = cli.DedupeApplyCommand(svc, subArgs)
		default:
			fmt.Printf("Unknown dedupe command: %s\n\n", sub)
			printUsage()
			os.Exit(1)
		}
		if err != nil {
			log.Fatalf("Error: %v", err)
		}

	case "sync":
		if len(commandArgs) == 0 {
			fmt.Println("Error: sync requires a subcommand")
			printUsage()
			os.Exit(1)
		}
		sub := commandArgs[0]
		subArgs := commandArgs[1:]

		switch sub {
		case "now":
			err = cli.SyncNowCommand(svc, subArgs)
		case "status":
			err = cli.SyncStatusCommand(svc, subArgs)
		case "retry":
			err = cli.SyncRetryCommand(svc, subArgs)
		default:
			fmt.Printf("Unknown sync command: %s\n\n", sub)
			printUsage()
			os.Exit(1)
		}
		if err != nil {
			log.Fatalf("Error: %v", err)
		}

	case "daemon":
		if err := cli.DaemonCommand(svc, cfg, logger, commandArgs); err != nil {
			log.Fatalf("Error: %v", err)
		}

	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`coldflow v%s - Offline-first lead manager

USAGE:
  coldflow [global flags] <command> [subcommand] [flags]

GLOBAL FLAGS:
  --version              Show version and exit
  --db-path <path>       Database path (default from config)

SESSION:
  coldflow login            Store remote credentials
    --email <email>           Account email (required)
    --token <token>           Access token (required)
  coldflow logout           Clear stored credentials

LEAD COMMANDS:
  coldflow leads list       List active leads
    --query <text>            Filter by company name
    --status <status>         Filter by status
    --segment <segment>       Filter by segment
    --limit <n>               Max results (default: 50)

  coldflow leads show <id>  Print one lead as JSON

  coldflow leads save       Create or update a lead
    --id <id>                 Existing lead to update
    --company <name>          Company name (required for new leads)
    --contact <name>          Decision maker name
    --phone <phone>           Decision maker phone
    --status <status>         Lead status
    --segment <segment>       Business segment
    --site <url>              Site URL
    --notes <text>            Notes

  coldflow leads delete <id>  Soft-delete a lead

IMPORT/EXPORT:
  coldflow import <file.csv>  Import prospects from a spreadsheet
    --origin <label>            Force origin on every lead
    --origin-other <label>      Origin label when --origin is 'Outro'
    --dry-run                   Parse and report without saving

  coldflow export           Export active leads as CSV
    --output <file>           Output file (default: stdout)

DEDUPE:
  coldflow dedupe preview   Count duplicate groups without changing data
  coldflow dedupe apply     Merge each duplicate group into its oldest lead

SYNC:
  coldflow sync now         Pull remote changes and drain the queue
    --full                    Pull the entire remote table
  coldflow sync status      Show sync health and queue backlog
  coldflow sync retry       Clear the circuit breaker and resync
  coldflow daemon           Run the background sync loop

EXAMPLES:
  # Import a prospecting sheet, forcing Google Maps origin
  coldflow import --origin "Google Maps" prospects.csv

  # Save a new lead
  coldflow leads save --company "Acme Corp" --contact "John" --phone "11 98765-4321"

  # Merge duplicates, then push everything
  coldflow dedupe apply
  coldflow sync now

`, version)
}
