package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/beekhof/bamboo-calendar-sync/internal/auth"
	"github.com/beekhof/bamboo-calendar-sync/internal/bamboohr"
	calclient "github.com/beekhof/bamboo-calendar-sync/internal/calendar"
	"github.com/beekhof/bamboo-calendar-sync/internal/config"
	"github.com/beekhof/bamboo-calendar-sync/internal/sync"

	"github.com/robfig/cron/v3"
)

func printHelp() {
	fmt.Fprintf(os.Stderr, `BambooHR Calendar Sync

A one-way synchronization tool that copies upcoming BambooHR time off of the
people who share a Google Calendar into that calendar as all-day events.

USAGE:
    %s [OPTIONS]

OPTIONS:
    -h, --help                     Show this help message and exit
    -v, --verbose                  Enable verbose output (show DEBUG logs)
    --config FILE                  Path to a JSON or YAML config file (optional)
    --env-file FILE                Path to a KEY=value file loaded into the environment
                                   (default: .env in the working directory, if present)
    --calendar-id ID               Target Google Calendar ID
                                   (overrides config file and GOOGLE_CALENDAR_ID env var)
    --google-credentials-path PATH Path to Google OAuth client or service account JSON file
                                   (overrides config file and GOOGLE_CREDENTIALS_PATH env var)
    --token-path PATH              Path to store the Google OAuth token
                                   (overrides config file and GOOGLE_TOKEN_PATH env var)
    --dry-run                      Log what would be created or updated without changing the calendar
    --ics-out FILE                 Also write the synced events to an iCalendar file
    --schedule EXPR                Sync now, then keep syncing on a cron schedule, e.g. "0 * * * *"
                                   (overrides config file and SYNC_SCHEDULE env var)
    --employee ID                  Print the time off requests of one BambooHR employee and exit
                                   (only the BambooHR settings are required)

CONFIGURATION PRECEDENCE (highest to lowest):
    1. Command-line flags
    2. Environment variables
    3. Config file (--config)
    4. Defaults

CONFIG FILE:
    {
      "bambooApiKey": "your-api-key",
      "bambooCompanyDomain": "yourcompany",
      "googleCalendarId": "team@group.calendar.google.com",
      "google_credentials_path": "/path/to/credentials.json",
      "token_path": "/path/to/token.json",
      "lookahead_days": 30,
      "requests_per_second": 5,
      "schedule": ""
    }

    The Google credentials file is either a service account key or an OAuth
    client downloaded from Google Cloud Console with an "installed" or "web"
    section. A service account must be given access to the calendar.

ENVIRONMENT VARIABLES:
    BAMBOO_API_KEY            BambooHR API key (required)
    BAMBOO_COMPANY_DOMAIN     BambooHR company subdomain (required)
    GOOGLE_CALENDAR_ID        Target Google Calendar ID (required)
    GOOGLE_CREDENTIALS_PATH   Path to Google credentials JSON file (required)
    GOOGLE_TOKEN_PATH         Path to store the OAuth token (default: token.json)
    BAMBOO_BASE_URL           BambooHR API base URL
    LOOKAHEAD_DAYS            Days of time off to sync from today (default: 30)
    REQUESTS_PER_SECOND       Request rate limit for both APIs (default: 5)
    SYNC_SCHEDULE             Cron schedule; empty runs once

DESCRIPTION:
    Each run reads the users the calendar is shared with, looks them up in the
    BambooHR directory by work email and fetches who is out from today through
    the lookahead window. Every time off record becomes an all-day event with a
    stable ID, so later runs update the same event instead of adding another.

    Events are never deleted. Cancelled or shortened time off stays on the
    calendar until removed by hand.

EXAMPLES:
    # Run once with settings from the environment
    %s

    # Preview a run and keep an iCalendar copy
    %s --dry-run --ics-out timeoff.ics

    # Sync every hour until interrupted
    %s --config config.yaml --schedule "0 * * * *"

`, os.Args[0], os.Args[0], os.Args[0], os.Args[0])
}

func main() {
	// Parse command-line flags
	helpFlag := flag.Bool("help", false, "Show help message")
	helpFlagShort := flag.Bool("h", false, "Show help message (shorthand)")
	verboseFlag := flag.Bool("verbose", false, "Enable verbose output (show DEBUG logs)")
	verboseFlagShort := flag.Bool("v", false, "Enable verbose output (shorthand)")
	configFile := flag.String("config", "", "Path to JSON or YAML config file (optional)")
	envFile := flag.String("env-file", "", "Path to a KEY=value file loaded into the environment")
	calendarID := flag.String("calendar-id", "", "Target Google Calendar ID (overrides config file and GOOGLE_CALENDAR_ID env var)")
	googleCredentialsPath := flag.String("google-credentials-path", "", "Path to Google credentials JSON file (overrides config file and GOOGLE_CREDENTIALS_PATH env var)")
	tokenPath := flag.String("token-path", "", "Path to store the Google OAuth token (overrides config file and GOOGLE_TOKEN_PATH env var)")
	dryRun := flag.Bool("dry-run", false, "Log planned changes without touching the calendar")
	icsOut := flag.String("ics-out", "", "Also write the synced events to this iCalendar file")
	schedule := flag.String("schedule", "", "Cron schedule to keep syncing on (overrides config file and SYNC_SCHEDULE env var)")
	employeeID := flag.String("employee", "", "Print the time off requests of one BambooHR employee and exit")
	flag.Parse()

	verbose := *verboseFlag || *verboseFlagShort

	// Show help if requested
	if *helpFlag || *helpFlagShort {
		printHelp()
		os.Exit(0)
	}

	// Set up logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.LoadEnvFile(*envFile); err != nil {
		log.Fatalf("Failed to load env file: %v", err)
	}

	// Load configuration (precedence: flags > env vars > config file > defaults)
	// Listing requests only talks to BambooHR, so the Google settings are optional there.
	flags := config.Flags{
		CalendarID:            *calendarID,
		GoogleCredentialsPath: *googleCredentialsPath,
		TokenPath:             *tokenPath,
		Schedule:              *schedule,
	}
	load := config.LoadConfig
	if *employeeID != "" {
		load = config.LoadBambooConfig
	}
	cfg, err := load(*configFile, flags)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	bambooClient, err := bamboohr.NewClient(cfg.BambooAPIKey, cfg.BambooCompanyDomain,
		bamboohr.WithBaseURL(cfg.BambooBaseURL),
		bamboohr.WithLookaheadDays(cfg.LookaheadDays),
		bamboohr.WithRateLimit(cfg.RequestsPerSecond),
	)
	if err != nil {
		log.Fatalf("Failed to create BambooHR client: %v", err)
	}

	if *employeeID != "" {
		if err := printTimeOffRequests(ctx, bambooClient, bamboohr.ID(*employeeID)); err != nil {
			log.Fatalf("Failed to list time off requests: %v", err)
		}
		return
	}

	tokenStore := auth.NewFileTokenStore(cfg.TokenPath)
	httpClient, err := auth.NewClient(ctx, cfg.GoogleCredentialsPath, tokenStore)
	if err != nil {
		log.Fatalf("Failed to authenticate Google account: %v", err)
	}

	calendarClient, err := calclient.NewClient(ctx, httpClient, calclient.WithRateLimit(cfg.RequestsPerSecond))
	if err != nil {
		log.Fatalf("Failed to create calendar client: %v", err)
	}

	syncer := sync.NewSyncer(calendarClient, bambooClient, cfg, sync.Options{
		DryRun:  *dryRun,
		ICSPath: *icsOut,
		Verbose: verbose,
	})

	if cfg.Schedule == "" {
		if err := syncer.Sync(ctx); err != nil {
			log.Fatalf("Sync failed: %v", err)
		}
		return
	}

	if err := runScheduled(ctx, cfg.Schedule, syncer); err != nil {
		log.Fatalf("Scheduler failed: %v", err)
	}
}

// syncRunner is the part of the Syncer the scheduler drives.
type syncRunner interface {
	Sync(ctx context.Context) error
}

// runScheduled syncs once right away and then on every tick of schedule until
// ctx is cancelled. A tick that arrives while the previous sync is still
// running is skipped.
func runScheduled(ctx context.Context, schedule string, syncer syncRunner) error {
	logger := cron.PrintfLogger(log.Default())
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	runSync := func() {
		if err := syncer.Sync(ctx); err != nil {
			log.Printf("Sync failed: %v", err)
		}
	}

	if _, err := c.AddFunc(schedule, runSync); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	log.Printf("Syncing on schedule %q, press Ctrl+C to stop", schedule)
	runSync()
	c.Start()
	<-ctx.Done()

	log.Printf("Shutting down, waiting for a running sync to finish...")
	<-c.Stop().Done()
	return nil
}

func printTimeOffRequests(ctx context.Context, client *bamboohr.Client, employeeID bamboohr.ID) error {
	start, end := client.LookaheadWindow(bamboohr.DateOf(time.Now().UTC()))
	requests, err := client.GetTimeOffRequests(ctx, employeeID, start, end)
	if err != nil {
		return err
	}

	if len(requests) == 0 {
		fmt.Printf("No time off requests for employee %s between %s and %s\n", employeeID, start, end)
		return nil
	}

	for _, request := range requests {
		fmt.Printf("%s\t%s to %s\t%s\t%s %s\t%s\n",
			request.ID, request.Start, request.End, request.Type.Name,
			request.Amount.Amount, request.Amount.Unit, request.Status.Status)
	}
	return nil
}
