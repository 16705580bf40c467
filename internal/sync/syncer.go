package sync

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/beekhof/bamboo-calendar-sync/internal/bamboohr"
	calclient "github.com/beekhof/bamboo-calendar-sync/internal/calendar"
	"github.com/beekhof/bamboo-calendar-sync/internal/config"

	"github.com/google/uuid"
	"google.golang.org/api/calendar/v3"
)

// CalendarClient is the part of the Google Calendar API the sync needs.
type CalendarClient interface {
	ListCalendarUsers(ctx context.Context, calendarID string) (map[string]struct{}, error)
	ListFutureEventIDs(ctx context.Context, calendarID string, now time.Time) (map[string]struct{}, error)
	InsertEvent(ctx context.Context, calendarID string, event *calendar.Event) error
	UpdateEvent(ctx context.Context, calendarID, eventID string, event *calendar.Event) error
}

// TimeOffSource provides upcoming time off for a set of work emails.
type TimeOffSource interface {
	GetTimeOff(ctx context.Context, emails map[string]struct{}, today bamboohr.Date) ([]bamboohr.TimeOffRecord, error)
}

// Options tune a single Syncer.
type Options struct {
	DryRun  bool   // log decisions without touching the calendar
	ICSPath string // if set, desired events are also written here
	Verbose bool
}

// Syncer reconciles BambooHR time off into the target calendar.
type Syncer struct {
	calendarClient CalendarClient
	timeOff        TimeOffSource
	config         *config.Config
	options        Options
	now            func() time.Time
}

// NewSyncer creates a new Syncer instance.
func NewSyncer(calendarClient CalendarClient, timeOff TimeOffSource, cfg *config.Config, options Options) *Syncer {
	return &Syncer{
		calendarClient: calendarClient,
		timeOff:        timeOff,
		config:         cfg,
		options:        options,
		now:            time.Now,
	}
}

func (s *Syncer) debugf(format string, args ...any) {
	if s.options.Verbose {
		log.Printf("DEBUG: "+format, args...)
	}
}

// calendarUsers returns the users with access to the target calendar. A
// calendar without a readable ACL simply has nobody in scope.
func (s *Syncer) calendarUsers(ctx context.Context) map[string]struct{} {
	users, err := s.calendarClient.ListCalendarUsers(ctx, s.config.GoogleCalendarID)
	if err != nil {
		if code := calclient.StatusCode(err); code != 0 {
			log.Printf("No ACL available for calendar %s (HTTP %d), continuing with no users: %v", s.config.GoogleCalendarID, code, err)
		} else {
			log.Printf("No ACL available for calendar %s, continuing with no users: %v", s.config.GoogleCalendarID, err)
		}
		return map[string]struct{}{}
	}
	return users
}

// desiredEvents keys the records by their derived event id.
func desiredEvents(records []bamboohr.TimeOffRecord) map[string]bamboohr.TimeOffRecord {
	desired := make(map[string]bamboohr.TimeOffRecord, len(records))
	for _, record := range records {
		desired[EventID(record)] = record
	}
	return desired
}

func sortedKeys(m map[string]bamboohr.TimeOffRecord) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Sync performs one reconciliation run. Every desired event is created or
// updated; nothing is ever deleted. The first failed mutation aborts the run.
func (s *Syncer) Sync(ctx context.Context) error {
	runID := uuid.NewString()
	log.Printf("Starting sync %s...", runID)

	now := s.now()
	calendarID := s.config.GoogleCalendarID

	users := s.calendarUsers(ctx)
	s.debugf("calendar %s is shared with %d user(s)", calendarID, len(users))

	records, err := s.timeOff.GetTimeOff(ctx, users, bamboohr.DateOf(now.UTC()))
	if err != nil {
		return fmt.Errorf("failed to get time off: %w", err)
	}

	existing, err := s.calendarClient.ListFutureEventIDs(ctx, calendarID, now)
	if err != nil {
		return fmt.Errorf("failed to list existing events: %w", err)
	}

	desired := desiredEvents(records)
	ids := sortedKeys(desired)
	log.Printf("Found %d time off record(s) and %d upcoming calendar event(s)", len(desired), len(existing))

	if s.options.ICSPath != "" {
		if err := s.exportICS(ids, desired, now); err != nil {
			return err
		}
	}

	created, updated := 0, 0
	for _, id := range ids {
		record := desired[id]
		event := EventFromTimeOff(record)

		if _, ok := existing[id]; ok {
			log.Printf("Updating existing event with ID %s (%s, %s to %s)", id, record.Name, record.Start, record.End)
			if s.options.DryRun {
				continue
			}
			if err := s.calendarClient.UpdateEvent(ctx, calendarID, id, event); err != nil {
				return fmt.Errorf("failed to update event %s: %w", id, err)
			}
			updated++
			continue
		}

		log.Printf("Creating new event with ID %s (%s, %s to %s)", id, record.Name, record.Start, record.End)
		if s.options.DryRun {
			continue
		}
		if err := s.calendarClient.InsertEvent(ctx, calendarID, event); err != nil {
			return fmt.Errorf("failed to create event %s: %w", id, err)
		}
		created++
	}

	if s.options.DryRun {
		log.Printf("Dry run %s complete, no changes made.", runID)
		return nil
	}
	log.Printf("Sync %s complete: %d created, %d updated.", runID, created, updated)
	return nil
}

func (s *Syncer) exportICS(ids []string, desired map[string]bamboohr.TimeOffRecord, now time.Time) error {
	if len(ids) == 0 {
		log.Printf("No time off to export to %s", s.options.ICSPath)
		return nil
	}

	events := make([]*calendar.Event, 0, len(ids))
	for _, id := range ids {
		events = append(events, EventFromTimeOff(desired[id]))
	}

	if err := calclient.WriteICSFile(s.options.ICSPath, events, now); err != nil {
		return fmt.Errorf("failed to export time off: %w", err)
	}
	log.Printf("Exported %d event(s) to %s", len(events), s.options.ICSPath)
	return nil
}
