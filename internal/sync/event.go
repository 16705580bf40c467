package sync

import (
	"github.com/beekhof/bamboo-calendar-sync/internal/bamboohr"

	"google.golang.org/api/calendar/v3"
)

const (
	// eventIDPrefix namespaces synced events. Google only accepts base32hex
	// characters in custom event ids, which this prefix and numeric BambooHR
	// ids satisfy.
	eventIDPrefix = "bamboohr"

	eventDescription = "Imported from BambooHR"
)

// EventID derives the calendar event id of a time off record. It depends on
// the record id only, so the same record maps to the same event on every run.
func EventID(record bamboohr.TimeOffRecord) string {
	return eventIDPrefix + string(record.ID)
}

// EventFromTimeOff maps a time off record to an all-day calendar event.
// BambooHR end dates are inclusive while all-day events end on the first
// day not covered, hence the extra day.
func EventFromTimeOff(record bamboohr.TimeOffRecord) *calendar.Event {
	return &calendar.Event{
		Id:          EventID(record),
		Summary:     record.Name + " - time off",
		Description: eventDescription,
		Start: &calendar.EventDateTime{
			Date: record.Start.String(),
		},
		End: &calendar.EventDateTime{
			Date: record.End.AddDays(1).String(),
		},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{
				"bambooTimeOffId":  string(record.ID),
				"bambooEmployeeId": string(record.EmployeeID),
			},
		},
	}
}
