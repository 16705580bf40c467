package calendar

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/emersion/go-ical"
	"google.golang.org/api/calendar/v3"
)

const productID = "-//BambooHR Calendar Sync//EN"

// NewICalendar converts all-day events to an iCalendar document with one
// VEVENT per event. DTEND keeps the exclusive end date of the input.
func NewICalendar(events []*calendar.Event, stamp time.Time) (*ical.Calendar, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	for _, event := range events {
		if event.Id == "" {
			return nil, fmt.Errorf("event %q has no id", event.Summary)
		}
		if event.Start == nil || event.Start.Date == "" || event.End == nil || event.End.Date == "" {
			return nil, fmt.Errorf("event %s is not an all-day event", event.Id)
		}

		startDate, err := time.Parse("2006-01-02", event.Start.Date)
		if err != nil {
			return nil, fmt.Errorf("event %s: invalid start date: %w", event.Id, err)
		}
		endDate, err := time.Parse("2006-01-02", event.End.Date)
		if err != nil {
			return nil, fmt.Errorf("event %s: invalid end date: %w", event.Id, err)
		}

		vevent := ical.NewComponent(ical.CompEvent)
		vevent.Props.SetText(ical.PropUID, event.Id)
		vevent.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
		if event.Summary != "" {
			vevent.Props.SetText(ical.PropSummary, event.Summary)
		}
		if event.Description != "" {
			vevent.Props.SetText(ical.PropDescription, event.Description)
		}

		dtstart := ical.NewProp(ical.PropDateTimeStart)
		dtstart.SetDate(startDate)
		vevent.Props.Set(dtstart)

		dtend := ical.NewProp(ical.PropDateTimeEnd)
		dtend.SetDate(endDate)
		vevent.Props.Set(dtend)

		cal.Children = append(cal.Children, vevent)
	}

	return cal, nil
}

// WriteICS encodes events as an iCalendar document to w.
func WriteICS(w io.Writer, events []*calendar.Event, stamp time.Time) error {
	cal, err := NewICalendar(events, stamp)
	if err != nil {
		return err
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode iCalendar: %w", err)
	}
	return nil
}

// WriteICSFile writes events as an iCalendar file at path.
func WriteICSFile(path string, events []*calendar.Event, stamp time.Time) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create ICS file: %w", err)
	}

	if err := WriteICS(f, events, stamp); err != nil {
		f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close ICS file: %w", err)
	}
	return nil
}
