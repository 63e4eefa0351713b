package export

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
)

const icsProductID = "-//Scholchat//Scheduled courses//EN"

// EventStatus is the calendar status of an exported event.
type EventStatus string

// Supported event statuses.
const (
	EventTentative EventStatus = "TENTATIVE"
	EventConfirmed EventStatus = "CONFIRMED"
	EventCancelled EventStatus = "CANCELLED"
)

// Event is one calendar entry.
type Event struct {
	UID         string
	Summary     string
	Location    string
	Description string
	Start       time.Time
	End         time.Time
	Status      EventStatus
	UpdatedAt   time.Time
}

// ICSExporter renders events as an iCalendar feed.
type ICSExporter struct {
	now func() time.Time
}

// NewICSExporter constructs an ICS exporter.
func NewICSExporter() *ICSExporter {
	return &ICSExporter{now: time.Now}
}

// Render serialises events into a PUBLISH calendar named after the given title.
func (e *ICSExporter) Render(events []Event, name string) ([]byte, error) {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(icsProductID)
	if name != "" {
		cal.SetName(name)
		cal.SetXWRCalName(name)
	}

	stamp := e.now().UTC()
	for _, evt := range events {
		if evt.UID == "" {
			return nil, fmt.Errorf("ics event without uid")
		}
		if evt.Start.IsZero() {
			return nil, fmt.Errorf("ics event %s without start", evt.UID)
		}
		end := evt.End
		if end.Before(evt.Start) {
			end = evt.Start
		}

		vevent := cal.AddEvent(evt.UID)
		vevent.SetDtStampTime(stamp)
		if !evt.UpdatedAt.IsZero() {
			vevent.SetModifiedAt(evt.UpdatedAt.UTC())
		}
		vevent.SetStartAt(evt.Start.UTC())
		vevent.SetEndAt(end.UTC())
		vevent.SetSummary(evt.Summary)
		if evt.Location != "" {
			vevent.SetLocation(evt.Location)
		}
		if evt.Description != "" {
			vevent.SetDescription(evt.Description)
		}
		vevent.SetStatus(objectStatus(evt.Status))
	}
	return []byte(cal.Serialize()), nil
}

func objectStatus(status EventStatus) ics.ObjectStatus {
	switch status {
	case EventCancelled:
		return ics.ObjectStatusCancelled
	case EventTentative:
		return ics.ObjectStatusTentative
	default:
		return ics.ObjectStatusConfirmed
	}
}
