// File: services/calendar/interface.go
package calendar

import (
	"context"
	"time"

	"calbook/models"
)

// NewEvent holds everything required to create an event. An event is either
// created with all of these fields or not at all.
type NewEvent struct {
	ID          string // client-chosen id, makes retried inserts idempotent
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Timezone    string
}

// Event is an existing calendar entry.
type Event struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Interval    models.TimeInterval `json:"interval"`
	Link        string              `json:"link,omitempty"`
}

// Calendar is the only shared mutable resource the core talks to. Errors are
// *Error values wrapping one of ErrAuth, ErrQuota, ErrTransport or ErrNotFound.
type Calendar interface {
	ListBusy(ctx context.Context, calendarID string, start, end time.Time) ([]models.TimeInterval, error)
	CreateEvent(ctx context.Context, calendarID string, ev NewEvent) (string, error)
}

// EventLister is implemented by calendars that can enumerate events.
type EventLister interface {
	ListEvents(ctx context.Context, calendarID string, start, end time.Time) ([]Event, error)
}

// Pinger is implemented by calendars that can report reachability.
type Pinger interface {
	Ping(ctx context.Context, calendarID string) error
}
