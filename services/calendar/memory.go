package calendar

import (
	"context"
	"sort"
	"sync"
	"time"

	"calbook/models"

	"github.com/google/uuid"
)

// MemoryCalendar keeps events in process. It backs local development and the
// test suites.
type MemoryCalendar struct {
	mu     sync.Mutex
	events map[string]map[string]Event // calendarID -> eventID -> event
}

// NewMemoryCalendar returns an empty in-memory calendar.
func NewMemoryCalendar() *MemoryCalendar {
	return &MemoryCalendar{events: make(map[string]map[string]Event)}
}

// Seed adds an event directly, bypassing CreateEvent.
func (m *MemoryCalendar) Seed(calendarID, title string, iv models.TimeInterval) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.calendar(calendarID)[id] = Event{ID: id, Title: title, Interval: iv}
	return id
}

// Len returns the number of events in a calendar.
func (m *MemoryCalendar) Len(calendarID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events[calendarID])
}

func (m *MemoryCalendar) calendar(id string) map[string]Event {
	cal, ok := m.events[id]
	if !ok {
		cal = make(map[string]Event)
		m.events[id] = cal
	}
	return cal
}

// ListBusy returns the intervals of events overlapping [start, end).
func (m *MemoryCalendar) ListBusy(ctx context.Context, calendarID string, start, end time.Time) ([]models.TimeInterval, error) {
	events, err := m.ListEvents(ctx, calendarID, start, end)
	if err != nil {
		return nil, err
	}
	busy := make([]models.TimeInterval, 0, len(events))
	for _, ev := range events {
		busy = append(busy, ev.Interval)
	}
	return busy, nil
}

// CreateEvent stores the event. A reused client id yields ErrDuplicate.
func (m *MemoryCalendar) CreateEvent(ctx context.Context, calendarID string, ev NewEvent) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", classify("events.insert", err)
	}
	iv, err := models.NewTimeInterval(ev.Start, ev.End)
	if err != nil {
		return "", &Error{Op: "events.insert", Kind: ErrTransport, Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	id := ev.ID
	if id == "" {
		id = uuid.NewString()
	}
	cal := m.calendar(calendarID)
	if _, exists := cal[id]; exists {
		return "", &Error{Op: "events.insert", Kind: ErrDuplicate}
	}
	cal[id] = Event{ID: id, Title: ev.Title, Description: ev.Description, Interval: iv}
	return id, nil
}

// ListEvents returns events overlapping [start, end), ordered by start.
func (m *MemoryCalendar) ListEvents(ctx context.Context, calendarID string, start, end time.Time) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, classify("events.list", err)
	}
	window := models.TimeInterval{Start: start, End: end}

	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, ev := range m.events[calendarID] {
		if ev.Interval.Overlaps(window) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Interval.Start.Equal(out[j].Interval.Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Interval.Start.Before(out[j].Interval.Start)
	})
	return out, nil
}

// Ping always succeeds.
func (m *MemoryCalendar) Ping(ctx context.Context, calendarID string) error {
	return ctx.Err()
}
