package booking

import (
	"context"
	"time"

	"calbook/models"
)

// AvailabilityEngine turns calendar busy data into candidate slots.
type AvailabilityEngine interface {
	FindSlots(ctx context.Context, q SlotQuery) models.Availability
	CheckInterval(ctx context.Context, calendarID string, target models.TimeInterval, exclude []models.TimeInterval) (*models.TimeInterval, *models.Failure)
}

// BookingProtocol performs the confirmation-gated calendar write.
type BookingProtocol interface {
	Book(ctx context.Context, c Confirmation) models.BookingOutcome
}

// Settings are the scheduling knobs shared by the engine and the protocol.
type Settings struct {
	WorkdayStart    time.Duration // offset from local midnight
	WorkdayEnd      time.Duration
	Granularity     time.Duration
	IncludeWeekends bool
	CallTimeout     time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
}

// DefaultSettings mirror the 09:00-17:00, 30-minute step working day.
func DefaultSettings() Settings {
	return Settings{
		WorkdayStart: 9 * time.Hour,
		WorkdayEnd:   17 * time.Hour,
		Granularity:  30 * time.Minute,
		CallTimeout:  10 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 500 * time.Millisecond,
	}
}

// SlotQuery describes one availability search. From and To are local
// midnights bounding the searched days, To exclusive.
type SlotQuery struct {
	CalendarID string
	Location   *time.Location
	From       time.Time
	To         time.Time
	Duration   time.Duration
	Preference *time.Time
	Period     models.DayPeriod
	Exclude    []models.TimeInterval
	Limit      int // zero returns every slot
}

// Confirmation is a slot the user explicitly affirmed.
type Confirmation struct {
	SessionID   string
	CalendarID  string
	Title       string
	Description string
	Timezone    string
	Interval    models.TimeInterval
}
