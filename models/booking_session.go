package models

import (
	"time"
)

// DialoguePhase is the state of a session's booking conversation.
type DialoguePhase string

const (
	PhaseCollecting           DialoguePhase = "collecting"
	PhaseProposingSlots       DialoguePhase = "proposing_slots"
	PhaseAwaitingConfirmation DialoguePhase = "awaiting_confirmation"
	PhaseBooking              DialoguePhase = "booking"
	PhaseDone                 DialoguePhase = "done"
)

// Field names a dimension of a booking request the user may have to supply.
type Field string

const (
	FieldDate     Field = "date"
	FieldTime     Field = "time"
	FieldDuration Field = "duration"
)

// Turn is one message in the conversation.
type Turn struct {
	Role string    `json:"role"` // "user" or "assistant"
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// BookingRequest accumulates what the user wants across turns.
type BookingRequest struct {
	FromDate    string         `json:"fromDate,omitempty"` // 2006-01-02
	ToDate      string         `json:"toDate,omitempty"`   // inclusive, equal to FromDate for one day
	ExactTime   string         `json:"exactTime,omitempty"`
	DayPeriod   DayPeriod      `json:"dayPeriod,omitempty"`
	Duration    time.Duration  `json:"duration,omitempty"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Excluded    []TimeInterval `json:"excluded,omitempty"` // conflicted or rejected intervals
}

// HasDate reports whether a day or range has been resolved.
func (r BookingRequest) HasDate() bool {
	return r.FromDate != ""
}

// SingleDay reports whether the request targets exactly one day.
func (r BookingRequest) SingleDay() bool {
	return r.FromDate != "" && (r.ToDate == "" || r.ToDate == r.FromDate)
}

// Dates resolves the requested day range in loc as [first day 00:00, day after last 00:00).
func (r BookingRequest) Dates(loc *time.Location) (from, to time.Time, ok bool) {
	if !r.HasDate() {
		return time.Time{}, time.Time{}, false
	}
	from, err := time.ParseInLocation(DateLayout, r.FromDate, loc)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	last := from
	if r.ToDate != "" {
		if last, err = time.ParseInLocation(DateLayout, r.ToDate, loc); err != nil || last.Before(from) {
			return time.Time{}, time.Time{}, false
		}
	}
	return from, last.AddDate(0, 0, 1), true
}

// ExactStart returns the requested start instant when a single day and an
// exact time are both known.
func (r BookingRequest) ExactStart(loc *time.Location) (time.Time, bool) {
	if !r.SingleDay() || r.ExactTime == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(DateLayout+" "+ClockLayout, r.FromDate+" "+r.ExactTime, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ExactInterval returns the requested interval when date and time are exact.
// fallback is used when no duration was ever given.
func (r BookingRequest) ExactInterval(loc *time.Location, fallback time.Duration) (TimeInterval, bool) {
	start, ok := r.ExactStart(loc)
	if !ok {
		return TimeInterval{}, false
	}
	d := r.Duration
	if d <= 0 {
		d = fallback
	}
	iv, err := NewTimeInterval(start, start.Add(d))
	if err != nil {
		return TimeInterval{}, false
	}
	return iv, true
}

// Preference returns the instant candidates are ranked against: the exact
// time on the first requested day, if any.
func (r BookingRequest) Preference(loc *time.Location) *time.Time {
	if r.ExactTime == "" || !r.HasDate() {
		return nil
	}
	t, err := time.ParseInLocation(DateLayout+" "+ClockLayout, r.FromDate+" "+r.ExactTime, loc)
	if err != nil {
		return nil
	}
	return &t
}

// Apply merges an intent into the request and reports which fields changed.
func (r *BookingRequest) Apply(in StructuredIntent) []Field {
	var changed []Field
	if in.Date != nil {
		if r.FromDate != in.Date.From || r.ToDate != in.Date.To {
			changed = append(changed, FieldDate)
		}
		r.FromDate, r.ToDate = in.Date.From, in.Date.To
	}
	if in.Time != nil {
		if in.Time.Exact != r.ExactTime || in.Time.Period != r.DayPeriod {
			changed = append(changed, FieldTime)
		}
		r.ExactTime = in.Time.Exact
		r.DayPeriod = in.Time.Period
	}
	if in.DurationMinutes != nil {
		d := time.Duration(*in.DurationMinutes) * time.Minute
		if d != r.Duration {
			changed = append(changed, FieldDuration)
		}
		r.Duration = d
	}
	if in.Title != "" {
		r.Title = in.Title
	}
	return changed
}

// Exclude records an interval that must not be proposed again.
func (r *BookingRequest) Exclude(iv TimeInterval) {
	for _, ex := range r.Excluded {
		if ex.Equal(iv) {
			return
		}
	}
	r.Excluded = append(r.Excluded, iv)
}

// Session is one conversation. It is owned by the dialogue manager and passed
// explicitly through every operation.
type Session struct {
	ID          string          `json:"id"`
	CalendarID  string          `json:"calendarId"`
	Timezone    string          `json:"timezone"`
	Phase       DialoguePhase   `json:"phase"`
	Request     BookingRequest  `json:"request"`
	Offered     []CandidateSlot `json:"offered,omitempty"`
	Pending     *TimeInterval   `json:"pending,omitempty"`
	LastOutcome *BookingOutcome `json:"lastOutcome,omitempty"`
	Turns       []Turn          `json:"turns"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Location resolves the session timezone, falling back to UTC.
func (s *Session) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AddTurn appends a message to the history.
func (s *Session) AddTurn(role, text string, at time.Time) {
	s.Turns = append(s.Turns, Turn{Role: role, Text: text, At: at})
	s.UpdatedAt = at
}

// RecentTurns returns at most n of the latest turns.
func (s *Session) RecentTurns(n int) []Turn {
	if n <= 0 || len(s.Turns) <= n {
		return s.Turns
	}
	return s.Turns[len(s.Turns)-n:]
}

// ResetRequest starts a fresh booking request, discarding offers and pending slot.
func (s *Session) ResetRequest() {
	s.Request = BookingRequest{}
	s.Offered = nil
	s.Pending = nil
}
