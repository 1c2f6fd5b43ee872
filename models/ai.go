package models

import (
	"strings"
	"time"
)

// Signal is the yes/no/cancel part of an utterance.
type Signal string

const (
	SignalNone    Signal = ""
	SignalConfirm Signal = "confirm"
	SignalDeny    Signal = "deny"
	SignalCancel  Signal = "cancel"
)

// DayPeriod is a coarse part of the day ("this afternoon").
type DayPeriod string

const (
	PeriodNone      DayPeriod = ""
	PeriodMorning   DayPeriod = "morning"
	PeriodAfternoon DayPeriod = "afternoon"
	PeriodEvening   DayPeriod = "evening"
)

// Bounds returns the clock range of the period as offsets from midnight.
func (p DayPeriod) Bounds() (from, to time.Duration, ok bool) {
	switch p {
	case PeriodMorning:
		return 0, 12 * time.Hour, true
	case PeriodAfternoon:
		return 12 * time.Hour, 17 * time.Hour, true
	case PeriodEvening:
		return 17 * time.Hour, 24 * time.Hour, true
	}
	return 0, 0, false
}

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// DateHint is a single day (To empty or equal to From) or an inclusive range.
type DateHint struct {
	From string `json:"from"`
	To   string `json:"to,omitempty"`
}

// TimeHint carries either an exact clock time or a day period.
type TimeHint struct {
	Exact  string    `json:"exact,omitempty"`
	Period DayPeriod `json:"period,omitempty"`
}

// StructuredIntent is what the extractor understood from one utterance.
// Every field is optional and must be treated as untrusted.
type StructuredIntent struct {
	Date            *DateHint `json:"date,omitempty"`
	Time            *TimeHint `json:"time,omitempty"`
	DurationMinutes *int      `json:"durationMinutes,omitempty"`
	SlotOrdinal     *int      `json:"slotOrdinal,omitempty"`
	Signal          Signal    `json:"signal,omitempty"`
	Title           string    `json:"title,omitempty"`
}

// maxDurationMinutes caps requested durations at one day.
const maxDurationMinutes = 24 * 60

// Sanitize drops fields that do not parse or are out of range and returns the
// names of the dropped fields.
func (in StructuredIntent) Sanitize() (StructuredIntent, []string) {
	out := StructuredIntent{Title: strings.TrimSpace(in.Title)}
	var dropped []string

	if in.Date != nil {
		from, errFrom := time.Parse(DateLayout, strings.TrimSpace(in.Date.From))
		to := strings.TrimSpace(in.Date.To)
		switch {
		case errFrom != nil:
			dropped = append(dropped, "date")
		case to == "":
			out.Date = &DateHint{From: from.Format(DateLayout), To: from.Format(DateLayout)}
		default:
			toDate, err := time.Parse(DateLayout, to)
			if err != nil || toDate.Before(from) {
				dropped = append(dropped, "date")
			} else {
				out.Date = &DateHint{From: from.Format(DateLayout), To: toDate.Format(DateLayout)}
			}
		}
	}

	if in.Time != nil {
		hint := TimeHint{}
		if exact := strings.TrimSpace(in.Time.Exact); exact != "" {
			if t, err := time.Parse(ClockLayout, exact); err == nil {
				hint.Exact = t.Format(ClockLayout)
			} else {
				dropped = append(dropped, "time")
			}
		}
		if _, _, ok := in.Time.Period.Bounds(); ok {
			hint.Period = in.Time.Period
		} else if in.Time.Period != PeriodNone {
			dropped = append(dropped, "period")
		}
		if hint.Exact != "" || hint.Period != PeriodNone {
			out.Time = &hint
		}
	}

	if in.DurationMinutes != nil {
		if d := *in.DurationMinutes; d > 0 && d <= maxDurationMinutes {
			out.DurationMinutes = &d
		} else {
			dropped = append(dropped, "duration")
		}
	}

	if in.SlotOrdinal != nil {
		if n := *in.SlotOrdinal; n > 0 {
			out.SlotOrdinal = &n
		} else {
			dropped = append(dropped, "slotOrdinal")
		}
	}

	switch in.Signal {
	case SignalNone, SignalConfirm, SignalDeny, SignalCancel:
		out.Signal = in.Signal
	default:
		dropped = append(dropped, "signal")
	}
	return out, dropped
}

// HasDetails reports whether the intent carries booking details beyond a
// bare signal or slot choice.
func (in StructuredIntent) HasDetails() bool {
	return in.Date != nil || in.Time != nil || in.DurationMinutes != nil
}

// IsEmpty reports whether nothing usable was extracted.
func (in StructuredIntent) IsEmpty() bool {
	return !in.HasDetails() && in.SlotOrdinal == nil && in.Signal == SignalNone && in.Title == ""
}

// SessionContext is the running context handed to the intent extractor.
type SessionContext struct {
	Now      time.Time       `json:"now"`
	Timezone string          `json:"timezone"`
	Phase    DialoguePhase   `json:"phase"`
	Request  BookingRequest  `json:"request"`
	Offered  []CandidateSlot `json:"offered,omitempty"`
	Pending  *TimeInterval   `json:"pending,omitempty"`
	History  []Turn          `json:"history,omitempty"`
}
