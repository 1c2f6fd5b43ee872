package dialogue

import (
	"fmt"
	"strings"
	"time"

	"calbook/models"
	"calbook/services/booking"
)

const (
	msgEmptyMessage   = "Please provide a message first."
	msgCancelled      = "Okay, I've cancelled this booking request. Nothing was added to your calendar."
	msgDoneIdle       = "You're all set. Tell me if you'd like to book something else."
	msgNothingPending = "There's nothing in progress. Tell me what you'd like to book."
	msgDropped        = "Okay, I've dropped that request. Nothing was added to your calendar. Tell me if you'd like to book something else."
	msgSessionExpired = "This conversation has expired. Please start a new one to book an appointment."
	msgNotUnderstood  = "Sorry, I didn't catch any booking details."
	msgRetryHint      = "Say \"try again\" to retry the same request, or tell me a different time."
)

var questions = map[models.Field]string{
	models.FieldDate:     "which day",
	models.FieldTime:     "what time",
	models.FieldDuration: "how long it should be",
}

// askMissing names exactly the missing dimensions.
func askMissing(missing []models.Field, prefix string) string {
	var msg string
	switch {
	case len(missing) == 0:
		return prefix
	case len(missing) == 1 && missing[0] == models.FieldDate:
		msg = "Which day would you like to book?"
	case len(missing) == 1 && missing[0] == models.FieldDuration:
		msg = "How long should the meeting be?"
	case len(missing) == 1 && missing[0] == models.FieldTime:
		msg = "What time would you like?"
	default:
		parts := make([]string, 0, len(missing))
		for _, f := range missing {
			parts = append(parts, questions[f])
		}
		msg = "Please tell me " + strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1] + "."
	}
	if prefix != "" {
		return prefix + " " + msg
	}
	return msg
}

func minutes(d time.Duration) string {
	m := int(d.Minutes())
	switch {
	case m == 60:
		return "1 hour"
	case m > 0 && m%60 == 0:
		return fmt.Sprintf("%d hours", m/60)
	default:
		return fmt.Sprintf("%d minutes", m)
	}
}

func dayLabel(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("Mon Jan 2")
}

// onLabel renders the day range [from, to) as "on Mon Mar 17" or
// "between Mon Mar 17 and Fri Mar 21".
func onLabel(from, to time.Time, loc *time.Location) string {
	last := to.AddDate(0, 0, -1)
	if !last.After(from) {
		return "on " + dayLabel(from, loc)
	}
	return "between " + dayLabel(from, loc) + " and " + dayLabel(last, loc)
}

func proposeMessage(slots []models.CandidateSlot, d time.Duration, prefix string) string {
	var sb strings.Builder
	if prefix != "" {
		sb.WriteString(prefix)
		sb.WriteString(" ")
	}
	fmt.Fprintf(&sb, "Here are some free %s slots:", minutes(d))
	for _, s := range slots {
		fmt.Fprintf(&sb, "\n%d. %s", s.Rank, s.Label)
	}
	sb.WriteString("\nWhich one works for you?")
	return sb.String()
}

func confirmMessage(title string, iv models.TimeInterval, loc *time.Location, defaulted bool) string {
	msg := fmt.Sprintf("Shall I book %q on %s (%s)?", title, booking.SlotLabel(iv, loc), minutes(iv.Duration()))
	if defaulted {
		msg += " I used the default length; tell me if it should be different."
	}
	return msg
}

func bookedMessage(title string, out models.BookingOutcome, loc *time.Location) string {
	msg := fmt.Sprintf("Done! %q is booked for %s.", title, booking.SlotLabel(out.Interval, loc))
	if n := len(out.Overlaps); n > 0 {
		msg += fmt.Sprintf(" Heads up: %d other event(s) were added to that time while I was booking.", n)
	}
	return msg
}

func conflictMessage(out models.BookingOutcome, loc *time.Location) string {
	msg := fmt.Sprintf("Sorry, %s was taken before I could book it", booking.SlotLabel(out.Interval, loc))
	if c := out.ConflictingInterval; c != nil {
		msg += fmt.Sprintf(" (busy %s-%s)", c.Start.In(loc).Format("15:04"), c.End.In(loc).Format("15:04"))
	}
	return msg + ". Nothing was added. Should I look for other times, or would you like a different day?"
}

func failureMessage(f models.Failure) string {
	switch f.Kind {
	case models.ErrorCalendarAuth:
		return "I can't access the calendar right now because it rejected my credentials. An administrator needs to fix this before I can book."
	case models.ErrorCalendarNotFound:
		return "I couldn't find the calendar to book into. An administrator needs to check the calendar setting."
	case models.ErrorInvalidRequest:
		return "I couldn't use those details (" + f.Reason + "). Could you rephrase them?"
	}
	msg := "I couldn't reach the calendar"
	if f.Kind == models.ErrorCalendarQuota {
		msg = "The calendar is busy handling other requests"
	}
	if f.Retryable {
		return msg + ". Please try again in a moment."
	}
	return msg + "."
}

func rejectedMessage(out models.BookingOutcome) string {
	f := models.Failure{Kind: out.ErrorKind, Reason: out.Reason, Retryable: out.Retryable}
	return "I wasn't able to create the event, so nothing was booked. " + failureMessage(f) + " " + msgRetryHint
}

// doneIdleMessage answers a detail-free turn once a request has finished.
func doneIdleMessage(last *models.BookingOutcome) string {
	if last == nil {
		return msgNothingPending
	}
	switch last.Kind {
	case models.OutcomeBooked:
		return msgDoneIdle
	case models.OutcomeRejected:
		return "The last booking didn't go through, so nothing was added to your calendar. " + msgRetryHint
	}
	return msgNothingPending
}

func noAvailabilityMessage(d time.Duration, from, to time.Time, loc *time.Location) string {
	return fmt.Sprintf("I couldn't find a free %s slot %s. Which other day would you like to try?",
		minutes(d), onLabel(from, to, loc))
}

func slotViews(slots []models.CandidateSlot) []models.SlotView {
	if len(slots) == 0 {
		return nil
	}
	views := make([]models.SlotView, len(slots))
	for i, s := range slots {
		views[i] = models.SlotView{Ordinal: s.Rank, Start: s.Interval.Start, End: s.Interval.End, Label: s.Label}
	}
	return views
}
