// File: services/dialogue/machine.go
package dialogue

import (
	"context"
	"fmt"
	"time"

	"calbook/models"
	"calbook/services/booking"

	"go.uber.org/zap"
)

// Settings are the conversational knobs.
type Settings struct {
	DefaultDuration time.Duration // used when an exact time is confirmed without a length
	MaxCandidates   int
	MatchTolerance  time.Duration // restated time vs. offered slot
	WidenDays       int           // extra days searched when the requested ones are full
	DefaultTitle    string
}

func DefaultSettings() Settings {
	return Settings{
		DefaultDuration: 30 * time.Minute,
		MaxCandidates:   5,
		MatchTolerance:  15 * time.Minute,
		WidenDays:       7,
		DefaultTitle:    booking.DefaultTitle,
	}
}

// Machine decides the next action for a session. It mutates only the
// session it is handed and keeps no state of its own.
type Machine struct {
	Engine   booking.AvailabilityEngine
	Protocol booking.BookingProtocol
	Settings Settings
	Now      func() time.Time
	Logger   *zap.Logger
}

func NewMachine(engine booking.AvailabilityEngine, protocol booking.BookingProtocol, s Settings, now func() time.Time, logger *zap.Logger) *Machine {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{Engine: engine, Protocol: protocol, Settings: s, Now: now, Logger: logger}
}

// Step applies one sanitized intent to s and returns the reply.
func (m *Machine) Step(ctx context.Context, s *models.Session, in models.StructuredIntent) models.Reply {
	from := s.Phase
	r := m.step(ctx, s, in)
	r.SessionID = s.ID
	r.Phase = s.Phase
	m.Logger.Debug("dialogue step",
		zap.String("sessionID", s.ID),
		zap.String("from", string(from)),
		zap.String("to", string(s.Phase)),
		zap.String("signal", string(in.Signal)),
		zap.String("errorKind", string(r.ErrorKind)))
	return r
}

func (m *Machine) step(ctx context.Context, s *models.Session, in models.StructuredIntent) models.Reply {
	if in.Signal == models.SignalCancel {
		return m.cancel(s)
	}
	switch s.Phase {
	case models.PhaseCollecting:
		return m.collect(ctx, s, in, "")
	case models.PhaseProposingSlots:
		return m.choose(ctx, s, in)
	case models.PhaseAwaitingConfirmation:
		return m.confirm(ctx, s, in)
	case models.PhaseBooking:
		// only seen when a previous turn died mid-write
		s.Pending = nil
		m.move(s, models.PhaseCollecting)
		return m.collect(ctx, s, in, "I couldn't confirm whether the last booking went through, so let's check again.")
	case models.PhaseDone:
		return m.done(ctx, s, in)
	}
	m.Logger.Error("unknown phase, restarting request", zap.String("phase", string(s.Phase)))
	s.ResetRequest()
	s.Phase = models.PhaseCollecting
	return m.collect(ctx, s, in, "")
}

func (m *Machine) move(s *models.Session, to models.DialoguePhase) {
	if err := transition(s, to); err != nil {
		m.Logger.Error("dialogue transition rejected", zap.String("sessionID", s.ID), zap.Error(err))
	}
}

// done handles turns after a request has finished. A rejected booking keeps
// its request, so a bare confirm retries it from the top.
func (m *Machine) done(ctx context.Context, s *models.Session, in models.StructuredIntent) models.Reply {
	if in.HasDetails() {
		s.ResetRequest()
		s.LastOutcome = nil
		m.move(s, models.PhaseCollecting)
		return m.collect(ctx, s, in, "")
	}
	if !retryable(s) {
		return models.Reply{Message: doneIdleMessage(s.LastOutcome)}
	}
	switch {
	case in.Signal == models.SignalConfirm, in.IsEmpty():
		s.LastOutcome = nil
		m.move(s, models.PhaseCollecting)
		return m.collect(ctx, s, in, "Let's try that again.")
	case in.Signal == models.SignalDeny:
		s.ResetRequest()
		s.LastOutcome = nil
		return models.Reply{Message: msgDropped}
	}
	return models.Reply{Message: doneIdleMessage(s.LastOutcome)}
}

func retryable(s *models.Session) bool {
	return s.LastOutcome != nil && s.LastOutcome.Kind == models.OutcomeRejected && s.Request.HasDate()
}

func (m *Machine) cancel(s *models.Session) models.Reply {
	if s.Phase == models.PhaseDone {
		if retryable(s) {
			s.LastOutcome = nil
		}
		s.ResetRequest()
		return models.Reply{Message: "There's no booking request in progress. Anything already booked stays on your calendar."}
	}
	s.ResetRequest()
	s.LastOutcome = nil
	m.move(s, models.PhaseDone)
	return models.Reply{Message: msgCancelled}
}

// missing lists the dimensions required before the calendar can be queried.
// An exact time on a single day needs no duration; the default applies.
func missing(r models.BookingRequest) []models.Field {
	var out []models.Field
	if !r.HasDate() {
		out = append(out, models.FieldDate)
	}
	exact := r.ExactTime != "" && (r.SingleDay() || !r.HasDate())
	if r.Duration <= 0 && !exact {
		out = append(out, models.FieldDuration)
	}
	return out
}

func (m *Machine) collect(ctx context.Context, s *models.Session, in models.StructuredIntent, prefix string) models.Reply {
	s.Request.Apply(in)
	if need := missing(s.Request); len(need) > 0 {
		kind := models.ErrorMissingField
		if in.IsEmpty() {
			kind = models.ErrorExtractionEmpty
			if prefix == "" {
				prefix = msgNotUnderstood
			}
		}
		m.move(s, models.PhaseCollecting)
		return models.Reply{Message: askMissing(need, prefix), Missing: need, ErrorKind: kind}
	}
	if iv, ok := s.Request.ExactInterval(s.Location(), m.Settings.DefaultDuration); ok {
		return m.proposeExact(ctx, s, iv, prefix)
	}
	return m.propose(ctx, s, prefix)
}

// proposeExact validates a user-given interval and asks for confirmation, or
// offers the nearest alternatives on that day when it is taken.
func (m *Machine) proposeExact(ctx context.Context, s *models.Session, iv models.TimeInterval, prefix string) models.Reply {
	loc := s.Location()
	if !iv.Start.After(m.Now()) {
		s.Request.ExactTime = ""
		m.move(s, models.PhaseCollecting)
		need := []models.Field{models.FieldTime}
		return models.Reply{
			Message:   askMissing(need, join(prefix, "That time has already passed.")),
			Missing:   need,
			ErrorKind: models.ErrorMissingField,
		}
	}
	for _, ex := range s.Request.Excluded {
		if ex.Overlaps(iv) {
			return m.propose(ctx, s, join(prefix, fmt.Sprintf("%s was already ruled out earlier.", booking.SlotLabel(iv, loc))))
		}
	}
	conflict, failure := m.Engine.CheckInterval(ctx, s.CalendarID, iv, s.Request.Excluded)
	if failure != nil {
		return m.failed(s, *failure, prefix)
	}
	if conflict != nil {
		return m.propose(ctx, s, join(prefix, fmt.Sprintf("%s is not free.", booking.SlotLabel(iv, loc))))
	}
	s.Pending = &iv
	s.Offered = nil
	m.move(s, models.PhaseAwaitingConfirmation)
	return models.Reply{
		Message: join(prefix, confirmMessage(m.title(s), iv, loc, s.Request.Duration <= 0)),
		Pending: &iv,
	}
}

func (m *Machine) propose(ctx context.Context, s *models.Session, prefix string) models.Reply {
	loc := s.Location()
	r := s.Request
	from, to, ok := r.Dates(loc)
	if !ok {
		s.Request.FromDate, s.Request.ToDate = "", ""
		m.move(s, models.PhaseCollecting)
		need := []models.Field{models.FieldDate}
		return models.Reply{Message: askMissing(need, prefix), Missing: need, ErrorKind: models.ErrorMissingField}
	}
	d := m.duration(r)
	q := booking.SlotQuery{
		CalendarID: s.CalendarID,
		Location:   loc,
		From:       from,
		To:         to,
		Duration:   d,
		Preference: r.Preference(loc),
		Period:     r.DayPeriod,
		Exclude:    r.Excluded,
		Limit:      m.Settings.MaxCandidates,
	}
	av := m.Engine.FindSlots(ctx, q)
	if av.Failure != nil {
		return m.failed(s, *av.Failure, prefix)
	}

	if av.Empty() && m.Settings.WidenDays > 0 {
		wide := q
		wide.From = to
		if today := midnight(m.Now(), loc); wide.From.Before(today) {
			wide.From = today
		}
		wide.To = wide.From.AddDate(0, 0, m.Settings.WidenDays)
		wide.Preference = nil
		av = m.Engine.FindSlots(ctx, wide)
		if av.Failure != nil {
			return m.failed(s, *av.Failure, prefix)
		}
		if !av.Empty() {
			prefix = join(prefix, fmt.Sprintf("Nothing is free %s, but I found these later openings.", onLabel(from, to, loc)))
		}
	}

	if av.Empty() {
		s.Request.FromDate, s.Request.ToDate = "", ""
		s.Request.ExactTime = ""
		s.Offered = nil
		m.move(s, models.PhaseCollecting)
		return models.Reply{
			Message:   join(prefix, noAvailabilityMessage(d, from, to, loc)),
			Missing:   []models.Field{models.FieldDate},
			ErrorKind: models.ErrorNoAvailability,
		}
	}

	s.Offered = av.Slots
	s.Pending = nil
	m.move(s, models.PhaseProposingSlots)
	return models.Reply{Message: proposeMessage(av.Slots, d, prefix), Slots: slotViews(av.Slots)}
}

// failed reports a calendar failure and keeps the request for a retry.
func (m *Machine) failed(s *models.Session, f models.Failure, prefix string) models.Reply {
	s.Offered = nil
	s.Pending = nil
	m.move(s, models.PhaseCollecting)
	return models.Reply{Message: join(prefix, failureMessage(f)), ErrorKind: f.Kind}
}

func (m *Machine) choose(ctx context.Context, s *models.Session, in models.StructuredIntent) models.Reply {
	loc := s.Location()
	if in.Title != "" {
		s.Request.Title = in.Title
	}
	if slot, ok := m.pick(s.Offered, in, loc); ok {
		iv := slot.Interval
		s.Pending = &iv
		m.move(s, models.PhaseAwaitingConfirmation)
		return models.Reply{Message: confirmMessage(m.title(s), iv, loc, false), Pending: &iv}
	}
	if in.SlotOrdinal != nil && !in.HasDetails() {
		return models.Reply{
			Message:   fmt.Sprintf("Please pick a number between 1 and %d.", len(s.Offered)),
			Slots:     slotViews(s.Offered),
			ErrorKind: models.ErrorInvalidRequest,
		}
	}
	if in.HasDetails() {
		s.Offered = nil
		m.move(s, models.PhaseCollecting)
		return m.collect(ctx, s, in, "")
	}
	if in.Signal == models.SignalDeny {
		for _, o := range s.Offered {
			s.Request.Exclude(o.Interval)
		}
		s.Offered = nil
		m.move(s, models.PhaseCollecting)
		return m.collect(ctx, s, in, "No problem.")
	}

	var kind models.ErrorKind
	if in.IsEmpty() {
		kind = models.ErrorExtractionEmpty
	}
	m.move(s, models.PhaseProposingSlots)
	return models.Reply{
		Message:   proposeMessage(s.Offered, m.duration(s.Request), "Please choose one of these by number."),
		Slots:     slotViews(s.Offered),
		ErrorKind: kind,
	}
}

// pick resolves a selection by ordinal, by a restated time within the match
// tolerance, or by a bare "yes" when only one slot was offered.
func (m *Machine) pick(offered []models.CandidateSlot, in models.StructuredIntent, loc *time.Location) (models.CandidateSlot, bool) {
	if in.SlotOrdinal != nil {
		for _, o := range offered {
			if o.Rank == *in.SlotOrdinal {
				return o, true
			}
		}
		return models.CandidateSlot{}, false
	}
	if in.Time != nil && in.Time.Exact != "" && in.DurationMinutes == nil {
		var best models.CandidateSlot
		var bestDiff time.Duration
		found := false
		for _, o := range offered {
			start := o.Interval.Start.In(loc)
			date := start.Format(models.DateLayout)
			if in.Date != nil && (date < in.Date.From || date > in.Date.To) {
				continue
			}
			want, err := time.ParseInLocation(models.DateLayout+" "+models.ClockLayout, date+" "+in.Time.Exact, loc)
			if err != nil {
				continue
			}
			diff := start.Sub(want)
			if diff < 0 {
				diff = -diff
			}
			if diff <= m.Settings.MatchTolerance && (!found || diff < bestDiff) {
				best, bestDiff, found = o, diff, true
			}
		}
		return best, found
	}
	if in.Signal == models.SignalConfirm && !in.HasDetails() && len(offered) == 1 {
		return offered[0], true
	}
	return models.CandidateSlot{}, false
}

func (m *Machine) confirm(ctx context.Context, s *models.Session, in models.StructuredIntent) models.Reply {
	if s.Pending == nil {
		m.move(s, models.PhaseCollecting)
		return m.collect(ctx, s, in, "")
	}
	if in.Title != "" {
		s.Request.Title = in.Title
	}
	loc := s.Location()
	switch {
	case in.HasDetails():
		s.Pending = nil
		m.move(s, models.PhaseCollecting)
		return m.collect(ctx, s, in, "")
	case in.Signal == models.SignalDeny:
		if s.Request.Duration <= 0 {
			s.Request.Duration = s.Pending.Duration()
		}
		s.Request.Exclude(*s.Pending)
		s.Request.ExactTime = ""
		s.Pending = nil
		s.Offered = nil
		m.move(s, models.PhaseCollecting)
		return models.Reply{
			Message: "Okay, I won't book that. What time would work better? Or just say \"suggest\" and I'll look for other slots.",
			Missing: []models.Field{models.FieldTime},
		}
	case in.Signal == models.SignalConfirm && in.SlotOrdinal == nil:
		return m.book(ctx, s)
	}
	var kind models.ErrorKind
	if in.IsEmpty() {
		kind = models.ErrorExtractionEmpty
	}
	return models.Reply{
		Message:   "Please answer yes or no. " + confirmMessage(m.title(s), *s.Pending, loc, false),
		Pending:   s.Pending,
		ErrorKind: kind,
	}
}

// book is the only path to a calendar write. It is reached solely from
// AwaitingConfirmation on an explicit confirm for the pending interval.
func (m *Machine) book(ctx context.Context, s *models.Session) models.Reply {
	loc := s.Location()
	iv := *s.Pending
	title := m.title(s)
	m.move(s, models.PhaseBooking)

	out := m.Protocol.Book(ctx, booking.Confirmation{
		SessionID:   s.ID,
		CalendarID:  s.CalendarID,
		Title:       title,
		Description: s.Request.Description,
		Timezone:    s.Timezone,
		Interval:    iv,
	})
	s.LastOutcome = &out
	s.Pending = nil

	switch out.Kind {
	case models.OutcomeBooked:
		m.move(s, models.PhaseDone)
		return models.Reply{Message: bookedMessage(title, out, loc), Outcome: &out}
	case models.OutcomeConflict:
		if c := out.ConflictingInterval; c != nil {
			s.Request.Exclude(*c)
		}
		if s.Request.Duration <= 0 {
			s.Request.Duration = iv.Duration()
		}
		s.Request.ExactTime = ""
		s.Offered = nil
		m.move(s, models.PhaseCollecting)
		return models.Reply{Message: conflictMessage(out, loc), Outcome: &out, ErrorKind: models.ErrorStaleSlotConflict}
	default:
		m.move(s, models.PhaseDone)
		return models.Reply{Message: rejectedMessage(out), Outcome: &out, ErrorKind: out.ErrorKind}
	}
}

func (m *Machine) duration(r models.BookingRequest) time.Duration {
	if r.Duration > 0 {
		return r.Duration
	}
	return m.Settings.DefaultDuration
}

func (m *Machine) title(s *models.Session) string {
	if s.Request.Title != "" {
		return s.Request.Title
	}
	if m.Settings.DefaultTitle != "" {
		return m.Settings.DefaultTitle
	}
	return booking.DefaultTitle
}

func midnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func join(prefix, msg string) string {
	if prefix == "" {
		return msg
	}
	return prefix + " " + msg
}
