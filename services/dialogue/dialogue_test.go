package dialogue

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"calbook/models"
	"calbook/services/booking"
	"calbook/services/calendar"
	"calbook/services/intelligence"
	"calbook/services/session"
)

// Monday 2025-03-10 08:00 UTC.
var testNow = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

func on(day, h, m int) time.Time { return time.Date(2025, 3, day, h, m, 0, 0, time.UTC) }

// flakyCalendar is a MemoryCalendar whose calls can be made to fail.
type flakyCalendar struct {
	*calendar.MemoryCalendar
	mu        sync.Mutex
	busyErr   error
	createErr error
	creates   int
}

func (c *flakyCalendar) fail(busy, create error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.busyErr, c.createErr = busy, create
}

func (c *flakyCalendar) createCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creates
}

func (c *flakyCalendar) ListBusy(ctx context.Context, calendarID string, start, end time.Time) ([]models.TimeInterval, error) {
	c.mu.Lock()
	err := c.busyErr
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.MemoryCalendar.ListBusy(ctx, calendarID, start, end)
}

func (c *flakyCalendar) CreateEvent(ctx context.Context, calendarID string, ev calendar.NewEvent) (string, error) {
	c.mu.Lock()
	c.creates++
	err := c.createErr
	c.mu.Unlock()
	if err != nil {
		return "", err
	}
	return c.MemoryCalendar.CreateEvent(ctx, calendarID, ev)
}

func calErr(kind error) error {
	return &calendar.Error{Op: "test", Kind: kind, Err: errors.New("boom")}
}

type fixture struct {
	cal   *flakyCalendar
	store *session.MemoryStore
	mgr   *Manager
}

func newFixture(t *testing.T, extractor intelligence.IntentExtractor) *fixture {
	t.Helper()
	clock := func() time.Time { return testNow }
	cal := &flakyCalendar{MemoryCalendar: calendar.NewMemoryCalendar()}
	bs := booking.DefaultSettings()
	bs.RetryBackoff = 0
	engine := booking.NewAvailabilityEngine(cal, bs, clock, nil)
	protocol := booking.NewBookingProtocol(cal, bs, true, nil)
	machine := NewMachine(engine, protocol, DefaultSettings(), clock, nil)
	store := session.NewMemoryStore(time.Hour, nil)
	if extractor == nil {
		extractor = intelligence.NewRuleExtractor()
	}
	mgr := NewManager(store, session.NewLocker(), extractor, machine,
		ManagerConfig{CalendarID: "primary", DefaultTimezone: "UTC"}, nil)
	return &fixture{cal: cal, store: store, mgr: mgr}
}

func (f *fixture) say(t *testing.T, id, text string) models.Reply {
	t.Helper()
	r, err := f.mgr.HandleMessage(context.Background(), models.ChatRequest{SessionID: id, Message: text})
	if err != nil {
		t.Fatalf("HandleMessage(%q): %v", text, err)
	}
	return r
}

func (f *fixture) session(t *testing.T, id string) *models.Session {
	t.Helper()
	s, err := f.mgr.Session(context.Background(), id)
	if err != nil {
		t.Fatalf("Session(%s): %v", id, err)
	}
	return s
}

func wantPhase(t *testing.T, r models.Reply, p models.DialoguePhase) {
	t.Helper()
	if r.Phase != p {
		t.Fatalf("phase = %s, want %s (message %q)", r.Phase, p, r.Message)
	}
}

func TestExactRequestGoesStraightToConfirmation(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	r := f.say(t, "", "book Tuesday at 2pm for an hour")
	wantPhase(t, r, models.PhaseAwaitingConfirmation)
	want := models.TimeInterval{Start: on(11, 14, 0), End: on(11, 15, 0)}
	if r.Pending == nil || !r.Pending.Equal(want) {
		t.Fatalf("pending = %v, want %v", r.Pending, want)
	}
	if f.cal.Len("primary") != 0 {
		t.Fatal("event written before confirmation")
	}

	r = f.say(t, r.SessionID, "yes")
	wantPhase(t, r, models.PhaseDone)
	if r.Outcome == nil || r.Outcome.Kind != models.OutcomeBooked {
		t.Fatalf("outcome = %+v", r.Outcome)
	}
	if f.cal.Len("primary") != 1 {
		t.Errorf("events = %d, want 1", f.cal.Len("primary"))
	}
}

func TestConcurrentFillReturnsToCollecting(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	r := f.say(t, "", "book Tuesday at 2pm for an hour")
	wantPhase(t, r, models.PhaseAwaitingConfirmation)
	id := r.SessionID

	taken := models.TimeInterval{Start: on(11, 14, 0), End: on(11, 15, 0)}
	f.cal.Seed("primary", "Someone else", taken)

	r = f.say(t, id, "yes")
	wantPhase(t, r, models.PhaseCollecting)
	if r.Outcome == nil || r.Outcome.Kind != models.OutcomeConflict || r.ErrorKind != models.ErrorStaleSlotConflict {
		t.Fatalf("reply = %+v", r)
	}
	if f.cal.Len("primary") != 1 {
		t.Fatalf("conflicting booking wrote an event")
	}
	s := f.session(t, id)
	excluded := false
	for _, ex := range s.Request.Excluded {
		if ex.Equal(taken) {
			excluded = true
		}
	}
	if !excluded {
		t.Fatalf("2-3pm not excluded: %v", s.Request.Excluded)
	}

	r = f.say(t, id, "yes please")
	wantPhase(t, r, models.PhaseProposingSlots)
	for _, sl := range r.Slots {
		if (models.TimeInterval{Start: sl.Start, End: sl.End}).Overlaps(taken) {
			t.Errorf("excluded interval proposed again: %s", sl.Label)
		}
	}
}

func TestVagueRangeAsksForDurationThenProposes(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	r := f.say(t, "", "sometime next week")
	wantPhase(t, r, models.PhaseCollecting)
	if len(r.Missing) != 1 || r.Missing[0] != models.FieldDuration {
		t.Fatalf("missing = %v, want [duration]", r.Missing)
	}
	if !strings.Contains(r.Message, "How long") {
		t.Errorf("question does not name the duration: %q", r.Message)
	}

	r = f.say(t, r.SessionID, "30 minutes")
	wantPhase(t, r, models.PhaseProposingSlots)
	if len(r.Slots) != DefaultSettings().MaxCandidates {
		t.Fatalf("slots = %d", len(r.Slots))
	}
	if !r.Slots[0].Start.Equal(on(17, 9, 0)) {
		t.Errorf("first slot = %v, want Mon Mar 17 09:00", r.Slots[0].Start)
	}

	id := r.SessionID
	r = f.say(t, id, "the second one")
	wantPhase(t, r, models.PhaseAwaitingConfirmation)
	want := models.TimeInterval{Start: on(17, 9, 30), End: on(17, 10, 0)}
	if r.Pending == nil || !r.Pending.Equal(want) {
		t.Fatalf("pending = %v, want %v", r.Pending, want)
	}

	r = f.say(t, id, "no")
	wantPhase(t, r, models.PhaseCollecting)
	s := f.session(t, id)
	if s.Pending != nil || len(s.Request.Excluded) != 1 || !s.Request.Excluded[0].Equal(want) {
		t.Errorf("declined slot not discarded: pending=%v excluded=%v", s.Pending, s.Request.Excluded)
	}
}

func TestRestatedTimeSelectsWithinTolerance(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	r := f.say(t, "", "next week for 30 minutes")
	wantPhase(t, r, models.PhaseProposingSlots)

	r = f.say(t, r.SessionID, "9:10 suits me")
	wantPhase(t, r, models.PhaseAwaitingConfirmation)
	if r.Pending == nil || !r.Pending.Start.Equal(on(17, 9, 0)) {
		t.Fatalf("pending = %v, want 09:00 slot", r.Pending)
	}
}

func TestFullDayWidensSearch(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	f.cal.Seed("primary", "Offsite", models.TimeInterval{Start: on(11, 8, 0), End: on(11, 18, 0)})

	r := f.say(t, "", "tuesday for 1 hour")
	wantPhase(t, r, models.PhaseProposingSlots)
	if !r.Slots[0].Start.Equal(on(12, 9, 0)) {
		t.Errorf("first widened slot = %v, want Wed 09:00", r.Slots[0].Start)
	}
	if !strings.Contains(r.Message, "later openings") {
		t.Errorf("message does not explain widening: %q", r.Message)
	}
}

func TestPastTimeAsksForAnotherTime(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	r := f.say(t, "", "today at 7am")
	wantPhase(t, r, models.PhaseCollecting)
	if len(r.Missing) != 1 || r.Missing[0] != models.FieldTime {
		t.Errorf("missing = %v, want [time]", r.Missing)
	}
}

func TestDoneSessionStartsNewRequest(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	r := f.say(t, "", "book Tuesday at 2pm for an hour")
	id := r.SessionID
	wantPhase(t, f.say(t, id, "yes"), models.PhaseDone)

	r = f.say(t, id, "thanks")
	wantPhase(t, r, models.PhaseDone)

	r = f.say(t, id, "also Thursday at 10am for 30 minutes")
	wantPhase(t, r, models.PhaseAwaitingConfirmation)
	if !r.Pending.Start.Equal(on(13, 10, 0)) {
		t.Errorf("pending = %v", r.Pending)
	}
}

func TestCancelFromAnyPhase(t *testing.T) {
	t.Parallel()
	setups := map[models.DialoguePhase][]string{
		models.PhaseCollecting:           {"tomorrow"},
		models.PhaseProposingSlots:       {"tomorrow for 30 minutes"},
		models.PhaseAwaitingConfirmation: {"tomorrow at 3pm"},
	}
	for phase, msgs := range setups {
		phase, msgs := phase, msgs
		t.Run(string(phase), func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, nil)
			var r models.Reply
			for _, m := range msgs {
				r = f.say(t, r.SessionID, m)
			}
			wantPhase(t, r, phase)
			r = f.say(t, r.SessionID, "cancel")
			wantPhase(t, r, models.PhaseDone)
			if f.cal.Len("primary") != 0 {
				t.Error("cancel wrote an event")
			}
			if s := f.session(t, r.SessionID); s.Pending != nil || s.Request.HasDate() {
				t.Errorf("request not cleared: %+v", s.Request)
			}
		})
	}
}

type failingExtractor struct{}

func (failingExtractor) Extract(context.Context, string, models.SessionContext) (models.StructuredIntent, error) {
	return models.StructuredIntent{}, errors.New("model unavailable")
}

func TestExtractorFailureReprompts(t *testing.T) {
	t.Parallel()
	f := newFixture(t, failingExtractor{})
	r := f.say(t, "", "book something")
	wantPhase(t, r, models.PhaseCollecting)
	if r.ErrorKind != models.ErrorExtractionEmpty {
		t.Errorf("error kind = %s", r.ErrorKind)
	}
	if len(r.Missing) != 2 {
		t.Errorf("missing = %v, want date and duration", r.Missing)
	}
}

func TestUnknownSessionIsExpired(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	r := f.say(t, "no-such-session", "tomorrow")
	wantPhase(t, r, models.PhaseDone)
	if r.ErrorKind != models.ErrorSessionExpired {
		t.Errorf("error kind = %s", r.ErrorKind)
	}
}

func TestEmptyMessage(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	r := f.say(t, "", "   ")
	if r.Message != msgEmptyMessage || r.ErrorKind != models.ErrorInvalidRequest {
		t.Errorf("reply = %+v", r)
	}
	if r.SessionID != "" {
		t.Fatalf("empty first message handed out unsaved session %q", r.SessionID)
	}

	r = f.say(t, r.SessionID, "Tuesday at 2pm for an hour")
	wantPhase(t, r, models.PhaseAwaitingConfirmation)
	id := r.SessionID

	r = f.say(t, id, "")
	if r.SessionID != id || r.Phase != models.PhaseAwaitingConfirmation || r.ErrorKind != models.ErrorInvalidRequest {
		t.Fatalf("empty message in a live session = %+v", r)
	}
}

func TestBareNumberPicksOfferedSlot(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	r := f.say(t, "", "tomorrow for 30 minutes")
	wantPhase(t, r, models.PhaseProposingSlots)
	want := r.Slots[1]

	r = f.say(t, r.SessionID, "2")
	wantPhase(t, r, models.PhaseAwaitingConfirmation)
	if r.Pending == nil || !r.Pending.Start.Equal(want.Start) {
		t.Fatalf("pending = %v, want %v", r.Pending, want.Start)
	}
}

func TestRejectedBookingCanBeRetried(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	r := f.say(t, "", "book Tuesday at 2pm for an hour")
	wantPhase(t, r, models.PhaseAwaitingConfirmation)
	id := r.SessionID
	slot := *r.Pending

	f.cal.fail(nil, calErr(calendar.ErrTransport))
	r = f.say(t, id, "yes")
	wantPhase(t, r, models.PhaseDone)
	if r.Outcome == nil || r.Outcome.Kind != models.OutcomeRejected || !r.Outcome.Retryable {
		t.Fatalf("outcome = %+v", r.Outcome)
	}
	if r.ErrorKind != models.ErrorCalendarTransport {
		t.Errorf("error kind = %s", r.ErrorKind)
	}
	if !strings.Contains(r.Message, "nothing was booked") || !strings.Contains(r.Message, "try again") {
		t.Errorf("message = %q", r.Message)
	}
	if got := f.cal.createCalls(); got != booking.DefaultSettings().MaxRetries+1 {
		t.Errorf("create attempts = %d, want retries exhausted", got)
	}
	if f.cal.Len("primary") != 0 {
		t.Fatal("failed write left an event")
	}

	f.cal.fail(nil, nil)
	r = f.say(t, id, "yes, try again")
	wantPhase(t, r, models.PhaseAwaitingConfirmation)
	if strings.Contains(r.Message, "all set") {
		t.Fatalf("retry answered as if booked: %q", r.Message)
	}
	if r.Pending == nil || !r.Pending.Equal(slot) {
		t.Fatalf("pending = %v, want %v", r.Pending, slot)
	}
	if f.cal.Len("primary") != 0 {
		t.Fatal("retry wrote without a fresh confirmation")
	}

	r = f.say(t, id, "yes")
	wantPhase(t, r, models.PhaseDone)
	if r.Outcome == nil || r.Outcome.Kind != models.OutcomeBooked || f.cal.Len("primary") != 1 {
		t.Fatalf("second attempt = %+v", r)
	}
	if r = f.say(t, id, "thanks"); r.Message != msgDoneIdle {
		t.Errorf("idle after booking = %q", r.Message)
	}
}

func TestFatalCalendarErrorRejects(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	r := f.say(t, "", "book Tuesday at 2pm for an hour")
	id := r.SessionID

	f.cal.fail(nil, calErr(calendar.ErrAuth))
	r = f.say(t, id, "yes")
	wantPhase(t, r, models.PhaseDone)
	if r.ErrorKind != models.ErrorCalendarAuth || r.Outcome == nil || r.Outcome.Retryable {
		t.Fatalf("reply = %+v", r)
	}
	if !strings.Contains(r.Message, "administrator") {
		t.Errorf("message = %q", r.Message)
	}
	if got := f.cal.createCalls(); got != 1 {
		t.Errorf("create attempts = %d, want 1", got)
	}

	r = f.say(t, id, "no")
	wantPhase(t, r, models.PhaseDone)
	if r.Message != msgDropped {
		t.Errorf("declining the retry = %q", r.Message)
	}
	if r = f.say(t, id, "thanks"); r.Message != msgNothingPending {
		t.Errorf("idle after dropping = %q", r.Message)
	}

	f.cal.fail(nil, nil)
	r = f.say(t, id, "Thursday at 10am for 30 minutes")
	wantPhase(t, r, models.PhaseAwaitingConfirmation)
	if !r.Pending.Start.Equal(on(13, 10, 0)) {
		t.Errorf("pending = %v", r.Pending)
	}
}

func TestAvailabilityFailureKeepsRequest(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		text  string
		err   error
		kind  models.ErrorKind
		after models.DialoguePhase
	}{
		{"slot search", "tomorrow for 30 minutes", calErr(calendar.ErrQuota), models.ErrorCalendarQuota, models.PhaseProposingSlots},
		{"exact time check", "Tuesday at 2pm for an hour", calErr(calendar.ErrTransport), models.ErrorCalendarTransport, models.PhaseAwaitingConfirmation},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, nil)
			f.cal.fail(tc.err, nil)

			r := f.say(t, "", tc.text)
			wantPhase(t, r, models.PhaseCollecting)
			if r.ErrorKind != tc.kind {
				t.Errorf("error kind = %s, want %s", r.ErrorKind, tc.kind)
			}
			if !strings.Contains(r.Message, "try again") {
				t.Errorf("message = %q", r.Message)
			}
			if s := f.session(t, r.SessionID); !s.Request.HasDate() {
				t.Fatalf("request lost after failure: %+v", s.Request)
			}

			f.cal.fail(nil, nil)
			r = f.say(t, r.SessionID, "yes")
			wantPhase(t, r, tc.after)
		})
	}
}

func TestRestatingRuledOutTime(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	r := f.say(t, "", "book Tuesday at 2pm for an hour")
	id := r.SessionID
	declined := *r.Pending

	wantPhase(t, f.say(t, id, "no"), models.PhaseCollecting)

	r = f.say(t, id, "2pm")
	wantPhase(t, r, models.PhaseProposingSlots)
	if !strings.Contains(r.Message, "ruled out earlier") || strings.Contains(r.Message, "is not free") {
		t.Errorf("message = %q", r.Message)
	}
	for _, sl := range r.Slots {
		if (models.TimeInterval{Start: sl.Start, End: sl.End}).Overlaps(declined) {
			t.Errorf("declined slot offered again: %v", sl)
		}
	}
}

func TestTransitionTable(t *testing.T) {
	t.Parallel()
	legal := [][2]models.DialoguePhase{
		{models.PhaseCollecting, models.PhaseProposingSlots},
		{models.PhaseCollecting, models.PhaseAwaitingConfirmation},
		{models.PhaseProposingSlots, models.PhaseAwaitingConfirmation},
		{models.PhaseProposingSlots, models.PhaseCollecting},
		{models.PhaseAwaitingConfirmation, models.PhaseBooking},
		{models.PhaseAwaitingConfirmation, models.PhaseCollecting},
		{models.PhaseBooking, models.PhaseDone},
		{models.PhaseBooking, models.PhaseCollecting},
	}
	for _, e := range legal {
		if !CanTransition(e[0], e[1]) {
			t.Errorf("%s -> %s should be legal", e[0], e[1])
		}
	}
	for _, from := range []models.DialoguePhase{models.PhaseCollecting, models.PhaseProposingSlots, models.PhaseAwaitingConfirmation, models.PhaseBooking} {
		if !CanTransition(from, models.PhaseDone) {
			t.Errorf("cancel from %s must be legal", from)
		}
	}
	for _, from := range []models.DialoguePhase{models.PhaseCollecting, models.PhaseProposingSlots, models.PhaseDone} {
		if CanTransition(from, models.PhaseBooking) {
			t.Errorf("%s -> booking bypasses the confirmation gate", from)
		}
	}

	s := &models.Session{Phase: models.PhaseCollecting}
	if err := transition(s, models.PhaseBooking); !errors.Is(err, ErrIllegalTransition) || s.Phase != models.PhaseCollecting {
		t.Errorf("illegal transition applied: err=%v phase=%s", err, s.Phase)
	}
}

// recordingProtocol wraps the real protocol and records every write attempt.
type recordingProtocol struct {
	inner booking.BookingProtocol
	calls []booking.Confirmation
}

func (p *recordingProtocol) Book(ctx context.Context, c booking.Confirmation) models.BookingOutcome {
	p.calls = append(p.calls, c)
	return p.inner.Book(ctx, c)
}

func intp(n int) *int { return &n }

func TestBookingRequiresExplicitConfirmation(t *testing.T) {
	t.Parallel()
	clock := func() time.Time { return testNow }
	cal := calendar.NewMemoryCalendar()
	bs := booking.DefaultSettings()
	bs.RetryBackoff = 0
	rec := &recordingProtocol{inner: booking.NewBookingProtocol(cal, bs, false, nil)}
	m := NewMachine(booking.NewAvailabilityEngine(cal, bs, clock, nil), rec, DefaultSettings(), clock, nil)

	pool := []models.StructuredIntent{
		{Date: &models.DateHint{From: "2025-03-11", To: "2025-03-11"}, DurationMinutes: intp(60)},
		{Date: &models.DateHint{From: "2025-03-12", To: "2025-03-12"}, Time: &models.TimeHint{Exact: "14:00"}},
		{Date: &models.DateHint{From: "2025-03-17", To: "2025-03-21"}},
		{DurationMinutes: intp(30)},
		{Time: &models.TimeHint{Exact: "09:00"}},
		{SlotOrdinal: intp(1)},
		{SlotOrdinal: intp(2)},
		{SlotOrdinal: intp(9)},
		{Signal: models.SignalConfirm},
		{Signal: models.SignalConfirm},
		{Signal: models.SignalDeny},
		{Signal: models.SignalCancel},
		{Title: "Sync"},
		{},
	}
	rng := rand.New(rand.NewSource(7))
	s := &models.Session{ID: "gate", CalendarID: "primary", Timezone: "UTC", Phase: models.PhaseCollecting}

	for i := 0; i < 500; i++ {
		in := pool[rng.Intn(len(pool))]
		before := s.Phase
		var pending *models.TimeInterval
		if s.Pending != nil {
			p := *s.Pending
			pending = &p
		}
		n := len(rec.calls)

		m.Step(context.Background(), s, in)

		if len(rec.calls) > n {
			c := rec.calls[len(rec.calls)-1]
			if before != models.PhaseAwaitingConfirmation || in.Signal != models.SignalConfirm || in.HasDetails() {
				t.Fatalf("step %d: write from phase %s with intent %+v", i, before, in)
			}
			if pending == nil || !c.Interval.Equal(*pending) {
				t.Fatalf("step %d: wrote %v but pending was %v", i, c.Interval, pending)
			}
		}
		switch s.Phase {
		case models.PhaseAwaitingConfirmation:
			if s.Pending == nil {
				t.Fatalf("step %d: awaiting confirmation without a pending slot", i)
			}
		case models.PhaseProposingSlots:
			if len(s.Offered) == 0 {
				t.Fatalf("step %d: proposing without offers", i)
			}
		case models.PhaseBooking:
			t.Fatalf("step %d: left in booking phase", i)
		}
	}
	if len(rec.calls) == 0 {
		t.Fatal("random walk never booked; pool too weak to exercise the gate")
	}
}

// slowExtractor tracks how many extractions run at once.
type slowExtractor struct {
	mu        sync.Mutex
	active    int
	maxActive int
}

func (e *slowExtractor) Extract(ctx context.Context, utterance string, sc models.SessionContext) (models.StructuredIntent, error) {
	e.mu.Lock()
	e.active++
	if e.active > e.maxActive {
		e.maxActive = e.active
	}
	e.mu.Unlock()
	time.Sleep(2 * time.Millisecond)
	e.mu.Lock()
	e.active--
	e.mu.Unlock()
	return models.StructuredIntent{}, nil
}

func TestTurnsAreSerializedPerSession(t *testing.T) {
	t.Parallel()
	ex := &slowExtractor{}
	f := newFixture(t, ex)
	first := f.say(t, "", "hello")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.mgr.HandleMessage(context.Background(), models.ChatRequest{SessionID: first.SessionID, Message: "hi"}); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if ex.maxActive != 1 {
		t.Errorf("concurrent turns for one session: %d", ex.maxActive)
	}
	if got := len(f.session(t, first.SessionID).Turns); got != 22 {
		t.Errorf("turns = %d, want 22", got)
	}
}
