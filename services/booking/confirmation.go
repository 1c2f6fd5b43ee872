package booking

import (
	"context"
	"errors"
	"strings"

	"calbook/models"
	"calbook/services/calendar"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTitle is used when the user never named the event.
const DefaultTitle = "Meeting"

// DefaultBookingProtocol re-validates a confirmed slot against the live
// calendar and writes the event. It never holds a lock across the network
// call; the re-check narrows the race window but cannot close it.
type DefaultBookingProtocol struct {
	Calendar calendar.Calendar
	Settings Settings
	Logger   *zap.Logger

	retry  retrier
	newID  func() string
	verify bool
}

// NewBookingProtocol wires a protocol. verifyAfterWrite enables the post-write
// overlap check when the calendar can list events.
func NewBookingProtocol(cal calendar.Calendar, s Settings, verifyAfterWrite bool, logger *zap.Logger) *DefaultBookingProtocol {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultBookingProtocol{
		Calendar: cal,
		Settings: s,
		Logger:   logger,
		retry:    newRetrier(s, logger),
		newID:    eventID,
		verify:   verifyAfterWrite,
	}
}

// eventID returns a Google-compatible client event id (base32hex subset).
func eventID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Book runs the protocol for one confirmed slot:
//  1. re-read busy data for exactly the target interval
//  2. conflict: return Conflict without writing
//  3. free: create the event, retrying transport and quota failures
//  4. fatal or exhausted failures: return Rejected
func (p *DefaultBookingProtocol) Book(ctx context.Context, c Confirmation) models.BookingOutcome {
	logger := p.Logger.With(zap.String("sessionID", c.SessionID), zap.String("calendarID", c.CalendarID))
	target := c.Interval
	if c.CalendarID == "" {
		return models.Rejected(target, invalid("no calendar configured"))
	}
	if !target.Valid() {
		return models.Rejected(target, invalid("interval start must be before end"))
	}
	title := strings.TrimSpace(c.Title)
	if title == "" {
		title = DefaultTitle
	}

	var raw []models.TimeInterval
	err := p.retry.do(ctx, "listBusy", func(ctx context.Context) error {
		var err error
		raw, err = p.Calendar.ListBusy(ctx, c.CalendarID, target.Start, target.End)
		return err
	})
	if err != nil {
		f := toFailure(err)
		logger.Error("Book: re-validation failed", zap.String("kind", string(f.Kind)), zap.Error(err))
		return models.Rejected(target, f)
	}
	if conflict, ok := models.NormalizeBusy(raw).FirstOverlap(target); ok {
		logger.Info("Book: slot taken since it was proposed",
			zap.Stringer("target", target), zap.Stringer("conflict", conflict))
		return models.Conflict(target, conflict)
	}

	id := p.newID()
	attempt := 0
	var created string
	err = p.retry.do(ctx, "createEvent", func(ctx context.Context) error {
		attempt++
		got, err := p.Calendar.CreateEvent(ctx, c.CalendarID, calendar.NewEvent{
			ID:          id,
			Title:       title,
			Description: c.Description,
			Start:       target.Start,
			End:         target.End,
			Timezone:    c.Timezone,
		})
		// an earlier attempt landed even though its response was lost
		if errors.Is(err, calendar.ErrDuplicate) && attempt > 1 {
			created = id
			return nil
		}
		if err != nil {
			return err
		}
		created = got
		return nil
	})
	if err != nil {
		f := toFailure(err)
		if errors.Is(err, calendar.ErrDuplicate) {
			f = models.Failure{Kind: models.ErrorCalendarTransport, Reason: "the calendar refused the event id"}
		}
		logger.Error("Book: event write failed",
			zap.String("kind", string(f.Kind)), zap.Int("attempts", attempt), zap.Error(err))
		return models.Rejected(target, f)
	}

	outcome := models.Booked(created, target)
	outcome.Overlaps = p.overlapsAfterWrite(ctx, c.CalendarID, created, target, logger)
	logger.Info("Book: event created", zap.String("eventID", created), zap.Stringer("interval", target))
	return outcome
}

// overlapsAfterWrite lists events around the new one and reports foreign
// events that overlap it, which means a concurrent writer won the race too.
func (p *DefaultBookingProtocol) overlapsAfterWrite(ctx context.Context, calendarID, eventID string, target models.TimeInterval, logger *zap.Logger) []models.TimeInterval {
	lister, ok := p.Calendar.(calendar.EventLister)
	if !p.verify || !ok {
		return nil
	}
	callCtx := ctx
	if p.Settings.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.Settings.CallTimeout)
		defer cancel()
	}
	events, err := lister.ListEvents(callCtx, calendarID, target.Start, target.End)
	if err != nil {
		logger.Warn("Book: post-write check skipped", zap.Error(err))
		return nil
	}
	var overlaps []models.TimeInterval
	for _, ev := range events {
		if ev.ID != eventID && ev.Interval.Overlaps(target) {
			overlaps = append(overlaps, ev.Interval)
		}
	}
	if len(overlaps) > 0 {
		logger.Warn("Book: overlapping events found after write",
			zap.String("eventID", eventID), zap.Int("overlaps", len(overlaps)), zap.Time("start", target.Start))
	}
	return overlaps
}
