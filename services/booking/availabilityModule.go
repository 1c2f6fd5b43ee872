package booking

import (
	"context"
	"time"

	"calbook/models"
	"calbook/services/calendar"

	"go.uber.org/zap"
)

// DefaultAvailabilityEngine computes free slots from live calendar data.
// It holds no mutable state, so identical queries against an unchanged
// calendar return identical results.
type DefaultAvailabilityEngine struct {
	Calendar calendar.Calendar
	Settings Settings
	Now      func() time.Time
	Logger   *zap.Logger

	retry retrier
}

// NewAvailabilityEngine wires an engine with its retry policy.
func NewAvailabilityEngine(cal calendar.Calendar, s Settings, now func() time.Time, logger *zap.Logger) *DefaultAvailabilityEngine {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultAvailabilityEngine{
		Calendar: cal,
		Settings: s,
		Now:      now,
		Logger:   logger,
		retry:    newRetrier(s, logger),
	}
}

// FindSlots queries busy intervals for the searched days, subtracts them from
// the working windows and returns ranked duration-length slots. No room is an
// empty result, not a failure.
func (e *DefaultAvailabilityEngine) FindSlots(ctx context.Context, q SlotQuery) models.Availability {
	if q.Duration <= 0 {
		f := invalid("duration must be positive")
		return models.Availability{Failure: &f}
	}
	if q.Location == nil {
		q.Location = time.UTC
	}
	if !q.From.Before(q.To) {
		f := invalid("empty date range")
		return models.Availability{Failure: &f}
	}

	windows := e.workingWindows(q)
	if len(windows) == 0 {
		e.Logger.Debug("no working windows in range",
			zap.Time("from", q.From), zap.Time("to", q.To), zap.String("period", string(q.Period)))
		return models.Availability{}
	}

	span := models.TimeInterval{Start: windows[0].Start, End: windows[len(windows)-1].End}
	var raw []models.TimeInterval
	err := e.retry.do(ctx, "listBusy", func(ctx context.Context) error {
		var err error
		raw, err = e.Calendar.ListBusy(ctx, q.CalendarID, span.Start, span.End)
		return err
	})
	if err != nil {
		f := toFailure(err)
		e.Logger.Error("FindSlots: busy query failed",
			zap.String("calendarID", q.CalendarID), zap.String("kind", string(f.Kind)), zap.Error(err))
		return models.Availability{Failure: &f}
	}

	busy := models.NormalizeBusy(raw, q.Exclude)
	free := models.SubtractAll(windows, busy)
	slots := BuildCandidateSlots(free, q.Duration, e.granularity(), q.Location)
	slots = RankSlots(slots, q.Preference, q.Limit)

	e.Logger.Debug("slots computed",
		zap.String("calendarID", q.CalendarID),
		zap.Int("busy", len(busy)),
		zap.Int("freeIntervals", len(free)),
		zap.Int("slots", len(slots)))
	return models.Availability{Slots: slots}
}

// CheckInterval re-reads busy data for exactly target. It returns the first
// conflicting interval, or a failure when the calendar could not be read.
func (e *DefaultAvailabilityEngine) CheckInterval(ctx context.Context, calendarID string, target models.TimeInterval, exclude []models.TimeInterval) (*models.TimeInterval, *models.Failure) {
	if !target.Valid() {
		f := invalid("interval start must be before end")
		return nil, &f
	}
	var raw []models.TimeInterval
	err := e.retry.do(ctx, "listBusy", func(ctx context.Context) error {
		var err error
		raw, err = e.Calendar.ListBusy(ctx, calendarID, target.Start, target.End)
		return err
	})
	if err != nil {
		f := toFailure(err)
		return nil, &f
	}
	if conflict, ok := models.NormalizeBusy(raw, exclude).FirstOverlap(target); ok {
		return &conflict, nil
	}
	return nil, nil
}

func (e *DefaultAvailabilityEngine) granularity() time.Duration {
	if e.Settings.Granularity <= 0 {
		return 30 * time.Minute
	}
	return e.Settings.Granularity
}

// workingWindows builds one window per searched day, narrowed to the day
// period and with the past cut off.
func (e *DefaultAvailabilityEngine) workingWindows(q SlotQuery) []models.TimeInterval {
	now := e.Now()
	var windows []models.TimeInterval
	for d := q.From; d.Before(q.To); d = d.AddDate(0, 0, 1) {
		if !e.Settings.IncludeWeekends && (d.Weekday() == time.Saturday || d.Weekday() == time.Sunday) {
			continue
		}
		w := models.TimeInterval{
			Start: clockOn(d, e.Settings.WorkdayStart, q.Location),
			End:   clockOn(d, e.Settings.WorkdayEnd, q.Location),
		}
		if from, to, ok := q.Period.Bounds(); ok {
			clipped, ok := w.Clip(models.TimeInterval{Start: clockOn(d, from, q.Location), End: clockOn(d, to, q.Location)})
			if !ok {
				continue
			}
			w = clipped
		}
		if !w.End.After(now) {
			continue
		}
		if w.Start.Before(now) {
			w.Start = now
		}
		if w.Valid() {
			windows = append(windows, w)
		}
	}
	return windows
}

// clockOn returns the wall-clock time offset after midnight of day d in loc.
// Built from components so DST transitions keep the wall clock.
func clockOn(d time.Time, offset time.Duration, loc *time.Location) time.Time {
	d = d.In(loc)
	h := int(offset / time.Hour)
	m := int((offset % time.Hour) / time.Minute)
	return time.Date(d.Year(), d.Month(), d.Day(), h, m, 0, 0, loc)
}
