package calendar

import (
	"context"
	"fmt"
	"os"
	"time"

	"calbook/models"

	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// GoogleCalendar talks to the Google Calendar v3 API with a service account.
type GoogleCalendar struct {
	service  *gcal.Service
	limiter  *rate.Limiter
	timezone string
	logger   *zap.Logger
}

// NewGoogleCalendar loads service-account credentials from credentialsPath and
// builds an API client. qps paces outgoing requests; zero disables pacing.
func NewGoogleCalendar(ctx context.Context, credentialsPath, timezone string, qps float64, logger *zap.Logger) (*GoogleCalendar, error) {
	b, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read calendar credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, b, gcal.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("parse calendar credentials: %w", err)
	}
	service, err := gcal.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return newGoogleCalendar(service, timezone, qps, logger), nil
}

func newGoogleCalendar(service *gcal.Service, timezone string, qps float64, logger *zap.Logger) *GoogleCalendar {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if qps > 0 {
		limiter = rate.NewLimiter(rate.Limit(qps), 1)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GoogleCalendar{service: service, limiter: limiter, timezone: timezone, logger: logger}
}

func (g *GoogleCalendar) wait(ctx context.Context, op string) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return &Error{Op: op, Kind: ErrTransport, Err: err}
	}
	return nil
}

// ListBusy queries the free/busy endpoint for [start, end).
func (g *GoogleCalendar) ListBusy(ctx context.Context, calendarID string, start, end time.Time) ([]models.TimeInterval, error) {
	const op = "freebusy.query"
	if err := g.wait(ctx, op); err != nil {
		return nil, err
	}

	resp, err := g.service.Freebusy.Query(&gcal.FreeBusyRequest{
		TimeMin:  start.Format(time.RFC3339),
		TimeMax:  end.Format(time.RFC3339),
		TimeZone: g.timezone,
		Items:    []*gcal.FreeBusyRequestItem{{Id: calendarID}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, classify(op, err)
	}

	cal, ok := resp.Calendars[calendarID]
	if !ok {
		return nil, &Error{Op: op, Kind: ErrNotFound, Err: fmt.Errorf("calendar %q missing from response", calendarID)}
	}
	for _, e := range cal.Errors {
		if e.Reason == "notFound" {
			return nil, &Error{Op: op, Kind: ErrNotFound, Err: fmt.Errorf("%s: %s", e.Domain, e.Reason)}
		}
		return nil, &Error{Op: op, Kind: ErrTransport, Err: fmt.Errorf("%s: %s", e.Domain, e.Reason)}
	}

	busy := make([]models.TimeInterval, 0, len(cal.Busy))
	for _, p := range cal.Busy {
		bs, err1 := time.Parse(time.RFC3339, p.Start)
		be, err2 := time.Parse(time.RFC3339, p.End)
		if err1 != nil || err2 != nil {
			g.logger.Warn("skipping unparsable busy period", zap.String("start", p.Start), zap.String("end", p.End))
			continue
		}
		busy = append(busy, models.TimeInterval{Start: bs, End: be})
	}
	g.logger.Debug("busy periods fetched",
		zap.String("calendarID", calendarID),
		zap.Time("start", start),
		zap.Time("end", end),
		zap.Int("count", len(busy)))
	return busy, nil
}

// CreateEvent inserts a timed event and returns its id.
func (g *GoogleCalendar) CreateEvent(ctx context.Context, calendarID string, ev NewEvent) (string, error) {
	const op = "events.insert"
	if err := g.wait(ctx, op); err != nil {
		return "", err
	}
	tz := ev.Timezone
	if tz == "" {
		tz = g.timezone
	}

	created, err := g.service.Events.Insert(calendarID, &gcal.Event{
		Id:          ev.ID,
		Summary:     ev.Title,
		Description: ev.Description,
		Start:       &gcal.EventDateTime{DateTime: ev.Start.Format(time.RFC3339), TimeZone: tz},
		End:         &gcal.EventDateTime{DateTime: ev.End.Format(time.RFC3339), TimeZone: tz},
	}).Context(ctx).Do()
	if err != nil {
		return "", classify(op, err)
	}
	g.logger.Info("event created",
		zap.String("calendarID", calendarID),
		zap.String("eventID", created.Id),
		zap.String("title", ev.Title))
	return created.Id, nil
}

// ListEvents returns timed events overlapping [start, end), ordered by start.
func (g *GoogleCalendar) ListEvents(ctx context.Context, calendarID string, start, end time.Time) ([]Event, error) {
	const op = "events.list"
	if err := g.wait(ctx, op); err != nil {
		return nil, err
	}

	items, err := g.service.Events.List(calendarID).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify(op, err)
	}

	var events []Event
	for _, item := range items.Items {
		// all-day events carry Date instead of DateTime
		if item.Start == nil || item.Start.DateTime == "" || item.End == nil {
			continue
		}
		s, err1 := time.Parse(time.RFC3339, item.Start.DateTime)
		e, err2 := time.Parse(time.RFC3339, item.End.DateTime)
		if err1 != nil || err2 != nil {
			continue
		}
		events = append(events, Event{
			ID:          item.Id,
			Title:       item.Summary,
			Description: item.Description,
			Interval:    models.TimeInterval{Start: s, End: e},
			Link:        item.HtmlLink,
		})
	}
	return events, nil
}

// Ping checks that the calendar exists and the credentials can read it.
func (g *GoogleCalendar) Ping(ctx context.Context, calendarID string) error {
	const op = "calendars.get"
	if err := g.wait(ctx, op); err != nil {
		return err
	}
	if _, err := g.service.Calendars.Get(calendarID).Context(ctx).Do(); err != nil {
		return classify(op, err)
	}
	return nil
}
