package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"calbook/models"
	"calbook/services/booking"
	"calbook/services/calendar"
	"calbook/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxSearchDays bounds one direct availability query.
const maxSearchDays = 31

// CalendarHandler answers direct calendar questions outside a conversation.
type CalendarHandler struct {
	Engine          booking.AvailabilityEngine
	Events          calendar.EventLister // nil when the backend cannot list events
	CalendarID      string
	Timezone        string
	DefaultDuration time.Duration
	Limit           int
}

func NewCalendarHandler(engine booking.AvailabilityEngine, events calendar.EventLister, calendarID, timezone string, defaultDuration time.Duration, limit int) *CalendarHandler {
	return &CalendarHandler{
		Engine:          engine,
		Events:          events,
		CalendarID:      calendarID,
		Timezone:        timezone,
		DefaultDuration: defaultDuration,
		Limit:           limit,
	}
}

// AvailabilityResponse lists free slots for a date range.
type AvailabilityResponse struct {
	From     string            `json:"from"`
	To       string            `json:"to"`
	Duration int               `json:"durationMinutes"`
	Slots    []models.SlotView `json:"slots"`
}

// EventsResponse lists the events on one day.
type EventsResponse struct {
	Date   string           `json:"date"`
	Events []calendar.Event `json:"events"`
}

func (h *CalendarHandler) location(c *gin.Context) (*time.Location, error) {
	tz := strings.TrimSpace(c.Query("tz"))
	if tz == "" {
		tz = h.Timezone
	}
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q", tz)
	}
	return loc, nil
}

// parseDuration accepts plain minutes ("45") or a Go duration ("1h30m").
func parseDuration(raw string, fallback time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	if n, err := strconv.Atoi(raw); err == nil {
		if n <= 0 {
			return 0, errors.New("duration must be positive")
		}
		return time.Duration(n) * time.Minute, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	return d, nil
}

// GetAvailability serves GET /api/availability?date=&to=&duration=&period=&limit=.
func (h *CalendarHandler) GetAvailability(c *gin.Context) {
	loc, err := h.location(c)
	if err != nil {
		utils.JSONErrorKind(c, http.StatusBadRequest, string(models.ErrorInvalidRequest), "Invalid timezone", err.Error())
		return
	}
	from, err := time.ParseInLocation(models.DateLayout, c.Query("date"), loc)
	if err != nil {
		utils.JSONErrorKind(c, http.StatusBadRequest, string(models.ErrorInvalidRequest), "Invalid date", "date must be YYYY-MM-DD")
		return
	}
	last := from
	if raw := c.Query("to"); raw != "" {
		if last, err = time.ParseInLocation(models.DateLayout, raw, loc); err != nil || last.Before(from) {
			utils.JSONErrorKind(c, http.StatusBadRequest, string(models.ErrorInvalidRequest), "Invalid date range", "to must be YYYY-MM-DD on or after date")
			return
		}
	}
	to := last.AddDate(0, 0, 1)
	if to.Sub(from) > maxSearchDays*24*time.Hour+time.Hour {
		utils.JSONErrorKind(c, http.StatusBadRequest, string(models.ErrorInvalidRequest), "Date range too long", fmt.Sprintf("at most %d days", maxSearchDays))
		return
	}
	duration, err := parseDuration(c.Query("duration"), h.DefaultDuration)
	if err != nil {
		utils.JSONErrorKind(c, http.StatusBadRequest, string(models.ErrorInvalidRequest), "Invalid duration", err.Error())
		return
	}
	period := models.DayPeriod(strings.ToLower(strings.TrimSpace(c.Query("period"))))
	if _, _, ok := period.Bounds(); period != models.PeriodNone && !ok {
		utils.JSONErrorKind(c, http.StatusBadRequest, string(models.ErrorInvalidRequest), "Invalid period", "period must be morning, afternoon or evening")
		return
	}
	limit := h.Limit
	if raw := c.Query("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 0 {
			utils.JSONErrorKind(c, http.StatusBadRequest, string(models.ErrorInvalidRequest), "Invalid limit", raw)
			return
		}
	}

	avail := h.Engine.FindSlots(c.Request.Context(), booking.SlotQuery{
		CalendarID: h.CalendarID,
		Location:   loc,
		From:       from,
		To:         to,
		Duration:   duration,
		Period:     period,
		Limit:      limit,
	})
	if f := avail.Failure; f != nil {
		getLogger(c).Warn("availability query failed", zap.String("kind", string(f.Kind)), zap.String("reason", f.Reason))
		utils.JSONErrorKind(c, failureStatus(f.Kind), string(f.Kind), "Calendar unavailable", f.Reason)
		return
	}

	resp := AvailabilityResponse{
		From:     from.Format(models.DateLayout),
		To:       last.Format(models.DateLayout),
		Duration: int(duration.Minutes()),
		Slots:    []models.SlotView{},
	}
	for _, s := range avail.Slots {
		resp.Slots = append(resp.Slots, models.SlotView{Ordinal: s.Rank, Start: s.Interval.Start, End: s.Interval.End, Label: s.Label})
	}
	c.JSON(http.StatusOK, resp)
}

// GetEvents serves GET /api/events?date=.
func (h *CalendarHandler) GetEvents(c *gin.Context) {
	if h.Events == nil {
		utils.JSONError(c, http.StatusNotImplemented, "Listing events is not supported by this calendar", "")
		return
	}
	loc, err := h.location(c)
	if err != nil {
		utils.JSONErrorKind(c, http.StatusBadRequest, string(models.ErrorInvalidRequest), "Invalid timezone", err.Error())
		return
	}
	day, err := time.ParseInLocation(models.DateLayout, c.Query("date"), loc)
	if err != nil {
		utils.JSONErrorKind(c, http.StatusBadRequest, string(models.ErrorInvalidRequest), "Invalid date", "date must be YYYY-MM-DD")
		return
	}

	events, err := h.Events.ListEvents(c.Request.Context(), h.CalendarID, day, day.AddDate(0, 0, 1))
	if err != nil {
		kind := calendarErrorKind(err)
		getLogger(c).Warn("listing events failed", zap.String("kind", string(kind)), zap.Error(err))
		utils.JSONErrorKind(c, failureStatus(kind), string(kind), "Calendar unavailable", err.Error())
		return
	}
	if events == nil {
		events = []calendar.Event{}
	}
	c.JSON(http.StatusOK, EventsResponse{Date: day.Format(models.DateLayout), Events: events})
}

func calendarErrorKind(err error) models.ErrorKind {
	switch {
	case errors.Is(err, calendar.ErrAuth):
		return models.ErrorCalendarAuth
	case errors.Is(err, calendar.ErrNotFound):
		return models.ErrorCalendarNotFound
	case errors.Is(err, calendar.ErrQuota):
		return models.ErrorCalendarQuota
	default:
		return models.ErrorCalendarTransport
	}
}

func failureStatus(kind models.ErrorKind) int {
	switch kind {
	case models.ErrorInvalidRequest:
		return http.StatusBadRequest
	case models.ErrorCalendarNotFound:
		return http.StatusNotFound
	case models.ErrorCalendarQuota:
		return http.StatusTooManyRequests
	case models.ErrorCalendarAuth:
		return http.StatusBadGateway
	default:
		return http.StatusServiceUnavailable
	}
}
