package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"calbook/config"
	"calbook/services/booking"
	"calbook/services/calendar"
	"calbook/services/dialogue"
	"calbook/services/intelligence"
	"calbook/services/session"
	"calbook/utils"

	"go.uber.org/zap"
)

// runtime holds the assembled services shared by every command.
type runtime struct {
	Calendar calendar.Calendar
	Engine   *booking.DefaultAvailabilityEngine
	Manager  *dialogue.Manager
	Health   *utils.HealthMonitor
	closers  []func() error
}

// Close releases external clients in reverse order of creation.
func (rt *runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	return errors.Join(errs...)
}

func bookingSettings(cfg config.Config) (booking.Settings, error) {
	start, err := config.ClockOffset(cfg.WorkdayStart)
	if err != nil {
		return booking.Settings{}, fmt.Errorf("WORKDAY_START: %w", err)
	}
	end, err := config.ClockOffset(cfg.WorkdayEnd)
	if err != nil {
		return booking.Settings{}, fmt.Errorf("WORKDAY_END: %w", err)
	}
	return booking.Settings{
		WorkdayStart:    start,
		WorkdayEnd:      end,
		Granularity:     cfg.SlotGranularity,
		IncludeWeekends: cfg.IncludeWeekends,
		CallTimeout:     cfg.CalendarTimeout,
		MaxRetries:      cfg.CalendarMaxRetries,
		RetryBackoff:    cfg.CalendarRetryBackoff,
	}, nil
}

func dialogueSettings(cfg config.Config) dialogue.Settings {
	return dialogue.Settings{
		DefaultDuration: cfg.DefaultDuration,
		MaxCandidates:   cfg.MaxCandidates,
		MatchTolerance:  cfg.MatchTolerance,
		WidenDays:       cfg.WidenDays,
		DefaultTitle:    cfg.DefaultEventTitle,
	}
}

// newRuntime builds the calendar, extractor, session store and dialogue
// manager selected by cfg.
func newRuntime(ctx context.Context, cfg config.Config, logger *zap.Logger) (*runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	rt := &runtime{}
	checks := map[string]utils.HealthCheck{}

	switch cfg.CalendarBackend {
	case "memory":
		logger.Warn("using the in-memory calendar; bookings are not persisted")
		rt.Calendar = calendar.NewMemoryCalendar()
	default:
		gc, err := calendar.NewGoogleCalendar(ctx, cfg.GoogleCredentialsPath, cfg.Timezone, cfg.CalendarQPS, logger)
		if err != nil {
			return nil, err
		}
		rt.Calendar = gc
	}
	if p, ok := rt.Calendar.(calendar.Pinger); ok {
		checks["calendar"] = func(ctx context.Context) error { return p.Ping(ctx, cfg.CalendarID) }
	}

	var extractor intelligence.IntentExtractor = intelligence.NewRuleExtractor()
	if cfg.IntentExtractor == "gemini" {
		gemini, err := intelligence.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, gemini.Close)
		extractor = &intelligence.FallbackExtractor{
			Primary:   intelligence.NewLLMExtractor(gemini, logger),
			Secondary: extractor,
			Logger:    logger,
		}
	}

	var store session.Store
	switch cfg.SessionStore {
	case "redis":
		client, err := utils.GetSessionCacheClient()
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, utils.CloseSessionCache)
		rs := session.NewRedisStore(client, cfg.SessionIdleTTL, session.DefaultKeyPrefix)
		checks["redis"] = rs.Ping
		store = rs
	default:
		ms := session.NewMemoryStore(cfg.SessionIdleTTL, logger)
		ms.StartJanitor(ctx, time.Minute)
		store = ms
	}

	bs, err := bookingSettings(cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Engine = booking.NewAvailabilityEngine(rt.Calendar, bs, time.Now, logger)
	protocol := booking.NewBookingProtocol(rt.Calendar, bs, cfg.VerifyAfterWrite, logger)
	machine := dialogue.NewMachine(rt.Engine, protocol, dialogueSettings(cfg), time.Now, logger)
	rt.Manager = dialogue.NewManager(store, session.NewLocker(), extractor, machine, dialogue.ManagerConfig{
		CalendarID:      cfg.CalendarID,
		DefaultTimezone: cfg.Timezone,
		HistoryTurns:    cfg.HistoryTurns,
		ExtractTimeout:  cfg.ExtractTimeout,
	}, logger)
	rt.Health = utils.NewHealthMonitor(5*time.Second, checks)
	return rt, nil
}
