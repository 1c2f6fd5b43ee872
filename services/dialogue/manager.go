// File: services/dialogue/manager.go
package dialogue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"calbook/models"
	"calbook/services/intelligence"
	"calbook/services/session"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ManagerConfig holds per-deployment session defaults.
type ManagerConfig struct {
	CalendarID      string
	DefaultTimezone string
	HistoryTurns    int           // turns handed to the extractor
	ExtractTimeout  time.Duration // bound on one extractor call
}

// Manager runs conversation turns: it serializes turns per session, loads and
// saves the session and feeds sanitized intents to the Machine.
type Manager struct {
	store     session.Store
	locker    *session.Locker
	extractor intelligence.IntentExtractor
	machine   *Machine
	cfg       ManagerConfig
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

func NewManager(store session.Store, locker *session.Locker, extractor intelligence.IntentExtractor, machine *Machine, cfg ManagerConfig, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = session.NewLocker()
	}
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = 10
	}
	return &Manager{
		store:     store,
		locker:    locker,
		extractor: extractor,
		machine:   machine,
		cfg:       cfg,
		logger:    logger,
		now:       machine.Now,
		newID:     uuid.NewString,
	}
}

// HandleMessage processes one user turn. An empty session id starts a new
// session; an unknown or idle one is reported as expired.
func (m *Manager) HandleMessage(ctx context.Context, req models.ChatRequest) (models.Reply, error) {
	text := strings.TrimSpace(req.Message)
	id := strings.TrimSpace(req.SessionID)
	isNew := id == ""
	if isNew && text == "" {
		// nothing is stored, so no id is handed out
		return models.Reply{Phase: models.PhaseCollecting, Message: msgEmptyMessage, ErrorKind: models.ErrorInvalidRequest}, nil
	}
	if isNew {
		id = m.newID()
	}

	unlock, err := m.locker.Lock(ctx, id)
	if err != nil {
		return models.Reply{}, fmt.Errorf("wait for session %s: %w", id, err)
	}
	defer unlock()

	s, err := m.load(ctx, id, isNew, req.Timezone)
	if session.Gone(err) {
		m.logger.Info("turn for unknown or expired session", zap.String("sessionID", id))
		return expiredReply(id), nil
	}
	if err != nil {
		return models.Reply{}, fmt.Errorf("load session %s: %w", id, err)
	}
	if text == "" {
		return models.Reply{SessionID: id, Phase: s.Phase, Message: msgEmptyMessage, ErrorKind: models.ErrorInvalidRequest}, nil
	}

	// calendar writes are never cancelled once issued; every call below
	// carries its own timeout
	ctx = context.WithoutCancel(ctx)

	in := m.extract(ctx, s, text)
	s.AddTurn("user", text, m.now())
	reply := m.machine.Step(ctx, s, in)
	s.AddTurn("assistant", reply.Message, m.now())

	if err := m.store.Save(ctx, s); err != nil {
		m.logger.Error("failed to save session", zap.String("sessionID", id), zap.Error(err))
	}
	return reply, nil
}

// Session returns a copy of the stored session.
func (m *Manager) Session(ctx context.Context, id string) (*models.Session, error) {
	return m.store.Get(ctx, id)
}

// Cancel abandons whatever the session was doing and discards it.
func (m *Manager) Cancel(ctx context.Context, id string) (models.Reply, error) {
	unlock, err := m.locker.Lock(ctx, id)
	if err != nil {
		return models.Reply{}, err
	}
	defer unlock()

	s, err := m.store.Get(ctx, id)
	if session.Gone(err) {
		return expiredReply(id), nil
	}
	if err != nil {
		return models.Reply{}, err
	}
	reply := m.machine.Step(ctx, s, models.StructuredIntent{Signal: models.SignalCancel})
	if err := m.store.Delete(ctx, id); err != nil {
		return reply, fmt.Errorf("delete session %s: %w", id, err)
	}
	return reply, nil
}

func (m *Manager) load(ctx context.Context, id string, isNew bool, tz string) (*models.Session, error) {
	if !isNew {
		return m.store.Get(ctx, id)
	}
	now := m.now()
	return &models.Session{
		ID:         id,
		CalendarID: m.cfg.CalendarID,
		Timezone:   m.timezone(tz),
		Phase:      models.PhaseCollecting,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// timezone accepts the client's zone when it resolves, else the default.
func (m *Manager) timezone(requested string) string {
	if requested != "" {
		if _, err := time.LoadLocation(requested); err == nil {
			return requested
		}
		m.logger.Debug("ignoring unknown timezone", zap.String("timezone", requested))
	}
	if m.cfg.DefaultTimezone != "" {
		return m.cfg.DefaultTimezone
	}
	return "UTC"
}

// extract never fails: extractor errors degrade to an empty intent so the
// machine re-prompts.
func (m *Manager) extract(ctx context.Context, s *models.Session, text string) models.StructuredIntent {
	sc := models.SessionContext{
		Now:      m.now(),
		Timezone: s.Timezone,
		Phase:    s.Phase,
		Request:  s.Request,
		Offered:  s.Offered,
		Pending:  s.Pending,
		History:  s.RecentTurns(m.cfg.HistoryTurns),
	}
	if m.cfg.ExtractTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.ExtractTimeout)
		defer cancel()
	}
	raw, err := m.extractor.Extract(ctx, text, sc)
	if err != nil {
		m.logger.Warn("intent extraction failed", zap.String("sessionID", s.ID), zap.Error(err))
		return models.StructuredIntent{}
	}
	in, dropped := raw.Sanitize()
	if len(dropped) > 0 {
		m.logger.Debug("dropped malformed intent fields", zap.String("sessionID", s.ID), zap.Strings("fields", dropped))
	}
	return in
}

func expiredReply(id string) models.Reply {
	return models.Reply{
		SessionID: id,
		Phase:     models.PhaseDone,
		Message:   msgSessionExpired,
		ErrorKind: models.ErrorSessionExpired,
	}
}
