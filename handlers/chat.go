// File: handlers/chat.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"calbook/models"
	"calbook/services/session"
	"calbook/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MaxMessageLength bounds one user utterance.
const MaxMessageLength = 4000

// ChatService is the conversation surface the chat endpoints need.
type ChatService interface {
	HandleMessage(ctx context.Context, req models.ChatRequest) (models.Reply, error)
	Session(ctx context.Context, id string) (*models.Session, error)
	Cancel(ctx context.Context, id string) (models.Reply, error)
}

// ChatHandler exposes the booking conversation over HTTP.
type ChatHandler struct {
	Service ChatService
}

func NewChatHandler(svc ChatService) *ChatHandler {
	return &ChatHandler{Service: svc}
}

// SessionView is the client rendering of a stored session.
type SessionView struct {
	SessionID   string                 `json:"sessionId"`
	Phase       models.DialoguePhase   `json:"phase"`
	Timezone    string                 `json:"timezone"`
	Request     models.BookingRequest  `json:"request"`
	Slots       []models.SlotView      `json:"slots,omitempty"`
	Pending     *models.TimeInterval   `json:"pending,omitempty"`
	LastOutcome *models.BookingOutcome `json:"lastOutcome,omitempty"`
	Turns       []models.Turn          `json:"turns"`
	UpdatedAt   time.Time              `json:"updatedAt"`
}

func newSessionView(s *models.Session) SessionView {
	v := SessionView{
		SessionID:   s.ID,
		Phase:       s.Phase,
		Timezone:    s.Timezone,
		Request:     s.Request,
		Pending:     s.Pending,
		LastOutcome: s.LastOutcome,
		Turns:       s.Turns,
		UpdatedAt:   s.UpdatedAt,
	}
	for _, slot := range s.Offered {
		v.Slots = append(v.Slots, models.SlotView{Ordinal: slot.Rank, Start: slot.Interval.Start, End: slot.Interval.End, Label: slot.Label})
	}
	return v
}

// HandleChat processes one user turn: POST /api/chat.
func (h *ChatHandler) HandleChat(c *gin.Context) {
	logger := getLogger(c)

	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONErrorKind(c, http.StatusBadRequest, string(models.ErrorInvalidRequest), "Invalid input", err.Error())
		return
	}
	if len(req.Message) > MaxMessageLength {
		utils.JSONErrorKind(c, http.StatusRequestEntityTooLarge, string(models.ErrorInvalidRequest), "Message too long", "messages are limited to 4000 bytes")
		return
	}

	reply, err := h.Service.HandleMessage(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			utils.JSONError(c, http.StatusServiceUnavailable, "Request cancelled while waiting for the session", err.Error())
			return
		}
		logger.Error("chat turn failed", zap.String("sessionID", req.SessionID), zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "Failed to process message", err.Error())
		return
	}
	logger.Info("chat turn",
		zap.String("sessionID", reply.SessionID),
		zap.String("phase", string(reply.Phase)),
		zap.String("errorKind", string(reply.ErrorKind)))
	c.JSON(http.StatusOK, reply)
}

// GetSession returns the current state of a conversation.
func (h *ChatHandler) GetSession(c *gin.Context) {
	id := strings.TrimSpace(c.Param("sessionID"))
	s, err := h.Service.Session(c.Request.Context(), id)
	if session.Gone(err) {
		utils.JSONErrorKind(c, http.StatusNotFound, string(models.ErrorSessionExpired), "Session not found or expired", id)
		return
	}
	if err != nil {
		getLogger(c).Error("failed to load session", zap.String("sessionID", id), zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "Failed to load session", err.Error())
		return
	}
	c.JSON(http.StatusOK, newSessionView(s))
}

// CancelSession abandons a conversation and discards it.
func (h *ChatHandler) CancelSession(c *gin.Context) {
	id := strings.TrimSpace(c.Param("sessionID"))
	reply, err := h.Service.Cancel(c.Request.Context(), id)
	if err != nil {
		getLogger(c).Error("failed to cancel session", zap.String("sessionID", id), zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "Failed to cancel session", err.Error())
		return
	}
	if reply.ErrorKind == models.ErrorSessionExpired {
		c.JSON(http.StatusNotFound, reply)
		return
	}
	c.JSON(http.StatusOK, reply)
}
