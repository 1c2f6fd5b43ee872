// File: handlers/bundle.go
package handlers

import "github.com/gin-gonic/gin"

// HandlerBundle groups all endpoint handlers into one struct.
type HandlerBundle struct {
	// Conversation endpoints
	ChatHandler          gin.HandlerFunc
	GetSessionHandler    gin.HandlerFunc
	CancelSessionHandler gin.HandlerFunc

	// Direct calendar endpoints
	AvailabilityHandler gin.HandlerFunc
	EventsHandler       gin.HandlerFunc

	// Health endpoints
	LiveHandler  gin.HandlerFunc
	ReadyHandler gin.HandlerFunc
}

// NewHandlerBundle wires the handler methods into a bundle.
func NewHandlerBundle(chat *ChatHandler, cal *CalendarHandler, health *HealthHandler) *HandlerBundle {
	return &HandlerBundle{
		ChatHandler:          chat.HandleChat,
		GetSessionHandler:    chat.GetSession,
		CancelSessionHandler: chat.CancelSession,
		AvailabilityHandler:  cal.GetAvailability,
		EventsHandler:        cal.GetEvents,
		LiveHandler:          health.Live,
		ReadyHandler:         health.Ready,
	}
}
