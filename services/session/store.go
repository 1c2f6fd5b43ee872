// File: services/session/store.go
package session

import (
	"context"
	"errors"

	"calbook/models"
)

var (
	// ErrSessionNotFound is returned for ids the store never saw.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired is returned for sessions idle past the TTL.
	ErrSessionExpired = errors.New("session expired")
)

// Store persists sessions between turns. Implementations must return copies
// so callers never share a *models.Session across goroutines.
type Store interface {
	Get(ctx context.Context, id string) (*models.Session, error)
	Save(ctx context.Context, s *models.Session) error
	Delete(ctx context.Context, id string) error
}

// Gone reports whether err means the session can no longer be resumed.
func Gone(err error) bool {
	return errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrSessionExpired)
}
