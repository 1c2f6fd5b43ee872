package calendar

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"google.golang.org/api/googleapi"
)

var (
	ErrAuth      = errors.New("calendar: not authorized")
	ErrQuota     = errors.New("calendar: quota exceeded")
	ErrTransport = errors.New("calendar: transport failure")
	ErrNotFound  = errors.New("calendar: not found")
	// ErrDuplicate is returned when an event with the same client id exists.
	ErrDuplicate = errors.New("calendar: event already exists")
)

// Error is a classified calendar failure.
type Error struct {
	Op   string
	Kind error // one of the sentinels above
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Is makes errors.Is(err, ErrQuota) and friends work.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure may succeed on a later attempt.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrQuota)
}

// classify maps a Google API or network error onto the calendar taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Op: op, Kind: ErrTransport, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Op: op, Kind: ErrTransport, Err: err}
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusUnauthorized:
			return &Error{Op: op, Kind: ErrAuth, Err: err}
		case gerr.Code == http.StatusTooManyRequests:
			return &Error{Op: op, Kind: ErrQuota, Err: err}
		case gerr.Code == http.StatusForbidden:
			if hasReason(gerr, "rateLimitExceeded", "userRateLimitExceeded", "quotaExceeded") {
				return &Error{Op: op, Kind: ErrQuota, Err: err}
			}
			return &Error{Op: op, Kind: ErrAuth, Err: err}
		case gerr.Code == http.StatusNotFound:
			return &Error{Op: op, Kind: ErrNotFound, Err: err}
		case gerr.Code == http.StatusConflict:
			return &Error{Op: op, Kind: ErrDuplicate, Err: err}
		default:
			return &Error{Op: op, Kind: ErrTransport, Err: err}
		}
	}

	var nerr net.Error
	if errors.As(err, &nerr) {
		return &Error{Op: op, Kind: ErrTransport, Err: err}
	}
	return &Error{Op: op, Kind: ErrTransport, Err: err}
}

func hasReason(gerr *googleapi.Error, reasons ...string) bool {
	for _, item := range gerr.Errors {
		for _, r := range reasons {
			if item.Reason == r {
				return true
			}
		}
	}
	return false
}
