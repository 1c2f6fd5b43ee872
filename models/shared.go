package models

import "fmt"

// ErrorKind classifies everything that can go wrong in a conversation turn.
type ErrorKind string

const (
	ErrorExtractionEmpty   ErrorKind = "extraction_empty"
	ErrorMissingField      ErrorKind = "missing_field"
	ErrorNoAvailability    ErrorKind = "no_availability"
	ErrorStaleSlotConflict ErrorKind = "stale_slot_conflict"
	ErrorCalendarTransport ErrorKind = "calendar_transport"
	ErrorCalendarQuota     ErrorKind = "calendar_quota"
	ErrorCalendarAuth      ErrorKind = "calendar_auth"
	ErrorCalendarNotFound  ErrorKind = "calendar_not_found"
	ErrorSessionExpired    ErrorKind = "session_expired"
	ErrorInvalidRequest    ErrorKind = "invalid_request"
)

// Failure is a calendar-facing error translated into data. The dialogue layer
// only ever sees Failures, never the underlying transport error.
type Failure struct {
	Kind      ErrorKind `json:"kind"`
	Retryable bool      `json:"retryable"`
	Reason    string    `json:"reason"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Reason)
}
