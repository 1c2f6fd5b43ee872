package models

// OutcomeKind tags the BookingOutcome variant.
type OutcomeKind string

const (
	OutcomeBooked   OutcomeKind = "booked"
	OutcomeConflict OutcomeKind = "conflict"
	OutcomeRejected OutcomeKind = "rejected"
)

// BookingOutcome is produced once per booking attempt.
//
//	Booked:   EventID, Interval (and Overlaps found after the write, if any)
//	Conflict: Interval (the target), ConflictingInterval
//	Rejected: Reason, ErrorKind, Retryable
type BookingOutcome struct {
	Kind                OutcomeKind    `json:"kind"`
	EventID             string         `json:"eventId,omitempty"`
	Interval            TimeInterval   `json:"interval"`
	ConflictingInterval *TimeInterval  `json:"conflictingInterval,omitempty"`
	Overlaps            []TimeInterval `json:"overlaps,omitempty"`
	Reason              string         `json:"reason,omitempty"`
	ErrorKind           ErrorKind      `json:"errorKind,omitempty"`
	Retryable           bool           `json:"retryable,omitempty"`
}

// Booked builds a successful outcome.
func Booked(eventID string, iv TimeInterval) BookingOutcome {
	return BookingOutcome{Kind: OutcomeBooked, EventID: eventID, Interval: iv}
}

// Conflict builds an outcome for a slot that is no longer free.
func Conflict(target, conflicting TimeInterval) BookingOutcome {
	return BookingOutcome{Kind: OutcomeConflict, Interval: target, ConflictingInterval: &conflicting, ErrorKind: ErrorStaleSlotConflict}
}

// Rejected builds an outcome for a failed write.
func Rejected(target TimeInterval, f Failure) BookingOutcome {
	return BookingOutcome{Kind: OutcomeRejected, Interval: target, Reason: f.Reason, ErrorKind: f.Kind, Retryable: f.Retryable}
}

// Reply is the system's answer to one user turn.
type Reply struct {
	SessionID string          `json:"sessionId"`
	Phase     DialoguePhase   `json:"phase"`
	Message   string          `json:"message"`
	Missing   []Field         `json:"missing,omitempty"`
	Slots     []SlotView      `json:"slots,omitempty"`
	Pending   *TimeInterval   `json:"pending,omitempty"`
	Outcome   *BookingOutcome `json:"outcome,omitempty"`
	ErrorKind ErrorKind       `json:"errorKind,omitempty"`
}

// ChatRequest is the transport payload for one user turn.
type ChatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
	Timezone  string `json:"timezone,omitempty"`
}
