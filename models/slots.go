package models

import "time"

// CandidateSlot is a free interval of the requested duration offered to the user.
type CandidateSlot struct {
	Interval TimeInterval `json:"interval"`
	Rank     int          `json:"rank"` // 1 is the best candidate
	Label    string       `json:"label,omitempty"`
}

// Availability is the result of one slot search. Failure is set when the
// calendar could not be queried; an empty Slots with a nil Failure means the
// window genuinely has no room.
type Availability struct {
	Slots   []CandidateSlot `json:"slots"`
	Failure *Failure        `json:"failure,omitempty"`
}

// Empty reports whether the search succeeded but found nothing.
func (a Availability) Empty() bool {
	return a.Failure == nil && len(a.Slots) == 0
}

// SlotView is the transport rendering of a candidate slot.
type SlotView struct {
	Ordinal int       `json:"ordinal"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Label   string    `json:"label"`
}
