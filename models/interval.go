package models

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrInvalidInterval is returned when an interval does not satisfy start < end.
var ErrInvalidInterval = errors.New("interval start must be before end")

// TimeInterval is a half-open [Start, End) span of time.
type TimeInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewTimeInterval builds an interval and enforces start < end.
func NewTimeInterval(start, end time.Time) (TimeInterval, error) {
	if !start.Before(end) {
		return TimeInterval{}, fmt.Errorf("%w: %s - %s", ErrInvalidInterval, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return TimeInterval{Start: start, End: end}, nil
}

// Duration returns the length of the interval.
func (i TimeInterval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// IsZero reports whether the interval was never set.
func (i TimeInterval) IsZero() bool {
	return i.Start.IsZero() && i.End.IsZero()
}

// Valid reports whether start < end.
func (i TimeInterval) Valid() bool {
	return i.Start.Before(i.End)
}

// Overlaps reports whether the two intervals share any instant.
// Touching intervals (one ends exactly where the other starts) do not overlap.
func (i TimeInterval) Overlaps(o TimeInterval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Contains reports whether o lies entirely within i.
func (i TimeInterval) Contains(o TimeInterval) bool {
	return !o.Start.Before(i.Start) && !o.End.After(i.End)
}

// Clip returns the part of i inside window. ok is false when nothing remains.
func (i TimeInterval) Clip(window TimeInterval) (TimeInterval, bool) {
	start := i.Start
	if window.Start.After(start) {
		start = window.Start
	}
	end := i.End
	if window.End.Before(end) {
		end = window.End
	}
	if !start.Before(end) {
		return TimeInterval{}, false
	}
	return TimeInterval{Start: start, End: end}, true
}

// In converts both ends to loc.
func (i TimeInterval) In(loc *time.Location) TimeInterval {
	return TimeInterval{Start: i.Start.In(loc), End: i.End.In(loc)}
}

// Equal compares instants, ignoring location.
func (i TimeInterval) Equal(o TimeInterval) bool {
	return i.Start.Equal(o.Start) && i.End.Equal(o.End)
}

func (i TimeInterval) String() string {
	return fmt.Sprintf("%s-%s", i.Start.Format("2006-01-02 15:04"), i.End.Format("15:04"))
}

// BusyIntervalSet is a sorted set of pairwise non-overlapping intervals.
// Build it with NormalizeBusy; raw calendar data may overlap or touch.
type BusyIntervalSet []TimeInterval

// MergeIntervals returns the minimal set of non-overlapping intervals covering
// the input, sorted by start. Touching and overlapping intervals are merged and
// invalid intervals are dropped. The input is not modified.
func MergeIntervals(in []TimeInterval) []TimeInterval {
	valid := make([]TimeInterval, 0, len(in))
	for _, iv := range in {
		if iv.Valid() {
			valid = append(valid, iv)
		}
	}
	if len(valid) == 0 {
		return nil
	}
	sort.Slice(valid, func(a, b int) bool {
		if valid[a].Start.Equal(valid[b].Start) {
			return valid[a].End.Before(valid[b].End)
		}
		return valid[a].Start.Before(valid[b].Start)
	})

	merged := []TimeInterval{valid[0]}
	for _, iv := range valid[1:] {
		last := &merged[len(merged)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// NormalizeBusy merges raw busy intervals into a BusyIntervalSet.
func NormalizeBusy(raw ...[]TimeInterval) BusyIntervalSet {
	var all []TimeInterval
	for _, r := range raw {
		all = append(all, r...)
	}
	return BusyIntervalSet(MergeIntervals(all))
}

// FirstOverlap returns the first busy interval overlapping target.
func (b BusyIntervalSet) FirstOverlap(target TimeInterval) (TimeInterval, bool) {
	for _, iv := range b {
		if iv.Overlaps(target) {
			return iv, true
		}
		if !iv.Start.Before(target.End) {
			break
		}
	}
	return TimeInterval{}, false
}

// Subtract returns the free intervals of window not covered by busy, sorted by
// start and clipped to the window. busy must be normalized.
func Subtract(window TimeInterval, busy BusyIntervalSet) []TimeInterval {
	if !window.Valid() {
		return nil
	}
	var free []TimeInterval
	cursor := window.Start
	for _, b := range busy {
		if !b.End.After(window.Start) {
			continue
		}
		if !b.Start.Before(window.End) {
			break
		}
		if b.Start.After(cursor) {
			free = append(free, TimeInterval{Start: cursor, End: b.Start})
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
		if !cursor.Before(window.End) {
			return free
		}
	}
	if cursor.Before(window.End) {
		free = append(free, TimeInterval{Start: cursor, End: window.End})
	}
	return free
}

// SubtractAll applies Subtract to each window and concatenates the results.
func SubtractAll(windows []TimeInterval, busy BusyIntervalSet) []TimeInterval {
	var free []TimeInterval
	for _, w := range windows {
		free = append(free, Subtract(w, busy)...)
	}
	return free
}
