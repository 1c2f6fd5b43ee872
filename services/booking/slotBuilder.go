package booking

import (
	"fmt"
	"sort"
	"time"

	"calbook/models"
)

// BuildCandidateSlots slices free intervals into duration-length slots whose
// starts sit on granularity boundaries counted from local midnight.
func BuildCandidateSlots(free []models.TimeInterval, duration, granularity time.Duration, loc *time.Location) []models.CandidateSlot {
	if duration <= 0 || granularity <= 0 {
		return nil
	}
	var slots []models.CandidateSlot
	for _, f := range free {
		for start := alignUp(f.Start.In(loc), granularity, loc); !start.Add(duration).After(f.End); start = start.Add(granularity) {
			iv := models.TimeInterval{Start: start, End: start.Add(duration)}
			slots = append(slots, models.CandidateSlot{Interval: iv, Label: SlotLabel(iv, loc)})
		}
	}
	return slots
}

func alignUp(t time.Time, g time.Duration, loc *time.Location) time.Time {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	if rem := t.Sub(midnight) % g; rem != 0 {
		return t.Add(g - rem)
	}
	return t
}

// RankSlots orders slots by distance to the preference (earlier start breaks
// ties), or by start when there is none, then keeps the first limit slots.
func RankSlots(slots []models.CandidateSlot, preference *time.Time, limit int) []models.CandidateSlot {
	ranked := make([]models.CandidateSlot, len(slots))
	copy(ranked, slots)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i].Interval.Start, ranked[j].Interval.Start
		if preference != nil {
			da, db := absDuration(a.Sub(*preference)), absDuration(b.Sub(*preference))
			if da != db {
				return da < db
			}
		}
		return a.Before(b)
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// SlotLabel renders a slot like "Tue Mar 11 14:00-15:00".
func SlotLabel(iv models.TimeInterval, loc *time.Location) string {
	s, e := iv.Start.In(loc), iv.End.In(loc)
	return fmt.Sprintf("%s-%s", s.Format("Mon Jan 2 15:04"), e.Format("15:04"))
}
