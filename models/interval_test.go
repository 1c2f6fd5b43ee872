package models

import (
	"errors"
	"math/rand"
	"testing"
	"time"
)

var day = time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func iv(h1, m1, h2, m2 int) TimeInterval {
	return TimeInterval{Start: at(h1, m1), End: at(h2, m2)}
}

func TestNewTimeInterval_RejectsEmptyAndInverted(t *testing.T) {
	t.Parallel()

	if _, err := NewTimeInterval(at(10, 0), at(10, 0)); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval for empty interval, got %v", err)
	}
	if _, err := NewTimeInterval(at(11, 0), at(10, 0)); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval for inverted interval, got %v", err)
	}
	got, err := NewTimeInterval(at(9, 0), at(9, 30))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Duration() != 30*time.Minute {
		t.Fatalf("expected 30m, got %s", got.Duration())
	}
}

func TestTimeInterval_Overlaps(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		a, b TimeInterval
		want bool
	}{
		{"disjoint", iv(9, 0, 10, 0), iv(11, 0, 12, 0), false},
		{"touching", iv(9, 0, 10, 0), iv(10, 0, 11, 0), false},
		{"partial", iv(9, 0, 10, 30), iv(10, 0, 11, 0), true},
		{"contained", iv(9, 0, 12, 0), iv(10, 0, 11, 0), true},
		{"identical", iv(9, 0, 10, 0), iv(9, 0, 10, 0), true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.a.Overlaps(tc.b); got != tc.want {
				t.Fatalf("a.Overlaps(b) = %v, want %v", got, tc.want)
			}
			if got := tc.b.Overlaps(tc.a); got != tc.want {
				t.Fatalf("b.Overlaps(a) = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMergeIntervals(t *testing.T) {
	t.Parallel()

	raw := []TimeInterval{
		iv(13, 0, 14, 0),
		iv(9, 0, 10, 0),
		iv(9, 30, 10, 30),
		iv(10, 30, 11, 0), // touches the previous one
		iv(15, 0, 15, 0),  // invalid, dropped
		iv(13, 15, 13, 45),
	}
	got := MergeIntervals(raw)
	want := []TimeInterval{iv(9, 0, 11, 0), iv(13, 0, 14, 0)}
	if len(got) != len(want) {
		t.Fatalf("expected %d intervals, got %v", len(want), got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("interval %d: got %s, want %s", i, got[i], want[i])
		}
	}
	if !raw[0].Equal(iv(13, 0, 14, 0)) {
		t.Fatalf("input was modified: %v", raw)
	}
}

func TestSubtract(t *testing.T) {
	t.Parallel()

	window := iv(9, 0, 17, 0)
	cases := []struct {
		name string
		busy []TimeInterval
		want []TimeInterval
	}{
		{"no busy", nil, []TimeInterval{window}},
		{"middle", []TimeInterval{iv(10, 0, 10, 30)}, []TimeInterval{iv(9, 0, 10, 0), iv(10, 30, 17, 0)}},
		{"straddles start", []TimeInterval{iv(8, 0, 9, 30)}, []TimeInterval{iv(9, 30, 17, 0)}},
		{"straddles end", []TimeInterval{iv(16, 0, 18, 0)}, []TimeInterval{iv(9, 0, 16, 0)}},
		{"entirely before", []TimeInterval{iv(6, 0, 8, 0)}, []TimeInterval{window}},
		{"entirely after", []TimeInterval{iv(18, 0, 19, 0)}, []TimeInterval{window}},
		{"covers window", []TimeInterval{iv(8, 0, 18, 0)}, nil},
		{"several", []TimeInterval{iv(9, 0, 9, 30), iv(12, 0, 13, 0), iv(16, 30, 17, 0)},
			[]TimeInterval{iv(9, 30, 12, 0), iv(13, 0, 16, 30)}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := Subtract(window, NormalizeBusy(tc.busy))
			if len(got) != len(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			for i := range tc.want {
				if !got[i].Equal(tc.want[i]) {
					t.Fatalf("interval %d: got %s, want %s", i, got[i], tc.want[i])
				}
			}
		})
	}
}

// Free intervals plus busy intervals clipped to the window must tile the
// window exactly, with nothing overlapping.
func TestSubtract_ReconstructsWindow(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	window := iv(9, 0, 17, 0)
	for round := 0; round < 200; round++ {
		var raw []TimeInterval
		for n := rng.Intn(8); n > 0; n-- {
			start := at(6, 0).Add(time.Duration(rng.Intn(14*4)) * 15 * time.Minute)
			end := start.Add(time.Duration(1+rng.Intn(8)) * 15 * time.Minute)
			raw = append(raw, TimeInterval{Start: start, End: end})
		}
		busy := NormalizeBusy(raw)
		free := Subtract(window, busy)

		var pieces []TimeInterval
		pieces = append(pieces, free...)
		for _, b := range busy {
			if c, ok := b.Clip(window); ok {
				pieces = append(pieces, c)
			}
		}
		for i := range free {
			for _, b := range busy {
				if free[i].Overlaps(b) {
					t.Fatalf("round %d: free %s overlaps busy %s", round, free[i], b)
				}
			}
			for j := i + 1; j < len(free); j++ {
				if free[i].Overlaps(free[j]) {
					t.Fatalf("round %d: free intervals overlap: %s %s", round, free[i], free[j])
				}
			}
		}

		var total time.Duration
		for _, p := range pieces {
			total += p.Duration()
		}
		if total != window.Duration() {
			t.Fatalf("round %d: pieces cover %s, window is %s (busy=%v free=%v)", round, total, window.Duration(), busy, free)
		}
		merged := MergeIntervals(pieces)
		if len(merged) != 1 || !merged[0].Equal(window) {
			t.Fatalf("round %d: pieces do not reconstruct window: %v", round, merged)
		}
	}
}

func TestBusyIntervalSet_FirstOverlap(t *testing.T) {
	t.Parallel()

	busy := NormalizeBusy([]TimeInterval{iv(10, 0, 11, 0), iv(14, 0, 15, 0)})
	if got, ok := busy.FirstOverlap(iv(14, 30, 15, 30)); !ok || !got.Equal(iv(14, 0, 15, 0)) {
		t.Fatalf("expected 14:00-15:00 overlap, got %v %v", got, ok)
	}
	if _, ok := busy.FirstOverlap(iv(11, 0, 14, 0)); ok {
		t.Fatalf("touching intervals must not be reported as overlap")
	}
}
