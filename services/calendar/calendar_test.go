package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"calbook/models"

	"google.golang.org/api/googleapi"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		err       error
		want      error
		retryable bool
	}{
		{"unauthorized", &googleapi.Error{Code: http.StatusUnauthorized}, ErrAuth, false},
		{"forbidden", &googleapi.Error{Code: http.StatusForbidden, Errors: []googleapi.ErrorItem{{Reason: "forbidden"}}}, ErrAuth, false},
		{"rate limited 403", &googleapi.Error{Code: http.StatusForbidden, Errors: []googleapi.ErrorItem{{Reason: "rateLimitExceeded"}}}, ErrQuota, true},
		{"too many requests", &googleapi.Error{Code: http.StatusTooManyRequests}, ErrQuota, true},
		{"not found", &googleapi.Error{Code: http.StatusNotFound}, ErrNotFound, false},
		{"duplicate", &googleapi.Error{Code: http.StatusConflict}, ErrDuplicate, false},
		{"server error", &googleapi.Error{Code: http.StatusBadGateway}, ErrTransport, true},
		{"timeout", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), ErrTransport, true},
		{"unknown", errors.New("boom"), ErrTransport, true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := classify("op", tc.err)
			if !errors.Is(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			if Retryable(got) != tc.retryable {
				t.Fatalf("Retryable = %v, want %v", Retryable(got), tc.retryable)
			}
			var ce *Error
			if !errors.As(got, &ce) || ce.Op != "op" {
				t.Fatalf("expected *Error with op, got %#v", got)
			}
		})
	}
}

func TestMemoryCalendar(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cal := NewMemoryCalendar()
	base := time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)

	cal.Seed("primary", "standup", models.TimeInterval{Start: base, End: base.Add(30 * time.Minute)})
	id, err := cal.CreateEvent(ctx, "primary", NewEvent{ID: "abc123", Title: "review", Start: base.Add(2 * time.Hour), End: base.Add(3 * time.Hour)})
	if err != nil || id != "abc123" {
		t.Fatalf("CreateEvent = %q, %v", id, err)
	}
	if _, err := cal.CreateEvent(ctx, "primary", NewEvent{ID: "abc123", Title: "review", Start: base, End: base.Add(time.Hour)}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	busy, err := cal.ListBusy(ctx, "primary", base, base.Add(8*time.Hour))
	if err != nil {
		t.Fatalf("ListBusy: %v", err)
	}
	if len(busy) != 2 || !busy[0].Start.Equal(base) {
		t.Fatalf("unexpected busy %v", busy)
	}

	busy, _ = cal.ListBusy(ctx, "primary", base.Add(30*time.Minute), base.Add(2*time.Hour))
	if len(busy) != 0 {
		t.Fatalf("touching events must not be returned, got %v", busy)
	}
	if cal.Len("other") != 0 {
		t.Fatalf("calendars must be independent")
	}
}
