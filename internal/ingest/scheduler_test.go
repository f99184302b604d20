package ingest

import (
	"context"
	"testing"
	"time"
)

func TestNextDailyAt(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("PST", -8*3600)
	cases := []struct {
		name string
		now  time.Time
		hour int
		want time.Time
	}{
		{"later today", time.Date(2024, 3, 4, 1, 30, 0, 0, loc), 3, time.Date(2024, 3, 4, 3, 0, 0, 0, loc)},
		{"already passed", time.Date(2024, 3, 4, 5, 0, 0, 0, loc), 3, time.Date(2024, 3, 5, 3, 0, 0, 0, loc)},
		{"exactly now", time.Date(2024, 3, 4, 3, 0, 0, 0, loc), 3, time.Date(2024, 3, 5, 3, 0, 0, 0, loc)},
		{"month end", time.Date(2024, 1, 31, 23, 0, 0, 0, loc), 0, time.Date(2024, 2, 1, 0, 0, 0, 0, loc)},
		{"other zone input", time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC), 3, time.Date(2024, 3, 5, 3, 0, 0, 0, loc)},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := nextDailyAt(tc.now, loc, tc.hour)
			if !got.Equal(tc.want) {
				t.Fatalf("nextDailyAt = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestStartDailyRejectsBadInput(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	noop := func() error { return nil }
	if StartDaily(ctx, "UTC", -1, noop) {
		t.Fatal("negative hour should disable the schedule")
	}
	if StartDaily(ctx, "UTC", 24, noop) {
		t.Fatal("hour 24 should disable the schedule")
	}
	if StartDaily(ctx, "UTC", 3, nil) {
		t.Fatal("nil reload should disable the schedule")
	}
	if !StartDaily(ctx, "Not/AZone", 3, noop) {
		t.Fatal("unknown zone should fall back to UTC and still schedule")
	}
}
