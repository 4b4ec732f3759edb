package schedule

import (
	"context"
	"testing"
	"time"
)

func TestParse_Valid(t *testing.T) {
	schedule, err := Parse("*/5 * * * *")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	next := schedule.Next(time.Date(2026, 2, 20, 10, 2, 0, 0, time.UTC))
	want := time.Date(2026, 2, 20, 10, 5, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next=%s, want=%s", next.Format(time.RFC3339), want.Format(time.RFC3339))
	}
}

func TestParse_RejectsTimezonePrefixes(t *testing.T) {
	for _, expr := range []string{
		"CRON_TZ=America/Los_Angeles * * * * *",
		"TZ=UTC * * * * *",
	} {
		if _, err := Parse(expr); err == nil {
			t.Fatalf("Parse(%q) expected error", expr)
		}
	}
}

func TestParse_RejectsEmptyAndMalformed(t *testing.T) {
	for _, expr := range []string{"", "   ", "not a cron", "61 * * * *"} {
		if _, err := Parse(expr); err == nil {
			t.Fatalf("Parse(%q) expected error", expr)
		}
	}
}

func TestNextRun_ConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("PST", -8*3600)
	now := time.Date(2026, 2, 20, 2, 2, 0, 0, loc) // 10:02 UTC

	next, err := NextRun("0 11 * * *", now)
	if err != nil {
		t.Fatalf("NextRun error: %v", err)
	}
	want := time.Date(2026, 2, 20, 11, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next=%s, want=%s", next.Format(time.RFC3339), want.Format(time.RFC3339))
	}
}

func TestNewScheduler_InvalidCron(t *testing.T) {
	_, err := NewScheduler(SchedulerConfig{
		Cron: "bogus",
		Run:  func(context.Context) error { return nil },
	})
	if err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestNewScheduler_NilRun(t *testing.T) {
	if _, err := NewScheduler(SchedulerConfig{Cron: "* * * * *"}); err == nil {
		t.Fatal("expected error for nil run function")
	}
}

func TestScheduler_StartStop(t *testing.T) {
	s, err := NewScheduler(SchedulerConfig{
		Cron: "* * * * *",
		Run:  func(context.Context) error { return nil },
	})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	s.Start()
	s.Start() // second Start is a no-op

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	// stopping again is safe
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}
