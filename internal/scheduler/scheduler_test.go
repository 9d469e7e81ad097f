package scheduler

import (
	"context"
	"testing"
	"time"
)

func waitFire(t *testing.T, ch <-chan time.Time) time.Time {
	t.Helper()
	select {
	case now := <-ch:
		return now
	case <-time.After(2 * time.Second):
		t.Fatal("job did not fire")
		return time.Time{}
	}
}

func assertQuiet(t *testing.T, ch <-chan time.Time) {
	t.Helper()
	select {
	case <-ch:
		t.Fatal("job fired unexpectedly")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestScheduler_FiresAtHour(t *testing.T) {
	fired := make(chan time.Time, 1)
	s := New(time.Minute)
	s.Add(Job{
		Name:    "daily",
		Trigger: Trigger{Hour: 0},
		Run: func(_ context.Context, now time.Time) error {
			fired <- now
			return nil
		},
	})

	midnight := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	s.Tick(context.Background(), midnight)

	got := waitFire(t, fired)
	if !got.Equal(midnight) {
		t.Errorf("fired with now = %v, want %v", got, midnight)
	}
}

func TestScheduler_WrongHourStaysQuiet(t *testing.T) {
	fired := make(chan time.Time, 1)
	s := New(time.Minute)
	s.Add(Job{
		Name:    "daily",
		Trigger: Trigger{Hour: 0},
		Run: func(_ context.Context, now time.Time) error {
			fired <- now
			return nil
		},
	})

	s.Tick(context.Background(), time.Date(2024, 3, 15, 13, 0, 0, 0, time.UTC))
	assertQuiet(t, fired)
}

func TestScheduler_FiresOncePerDay(t *testing.T) {
	fired := make(chan time.Time, 2)
	s := New(time.Minute)
	s.Add(Job{
		Name:    "daily",
		Trigger: Trigger{Hour: 0},
		Run: func(_ context.Context, now time.Time) error {
			fired <- now
			return nil
		},
	})

	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	s.Tick(context.Background(), day)
	waitFire(t, fired)

	// Later minutes within the same hour must not refire.
	s.Tick(context.Background(), day.Add(1*time.Minute))
	s.Tick(context.Background(), day.Add(30*time.Minute))
	assertQuiet(t, fired)

	// The next day fires again.
	s.Tick(context.Background(), day.AddDate(0, 0, 1))
	waitFire(t, fired)
}

func TestScheduler_WeekdayTrigger(t *testing.T) {
	fired := make(chan time.Time, 1)
	monday := time.Monday
	s := New(time.Minute)
	s.Add(Job{
		Name:    "weekly",
		Trigger: Trigger{Weekday: &monday, Hour: 9},
		Run: func(_ context.Context, now time.Time) error {
			fired <- now
			return nil
		},
	})

	// 2024-03-17 is a Sunday, 2024-03-18 a Monday.
	s.Tick(context.Background(), time.Date(2024, 3, 17, 9, 0, 0, 0, time.UTC))
	assertQuiet(t, fired)

	s.Tick(context.Background(), time.Date(2024, 3, 18, 9, 0, 0, 0, time.UTC))
	waitFire(t, fired)
}

func TestScheduler_SkipsOverlappingRun(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	fires := make(chan time.Time, 2)

	s := New(time.Minute)
	s.Add(Job{
		Name:    "slow",
		Trigger: Trigger{Hour: 0},
		Run: func(_ context.Context, now time.Time) error {
			fires <- now
			close(started)
			<-release
			return nil
		},
	})

	day1 := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	s.Tick(context.Background(), day1)
	<-started

	// Next day's trigger arrives while the first run is still going.
	s.Tick(context.Background(), day1.AddDate(0, 0, 1))
	<-fires
	assertQuiet(t, fires)

	close(release)
}

func TestScheduler_RunTimeout(t *testing.T) {
	done := make(chan error, 1)
	s := New(10 * time.Millisecond)
	s.Add(Job{
		Name:    "stuck",
		Trigger: Trigger{Hour: 0},
		Run: func(ctx context.Context, _ time.Time) error {
			<-ctx.Done()
			done <- ctx.Err()
			return ctx.Err()
		},
	})

	s.Tick(context.Background(), time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))

	select {
	case err := <-done:
		if err != context.DeadlineExceeded {
			t.Errorf("run context ended with %v, want deadline exceeded", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run context never expired")
	}
}
