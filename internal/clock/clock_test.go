package clock

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFakeSleepAdvances(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewFake(start)

	if err := f.Sleep(context.Background(), 5*time.Second); err != nil {
		t.Fatalf("Sleep failed: %v", err)
	}
	if got := f.Now().Sub(start); got != 5*time.Second {
		t.Fatalf("expected 5s elapsed, got %v", got)
	}
	if f.Slept() != 5*time.Second {
		t.Fatalf("unexpected slept total: %v", f.Slept())
	}
}

func TestFakeSleepHonorsCancel(t *testing.T) {
	f := NewFake(time.Now())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := f.Sleep(ctx, time.Second); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFakeOnSleepHook(t *testing.T) {
	f := NewFake(time.Now())
	var calls int
	f.OnSleep(func(time.Duration) { calls++ })

	_ = f.Sleep(context.Background(), time.Millisecond)
	_ = f.Sleep(context.Background(), time.Millisecond)
	if calls != 2 {
		t.Fatalf("expected 2 hook calls, got %d", calls)
	}
}

func TestRealSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (Real{}).Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
