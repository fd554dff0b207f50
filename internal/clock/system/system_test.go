// Package system exercises the real-time clock adapter.
package system

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestClockNowUTC ensures the clock returns UTC timestamps.
func TestClockNowUTC(t *testing.T) {
	t.Parallel()

	clk := New()
	requireNotNil(t, clk)

	before := time.Now().UTC().Add(-time.Second)
	got := clk.Now()
	after := time.Now().UTC().Add(time.Second)

	if got.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %v", got.Location())
	}
	if got.Before(before) || got.After(after) {
		t.Fatalf("expected %v to be between %v and %v", got, before, after)
	}
}

// TestClockNowMonotonic checks successive timestamps are non-decreasing.
func TestClockNowMonotonic(t *testing.T) {
	t.Parallel()

	clk := New()
	first := clk.Now()
	second := clk.Now()
	if second.Before(first) {
		t.Fatalf("expected second call %v to be >= first %v", second, first)
	}
}

func requireNotNil(t *testing.T, v any) {
	t.Helper()
	if v == nil {
		t.Fatal("expected value to be non-nil")
	}
}

// TestClockSleepWaits ensures Sleep blocks for roughly the requested duration.
func TestClockSleepWaits(t *testing.T) {
	t.Parallel()

	clk := New()
	start := time.Now()
	if err := clk.Sleep(context.Background(), 20*time.Millisecond); err != nil {
		t.Fatalf("Sleep() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Fatalf("expected sleep of ~20ms, got %v", elapsed)
	}
}

// TestClockSleepCanceled ensures Sleep returns promptly when the context ends.
func TestClockSleepCanceled(t *testing.T) {
	t.Parallel()

	clk := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	err := clk.Sleep(ctx, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("sleep did not return promptly after cancel")
	}
	if err := clk.Sleep(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected zero sleep to report cancel, got %v", err)
	}
}
