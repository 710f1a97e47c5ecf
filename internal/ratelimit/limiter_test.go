package ratelimit

import (
	"errors"
	"testing"
	"time"
)

// fakeClock lets tests drive the limiter's view of time.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestLimiter() (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	l := New()
	l.now = func() time.Time { return clock.now }
	return l, clock
}

func TestAllow_MinuteBurst(t *testing.T) {
	l, _ := newTestLimiter()

	for i := 0; i < 10; i++ {
		if err := l.Allow("s1", KindQuery); err != nil {
			t.Fatalf("query %d rejected: %v", i+1, err)
		}
	}

	err := l.Allow("s1", KindQuery)
	var rlErr *RateLimitError
	if !errors.As(err, &rlErr) {
		t.Fatalf("11th query error = %v, want *RateLimitError", err)
	}
	if rlErr.Kind != KindQuery {
		t.Errorf("Kind = %v, want KindQuery", rlErr.Kind)
	}
	if rlErr.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want positive", rlErr.RetryAfter)
	}
}

func TestAllow_RecoversAfterWait(t *testing.T) {
	l, clock := newTestLimiter()

	for i := 0; i < 10; i++ {
		if err := l.Allow("s1", KindQuery); err != nil {
			t.Fatalf("query %d rejected: %v", i+1, err)
		}
	}
	if err := l.Allow("s1", KindQuery); err == nil {
		t.Fatal("expected rejection at burst limit")
	}

	clock.advance(time.Minute)
	if err := l.Allow("s1", KindQuery); err != nil {
		t.Fatalf("query after a minute rejected: %v", err)
	}
}

func TestAllow_HourlyWindow(t *testing.T) {
	l, clock := newTestLimiter()

	// Spaced out enough that the per-minute bucket never intervenes.
	for i := 0; i < 100; i++ {
		if err := l.Allow("s1", KindQuery); err != nil {
			t.Fatalf("query %d rejected: %v", i+1, err)
		}
		clock.advance(7 * time.Second)
	}

	err := l.Allow("s1", KindQuery)
	var rlErr *RateLimitError
	if !errors.As(err, &rlErr) {
		t.Fatalf("101st query error = %v, want *RateLimitError", err)
	}
}

func TestAllow_ToolCallQuotaSeparate(t *testing.T) {
	l, _ := newTestLimiter()

	for i := 0; i < 5; i++ {
		if err := l.Allow("s1", KindToolCall); err != nil {
			t.Fatalf("tool call %d rejected: %v", i+1, err)
		}
	}
	if err := l.Allow("s1", KindToolCall); err == nil {
		t.Fatal("6th tool call should be rejected")
	}

	// Query quota unaffected by exhausted tool quota.
	if err := l.Allow("s1", KindQuery); err != nil {
		t.Fatalf("query rejected after tool exhaustion: %v", err)
	}
}

func TestAllow_SessionsIndependent(t *testing.T) {
	l, _ := newTestLimiter()

	for i := 0; i < 10; i++ {
		if err := l.Allow("s1", KindQuery); err != nil {
			t.Fatalf("s1 query %d rejected: %v", i+1, err)
		}
	}
	if err := l.Allow("s1", KindQuery); err == nil {
		t.Fatal("s1 should be exhausted")
	}
	if err := l.Allow("s2", KindQuery); err != nil {
		t.Fatalf("s2 first query rejected: %v", err)
	}
}

func TestRemaining(t *testing.T) {
	l, _ := newTestLimiter()

	if got := l.Remaining("s1", KindQuery); got != 100 {
		t.Errorf("Remaining = %d, want 100", got)
	}
	for i := 0; i < 3; i++ {
		if err := l.Allow("s1", KindQuery); err != nil {
			t.Fatalf("query rejected: %v", err)
		}
	}
	if got := l.Remaining("s1", KindQuery); got != 97 {
		t.Errorf("Remaining = %d, want 97", got)
	}
}

func TestPurge(t *testing.T) {
	l, clock := newTestLimiter()

	if err := l.Allow("s1", KindQuery); err != nil {
		t.Fatalf("query rejected: %v", err)
	}
	clock.advance(3 * time.Hour)
	if err := l.Allow("s2", KindQuery); err != nil {
		t.Fatalf("query rejected: %v", err)
	}

	if removed := l.Purge(2 * time.Hour); removed != 1 {
		t.Errorf("Purge removed %d sessions, want 1", removed)
	}
}
