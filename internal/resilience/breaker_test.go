package resilience

import (
	"errors"
	"testing"
	"time"
)

var errBackend = errors.New("backend down")

func TestNewBreaker_Defaults(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "test"})
	if b.trip != 5 {
		t.Errorf("trip = %d, want 5", b.trip)
	}
	if b.cooldown != 30*time.Second {
		t.Errorf("cooldown = %v, want 30s", b.cooldown)
	}
	if b.probes != 3 {
		t.Errorf("probes = %d, want 3", b.probes)
	}
	if b.State() != BreakerClosed {
		t.Errorf("initial state = %v, want closed", b.State())
	}
}

func TestBreaker_ClosedForwardsCalls(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "test", Trip: 3})
	called := false
	if err := b.Do(func() error { called = true; return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("fn was not called")
	}
}

func TestBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	b := NewBreaker(BreakerConfig{
		Name:     "test",
		Trip:     3,
		Cooldown: time.Hour,
	})

	for range 3 {
		_ = b.Do(func() error { return errBackend })
	}
	if b.State() != BreakerOpen {
		t.Fatalf("state = %v, want open after 3 failures", b.State())
	}

	err := b.Do(func() error { return nil })
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "test", Trip: 3})

	_ = b.Do(func() error { return errBackend })
	_ = b.Do(func() error { return errBackend })
	_ = b.Do(func() error { return nil })

	if b.State() != BreakerClosed {
		t.Fatalf("state = %v, want closed (success resets the counter)", b.State())
	}

	_ = b.Do(func() error { return errBackend })
	_ = b.Do(func() error { return errBackend })
	if b.State() != BreakerClosed {
		t.Fatal("should still be closed after 2 failures post-reset")
	}
}

func TestBreaker_ProbesAfterCooldown(t *testing.T) {
	b := NewBreaker(BreakerConfig{
		Name:     "test",
		Trip:     2,
		Cooldown: 10 * time.Millisecond,
		Probes:   2,
	})

	_ = b.Do(func() error { return errBackend })
	_ = b.Do(func() error { return errBackend })
	if b.State() != BreakerOpen {
		t.Fatal("expected open")
	}

	time.Sleep(15 * time.Millisecond)
	if b.State() != BreakerProbing {
		t.Fatalf("state = %v, want probing after cooldown", b.State())
	}
}

func TestBreaker_ClosesAfterSuccessfulProbes(t *testing.T) {
	b := NewBreaker(BreakerConfig{
		Name:     "test",
		Trip:     2,
		Cooldown: 10 * time.Millisecond,
		Probes:   2,
	})

	_ = b.Do(func() error { return errBackend })
	_ = b.Do(func() error { return errBackend })
	time.Sleep(15 * time.Millisecond)

	for i := range 2 {
		if err := b.Do(func() error { return nil }); err != nil {
			t.Fatalf("probe %d: unexpected error: %v", i, err)
		}
	}
	if b.State() != BreakerClosed {
		t.Fatalf("state = %v, want closed after successful probes", b.State())
	}
}

func TestBreaker_ReopensOnFailedProbe(t *testing.T) {
	b := NewBreaker(BreakerConfig{
		Name:     "test",
		Trip:     2,
		Cooldown: 10 * time.Millisecond,
		Probes:   3,
	})

	_ = b.Do(func() error { return errBackend })
	_ = b.Do(func() error { return errBackend })
	time.Sleep(15 * time.Millisecond)

	if err := b.Do(func() error { return errBackend }); err == nil {
		t.Fatal("expected error from failing probe")
	}

	b.mu.Lock()
	s := b.state
	b.mu.Unlock()
	if s != BreakerOpen {
		t.Fatalf("state = %v, want open after failed probe", s)
	}
}

func TestBreaker_Reset(t *testing.T) {
	b := NewBreaker(BreakerConfig{
		Name:     "test",
		Trip:     2,
		Cooldown: time.Hour,
	})

	_ = b.Do(func() error { return errBackend })
	_ = b.Do(func() error { return errBackend })
	if b.State() != BreakerOpen {
		t.Fatal("expected open")
	}

	b.Reset()
	if b.State() != BreakerClosed {
		t.Fatalf("state = %v, want closed after reset", b.State())
	}
	if err := b.Do(func() error { return nil }); err != nil {
		t.Fatalf("unexpected error after reset: %v", err)
	}
}

func TestBreakerState_String(t *testing.T) {
	tests := []struct {
		state BreakerState
		want  string
	}{
		{BreakerClosed, "closed"},
		{BreakerOpen, "open"},
		{BreakerProbing, "probing"},
		{BreakerState(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("BreakerState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
