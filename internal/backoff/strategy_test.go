package backoff

import (
	"testing"
	"time"
)

func TestExponentialJitterGrowth(t *testing.T) {
	s := ExponentialJitter{}

	var previous time.Duration
	for attempt := 0; attempt < 8; attempt++ {
		delay := s.Calculate(attempt, 100*time.Millisecond, time.Minute, 2.0, 0)
		if delay < previous {
			t.Errorf("attempt %d: delay %v below previous %v", attempt, delay, previous)
		}
		previous = delay
	}
}

func TestExponentialJitterCap(t *testing.T) {
	s := ExponentialJitter{}

	for attempt := 0; attempt < 64; attempt++ {
		delay := s.Calculate(attempt, time.Second, 5*time.Second, 2.0, 1.0)
		if delay > 5*time.Second {
			t.Errorf("attempt %d: delay %v exceeds cap", attempt, delay)
		}
		if delay < 0 {
			t.Errorf("attempt %d: negative delay %v", attempt, delay)
		}
	}
}

func TestExponentialJitterNegativeAttempt(t *testing.T) {
	s := ExponentialJitter{}
	delay := s.Calculate(-3, 100*time.Millisecond, time.Minute, 2.0, 0)
	if delay != 100*time.Millisecond {
		t.Errorf("negative attempt delay = %v, want initial backoff", delay)
	}
}

func TestJitterBounds(t *testing.T) {
	s := ExponentialJitter{}
	base := s.Calculate(2, 100*time.Millisecond, time.Minute, 2.0, 0)

	for i := 0; i < 100; i++ {
		delay := s.Calculate(2, 100*time.Millisecond, time.Minute, 2.0, 0.5)
		if delay < base {
			t.Fatalf("jittered delay %v below base %v", delay, base)
		}
		if delay > base+base/2 {
			t.Fatalf("jittered delay %v above base*1.5 (%v)", delay, base+base/2)
		}
	}
}

func TestJitterClamped(t *testing.T) {
	s := ExponentialJitter{}
	// Out-of-range jitter factors are clamped rather than rejected.
	if d := s.Calculate(0, time.Second, time.Minute, 2.0, -1); d != time.Second {
		t.Errorf("negative jitter should clamp to 0, got %v", d)
	}
	if d := s.Calculate(0, time.Second, time.Minute, 2.0, 5); d > 2*time.Second {
		t.Errorf("jitter above 1 should clamp to 1, got %v", d)
	}
}

func TestDecorrelatedJitterBounds(t *testing.T) {
	s := DecorrelatedJitter{}

	if d := s.Calculate(0, time.Second, time.Minute, 0, 0); d != time.Second {
		t.Errorf("attempt 0 delay = %v, want initial backoff", d)
	}

	for attempt := 1; attempt < 20; attempt++ {
		for i := 0; i < 50; i++ {
			delay := s.Calculate(attempt, 100*time.Millisecond, 10*time.Second, 0, 0)
			if delay < 100*time.Millisecond {
				t.Fatalf("attempt %d: delay %v below base", attempt, delay)
			}
			if delay > 10*time.Second {
				t.Fatalf("attempt %d: delay %v above cap", attempt, delay)
			}
		}
	}
}

func TestPow(t *testing.T) {
	cases := []struct {
		base     float64
		exponent int
		want     float64
	}{
		{2.0, 0, 1},
		{2.0, 1, 2},
		{2.0, 10, 1024},
		{3.0, 3, 27},
		{1.5, 2, 2.25},
	}

	for _, tc := range cases {
		if got := Pow(tc.base, tc.exponent); got != tc.want {
			t.Errorf("Pow(%v, %d) = %v, want %v", tc.base, tc.exponent, got, tc.want)
		}
	}
}
