package backoff_test

import (
	"testing"
	"time"

	"github.com/debnit/MsmeBazaar-sub000/backoff"
)

func TestConstant_ReturnsFixedDelay(t *testing.T) {
	c := backoff.NewConstant(5 * time.Second)
	for attempt := 1; attempt <= 10; attempt++ {
		if got := c.Delay(attempt); got != 5*time.Second {
			t.Errorf("Delay(%d) = %v, want %v", attempt, got, 5*time.Second)
		}
	}
}

func TestLinear_GrowsAndCaps(t *testing.T) {
	l := backoff.NewLinear(time.Second, 5*time.Second)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{3, 3 * time.Second},
		{5, 5 * time.Second},
		{50, 5 * time.Second},
	}
	for _, tt := range tests {
		if got := l.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponential_DefaultCurve(t *testing.T) {
	e := backoff.NewExponential(2*time.Second, 2, time.Hour)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 4 * time.Second},  // base × 2
		{2, 8 * time.Second},  // base × 2²
		{3, 16 * time.Second}, // base × 2³
		{4, 32 * time.Second}, // base × 2⁴
	}
	for _, tt := range tests {
		if got := e.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponential_CustomMultiplierAndCap(t *testing.T) {
	e := backoff.NewExponential(time.Second, 3, 20*time.Second)

	if got := e.Delay(1); got != 3*time.Second {
		t.Errorf("Delay(1) = %v, want 3s", got)
	}
	if got := e.Delay(2); got != 9*time.Second {
		t.Errorf("Delay(2) = %v, want 9s", got)
	}
	if got := e.Delay(3); got != 20*time.Second {
		t.Errorf("Delay(3) = %v, want 20s (capped)", got)
	}
	if got := e.Delay(500); got != 20*time.Second {
		t.Errorf("Delay(500) = %v, want 20s (capped, no overflow)", got)
	}
}

func TestExponentialWithJitter_WithinBounds(t *testing.T) {
	e := backoff.NewExponentialWithJitter(time.Second, 2, 10*time.Second)

	for attempt := 1; attempt <= 6; attempt++ {
		for range 100 {
			got := e.Delay(attempt)
			if got < 0 || got > 10*time.Second {
				t.Fatalf("Delay(%d) = %v, outside [0, 10s]", attempt, got)
			}
		}
	}
}

func TestExponential_MultiplierOneIsFlat(t *testing.T) {
	e := backoff.NewExponential(time.Second, 1, time.Minute)
	for attempt := 1; attempt <= 4; attempt++ {
		if got := e.Delay(attempt); got != time.Second {
			t.Errorf("Delay(%d) = %v, want 1s", attempt, got)
		}
	}
	if got := backoff.NewExponential(time.Second, 0, time.Minute).Delay(2); got != 4*time.Second {
		t.Errorf("zero multiplier Delay(2) = %v, want default ×2 curve (4s)", got)
	}
}

func TestPolicy_Next(t *testing.T) {
	p := backoff.Policy{
		MaxAttempts: 3,
		Strategy:    backoff.NewExponential(2*time.Second, 2, time.Minute),
	}

	tests := []struct {
		attempts      int
		wantDelay     time.Duration
		wantExhausted bool
	}{
		{1, 4 * time.Second, false},
		{2, 8 * time.Second, false},
		{3, 0, true},
		{7, 0, true},
	}
	for _, tt := range tests {
		delay, exhausted := p.Next(tt.attempts)
		if delay != tt.wantDelay || exhausted != tt.wantExhausted {
			t.Errorf("Next(%d) = (%v, %v), want (%v, %v)",
				tt.attempts, delay, exhausted, tt.wantDelay, tt.wantExhausted)
		}
	}
}

func TestPolicy_ZeroValueUsesDefaults(t *testing.T) {
	var p backoff.Policy
	want := time.Duration(float64(backoff.DefaultBaseDelay) * backoff.DefaultMultiplier)
	if d, exhausted := p.Next(1); exhausted || d != want {
		t.Errorf("Next(1) = (%v, %v), want (%v, false)", d, exhausted, want)
	}
	if _, exhausted := p.Next(backoff.DefaultMaxAttempts); !exhausted {
		t.Error("expected exhaustion at the default attempt budget")
	}
}

func TestDefaultPolicy(t *testing.T) {
	p := backoff.DefaultPolicy()
	for attempt, want := range map[int]time.Duration{1: 4 * time.Second, 2: 8 * time.Second} {
		if d, exhausted := p.Next(attempt); exhausted || d != want {
			t.Errorf("Next(%d) = (%v, %v), want (%v, false)", attempt, d, exhausted, want)
		}
	}
	if _, exhausted := p.Next(3); !exhausted {
		t.Error("default policy allows more than three attempts")
	}
}

func TestPolicy_SingleAttemptNeverRetries(t *testing.T) {
	p := backoff.Policy{MaxAttempts: 1, Strategy: backoff.NewConstant(time.Second)}
	if _, exhausted := p.Next(1); !exhausted {
		t.Error("MaxAttempts=1 must be exhausted after the first failure")
	}
}

func TestConfig_Strategy(t *testing.T) {
	tests := []struct {
		name string
		cfg  backoff.Config
		at   int
		want time.Duration
	}{
		{"constant", backoff.Config{Kind: backoff.KindConstant, Base: time.Second}, 4, time.Second},
		{"linear", backoff.Config{Kind: backoff.KindLinear, Base: time.Second}, 4, 4 * time.Second},
		{"exponential", backoff.Config{Kind: backoff.KindExponential, Base: time.Second, Multiplier: 2}, 3, 8 * time.Second},
		{"flat exponential", backoff.Config{Kind: backoff.KindExponential, Base: time.Second, Multiplier: 1}, 5, time.Second},
		{"zero value", backoff.Config{}, 1, 4 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Strategy().Delay(tt.at); got != tt.want {
				t.Errorf("Delay(%d) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}
