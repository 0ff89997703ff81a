package backoff

import (
	"testing"
	"time"
)

func TestPolicy_Delay(t *testing.T) {
	p := Policy{Base: 250 * time.Millisecond}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 350 * time.Millisecond},  // 250 + 100
		{1, 700 * time.Millisecond},  // 500 + 200
		{2, 1300 * time.Millisecond}, // 1000 + 300
		{3, 2400 * time.Millisecond}, // 2000 + 400
		{4, 4500 * time.Millisecond}, // 4000 + 500
		{5, DefaultMax},              // 8000 + 600 clamped
	}
	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestPolicy_Delay_CustomMax(t *testing.T) {
	p := Policy{Base: time.Second, Max: 1500 * time.Millisecond}
	if got := p.Delay(1); got != 1500*time.Millisecond {
		t.Errorf("Delay(1) = %v, want clamp to 1.5s", got)
	}
}

func TestPolicy_Delay_NegativeAttempt(t *testing.T) {
	p := Policy{Base: 100 * time.Millisecond}
	if got := p.Delay(-3); got != 200*time.Millisecond {
		t.Errorf("Delay(-3) = %v, want treated as attempt 0", got)
	}
}

func TestPolicy_Delay_HugeAttemptClamps(t *testing.T) {
	p := Policy{Base: time.Millisecond}
	if got := p.Delay(62); got != DefaultMax {
		t.Errorf("Delay(62) = %v, want %v", got, DefaultMax)
	}
}
