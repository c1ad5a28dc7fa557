package bgg

import (
	"testing"
	"time"
)

func TestBackoffPolicyExponential(t *testing.T) {
	p := BackoffPolicy{Base: 2.0}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
	}
	for _, tt := range tests {
		if got := p.Wait(tt.attempt, ""); got != tt.want {
			t.Errorf("Wait(%d, \"\") = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoffPolicyDefaultBase(t *testing.T) {
	var p BackoffPolicy
	if got := p.Wait(3, ""); got != 8*time.Second {
		t.Errorf("zero-value policy Wait(3) = %v, want 8s", got)
	}
}

func TestBackoffPolicyRetryAfter(t *testing.T) {
	p := BackoffPolicy{Base: 2.0}
	tests := []struct {
		name       string
		retryAfter string
		attempt    int
		want       time.Duration
	}{
		{"honors numeric retry-after verbatim", "7", 1, 7 * time.Second},
		{"honors fractional retry-after", "0.5", 2, 500 * time.Millisecond},
		{"honors zero retry-after", "0", 3, 0},
		{"trims whitespace", " 3 ", 1, 3 * time.Second},
		{"ignores negative retry-after", "-5", 1, 2 * time.Second},
		{"ignores non-numeric retry-after", "soon", 2, 4 * time.Second},
		{"ignores http-date retry-after", "Wed, 21 Oct 2026 07:28:00 GMT", 1, 2 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Wait(tt.attempt, tt.retryAfter); got != tt.want {
				t.Errorf("Wait(%d, %q) = %v, want %v", tt.attempt, tt.retryAfter, got, tt.want)
			}
		})
	}
}
