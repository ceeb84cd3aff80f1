package marketdata

import (
	"testing"
	"time"
)

func TestPollPolicyInterval(t *testing.T) {
	policy := PollPolicy{
		ActiveInterval: 5 * time.Second,
		IdleInterval:   2 * time.Minute,
		DemoInterval:   10 * time.Second,
		OpenHour:       9,
		CloseHour:      16,
	}

	// 2026-08-24 is a Monday
	monday := func(hour int) time.Time {
		return time.Date(2026, 8, 24, hour, 30, 0, 0, time.Local)
	}
	saturday := time.Date(2026, 8, 22, 11, 0, 0, 0, time.Local)
	sunday := time.Date(2026, 8, 23, 11, 0, 0, 0, time.Local)

	tests := []struct {
		name string
		now  time.Time
		want time.Duration
	}{
		{"weekday during market hours", monday(10), 5 * time.Second},
		{"weekday at open", monday(9), 5 * time.Second},
		{"weekday before open", monday(8), 2 * time.Minute},
		{"weekday at close", monday(16), 2 * time.Minute},
		{"weekday evening", monday(20), 2 * time.Minute},
		{"saturday", saturday, 2 * time.Minute},
		{"sunday", sunday, 2 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.Interval(tt.now); got != tt.want {
				t.Errorf("Interval(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestPollPolicyDemoOverride(t *testing.T) {
	policy := PollPolicy{
		ActiveInterval: 5 * time.Second,
		IdleInterval:   2 * time.Minute,
		DemoInterval:   10 * time.Second,
		DemoMode:       true,
		OpenHour:       9,
		CloseHour:      16,
	}

	// Demo mode ignores market hours entirely
	insideHours := time.Date(2026, 8, 24, 10, 0, 0, 0, time.Local)
	weekend := time.Date(2026, 8, 23, 3, 0, 0, 0, time.Local)

	if got := policy.Interval(insideHours); got != 10*time.Second {
		t.Errorf("demo interval during market hours = %v, want 10s", got)
	}
	if got := policy.Interval(weekend); got != 10*time.Second {
		t.Errorf("demo interval on weekend = %v, want 10s", got)
	}
}

func TestMarketOpen(t *testing.T) {
	policy := DefaultPollPolicy()

	friday := time.Date(2026, 8, 21, 12, 0, 0, 0, time.Local)
	if !policy.MarketOpen(friday) {
		t.Error("Friday noon should be inside market hours")
	}
	saturday := time.Date(2026, 8, 22, 12, 0, 0, 0, time.Local)
	if policy.MarketOpen(saturday) {
		t.Error("Saturday should never be inside market hours")
	}
}
