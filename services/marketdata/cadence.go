package marketdata

import "time"

// PollPolicy decides the polling cadence for recurring quote fetches.
// Interval is a pure function of the wall clock so it can be evaluated
// on every tick without coordination.
type PollPolicy struct {
	ActiveInterval time.Duration // during market hours
	IdleInterval   time.Duration // outside market hours
	DemoInterval   time.Duration // fixed cadence when DemoMode is set
	DemoMode       bool
	OpenHour       int
	CloseHour      int
}

// DefaultPollPolicy returns the production cadence: seconds-scale
// during market hours, minutes-scale otherwise.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{
		ActiveInterval: 5 * time.Second,
		IdleInterval:   2 * time.Minute,
		DemoInterval:   10 * time.Second,
		OpenHour:       9,
		CloseHour:      16,
	}
}

// Interval returns the poll cadence in effect at now.
func (p PollPolicy) Interval(now time.Time) time.Duration {
	if p.DemoMode {
		return p.DemoInterval
	}
	if p.MarketOpen(now) {
		return p.ActiveInterval
	}
	return p.IdleInterval
}

// MarketOpen checks if the market is currently in its trading window
func (p PollPolicy) MarketOpen(now time.Time) bool {
	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return false
	}
	hour := now.Hour()
	return hour >= p.OpenHour && hour < p.CloseHour
}
