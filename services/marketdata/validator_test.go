package marketdata

import (
	"testing"
	"time"

	"github.com/Rahiq007/COMPSCI-520-Final-Project-sub001/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freshEntry(quote models.Quote) cacheEntry {
	if quote.FetchedAt.IsZero() {
		quote.FetchedAt = time.Now()
	}
	return cacheEntry{quote: quote, lastSuccessfulFetch: quote.FetchedAt}
}

func TestBuildConsistencyReportClean(t *testing.T) {
	entry := freshEntry(models.Quote{Symbol: "AAPL", Price: 190, ChangePercent: 1.2})
	report := buildConsistencyReport("AAPL", entry, time.Now(), 1000000, 5*time.Minute)

	assert.Equal(t, 100, report.ConsistencyScore)
	assert.Empty(t, report.Issues)
	assert.Equal(t, "AAPL", report.Symbol)
}

func TestBuildConsistencyReportChangePercent(t *testing.T) {
	entry := freshEntry(models.Quote{Symbol: "AAPL", Price: 190, ChangePercent: 150})
	report := buildConsistencyReport("AAPL", entry, time.Now(), 1000000, 5*time.Minute)

	assert.LessOrEqual(t, report.ConsistencyScore, 80)
	require.Len(t, report.Issues, 1)
	assert.Contains(t, report.Issues[0], "change percent")
}

func TestBuildConsistencyReportPriceCeiling(t *testing.T) {
	entry := freshEntry(models.Quote{Symbol: "BRK.A", Price: 2000000, ChangePercent: 0.1})
	report := buildConsistencyReport("BRK.A", entry, time.Now(), 1000000, 5*time.Minute)

	assert.Equal(t, 80, report.ConsistencyScore)
	require.Len(t, report.Issues, 1)
	assert.Contains(t, report.Issues[0], "price out of range")
}

func TestBuildConsistencyReportStale(t *testing.T) {
	entry := freshEntry(models.Quote{
		Symbol:        "MSFT",
		Price:         400,
		ChangePercent: 0.5,
		FetchedAt:     time.Now().Add(-10 * time.Minute),
	})
	report := buildConsistencyReport("MSFT", entry, time.Now(), 1000000, 5*time.Minute)

	assert.Equal(t, 70, report.ConsistencyScore)
	require.Len(t, report.Issues, 1)
	assert.Contains(t, report.Issues[0], "stale")
}

func TestBuildConsistencyReportAccumulatesWithinOnePass(t *testing.T) {
	// Every rule trips: 100 - 20 - 20 - 30 = 30
	entry := freshEntry(models.Quote{
		Symbol:        "PENNY",
		Price:         -1,
		ChangePercent: -250,
		FetchedAt:     time.Now().Add(-time.Hour),
	})
	report := buildConsistencyReport("PENNY", entry, time.Now(), 1000000, 5*time.Minute)

	assert.Equal(t, 30, report.ConsistencyScore)
	assert.Len(t, report.Issues, 3)

	// A later clean pass recomputes from scratch rather than
	// accumulating across passes
	clean := freshEntry(models.Quote{Symbol: "PENNY", Price: 3, ChangePercent: 2})
	report = buildConsistencyReport("PENNY", clean, time.Now(), 1000000, 5*time.Minute)
	assert.Equal(t, 100, report.ConsistencyScore)
	assert.Empty(t, report.Issues)
}

func TestValidatorLifecycle(t *testing.T) {
	src := &scriptedSource{script: []fetchResult{priced(100)}}
	svc := New(Options{
		Sources: []Source{src},
		Policy: PollPolicy{
			ActiveInterval: time.Hour,
			IdleInterval:   time.Hour,
			DemoInterval:   time.Hour,
			DemoMode:       true,
		},
		FetchTimeout:       time.Second,
		ValidationInterval: 50 * time.Millisecond,
		StalenessThreshold: time.Nanosecond, // everything is instantly stale
	})
	defer svc.Close()

	consumer := newCollector()
	sub, err := svc.Subscribe("AAPL", consumer.consume)
	require.NoError(t, err)
	consumer.next(t, 2*time.Second)

	// The validator runs on its own cadence and flags the stale quote
	// without interrupting distribution
	require.Eventually(t, func() bool {
		report, ok := svc.GetConsistencyReport("AAPL")
		return ok && len(report.Issues) > 0
	}, 2*time.Second, 20*time.Millisecond)

	report, ok := svc.GetConsistencyReport("AAPL")
	require.True(t, ok)
	assert.Contains(t, report.Issues, "data is stale")
	assert.Equal(t, 70, report.ConsistencyScore)

	// Reports are evicted together with the cache entry
	sub.Unsubscribe()
	_, ok = svc.GetConsistencyReport("AAPL")
	assert.False(t, ok)
}
