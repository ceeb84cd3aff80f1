package marketdata

import (
	"log"
	"math"
	"time"

	"github.com/Rahiq007/COMPSCI-520-Final-Project-sub001/models"
)

// Score penalties per detected issue. A pass starts at 100 and floors
// at 0; each pass recomputes from scratch rather than accumulating.
const (
	penaltyPriceOutOfRange  = 20
	penaltyChangePercentOOR = 20
	penaltyStaleData        = 30
)

// buildConsistencyReport inspects a cached entry and produces a fresh
// report. Validation is observational: a bad report never stops the
// quote from being served.
func buildConsistencyReport(symbol string, entry cacheEntry, now time.Time, priceCeiling float64, staleAfter time.Duration) models.ConsistencyReport {
	report := models.ConsistencyReport{
		Symbol:           symbol,
		ConsistencyScore: 100,
		Issues:           []string{},
		LastValidation:   now,
	}

	quote := entry.quote
	if quote.Price <= 0 || quote.Price > priceCeiling {
		report.Issues = append(report.Issues, "price out of range")
		report.ConsistencyScore -= penaltyPriceOutOfRange
	}
	if math.Abs(quote.ChangePercent) > 100 {
		report.Issues = append(report.Issues, "change percent out of range")
		report.ConsistencyScore -= penaltyChangePercentOOR
	}
	if now.Sub(quote.FetchedAt) > staleAfter {
		report.Issues = append(report.Issues, "data is stale")
		report.ConsistencyScore -= penaltyStaleData
	}

	if report.ConsistencyScore < 0 {
		report.ConsistencyScore = 0
	}
	return report
}

// runValidator is the per-symbol validation loop. It runs on a slower
// cadence than the poll loop and is started and stopped in lockstep
// with it.
func (s *Service) runValidator(task *symbolTask) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.validationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-task.ctx.Done():
			return
		case <-ticker.C:
			s.validateSymbol(task)
		}
	}
}

// validateSymbol recomputes and stores the consistency report for one
// symbol. Reads the cache without blocking the poll path.
func (s *Service) validateSymbol(task *symbolTask) {
	entry, ok := s.cache.snapshot(task.symbol)
	if !ok {
		// Nothing fetched yet for this symbol
		return
	}

	report := buildConsistencyReport(task.symbol, entry, time.Now(), s.priceCeiling, s.stalenessThreshold)

	// Discard the report if the task was stopped meanwhile, so reports
	// never outlive their symbol's eviction
	s.mu.Lock()
	stopped := s.tasks[task.symbol] != task
	s.mu.Unlock()
	if stopped {
		return
	}

	s.reportsMu.Lock()
	s.reports[task.symbol] = report
	s.reportsMu.Unlock()

	if len(report.Issues) > 0 {
		log.Printf("Consistency check for %s: score=%d issues=%v", task.symbol, report.ConsistencyScore, report.Issues)
	}
}
