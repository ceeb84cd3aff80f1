package marketdata

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Rahiq007/COMPSCI-520-Final-Project-sub001/models"
)

// runPoller is the per-symbol poll loop: one immediate fetch, then
// recurring fetches at the policy cadence. Fetches for the same symbol
// are serialized by the loop itself; a slow fetch delays the next tick
// rather than overlapping it, keeping cache writes per symbol totally
// ordered.
func (s *Service) runPoller(task *symbolTask) {
	defer s.wg.Done()

	s.pollOnce(task)

	interval := s.policy.Interval(time.Now())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-task.ctx.Done():
			return
		case <-ticker.C:
			s.pollOnce(task)
			// Re-evaluate cadence so market open/close transitions
			// take effect on the next tick
			if next := s.policy.Interval(time.Now()); next != interval {
				log.Printf("Poll cadence for %s: %v -> %v", task.symbol, interval, next)
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

// pollOnce performs a single fetch-and-publish cycle for the task's
// symbol. Failures degrade to serving the last cached quote; they are
// never surfaced to consumers as errors.
func (s *Service) pollOnce(task *symbolTask) {
	ctx, cancel := context.WithTimeout(task.ctx, s.fetchTimeout)
	quote, err := s.source.Fetch(ctx, task.symbol)
	cancel()

	// Non-positive prices are rejected before they can reach the cache
	if err == nil && quote.Price <= 0 {
		err = fmt.Errorf("non-positive price %v", quote.Price)
	}

	if err != nil {
		if task.ctx.Err() != nil {
			// Task stopped mid-fetch, nothing to report
			return
		}
		s.fetchFailures.Add(1)
		stale, ok := s.recordFailure(task)
		if !ok {
			log.Printf("Fetch failed for %s (no cached quote to serve): %v", task.symbol, err)
			return
		}
		log.Printf("Fetch failed for %s, serving cached quote from %s: %v",
			task.symbol, stale.FetchedAt.Format(time.RFC3339), err)
		s.Notify(task.symbol, stale)
		return
	}

	quote.Symbol = task.symbol
	if quote.FetchedAt.IsZero() {
		quote.FetchedAt = time.Now()
	}

	if !s.acceptQuote(task, quote) {
		// Task was stopped while the fetch was in flight; discard
		return
	}

	if s.relay != nil {
		s.relay.Publish(quote)
	}
	s.Notify(task.symbol, quote)
}

// acceptQuote writes a fetched quote to the cache, but only while the
// task is still the registered one for its symbol. This is what makes
// the stop-polling guarantee hold: once stopPollingLocked has removed
// the task under s.mu, no late fetch result can touch the cache.
func (s *Service) acceptQuote(task *symbolTask, quote models.Quote) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tasks[task.symbol] != task {
		return false
	}
	s.cache.store(quote)
	return true
}

// recordFailure bumps the failure counter for the task's symbol under
// the same still-registered check as acceptQuote.
func (s *Service) recordFailure(task *symbolTask) (models.Quote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tasks[task.symbol] != task {
		return models.Quote{}, false
	}
	return s.cache.recordFailure(task.symbol)
}
