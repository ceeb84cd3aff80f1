package scheduler

import (
	"log"
	"time"

	"github.com/Rahiq007/COMPSCI-520-Final-Project-sub001/services/marketdata"
	"github.com/go-co-op/gocron"
)

// Scheduler manages background jobs around the distribution service
type Scheduler struct {
	cron    *gocron.Scheduler
	service *marketdata.Service
	policy  marketdata.PollPolicy

	sessionOpen bool
}

// NewScheduler creates a new scheduler instance
func NewScheduler(service *marketdata.Service, policy marketdata.PollPolicy) *Scheduler {
	return &Scheduler{
		cron:        gocron.NewScheduler(time.Local),
		service:     service,
		policy:      policy,
		sessionOpen: policy.MarketOpen(time.Now()),
	}
}

// Start starts all scheduled jobs
func (s *Scheduler) Start() {
	log.Println("Starting scheduler...")

	// Log distribution stats every minute while anything is active
	s.cron.Every(1).Minute().Do(func() {
		s.logStats()
	})

	// Watch for market session transitions
	s.cron.Every(1).Minute().Do(func() {
		s.watchSession()
	})

	// Report upstream source configuration every 10 minutes
	s.cron.Every(10).Minutes().Do(func() {
		s.logSourceStatus()
	})

	s.cron.StartAsync()
	log.Println("Scheduler started successfully")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("Scheduler stopped")
}

// logStats logs distribution statistics when symbols are being polled
func (s *Scheduler) logStats() {
	stats := s.service.Stats()
	tasks, _ := stats["poll_tasks"].(int)
	if tasks == 0 {
		return
	}
	log.Printf("Distribution stats: tasks=%v subscribers=%v cached=%v published=%v failures=%v",
		stats["poll_tasks"], stats["subscribers"], stats["cached_symbols"],
		stats["quotes_published"], stats["fetch_failures"])
}

// watchSession logs market open/close transitions, which change the
// polling cadence on each symbol's next tick
func (s *Scheduler) watchSession() {
	open := s.policy.MarketOpen(time.Now())
	if open == s.sessionOpen {
		return
	}
	s.sessionOpen = open
	if open {
		log.Printf("Market session opened, poll cadence tightening to %v", s.policy.ActiveInterval)
	} else {
		log.Printf("Market session closed, poll cadence relaxing to %v", s.policy.IdleInterval)
	}
}

// logSourceStatus warns when no upstream source has credentials
func (s *Scheduler) logSourceStatus() {
	configured := 0
	for _, src := range s.service.GetAvailableSources() {
		if src.Configured {
			configured++
		}
	}
	if configured == 0 {
		log.Println("Warning: no quote source configured, fetches will fail until credentials are set")
	}
}
