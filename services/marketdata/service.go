package marketdata

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Rahiq007/COMPSCI-520-Final-Project-sub001/models"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Consumer receives published quotes. Consumers are notified
// synchronously and must not block for long periods; they must
// tolerate re-sent stale quotes.
type Consumer func(models.Quote)

// Options configures a Service. Zero-value fields fall back to the
// defaults documented on each field.
type Options struct {
	Sources            []Source
	Policy             PollPolicy
	FetchTimeout       time.Duration // per-fetch bound, default 10s
	ValidationInterval time.Duration // default 2m
	StalenessThreshold time.Duration // default 5m
	PriceCeiling       float64       // sanity ceiling, default 1e6
	Relay              *Relay        // optional cross-process relay
}

// consumerEntry is one consumer's registration for one symbol.
type consumerEntry struct {
	id             string
	fn             Consumer
	registeredAt   time.Time
	lastNotifiedAt time.Time
}

// symbolTask tracks the poll and validation goroutines for one symbol.
// The task pointer doubles as a generation marker: publishes from a
// task that is no longer the registered one are discarded.
type symbolTask struct {
	symbol string
	ctx    context.Context
	cancel context.CancelFunc
}

// Service is the process-wide market data distribution core. It polls
// upstream sources for every actively subscribed symbol, caches the
// latest accepted quote, fans it out to subscribers and re-validates
// cached data on a slower cadence. Exactly one Service per process,
// owned by the composition root via New/Close.
type Service struct {
	source  Source
	sources []Source
	policy  PollPolicy
	relay   *Relay

	fetchTimeout       time.Duration
	validationInterval time.Duration
	stalenessThreshold time.Duration
	priceCeiling       float64

	cache *quoteCache

	reportsMu sync.RWMutex
	reports   map[string]models.ConsistencyReport

	// mu guards the subscription registry and task map. Fetches run
	// outside this lock so registry calls never wait on network I/O.
	mu        sync.Mutex
	consumers map[string][]*consumerEntry
	tasks     map[string]*symbolTask
	closed    bool

	lookups singleflight.Group
	wg      sync.WaitGroup

	quotesPublished atomic.Int64
	fetchFailures   atomic.Int64
}

// New creates the distribution service. Polling starts lazily with the
// first subscription.
func New(opts Options) *Service {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	if opts.ValidationInterval <= 0 {
		opts.ValidationInterval = 2 * time.Minute
	}
	if opts.StalenessThreshold <= 0 {
		opts.StalenessThreshold = 5 * time.Minute
	}
	if opts.PriceCeiling <= 0 {
		opts.PriceCeiling = 1000000
	}
	if opts.Policy == (PollPolicy{}) {
		opts.Policy = DefaultPollPolicy()
	}

	return &Service{
		source:             NewFailoverSource(opts.Sources...),
		sources:            opts.Sources,
		policy:             opts.Policy,
		relay:              opts.Relay,
		fetchTimeout:       opts.FetchTimeout,
		validationInterval: opts.ValidationInterval,
		stalenessThreshold: opts.StalenessThreshold,
		priceCeiling:       opts.PriceCeiling,
		cache:              newQuoteCache(),
		reports:            make(map[string]models.ConsistencyReport),
		consumers:          make(map[string][]*consumerEntry),
		tasks:              make(map[string]*symbolTask),
	}
}

// Subscription is the handle returned by Subscribe. Its Unsubscribe
// method is the only way to remove that specific registration.
type Subscription struct {
	id      string
	symbol  string
	service *Service
	once    sync.Once
}

// Symbol returns the normalized symbol this subscription covers.
func (sub *Subscription) Symbol() string { return sub.symbol }

// Unsubscribe removes the registration. Idempotent.
func (sub *Subscription) Unsubscribe() {
	sub.once.Do(func() {
		sub.service.unsubscribe(sub.symbol, sub.id)
	})
}

// Subscribe registers a consumer for a symbol and returns an
// unsubscribe handle. The first subscriber for a symbol starts its
// poll and validation tasks; if a quote is already cached it is
// delivered to the new consumer synchronously, before any future fetch.
func (s *Service) Subscribe(symbol string, consumer Consumer) (*Subscription, error) {
	sym, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if consumer == nil {
		return nil, fmt.Errorf("nil consumer for %s", sym)
	}

	entry := &consumerEntry{
		id:           uuid.NewString(),
		fn:           consumer,
		registeredAt: time.Now(),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("distribution service is closed")
	}
	s.consumers[sym] = append(s.consumers[sym], entry)
	if len(s.consumers[sym]) == 1 {
		s.startPollingLocked(sym)
	}
	s.mu.Unlock()

	// New subscribers never wait a full poll interval for first data.
	if quote, ok := s.cache.get(sym); ok {
		s.mu.Lock()
		entry.lastNotifiedAt = time.Now()
		s.mu.Unlock()
		s.deliver(sym, entry, quote)
	}

	return &Subscription{id: entry.id, symbol: sym, service: s}, nil
}

// unsubscribe removes one registration. When the consumer set for the
// symbol becomes empty the poll task is stopped and the cache entry
// and consistency report are evicted.
func (s *Service) unsubscribe(symbol, id string) {
	s.mu.Lock()
	entries := s.consumers[symbol]
	for i, e := range entries {
		if e.id == id {
			s.consumers[symbol] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	last := len(s.consumers[symbol]) == 0
	if last {
		delete(s.consumers, symbol)
		s.stopPollingLocked(symbol)
	}
	s.mu.Unlock()

	if last {
		s.cache.evict(symbol)
		s.reportsMu.Lock()
		delete(s.reports, symbol)
		s.reportsMu.Unlock()
	}
}

// startPollingLocked launches the poll and validation tasks for a
// symbol. Idempotent: an already-running task is left alone. Caller
// holds s.mu.
func (s *Service) startPollingLocked(symbol string) {
	if _, running := s.tasks[symbol]; running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	task := &symbolTask{symbol: symbol, ctx: ctx, cancel: cancel}
	s.tasks[symbol] = task

	s.wg.Add(2)
	go s.runPoller(task)
	go s.runValidator(task)

	log.Printf("Started polling %s (interval: %v)", symbol, s.policy.Interval(time.Now()))
}

// stopPollingLocked cancels the tasks for a symbol. Safe to call when
// none is running. After the task is removed from the map, any
// in-flight fetch result for it is discarded, so no cache write for
// the symbol can happen once the registry lock is released.
func (s *Service) stopPollingLocked(symbol string) {
	task, running := s.tasks[symbol]
	if !running {
		return
	}
	task.cancel()
	delete(s.tasks, symbol)
	log.Printf("Stopped polling %s", symbol)
}

// Notify delivers a quote to every consumer registered for the symbol,
// in registration order. A consumer that panics is logged and skipped;
// the remaining consumers are still notified.
func (s *Service) Notify(symbol string, quote models.Quote) {
	s.mu.Lock()
	entries := make([]*consumerEntry, len(s.consumers[symbol]))
	copy(entries, s.consumers[symbol])
	now := time.Now()
	for _, e := range entries {
		e.lastNotifiedAt = now
	}
	s.mu.Unlock()

	for _, e := range entries {
		s.deliver(symbol, e, quote)
	}
	if len(entries) > 0 {
		s.quotesPublished.Add(1)
	}
}

// deliver invokes one consumer with panic isolation.
func (s *Service) deliver(symbol string, entry *consumerEntry, quote models.Quote) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Consumer %s for %s panicked: %v", entry.id, symbol, r)
		}
	}()
	entry.fn(quote)
}

// GetCached returns the current cached quote for a symbol, or an
// explicit absent result when the symbol was never fetched or has been
// evicted.
func (s *Service) GetCached(symbol string) (models.Quote, bool) {
	sym, err := NormalizeSymbol(symbol)
	if err != nil {
		return models.Quote{}, false
	}
	return s.cache.get(sym)
}

// GetConsistencyReport returns the latest validation report for a
// symbol, if one has been computed.
func (s *Service) GetConsistencyReport(symbol string) (models.ConsistencyReport, bool) {
	sym, err := NormalizeSymbol(symbol)
	if err != nil {
		return models.ConsistencyReport{}, false
	}
	s.reportsMu.RLock()
	defer s.reportsMu.RUnlock()
	report, ok := s.reports[sym]
	return report, ok
}

// GetAvailableSources reports which upstream sources have credentials
// configured. Display-only; no behavioral effect.
func (s *Service) GetAvailableSources() []models.SourceStatus {
	statuses := make([]models.SourceStatus, 0, len(s.sources))
	for _, src := range s.sources {
		statuses = append(statuses, models.SourceStatus{
			Name:       src.Name(),
			Configured: src.Configured(),
		})
	}
	return statuses
}

// Lookup returns the cached quote when the symbol is actively
// distributed, otherwise performs a one-off fetch. Concurrent lookups
// for the same symbol share a single upstream call. Results are not
// cached: cache lifetime is tied to subscriptions.
func (s *Service) Lookup(ctx context.Context, symbol string) (models.Quote, error) {
	sym, err := NormalizeSymbol(symbol)
	if err != nil {
		return models.Quote{}, err
	}
	if quote, ok := s.cache.get(sym); ok {
		return quote, nil
	}

	v, err, _ := s.lookups.Do(sym, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()

		quote, err := s.source.Fetch(fetchCtx, sym)
		if err != nil {
			return nil, err
		}
		if quote.Price <= 0 {
			return nil, fmt.Errorf("rejected quote for %s: non-positive price", sym)
		}
		quote.Symbol = sym
		if quote.FetchedAt.IsZero() {
			quote.FetchedAt = time.Now()
		}
		return quote, nil
	})
	if err != nil {
		return models.Quote{}, fmt.Errorf("lookup %s failed: %w", sym, err)
	}
	return v.(models.Quote), nil
}

// Stats returns service status info
func (s *Service) Stats() map[string]interface{} {
	s.mu.Lock()
	subscriberCount := 0
	for _, entries := range s.consumers {
		subscriberCount += len(entries)
	}
	taskCount := len(s.tasks)
	s.mu.Unlock()

	return map[string]interface{}{
		"poll_tasks":       taskCount,
		"subscribers":      subscriberCount,
		"cached_symbols":   s.cache.size(),
		"quotes_published": s.quotesPublished.Load(),
		"fetch_failures":   s.fetchFailures.Load(),
		"demo_mode":        s.policy.DemoMode,
		"market_open":      s.policy.MarketOpen(time.Now()),
	}
}

// Close stops all polling and validation tasks, waits for them to
// finish, and releases the relay. The service cannot be reused.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for symbol, task := range s.tasks {
		task.cancel()
		delete(s.tasks, symbol)
	}
	s.consumers = make(map[string][]*consumerEntry)
	s.mu.Unlock()

	s.wg.Wait()

	if s.relay != nil {
		if err := s.relay.Close(); err != nil {
			log.Printf("Relay close error: %v", err)
		}
	}
	log.Println("Market data distribution service closed")
}
