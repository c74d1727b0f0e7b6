// Package scheduler runs the per-token refresh loop: one recurring job
// per tracked symbol invoking the price cascade and applying positive
// results to the persisted holding. Job handles live in an in-memory
// map only; on boot the scheduler re-tracks every symbol found in the
// persisted portfolio.
package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"snipetrader/internal/domain"
	"snipetrader/internal/storage"
)

// Default timing. The immediate fetch runs shortly after tracking
// starts so the UI reflects a fresh value without waiting a full
// period.
const (
	DefaultPeriod         = 30 * time.Second
	DefaultImmediateDelay = 2 * time.Second
	fetchTimeout          = 10 * time.Second
)

// Fetcher resolves a USD valuation for a token. Implemented by the
// pricing cascade.
type Fetcher interface {
	FetchValuation(ctx context.Context, symbol, contractAddress string) (value float64, source string, ok bool)
}

// PriceChange is the notification emitted after a successful refresh.
type PriceChange struct {
	Symbol   string  `json:"symbol"`
	OldPrice float64 `json:"oldPrice"`
	NewPrice float64 `json:"newPrice"`
}

// Options configures a Scheduler.
type Options struct {
	Fetcher  Fetcher
	Holdings storage.HoldingStore

	// History receives a price point per successful refresh. Optional.
	History storage.PriceHistoryStore

	// Notify is invoked after each applied refresh. Optional;
	// fire-and-forget, absence of a listener is not an error.
	Notify func(PriceChange)

	// Period overrides the refresh interval.
	Period time.Duration

	// ImmediateDelay overrides the delay before the first fetch.
	ImmediateDelay time.Duration

	Logger *log.Logger
}

// job is one symbol's refresh loop handle.
type job struct {
	symbol  string
	address string
	cancel  context.CancelFunc
	done    chan struct{}
}

// Scheduler enforces at most one refresh job per symbol with
// cancel-before-replace semantics.
type Scheduler struct {
	fetcher        Fetcher
	holdings       storage.HoldingStore
	history        storage.PriceHistoryStore
	notify         func(PriceChange)
	period         time.Duration
	immediateDelay time.Duration
	logger         *log.Logger

	mu   sync.Mutex
	jobs map[string]*job
}

// New builds a Scheduler from opts.
func New(opts Options) *Scheduler {
	s := &Scheduler{
		fetcher:        opts.Fetcher,
		holdings:       opts.Holdings,
		history:        opts.History,
		notify:         opts.Notify,
		period:         opts.Period,
		immediateDelay: opts.ImmediateDelay,
		logger:         opts.Logger,
		jobs:           make(map[string]*job),
	}
	if s.period <= 0 {
		s.period = DefaultPeriod
	}
	if s.immediateDelay <= 0 {
		s.immediateDelay = DefaultImmediateDelay
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	return s
}

// StartTracking begins (or restarts) the refresh loop for a symbol. A
// pre-existing job for the same symbol is canceled first, so at most
// one job per symbol ever runs.
func (s *Scheduler) StartTracking(symbol, contractAddress string) {
	if symbol == "" {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	j := &job{
		symbol:  symbol,
		address: contractAddress,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	s.mu.Lock()
	if old, ok := s.jobs[symbol]; ok {
		old.cancel()
	}
	s.jobs[symbol] = j
	s.mu.Unlock()

	s.logger.Printf("scheduler: tracking %s (%s)", symbol, contractAddress)
	go s.run(ctx, j)
}

// StopTracking cancels the refresh loop for a symbol, if any.
func (s *Scheduler) StopTracking(symbol string) {
	s.mu.Lock()
	j, ok := s.jobs[symbol]
	if ok {
		delete(s.jobs, symbol)
	}
	s.mu.Unlock()
	if ok {
		j.cancel()
	}
}

// StopAll cancels every job and waits for their loops to exit, for
// process teardown.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	jobs := make([]*job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.jobs = make(map[string]*job)
	s.mu.Unlock()

	for _, j := range jobs {
		j.cancel()
	}
	for _, j := range jobs {
		<-j.done
	}
}

// Tracked returns the currently tracked symbols.
func (s *Scheduler) Tracked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.jobs))
	for sym := range s.jobs {
		out = append(out, sym)
	}
	return out
}

// Resume re-tracks every symbol in the persisted portfolio, preferring
// full contract addresses.
func (s *Scheduler) Resume(ctx context.Context) error {
	holdings, err := s.holdings.List(ctx)
	if err != nil {
		return err
	}
	for _, h := range holdings {
		s.StartTracking(h.Symbol, h.BestAddress())
	}
	return nil
}

func (s *Scheduler) run(ctx context.Context, j *job) {
	defer close(j.done)

	immediate := time.NewTimer(s.immediateDelay)
	defer immediate.Stop()
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-immediate.C:
			s.refresh(ctx, j)
		case <-ticker.C:
			s.refresh(ctx, j)
		}
	}
}

// refresh runs one cascade invocation and applies the result. A nil
// result is "skip this tick", never an error.
func (s *Scheduler) refresh(ctx context.Context, j *job) {
	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	value, source, ok := s.fetcher.FetchValuation(fetchCtx, j.symbol, j.address)
	if !ok {
		return
	}

	// A fetch that completed after its job was superseded or canceled
	// must not apply its result.
	if !s.current(j) {
		s.logger.Printf("scheduler: discarding stale result for %s", j.symbol)
		return
	}

	s.apply(ctx, j, value, source)
}

// current reports whether j is still the registered job for its symbol.
func (s *Scheduler) current(j *job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[j.symbol] == j
}

// apply re-reads the holding before writing so a refresh never clobbers
// fields another path updated while the fetch was in flight.
func (s *Scheduler) apply(ctx context.Context, j *job, value float64, source string) {
	h, err := s.holdings.Get(ctx, j.symbol)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Printf("scheduler: load %s failed: %v", j.symbol, err)
		}
		return
	}

	old := h.LastPrice
	h.LastPrice = value
	if err := s.holdings.Put(ctx, h); err != nil {
		s.logger.Printf("scheduler: store %s failed: %v", j.symbol, err)
		return
	}

	if s.history != nil {
		point := &domain.PricePoint{
			Symbol:          j.symbol,
			ContractAddress: j.address,
			Price:           value,
			Source:          source,
			TimestampMs:     time.Now().UnixMilli(),
		}
		if err := s.history.InsertBulk(ctx, []*domain.PricePoint{point}); err != nil {
			s.logger.Printf("scheduler: history append for %s failed: %v", j.symbol, err)
		}
	}

	if s.notify != nil {
		s.notify(PriceChange{Symbol: j.symbol, OldPrice: old, NewPrice: value})
	}
	s.logger.Printf("scheduler: %s price %v -> %v (%s)", j.symbol, old, value, source)
}
