package search

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/voanow/flightdeck/internal/flight"
)

// Config tunes one session's polling behavior. Zero values fall back to
// the production defaults.
type Config struct {
	// InitialInterval is the wait before each of the first
	// InitialPollCount polls; SteadyInterval applies afterwards.
	InitialInterval  time.Duration
	SteadyInterval   time.Duration
	InitialPollCount int

	// MaxPolls is the hard poll budget. Reaching it forces completion
	// with whatever was collected; that is a soft success, not an error.
	MaxPolls int

	// TransientRetryDelay is the wait after a failed poll request.
	TransientRetryDelay time.Duration

	// DebounceWindow coalesces re-renders after the first render.
	DebounceWindow time.Duration

	// FirstRenderThreshold is the offer count that permits rendering
	// before the backend signals completion.
	FirstRenderThreshold int
}

// DefaultConfig returns the production cadence.
func DefaultConfig() Config {
	return Config{
		InitialInterval:      2000 * time.Millisecond,
		SteadyInterval:       1500 * time.Millisecond,
		InitialPollCount:     5,
		MaxPolls:             40,
		TransientRetryDelay:  2000 * time.Millisecond,
		DebounceWindow:       500 * time.Millisecond,
		FirstRenderThreshold: 5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.InitialInterval <= 0 {
		c.InitialInterval = d.InitialInterval
	}
	if c.SteadyInterval <= 0 {
		c.SteadyInterval = d.SteadyInterval
	}
	if c.InitialPollCount <= 0 {
		c.InitialPollCount = d.InitialPollCount
	}
	if c.MaxPolls <= 0 {
		c.MaxPolls = d.MaxPolls
	}
	if c.TransientRetryDelay <= 0 {
		c.TransientRetryDelay = d.TransientRetryDelay
	}
	if c.DebounceWindow <= 0 {
		c.DebounceWindow = d.DebounceWindow
	}
	if c.FirstRenderThreshold <= 0 {
		c.FirstRenderThreshold = d.FirstRenderThreshold
	}
	return c
}

// Backend is the search API surface a session drives.
type Backend interface {
	Submit(ctx context.Context, q flight.Query) (string, flight.RateTable, error)
	Poll(ctx context.Context, searchID, currency string, rates flight.RateTable) (*PollResult, error)
}

// Result is a finished session. Partial marks a poll budget exhausted
// before the backend signaled completion.
type Result struct {
	SearchID string
	Offers   []flight.Offer
	Rates    flight.RateTable
	Polls    int
	Partial  bool
}

// Session owns one backend search lifecycle: its offer list, rate table,
// poll counter and render debouncer. Sessions are single-use; a new
// search gets a new Session, so stale timers can never touch new state.
type Session struct {
	backend  Backend
	cfg      Config
	log      *slog.Logger
	onRender func([]flight.Offer)

	mu       sync.Mutex
	offers   []flight.Offer
	rates    flight.RateTable
	rendered bool
	debounce *Debouncer
}

// NewSession constructs a Session. onRender, when non-nil, receives
// progressive offer snapshots: immediately once the first-render
// threshold is met, debounced afterwards, and once more on completion.
func NewSession(backend Backend, cfg Config, log *slog.Logger, onRender func([]flight.Offer)) *Session {
	cfg = cfg.withDefaults()
	return &Session{
		backend:  backend,
		cfg:      cfg,
		log:      log,
		onRender: onRender,
		rates:    flight.RateTable{},
		debounce: NewDebouncer(cfg.DebounceWindow),
	}
}

// Run submits the query and polls until the backend completes or the
// poll budget runs out. Cancelling ctx stops the session idempotently:
// no state is mutated and no render fires after Run returns.
func (s *Session) Run(ctx context.Context, q flight.Query) (*Result, error) {
	defer s.debounce.Stop()

	searchID, rates, err := s.backend.Submit(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("submitting search: %w", err)
	}
	s.mu.Lock()
	s.rates.Merge(rates)
	s.mu.Unlock()

	polls := 0
	retrying := false
	for polls < s.cfg.MaxPolls {
		// A retry waits only the retry delay; the regular poll
		// interval does not stack on top of it.
		wait := s.nextInterval(polls)
		if retrying {
			wait = s.cfg.TransientRetryDelay
			retrying = false
		}
		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}

		res, err := s.backend.Poll(ctx, searchID, q.Currency, s.snapshotRates())
		polls++
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// Transient: budget still spent.
			s.log.Warn("poll failed, retrying", "search_id", searchID, "poll", polls, "err", err)
			retrying = true
			continue
		}

		s.apply(res)

		if res.Completed {
			s.finishRender()
			return s.result(searchID, polls, false), nil
		}
	}

	// Budget exhausted: forced completion with partial results.
	s.log.Info("poll budget exhausted, completing with partial results",
		"search_id", searchID, "polls", polls)
	s.finishRender()
	return s.result(searchID, polls, true), nil
}

// nextInterval returns the wait before poll number pollsSoFar+1.
func (s *Session) nextInterval(pollsSoFar int) time.Duration {
	if pollsSoFar < s.cfg.InitialPollCount {
		return s.cfg.InitialInterval
	}
	return s.cfg.SteadyInterval
}

// apply merges one poll snapshot: proposals replace the running set
// (the backend returns cumulative snapshots, not deltas) and new rate
// entries win on collision.
func (s *Session) apply(res *PollResult) {
	s.mu.Lock()
	s.offers = res.Offers
	s.rates.Merge(res.Rates)
	firstRender := !s.rendered && len(s.offers) >= s.cfg.FirstRenderThreshold
	if firstRender {
		s.rendered = true
	}
	alreadyRendered := s.rendered && !firstRender
	s.mu.Unlock()

	if s.onRender == nil {
		return
	}
	if firstRender {
		s.onRender(s.snapshotOffers())
		return
	}
	if alreadyRendered {
		s.debounce.Trigger(func() {
			s.onRender(s.snapshotOffers())
		})
	}
}

// finishRender cancels any pending debounced render and pushes the
// final snapshot.
func (s *Session) finishRender() {
	s.debounce.Stop()
	if s.onRender != nil {
		s.onRender(s.snapshotOffers())
	}
}

func (s *Session) snapshotOffers() []flight.Offer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]flight.Offer, len(s.offers))
	copy(out, s.offers)
	return out
}

func (s *Session) snapshotRates() flight.RateTable {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(flight.RateTable, len(s.rates))
	for k, v := range s.rates {
		out[k] = v
	}
	return out
}

func (s *Session) result(searchID string, polls int, partial bool) *Result {
	return &Result{
		SearchID: searchID,
		Offers:   s.snapshotOffers(),
		Rates:    s.snapshotRates(),
		Polls:    polls,
		Partial:  partial,
	}
}

// Engine runs independent searches, one fresh Session per call.
type Engine struct {
	backend Backend
	cfg     Config
	log     *slog.Logger
}

// NewEngine constructs an Engine with the given polling configuration.
func NewEngine(backend Backend, cfg Config, log *slog.Logger) *Engine {
	return &Engine{backend: backend, cfg: cfg, log: log}
}

// Search runs one query to completion.
func (e *Engine) Search(ctx context.Context, q flight.Query) (*Result, error) {
	return NewSession(e.backend, e.cfg, e.log, nil).Run(ctx, q)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
