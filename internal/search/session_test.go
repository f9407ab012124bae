package search_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voanow/flightdeck/internal/flight"
	"github.com/voanow/flightdeck/internal/search"
)

type fakeBackend struct {
	submitFn func(ctx context.Context, q flight.Query) (string, flight.RateTable, error)
	pollFn   func(ctx context.Context, searchID, currency string, rates flight.RateTable) (*search.PollResult, error)
}

func (f *fakeBackend) Submit(ctx context.Context, q flight.Query) (string, flight.RateTable, error) {
	return f.submitFn(ctx, q)
}

func (f *fakeBackend) Poll(ctx context.Context, searchID, currency string, rates flight.RateTable) (*search.PollResult, error) {
	return f.pollFn(ctx, searchID, currency, rates)
}

func testLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fastConfig keeps tests quick while preserving the cadence shape.
func fastConfig() search.Config {
	return search.Config{
		InitialInterval:      time.Millisecond,
		SteadyInterval:       time.Millisecond,
		InitialPollCount:     5,
		MaxPolls:             40,
		TransientRetryDelay:  time.Millisecond,
		DebounceWindow:       200 * time.Millisecond,
		FirstRenderThreshold: 5,
	}
}

func okSubmit(id string, rates flight.RateTable) func(context.Context, flight.Query) (string, flight.RateTable, error) {
	return func(_ context.Context, _ flight.Query) (string, flight.RateTable, error) {
		return id, rates, nil
	}
}

func nOffers(n int) []flight.Offer {
	out := make([]flight.Offer, n)
	for i := range out {
		out[i] = flight.NewOffer(nil, []flight.Term{{Price: float64(100 + i)}})
	}
	return out
}

// renderRecorder collects render snapshots under a lock.
type renderRecorder struct {
	mu    sync.Mutex
	calls [][]flight.Offer
}

func (r *renderRecorder) render(offers []flight.Offer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, offers)
}

func (r *renderRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestSession_CompletesOnBackendSignal(t *testing.T) {
	polls := 0
	backend := &fakeBackend{
		submitFn: okSubmit("s-1", nil),
		pollFn: func(_ context.Context, _, _ string, _ flight.RateTable) (*search.PollResult, error) {
			polls++
			if polls < 2 {
				return &search.PollResult{Offers: nOffers(2)}, nil
			}
			return &search.PollResult{Offers: nOffers(3), Completed: true}, nil
		},
	}

	s := search.NewSession(backend, fastConfig(), testLog(), nil)
	res, err := s.Run(context.Background(), flight.Query{Origin: "GRU", Currency: "BRL"})
	require.NoError(t, err)

	assert.Equal(t, "s-1", res.SearchID)
	assert.False(t, res.Partial)
	assert.Equal(t, 2, res.Polls)
	assert.Len(t, res.Offers, 3, "each poll replaces the full running set")
}

func TestSession_SubmissionFailureIsHard(t *testing.T) {
	backend := &fakeBackend{
		submitFn: func(_ context.Context, _ flight.Query) (string, flight.RateTable, error) {
			return "", nil, &search.SubmissionError{Status: 502}
		},
		pollFn: func(_ context.Context, _, _ string, _ flight.RateTable) (*search.PollResult, error) {
			t.Fatal("poll must not run after a failed submission")
			return nil, nil
		},
	}

	s := search.NewSession(backend, fastConfig(), testLog(), nil)
	_, err := s.Run(context.Background(), flight.Query{Origin: "GRU"})
	require.Error(t, err)

	var subErr *search.SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, 502, subErr.Status)
}

func TestSession_TransientPollRetried(t *testing.T) {
	polls := 0
	backend := &fakeBackend{
		submitFn: okSubmit("s-1", nil),
		pollFn: func(_ context.Context, _, _ string, _ flight.RateTable) (*search.PollResult, error) {
			polls++
			if polls == 1 {
				return nil, fmt.Errorf("connection reset")
			}
			return &search.PollResult{Offers: nOffers(1), Completed: true}, nil
		},
	}

	s := search.NewSession(backend, fastConfig(), testLog(), nil)
	res, err := s.Run(context.Background(), flight.Query{Origin: "GRU"})
	require.NoError(t, err, "a poll network failure is transient")
	assert.Equal(t, 2, res.Polls, "the failed poll still spends budget")
	assert.Len(t, res.Offers, 1)
}

func TestSession_TransientRetryWaitsOnlyRetryDelay(t *testing.T) {
	cfg := fastConfig()
	cfg.InitialInterval = 200 * time.Millisecond
	cfg.SteadyInterval = 200 * time.Millisecond
	cfg.TransientRetryDelay = 50 * time.Millisecond

	var failedAt, retriedAt time.Time
	polls := 0
	backend := &fakeBackend{
		submitFn: okSubmit("s-1", nil),
		pollFn: func(_ context.Context, _, _ string, _ flight.RateTable) (*search.PollResult, error) {
			polls++
			if polls == 1 {
				failedAt = time.Now()
				return nil, fmt.Errorf("connection reset")
			}
			retriedAt = time.Now()
			return &search.PollResult{Offers: nOffers(1), Completed: true}, nil
		},
	}

	s := search.NewSession(backend, cfg, testLog(), nil)
	res, err := s.Run(context.Background(), flight.Query{Origin: "GRU"})
	require.NoError(t, err)
	require.Equal(t, 2, res.Polls)

	gap := retriedAt.Sub(failedAt)
	assert.GreaterOrEqual(t, gap, cfg.TransientRetryDelay)
	assert.Less(t, gap, cfg.InitialInterval,
		"the retry must not stack the poll interval on top of the retry delay")
}

func TestSession_PollBudgetForcesCompletion(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxPolls = 4

	backend := &fakeBackend{
		submitFn: okSubmit("s-1", nil),
		pollFn: func(_ context.Context, _, _ string, _ flight.RateTable) (*search.PollResult, error) {
			return &search.PollResult{Offers: nOffers(2)}, nil // never completed
		},
	}

	s := search.NewSession(backend, cfg, testLog(), nil)
	res, err := s.Run(context.Background(), flight.Query{Origin: "GRU"})
	require.NoError(t, err, "budget exhaustion is a soft success")
	assert.True(t, res.Partial)
	assert.Equal(t, 4, res.Polls)
	assert.Len(t, res.Offers, 2, "collected offers are kept")
}

func TestSession_RatesMergedNewWins(t *testing.T) {
	backend := &fakeBackend{
		submitFn: okSubmit("s-1", flight.RateTable{"USD": 5.0, "EUR": 6.0}),
		pollFn: func(_ context.Context, _, _ string, _ flight.RateTable) (*search.PollResult, error) {
			return &search.PollResult{
				Offers:    nOffers(1),
				Completed: true,
				Rates:     flight.RateTable{"USD": 5.2, "GBP": 7.1},
			}, nil
		},
	}

	s := search.NewSession(backend, fastConfig(), testLog(), nil)
	res, err := s.Run(context.Background(), flight.Query{Origin: "GRU"})
	require.NoError(t, err)
	assert.Equal(t, flight.RateTable{"USD": 5.2, "EUR": 6.0, "GBP": 7.1}, res.Rates)
}

func TestSession_FirstRenderAtThreshold(t *testing.T) {
	rec := &renderRecorder{}
	polls := 0
	backend := &fakeBackend{
		submitFn: okSubmit("s-1", nil),
		pollFn: func(_ context.Context, _, _ string, _ flight.RateTable) (*search.PollResult, error) {
			polls++
			switch polls {
			case 1:
				return &search.PollResult{Offers: nOffers(4)}, nil // below threshold
			case 2:
				return &search.PollResult{Offers: nOffers(5)}, nil // threshold reached
			default:
				return &search.PollResult{Offers: nOffers(6), Completed: true}, nil
			}
		},
	}

	s := search.NewSession(backend, fastConfig(), testLog(), rec.render)
	res, err := s.Run(context.Background(), flight.Query{Origin: "GRU"})
	require.NoError(t, err)
	require.Len(t, res.Offers, 6)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.GreaterOrEqual(t, len(rec.calls), 2)
	assert.Len(t, rec.calls[0], 5, "first render fires as soon as the threshold is met")
	assert.Len(t, rec.calls[len(rec.calls)-1], 6, "completion flushes the final set")
}

func TestSession_DebounceCollapsesBurstyPolls(t *testing.T) {
	cfg := fastConfig()
	cfg.FirstRenderThreshold = 1
	cfg.DebounceWindow = 300 * time.Millisecond

	rec := &renderRecorder{}
	polls := 0
	backend := &fakeBackend{
		submitFn: okSubmit("s-1", nil),
		pollFn: func(_ context.Context, _, _ string, _ flight.RateTable) (*search.PollResult, error) {
			polls++
			if polls < 5 {
				return &search.PollResult{Offers: nOffers(polls)}, nil
			}
			return &search.PollResult{Offers: nOffers(polls), Completed: true}, nil
		},
	}

	s := search.NewSession(backend, cfg, testLog(), rec.render)
	_, err := s.Run(context.Background(), flight.Query{Origin: "GRU"})
	require.NoError(t, err)

	// First render plus the completion flush; intermediate mutations
	// landed inside one debounce window and collapsed.
	assert.Equal(t, 2, rec.count())
}

func TestSession_CancellationIsIdempotent(t *testing.T) {
	rec := &renderRecorder{}
	backend := &fakeBackend{
		submitFn: okSubmit("s-1", nil),
		pollFn: func(ctx context.Context, _, _ string, _ flight.RateTable) (*search.PollResult, error) {
			return &search.PollResult{Offers: nOffers(6)}, nil // never completes
		},
	}

	cfg := fastConfig()
	cfg.InitialInterval = 5 * time.Millisecond
	cfg.SteadyInterval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	s := search.NewSession(backend, cfg, testLog(), rec.render)

	done := make(chan error, 1)
	go func() {
		_, err := s.Run(ctx, flight.Query{Origin: "GRU"})
		done <- err
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	cancel() // second cancel is a no-op

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("session did not stop after cancellation")
	}

	// No late render may arrive once Run has returned.
	settled := rec.count()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, settled, rec.count(), "stale timers must not fire into dead sessions")
}

func TestSession_ZeroOffersIsDistinctState(t *testing.T) {
	backend := &fakeBackend{
		submitFn: okSubmit("s-1", nil),
		pollFn: func(_ context.Context, _, _ string, _ flight.RateTable) (*search.PollResult, error) {
			return &search.PollResult{Completed: true}, nil
		},
	}

	s := search.NewSession(backend, fastConfig(), testLog(), nil)
	res, err := s.Run(context.Background(), flight.Query{Origin: "GRU"})
	require.NoError(t, err)
	assert.Empty(t, res.Offers)
	assert.False(t, res.Partial, "empty result is not the same as a timeout")
}

func TestEngine_EachSearchIsIndependent(t *testing.T) {
	polls := 0
	backend := &fakeBackend{
		submitFn: okSubmit("s-1", nil),
		pollFn: func(_ context.Context, _, _ string, _ flight.RateTable) (*search.PollResult, error) {
			polls++
			return &search.PollResult{Offers: nOffers(1), Completed: true}, nil
		},
	}

	e := search.NewEngine(backend, fastConfig(), testLog())

	first, err := e.Search(context.Background(), flight.Query{Origin: "GRU"})
	require.NoError(t, err)
	second, err := e.Search(context.Background(), flight.Query{Origin: "GRU"})
	require.NoError(t, err)

	// A fresh session per call: poll counters never accumulate.
	assert.Equal(t, 1, first.Polls)
	assert.Equal(t, 1, second.Polls)
	assert.Equal(t, 2, polls)
}

func TestSession_PollErrorAfterCancelReturnsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	backend := &fakeBackend{
		submitFn: okSubmit("s-1", nil),
		pollFn: func(ctx context.Context, _, _ string, _ flight.RateTable) (*search.PollResult, error) {
			cancel()
			return nil, errors.New("request aborted")
		},
	}

	s := search.NewSession(backend, fastConfig(), testLog(), nil)
	_, err := s.Run(ctx, flight.Query{Origin: "GRU"})
	assert.ErrorIs(t, err, context.Canceled)
}
