package discover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// batchSize bounds outstanding backend requests per batch. Batches are
// strictly sequential; only requests within a batch run concurrently.
const batchSize = 3

// ErrNoDestinations means no combination produced a priced destination.
// Distinct from a below-budget outcome so the caller can message each
// state differently.
var ErrNoDestinations = errors.New("no destinations with priced offers")

// DestinationSearcher is the backend call made once per combination.
type DestinationSearcher interface {
	Destinations(ctx context.Context, q ComboQuery) ([]Destination, error)
}

// Request is one multi-date discovery search.
type Request struct {
	Origin        string
	OutboundDates []string
	ReturnDates   []string
	Preferences   []string
	Currency      string
	Scope         string
}

// Orchestrator fans a discovery search out over every valid date
// combination and merges the results into a deduplicated destination set.
type Orchestrator struct {
	client DestinationSearcher
	log    *slog.Logger
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(client DestinationSearcher, log *slog.Logger) *Orchestrator {
	return &Orchestrator{client: client, log: log}
}

// Search runs all valid combinations in bounded batches and returns the
// aggregated destinations sorted ascending by best price. Per-combination
// failures are non-fatal and logged; ErrNoDestinations is returned when
// nothing priced came back at all.
func (o *Orchestrator) Search(ctx context.Context, req Request) ([]AggregatedDestination, error) {
	combos := Combinations(req.OutboundDates, req.ReturnDates)
	if len(combos) == 0 {
		return nil, fmt.Errorf("no valid date combination: %w", ErrNoDestinations)
	}

	byKey := make(map[string]*AggregatedDestination)

	for start := 0; start < len(combos); start += batchSize {
		end := start + batchSize
		if end > len(combos) {
			end = len(combos)
		}
		batch := combos[start:end]

		results := make([][]Destination, len(batch))
		var mu sync.Mutex

		g, gCtx := errgroup.WithContext(ctx)
		for i, combo := range batch {
			g.Go(func() error {
				dests, err := o.client.Destinations(gCtx, ComboQuery{
					Origin:      req.Origin,
					Combo:       combo,
					Preferences: req.Preferences,
					Currency:    req.Currency,
					Scope:       req.Scope,
				})
				if err != nil {
					o.log.Warn("combination search failed",
						"outbound", combo.Outbound, "return", combo.Return, "err", err)
					return nil
				}
				mu.Lock()
				results[i] = dests
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("searching combinations: %w", err)
		}

		// Merge the whole batch before the next one starts.
		for i, dests := range results {
			for _, d := range dests {
				merge(byKey, batch[i], d)
			}
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	out := make([]AggregatedDestination, 0, len(byKey))
	for _, d := range byKey {
		out = append(out, *d)
	}
	if len(out) == 0 {
		return nil, ErrNoDestinations
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out, nil
}

// identityKey deduplicates destinations across combinations.
func identityKey(name, country string) string {
	return strings.ToLower(strings.TrimSpace(name)) + "|" + strings.ToLower(strings.TrimSpace(country))
}

// merge folds one destination entry into the aggregate map. A strictly
// lower price replaces the stored best offer and combination; every
// entry is recorded as an option and counts as a match.
func merge(byKey map[string]*AggregatedDestination, combo DateCombo, d Destination) {
	if d.Price <= 0 {
		return
	}

	key := identityKey(d.Name, d.Country)
	agg, seen := byKey[key]
	if !seen {
		agg = &AggregatedDestination{
			Name:      d.Name,
			Country:   d.Country,
			Price:     d.Price,
			BestCombo: combo,
			Offer:     d.Offer,
		}
		byKey[key] = agg
	} else if d.Price < agg.Price {
		agg.Price = d.Price
		agg.BestCombo = combo
		agg.Offer = d.Offer
	}

	agg.Matches++
	agg.Options = append(agg.Options, Option{
		Combo:          combo,
		Price:          d.Price,
		SegmentSummary: d.SegmentSummary,
	})
}
