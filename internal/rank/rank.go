// Package rank orders a filtered offer list under one of three total
// orders: cheapest, fastest, or a weighted best-value score.
package rank

import (
	"sort"

	"github.com/voanow/flightdeck/internal/facet"
	"github.com/voanow/flightdeck/internal/flight"
)

// Strategy selects one of the supported orderings.
type Strategy string

const (
	Cheapest Strategy = "cheapest"
	Fastest  Strategy = "fastest"
	Best     Strategy = "best"
)

const (
	priceWeight    = 0.55
	durationWeight = 0.30
	stopsWeight    = 0.15

	stopsPenaltyPerStop = 0.1
	stopsPenaltyCap     = 0.2
)

// Sort returns a new slice ordered under the given strategy. The best
// strategy normalizes against the current facet bounds, so facets must
// be recomputed before ranking whenever the offer set mutates.
func Sort(offers []flight.Offer, s Strategy, f facet.Facets, pax flight.Passengers) []flight.Offer {
	out := make([]flight.Offer, len(offers))
	copy(out, offers)

	switch s {
	case Fastest:
		sort.SliceStable(out, func(i, j int) bool {
			return effectiveDuration(out[i], f) < effectiveDuration(out[j], f)
		})
	case Best:
		sort.SliceStable(out, func(i, j int) bool {
			return Score(out[i], f, pax) < Score(out[j], f, pax)
		})
	default: // Cheapest
		sort.SliceStable(out, func(i, j int) bool {
			return flight.PricePerPerson(out[i].Price, pax) < flight.PricePerPerson(out[j].Price, pax)
		})
	}

	return out
}

// Score computes the weighted normalized best-value score; lower is
// better. Price dominates, with duration and indirection as penalties.
func Score(o flight.Offer, f facet.Facets, pax flight.Passengers) float64 {
	price := normalize(
		flight.PricePerPerson(o.Price, pax),
		f.Price.Min, f.Price.Max,
	)
	duration := normalize(
		float64(effectiveDuration(o, f)),
		float64(f.Duration.Min), float64(f.Duration.Max),
	)

	stops := float64(o.MaxStops()) * stopsPenaltyPerStop
	if stops > stopsPenaltyCap {
		stops = stopsPenaltyCap
	}

	return priceWeight*price + durationWeight*duration + stopsWeight*stops
}

// effectiveDuration treats a missing duration as the worst case in the
// current set rather than excluding the offer.
func effectiveDuration(o flight.Offer, f facet.Facets) int {
	if dur, ok := o.OutboundDuration(); ok {
		return dur
	}
	return f.Duration.Max
}

func normalize(x, min, max float64) float64 {
	span := max - min
	if span < 1 {
		span = 1
	}
	return (x - min) / span
}
