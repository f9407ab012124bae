// Package facet derives the filterable dimensions of the current offer
// set. Facets are recomputed on every offer-set mutation and are never
// stale relative to the offers they describe.
package facet

import (
	"github.com/voanow/flightdeck/internal/flight"
)

// PriceRange is the [min, max] of price-per-person over the offer set.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// DurationRange is the [min, max] outbound duration in minutes.
type DurationRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// AirlineFacet is one carrier appearing in the offer set and the
// cheapest per-person fare it appears in.
type AirlineFacet struct {
	Name     string  `json:"name"`
	MinPrice float64 `json:"min_price"`
}

// Facets is the derived filter state for one offer set.
type Facets struct {
	Price    PriceRange              `json:"price"`
	Duration DurationRange           `json:"duration"`
	Airlines map[string]AirlineFacet `json:"airlines"`
	Airports map[string]int          `json:"airports"`
}

// AirportFilterEnabled reports whether the airport facet is meaningful.
// With 2 or fewer distinct codes the query hit a single airport pair and
// airport filtering would be a no-op, so the facet is suppressed.
func (f Facets) AirportFilterEnabled() bool {
	return len(f.Airports) > 2
}

// Compute derives facets from the current offer set. Pure, O(offers × legs).
func Compute(offers []flight.Offer, pax flight.Passengers) Facets {
	f := Facets{
		Airlines: make(map[string]AirlineFacet),
		Airports: make(map[string]int),
	}

	first := true
	durFirst := true
	for _, o := range offers {
		pp := flight.PricePerPerson(o.Price, pax)
		if first || pp < f.Price.Min {
			f.Price.Min = pp
		}
		if first || pp > f.Price.Max {
			f.Price.Max = pp
		}
		first = false

		if dur, ok := o.OutboundDuration(); ok {
			if durFirst || dur < f.Duration.Min {
				f.Duration.Min = dur
			}
			if durFirst || dur > f.Duration.Max {
				f.Duration.Max = dur
			}
			durFirst = false
		}

		for _, s := range o.Segments {
			for _, l := range s.Legs {
				code := l.Airline.Code
				if code == "" {
					continue
				}
				cur, seen := f.Airlines[code]
				if !seen || pp < cur.MinPrice {
					name := l.Airline.Name
					if name == "" {
						name = cur.Name
					}
					f.Airlines[code] = AirlineFacet{Name: name, MinPrice: pp}
				}
			}
			if dep := s.DepartureAirport(); dep != "" {
				f.Airports[dep]++
			}
			if arr := s.ArrivalAirport(); arr != "" {
				f.Airports[arr]++
			}
		}
	}

	return f
}
