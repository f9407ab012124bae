// Package filter evaluates a multi-dimensional predicate over an offer
// set. Filtering is pure and conjunctive: an offer passes only when
// every configured dimension accepts it.
package filter

import (
	"math"

	"github.com/voanow/flightdeck/internal/flight"
)

// StopsMode restricts offers by their maximum stop count.
type StopsMode int

const (
	StopsAny StopsMode = iota
	StopsDirect
	StopsMaxOne
)

// AllowSet is an explicit allow-list of codes. A nil set means "allow
// all"; a non-nil empty set is a valid "exclude everything" state, since
// the UI lets the user deselect every checkbox.
type AllowSet map[string]struct{}

// NewAllowSet builds a non-nil AllowSet from the given codes.
func NewAllowSet(codes ...string) AllowSet {
	s := make(AllowSet, len(codes))
	for _, c := range codes {
		s[c] = struct{}{}
	}
	return s
}

func (s AllowSet) allows(code string) bool {
	if s == nil {
		return true
	}
	_, ok := s[code]
	return ok
}

// TimeWindow is an inclusive [min, max] minute-of-day range.
type TimeWindow struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// FullDay returns the window that accepts any time of day.
func FullDay() TimeWindow {
	return TimeWindow{Min: 0, Max: 1439}
}

// Contains reports whether minute m falls within the window.
func (w TimeWindow) Contains(m int) bool {
	return m >= w.Min && m <= w.Max
}

// Spec is one filter configuration.
type Spec struct {
	Stops    StopsMode
	Airlines AllowSet
	Airports AllowSet

	OutboundDeparture TimeWindow
	OutboundArrival   TimeWindow
	ReturnDeparture   TimeWindow
	ReturnArrival     TimeWindow

	// MaxPrice is a per-person ceiling; +Inf means no ceiling.
	MaxPrice float64
	// MaxDuration caps the outbound duration in minutes.
	MaxDuration int
}

// DefaultSpec returns the all-pass configuration.
func DefaultSpec() Spec {
	return Spec{
		Stops:             StopsAny,
		OutboundDeparture: FullDay(),
		OutboundArrival:   FullDay(),
		ReturnDeparture:   FullDay(),
		ReturnArrival:     FullDay(),
		MaxPrice:          math.Inf(1),
		MaxDuration:       math.MaxInt,
	}
}

// Apply returns the offers accepted by spec. The input slice is never
// mutated.
func Apply(offers []flight.Offer, spec Spec, pax flight.Passengers) []flight.Offer {
	result := make([]flight.Offer, 0, len(offers))
	for _, o := range offers {
		if matches(o, spec, pax) {
			result = append(result, o)
		}
	}
	return result
}

func matches(o flight.Offer, spec Spec, pax flight.Passengers) bool {
	switch spec.Stops {
	case StopsDirect:
		if o.MaxStops() != 0 {
			return false
		}
	case StopsMaxOne:
		if o.MaxStops() > 1 {
			return false
		}
	}

	for _, carrier := range o.Carriers() {
		if !spec.Airlines.allows(carrier) {
			return false
		}
	}
	if spec.Airlines != nil && len(o.Carriers()) == 0 {
		return false
	}

	if spec.Airports != nil {
		for _, s := range o.Segments {
			if !spec.Airports.allows(s.DepartureAirport()) || !spec.Airports.allows(s.ArrivalAirport()) {
				return false
			}
		}
	}

	if out := o.Outbound(); out != nil && len(out.Legs) > 0 {
		dep := flight.MinuteOfDay(out.Legs[0].DepartureTime)
		arr := flight.MinuteOfDay(out.Legs[len(out.Legs)-1].ArrivalTime)
		if !spec.OutboundDeparture.Contains(dep) || !spec.OutboundArrival.Contains(arr) {
			return false
		}
	}
	if ret := o.Return(); ret != nil && len(ret.Legs) > 0 {
		dep := flight.MinuteOfDay(ret.Legs[0].DepartureTime)
		arr := flight.MinuteOfDay(ret.Legs[len(ret.Legs)-1].ArrivalTime)
		if !spec.ReturnDeparture.Contains(dep) || !spec.ReturnArrival.Contains(arr) {
			return false
		}
	}

	if flight.PricePerPerson(o.Price, pax) > spec.MaxPrice {
		return false
	}
	if dur, ok := o.OutboundDuration(); ok && dur > spec.MaxDuration {
		return false
	}

	return true
}
