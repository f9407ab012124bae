package flight

import (
	"math"
	"time"
)

// Passengers holds the per-class passenger counts of a search.
type Passengers struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
	Infants  int `json:"infants"`
}

// Total returns the full headcount, never less than 1.
// Backend totals already include infants, so the per-person divisor
// must count every class.
func (p Passengers) Total() int {
	n := p.Adults + p.Children + p.Infants
	if n < 1 {
		return 1
	}
	return n
}

// Query is one search submission. Destination may be empty in
// discovery mode.
type Query struct {
	Origin        string     `json:"origin"`
	Destination   string     `json:"destination,omitempty"`
	DepartureDate string     `json:"departure_date"`
	ReturnDate    *string    `json:"return_date,omitempty"`
	Passengers    Passengers `json:"passengers"`
	Currency      string     `json:"currency"`
}

// Airline identifies a carrier.
type Airline struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Leg is a single flight between two airports.
type Leg struct {
	Airline          Airline   `json:"airline"`
	DepartureAirport string    `json:"departure_airport"`
	ArrivalAirport   string    `json:"arrival_airport"`
	DepartureTime    time.Time `json:"departure_time"`
	ArrivalTime      time.Time `json:"arrival_time"`
}

// OvernightDays returns the calendar-day difference between arrival and
// departure, both truncated to midnight. A positive value is rendered
// as a "+N day" indicator next to the arrival time.
func (l Leg) OvernightDays() int {
	dep := midnight(l.DepartureTime)
	arr := midnight(l.ArrivalTime)
	return int(arr.Sub(dep).Hours() / 24)
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// MinuteOfDay returns the minute-of-day (0-1439) of t in its own location.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// Baggage records allowance presence for a segment.
type Baggage struct {
	Handbag bool `json:"handbag"`
	Checked bool `json:"checked"`
}

// Segment is an ordered chain of legs flown as one direction of an offer.
type Segment struct {
	Legs          []Leg   `json:"legs"`
	Stops         int     `json:"stops"`
	TotalDuration int     `json:"total_duration_minutes"`
	Baggage       Baggage `json:"baggage"`
}

// NewSegment builds a Segment, deriving Stops from the leg count so the
// stops == len(legs)-1 invariant always holds.
func NewSegment(legs []Leg, totalDuration int, baggage Baggage) Segment {
	stops := len(legs) - 1
	if stops < 0 {
		stops = 0
	}
	return Segment{
		Legs:          legs,
		Stops:         stops,
		TotalDuration: totalDuration,
		Baggage:       baggage,
	}
}

// DepartureAirport returns the segment's first departure airport.
func (s Segment) DepartureAirport() string {
	if len(s.Legs) == 0 {
		return ""
	}
	return s.Legs[0].DepartureAirport
}

// ArrivalAirport returns the segment's final arrival airport.
func (s Segment) ArrivalAirport() string {
	if len(s.Legs) == 0 {
		return ""
	}
	return s.Legs[len(s.Legs)-1].ArrivalAirport
}

// Term is one reseller ("gate") selling an offer.
type Term struct {
	Gate             string  `json:"gate_name"`
	URL              string  `json:"url"`
	Price            float64 `json:"price"`
	OriginalCurrency string  `json:"original_currency"`
}

// Offer is one priced itinerary: outbound segment plus optional return,
// with one or more selling terms ordered cheapest first.
type Offer struct {
	Price    float64   `json:"price"`
	Segments []Segment `json:"segments"`
	Terms    []Term    `json:"terms"`
}

// NewOffer builds an Offer whose Price is taken from the cheapest term,
// keeping terms[0].price == price.
func NewOffer(segments []Segment, terms []Term) Offer {
	o := Offer{Segments: segments, Terms: terms}
	if len(terms) > 0 {
		o.Price = terms[0].Price
	}
	return o
}

// Outbound returns the outbound segment, or nil for a malformed offer.
func (o Offer) Outbound() *Segment {
	if len(o.Segments) == 0 {
		return nil
	}
	return &o.Segments[0]
}

// Return returns the return segment, or nil for one-way offers.
func (o Offer) Return() *Segment {
	if len(o.Segments) < 2 {
		return nil
	}
	return &o.Segments[1]
}

// Carriers returns the set of airline codes appearing in any segment.
func (o Offer) Carriers() []string {
	seen := make(map[string]bool)
	var codes []string
	for _, s := range o.Segments {
		for _, l := range s.Legs {
			if l.Airline.Code != "" && !seen[l.Airline.Code] {
				seen[l.Airline.Code] = true
				codes = append(codes, l.Airline.Code)
			}
		}
	}
	return codes
}

// MaxStops returns the maximum stop count over all segments.
func (o Offer) MaxStops() int {
	max := 0
	for _, s := range o.Segments {
		if s.Stops > max {
			max = s.Stops
		}
	}
	return max
}

// OutboundDuration returns the outbound segment's total duration in
// minutes and whether it is known.
func (o Offer) OutboundDuration() (int, bool) {
	out := o.Outbound()
	if out == nil || out.TotalDuration <= 0 {
		return 0, false
	}
	return out.TotalDuration, true
}

// PricePerPerson divides a total fare across the full headcount,
// rounded to the nearest unit.
func PricePerPerson(total float64, pax Passengers) float64 {
	return math.Round(total / float64(pax.Total()))
}

// RateTable maps currency codes to conversion rates as delivered by the
// search backend.
type RateTable map[string]float64

// Merge unions newer into the table; newer entries win on collision.
func (r RateTable) Merge(newer RateTable) {
	for code, rate := range newer {
		r[code] = rate
	}
}
