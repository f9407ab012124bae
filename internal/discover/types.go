package discover

import "github.com/voanow/flightdeck/internal/flight"

// DateCombo is one (outbound, return) date pair of a multi-date search.
type DateCombo struct {
	Outbound string `json:"outbound"`
	Return   string `json:"return"`
}

// Destination is one priced destination entry returned by the discovery
// backend for a single date combination.
type Destination struct {
	Name           string        `json:"name"`
	Country        string        `json:"country"`
	Price          float64       `json:"price"`
	SegmentSummary string        `json:"segment_summary"`
	Offer          *flight.Offer `json:"offer,omitempty"`
}

// Option records one combination that matched a destination.
type Option struct {
	Combo          DateCombo `json:"combo"`
	Price          float64   `json:"price"`
	SegmentSummary string    `json:"segment_summary"`
}

// AggregatedDestination is the deduplicated view of a destination across
// all searched combinations. Price always holds the minimum observed.
type AggregatedDestination struct {
	Name      string        `json:"name"`
	Country   string        `json:"country"`
	Price     float64       `json:"price"`
	BestCombo DateCombo     `json:"best_combo"`
	Offer     *flight.Offer `json:"offer,omitempty"`
	Matches   int           `json:"matches"`
	Options   []Option      `json:"options"`
}
