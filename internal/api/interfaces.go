package api

import (
	"context"

	"github.com/voanow/flightdeck/internal/discover"
	"github.com/voanow/flightdeck/internal/flight"
	"github.com/voanow/flightdeck/internal/search"
	"github.com/voanow/flightdeck/internal/storage"
)

// FlightSearcher runs one search to completion.
type FlightSearcher interface {
	Search(ctx context.Context, q flight.Query) (*search.Result, error)
}

// ResultCache defines the cache operations needed by handlers.
type ResultCache interface {
	Get(ctx context.Context, q flight.Query) (*search.Result, error)
	Set(ctx context.Context, q flight.Query, res *search.Result) error
}

// SearchHistory records finished searches.
type SearchHistory interface {
	SaveSearch(ctx context.Context, rec storage.SearchRecord) error
}

// DestinationFinder runs a multi-date discovery search.
type DestinationFinder interface {
	Search(ctx context.Context, req discover.Request) ([]discover.AggregatedDestination, error)
}

// BookingClicker resolves a booking click-through redirect.
type BookingClicker interface {
	BookingClick(ctx context.Context, searchID, termsURL string) (*search.BookingRedirect, error)
}
