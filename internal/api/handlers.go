package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/voanow/flightdeck/internal/deeplink"
	"github.com/voanow/flightdeck/internal/discover"
	"github.com/voanow/flightdeck/internal/facet"
	"github.com/voanow/flightdeck/internal/filter"
	"github.com/voanow/flightdeck/internal/flight"
	"github.com/voanow/flightdeck/internal/rank"
	"github.com/voanow/flightdeck/internal/search"
	"github.com/voanow/flightdeck/internal/storage"
)

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	searcher FlightSearcher
	cache    ResultCache
	history  SearchHistory
	finder   DestinationFinder
	booker   BookingClicker
	log      *slog.Logger
}

// NewHandlers constructs Handlers with all required dependencies.
func NewHandlers(searcher FlightSearcher, cache ResultCache, history SearchHistory, finder DestinationFinder, booker BookingClicker, log *slog.Logger) *Handlers {
	return &Handlers{
		searcher: searcher,
		cache:    cache,
		history:  history,
		finder:   finder,
		booker:   booker,
		log:      log,
	}
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// filterRequest is the optional filter block of a search request.
// Pointer fields distinguish "not sent" from deliberately empty: an
// empty airline list means the user deselected every carrier.
type filterRequest struct {
	Stops       string             `json:"stops,omitempty"`
	Airlines    *[]string          `json:"airlines,omitempty"`
	Airports    *[]string          `json:"airports,omitempty"`
	MaxPrice    *float64           `json:"max_price,omitempty"`
	MaxDuration *int               `json:"max_duration_minutes,omitempty"`
	OutboundDep *filter.TimeWindow `json:"outbound_departure,omitempty"`
	OutboundArr *filter.TimeWindow `json:"outbound_arrival,omitempty"`
	ReturnDep   *filter.TimeWindow `json:"return_departure,omitempty"`
	ReturnArr   *filter.TimeWindow `json:"return_arrival,omitempty"`
}

func (f *filterRequest) toSpec() filter.Spec {
	spec := filter.DefaultSpec()
	if f == nil {
		return spec
	}

	switch f.Stops {
	case "direct":
		spec.Stops = filter.StopsDirect
	case "max_one":
		spec.Stops = filter.StopsMaxOne
	}
	if f.Airlines != nil {
		spec.Airlines = filter.NewAllowSet(*f.Airlines...)
	}
	if f.Airports != nil {
		spec.Airports = filter.NewAllowSet(*f.Airports...)
	}
	if f.MaxPrice != nil && *f.MaxPrice > 0 {
		spec.MaxPrice = *f.MaxPrice
	}
	if f.MaxDuration != nil && *f.MaxDuration > 0 {
		spec.MaxDuration = *f.MaxDuration
	}
	if f.OutboundDep != nil {
		spec.OutboundDeparture = *f.OutboundDep
	}
	if f.OutboundArr != nil {
		spec.OutboundArrival = *f.OutboundArr
	}
	if f.ReturnDep != nil {
		spec.ReturnDeparture = *f.ReturnDep
	}
	if f.ReturnArr != nil {
		spec.ReturnArrival = *f.ReturnArr
	}
	return spec
}

type searchRequest struct {
	flight.Query
	Sort    string         `json:"sort,omitempty"`
	Filters *filterRequest `json:"filters,omitempty"`
}

// offerView is one ranked offer as presented to the client.
type offerView struct {
	flight.Offer
	PricePerPerson float64 `json:"price_per_person"`
	BookingURL     string  `json:"booking_url,omitempty"`
}

type searchResponse struct {
	SearchID    string       `json:"search_id"`
	Partial     bool         `json:"partial"`
	Polls       int          `json:"polls"`
	TotalOffers int          `json:"total_offers"`
	Facets      facet.Facets `json:"facets"`
	Offers      []offerView  `json:"offers"`

	// AirportFilterEnabled mirrors the facet suppression rule: with 2
	// or fewer distinct airports the airports map is a no-op filter
	// and clients should hide it.
	AirportFilterEnabled bool `json:"airport_filter_enabled"`

	// FilteredOut is true when offers exist but the active filters
	// rejected all of them, so the UI can offer to clear filters
	// instead of reporting an empty market.
	FilteredOut bool `json:"filtered_out"`

	// Message carries the empty-result explanation; empty otherwise.
	Message string `json:"message,omitempty"`
}

// SearchFlights handles POST /api/v1/flights/search.
// Validates the query, serves from cache when possible, otherwise runs a
// full polling session, then returns facets plus the filtered and ranked
// offer view with booking deep links.
func (h *Handlers) SearchFlights(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := req.Query.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	res, err := h.cache.Get(r.Context(), req.Query)
	if err != nil {
		h.log.Error("cache get failed", "origin", req.Origin, "destination", req.Destination, "err", err)
	}
	if res == nil {
		res, err = h.searcher.Search(r.Context(), req.Query)
		if err != nil {
			var subErr *search.SubmissionError
			if errors.As(err, &subErr) {
				h.log.Error("search submission rejected", "status", subErr.Status)
				writeJSON(w, http.StatusBadGateway, map[string]string{"error": "search backend rejected the request"})
				return
			}
			h.log.Error("search failed", "origin", req.Origin, "destination", req.Destination, "err", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}

		if err := h.cache.Set(r.Context(), req.Query, res); err != nil {
			h.log.Warn("cache set failed", "search_id", res.SearchID, "err", err)
		}
		h.recordSearch(r.Context(), req.Query, res)
	}

	facets := facet.Compute(res.Offers, req.Passengers)
	visible := filter.Apply(res.Offers, req.Filters.toSpec(), req.Passengers)
	ranked := rank.Sort(visible, rank.Strategy(req.Sort), facets, req.Passengers)

	resp := searchResponse{
		SearchID:             res.SearchID,
		Partial:              res.Partial,
		Polls:                res.Polls,
		TotalOffers:          len(res.Offers),
		Facets:               facets,
		Offers:               offerViews(ranked, req.Query),
		AirportFilterEnabled: facets.AirportFilterEnabled(),
		FilteredOut:          len(res.Offers) > 0 && len(visible) == 0,
	}
	if len(res.Offers) == 0 {
		h.log.Info("search returned no offers", "search_id", res.SearchID)
		resp.Message = search.ErrEmptyResult.Error()
	}

	writeJSON(w, http.StatusOK, resp)
}

// recordSearch persists a history row; failures are logged, never fatal.
func (h *Handlers) recordSearch(ctx context.Context, q flight.Query, res *search.Result) {
	rec := storage.SearchRecord{
		Query:      q,
		SearchID:   res.SearchID,
		OfferCount: len(res.Offers),
		Partial:    res.Partial,
	}
	if cheapest := minPrice(res.Offers); cheapest > 0 {
		rec.CheapestPrice = &cheapest
	}
	if err := h.history.SaveSearch(ctx, rec); err != nil {
		h.log.Warn("saving search history failed", "search_id", res.SearchID, "err", err)
	}
}

func minPrice(offers []flight.Offer) float64 {
	min := math.Inf(1)
	for _, o := range offers {
		if o.Price > 0 && o.Price < min {
			min = o.Price
		}
	}
	if math.IsInf(min, 1) {
		return 0
	}
	return min
}

func offerViews(offers []flight.Offer, q flight.Query) []offerView {
	views := make([]offerView, 0, len(offers))
	for _, o := range offers {
		v := offerView{
			Offer:          o,
			PricePerPerson: flight.PricePerPerson(o.Price, q.Passengers),
		}
		// Deep links encode a round trip; one-way searches book
		// through the gate redirect instead.
		if q.ReturnDate != nil && *q.ReturnDate != "" && q.Destination != "" {
			v.BookingURL = deeplink.Encode(q.Origin, q.Destination, q.DepartureDate, *q.ReturnDate, q.Currency)
		}
		views = append(views, v)
	}
	return views
}

type discoverRequest struct {
	Origin        string   `json:"origin"`
	OutboundDates []string `json:"outbound_dates"`
	ReturnDates   []string `json:"return_dates"`
	Preferences   []string `json:"preferences,omitempty"`
	Currency      string   `json:"currency,omitempty"`
	Scope         string   `json:"scope,omitempty"`
	Budget        float64  `json:"budget,omitempty"`
}

type discoverResponse struct {
	Destinations []discover.AggregatedDestination `json:"destinations"`
	Tier         string                           `json:"tier,omitempty"`

	// NoTierMatch is true when destinations were priced but none fit
	// the budget policy; distinct from an unpriced market.
	NoTierMatch bool `json:"no_tier_match,omitempty"`
}

// DiscoverFlights handles POST /api/v1/flights/discover.
// Fans the search out over every valid date combination and returns the
// deduplicated destination list, optionally narrowed by budget tiers.
func (h *Handlers) DiscoverFlights(w http.ResponseWriter, r *http.Request) {
	var req discoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Origin == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": flight.ErrMissingOrigin.Error()})
		return
	}
	if !flight.ValidIATA(req.Origin) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": flight.ErrBadAirportCode.Error()})
		return
	}
	if len(req.OutboundDates) == 0 || len(req.ReturnDates) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "outbound_dates and return_dates are required"})
		return
	}

	dests, err := h.finder.Search(r.Context(), discover.Request{
		Origin:        req.Origin,
		OutboundDates: req.OutboundDates,
		ReturnDates:   req.ReturnDates,
		Preferences:   req.Preferences,
		Currency:      req.Currency,
		Scope:         req.Scope,
	})
	if err != nil {
		if errors.Is(err, discover.ErrNoDestinations) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no destinations with priced offers"})
			return
		}
		h.log.Error("discovery failed", "origin", req.Origin, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := discoverResponse{Destinations: dests}
	if req.Budget > 0 {
		matched, tier, err := discover.ApplyBudgetTiers(dests, req.Budget)
		if err != nil {
			resp.Destinations = []discover.AggregatedDestination{}
			resp.NoTierMatch = true
		} else {
			resp.Destinations = matched
			resp.Tier = tier
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

type bookRequest struct {
	SearchID string `json:"search_id"`
	TermsURL string `json:"terms_url"`
}

// BookFlight handles POST /api/v1/flights/book.
// Resolves the gate redirect for one selected term. A failed click-through
// maps to 502; the offer stays bookable and the client may retry.
func (h *Handlers) BookFlight(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.SearchID == "" || req.TermsURL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "search_id and terms_url are required"})
		return
	}

	redirect, err := h.booker.BookingClick(r.Context(), req.SearchID, req.TermsURL)
	if err != nil {
		var linkErr *search.BookingLinkError
		if errors.As(err, &linkErr) {
			h.log.Error("booking click failed", "search_id", req.SearchID, "err", err)
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "booking link failed, please retry"})
			return
		}
		h.log.Error("booking click failed", "search_id", req.SearchID, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, redirect)
}

// HealthCheck handles GET /api/v1/health.
// Pings DB and Redis; returns 200 if both ok, 503 otherwise.
type dbPinger interface {
	Ping(ctx context.Context) error
}

type redisPinger interface {
	Ping(ctx context.Context) error
}

// HealthHandlerFunc returns an http.HandlerFunc that checks db and redis connectivity.
func HealthHandlerFunc(db dbPinger, redis redisPinger, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		dbStatus := "ok"
		redisStatus := "ok"

		if err := db.Ping(ctx); err != nil {
			log.Error("health check: db ping failed", "err", err)
			dbStatus = "error"
			status = http.StatusServiceUnavailable
		}

		if err := redis.Ping(ctx); err != nil {
			log.Error("health check: redis ping failed", "err", err)
			redisStatus = "error"
			status = http.StatusServiceUnavailable
		}

		writeJSON(w, status, map[string]string{
			"status": func() string {
				if status == http.StatusOK {
					return "ok"
				}
				return "degraded"
			}(),
			"db":    dbStatus,
			"redis": redisStatus,
		})
	}
}
