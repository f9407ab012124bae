package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/voanow/flightdeck/internal/flight"
)

const httpTimeout = 15 * time.Second

// Client talks to the flight-search backend: one POST to open a search,
// repeated GETs to collect proposals, and a POST per booking click.
type Client struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewClient constructs a Client. The limiter paces poll requests; pass
// nil for no pacing.
func NewClient(baseURL string, limiter *rate.Limiter) *Client {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: httpTimeout},
		limiter: limiter,
	}
}

type submitRequest struct {
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	DepartureDate string `json:"departure_date"`
	ReturnDate    string `json:"return_date,omitempty"`
	Adults        int    `json:"adults"`
	Children      int    `json:"children"`
	Infants       int    `json:"infants"`
	Currency      string `json:"currency"`
}

type submitResponse struct {
	SearchID string           `json:"search_id"`
	Rates    flight.RateTable `json:"currency_rates"`
}

// Submit opens a search and returns its opaque id plus the initial
// currency-rate table. A non-2xx response is a hard *SubmissionError.
func (c *Client) Submit(ctx context.Context, q flight.Query) (string, flight.RateTable, error) {
	reqBody := submitRequest{
		Origin:        q.Origin,
		Destination:   q.Destination,
		DepartureDate: q.DepartureDate,
		Adults:        q.Passengers.Adults,
		Children:      q.Passengers.Children,
		Infants:       q.Passengers.Infants,
		Currency:      q.Currency,
	}
	if q.ReturnDate != nil {
		reqBody.ReturnDate = *q.ReturnDate
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", nil, fmt.Errorf("marshaling search submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return "", nil, fmt.Errorf("creating submission request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("submitting search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", nil, &SubmissionError{Status: resp.StatusCode}
	}

	var raw submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", nil, fmt.Errorf("decoding submission response: %w", err)
	}
	if raw.Rates == nil {
		raw.Rates = flight.RateTable{}
	}

	return raw.SearchID, raw.Rates, nil
}

// wire shapes for poll responses. The backend JSON is loosely typed;
// missing fields decode to neutral values rather than failing.
type proposalLeg struct {
	AirlineCode      string    `json:"airline_code"`
	AirlineName      string    `json:"airline_name"`
	DepartureAirport string    `json:"departure_airport"`
	ArrivalAirport   string    `json:"arrival_airport"`
	DepartureTime    time.Time `json:"departure_time"`
	ArrivalTime      time.Time `json:"arrival_time"`
}

type proposalSegment struct {
	Legs          []proposalLeg `json:"legs"`
	TotalDuration int           `json:"total_duration"`
	Handbag       bool          `json:"handbag"`
	Checked       bool          `json:"checked_baggage"`
}

type proposalTerm struct {
	Gate             string  `json:"gate_name"`
	URL              string  `json:"url"`
	Price            float64 `json:"price"`
	OriginalCurrency string  `json:"original_currency"`
}

type proposal struct {
	Segments []proposalSegment `json:"segments"`
	Terms    []proposalTerm    `json:"terms"`
}

type pollResponse struct {
	Proposals []proposal       `json:"proposals"`
	Total     int              `json:"total"`
	Completed bool             `json:"completed"`
	Rates     flight.RateTable `json:"currency_rates"`
}

// PollResult is one poll snapshot. Offers is the backend's full current
// proposal set, not a delta.
type PollResult struct {
	Offers    []flight.Offer
	Total     int
	Completed bool
	Rates     flight.RateTable
}

// Poll fetches the current proposal snapshot for a running search. Any
// failure here is transient from the session's point of view.
func (c *Client) Poll(ctx context.Context, searchID, currency string, rates flight.RateTable) (*PollResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for poll slot: %w", err)
	}

	params := url.Values{}
	params.Set("search_id", searchID)
	params.Set("currency", currency)
	if len(rates) > 0 {
		serialized, err := json.Marshal(rates)
		if err != nil {
			return nil, fmt.Errorf("marshaling rate table: %w", err)
		}
		params.Set("rates", string(serialized))
	}

	endpoint := c.baseURL + "/results?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating poll request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("polling search %s: %w", searchID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poll for search %s returned status %d", searchID, resp.StatusCode)
	}

	var raw pollResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding poll response: %w", err)
	}

	offers := make([]flight.Offer, 0, len(raw.Proposals))
	for _, p := range raw.Proposals {
		offers = append(offers, toOffer(p))
	}

	return &PollResult{
		Offers:    offers,
		Total:     raw.Total,
		Completed: raw.Completed,
		Rates:     raw.Rates,
	}, nil
}

func toOffer(p proposal) flight.Offer {
	segments := make([]flight.Segment, 0, len(p.Segments))
	for _, ws := range p.Segments {
		legs := make([]flight.Leg, 0, len(ws.Legs))
		for _, wl := range ws.Legs {
			legs = append(legs, flight.Leg{
				Airline:          flight.Airline{Code: wl.AirlineCode, Name: wl.AirlineName},
				DepartureAirport: wl.DepartureAirport,
				ArrivalAirport:   wl.ArrivalAirport,
				DepartureTime:    wl.DepartureTime,
				ArrivalTime:      wl.ArrivalTime,
			})
		}
		segments = append(segments, flight.NewSegment(legs, ws.TotalDuration, flight.Baggage{
			Handbag: ws.Handbag,
			Checked: ws.Checked,
		}))
	}

	terms := make([]flight.Term, 0, len(p.Terms))
	for _, wt := range p.Terms {
		terms = append(terms, flight.Term{
			Gate:             wt.Gate,
			URL:              wt.URL,
			Price:            wt.Price,
			OriginalCurrency: wt.OriginalCurrency,
		})
	}

	return flight.NewOffer(segments, terms)
}

// BookingRedirect tells the caller how to hand the user over to a gate:
// a plain GET URL, or a POST form with params submitted to a new
// browsing context.
type BookingRedirect struct {
	URL    string            `json:"url"`
	Method string            `json:"method"`
	Params map[string]string `json:"params,omitempty"`
}

type bookingClickRequest struct {
	SearchID string `json:"search_id"`
	TermsURL string `json:"terms_url"`
}

// BookingClick resolves a term's booking redirect. Failures come back
// as *BookingLinkError; the offer stays bookable for a retry.
func (c *Client) BookingClick(ctx context.Context, searchID, termsURL string) (*BookingRedirect, error) {
	body, err := json.Marshal(bookingClickRequest{SearchID: searchID, TermsURL: termsURL})
	if err != nil {
		return nil, &BookingLinkError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/clicks", bytes.NewReader(body))
	if err != nil {
		return nil, &BookingLinkError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &BookingLinkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &BookingLinkError{Err: fmt.Errorf("click endpoint returned status %d", resp.StatusCode)}
	}

	var redirect BookingRedirect
	if err := json.NewDecoder(resp.Body).Decode(&redirect); err != nil {
		return nil, &BookingLinkError{Err: err}
	}
	if redirect.Method == "" {
		redirect.Method = http.MethodGet
	}

	return &redirect, nil
}
