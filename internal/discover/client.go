package discover

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const httpTimeout = 15 * time.Second

// ComboQuery is one discovery request for a single date combination.
type ComboQuery struct {
	Origin      string
	Combo       DateCombo
	Preferences []string
	Currency    string
	Scope       string // destination scope: "", "domestic" or "international"
}

// Client calls the discovery search backend. The wire format uses the
// backend's Portuguese field names.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient constructs a Client for the given backend base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: httpTimeout},
	}
}

type discoveryRequest struct {
	Origem       string   `json:"origem"`
	DataIda      string   `json:"dataIda"`
	DataVolta    string   `json:"dataVolta"`
	Preferencias []string `json:"preferencias"`
	Moeda        string   `json:"moeda"`
	EscopoDest   string   `json:"escopoDestino,omitempty"`
}

type discoveryResponse struct {
	Destinations []Destination  `json:"destinations"`
	Meta         map[string]any `json:"_meta"`
}

// Destinations runs one discovery search and returns the priced
// destination entries for the given combination.
func (c *Client) Destinations(ctx context.Context, q ComboQuery) ([]Destination, error) {
	body, err := json.Marshal(discoveryRequest{
		Origem:       q.Origin,
		DataIda:      q.Combo.Outbound,
		DataVolta:    q.Combo.Return,
		Preferencias: q.Preferences,
		Moeda:        q.Currency,
		EscopoDest:   q.Scope,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling discovery request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating discovery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discovery search returned status %d", resp.StatusCode)
	}

	var raw discoveryResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding discovery response: %w", err)
	}

	return raw.Destinations, nil
}
