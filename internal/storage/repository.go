package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voanow/flightdeck/internal/flight"
)

// Querier abstracts the subset of pgxpool.Pool used by Repository.
// This allows injection of a mock in tests.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository provides database access for search history records.
type Repository struct {
	q Querier
}

// NewRepository constructs a Repository backed by the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{q: pool}
}

// NewRepositoryWithQuerier constructs a Repository with a custom Querier (for tests).
func NewRepositoryWithQuerier(q Querier) *Repository {
	return &Repository{q: q}
}

// SearchRecord summarizes one finished search for history and analytics.
// The full query is kept as JSONB so route lookups can use containment.
type SearchRecord struct {
	ID            int
	Query         flight.Query
	SearchID      string
	OfferCount    int
	CheapestPrice *float64
	Partial       bool
	CreatedAt     time.Time
}

// SaveSearch inserts one search summary row.
func (r *Repository) SaveSearch(ctx context.Context, rec SearchRecord) error {
	queryJSON, err := json.Marshal(rec.Query)
	if err != nil {
		return fmt.Errorf("marshaling query for search %s: %w", rec.SearchID, err)
	}

	const q = `
		INSERT INTO searches (query, search_id, offer_count, cheapest_price, partial, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`

	if _, err := r.q.Exec(ctx, q, queryJSON, rec.SearchID, rec.OfferCount, rec.CheapestPrice, rec.Partial); err != nil {
		return fmt.Errorf("saving search %s: %w", rec.SearchID, err)
	}

	return nil
}

// RecentSearches returns the newest search records, newest first.
func (r *Repository) RecentSearches(ctx context.Context, limit int) ([]*SearchRecord, error) {
	const q = `
		SELECT id, query, search_id, offer_count, cheapest_price, partial, created_at
		FROM searches
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.q.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent searches: %w", err)
	}
	defer rows.Close()

	var results []*SearchRecord
	for rows.Next() {
		rec, err := scanSearch(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search rows: %w", err)
	}

	return results, nil
}

// CheapestByRoute returns the lowest-priced historical search for a
// route. Uses the JSONB @> containment operator against the stored
// query. Returns nil, nil when the route has no priced history.
func (r *Repository) CheapestByRoute(ctx context.Context, origin, destination string) (*SearchRecord, error) {
	filter, err := json.Marshal(map[string]any{
		"origin":      origin,
		"destination": destination,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling JSONB filter: %w", err)
	}

	const q = `
		SELECT id, query, search_id, offer_count, cheapest_price, partial, created_at
		FROM searches
		WHERE query @> $1::jsonb
		AND cheapest_price IS NOT NULL
		ORDER BY cheapest_price ASC
		LIMIT 1
	`

	var rec SearchRecord
	var queryJSON []byte
	var cheapest *float64

	err = r.q.QueryRow(ctx, q, string(filter)).Scan(
		&rec.ID,
		&queryJSON,
		&rec.SearchID,
		&rec.OfferCount,
		&cheapest,
		&rec.Partial,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying cheapest search for %s-%s: %w", origin, destination, err)
	}

	if err := json.Unmarshal(queryJSON, &rec.Query); err != nil {
		return nil, fmt.Errorf("unmarshaling query for %s-%s: %w", origin, destination, err)
	}
	rec.CheapestPrice = cheapest

	return &rec, nil
}

func scanSearch(rows pgx.Rows) (*SearchRecord, error) {
	var rec SearchRecord
	var queryJSON []byte
	var cheapest *float64

	if err := rows.Scan(
		&rec.ID,
		&queryJSON,
		&rec.SearchID,
		&rec.OfferCount,
		&cheapest,
		&rec.Partial,
		&rec.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("scanning search row: %w", err)
	}

	if err := json.Unmarshal(queryJSON, &rec.Query); err != nil {
		return nil, fmt.Errorf("unmarshaling search query: %w", err)
	}
	rec.CheapestPrice = cheapest

	return &rec, nil
}
