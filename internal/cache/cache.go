package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voanow/flightdeck/internal/flight"
	"github.com/voanow/flightdeck/internal/search"
)

// Completed searches stay fresh for a few minutes at most; gate prices
// drift quickly after that.
const defaultTTL = 5 * time.Minute

// Cache wraps a Redis client and provides typed get/set/delete for
// completed search results.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a Cache with the default 5-minute TTL.
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client, ttl: defaultTTL}
}

// key hashes the canonical query so equivalent searches share an entry
// regardless of field casing.
func key(q flight.Query) string {
	ret := ""
	if q.ReturnDate != nil {
		ret = *q.ReturnDate
	}
	canonical := strings.ToLower(fmt.Sprintf("%s|%s|%s|%s|%d|%d|%d|%s",
		q.Origin, q.Destination, q.DepartureDate, ret,
		q.Passengers.Adults, q.Passengers.Children, q.Passengers.Infants,
		q.Currency))
	sum := sha256.Sum256([]byte(canonical))
	return "search:" + hex.EncodeToString(sum[:])
}

// Get retrieves a cached search result for the query.
// Returns nil, nil on a cache miss (not an error).
func (c *Cache) Get(ctx context.Context, q flight.Query) (*search.Result, error) {
	val, err := c.client.Get(ctx, key(q)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache get for %s-%s: %w", q.Origin, q.Destination, err)
	}

	var res search.Result
	if err := json.Unmarshal([]byte(val), &res); err != nil {
		return nil, fmt.Errorf("unmarshaling cached result for %s-%s: %w", q.Origin, q.Destination, err)
	}

	return &res, nil
}

// Set stores a completed search result with the configured TTL. Partial
// results are not cached; a later identical search deserves a full run.
func (c *Cache) Set(ctx context.Context, q flight.Query, res *search.Result) error {
	if res == nil || res.Partial {
		return nil
	}

	b, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshaling result for %s-%s: %w", q.Origin, q.Destination, err)
	}

	if err := c.client.Set(ctx, key(q), b, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set for %s-%s: %w", q.Origin, q.Destination, err)
	}

	return nil
}

// Delete removes the cached entry for the query.
func (c *Cache) Delete(ctx context.Context, q flight.Query) error {
	if err := c.client.Del(ctx, key(q)).Err(); err != nil {
		return fmt.Errorf("cache delete for %s-%s: %w", q.Origin, q.Destination, err)
	}
	return nil
}
