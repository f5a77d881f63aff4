package distance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"roommatch/cache"
	"roommatch/models"
)

// ErrNoResult means the geocoder answered but knows no such place.
var ErrNoResult = errors.New("geocoder: no result")

type Geocoder interface {
	Geocode(ctx context.Context, query string) (models.Coordinates, error)
}

// HTTPGeocoder talks to a Nominatim-compatible search endpoint.
type HTTPGeocoder struct {
	BaseURL   string
	UserAgent string
	Client    *http.Client
}

func NewHTTPGeocoder(baseURL string) *HTTPGeocoder {
	return &HTTPGeocoder{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		UserAgent: "roommatch/1.0",
		Client:    &http.Client{Timeout: 10 * time.Second},
	}
}

type nominatimResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

func (g *HTTPGeocoder) Geocode(ctx context.Context, query string) (models.Coordinates, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("limit", "1")
	q.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.BaseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("geocoder: build request: %w", err)
	}
	req.Header.Set("User-Agent", g.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("geocoder: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.Coordinates{}, fmt.Errorf("geocoder: unexpected status %d", resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return models.Coordinates{}, fmt.Errorf("geocoder: decode: %w", err)
	}
	if len(results) == 0 {
		return models.Coordinates{}, ErrNoResult
	}
	lat, err1 := strconv.ParseFloat(results[0].Lat, 64)
	lng, err2 := strconv.ParseFloat(results[0].Lon, 64)
	if err1 != nil || err2 != nil {
		return models.Coordinates{}, fmt.Errorf("geocoder: bad coordinates %q,%q", results[0].Lat, results[0].Lon)
	}
	return models.Coordinates{Lat: lat, Lng: lng}, nil
}

// CachedGeocoder memoizes another Geocoder. Definite misses are cached as
// well so an unknown place is not looked up on every rank.
type CachedGeocoder struct {
	next Geocoder
	c    cache.Cache
	ttl  time.Duration
}

const negativeEntry = "-"

func NewCachedGeocoder(next Geocoder, c cache.Cache, ttl time.Duration) *CachedGeocoder {
	return &CachedGeocoder{next: next, c: c, ttl: ttl}
}

func cacheKey(query string) string {
	return "geo:" + strings.ToLower(strings.TrimSpace(query))
}

func (g *CachedGeocoder) Geocode(ctx context.Context, query string) (models.Coordinates, error) {
	key := cacheKey(query)
	if v, err := g.c.Get(ctx, key); err == nil {
		if v == negativeEntry {
			return models.Coordinates{}, ErrNoResult
		}
		var at models.Coordinates
		if json.Unmarshal([]byte(v), &at) == nil {
			return at, nil
		}
	}

	at, err := g.next.Geocode(ctx, query)
	switch {
	case errors.Is(err, ErrNoResult):
		_ = g.c.Set(ctx, key, negativeEntry, g.ttl)
		return at, err
	case err != nil:
		return at, err
	}
	if b, mErr := json.Marshal(at); mErr == nil {
		_ = g.c.Set(ctx, key, string(b), g.ttl)
	}
	return at, nil
}
