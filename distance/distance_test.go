package distance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roommatch/cache"
	"roommatch/logging"
	"roommatch/models"
)

type fakeGeocoder struct {
	places map[string]models.Coordinates
	err    error
	delay  time.Duration
	calls  atomic.Int32
}

func (f *fakeGeocoder) Geocode(ctx context.Context, q string) (models.Coordinates, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return models.Coordinates{}, ctx.Err()
		}
	}
	if f.err != nil {
		return models.Coordinates{}, f.err
	}
	at, ok := f.places[q]
	if !ok {
		return models.Coordinates{}, ErrNoResult
	}
	return at, nil
}

func TestParsePlace(t *testing.T) {
	cases := []struct {
		in, city, state string
	}{
		{"Boston, MA", "boston", "MA"},
		{"Austin, Texas", "austin", "TX"},
		{"New York NY", "new york", "NY"},
		{"Seattle, WA, USA", "seattle", "WA"},
		{"Salt Lake City, Utah, United States", "salt lake city", "UT"},
		{"Kansas City New Mexico", "kansas city", "NM"},
		{"Ohio", "", "OH"},
		{"Gotham", "gotham", ""},
		{"   ", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			p := ParsePlace(tc.in)
			assert.Equal(t, tc.city, p.City)
			assert.Equal(t, tc.state, p.State)
		})
	}
}

func TestHaversine_NewYorkLosAngeles(t *testing.T) {
	ny := models.Coordinates{Lat: 40.7128, Lng: -74.0060}
	la := models.Coordinates{Lat: 34.0522, Lng: -118.2437}
	assert.InEpsilon(t, 2451, Haversine(ny, la), 0.05)
	assert.InDelta(t, Haversine(ny, la), Haversine(la, ny), 1e-9)
	assert.Zero(t, Haversine(ny, ny))
}

func TestEstimate_Scenarios(t *testing.T) {
	ctx := context.Background()
	e := NewEstimator(nil, 0, logging.Discard())

	d := e.Estimate(ctx, "Boston, MA", "boston, ma ")
	require.NotNil(t, d)
	assert.Zero(t, *d)

	d = e.Estimate(ctx, "New York, NY", "Los Angeles, CA")
	require.NotNil(t, d)
	assert.InEpsilon(t, 2451, *d, 0.05)
}

func TestEstimate_ExactWinsOverGeocoder(t *testing.T) {
	geo := &fakeGeocoder{places: map[string]models.Coordinates{
		"Somewhere": {Lat: 1, Lng: 1},
	}}
	e := NewEstimator(geo, time.Second, logging.Discard())

	d := e.Estimate(context.Background(), "Somewhere", "somewhere")
	require.NotNil(t, d)
	assert.Zero(t, *d)
	assert.Zero(t, geo.calls.Load())
}

func TestEstimate_GeocoderUsedBeforeCityTable(t *testing.T) {
	geo := &fakeGeocoder{places: map[string]models.Coordinates{
		"Boston, MA":  {Lat: 0, Lng: 0},
		"Chicago, IL": {Lat: 0, Lng: 1},
	}}
	e := NewEstimator(geo, time.Second, logging.Discard())

	d := e.Estimate(context.Background(), "Boston, MA", "Chicago, IL")
	require.NotNil(t, d)
	assert.InDelta(t, 69.1, *d, 0.5)
}

func TestEstimate_GeocoderFailureFallsToCityTable(t *testing.T) {
	for name, geo := range map[string]*fakeGeocoder{
		"error":   {err: errors.New("rate limited")},
		"timeout": {delay: time.Second},
	} {
		t.Run(name, func(t *testing.T) {
			e := NewEstimator(geo, 20*time.Millisecond, logging.Discard())
			d := e.Estimate(context.Background(), "New York, NY", "Los Angeles, CA")
			require.NotNil(t, d)
			assert.InEpsilon(t, 2451, *d, 0.05)
		})
	}
}

func TestEstimate_StoredCoordinates(t *testing.T) {
	e := NewEstimator(nil, 0, logging.Discard())
	a := models.Profile{Location: "Home", Coordinates: &models.Coordinates{Lat: 0, Lng: 0}}
	b := models.Profile{Location: "Work", Coordinates: &models.Coordinates{Lat: 1, Lng: 0}}

	d := e.EstimateProfiles(context.Background(), a, b)
	require.NotNil(t, d)
	assert.InDelta(t, 69.1, *d, 0.5)
}

func TestEstimate_StateAndRegionTiers(t *testing.T) {
	ctx := context.Background()
	e := NewEstimator(nil, 0, logging.Discard())

	d := e.Estimate(ctx, "Smallville, TX", "Tinytown, Texas")
	require.NotNil(t, d)
	assert.Equal(t, 300.0, *d)

	d = e.Estimate(ctx, "Smallville, MA", "Tinytown, NY")
	require.NotNil(t, d)
	assert.Equal(t, sameRegionMiles, *d)

	d = e.Estimate(ctx, "Smallville, ME", "Tinytown, CA")
	require.NotNil(t, d)
	assert.Equal(t, 2500.0, *d)

	d = e.Estimate(ctx, "Tinytown, CA", "Smallville, ME")
	require.NotNil(t, d)
	assert.Equal(t, 2500.0, *d, "cross-region table is symmetric")

	d = e.Estimate(ctx, "San Juan, PR", "Smallville, ME")
	require.NotNil(t, d)
	assert.Equal(t, unknownRegionMiles, *d)

	d = e.Estimate(ctx, "San Juan, PR", "Ponce, PR")
	require.NotNil(t, d)
	assert.Equal(t, defaultIntraStateMiles, *d)
}

func TestEstimate_UnknownIsNil(t *testing.T) {
	ctx := context.Background()
	e := NewEstimator(nil, 0, logging.Discard())

	assert.Nil(t, e.Estimate(ctx, "Gotham", "Metropolis"))
	assert.Nil(t, e.Estimate(ctx, "", ""))
	assert.Nil(t, e.Estimate(ctx, "Boston, MA", ""))
}

func TestHTTPGeocoder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		if r.URL.Query().Get("q") == "Nowhere" {
			fmt.Fprint(w, `[]`)
			return
		}
		fmt.Fprint(w, `[{"lat":"42.3601","lon":"-71.0589"}]`)
	}))
	defer srv.Close()

	g := NewHTTPGeocoder(srv.URL + "/")
	at, err := g.Geocode(context.Background(), "Boston, MA")
	require.NoError(t, err)
	assert.InDelta(t, 42.3601, at.Lat, 1e-9)
	assert.InDelta(t, -71.0589, at.Lng, 1e-9)

	_, err = g.Geocode(context.Background(), "Nowhere")
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestHTTPGeocoder_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewHTTPGeocoder(srv.URL).Geocode(context.Background(), "Boston")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoResult)
}

func TestCachedGeocoder(t *testing.T) {
	ctx := context.Background()
	geo := &fakeGeocoder{places: map[string]models.Coordinates{
		"Boston, MA": {Lat: 42.36, Lng: -71.06},
	}}
	g := NewCachedGeocoder(geo, cache.NewMemoryCache(clockwork.NewFakeClock()), time.Hour)

	for i := 0; i < 3; i++ {
		at, err := g.Geocode(ctx, "Boston, MA")
		require.NoError(t, err)
		assert.Equal(t, 42.36, at.Lat)
	}
	assert.Equal(t, int32(1), geo.calls.Load())

	for i := 0; i < 2; i++ {
		_, err := g.Geocode(ctx, "Nowhere")
		assert.ErrorIs(t, err, ErrNoResult)
	}
	assert.Equal(t, int32(2), geo.calls.Load(), "misses are cached")
}

func TestCachedGeocoder_TransientErrorNotCached(t *testing.T) {
	ctx := context.Background()
	geo := &fakeGeocoder{err: errors.New("unreachable")}
	g := NewCachedGeocoder(geo, cache.NewMemoryCache(clockwork.NewFakeClock()), time.Hour)

	_, err := g.Geocode(ctx, "Boston, MA")
	require.Error(t, err)
	_, err = g.Geocode(ctx, "Boston, MA")
	require.Error(t, err)
	assert.Equal(t, int32(2), geo.calls.Load())
}
