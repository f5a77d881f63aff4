package distance

import (
	"context"
	"time"

	"roommatch/logging"
	"roommatch/models"
)

// Tier is one estimation strategy. It reports false when it cannot answer,
// handing the pair to the next tier.
type Tier interface {
	Name() string
	Estimate(ctx context.Context, a, b Place) (float64, bool)
}

type exactTier struct{}

func (exactTier) Name() string { return "exact" }

func (exactTier) Estimate(_ context.Context, a, b Place) (float64, bool) {
	if a.Raw == "" || b.Raw == "" {
		return 0, false
	}
	if a.Normalized() == b.Normalized() {
		return 0, true
	}
	return 0, false
}

type geocodeTier struct {
	geocoder Geocoder
	timeout  time.Duration
	logger   logging.Logger
}

func (geocodeTier) Name() string { return "geocode" }

func (t geocodeTier) Estimate(ctx context.Context, a, b Place) (float64, bool) {
	ca, ok := t.resolve(ctx, a)
	if !ok {
		return 0, false
	}
	cb, ok := t.resolve(ctx, b)
	if !ok {
		return 0, false
	}
	return Haversine(ca, cb), true
}

func (t geocodeTier) resolve(ctx context.Context, p Place) (models.Coordinates, bool) {
	if p.Coordinates != nil {
		return *p.Coordinates, true
	}
	if t.geocoder == nil || p.Raw == "" {
		return models.Coordinates{}, false
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	at, err := t.geocoder.Geocode(ctx, p.Raw)
	if err != nil {
		t.logger.Debug(ctx, "geocode failed, falling through", "location", p.Raw, "error", err)
		return models.Coordinates{}, false
	}
	return at, true
}

type cityTier struct{}

func (cityTier) Name() string { return "city" }

func (cityTier) Estimate(_ context.Context, a, b Place) (float64, bool) {
	ca, ok := lookupCity(a)
	if !ok {
		return 0, false
	}
	cb, ok := lookupCity(b)
	if !ok {
		return 0, false
	}
	return Haversine(ca, cb), true
}

type stateTier struct{}

func (stateTier) Name() string { return "state" }

func (stateTier) Estimate(_ context.Context, a, b Place) (float64, bool) {
	if a.State == "" || a.State != b.State {
		return 0, false
	}
	if d, ok := intraStateMiles[a.State]; ok {
		return d, true
	}
	return defaultIntraStateMiles, true
}

type regionTier struct{}

func (regionTier) Name() string { return "region" }

func (regionTier) Estimate(_ context.Context, a, b Place) (float64, bool) {
	if a.State == "" || b.State == "" {
		return 0, false
	}
	ra, okA := stateRegion[a.State]
	rb, okB := stateRegion[b.State]
	if !okA || !okB {
		return unknownRegionMiles, true
	}
	return regionMiles(ra, rb), true
}
