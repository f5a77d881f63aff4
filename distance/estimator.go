// Package distance estimates mileage between two free-text locations with an
// ordered chain of fallback tiers.
package distance

import (
	"context"
	"time"

	"roommatch/logging"
	"roommatch/models"
)

// DefaultGeocodeTimeout bounds a single geocoder lookup.
const DefaultGeocodeTimeout = 3 * time.Second

type Estimator struct {
	tiers  []Tier
	logger logging.Logger
}

// NewEstimator builds the standard chain: exact text, geocoded coordinates,
// known cities, same state, region. geocoder may be nil.
func NewEstimator(geocoder Geocoder, timeout time.Duration, logger logging.Logger) *Estimator {
	if timeout <= 0 {
		timeout = DefaultGeocodeTimeout
	}
	return NewEstimatorWithTiers(logger,
		exactTier{},
		geocodeTier{geocoder: geocoder, timeout: timeout, logger: logger},
		cityTier{},
		stateTier{},
		regionTier{},
	)
}

// NewEstimatorWithTiers evaluates tiers in the given order.
func NewEstimatorWithTiers(logger logging.Logger, tiers ...Tier) *Estimator {
	return &Estimator{tiers: tiers, logger: logger}
}

// Estimate returns miles between a and b, or nil when no tier can tell.
func (e *Estimator) Estimate(ctx context.Context, a, b string) *float64 {
	return e.EstimatePlaces(ctx, ParsePlace(a), ParsePlace(b))
}

// EstimateProfiles is Estimate with stored profile coordinates taking the
// place of a geocoder lookup.
func (e *Estimator) EstimateProfiles(ctx context.Context, a, b models.Profile) *float64 {
	pa, pb := ParsePlace(a.Location), ParsePlace(b.Location)
	pa.Coordinates, pb.Coordinates = a.Coordinates, b.Coordinates
	return e.EstimatePlaces(ctx, pa, pb)
}

func (e *Estimator) EstimatePlaces(ctx context.Context, a, b Place) *float64 {
	for _, t := range e.tiers {
		if d, ok := t.Estimate(ctx, a, b); ok {
			return &d
		}
	}
	e.logger.Debug(ctx, "distance unknown", "a", a.Raw, "b", b.Raw)
	return nil
}
