package matching

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"roommatch/logging"
	"roommatch/models"
)

// MaxMatches caps a ranked list.
const MaxMatches = 50

const defaultConcurrency = 8

// Context is the per-viewer state that influences ordering. Maps are keyed by
// candidate identity; nil maps are fine.
type Context struct {
	Pins         map[string]bool
	Unread       map[string]int
	LastActivity map[string]int64
}

// Distancer estimates miles between two profiles, nil meaning unknown.
type Distancer interface {
	EstimateProfiles(ctx context.Context, a, b models.Profile) *float64
}

type Ranker struct {
	distance    Distancer
	logger      logging.Logger
	concurrency int
}

func NewRanker(distance Distancer, logger logging.Logger) *Ranker {
	return &Ranker{distance: distance, logger: logger, concurrency: defaultConcurrency}
}

// Rank filters out self and corrupt candidates, scores the rest and orders
// them by pinned, unread, recent activity, known-and-near distance and
// compatibility. Equal keys keep input order.
func (r *Ranker) Rank(ctx context.Context, self models.Profile, candidates []models.Profile, rc Context) []models.MatchRecord {
	survivors := make([]models.Profile, 0, len(candidates))
	for _, c := range candidates {
		id := c.Identity()
		switch {
		case id == "":
			r.logger.Warn(ctx, "skipping candidate without identity", "name", c.Name)
			continue
		case self.SameIdentity(c):
			continue
		case c.Name == "":
			r.logger.Warn(ctx, "skipping candidate without name", "profileId", id)
			continue
		}
		survivors = append(survivors, c)
	}

	records := make([]models.MatchRecord, len(survivors))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, c := range survivors {
		g.Go(func() error {
			records[i] = r.record(gctx, self, c, rc)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.logger.Error(ctx, "ranking interrupted", "error", err)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return less(records[i], records[j])
	})
	if len(records) > MaxMatches {
		records = records[:MaxMatches]
	}
	return records
}

func (r *Ranker) record(ctx context.Context, self, c models.Profile, rc Context) models.MatchRecord {
	id := c.Identity()
	rec := models.MatchRecord{
		Profile:       c,
		Compatibility: Score(self, c),
		IsPinned:      rc.Pins[id],
		UnreadCount:   rc.Unread[id],
	}
	if ts, ok := rc.LastActivity[id]; ok && ts > 0 {
		rec.LastActivityAt = &ts
	}
	if r.distance != nil {
		rec.DistanceMiles = r.distance.EstimateProfiles(ctx, self, c)
	}
	return rec
}

func less(a, b models.MatchRecord) bool {
	if a.IsPinned != b.IsPinned {
		return a.IsPinned
	}
	if ua, ub := a.UnreadCount > 0, b.UnreadCount > 0; ua != ub {
		return ua
	}
	if (a.LastActivityAt != nil) != (b.LastActivityAt != nil) {
		return a.LastActivityAt != nil
	}
	if a.LastActivityAt != nil && *a.LastActivityAt != *b.LastActivityAt {
		return *a.LastActivityAt > *b.LastActivityAt
	}
	if (a.DistanceMiles != nil) != (b.DistanceMiles != nil) {
		return a.DistanceMiles != nil
	}
	if a.DistanceMiles != nil && *a.DistanceMiles != *b.DistanceMiles {
		return *a.DistanceMiles < *b.DistanceMiles
	}
	return a.Compatibility > b.Compatibility
}

// Placeholders builds n obviously synthetic records for when real matches
// cannot be computed at all.
func Placeholders(n int) []models.MatchRecord {
	out := make([]models.MatchRecord, n)
	for i := range out {
		out[i] = models.MatchRecord{
			Profile: models.Profile{
				ID:       fmt.Sprintf("%s%d", models.PlaceholderPrefix, i+1),
				Name:     fmt.Sprintf("Sample Roommate %d", i+1),
				Location: "Unknown",
			},
			Compatibility: DefaultCompatibility,
		}
	}
	return out
}
