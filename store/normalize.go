package store

import "roommatch/models"

// NormalizeProfile folds the alias identity field into ID. Documents carrying
// neither field are reported as not ok and must be dropped by the caller.
func NormalizeProfile(p models.Profile) (models.Profile, bool) {
	if p.ID == "" {
		p.ID = p.UserID
	}
	if p.ID == "" {
		return p, false
	}
	return p, true
}

// NormalizeProfiles normalizes a batch, dropping documents without identity.
// It returns the number dropped so adapters can log it.
func NormalizeProfiles(in []models.Profile) ([]models.Profile, int) {
	out := make([]models.Profile, 0, len(in))
	dropped := 0
	for _, p := range in {
		n, ok := NormalizeProfile(p)
		if !ok {
			dropped++
			continue
		}
		out = append(out, n)
	}
	return out, dropped
}
