package models

import "time"

type PresenceRecord struct {
	UserID         string `json:"userId"`
	Name           string `json:"name"`
	Online         bool   `json:"online"`
	LastActivityAt int64  `json:"lastActivityAt"` // unix millis
}

// ActuallyOnline derives liveness from the last heartbeat, ignoring Online.
func (r PresenceRecord) ActuallyOnline(now time.Time, window time.Duration) bool {
	if r.LastActivityAt == 0 {
		return false
	}
	return now.Sub(time.UnixMilli(r.LastActivityAt)) < window
}
