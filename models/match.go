package models

import "strings"

// PlaceholderPrefix marks synthetic profiles served when real matches cannot
// be computed.
const PlaceholderPrefix = "placeholder-"

// MatchRecord is a ranked candidate. It is derived on demand and never stored.
type MatchRecord struct {
	Profile        Profile  `json:"profile"`
	Compatibility  float64  `json:"compatibility"`
	DistanceMiles  *float64 `json:"distanceMiles"`
	IsPinned       bool     `json:"isPinned"`
	UnreadCount    int      `json:"unreadCount"`
	LastActivityAt *int64   `json:"lastActivityAt"`
}

func (m MatchRecord) IsPlaceholder() bool {
	return strings.HasPrefix(m.Profile.ID, PlaceholderPrefix)
}
