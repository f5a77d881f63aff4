package distance

import (
	"strings"

	"roommatch/models"
)

// Place is a free-text location with whatever structure could be parsed
// out of it.
type Place struct {
	Raw         string
	City        string // lowercase
	State       string // two-letter abbreviation, uppercase
	Coordinates *models.Coordinates
}

var countrySuffixes = []string{", usa", ", us", ", united states", " usa"}

// ParsePlace accepts "City, ST", "City, State Name", "City ST" and any of
// those followed by ", USA". Unparseable parts are left empty.
func ParsePlace(raw string) Place {
	p := Place{Raw: strings.TrimSpace(raw)}
	s := strings.ToLower(p.Raw)
	for _, suf := range countrySuffixes {
		if strings.HasSuffix(s, suf) {
			s = strings.TrimSpace(strings.TrimSuffix(s, suf))
			break
		}
	}
	if s == "" {
		return p
	}

	if city, rest, ok := strings.Cut(s, ","); ok {
		p.City = strings.TrimSpace(city)
		p.State = lookupState(strings.TrimSpace(rest))
		return p
	}

	// "City ST" or "City State Name", longest state suffix first.
	fields := strings.Fields(s)
	for n := min(3, len(fields)-1); n >= 1; n-- {
		tail := strings.Join(fields[len(fields)-n:], " ")
		if st := lookupState(tail); st != "" {
			p.City = strings.Join(fields[:len(fields)-n], " ")
			p.State = st
			return p
		}
	}
	if st := lookupState(s); st != "" {
		p.State = st
		return p
	}
	p.City = s
	return p
}

func lookupState(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) == 2 {
		if _, ok := stateNames[strings.ToUpper(s)]; ok {
			return strings.ToUpper(s)
		}
		return ""
	}
	return stateByName[s]
}

// Normalized is the text used for exact comparison.
func (p Place) Normalized() string {
	return strings.ToLower(p.Raw)
}
