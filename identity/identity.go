// Package identity maps authenticated subjects onto profile ids.
package identity

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const profilePrefix = "u_"

// ProfileID derives the canonical profile id for an identity subject. The same
// subject always yields the same id, so a user's profile is found again from
// any session without a lookup table.
func ProfileID(subject string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return ""
	}
	if IsProfileID(subject) {
		return subject
	}
	h, _ := blake2b.New(16, nil)
	h.Write([]byte(subject))
	return profilePrefix + hex.EncodeToString(h.Sum(nil))
}

// IsProfileID reports whether s already has the derived-id shape.
func IsProfileID(s string) bool {
	if !strings.HasPrefix(s, profilePrefix) || len(s) != len(profilePrefix)+32 {
		return false
	}
	_, err := hex.DecodeString(s[len(profilePrefix):])
	return err == nil
}
