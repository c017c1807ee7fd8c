package chain

import (
	"regexp"
	"strings"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{1,64}$`)

// IsValidAddress reports whether s has the shape of a chain address: 0x followed by 1 to 64 hex digits.
func IsValidAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// NormalizeAddress returns the canonical form of an address or felt: lowercase
// with leading zeros removed, so 0x0ABC and 0xabc compare equal. Input that is not
// hex is returned lowercased and otherwise untouched.
func NormalizeAddress(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if !strings.HasPrefix(s, "0x") {
		return s
	}
	digits := strings.TrimLeft(s[2:], "0")
	if digits == "" {
		digits = "0"
	}
	return "0x" + digits
}

// NormalizeHash canonicalizes a felt-encoded hash, such as a transaction hash, the same way as addresses
func NormalizeHash(h string) string {
	return NormalizeAddress(h)
}
