package registry

import "strings"

// Accepted .onion address lengths including the suffix: 16 base32 characters
// for v2, 56 for v3.
const (
	onionSuffix   = ".onion"
	onionV2Length = 16 + len(onionSuffix)
	onionV3Length = 56 + len(onionSuffix)
)

// IsValidOnionAddress reports whether address has the shape of a .onion
// address: one of the two accepted total lengths, the fixed suffix, and a
// strictly base32 ([a-z2-7]) leading part. Shape only; no checksum or key
// validation is performed.
func IsValidOnionAddress(address string) bool {
	if len(address) != onionV2Length && len(address) != onionV3Length {
		return false
	}
	if !strings.HasSuffix(address, onionSuffix) {
		return false
	}
	for _, c := range address[:len(address)-len(onionSuffix)] {
		if (c < 'a' || c > 'z') && (c < '2' || c > '7') {
			return false
		}
	}
	return true
}
