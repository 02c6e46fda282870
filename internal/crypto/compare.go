package crypto

import "crypto/subtle"

// Equal reports whether a and b are equal using a constant-time comparison,
// so identity-key and MAC comparisons don't leak timing information about
// where the first mismatching byte is.
func Equal(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
