package crypto

import (
	"crypto/rand"
	"encoding/base64"
)

// SecureRandomString returns a URL-safe base64-alphabet string of n
// characters drawn from a cryptographically secure source (spec section
// 4.2's secure_random_str). Session/ticket/verification tokens all go
// through this helper.
func SecureRandomString(n int) string {
	// base64 encodes 3 bytes into 4 characters; over-allocate then trim.
	raw := make([]byte, (n*3/4)+3)
	if _, err := rand.Read(raw); err != nil {
		panic("crypto: secure random source failed: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(raw)[:n]
}
