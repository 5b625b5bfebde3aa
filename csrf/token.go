package csrf

import (
	"crypto/rand"
	"encoding/base64"
	"net/url"
	"strings"
)

// newToken generates a random url-safe token from n bytes of entropy.
func newToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	// base64 URL-encoding without padding
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// sameSite reports whether the given Origin/Referer value points at the
// allowed host.
func sameSite(originOrRef, allowedHost string) bool {
	u, err := url.Parse(originOrRef)
	if err != nil {
		return false
	}
	// Host comparison only (may include port).
	return strings.EqualFold(u.Host, allowedHost)
}
