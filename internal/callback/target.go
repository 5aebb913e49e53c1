package callback

import (
	"net/url"
	"strings"
)

// DefaultTarget is where a user ends up after signing in if nothing else was
// asked for.
const DefaultTarget = "/dashboard"

// Target returns raw if it is an address on this site, otherwise fallback.
// Addresses with a scheme or host, and protocol relative addresses, are not
// on this site.
func Target(raw, fallback string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return fallback
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}

	return raw
}

// LoginURL is the address of the login page showing message.
func LoginURL(message string) string {
	if message == "" {
		return "/login"
	}
	return "/login?" + url.Values{"error": {message}}.Encode()
}
