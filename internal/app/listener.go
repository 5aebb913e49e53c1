package app

import (
	"net/url"

	"hawx.me/code/dashboard/internal/backend"
	"hawx.me/code/dashboard/internal/callback"
)

const (
	loginPath     = "/login"
	dashboardPath = callback.DefaultTarget
)

// Listener applies backend events to a Store and navigates in response to
// signing in and out.
type Listener struct {
	store *Store
	nav   Navigator
}

// Handle is a backend.Listener.
func (l *Listener) Handle(event backend.Event, session *backend.Session) {
	l.store.apply(session)

	switch event {
	case backend.SignedIn:
		location := l.nav.Location()
		target := signedInTarget(location)
		if location.RequestURI() != target {
			l.nav.Replace(target)
		}

	case backend.SignedOut:
		if l.nav.Location().Path != loginPath {
			l.nav.Push(loginPath)
		}
	}
}

// signedInTarget is where to go after signing in at location: wherever the
// user was sent away from, or the dashboard. Never the login page.
func signedInTarget(location *url.URL) string {
	query := location.Query()

	raw := query.Get("redirectedFrom")
	if raw == "" {
		raw = query.Get("next")
	}
	target := callback.Target(raw, dashboardPath)

	if u, err := url.Parse(target); err == nil && u.Path == loginPath {
		return dashboardPath
	}
	return target
}
