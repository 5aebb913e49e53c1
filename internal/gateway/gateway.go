// Package gateway guards every page of the server using the session cookie
// alone.
package gateway

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"path"
	"strings"

	"hawx.me/code/dashboard/internal/backend"
	"hawx.me/code/dashboard/internal/metrics"
)

// PublicPrefixes are paths anyone may visit.
var PublicPrefixes = []string{"/login", "/auth/callback"}

var (
	exemptPrefixes   = []string{"/public/", "/favicon.ico", "/metrics"}
	exemptExtensions = map[string]struct{}{
		".svg": {}, ".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".webp": {},
	}
)

type cookieStore interface {
	Get(*http.Request) *backend.Session
	Set(http.ResponseWriter, *http.Request, *backend.Session) error
	Remove(http.ResponseWriter, *http.Request) error
}

type refresher interface {
	Refresh(context.Context, *backend.Session) (*backend.Session, error)
}

type contextKey struct{}

// SessionFromContext returns the session the Gateway let a request through
// with.
func SessionFromContext(ctx context.Context) (*backend.Session, bool) {
	session, ok := ctx.Value(contextKey{}).(*backend.Session)
	return session, ok && session != nil
}

// Gateway is middleware that sends requests without a valid session cookie to
// the login page.
type Gateway struct {
	cookies cookieStore
	tokens  refresher
	metrics *metrics.Metrics
}

func New(cookies cookieStore, tokens refresher, m *metrics.Metrics) *Gateway {
	return &Gateway{cookies: cookies, tokens: tokens, metrics: m}
}

// Handler wraps next. Static assets and metrics are served as is. Otherwise
// the cookie session is read, refreshing it if it has expired, and then:
//
//   - public paths are passed through;
//   - without a valid session the request is redirected to login, remembering
//     the path in "redirectedFrom";
//   - "/" redirects to the dashboard;
//   - anything else is passed through with the session in its context.
func (g *Gateway) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path

		if isExempt(p) {
			g.metrics.GatewayDecision("exempt")
			next.ServeHTTP(w, r)
			return
		}

		session := g.session(w, r)

		if isPublic(p) {
			g.metrics.GatewayDecision("public")
			next.ServeHTTP(w, r)
			return
		}

		if !session.Valid() {
			g.metrics.GatewayDecision("redirect_login")
			http.Redirect(w, r, "/login?"+url.Values{"redirectedFrom": {p}}.Encode(), http.StatusFound)
			return
		}

		if p == "/" {
			g.metrics.GatewayDecision("redirect_dashboard")
			http.Redirect(w, r, "/dashboard", http.StatusFound)
			return
		}

		g.metrics.GatewayDecision("pass")
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, session)))
	})
}

// session reads the cookie session, refreshing it if it can be. Any change is
// written back to the response.
func (g *Gateway) session(w http.ResponseWriter, r *http.Request) *backend.Session {
	session := g.cookies.Get(r)
	if session == nil || session.Valid() {
		return session
	}

	if !session.Refreshable() {
		if err := g.cookies.Remove(w, r); err != nil {
			log.Println("gateway could not remove cookie:", err)
		}
		return nil
	}

	refreshed, err := g.tokens.Refresh(r.Context(), session)
	g.metrics.SessionRefresh(err == nil)
	if err != nil {
		log.Println("gateway could not refresh session:", err)
		if err := g.cookies.Remove(w, r); err != nil {
			log.Println("gateway could not remove cookie:", err)
		}
		return nil
	}

	if err := g.cookies.Set(w, r, refreshed); err != nil {
		log.Println("gateway could not save cookie:", err)
	}
	return refreshed
}

func isPublic(p string) bool {
	for _, prefix := range PublicPrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func isExempt(p string) bool {
	for _, prefix := range exemptPrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}

	_, ok := exemptExtensions[strings.ToLower(path.Ext(p))]
	return ok
}
