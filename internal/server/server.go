package server

import (
	"context"
	"io"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"hawx.me/code/dashboard/internal/backend"
	"hawx.me/code/dashboard/internal/callback"
	"hawx.me/code/dashboard/internal/gateway"
	"hawx.me/code/dashboard/internal/handler"
	"hawx.me/code/dashboard/internal/metrics"
	"hawx.me/code/dashboard/internal/strategy"
	"hawx.me/code/dashboard/internal/web"
	"hawx.me/code/mux"
	"hawx.me/code/route"
)

// Tokens is the part of the auth API the server calls directly, rather than
// through the resolver.
type Tokens interface {
	Refresh(ctx context.Context, session *backend.Session) (*backend.Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

type Resolver interface {
	Resolve(ctx context.Context, req callback.Request) callback.Result
}

type Templates interface {
	ExecuteTemplate(w io.Writer, tmpl string, data interface{}) error
}

// New registers every page on route.Default and returns it behind the
// gateway.
func New(
	baseURL string,
	tokens Tokens,
	resolver Resolver,
	strategies strategy.Strategies,
	cookies *backend.CookieHelper,
	flow sessions.Store,
	templates Templates,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
) http.Handler {
	route.Handle("/login", mux.Method{
		"GET": handler.Login(cookies, strategies, templates),
	})
	route.Handle("/login/start", mux.Method{
		"GET": handler.LoginStart(baseURL, flow, strategies),
	})
	route.Handle("/auth/callback", handler.Callback(resolver, cookies, flow, templates, m))

	route.Handle("/dashboard", mux.Method{
		"GET": handler.Dashboard(flow, templates),
	})
	route.Handle("/sign-out", mux.Method{
		"POST": handler.SignOut(cookies, tokens, flow),
	})

	route.Handle("/metrics", metrics.Handler(gatherer))
	route.Handle("/public/*path", http.StripPrefix("/public", http.FileServer(http.FS(web.Static()))))

	return gateway.New(cookies, tokens, m).Handler(route.Default)
}
