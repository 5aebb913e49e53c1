package handler

import (
	"context"
	"io"
	"net/http"

	"hawx.me/code/dashboard/internal/backend"
	"hawx.me/code/dashboard/internal/callback"
)

// FlowSession is the name of the cookie that carries the PKCE verifier and
// CSRF state between requests.
const FlowSession = "dashboard-flow"

type tmpl interface {
	ExecuteTemplate(w io.Writer, tmpl string, data interface{}) error
}

type cookieStore interface {
	Get(*http.Request) *backend.Session
	Set(http.ResponseWriter, *http.Request, *backend.Session) error
	Remove(http.ResponseWriter, *http.Request) error
}

type resolver interface {
	Resolve(context.Context, callback.Request) callback.Result
}
