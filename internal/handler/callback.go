package handler

import (
	"log"
	"net/http"
	"net/url"

	"github.com/gorilla/sessions"
	"hawx.me/code/dashboard/internal/callback"
	"hawx.me/code/dashboard/internal/metrics"
	"hawx.me/code/mux"
)

type bridgeCtx struct {
	Query string
}

// Callback handles the user's return from the auth API. The credentials may be
// in the query, which can be resolved immediately, or in the fragment, which
// the browser never sends. For the latter a page is returned that posts the
// fragment back, along with the original query.
//
// On success the session is written to the cookie and the user is redirected
// to "next", or the dashboard. The verifier stays in the flow cookie until the
// next sign in starts, so a repeated request for the same callback is given
// the remembered result rather than exchanging again. On failure they are redirected to the login page
// with the error.
func Callback(res resolver, cookies cookieStore, flow sessions.Store, templates tmpl, m *metrics.Metrics) http.Handler {
	resolve := func(w http.ResponseWriter, r *http.Request, u *url.URL, status int) {
		session, _ := flow.Get(r, FlowSession)
		verifier, _ := session.Values["verifier"].(string)

		result := res.Resolve(r.Context(), callback.Request{URL: u, Verifier: verifier})
		m.CallbackOutcome(result.State.String(), result.Kind.String())

		if result.State != callback.Success {
			log.Println("handler/callback failed:", result.Err)
			http.Redirect(w, r, result.Target, status)
			return
		}

		if err := cookies.Set(w, r, result.Session); err != nil {
			log.Println("handler/callback could not save session:", err)
			http.Redirect(w, r, callback.LoginURL("An unexpected error occurred"), status)
			return
		}

		http.Redirect(w, r, result.Target, status)
	}

	return mux.Method{
		"GET": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if callback.ParseParams(r.URL).Kind() != callback.KindMissing {
				resolve(w, r, r.URL, http.StatusFound)
				return
			}

			if err := templates.ExecuteTemplate(w, "callback.gotmpl", bridgeCtx{
				Query: r.URL.RawQuery,
			}); err != nil {
				log.Println("handler/callback failed to write template:", err)
			}
		}),
		"POST": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseForm(); err != nil {
				log.Println("handler/callback failed to parse form:", err)
				http.Error(w, "the request was bad", http.StatusBadRequest)
				return
			}

			resolve(w, r, postedURL(r), http.StatusSeeOther)
		}),
	}
}

// postedURL rebuilds the callback address from the form posted by the bridge
// page.
func postedURL(r *http.Request) *url.URL {
	u := &url.URL{
		Path:     r.URL.Path,
		RawQuery: r.PostForm.Get("query"),
	}
	if fragment, err := url.Parse("#" + r.PostForm.Get("fragment")); err == nil {
		u.Fragment = fragment.Fragment
		u.RawFragment = fragment.RawFragment
	}
	return u
}
