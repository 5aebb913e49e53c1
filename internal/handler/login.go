package handler

import (
	"log"
	"net/http"
	"net/url"

	"github.com/gorilla/sessions"
	"hawx.me/code/dashboard/internal/callback"
	"hawx.me/code/dashboard/internal/random"
	"hawx.me/code/dashboard/internal/strategy"
)

type loginCtx struct {
	Error          string
	RedirectedFrom string
	Strategies     strategy.Strategies
}

// Login lists the ways to sign in. It takes the parameters:
//
//   - redirectedFrom: where to go after signing in
//   - error: a message explaining why the last attempt failed
//
// A user who already has a valid session is sent on to where they were going.
func Login(cookies cookieStore, strategies strategy.Strategies, templates tmpl) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		redirectedFrom := callback.Target(r.FormValue("redirectedFrom"), "")

		if cookies.Get(r).Valid() {
			target := callback.Target(redirectedFrom, callback.DefaultTarget)
			if u, err := url.Parse(target); err == nil && u.Path == "/login" {
				target = callback.DefaultTarget
			}
			http.Redirect(w, r, target, http.StatusFound)
			return
		}

		if err := templates.ExecuteTemplate(w, "login.gotmpl", loginCtx{
			Error:          r.FormValue("error"),
			RedirectedFrom: redirectedFrom,
			Strategies:     strategies,
		}); err != nil {
			log.Println("handler/login failed to write template:", err)
		}
	})
}

// LoginStart begins signing in with the chosen provider, by redirecting the user
// to the auth API. A new PKCE verifier is kept in the flow cookie for the
// callback to use.
func LoginStart(baseURL string, flow sessions.Store, strategies strategy.Strategies) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chosen, err := strategies.Find(r.FormValue("provider"))
		if err != nil {
			http.Redirect(w, r, callback.LoginURL("that provider is not available"), http.StatusFound)
			return
		}

		verifier := random.Verifier()

		session, _ := flow.Get(r, FlowSession)
		session.Values["verifier"] = verifier
		if err := session.Save(r, w); err != nil {
			log.Println("handler/login could not save session:", err)
			http.Error(w, "something went wrong", http.StatusInternalServerError)
			return
		}

		redirectTo := baseURL + "/auth/callback"
		if next := callback.Target(r.FormValue("redirectedFrom"), ""); next != "" {
			redirectTo += "?" + url.Values{"next": {next}}.Encode()
		}

		http.Redirect(w, r, chosen.Redirect(redirectTo, verifier), http.StatusFound)
	})
}

// newState stores a fresh CSRF state in the flow cookie and returns it.
func newState(w http.ResponseWriter, r *http.Request, flow sessions.Store) (string, error) {
	state, err := random.String(32)
	if err != nil {
		return "", err
	}

	session, _ := flow.Get(r, FlowSession)
	session.Values["state"] = state
	return state, session.Save(r, w)
}
