package handler

import (
	"context"
	"log"
	"net/http"

	"github.com/gorilla/sessions"
	"hawx.me/code/dashboard/internal/backend"
	"hawx.me/code/dashboard/internal/callback"
	"hawx.me/code/dashboard/internal/gateway"
)

type dashboardCtx struct {
	User  backend.User
	State string
}

// Dashboard shows the signed in user. It expects to be behind the gateway, so
// that there is always a session.
func Dashboard(flow sessions.Store, templates tmpl) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := gateway.SessionFromContext(r.Context())
		if !ok {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		state, err := newState(w, r, flow)
		if err != nil {
			log.Println("handler/dashboard could not save session:", err)
		}

		if err := templates.ExecuteTemplate(w, "dashboard.gotmpl", dashboardCtx{
			User:  session.User,
			State: state,
		}); err != nil {
			log.Println("handler/dashboard failed to write template:", err)
		}
	})
}

type signOuter interface {
	SignOut(ctx context.Context, accessToken string) error
}

// SignOut ends the session. The auth API is told if it can be, but the cookie
// is removed regardless.
func SignOut(cookies cookieStore, tokens signOuter, flow sessions.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, _ := flow.Get(r, FlowSession)
		state, _ := session.Values["state"].(string)

		if state == "" || r.FormValue("state") != state {
			http.Error(w, "state did not match", http.StatusBadRequest)
			return
		}

		current, ok := gateway.SessionFromContext(r.Context())
		if !ok {
			current = cookies.Get(r)
		}
		if current != nil && current.AccessToken != "" {
			if err := tokens.SignOut(r.Context(), current.AccessToken); err != nil {
				log.Println("handler/sign-out could not sign out:", err)
			}
		}

		if err := cookies.Remove(w, r); err != nil {
			log.Println("handler/sign-out could not remove session:", err)
		}

		delete(session.Values, "state")
		if err := session.Save(r, w); err != nil {
			log.Println("handler/sign-out could not save flow session:", err)
		}

		http.Redirect(w, r, callback.LoginURL(""), http.StatusSeeOther)
	})
}
