package handler

import (
	"log"
	"net/http"
	"net/url"
	"sync"

	"hawx.me/code/dashboard/internal/callback"
	"hawx.me/code/mux"
)

type doneCtx struct {
	Email string
}

type errorCtx struct {
	Message string
}

// Loopback is the callback address dashctl listens on while a user signs in
// with their browser. It works like Callback, except the session stays in the
// process: the resolver's exchanger makes it current. The first result is
// passed to done; later requests are shown the same result without calling
// done again.
func Loopback(res resolver, verifier string, templates tmpl, done func(callback.Result)) http.Handler {
	var once sync.Once

	show := func(w http.ResponseWriter, r *http.Request, u *url.URL) {
		result := res.Resolve(r.Context(), callback.Request{URL: u, Verifier: verifier})
		once.Do(func() { done(result) })

		var err error
		if result.State == callback.Success {
			err = templates.ExecuteTemplate(w, "done.gotmpl", doneCtx{Email: result.Session.User.Email})
		} else {
			w.WriteHeader(http.StatusBadRequest)
			err = templates.ExecuteTemplate(w, "error.gotmpl", errorCtx{Message: result.Message()})
		}
		if err != nil {
			log.Println("handler/loopback failed to write template:", err)
		}
	}

	return mux.Method{
		"GET": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if callback.ParseParams(r.URL).Kind() != callback.KindMissing {
				show(w, r, r.URL)
				return
			}

			if err := templates.ExecuteTemplate(w, "callback.gotmpl", bridgeCtx{
				Query: r.URL.RawQuery,
			}); err != nil {
				log.Println("handler/loopback failed to write template:", err)
			}
		}),
		"POST": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseForm(); err != nil {
				http.Error(w, "the request was bad", http.StatusBadRequest)
				return
			}

			show(w, r, postedURL(r))
		}),
	}
}
