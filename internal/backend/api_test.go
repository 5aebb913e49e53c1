package backend

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"hawx.me/code/dashboard/internal/config"
)

func accessToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("not-a-secret"))
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

// fakeAPI is enough of the auth API to exercise the client against.
type fakeAPI struct {
	t *testing.T

	mu        sync.Mutex
	users     map[string]User
	codes     map[string]string
	refreshes map[string]string
	verifiers map[string]string
	keys      []string
	exchanges int
	signOuts  int
	failToken bool
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	api := &fakeAPI{
		t:         t,
		users:     map[string]User{},
		codes:     map[string]string{},
		refreshes: map[string]string{},
		verifiers: map[string]string{},
	}

	s := httptest.NewServer(api)
	t.Cleanup(s.Close)
	return api, s
}

func (api *fakeAPI) conf(url string) config.Backend {
	return config.Backend{URL: url, Key: "public-key"}
}

func (api *fakeAPI) addUser(accessToken string, user User) {
	api.mu.Lock()
	api.users[accessToken] = user
	api.mu.Unlock()
}

func (api *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	api.mu.Lock()
	defer api.mu.Unlock()

	api.keys = append(api.keys, r.Header.Get("apikey"))

	switch {
	case r.Method == "POST" && r.URL.Path == "/auth/v1/token":
		r.ParseForm()
		if api.failToken {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid code"}`))
			return
		}

		var sub string
		switch r.Form.Get("grant_type") {
		case "authorization_code":
			api.exchanges++
			code := r.Form.Get("code")
			if want, ok := api.verifiers[code]; ok && want != r.Form.Get("code_verifier") {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":"invalid_grant","error_description":"code verifier does not match"}`))
				return
			}
			sub = api.codes[code]
		case "refresh_token":
			sub = api.refreshes[r.Form.Get("refresh_token")]
		}
		if sub == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid grant"}`))
			return
		}

		access := accessToken(api.t, sub, time.Now().Add(time.Hour))
		api.users[access] = User{ID: sub, Email: sub + "@example.com", AppMetadata: map[string]interface{}{"provider": "github"}}
		api.refreshes["refresh-"+sub+"-next"] = sub

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  access,
			"refresh_token": "refresh-" + sub + "-next",
			"token_type":    "bearer",
			"expires_in":    3600,
		})

	case r.URL.Path == "/auth/v1/user":
		user, ok := api.users[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")]
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"msg":"invalid JWT"}`))
			return
		}
		if r.Method == "PUT" {
			var v struct {
				Data map[string]interface{} `json:"data"`
			}
			json.NewDecoder(r.Body).Decode(&v)
			user.UserMetadata = v.Data
		}
		json.NewEncoder(w).Encode(user)

	case r.Method == "POST" && r.URL.Path == "/auth/v1/logout":
		api.signOuts++
		w.WriteHeader(http.StatusNoContent)

	default:
		http.NotFound(w, r)
	}
}
