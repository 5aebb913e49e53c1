package handler

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/sessions"
	"hawx.me/code/dashboard/internal/backend"
	"hawx.me/code/dashboard/internal/web"
)

type fakeExchanger struct {
	mu       sync.Mutex
	codes    int
	sets     int
	verifier string
	err      error
	onCode   func(*backend.Session)
}

func (e *fakeExchanger) ExchangeCode(ctx context.Context, code, verifier string) (*backend.Session, error) {
	e.mu.Lock()
	e.codes++
	e.verifier = verifier
	err, onCode := e.err, e.onCode
	e.mu.Unlock()

	if err != nil {
		return nil, err
	}
	session := testSession("user-" + code)
	if onCode != nil {
		onCode(session)
	}
	return session, nil
}

func (e *fakeExchanger) SetSession(ctx context.Context, accessToken, refreshToken string) (*backend.Session, error) {
	e.mu.Lock()
	e.sets++
	err := e.err
	e.mu.Unlock()

	if err != nil {
		return nil, err
	}
	session := testSession("user-implicit")
	session.AccessToken = accessToken
	session.RefreshToken = refreshToken
	return session, nil
}

func (e *fakeExchanger) calls() (codes, sets int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.codes, e.sets
}

func (e *fakeExchanger) lastVerifier() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.verifier
}

type fakeSignOuter struct {
	mu     sync.Mutex
	tokens []string
	err    error
}

func (s *fakeSignOuter) SignOut(ctx context.Context, accessToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = append(s.tokens, accessToken)
	return s.err
}

func (s *fakeSignOuter) signedOut() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tokens...)
}

func testSession(id string) *backend.Session {
	return &backend.Session{
		AccessToken:  "access-" + id,
		RefreshToken: "refresh-" + id,
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         backend.User{ID: id, Email: id + "@example.com", Provider: "github"},
	}
}

func testStores(t *testing.T) (*sessions.CookieStore, *backend.CookieHelper) {
	store, err := backend.NewCookieStore("a-long-enough-secret", false)
	if err != nil {
		t.Fatal(err)
	}
	return store, backend.NewCookieHelper(store, "dashboard-session")
}

func newClient(t *testing.T) *http.Client {
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}

	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func testTemplates(t *testing.T) tmpl {
	templates, err := web.Parse()
	if err != nil {
		t.Fatal(err)
	}
	return templates
}

func withCookie(t *testing.T, cookies *backend.CookieHelper, session *backend.Session) *http.Cookie {
	w := httptest.NewRecorder()
	if err := cookies.Set(w, httptest.NewRequest("GET", "/", nil), session); err != nil {
		t.Fatal(err)
	}
	return w.Result().Cookies()[0]
}
