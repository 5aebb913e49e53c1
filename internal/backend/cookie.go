package backend

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"golang.org/x/crypto/hkdf"
)

const cookieSessionKey = "auth"

// CookieHelper keeps a Session in a cookie. It owns the encoding so that
// handlers only see Sessions.
type CookieHelper struct {
	store sessions.Store
	name  string
}

// NewCookieHelper returns a CookieHelper that reads and writes the cookie
// called name in store.
func NewCookieHelper(store sessions.Store, name string) *CookieHelper {
	return &CookieHelper{store: store, name: name}
}

type cookieSession struct {
	AccessToken  string `json:"a"`
	RefreshToken string `json:"r"`
	ExpiresAt    int64  `json:"e"`
	UserID       string `json:"u"`
	Email        string `json:"m,omitempty"`
	Provider     string `json:"p,omitempty"`
}

// Get returns the Session stored in the request's cookie, or nil if there is
// none or it can not be decoded. The Session may have expired.
func (h *CookieHelper) Get(r *http.Request) *Session {
	session, err := h.store.Get(r, h.name)
	if err != nil {
		return nil
	}

	raw, ok := session.Values[cookieSessionKey].(string)
	if !ok {
		return nil
	}

	var v cookieSession
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil
	}

	return &Session{
		AccessToken:  v.AccessToken,
		RefreshToken: v.RefreshToken,
		ExpiresAt:    time.Unix(v.ExpiresAt, 0),
		User: User{
			ID:       v.UserID,
			Email:    v.Email,
			Provider: v.Provider,
		},
	}
}

// Set writes s to the cookie.
func (h *CookieHelper) Set(w http.ResponseWriter, r *http.Request, s *Session) error {
	if s == nil {
		return h.Remove(w, r)
	}

	raw, err := json.Marshal(cookieSession{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    s.ExpiresAt.Unix(),
		UserID:       s.User.ID,
		Email:        s.User.Email,
		Provider:     s.User.Provider,
	})
	if err != nil {
		return err
	}

	session, _ := h.store.Get(r, h.name)
	session.Values[cookieSessionKey] = string(raw)
	return session.Save(r, w)
}

// Remove expires the cookie.
func (h *CookieHelper) Remove(w http.ResponseWriter, r *http.Request) error {
	session, _ := h.store.Get(r, h.name)
	delete(session.Values, cookieSessionKey)
	session.Options.MaxAge = -1
	return session.Save(r, w)
}

// CookieKeys stretches secret into a hash key for signing cookies and a block
// key for encrypting them.
func CookieKeys(secret string) (hashKey, blockKey []byte, err error) {
	if secret == "" {
		return nil, nil, errors.New("backend: cookie secret is empty")
	}

	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("dashboard cookies"))

	hashKey = make([]byte, 32)
	if _, err := io.ReadFull(kdf, hashKey); err != nil {
		return nil, nil, err
	}
	blockKey = make([]byte, 32)
	if _, err := io.ReadFull(kdf, blockKey); err != nil {
		return nil, nil, err
	}

	return hashKey, blockKey, nil
}

// NewCookieStore creates the store used for session and flow cookies.
func NewCookieStore(secret string, secure bool) (*sessions.CookieStore, error) {
	hashKey, blockKey, err := CookieKeys(secret)
	if err != nil {
		return nil, err
	}

	store := sessions.NewCookieStore(hashKey, blockKey)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 30,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}

	return store, nil
}
