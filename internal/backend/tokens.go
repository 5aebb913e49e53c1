package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// Tokens talks to the stateless parts of the auth API. Every method returns
// the resulting Session and keeps nothing, so a single Tokens can serve any
// number of requests concurrently.
type Tokens struct {
	baseURL    string
	httpClient *http.Client
	conf       *oauth2.Config
}

func newTokens(baseURL, key string, httpClient *http.Client) *Tokens {
	baseURL = strings.TrimRight(baseURL, "/")

	base := httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	keyed := *httpClient
	keyed.Transport = &apiKeyTransport{key: key, base: base}

	return &Tokens{
		baseURL:    baseURL,
		httpClient: &keyed,
		conf: &oauth2.Config{
			Endpoint: oauth2.Endpoint{
				AuthURL:   baseURL + "/auth/v1/authorize",
				TokenURL:  baseURL + "/auth/v1/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}
}

// AuthorizeURL returns the address to send a user to so they can sign in with
// provider. The auth API will redirect back to redirectTo with a code that must
// be exchanged along with verifier.
func (t *Tokens) AuthorizeURL(provider, redirectTo, verifier string) string {
	return t.conf.AuthCodeURL("",
		oauth2.SetAuthURLParam("provider", provider),
		oauth2.SetAuthURLParam("redirect_to", redirectTo),
		oauth2.S256ChallengeOption(verifier))
}

// ExchangeCode trades an authorization code for a Session.
func (t *Tokens) ExchangeCode(ctx context.Context, code, verifier string) (*Session, error) {
	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}

	tok, err := t.conf.Exchange(t.context(ctx), code, opts...)
	if err != nil {
		return nil, translate(err)
	}

	return t.session(ctx, tok)
}

// SetSession builds a Session from tokens delivered directly to the client, as
// in the implicit flow. The access token must be a JWT; if it has expired the
// refresh token is used to obtain a new one.
func (t *Tokens) SetSession(ctx context.Context, accessToken, refreshToken string) (*Session, error) {
	if accessToken == "" || refreshToken == "" {
		return nil, ErrIncompleteSession
	}

	claims, err := parseClaims(accessToken)
	if err != nil {
		return nil, err
	}

	expiresAt := time.Time{}
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	if !time.Now().Before(expiresAt) {
		return t.Refresh(ctx, &Session{RefreshToken: refreshToken})
	}

	user, err := t.User(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if claims.Subject != "" && claims.Subject != user.ID {
		return nil, ErrSubjectMismatch
	}

	return &Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		User:         user,
	}, nil
}

// Refresh uses the refresh credential of s to obtain a new Session. The user is
// fetched again so that the refreshed session reflects any changes to it.
func (t *Tokens) Refresh(ctx context.Context, s *Session) (*Session, error) {
	if s == nil || s.RefreshToken == "" {
		return nil, ErrNoSession
	}

	src := t.conf.TokenSource(t.context(ctx), &oauth2.Token{RefreshToken: s.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, translate(err)
	}

	return t.session(ctx, tok)
}

// SignOut invalidates the session identified by accessToken.
func (t *Tokens) SignOut(ctx context.Context, accessToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/auth/v1/logout", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return readAPIError(resp)
	}
	return nil
}

// User returns the user the access token was issued to.
func (t *Tokens) User(ctx context.Context, accessToken string) (User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return User{}, err
	}

	return t.doUser(req, accessToken)
}

// UpdateUser replaces the user metadata for the owner of accessToken.
func (t *Tokens) UpdateUser(ctx context.Context, accessToken string, metadata map[string]interface{}) (User, error) {
	body, err := json.Marshal(struct {
		Data map[string]interface{} `json:"data"`
	}{metadata})
	if err != nil {
		return User{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, t.baseURL+"/auth/v1/user", bytes.NewReader(body))
	if err != nil {
		return User{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	return t.doUser(req, accessToken)
}

func (t *Tokens) doUser(req *http.Request, accessToken string) (User, error) {
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return User{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return User{}, readAPIError(resp)
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return User{}, fmt.Errorf("backend: decoding user: %w", err)
	}
	if provider, ok := user.AppMetadata["provider"].(string); ok {
		user.Provider = provider
	}

	return user, nil
}

func (t *Tokens) session(ctx context.Context, tok *oauth2.Token) (*Session, error) {
	if tok.AccessToken == "" || tok.RefreshToken == "" {
		return nil, ErrIncompleteSession
	}

	expiresAt := tok.Expiry
	if expiresAt.IsZero() {
		if claims, err := parseClaims(tok.AccessToken); err == nil && claims.ExpiresAt != nil {
			expiresAt = claims.ExpiresAt.Time
		}
	}

	user, err := t.User(ctx, tok.AccessToken)
	if err != nil {
		return nil, err
	}

	return &Session{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    expiresAt,
		User:         user,
	}, nil
}

func (t *Tokens) context(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, t.httpClient)
}

// parseClaims reads the claims of an access token without verifying its
// signature. The auth API verifies tokens whenever they are used, the client
// only needs to know who the token is for and when it expires.
func parseClaims(accessToken string) (*jwt.RegisteredClaims, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return nil, fmt.Errorf("backend: reading access token: %w", err)
	}
	return &claims, nil
}

type apiKeyTransport struct {
	key  string
	base http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("apikey", t.key)
	return t.base.RoundTrip(r)
}
