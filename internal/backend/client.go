package backend

import (
	"context"
	"log"
	"net/http"
	"sync"

	"golang.org/x/sync/singleflight"
	"hawx.me/code/dashboard/internal/config"
)

// Storage persists the session of a Client between runs.
type Storage interface {
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Remove(ctx context.Context) error
}

// Client is a stateful connection to the auth API. It holds the current
// session, persists it with its Storage, and tells subscribers whenever it
// changes. A Client is safe for concurrent use.
type Client struct {
	tokens  *Tokens
	storage Storage
	subs    subscribers
	refresh singleflight.Group

	mu      sync.Mutex
	session *Session
	loaded  bool
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	storage    Storage
}

// WithHTTPClient sets the client used for requests to the auth API.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = httpClient }
}

// WithStorage sets where the session is persisted. Without it the session only
// lives as long as the Client.
func WithStorage(storage Storage) Option {
	return func(o *clientOptions) { o.storage = storage }
}

// New creates a Client for the configured backend.
func New(conf config.Backend, opts ...Option) (*Client, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	o := clientOptions{httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(&o)
	}

	return &Client{
		tokens:  newTokens(conf.URL, conf.Key, o.httpClient),
		storage: o.storage,
	}, nil
}

// Tokens returns the stateless half of the client, for callers that keep the
// session themselves (like the server, which keeps it in a cookie).
func (c *Client) Tokens() *Tokens {
	return c.tokens
}

// OnAuthStateChange registers fn to be called on every change to the session.
func (c *Client) OnAuthStateChange(fn Listener) Subscription {
	return c.subs.add(fn)
}

// ExchangeCode trades an authorization code for a session and makes it current.
func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (*Session, error) {
	session, err := c.tokens.ExchangeCode(ctx, code, verifier)
	if err != nil {
		return nil, err
	}

	c.replace(ctx, session, SignedIn)
	return session, nil
}

// SetSession makes the session described by the given tokens current.
func (c *Client) SetSession(ctx context.Context, accessToken, refreshToken string) (*Session, error) {
	session, err := c.tokens.SetSession(ctx, accessToken, refreshToken)
	if err != nil {
		return nil, err
	}

	c.replace(ctx, session, SignedIn)
	return session, nil
}

// GetSession returns the current session, loading it from storage the first
// time it is called. An expired session is refreshed; if that fails the session
// is dropped and the error returned. A nil session with a nil error means no one
// is signed in.
func (c *Client) GetSession(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	if !c.loaded && c.storage != nil {
		stored, err := c.storage.Load(ctx)
		if err != nil {
			c.mu.Unlock()
			return nil, err
		}
		c.session = stored
	}
	c.loaded = true
	current := c.session
	c.mu.Unlock()

	if current == nil || current.Valid() {
		return current, nil
	}
	if !current.Refreshable() {
		c.replace(ctx, nil, SignedOut)
		return nil, nil
	}

	return c.Refresh(ctx)
}

// Refresh exchanges the refresh token of the current session for a new one.
// Concurrent calls share a single request.
func (c *Client) Refresh(ctx context.Context) (*Session, error) {
	v, err, _ := c.refresh.Do("refresh", func() (interface{}, error) {
		c.mu.Lock()
		current := c.session
		c.mu.Unlock()

		if current == nil {
			return nil, ErrNoSession
		}

		session, err := c.tokens.Refresh(ctx, current)
		if err != nil {
			c.replace(ctx, nil, SignedOut)
			return nil, err
		}

		c.replace(ctx, session, TokenRefreshed)
		return session, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*Session), nil
}

// SignOut ends the current session. The session is dropped locally even if the
// auth API could not be told, in which case that error is returned.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	current := c.session
	c.mu.Unlock()

	var err error
	if current != nil && current.AccessToken != "" {
		err = c.tokens.SignOut(ctx, current.AccessToken)
	}

	c.replace(ctx, nil, SignedOut)
	return err
}

// UpdateUser replaces the metadata of the signed in user.
func (c *Client) UpdateUser(ctx context.Context, metadata map[string]interface{}) (User, error) {
	current, err := c.GetSession(ctx)
	if err != nil {
		return User{}, err
	}
	if current == nil {
		return User{}, ErrNoSession
	}

	user, err := c.tokens.UpdateUser(ctx, current.AccessToken, metadata)
	if err != nil {
		return User{}, err
	}

	updated := *current
	updated.User = user
	c.replace(ctx, &updated, UserUpdated)
	return user, nil
}

// replace sets the current session, persists it and then notifies
// subscribers. Subscribers are called without the lock held so that they may
// call back into the Client.
func (c *Client) replace(ctx context.Context, session *Session, event Event) {
	c.mu.Lock()
	c.session = session
	c.loaded = true
	c.mu.Unlock()

	if c.storage != nil {
		var err error
		if session == nil {
			err = c.storage.Remove(ctx)
		} else {
			err = c.storage.Save(ctx, session)
		}
		if err != nil {
			log.Println("backend/client could not persist session:", err)
		}
	}

	c.subs.emit(event, session)
}
