package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hawx.me/code/assert"
	"hawx.me/code/dashboard/internal/backend"
)

type fakeSubscription struct {
	client *fakeClient
}

func (s *fakeSubscription) Unsubscribe() {
	s.client.mu.Lock()
	s.client.listener = nil
	s.client.unsubscribed++
	s.client.mu.Unlock()
}

type fakeClient struct {
	mu           sync.Mutex
	listener     backend.Listener
	session      *backend.Session
	err          error
	signOutErr   error
	signOuts     int
	subscribed   int
	unsubscribed int

	// during is called in GetSession, before it returns.
	during func()
}

func (c *fakeClient) GetSession(ctx context.Context) (*backend.Session, error) {
	if c.during != nil {
		c.during()
	}
	return c.session, c.err
}

func (c *fakeClient) SignOut(ctx context.Context) error {
	c.mu.Lock()
	c.signOuts++
	c.mu.Unlock()

	c.emit(backend.SignedOut, nil)
	return c.signOutErr
}

func (c *fakeClient) OnAuthStateChange(fn backend.Listener) backend.Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener = fn
	c.subscribed++
	return &fakeSubscription{client: c}
}

func (c *fakeClient) emit(event backend.Event, session *backend.Session) {
	c.mu.Lock()
	fn := c.listener
	c.mu.Unlock()

	if fn != nil {
		fn(event, session)
	}
}

func validSession(id string) *backend.Session {
	return &backend.Session{
		AccessToken:  "access-" + id,
		RefreshToken: "refresh-" + id,
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         backend.User{ID: id, Email: id + "@example.com"},
	}
}

func TestStoreIsLoadingUntilMounted(t *testing.T) {
	store := NewStore(&fakeClient{}, NewHistory("/dashboard"))

	assert.True(t, store.Snapshot().Loading)
}

func TestStoreMountWithSession(t *testing.T) {
	assert := assert.New(t)

	session := validSession("user-1")
	client := &fakeClient{session: session}
	store := NewStore(client, NewHistory("/dashboard"))

	store.Mount(context.Background())

	state := store.Snapshot()
	assert.False(state.Loading)
	assert.Equal(session, state.Session)
	if assert.NotNil(state.User) {
		assert.Equal("user-1", state.User.ID)
	}
	assert.Equal(1, client.subscribed)
}

func TestStoreMountWithoutSession(t *testing.T) {
	store := NewStore(&fakeClient{}, NewHistory("/dashboard"))

	store.Mount(context.Background())

	state := store.Snapshot()
	assert.False(t, state.Loading)
	assert.Nil(t, state.User)
	assert.Nil(t, state.Session)
}

func TestStoreMountWhenFetchFails(t *testing.T) {
	store := NewStore(&fakeClient{session: validSession("user-1"), err: errors.New("offline")}, NewHistory("/dashboard"))

	store.Mount(context.Background())

	state := store.Snapshot()
	assert.False(t, state.Loading)
	assert.Nil(t, state.User)
}

func TestStoreMountWithInvalidSession(t *testing.T) {
	session := validSession("user-1")
	session.ExpiresAt = time.Now().Add(-time.Minute)

	store := NewStore(&fakeClient{session: session}, NewHistory("/dashboard"))
	store.Mount(context.Background())

	state := store.Snapshot()
	assert.Nil(t, state.User)
	assert.Nil(t, state.Session)
}

func TestStoreMountAtLoginWithSession(t *testing.T) {
	nav := NewHistory("/login")
	store := NewStore(&fakeClient{session: validSession("user-1")}, nav)

	store.Mount(context.Background())

	assert.Equal(t, "/dashboard", nav.Location().Path)
}

func TestStoreMountSubscribesBeforeFetching(t *testing.T) {
	assert := assert.New(t)

	client := &fakeClient{}
	signedIn := validSession("user-2")
	client.during = func() {
		client.emit(backend.SignedIn, signedIn)
	}

	nav := NewHistory("/auth/callback")
	store := NewStore(client, nav)
	store.Mount(context.Background())

	state := store.Snapshot()
	assert.False(state.Loading)
	assert.Equal(signedIn, state.Session)
	assert.Equal("/dashboard", nav.Location().Path)
}

func TestStoreMountTwiceSubscribesOnce(t *testing.T) {
	client := &fakeClient{}
	store := NewStore(client, NewHistory("/"))

	store.Mount(context.Background())
	store.Mount(context.Background())

	assert.Equal(t, 1, client.subscribed)
}

func TestStoreUnmount(t *testing.T) {
	assert := assert.New(t)

	client := &fakeClient{session: validSession("user-1")}
	store := NewStore(client, NewHistory("/dashboard"))
	store.Mount(context.Background())

	store.Unmount()

	assert.Equal(1, client.unsubscribed)
	assert.True(store.Snapshot().Loading)

	client.emit(backend.SignedIn, validSession("user-2"))
	assert.Nil(store.Snapshot().User)
}

func TestStoreEventsReplaceState(t *testing.T) {
	assert := assert.New(t)

	client := &fakeClient{session: validSession("user-1")}
	store := NewStore(client, NewHistory("/dashboard"))
	store.Mount(context.Background())

	refreshed := validSession("user-1")
	refreshed.AccessToken = "access-2"
	client.emit(backend.TokenRefreshed, refreshed)
	assert.Equal("access-2", store.Snapshot().Session.AccessToken)

	updated := validSession("user-1")
	updated.User.Email = "new@example.com"
	client.emit(backend.UserUpdated, updated)
	assert.Equal("new@example.com", store.Snapshot().User.Email)

	expired := validSession("user-1")
	expired.ExpiresAt = time.Now().Add(-time.Second)
	client.emit(backend.TokenRefreshed, expired)
	assert.Nil(store.Snapshot().Session)
	assert.Nil(store.Snapshot().User)
}

func TestStoreSignOut(t *testing.T) {
	assert := assert.New(t)

	client := &fakeClient{session: validSession("user-1")}
	nav := NewHistory("/dashboard")
	store := NewStore(client, nav)
	store.Mount(context.Background())

	store.SignOut(context.Background())

	assert.Equal(1, client.signOuts)
	assert.Nil(store.Snapshot().User)
	assert.Equal("/login", nav.Location().Path)
	assert.Equal(2, nav.Len())
}

func TestStoreSignOutWhenBackendFails(t *testing.T) {
	nav := NewHistory("/settings")
	store := NewStore(&fakeClient{session: validSession("user-1"), signOutErr: errors.New("offline")}, nav)
	store.Mount(context.Background())

	store.SignOut(context.Background())

	assert.Nil(t, store.Snapshot().User)
	assert.Equal(t, "/login", nav.Location().Path)
}

func TestStoreWatch(t *testing.T) {
	client := &fakeClient{session: validSession("user-1")}
	store := NewStore(client, NewHistory("/dashboard"))

	var states []State
	cancel := store.Watch(func(s State) { states = append(states, s) })

	store.Mount(context.Background())
	cancel()
	client.emit(backend.SignedOut, nil)

	if assert.Len(t, states, 1) {
		assert.False(t, states[0].Loading)
		assert.True(t, states[0].SignedIn())
	}
}
