package backend

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hawx.me/code/assert"
	"hawx.me/code/dashboard/internal/config"
)

func configFor(url string) config.Backend {
	return config.Backend{URL: url, Key: "public-key"}
}

type recordedEvent struct {
	Event   Event
	Session *Session
}

type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recorder) listen(event Event, session *Session) {
	r.mu.Lock()
	r.events = append(r.events, recordedEvent{event, session})
	r.mu.Unlock()
}

func (r *recorder) kinds() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var kinds []Event
	for _, e := range r.events {
		kinds = append(kinds, e.Event)
	}
	return kinds
}

type fakeStorage struct {
	session *Session
	saves   int
	removes int
	err     error
}

func (s *fakeStorage) Load(ctx context.Context) (*Session, error) { return s.session, s.err }

func (s *fakeStorage) Save(ctx context.Context, session *Session) error {
	s.saves++
	s.session = session
	return nil
}

func (s *fakeStorage) Remove(ctx context.Context) error {
	s.removes++
	s.session = nil
	return nil
}

func TestNewWhenConfigurationMissing(t *testing.T) {
	_, err := New(config.Backend{URL: "http://auth.example.com"})
	assert.True(t, errors.Is(err, config.ErrConfigurationMissing))

	_, err = New(config.Backend{Key: "key"})
	assert.True(t, errors.Is(err, config.ErrConfigurationMissing))
}

func TestClientExchangeCodeEmitsSignedIn(t *testing.T) {
	assert := assert.New(t)

	api, s := newFakeAPI(t)
	api.codes["code"] = "user-1"
	storage := &fakeStorage{}

	client, _ := New(api.conf(s.URL), WithStorage(storage))
	rec := &recorder{}
	client.OnAuthStateChange(rec.listen)

	session, err := client.ExchangeCode(context.Background(), "code", "")
	assert.Nil(err)
	assert.Equal([]Event{SignedIn}, rec.kinds())
	assert.Equal(session, rec.events[0].Session)
	assert.Equal(session, storage.session)

	current, err := client.GetSession(context.Background())
	assert.Nil(err)
	assert.Equal(session, current)
}

func TestClientExchangeCodeFailureEmitsNothing(t *testing.T) {
	api, s := newFakeAPI(t)
	api.failToken = true

	client, _ := New(api.conf(s.URL))
	rec := &recorder{}
	client.OnAuthStateChange(rec.listen)

	_, err := client.ExchangeCode(context.Background(), "code", "")

	var apiErr *APIError
	assert.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Invalid code", apiErr.Message)
	assert.Len(t, rec.kinds(), 0)
}

func TestClientGetSessionLoadsFromStorage(t *testing.T) {
	stored := &Session{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         User{ID: "user-1"},
	}

	client, _ := New(configFor("http://auth.example.com"), WithStorage(&fakeStorage{session: stored}))

	session, err := client.GetSession(context.Background())
	assert.Nil(t, err)
	assert.Equal(t, stored, session)
}

func TestClientGetSessionWhenNoneStored(t *testing.T) {
	client, _ := New(configFor("http://auth.example.com"), WithStorage(&fakeStorage{}))

	session, err := client.GetSession(context.Background())
	assert.Nil(t, err)
	assert.Nil(t, session)
}

func TestClientGetSessionWhenStorageFails(t *testing.T) {
	client, _ := New(configFor("http://auth.example.com"), WithStorage(&fakeStorage{err: errors.New("disk on fire")}))

	session, err := client.GetSession(context.Background())
	assert.NotNil(t, err)
	assert.Nil(t, session)
}

func TestClientGetSessionRefreshesExpired(t *testing.T) {
	assert := assert.New(t)

	api, s := newFakeAPI(t)
	api.refreshes["refresh"] = "user-1"
	storage := &fakeStorage{session: &Session{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(-time.Minute),
		User:         User{ID: "user-1"},
	}}

	client, _ := New(api.conf(s.URL), WithStorage(storage))
	rec := &recorder{}
	client.OnAuthStateChange(rec.listen)

	session, err := client.GetSession(context.Background())
	assert.Nil(err)
	assert.True(session.Valid())
	assert.Equal("refresh-user-1-next", session.RefreshToken)
	assert.Equal([]Event{TokenRefreshed}, rec.kinds())
	assert.Equal(1, storage.saves)
}

func TestClientGetSessionWhenRefreshFails(t *testing.T) {
	assert := assert.New(t)

	_, s := newFakeAPI(t)
	storage := &fakeStorage{session: &Session{
		AccessToken:  "access",
		RefreshToken: "revoked",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}}

	client, _ := New(configFor(s.URL), WithStorage(storage))
	rec := &recorder{}
	client.OnAuthStateChange(rec.listen)

	session, err := client.GetSession(context.Background())
	assert.NotNil(err)
	assert.Nil(session)
	assert.Equal([]Event{SignedOut}, rec.kinds())
	assert.Equal(1, storage.removes)

	session, err = client.GetSession(context.Background())
	assert.Nil(err)
	assert.Nil(session)
}

func TestClientSignOut(t *testing.T) {
	assert := assert.New(t)

	api, s := newFakeAPI(t)
	api.codes["code"] = "user-1"

	client, _ := New(api.conf(s.URL))
	client.ExchangeCode(context.Background(), "code", "")

	rec := &recorder{}
	client.OnAuthStateChange(rec.listen)

	assert.Nil(client.SignOut(context.Background()))
	assert.Equal(1, api.signOuts)
	assert.Equal([]Event{SignedOut}, rec.kinds())
	assert.Nil(rec.events[0].Session)

	session, _ := client.GetSession(context.Background())
	assert.Nil(session)
}

func TestClientSignOutWhenAPIFails(t *testing.T) {
	client, _ := New(configFor("http://127.0.0.1:1"), WithStorage(&fakeStorage{session: &Session{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
	}}))
	client.GetSession(context.Background())

	rec := &recorder{}
	client.OnAuthStateChange(rec.listen)

	assert.NotNil(t, client.SignOut(context.Background()))
	assert.Equal(t, []Event{SignedOut}, rec.kinds())

	session, _ := client.GetSession(context.Background())
	assert.Nil(t, session)
}

func TestClientUpdateUser(t *testing.T) {
	assert := assert.New(t)

	api, s := newFakeAPI(t)
	api.codes["code"] = "user-1"

	client, _ := New(api.conf(s.URL))
	client.ExchangeCode(context.Background(), "code", "")

	rec := &recorder{}
	client.OnAuthStateChange(rec.listen)

	user, err := client.UpdateUser(context.Background(), map[string]interface{}{"name": "Ada"})
	assert.Nil(err)
	assert.Equal("Ada", user.UserMetadata["name"])
	assert.Equal([]Event{UserUpdated}, rec.kinds())
	assert.Equal("Ada", rec.events[0].Session.User.UserMetadata["name"])
}

func TestClientUpdateUserWithoutSession(t *testing.T) {
	client, _ := New(configFor("http://auth.example.com"))

	_, err := client.UpdateUser(context.Background(), nil)
	assert.Equal(t, ErrNoSession, err)
}

func TestClientUnsubscribe(t *testing.T) {
	api, s := newFakeAPI(t)
	api.codes["code"] = "user-1"

	client, _ := New(api.conf(s.URL))
	rec := &recorder{}
	sub := client.OnAuthStateChange(rec.listen)
	sub.Unsubscribe()
	sub.Unsubscribe()

	client.ExchangeCode(context.Background(), "code", "")
	assert.Len(t, rec.kinds(), 0)
	assert.Equal(t, 0, client.subs.len())
}

func TestClientListenerCanCallBack(t *testing.T) {
	api, s := newFakeAPI(t)
	api.codes["code"] = "user-1"

	client, _ := New(api.conf(s.URL))

	var seen *Session
	client.OnAuthStateChange(func(event Event, _ *Session) {
		seen, _ = client.GetSession(context.Background())
	})

	session, _ := client.ExchangeCode(context.Background(), "code", "")
	assert.Equal(t, session, seen)
}

func TestEventString(t *testing.T) {
	assert.Equal(t, "SIGNED_IN", SignedIn.String())
	assert.Equal(t, "SIGNED_OUT", SignedOut.String())
	assert.Equal(t, "TOKEN_REFRESHED", TokenRefreshed.String())
	assert.Equal(t, "USER_UPDATED", UserUpdated.String())
}
