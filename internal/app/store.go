// Package app is the client runtime: the single Store of the current session,
// the listener that keeps it in step with the backend, and the Guard that
// protects views needing a signed in user.
package app

import (
	"context"
	"log"
	"sync"

	"hawx.me/code/dashboard/internal/backend"
)

// AuthClient is the part of backend.Client the Store uses.
type AuthClient interface {
	GetSession(ctx context.Context) (*backend.Session, error)
	SignOut(ctx context.Context) error
	OnAuthStateChange(fn backend.Listener) backend.Subscription
}

// State is what the Store knows. Session and User are either both set, with a
// valid Session, or both nil.
type State struct {
	User    *backend.User
	Session *backend.Session
	Loading bool
}

// SignedIn returns true if there is a user.
func (s State) SignedIn() bool {
	return s.User != nil
}

// Store holds the session for the whole process. Create exactly one and pass
// it to whatever needs it.
type Store struct {
	client AuthClient
	nav    Navigator

	mu       sync.Mutex
	state    State
	resolved bool
	sub      backend.Subscription
	watchers map[int]func(State)
	nextID   int
}

// NewStore creates a Store. It is loading until Mount resolves the session.
func NewStore(client AuthClient, nav Navigator) *Store {
	return &Store{
		client:   client,
		nav:      nav,
		state:    State{Loading: true},
		watchers: map[int]func(State){},
	}
}

// Mount subscribes to changes from the backend and then fetches the current
// session. Subscribing first means a sign in completing during the fetch is
// not missed; if an event arrives before the fetch returns, the event wins.
func (s *Store) Mount(ctx context.Context) {
	listener := &Listener{store: s, nav: s.nav}

	s.mu.Lock()
	if s.sub != nil {
		s.mu.Unlock()
		return
	}
	s.sub = s.client.OnAuthStateChange(listener.Handle)
	s.mu.Unlock()

	session, err := s.client.GetSession(ctx)
	if err != nil {
		log.Println("app/store could not fetch session:", err)
		session = nil
	}

	if !s.set(session, true) {
		return
	}

	if session.Valid() && s.nav.Location().Path == loginPath {
		s.nav.Push(dashboardPath)
	}
}

// Unmount stops listening to the backend. The Store goes back to loading, as
// it no longer knows the session.
func (s *Store) Unmount() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.resolved = false
	s.state = State{Loading: true}
	s.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	s.notify()
}

// Snapshot returns the current State.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Watch calls fn with the State after every change. The returned func stops
// it.
func (s *Store) Watch(fn func(State)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

// SignOut asks the backend to end the session and then forgets it locally,
// whether or not the backend could be told, and goes to the login page.
func (s *Store) SignOut(ctx context.Context) {
	if err := s.client.SignOut(ctx); err != nil {
		log.Println("app/store could not sign out:", err)
	}

	s.apply(nil)

	if s.nav.Location().Path != loginPath {
		s.nav.Push(loginPath)
	}
}

// apply replaces the session, resolving the Store if it was loading. Anything
// other than a valid session clears it.
func (s *Store) apply(session *backend.Session) {
	s.set(session, false)
}

// set replaces the session. If initial is true it only does so when nothing
// has resolved the Store yet, and reports whether it did.
func (s *Store) set(session *backend.Session, initial bool) bool {
	s.mu.Lock()
	if initial && s.resolved {
		s.mu.Unlock()
		return false
	}
	s.resolved = true
	if session.Valid() {
		user := session.User
		s.state = State{User: &user, Session: session}
	} else {
		s.state = State{}
	}
	s.mu.Unlock()

	s.notify()
	return true
}

func (s *Store) notify() {
	s.mu.Lock()
	state := s.state
	fns := make([]func(State), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}
