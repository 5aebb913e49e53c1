package backend

import (
	"sync"

	"github.com/google/uuid"
)

// Event is a change to the auth state reported by a Client.
type Event int

const (
	SignedIn Event = iota + 1
	SignedOut
	TokenRefreshed
	UserUpdated
)

func (e Event) String() string {
	switch e {
	case SignedIn:
		return "SIGNED_IN"
	case SignedOut:
		return "SIGNED_OUT"
	case TokenRefreshed:
		return "TOKEN_REFRESHED"
	case UserUpdated:
		return "USER_UPDATED"
	default:
		return "UNKNOWN"
	}
}

// A Listener is called with each Event and the session it produced. The
// session is nil for SignedOut.
type Listener func(Event, *Session)

// Subscription is returned by OnAuthStateChange.
type Subscription interface {
	Unsubscribe()
}

type subscribers struct {
	mu        sync.Mutex
	listeners map[uuid.UUID]Listener
	order     []uuid.UUID
}

func (s *subscribers) add(fn Listener) Subscription {
	id := uuid.New()

	s.mu.Lock()
	if s.listeners == nil {
		s.listeners = map[uuid.UUID]Listener{}
	}
	s.listeners[id] = fn
	s.order = append(s.order, id)
	s.mu.Unlock()

	return &subscription{id: id, from: s}
}

func (s *subscribers) remove(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.listeners[id]; !ok {
		return
	}
	delete(s.listeners, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// emit calls every listener, in the order they subscribed, on the calling
// goroutine. Listeners may subscribe or unsubscribe while being called.
func (s *subscribers) emit(event Event, session *Session) {
	s.mu.Lock()
	fns := make([]Listener, 0, len(s.order))
	for _, id := range s.order {
		fns = append(fns, s.listeners[id])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(event, session)
	}
}

func (s *subscribers) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

type subscription struct {
	id   uuid.UUID
	from *subscribers
	once sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() { s.from.remove(s.id) })
}
