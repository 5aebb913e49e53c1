package app

import (
	"io"
	"log"
	"net/url"
	"sync"
	"time"
)

// DefaultDebounce is how long the Guard waits before sending a signed out user
// to the login page.
const DefaultDebounce = 100 * time.Millisecond

// A View renders a screen of the client.
type View interface {
	Render(w io.Writer) error
}

// ViewFunc is a View.
type ViewFunc func(w io.Writer) error

func (f ViewFunc) Render(w io.Writer) error {
	return f(w)
}

var emptyView = ViewFunc(func(io.Writer) error { return nil })

// Guard protects views that need a signed in user. It only reads the Store,
// it never fetches a session itself.
type Guard struct {
	store    *Store
	nav      Navigator
	loading  View
	debounce time.Duration
	bypass   bool

	mu      sync.Mutex
	timer   *time.Timer
	pending bool
	sent    bool
	stop    func()
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithLoading sets the View rendered while the Store is loading.
func WithLoading(v View) GuardOption {
	return func(g *Guard) { g.loading = v }
}

// WithDebounce sets how long to wait before redirecting. Zero redirects
// immediately.
func WithDebounce(d time.Duration) GuardOption {
	return func(g *Guard) { g.debounce = d }
}

// WithBypass renders guarded views even without a user. It is for local
// development only.
func WithBypass(bypass bool) GuardOption {
	return func(g *Guard) { g.bypass = bypass }
}

// NewGuard creates a Guard reading store.
func NewGuard(store *Store, nav Navigator, opts ...GuardOption) *Guard {
	g := &Guard{
		store:    store,
		nav:      nav,
		loading:  emptyView,
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.bypass {
		log.Println("app/guard BYPASS ENABLED: protected views render without a signed in user")
	}

	g.stop = store.Watch(func(state State) {
		if state.Loading || state.SignedIn() {
			g.reset()
		}
	})

	return g
}

// Close stops the Guard watching its Store and cancels any pending redirect.
func (g *Guard) Close() {
	g.stop()
	g.reset()
}

// Wrap returns a View that renders children only when there is a user. While
// the Store is loading it renders the loading View instead. Without a user it
// renders nothing and sends the user to the login page, once.
func (g *Guard) Wrap(children View) View {
	return ViewFunc(func(w io.Writer) error {
		if g.bypass {
			return children.Render(w)
		}

		state := g.store.Snapshot()
		switch {
		case state.Loading:
			return g.loading.Render(w)
		case !state.SignedIn():
			g.redirect()
			return nil
		default:
			g.reset()
			return children.Render(w)
		}
	})
}

// Pending returns true if a redirect is waiting for the debounce.
func (g *Guard) Pending() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending
}

func (g *Guard) redirect() {
	g.mu.Lock()
	if g.pending || g.sent {
		g.mu.Unlock()
		return
	}

	target := loginPath + "?" + url.Values{"redirectedFrom": {g.nav.Location().RequestURI()}}.Encode()

	if g.debounce <= 0 {
		g.sent = true
		g.mu.Unlock()
		g.nav.Push(target)
		return
	}

	g.pending = true
	g.timer = time.AfterFunc(g.debounce, func() {
		g.mu.Lock()
		if !g.pending {
			g.mu.Unlock()
			return
		}
		g.pending = false
		g.sent = true
		g.mu.Unlock()

		g.nav.Push(target)
	})
	g.mu.Unlock()
}

func (g *Guard) reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.pending = false
	g.sent = false
}
