package app

import (
	"net/url"
	"sync"
)

// Navigator moves between views by address.
type Navigator interface {
	// Location returns the current address.
	Location() *url.URL

	// Push adds target to the history and makes it current.
	Push(target string)

	// Replace swaps the current address for target.
	Replace(target string)
}

// History is an in-memory Navigator. Targets are resolved against the current
// address, so relative targets work as they would in a browser.
type History struct {
	mu        sync.Mutex
	entries   []*url.URL
	listeners map[int]func(*url.URL)
	nextID    int
}

// NewHistory creates a History starting at start.
func NewHistory(start string) *History {
	u, err := url.Parse(start)
	if err != nil {
		u = &url.URL{Path: "/"}
	}

	return &History{
		entries:   []*url.URL{u},
		listeners: map[int]func(*url.URL){},
	}
}

func (h *History) Location() *url.URL {
	h.mu.Lock()
	defer h.mu.Unlock()

	u := *h.entries[len(h.entries)-1]
	return &u
}

func (h *History) Push(target string) {
	h.navigate(target, false)
}

func (h *History) Replace(target string) {
	h.navigate(target, true)
}

// Back returns to the previous address. It returns false if there is nowhere
// to go back to.
func (h *History) Back() bool {
	h.mu.Lock()
	if len(h.entries) < 2 {
		h.mu.Unlock()
		return false
	}
	h.entries = h.entries[:len(h.entries)-1]
	current := *h.entries[len(h.entries)-1]
	listeners := h.snapshotListeners()
	h.mu.Unlock()

	for _, fn := range listeners {
		fn(&current)
	}
	return true
}

// Len is the number of entries in the history.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Listen calls fn after each change of address. The returned func stops it.
func (h *History) Listen(fn func(*url.URL)) (cancel func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

func (h *History) navigate(target string, replace bool) {
	ref, err := url.Parse(target)
	if err != nil {
		return
	}

	h.mu.Lock()
	next := h.entries[len(h.entries)-1].ResolveReference(ref)
	if replace {
		h.entries[len(h.entries)-1] = next
	} else {
		h.entries = append(h.entries, next)
	}
	current := *next
	listeners := h.snapshotListeners()
	h.mu.Unlock()

	for _, fn := range listeners {
		fn(&current)
	}
}

func (h *History) snapshotListeners() []func(*url.URL) {
	fns := make([]func(*url.URL), 0, len(h.listeners))
	for _, fn := range h.listeners {
		fns = append(fns, fn)
	}
	return fns
}
