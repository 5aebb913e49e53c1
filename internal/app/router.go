package app

import (
	"bytes"
	"errors"
	"io"
)

// ErrRedirectLoop is returned by Router.Render when views keep navigating
// instead of rendering.
var ErrRedirectLoop = errors.New("app: too many redirects")

const maxHops = 8

// Router picks the View for the current address of a Navigator.
type Router struct {
	nav      Navigator
	routes   map[string]View
	notFound View
	rendered string
}

// NewRouter creates a Router. Addresses that have no View render notFound.
func NewRouter(nav Navigator, notFound View) *Router {
	if notFound == nil {
		notFound = emptyView
	}

	return &Router{
		nav:      nav,
		routes:   map[string]View{},
		notFound: notFound,
	}
}

// Handle renders v for path.
func (r *Router) Handle(path string, v View) {
	r.routes[path] = v
}

// Render writes the View for the current address to w. If rendering navigates
// somewhere else the output is discarded and the new address rendered instead.
func (r *Router) Render(w io.Writer) error {
	for i := 0; i < maxHops; i++ {
		location := r.nav.Location()

		view, ok := r.routes[location.Path]
		if !ok {
			view = r.notFound
		}

		var buf bytes.Buffer
		if err := view.Render(&buf); err != nil {
			return err
		}

		if r.nav.Location().String() == location.String() {
			r.rendered = location.String()
			_, err := buf.WriteTo(w)
			return err
		}
	}

	return ErrRedirectLoop
}

// Rendered returns the address of the View last written by Render.
func (r *Router) Rendered() string {
	return r.rendered
}
