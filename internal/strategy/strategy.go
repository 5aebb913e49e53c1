// Package strategy lists the ways a user can sign in. Each is an OAuth provider
// enabled on the auth API, which does the work of talking to the provider.
package strategy

import (
	"errors"

	"hawx.me/code/dashboard/internal/config"
)

var ErrUnknown = errors.New("strategy: unknown provider")

type Strategies []Strategy

type Strategy interface {
	// Name returns the provider name the auth API knows the Strategy by.
	Name() string

	// Label is shown to the user.
	Label() string

	// Redirect returns the URL to send the user to to begin signing in. They
	// will return to redirectTo, and the code they return with must be
	// exchanged using verifier.
	Redirect(redirectTo, verifier string) string
}

type authorizer interface {
	AuthorizeURL(provider, redirectTo, verifier string) string
}

type hosted struct {
	name  string
	label string
	auth  authorizer
}

// Hosted provides a Strategy for a provider enabled on the auth API.
func Hosted(auth authorizer, name, label string) Strategy {
	if label == "" {
		label = name
	}

	return &hosted{name: name, label: label, auth: auth}
}

func (s *hosted) Name() string  { return s.name }
func (s *hosted) Label() string { return s.label }

func (s *hosted) Redirect(redirectTo, verifier string) string {
	return s.auth.AuthorizeURL(s.name, redirectTo, verifier)
}

// FromConfig creates a Strategy for every configured provider.
func FromConfig(auth authorizer, providers []config.Provider) Strategies {
	strategies := make(Strategies, 0, len(providers))
	for _, p := range providers {
		strategies = append(strategies, Hosted(auth, p.Name, p.Label))
	}
	return strategies
}

// Find returns the Strategy called name.
func (strategies Strategies) Find(name string) (Strategy, error) {
	for _, s := range strategies {
		if s.Name() == name {
			return s, nil
		}
	}

	return nil, ErrUnknown
}
