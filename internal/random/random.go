// Package random generates unguessable strings for CSRF tokens and PKCE
// verifiers.
package random

import (
	"crypto/rand"

	"golang.org/x/oauth2"
)

const letters = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-_"

// String returns n characters chosen from a URL safe alphabet.
func String(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	for i, b := range bytes {
		bytes[i] = letters[b%byte(len(letters))]
	}
	return string(bytes), nil
}

// Verifier returns a new PKCE code verifier.
func Verifier() string {
	return oauth2.GenerateVerifier()
}
