// Package callback resolves the address the auth API redirects back to after a
// sign in attempt into a session, or a reason why there is none.
package callback

import (
	"net/url"
	"strconv"
	"time"
)

// Kind is the shape of the credentials a callback carries.
type Kind int

const (
	KindMissing Kind = iota
	KindError
	KindCode
	KindTokens
)

func (k Kind) String() string {
	switch k {
	case KindError:
		return "error"
	case KindCode:
		return "code"
	case KindTokens:
		return "tokens"
	default:
		return "missing"
	}
}

// Params are the values a callback address carries in its query or fragment.
type Params struct {
	Code             string
	AccessToken      string
	RefreshToken     string
	ExpiresIn        time.Duration
	Error            string
	ErrorCode        string
	ErrorDescription string
	Next             string
}

// ParseParams reads Params from u. The query is read first; values in the
// fragment only fill in keys the query did not have.
func ParseParams(u *url.URL) Params {
	values := u.Query()

	if fragment := u.EscapedFragment(); fragment != "" {
		if extra, err := url.ParseQuery(fragment); err == nil {
			for key, vs := range extra {
				if values.Get(key) == "" {
					values[key] = vs
				}
			}
		}
	}

	p := Params{
		Code:             values.Get("code"),
		AccessToken:      values.Get("access_token"),
		RefreshToken:     values.Get("refresh_token"),
		Error:            values.Get("error"),
		ErrorCode:        values.Get("error_code"),
		ErrorDescription: values.Get("error_description"),
		Next:             values.Get("next"),
	}
	if seconds, err := strconv.Atoi(values.Get("expires_in")); err == nil {
		p.ExpiresIn = time.Duration(seconds) * time.Second
	}

	return p
}

// Kind classifies p. An error always wins, then a code, then a pair of
// tokens. Anything else is missing.
func (p Params) Kind() Kind {
	switch {
	case p.Error != "" || p.ErrorCode != "" || p.ErrorDescription != "":
		return KindError
	case p.Code != "":
		return KindCode
	case p.AccessToken != "" && p.RefreshToken != "":
		return KindTokens
	default:
		return KindMissing
	}
}

// Message is the error reported by the provider, as it was given.
func (p Params) Message() string {
	switch {
	case p.ErrorDescription != "":
		return p.ErrorDescription
	case p.Error != "":
		return p.Error
	default:
		return p.ErrorCode
	}
}
