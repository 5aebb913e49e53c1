package callback

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"net/url"
	"time"

	"golang.org/x/sync/singleflight"
	"hawx.me/code/dashboard/internal/backend"
)

const (
	// DefaultTimeout bounds each call to the auth API made while resolving.
	DefaultTimeout = 10 * time.Second

	// DefaultRemember is how long a resolved callback is remembered.
	DefaultRemember = 5 * time.Minute
)

// Exchanger turns callback credentials into a session. Both backend.Client and
// backend.Tokens are Exchangers.
type Exchanger interface {
	ExchangeCode(ctx context.Context, code, verifier string) (*backend.Session, error)
	SetSession(ctx context.Context, accessToken, refreshToken string) (*backend.Session, error)
}

// State is how far resolving a callback has got.
type State int

const (
	Pending State = iota
	Success
	Failed
)

func (s State) String() string {
	switch s {
	case Success:
		return "success"
	case Failed:
		return "failed"
	default:
		return "pending"
	}
}

// Request is a callback to resolve. Verifier is the PKCE verifier the sign in
// was started with, if any.
type Request struct {
	URL      *url.URL
	Verifier string
}

func (r Request) key() string {
	h := sha256.New()
	h.Write([]byte(r.URL.String()))
	h.Write([]byte{0})
	h.Write([]byte(r.Verifier))
	return hex.EncodeToString(h.Sum(nil))
}

// Result is the outcome of resolving a callback. Target is where the user
// should be sent next, for a failure it is the login page showing the error.
type Result struct {
	State   State
	Kind    Kind
	Target  string
	Session *backend.Session
	Err     error
}

// Message is the message to show the user for a failed Result.
func (r Result) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// ErrorKind is the kind of error a failed Result has, or zero.
func (r Result) ErrorKind() ErrorKind {
	var cbErr *Error
	if errors.As(r.Err, &cbErr) {
		return cbErr.Kind
	}
	return 0
}

// Resolver resolves callbacks at most once each. Concurrent requests for the
// same callback share a single call to the auth API, and later requests are
// given the remembered Result.
type Resolver struct {
	exchanger Exchanger
	timeout   time.Duration
	fallback  string

	group  singleflight.Group
	ledger *ledger
}

// NewResolver creates a Resolver. A zero timeout or remember uses the default.
func NewResolver(exchanger Exchanger, timeout, remember time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if remember <= 0 {
		remember = DefaultRemember
	}

	return &Resolver{
		exchanger: exchanger,
		timeout:   timeout,
		fallback:  DefaultTarget,
		ledger:    newLedger(remember),
	}
}

// Resolve returns the Result for req. It is always Success or Failed.
func (r *Resolver) Resolve(ctx context.Context, req Request) Result {
	key := req.key()

	if result, ok := r.ledger.Get(key); ok {
		return result
	}

	v, _, _ := r.group.Do(key, func() (interface{}, error) {
		if result, ok := r.ledger.Get(key); ok {
			return result, nil
		}

		result := r.resolve(context.WithoutCancel(ctx), req)
		r.ledger.Set(key, result)
		return result, nil
	})

	return v.(Result)
}

func (r *Resolver) resolve(ctx context.Context, req Request) Result {
	params := ParseParams(req.URL)
	kind := params.Kind()

	switch kind {
	case KindError:
		return r.failed(kind, &Error{Kind: CallbackError, Message: params.Message()})

	case KindCode:
		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		session, err := r.exchanger.ExchangeCode(ctx, params.Code, req.Verifier)
		if err != nil {
			log.Println("callback/resolver could not exchange code:", err)
			return r.failed(kind, exchangeError(ctx, err))
		}
		return r.succeeded(kind, params, session)

	case KindTokens:
		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		session, err := r.exchanger.SetSession(ctx, params.AccessToken, params.RefreshToken)
		if err != nil {
			log.Println("callback/resolver could not set session:", err)
			return r.failed(kind, exchangeError(ctx, err))
		}
		return r.succeeded(kind, params, session)

	default:
		return r.failed(kind, &Error{Kind: CallbackError, Message: messageMissing})
	}
}

func (r *Resolver) succeeded(kind Kind, params Params, session *backend.Session) Result {
	return Result{
		State:   Success,
		Kind:    kind,
		Target:  Target(params.Next, r.fallback),
		Session: session,
	}
}

func (r *Resolver) failed(kind Kind, err *Error) Result {
	return Result{
		State:  Failed,
		Kind:   kind,
		Target: LoginURL(err.Message),
		Err:    err,
	}
}

func exchangeError(ctx context.Context, err error) *Error {
	var apiErr *backend.APIError

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &Error{Kind: ExchangeFailed, Message: messageTimeout, Err: err}
	case errors.As(err, &apiErr):
		return &Error{Kind: ExchangeFailed, Message: apiErr.Error(), Err: err}
	default:
		return &Error{Kind: ExchangeFailed, Message: messageUnexpected, Err: err}
	}
}
