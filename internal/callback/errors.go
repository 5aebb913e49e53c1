package callback

// ErrorKind says which step of resolving a callback failed.
type ErrorKind int

const (
	// CallbackError is an error reported by the provider or auth API in the
	// callback address itself, or a callback with no credentials at all.
	CallbackError ErrorKind = iota + 1

	// ExchangeFailed is a rejected, failed or timed out call to exchange the
	// callback's credentials for a session.
	ExchangeFailed
)

func (k ErrorKind) String() string {
	switch k {
	case CallbackError:
		return "callback_error"
	case ExchangeFailed:
		return "exchange_failed"
	default:
		return "unknown"
	}
}

// Error is why a callback failed. Message is shown to the user as is.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

const (
	messageMissing    = "missing credentials"
	messageTimeout    = "the sign-in request timed out"
	messageUnexpected = "An unexpected error occurred"
)
