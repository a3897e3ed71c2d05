// Package apierror defines the error taxonomy for calls made to the Spotify
// accounts and Web API endpoints, and translates transport outcomes into it.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Kind classifies a failure by how a caller should react to it.
type Kind int

const (
	KindUnknown Kind = iota
	// KindAuth: the credential exchange failed or a token was rejected.
	KindAuth
	// KindNotFound: the requested resource doesn't exist.
	KindNotFound
	// KindTransient: rate limited, server-side failure or timeout.
	KindTransient
	// KindTransport: connection failure or a malformed response.
	KindTransport
	// KindInvalid: the request was rejected before it was sent.
	KindInvalid
)

// Sentinels for use with errors.Is. Every *Error unwraps to the sentinel for
// its Kind.
var (
	ErrAuth      = errors.New("authorization failed")
	ErrNotFound  = errors.New("resource not found")
	ErrTransient = errors.New("temporary failure")
	ErrTransport = errors.New("transport failure")
	ErrInvalid   = errors.New("invalid request")
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindTransient:
		return "transient"
	case KindTransport:
		return "transport"
	case KindInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindAuth:
		return ErrAuth
	case KindNotFound:
		return ErrNotFound
	case KindTransient:
		return ErrTransient
	case KindTransport:
		return ErrTransport
	case KindInvalid:
		return ErrInvalid
	default:
		return nil
	}
}

// Error is the single tagged error value surfaced by the token and repository
// layers.
type Error struct {
	Kind Kind
	// Op names the operation that failed, e.g. "spotify.GetTrack".
	Op string
	// StatusCode is the upstream HTTP status, zero when no response was
	// received.
	StatusCode int
	// Message is the upstream (or local) description of the failure.
	Message string
	// RetryAfter is the upstream's requested delay before retrying, when
	// supplied.
	RetryAfter time.Duration
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	msg := e.Op + ": request failed"
	if s := e.Kind.sentinel(); s != nil {
		msg = e.Op + ": " + s.Error()
	}

	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Retryable reports whether the same request may succeed if sent again
// later. No retry is attempted by this module: the decision is left to the
// caller.
func (e *Error) Retryable() bool {
	return e.Kind == KindTransient || e.Kind == KindTransport
}

// Status maps the failure onto the response status used when the failure is
// relayed to a client of the bridge.
func (e *Error) Status() (int, string) {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound, "resource not found"
	case KindTransient:
		return http.StatusServiceUnavailable, "upstream temporarily unavailable"
	case KindInvalid:
		msg := e.Message
		if msg == "" {
			msg = http.StatusText(http.StatusBadRequest)
		}
		return http.StatusBadRequest, msg
	case KindAuth:
		return http.StatusBadGateway, "upstream authorization failed"
	default:
		return http.StatusBadGateway, "upstream request failed"
	}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// Invalid reports a request that was refused before being sent.
func Invalid(op, message string) error {
	return &Error{Kind: KindInvalid, Op: op, Message: message}
}

// Auth reports a failed or rejected credential exchange that has no HTTP
// response associated with it.
func Auth(op, message string, cause error) error {
	return &Error{Kind: KindAuth, Op: op, Message: message, Err: cause}
}

func parseRetryAfter(header http.Header, now time.Time) time.Duration {
	v := header.Get("Retry-After")
	if v == "" {
		return 0
	}

	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}

	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}

	return 0
}
