// Package audit records one structured entry per request served by the
// bridge: what was asked for, what came back, and how any upstream failure
// was classified.
package audit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/chinmina/spotify-bridge/internal/apierror"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Level is the log level audit entries are written at. It sits above every
// standard level so audit entries survive any level filter.
const Level = zerolog.Level(20)

type key struct{}

var logKey = key{}

// Entry is the audit record for a single request.
type Entry struct {
	Method    string
	Path      string
	Status    int
	SourceIP  string
	UserAgent string

	// the catalog lookup performed
	ResourceKind string
	ResourceID   string
	IDs          []string
	Query        string
	Market       string
	Requested    int
	Results      int
	// Resolved is set once the lookup has produced a result, so a result
	// count of zero is still recorded.
	Resolved bool

	// upstream failure detail
	ErrorKind      string
	UpstreamStatus int
	RetryAfterSecs int

	Error string
}

func (e *Entry) MarshalZerologObject(event *zerolog.Event) {
	request := zerolog.Dict().
		Str("method", e.Method).
		Str("path", e.Path).
		Int("status", e.Status).
		Str("sourceIP", e.SourceIP).
		Str("userAgent", e.UserAgent)
	event.Dict("request", request)

	lookup := NewOptionalEvent(nil).
		Str("kind", e.ResourceKind).
		Str("id", e.ResourceID).
		Strs("ids", e.IDs).
		Str("query", e.Query).
		Str("market", e.Market).
		Int("requested", e.Requested)
	if e.Resolved {
		lookup.Event().Int("results", e.Results)
	}
	lookup.Set(event, "lookup")

	upstream := NewOptionalEvent(nil).
		Str("errorKind", e.ErrorKind).
		Int("status", e.UpstreamStatus).
		Int("retryAfterSecs", e.RetryAfterSecs)
	upstream.Set(event, "upstream")

	if e.Error != "" {
		event.Str("error", e.Error)
	}
}

// Begin captures the request details.
func (e *Entry) Begin(r *http.Request) {
	e.Method = r.Method
	e.Path = r.URL.Path
	e.UserAgent = r.UserAgent()
	e.Status = http.StatusOK

	e.SourceIP = r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		e.SourceIP = host
	}
}

// End returns a function to be deferred: it writes the entry, recording any
// panic in flight before re-panicking.
func (e *Entry) End(ctx context.Context) func() {
	return func() {
		r := recover()
		if r != nil {
			if e.Error != "" {
				e.Error += "; "
			}
			e.Error += fmt.Sprintf("panic: %v", r)
		}

		log.Ctx(ctx).WithLevel(Level).EmbedObject(e).Msg("audit_event")

		if r != nil {
			panic(r)
		}
	}
}

// Resolve records a successful lookup that produced the given number of
// results.
func (e *Entry) Resolve(results int) {
	e.Resolved = true
	e.Results = results
}

// Fail records an error, including its upstream classification when it has
// one.
func (e *Entry) Fail(err error) {
	if err == nil {
		return
	}

	e.Error = err.Error()

	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		e.ErrorKind = apiErr.Kind.String()
		e.UpstreamStatus = apiErr.StatusCode
		e.RetryAfterSecs = int(apiErr.RetryAfter.Seconds())
	}
}

// Middleware creates an audit entry for each request, and writes it when the
// request completes.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, entry := Context(r.Context())

			entry.Begin(r)
			defer entry.End(ctx)()

			next.ServeHTTP(&statusRecorder{ResponseWriter: w, entry: entry}, r.WithContext(ctx))
		})
	}
}

// Log returns the audit entry for the context. A detached entry is returned
// when the context has none, so callers never need to check.
func Log(ctx context.Context) *Entry {
	_, e := Context(ctx)
	return e
}

// Context returns the audit entry for the context, creating and attaching one
// if it isn't present.
func Context(ctx context.Context) (context.Context, *Entry) {
	if e, ok := ctx.Value(logKey).(*Entry); ok {
		return ctx, e
	}

	e := &Entry{}
	return context.WithValue(ctx, logKey, e), e
}

type statusRecorder struct {
	http.ResponseWriter
	entry       *Entry
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(status int) {
	if !s.wroteHeader {
		s.entry.Status = status
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wroteHeader = true
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
