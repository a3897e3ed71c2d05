package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"
)

// FromResponse classifies an HTTP response. It returns nil for any 2xx
// status.
//
//   - 401, 403: KindAuth
//   - 404: KindNotFound
//   - 429, 5xx: KindTransient
//   - 400: KindInvalid
//   - anything else: KindTransport
func FromResponse(op string, status int, header http.Header, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}

	e := &Error{
		Op:         op,
		StatusCode: status,
		Message:    upstreamMessage(body),
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = KindAuth
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
	case status == http.StatusTooManyRequests || status >= 500:
		e.Kind = KindTransient
		if header != nil {
			e.RetryAfter = parseRetryAfter(header, time.Now())
		}
	case status == http.StatusBadRequest:
		e.Kind = KindInvalid
	default:
		e.Kind = KindTransport
	}

	return e
}

// FromTransport classifies a failure to obtain a response at all. Timeouts
// (including an expired context deadline) are transient; cancellation and
// everything else is a transport failure.
func FromTransport(op string, err error) error {
	if err == nil {
		return nil
	}

	var existing *Error
	if errors.As(err, &existing) {
		return err
	}

	if isTimeout(err) {
		return &Error{Kind: KindTransient, Op: op, Message: "request timed out", Err: err}
	}

	return &Error{Kind: KindTransport, Op: op, Err: err}
}

// FromDecode classifies a response body that could not be understood.
func FromDecode(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindTransport, Op: op, Message: "malformed response body", Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// upstreamMessage extracts a description from the error bodies returned by
// the API ({"error": {"status": 404, "message": "..."}}) and the accounts
// service ({"error": "invalid_client", "error_description": "..."}).
func upstreamMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var envelope struct {
		Error            json.RawMessage `json:"error"`
		ErrorDescription string          `json:"error_description"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Error) == 0 {
		return ""
	}

	var apiErr struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(envelope.Error, &apiErr); err == nil {
		return apiErr.Message
	}

	var code string
	if err := json.Unmarshal(envelope.Error, &code); err == nil {
		if envelope.ErrorDescription != "" {
			return strings.TrimSpace(code + ": " + envelope.ErrorDescription)
		}
		return code
	}

	return ""
}
