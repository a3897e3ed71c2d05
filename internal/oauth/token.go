package oauth

import (
	"time"

	"github.com/rs/zerolog"
)

const defaultTokenType = "Bearer"

// Token is a bearer credential issued by the accounts service. A Token is
// never modified after it is issued: renewal produces a new value.
type Token struct {
	Value     string
	Type      string
	ExpiresAt time.Time
}

// AuthorizationHeader renders the token as the value of an Authorization
// header, e.g. "Bearer BQC...".
func (t Token) AuthorizationHeader() string {
	typ := t.Type
	if typ == "" {
		typ = defaultTokenType
	}
	return typ + " " + t.Value
}

// ValidAt reports whether the token can be used at the given instant. The
// safety margin is already included in ExpiresAt.
func (t Token) ValidAt(now time.Time) bool {
	return t.Value != "" && now.Before(t.ExpiresAt)
}

// MarshalZerologObject logs the token's metadata. The value is never written.
func (t Token) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", t.Type).
		Time("expiresAt", t.ExpiresAt)
}

// expiryFor calculates when a token issued at issuedAt with the given
// lifetime must be treated as expired. The margin is reduced to half the
// lifetime when the lifetime is too short to accommodate it.
func expiryFor(issuedAt time.Time, lifetime, margin time.Duration) time.Time {
	if margin >= lifetime {
		margin = lifetime / 2
	}
	return issuedAt.Add(lifetime - margin)
}
