package oauth

import (
	"encoding/base64"
	"errors"
)

// Credentials identify this application to the accounts service. They are
// created once at start-up and never modified.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

func NewCredentials(clientID, clientSecret string) (Credentials, error) {
	if clientID == "" {
		return Credentials{}, errors.New("client id must be supplied")
	}
	if clientSecret == "" {
		return Credentials{}, errors.New("client secret must be supplied")
	}

	return Credentials{
		ClientID:     clientID,
		ClientSecret: clientSecret,
	}, nil
}

// BasicAuth returns the credentials in the form expected by an HTTP Basic
// Authorization header.
func (c Credentials) BasicAuth() string {
	return base64.StdEncoding.EncodeToString([]byte(c.ClientID + ":" + c.ClientSecret))
}

// String identifies the credentials without revealing the secret.
func (c Credentials) String() string {
	return "client:" + c.ClientID
}
