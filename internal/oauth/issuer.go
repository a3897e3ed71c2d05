package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chinmina/spotify-bridge/internal/apierror"
	"github.com/chinmina/spotify-bridge/internal/config"
	"github.com/rs/zerolog/log"
)

// 64 KB is far larger than any token response.
const maxTokenResponseBytes = 64 << 10

// Issuer exchanges credentials for a fresh token.
type Issuer interface {
	Renew(ctx context.Context, creds Credentials) (Token, error)
}

// HTTPClient is the subset of *http.Client used by the issuer.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientCredentialsIssuer performs the OAuth2 client credentials grant
// against the accounts service token endpoint. It holds no state between
// calls and is safe for concurrent use.
type ClientCredentialsIssuer struct {
	tokenURL string
	margin   time.Duration
	client   HTTPClient
	now      func() time.Time
}

type IssuerOption func(*ClientCredentialsIssuer)

// WithHTTPClient sets the client used for the token exchange. The default is
// http.DefaultClient.
func WithHTTPClient(client HTTPClient) IssuerOption {
	return func(i *ClientCredentialsIssuer) {
		i.client = client
	}
}

// WithIssuerClock replaces the clock used to calculate token expiry.
func WithIssuerClock(now func() time.Time) IssuerOption {
	return func(i *ClientCredentialsIssuer) {
		i.now = now
	}
}

func NewClientCredentialsIssuer(cfg config.SpotifyConfig, opts ...IssuerOption) (*ClientCredentialsIssuer, error) {
	u, err := url.Parse(cfg.TokenURL)
	if err != nil {
		return nil, fmt.Errorf("could not parse token URL: %w", err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("token URL must be absolute: %s", cfg.TokenURL)
	}

	i := &ClientCredentialsIssuer{
		tokenURL: u.String(),
		margin:   cfg.TokenExpiryMargin(),
		client:   http.DefaultClient,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(i)
	}

	return i, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"` // seconds
	Scope       string `json:"scope,omitempty"`
}

// Renew requests a new token. Every failure is reported as an
// *apierror.Error: timeouts are transient, anything else is an
// authorization failure. A partially populated token is never returned.
func (i *ClientCredentialsIssuer) Renew(ctx context.Context, creds Credentials) (Token, error) {
	const op = "oauth.Renew"

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, apierror.Auth(op, "could not create token request", err)
	}
	req.Header.Set("Authorization", "Basic "+creds.BasicAuth())
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	issuedAt := i.now()

	resp, err := i.client.Do(req)
	if err != nil {
		return Token{}, exchangeFailure(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseBytes))
	if err != nil {
		return Token{}, exchangeFailure(op, fmt.Errorf("failed to read token response: %w", err))
	}

	if err := apierror.FromResponse(op, resp.StatusCode, resp.Header, body); err != nil {
		// the token endpoint has no resources to be missing and no retry
		// policy: every refusal is a failed exchange
		var apiErr *apierror.Error
		if errors.As(err, &apiErr) {
			apiErr.Kind = apierror.KindAuth
		}
		return Token{}, err
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return Token{}, apierror.Auth(op, "malformed token response", err)
	}

	if tr.AccessToken == "" {
		return Token{}, apierror.Auth(op, "empty access token in response", nil)
	}
	if tr.ExpiresIn <= 0 {
		return Token{}, apierror.Auth(op, fmt.Sprintf("invalid expires_in value: %d (must be positive)", tr.ExpiresIn), nil)
	}

	tokenType := tr.TokenType
	if tokenType == "" {
		tokenType = defaultTokenType
	}

	token := Token{
		Value:     tr.AccessToken,
		Type:      tokenType,
		ExpiresAt: expiryFor(issuedAt, time.Duration(tr.ExpiresIn)*time.Second, i.margin),
	}

	log.Ctx(ctx).Debug().
		Str("client", creds.ClientID).
		Int64("expiresIn", tr.ExpiresIn).
		Object("token", token).
		Msg("oauth: token issued")

	return token, nil
}

// exchangeFailure classifies a failure to complete the exchange: timeouts
// stay transient, every other failure means the exchange failed.
func exchangeFailure(op string, err error) error {
	classified := apierror.FromTransport(op, err)
	if apierror.KindOf(classified) == apierror.KindTransient {
		return classified
	}
	return apierror.Auth(op, "token exchange failed", err)
}
