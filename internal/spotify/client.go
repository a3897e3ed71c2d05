package spotify

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
	"github.com/chinmina/spotify-bridge/internal/oauth"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Responses larger than this are treated as malformed.
const maxResponseBytes = 8 << 20

// Doer sends an HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Authorizer supplies the token attached to each request, and is told when
// the API rejects one. *oauth.TokenCache satisfies it.
type Authorizer interface {
	Acquire(ctx context.Context) (oauth.Token, error)
	Invalidate(ctx context.Context, rejected oauth.Token)
}

// Client is the concrete implementation of the repository interfaces. It is
// safe for concurrent use.
type Client struct {
	apiURL         string
	auth           Authorizer
	doer           Doer
	requestTimeout time.Duration
	defaultMarket  string
	tracer         trace.Tracer
}

type ClientOption func(*Client)

// WithDoer sets the HTTP client used for API requests. The default is
// http.DefaultClient.
func WithDoer(doer Doer) ClientOption {
	return func(c *Client) {
		c.doer = doer
	}
}

func New(cfg config.SpotifyConfig, auth Authorizer, opts ...ClientOption) (*Client, error) {
	if auth == nil {
		return nil, errors.New("an authorizer is required for Spotify API access")
	}

	u, err := url.Parse(cfg.APIURL)
	if err != nil {
		return nil, fmt.Errorf("could not parse Spotify API URL: %w", err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("the Spotify API URL must be absolute: %s", cfg.APIURL)
	}

	market := strings.ToUpper(cfg.DefaultMarket)
	if market == "" {
		market = "US"
	}

	timeout := cfg.RequestTimeout()
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		apiURL:         strings.TrimSuffix(u.String(), "/"),
		auth:           auth,
		doer:           http.DefaultClient,
		requestTimeout: timeout,
		defaultMarket:  market,
		tracer:         otel.Tracer("github.com/chinmina/spotify-bridge/internal/spotify"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// endpoint builds the URL for the given path segments, escaping each one.
func (c *Client) endpoint(query url.Values, segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}

	u := c.apiURL + "/" + strings.Join(escaped, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	return u
}

// get performs one authorized GET and decodes the response body into
// target.
func (c *Client) get(ctx context.Context, op, endpoint string, target any) error {
	ctx, span := c.tracer.Start(ctx, op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	err := c.doGet(ctx, op, endpoint, target)
	if err != nil {
		kind := apierror.KindOf(err)

		span.RecordError(err)
		span.SetAttributes(attribute.String("spotify.error.kind", kind.String()))
		span.SetStatus(codes.Error, "spotify request failed")

		log.Ctx(ctx).Warn().
			Err(err).
			Str("op", op).
			Str("kind", kind.String()).
			Msg("spotify: request failed")

		return err
	}

	span.SetStatus(codes.Ok, "")

	return nil
}

func (c *Client) doGet(ctx context.Context, op, endpoint string, target any) error {
	token, err := c.auth.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("%s: could not acquire token: %w", op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return apierror.FromTransport(op, err)
	}
	req.Header.Set("Authorization", token.AuthorizationHeader())
	req.Header.Set("Accept", "application/json")

	resp, err := c.doer.Do(req)
	if err != nil {
		return apierror.FromTransport(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return apierror.FromTransport(op, fmt.Errorf("failed to read response: %w", err))
	}

	if err := apierror.FromResponse(op, resp.StatusCode, resp.Header, body); err != nil {
		if resp.StatusCode == http.StatusUnauthorized {
			// the next call will obtain a fresh token; this one is not retried
			c.auth.Invalidate(ctx, token)
		}
		return err
	}

	if err := json.Unmarshal(body, target); err != nil {
		return apierror.FromDecode(op, err)
	}

	return nil
}
