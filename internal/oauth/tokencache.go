package oauth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chinmina/spotify-bridge/internal/apierror"
	"github.com/chinmina/spotify-bridge/internal/cache"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"
)

const defaultRenewTimeout = 10 * time.Second

var (
	metricsOnce   sync.Once
	renewalsTotal metric.Int64Counter
)

func initMetrics() {
	metricsOnce.Do(func() {
		meter := otel.Meter("github.com/chinmina/spotify-bridge/internal/oauth")

		var err error
		renewalsTotal, err = meter.Int64Counter(
			"oauth.token.renewals",
			metric.WithDescription("Token renewals requested from the accounts service"),
		)
		if err != nil {
			otel.Handle(err)
		}
	})
}

// TokenCache holds the current token for a single set of credentials, and
// coordinates its renewal. Any number of goroutines may call Acquire
// concurrently: when the token is missing or expired exactly one renewal is
// performed and every waiting caller receives its result.
type TokenCache struct {
	creds        Credentials
	issuer       Issuer
	store        cache.TokenCache[Token]
	renewTimeout time.Duration
	now          func() time.Time

	flight singleflight.Group

	// writeMu serialises changes to the stored token. Reads do not take it.
	writeMu sync.Mutex
}

type TokenCacheOption func(*TokenCache)

// WithClock replaces the clock used to check token validity.
func WithClock(now func() time.Time) TokenCacheOption {
	return func(c *TokenCache) {
		c.now = now
	}
}

// WithRenewTimeout bounds each renewal. A renewal that exceeds it fails every
// waiting caller with a transient error.
func WithRenewTimeout(d time.Duration) TokenCacheOption {
	return func(c *TokenCache) {
		c.renewTimeout = d
	}
}

func NewTokenCache(creds Credentials, issuer Issuer, store cache.TokenCache[Token], opts ...TokenCacheOption) (*TokenCache, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, errors.New("token cache requires client credentials")
	}
	if issuer == nil {
		return nil, errors.New("token cache requires an issuer")
	}
	if store == nil {
		return nil, errors.New("token cache requires a token store")
	}

	initMetrics()

	c := &TokenCache{
		creds:        creds,
		issuer:       issuer,
		store:        store,
		renewTimeout: defaultRenewTimeout,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.renewTimeout <= 0 {
		return nil, errors.New("token renewal timeout must be positive")
	}

	return c, nil
}

func (c *TokenCache) key() string {
	return c.creds.ClientID
}

// Acquire returns a token that is valid now. If the stored token is missing
// or expired, the caller waits for a renewal, joining one already in progress
// if there is one.
//
// A caller whose context ends while waiting receives a transient error, but
// the renewal itself continues for the benefit of other waiters.
func (c *TokenCache) Acquire(ctx context.Context) (Token, error) {
	const op = "oauth.Acquire"

	if token, ok := c.current(ctx); ok {
		return token, nil
	}

	// The renewal is detached from this caller: it is shared with every
	// goroutine that joins the flight.
	renewCtx := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(c.key(), func() (any, error) {
		return c.renew(renewCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Token{}, res.Err
		}
		return res.Val.(Token), nil
	case <-ctx.Done():
		return Token{}, &apierror.Error{
			Kind:    apierror.KindTransient,
			Op:      op,
			Message: "stopped waiting for token renewal",
			Err:     ctx.Err(),
		}
	}
}

// Invalidate discards the stored token if it is the one that was rejected.
// A token that has already been replaced by a renewal is left alone, so
// concurrent rejections of the same token cause at most one renewal.
func (c *TokenCache) Invalidate(ctx context.Context, rejected Token) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	stored, found, err := c.store.Get(ctx, c.key())
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("oauth: token lookup failed during invalidation")
		return
	}
	if !found || stored.Value != rejected.Value {
		return
	}

	if err := c.store.Invalidate(ctx, c.key()); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("oauth: token invalidation failed")
		return
	}

	log.Ctx(ctx).Info().
		Str("client", c.creds.ClientID).
		Msg("oauth: rejected token discarded")
}

// Close releases the token store.
func (c *TokenCache) Close() error {
	return c.store.Close()
}

// current returns the stored token if it is usable at this instant. A store
// failure is treated as a miss.
func (c *TokenCache) current(ctx context.Context) (Token, bool) {
	token, found, err := c.store.Get(ctx, c.key())
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("oauth: token lookup failed, renewing")
		return Token{}, false
	}
	if !found || !token.ValidAt(c.now()) {
		return Token{}, false
	}
	return token, true
}

func (c *TokenCache) renew(ctx context.Context) (Token, error) {
	const op = "oauth.Acquire"

	// a flight that completed between this caller's check and its joining
	// the group has already stored a fresh token
	if token, ok := c.current(ctx); ok {
		return token, nil
	}

	token, err := c.issue(ctx)
	if err == nil && !token.ValidAt(c.now()) {
		err = apierror.Auth(op, "issued token is already expired", nil)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err != nil {
		// nothing stale may survive a failed renewal
		if invErr := c.store.Invalidate(ctx, c.key()); invErr != nil {
			log.Ctx(ctx).Warn().Err(invErr).Msg("oauth: token invalidation failed")
		}
		c.recordRenewal(ctx, err)

		log.Ctx(ctx).Error().
			Err(err).
			Str("client", c.creds.ClientID).
			Msg("oauth: token renewal failed")

		return Token{}, err
	}

	if setErr := c.store.Set(ctx, c.key(), token); setErr != nil {
		// the token is still good for this flight's waiters
		log.Ctx(ctx).Warn().Err(setErr).Msg("oauth: token could not be stored")
	}
	c.recordRenewal(ctx, nil)

	log.Ctx(ctx).Info().
		Str("client", c.creds.ClientID).
		Object("token", token).
		Msg("oauth: token renewed")

	return token, nil
}

// issue calls the issuer within the renewal timeout. The timeout is enforced
// here as well as through the context, so an issuer that ignores
// cancellation still releases its waiters.
func (c *TokenCache) issue(ctx context.Context) (Token, error) {
	const op = "oauth.Acquire"

	ctx, cancel := context.WithTimeout(ctx, c.renewTimeout)
	defer cancel()

	type result struct {
		token Token
		err   error
	}
	done := make(chan result, 1)

	go func() {
		token, err := c.issuer.Renew(ctx, c.creds)
		done <- result{token, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if apierror.KindOf(r.err) == apierror.KindUnknown {
				return Token{}, apierror.Auth(op, "token renewal failed", r.err)
			}
			return Token{}, r.err
		}
		return r.token, nil
	case <-ctx.Done():
		return Token{}, apierror.FromTransport(op, fmt.Errorf("token renewal: %w", ctx.Err()))
	}
}

func (c *TokenCache) recordRenewal(ctx context.Context, err error) {
	if renewalsTotal == nil {
		return
	}

	status := "success"
	if err != nil {
		status = apierror.KindOf(err).String()
	}

	renewalsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("oauth.renewal.status", status),
	))
}
