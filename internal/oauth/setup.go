package oauth

import (
	"fmt"

	"github.com/chinmina/spotify-bridge/internal/cache"
	"github.com/chinmina/spotify-bridge/internal/config"
)

// NewFromConfig assembles a TokenCache for the configured client credentials,
// backed by an instrumented in-memory store.
func NewFromConfig(cfg config.Config, client HTTPClient) (*TokenCache, error) {
	creds, err := NewCredentials(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret)
	if err != nil {
		return nil, err
	}

	issuer, err := NewClientCredentialsIssuer(cfg.Spotify, WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("token issuer configuration failed: %w", err)
	}

	store, err := cache.NewMemory[Token](cfg.Cache.TTL(), cfg.Cache.MaxSize)
	if err != nil {
		return nil, fmt.Errorf("token store configuration failed: %w", err)
	}

	return NewTokenCache(
		creds,
		issuer,
		cache.NewInstrumented[Token](store, "memory"),
		WithRenewTimeout(cfg.Spotify.TokenTimeout()),
	)
}
