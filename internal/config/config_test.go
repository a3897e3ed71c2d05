package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requiredEnv(t *testing.T) {
	t.Setenv("SPOTIFY_CLIENT_ID", "client-id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "client-secret")
}

func TestLoad_Defaults(t *testing.T) {
	requiredEnv(t)

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, SpotifyConfig{
		ClientID:                 "client-id",
		ClientSecret:             "client-secret",
		TokenURL:                 "https://accounts.spotify.com/api/token",
		APIURL:                   "https://api.spotify.com/v1",
		TokenExpiryMarginSeconds: 300,
		TokenTimeoutSeconds:      10,
		RequestTimeoutSeconds:    15,
		DefaultMarket:            "US",
	}, cfg.Spotify)

	assert.Equal(t, 5*time.Minute, cfg.Spotify.TokenExpiryMargin())
	assert.Equal(t, 10*time.Second, cfg.Spotify.TokenTimeout())
	assert.Equal(t, 15*time.Second, cfg.Spotify.RequestTimeout())

	assert.Equal(t, 16, cfg.Cache.MaxSize)
	assert.Equal(t, time.Hour, cfg.Cache.TTL())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "spotify-bridge", cfg.Observe.ServiceName)
}

func TestLoad_MissingCredentials(t *testing.T) {
	_, err := load(context.Background(), envconfig.MapLookuper(map[string]string{}))
	assert.ErrorContains(t, err, "SPOTIFY_CLIENT_ID")
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := load(context.Background(), envconfig.MapLookuper(map[string]string{
		"SPOTIFY_CLIENT_ID":                "id",
		"SPOTIFY_CLIENT_SECRET":            "secret",
		"SPOTIFY_TOKEN_URL":                "http://localhost:9000/token",
		"SPOTIFY_API_URL":                  "http://localhost:9001/v1",
		"SPOTIFY_TOKEN_EXPIRY_MARGIN_SECS": "0",
		"SPOTIFY_DEFAULT_MARKET":           "AU",
		"TOKEN_CACHE_MAX_SIZE":             "2",
	}))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9000/token", cfg.Spotify.TokenURL)
	assert.Equal(t, "http://localhost:9001/v1", cfg.Spotify.APIURL)
	assert.Equal(t, time.Duration(0), cfg.Spotify.TokenExpiryMargin())
	assert.Equal(t, "AU", cfg.Spotify.DefaultMarket)
	assert.Equal(t, 2, cfg.Cache.MaxSize)
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := []struct {
		name     string
		key      string
		value    string
		expected string
	}{
		{
			name:     "relative token URL",
			key:      "SPOTIFY_TOKEN_URL",
			value:    "/api/token",
			expected: "SPOTIFY_TOKEN_URL must be an absolute URL",
		},
		{
			name:     "relative API URL",
			key:      "SPOTIFY_API_URL",
			value:    "v1",
			expected: "SPOTIFY_API_URL must be an absolute URL",
		},
		{
			name:     "negative margin",
			key:      "SPOTIFY_TOKEN_EXPIRY_MARGIN_SECS",
			value:    "-1",
			expected: "must not be negative",
		},
		{
			name:     "zero token timeout",
			key:      "SPOTIFY_TOKEN_TIMEOUT_SECS",
			value:    "0",
			expected: "SPOTIFY_TOKEN_TIMEOUT_SECS must be positive",
		},
		{
			name:     "zero request timeout",
			key:      "SPOTIFY_REQUEST_TIMEOUT_SECS",
			value:    "0",
			expected: "SPOTIFY_REQUEST_TIMEOUT_SECS must be positive",
		},
		{
			name:     "bad market",
			key:      "SPOTIFY_DEFAULT_MARKET",
			value:    "USA",
			expected: "two letter country code",
		},
		{
			name:     "zero cache size",
			key:      "TOKEN_CACHE_MAX_SIZE",
			value:    "0",
			expected: "TOKEN_CACHE_MAX_SIZE must be positive",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := load(context.Background(), envconfig.MapLookuper(map[string]string{
				"SPOTIFY_CLIENT_ID":     "id",
				"SPOTIFY_CLIENT_SECRET": "secret",
				tc.key:                  tc.value,
			}))
			assert.ErrorContains(t, err, tc.expected)
		})
	}
}
