package config

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Cache   CacheConfig
	Observe ObserveConfig
	Server  ServerConfig
	Spotify SpotifyConfig
}

type ServerConfig struct {
	Port                   int `env:"SERVER_PORT, default=8080"`
	ShutdownTimeoutSeconds int `env:"SERVER_SHUTDOWN_TIMEOUT_SECS, default=25"`

	OutgoingHTTPMaxIdleConns    int `env:"SERVER_OUTGOING_MAX_IDLE_CONNS, default=100"`
	OutgoingHTTPMaxConnsPerHost int `env:"SERVER_OUTGOING_MAX_CONNS_PER_HOST, default=20"`
}

func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// SpotifyConfig holds the client credentials and endpoints used to reach the
// Spotify Web API.
type SpotifyConfig struct {
	ClientID     string `env:"SPOTIFY_CLIENT_ID, required"`
	ClientSecret string `env:"SPOTIFY_CLIENT_SECRET, required"`

	// TokenURL is the OAuth2 token endpoint used for the client credentials
	// exchange.
	TokenURL string `env:"SPOTIFY_TOKEN_URL, default=https://accounts.spotify.com/api/token"`

	// APIURL is the versioned API root all resource requests are made under.
	APIURL string `env:"SPOTIFY_API_URL, default=https://api.spotify.com/v1"`

	// TokenExpiryMarginSeconds is subtracted from the provider's expires_in so
	// a token handed out stays valid for the length of one request.
	TokenExpiryMarginSeconds int `env:"SPOTIFY_TOKEN_EXPIRY_MARGIN_SECS, default=300"`

	TokenTimeoutSeconds   int `env:"SPOTIFY_TOKEN_TIMEOUT_SECS, default=10"`
	RequestTimeoutSeconds int `env:"SPOTIFY_REQUEST_TIMEOUT_SECS, default=15"`

	// DefaultMarket is the ISO 3166-1 country code used when a market-scoped
	// request (e.g. artist top tracks) doesn't specify one.
	DefaultMarket string `env:"SPOTIFY_DEFAULT_MARKET, default=US"`
}

func (c SpotifyConfig) TokenExpiryMargin() time.Duration {
	return time.Duration(c.TokenExpiryMarginSeconds) * time.Second
}

func (c SpotifyConfig) TokenTimeout() time.Duration {
	return time.Duration(c.TokenTimeoutSeconds) * time.Second
}

func (c SpotifyConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// CacheConfig specifies the token store configuration.
type CacheConfig struct {
	// MaxSize bounds the number of tokens held. One is needed per set of
	// client credentials.
	MaxSize int `env:"TOKEN_CACHE_MAX_SIZE, default=16"`

	// TTLSeconds is an upper bound on how long any token is retained,
	// regardless of its own expiry.
	TTLSeconds int `env:"TOKEN_CACHE_TTL_SECS, default=3600"`
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

type ObserveConfig struct {
	SDKLogLevel                string `env:"OBSERVE_OTEL_LOG_LEVEL, default=info"`
	Enabled                    bool   `env:"OBSERVE_ENABLED, default=false"`
	MetricsEnabled             bool   `env:"OBSERVE_METRICS_ENABLED, default=true"`
	Type                       string `env:"OBSERVE_TYPE, default=grpc"`
	ServiceName                string `env:"OBSERVE_SERVICE_NAME, default=spotify-bridge"`
	TraceBatchTimeoutSeconds   int    `env:"OBSERVE_TRACE_BATCH_TIMEOUT_SECS, default=20"`
	MetricReadIntervalSeconds  int    `env:"OBSERVE_METRIC_READ_INTERVAL_SECS, default=60"`
	HTTPTransportEnabled       bool   `env:"OBSERVE_HTTP_TRANSPORT_ENABLED, default=true"`
	HTTPConnectionTraceEnabled bool   `env:"OBSERVE_CONNECTION_TRACE_ENABLED, default=true"`
}

func Load(ctx context.Context) (Config, error) {
	return load(ctx, nil) // load from OS environment
}

func load(ctx context.Context, lookup envconfig.Lookuper) (Config, error) {
	var cfg Config
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookup, // nil defaults to OS environment
	})
	if err != nil {
		return cfg, err
	}

	err = cfg.Spotify.Validate()
	if err != nil {
		return cfg, fmt.Errorf("invalid spotify configuration: %w", err)
	}

	err = cfg.Cache.Validate()
	if err != nil {
		return cfg, fmt.Errorf("invalid cache configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the Spotify configuration is usable.
func (c *SpotifyConfig) Validate() error {
	for name, raw := range map[string]string{
		"SPOTIFY_TOKEN_URL": c.TokenURL,
		"SPOTIFY_API_URL":   c.APIURL,
	} {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("%s could not be parsed: %w", name, err)
		}
		if !u.IsAbs() || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL: %q", name, raw)
		}
	}

	if c.TokenExpiryMarginSeconds < 0 {
		return fmt.Errorf("SPOTIFY_TOKEN_EXPIRY_MARGIN_SECS must not be negative")
	}

	if c.TokenTimeoutSeconds <= 0 {
		return fmt.Errorf("SPOTIFY_TOKEN_TIMEOUT_SECS must be positive")
	}

	if c.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("SPOTIFY_REQUEST_TIMEOUT_SECS must be positive")
	}

	if len(c.DefaultMarket) != 2 {
		return fmt.Errorf("SPOTIFY_DEFAULT_MARKET must be a two letter country code: %q", c.DefaultMarket)
	}

	return nil
}

// Validate checks that the cache configuration is valid.
func (c *CacheConfig) Validate() error {
	if c.MaxSize <= 0 {
		return fmt.Errorf("TOKEN_CACHE_MAX_SIZE must be positive")
	}

	if c.TTLSeconds <= 0 {
		return fmt.Errorf("TOKEN_CACHE_TTL_SECS must be positive")
	}

	return nil
}
