//go:build integration

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chinmina/spotify-bridge/internal/config"
	"github.com/chinmina/spotify-bridge/internal/oauth"
	"github.com/chinmina/spotify-bridge/internal/server"
	"github.com/chinmina/spotify-bridge/internal/spotify"
	"github.com/chinmina/spotify-bridge/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

// APITestHarness runs the bridge against mock accounts and API servers.
type APITestHarness struct {
	t            *testing.T
	Server       *httptest.Server
	AccountsMock *testhelpers.MockAccountsServer
	APIMock      *testhelpers.MockAPIServer
}

// APITestHarnessOption configures the API test harness.
type APITestHarnessOption func(*config.Config)

// WithDefaultMarket changes the market used when a request has none.
func WithDefaultMarket(market string) APITestHarnessOption {
	return func(cfg *config.Config) {
		cfg.Spotify.DefaultMarket = market
	}
}

// NewAPITestHarness creates a complete test harness with all mock servers and
// the API server. Cleanup is handled automatically via t.Cleanup().
func NewAPITestHarness(t *testing.T, options ...APITestHarnessOption) *APITestHarness {
	t.Helper()
	testhelpers.SetupLogger(t)
	hooks := server.ShutdownHooks{}

	t.Cleanup(func() {
		_ = hooks.Execute(t.Context())
	})

	harness := &APITestHarness{
		t:            t,
		AccountsMock: testhelpers.SetupMockAccountsServer(t),
		APIMock:      testhelpers.SetupMockAPIServer(t),
	}

	cfg := config.Config{
		Cache: config.CacheConfig{
			MaxSize:    4,
			TTLSeconds: 3600,
		},
		Observe: config.ObserveConfig{
			Enabled: false, // Disable observability for tests
		},
		Spotify: config.SpotifyConfig{
			ClientID:                 "test-client-id",
			ClientSecret:             "test-client-secret",
			TokenURL:                 harness.AccountsMock.TokenURL(),
			APIURL:                   harness.APIMock.APIURL(),
			TokenExpiryMarginSeconds: 300,
			TokenTimeoutSeconds:      5,
			RequestTimeoutSeconds:    5,
			DefaultMarket:            "US",
		},
	}

	for _, opt := range options {
		opt(&cfg)
	}

	tokens, err := oauth.NewFromConfig(cfg, http.DefaultClient)
	require.NoError(t, err)
	hooks.AddClose("token store", tokens)

	client, err := spotify.New(cfg.Spotify, tokens)
	require.NoError(t, err)

	harness.Server = httptest.NewServer(configureServerRoutes(client))
	hooks.Add("api-server", func() error {
		harness.Server.Close()
		return nil
	})

	return harness
}

func (h *APITestHarness) Client() *TestClient {
	return &TestClient{
		baseURL: h.Server.URL,
		client:  http.DefaultClient,
	}
}

// APIError represents a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
	Message    string // parsed from JSON error response if available
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error %d", e.StatusCode)
}

// TestClient provides typed access to bridge endpoints for testing.
type TestClient struct {
	baseURL string
	client  *http.Client
}

// Response wraps raw HTTP response for low-level assertions.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// Request performs a low-level GET request and returns the raw response.
func (c *TestClient) Request(path string) (*Response, error) {
	resp, err := c.client.Get(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       bodyBytes,
		Headers:    resp.Header,
	}, nil
}

// GetJSON requests the path and decodes a successful response into target.
// A non-2xx response is returned as an *APIError.
func (c *TestClient) GetJSON(path string, target any) error {
	resp, err := c.Request(path)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: resp.Body, Headers: resp.Headers}

		var errResp ErrorResponse
		if json.Unmarshal(resp.Body, &errResp) == nil {
			apiErr.Message = errResp.Error
		}

		return apiErr
	}

	if err := json.Unmarshal(resp.Body, target); err != nil {
		return fmt.Errorf("unmarshal JSON: %w", err)
	}

	return nil
}
