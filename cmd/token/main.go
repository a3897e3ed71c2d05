// This command is only used for local testing: it performs a single client
// credentials exchange with the configured Spotify credentials, and reports
// the outcome. The token value itself is never printed.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/chinmina/spotify-bridge/internal/config"
	"github.com/chinmina/spotify-bridge/internal/oauth"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Spotify config.SpotifyConfig
}

func main() {
	cfg := Config{}
	err := envconfig.Process(context.Background(), &cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Spotify.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	creds, err := oauth.NewCredentials(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading credentials: %v\n", err)
		os.Exit(1)
	}

	issuer, err := oauth.NewClientCredentialsIssuer(cfg.Spotify, oauth.WithHTTPClient(http.DefaultClient))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating issuer: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Spotify.TokenTimeout())
	defer cancel()

	token, err := issuer.Renew(ctx, creds)
	if err != nil {
		fmt.Fprintf(os.Stderr, "credential exchange failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s token issued for %s, usable until %s (%s)\n",
		token.Type,
		creds,
		token.ExpiresAt.Local().Format(time.RFC3339),
		time.Until(token.ExpiresAt).Round(time.Second),
	)
}
