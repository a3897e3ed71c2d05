package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/chinmina/spotify-bridge/internal/audit"
	"github.com/chinmina/spotify-bridge/internal/config"
	"github.com/chinmina/spotify-bridge/internal/oauth"
	"github.com/chinmina/spotify-bridge/internal/observe"
	"github.com/chinmina/spotify-bridge/internal/server"
	"github.com/chinmina/spotify-bridge/internal/spotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/justinas/alice"
)

// Repository is the full set of lookups the bridge exposes.
type Repository interface {
	spotify.SearchRepository
	spotify.TrackRepository
	spotify.ResourceRepository
}

func configureServerRoutes(repo Repository) http.Handler {
	// wrap a mux such that HTTP telemetry is configured by default
	mux := observe.NewMux(http.NewServeMux())

	// Lookups are all GET requests with no body: anything sent is discarded,
	// so the allowance is small.
	requestLimitBytes := int64(4 << 10) // 4 KB
	requestLimiter := maxRequestSize(requestLimitBytes)

	lookupRouteMiddleware := alice.New(requestLimiter, audit.Middleware())
	standardRouteMiddleware := alice.New(requestLimiter)

	mux.Handle("GET /search", lookupRouteMiddleware.Then(handleSearch(repo)))
	mux.Handle("GET /search/{kind}", lookupRouteMiddleware.Then(handleSearchKind(repo)))
	mux.Handle("GET /tracks", lookupRouteMiddleware.Then(handleGetTracks(repo)))
	mux.Handle("GET /artists/{id}/top-tracks", lookupRouteMiddleware.Then(handleArtistTopTracks(repo)))
	mux.Handle("GET /{kind}/{id}", lookupRouteMiddleware.Then(handleGetResource(repo)))

	// healthchecks are not included in telemetry or auditing
	mux.HandleUntraced("GET /healthcheck", standardRouteMiddleware.Then(handleHealthCheck()))

	return mux
}

func main() {
	configureLogging()

	logBuildInfo()

	err := launchServer()
	if err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func launchServer() error {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("configuration load failed: %w", err)
	}

	// configure telemetry, including wrapping default HTTP client
	shutdownTelemetry, err := observe.Configure(ctx, cfg.Observe)
	if err != nil {
		return fmt.Errorf("telemetry bootstrap failed: %w", err)
	}

	transport := configureHTTPTransport(cfg.Server)
	http.DefaultTransport = observe.HTTPTransport(transport, cfg.Observe)
	http.DefaultClient = &http.Client{
		Transport: http.DefaultTransport,
	}

	// setup the token cache and API client
	tokens, err := oauth.NewFromConfig(cfg, http.DefaultClient)
	if err != nil {
		return fmt.Errorf("token cache configuration failed: %w", err)
	}

	client, err := spotify.New(cfg.Spotify, tokens, spotify.WithDoer(http.DefaultClient))
	if err != nil {
		return fmt.Errorf("spotify client configuration failed: %w", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           configureServerRoutes(client),
		MaxHeaderBytes:    20 << 10,         // 20 KB
		ReadHeaderTimeout: 20 * time.Second, // Prevent Slowloris attacks
	}

	hooks := &server.ShutdownHooks{}
	hooks.AddClose("token store", tokens)
	hooks.Add("outgoing connections", func() error {
		transport.CloseIdleConnections()
		return nil
	})
	// telemetry is flushed last
	hooks.AddContext("telemetry", shutdownTelemetry)

	err = server.Serve(ctx, srv, cfg.Server.ShutdownTimeout(), hooks)
	if err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

func configureLogging() {
	// Set global level to the minimum: allows the Open Telemetry logging to be
	// configured separately. However, it means that any logger that sets its
	// level will log as this effectively disables the global level.
	zerolog.SetGlobalLevel(zerolog.Level(-128))

	// default level is Info
	log.Logger = log.Level(zerolog.InfoLevel)

	if os.Getenv("ENV") == "development" {
		log.Logger = log.
			Output(zerolog.ConsoleWriter{Out: os.Stdout}).
			Level(zerolog.DebugLevel)
	}

	zerolog.DefaultContextLogger = &log.Logger
}

func logBuildInfo() {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	ev := log.Info()
	for _, v := range buildInfo.Settings {
		if strings.HasPrefix(v.Key, "vcs.") ||
			strings.HasPrefix(v.Key, "GO") ||
			v.Key == "CGO_ENABLED" {
			ev = ev.Str(v.Key, v.Value)
		}
	}

	ev.Msg("build information")
}

func configureHTTPTransport(cfg config.ServerConfig) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	transport.MaxIdleConns = cfg.OutgoingHTTPMaxIdleConns
	transport.MaxConnsPerHost = cfg.OutgoingHTTPMaxConnsPerHost

	return transport
}
