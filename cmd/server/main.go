package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/nawehub/session-gateway/identity"
	"github.com/nawehub/session-gateway/internal/config"
	"github.com/nawehub/session-gateway/server"
	"github.com/nawehub/session-gateway/sessions"
	"github.com/nawehub/session-gateway/token"
	"github.com/nawehub/session-gateway/token/refresh"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return err
	}
	setupLogging(c)
	displayAppname(c.GetAppName())

	ctx := context.Background()
	handler, closeStore, err := newServer(ctx, c)
	if err != nil {
		return err
	}
	defer closeStore()

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- listenAndServe(httpServer) }()

	select {
	case err := <-errCh:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

// newServer wires the identity client, refresh coordination, session codec and HTTP server
func newServer(ctx context.Context, c config.Config) (*server.Server, func(), error) {
	var clientOpts []identity.Option
	if jwksURL := c.GetIdentityJWKSURL(); jwksURL != "" {
		clientOpts = append(clientOpts, identity.WithVerifier(identity.NewJWKSVerifier(ctx, jwksURL)))
		log.Info().Str("jwks_url", jwksURL).Msg("Verifying backend access tokens")
	}
	client := identity.NewClient(c, clientOpts...)

	var store refresh.Store
	closeStore := func() {}
	if redisURL := c.GetRedisURL(); redisURL != "" {
		redisStore, err := refresh.NewRedisStoreFromURL(ctx, redisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("[main newServer] %w", err)
		}
		store = redisStore
		closeStore = func() {
			if err := redisStore.Close(); err != nil {
				log.Err(err).Msg("Failed to close redis client")
			}
		}
		log.Info().Msg("Sharing refresh results through redis")
	}
	coordinator := refresh.NewCoordinator(store, refresh.WithResultTTL(c.GetRefreshResultTTL()))

	signer, err := token.NewHMACSigner(c.GetSessionSecret())
	if err != nil {
		closeStore()
		return nil, nil, fmt.Errorf("[main newServer] SESSION_SECRET: %w", err)
	}
	codec := token.NewCodec(signer, c.GetMaxSessionAge())

	srv, err := server.New(c, sessions.NewManager(client, coordinator, c), codec)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return srv, closeStore, nil
}

func setupLogging(c config.EnvConfig) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
