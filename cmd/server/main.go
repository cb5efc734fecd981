package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/marketplace-auth-server/auth"
	"github.com/jrsteele09/marketplace-auth-server/internal/config"
	"github.com/jrsteele09/marketplace-auth-server/internal/logging"
	"github.com/jrsteele09/marketplace-auth-server/internal/metrics"
	"github.com/jrsteele09/marketplace-auth-server/server"
	"github.com/jrsteele09/marketplace-auth-server/server/authflowrepo"
	"github.com/jrsteele09/marketplace-auth-server/server/loginsession"
	"github.com/jrsteele09/marketplace-auth-server/token"
	"github.com/jrsteele09/marketplace-auth-server/upstream"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	discoveryTimeout     = 30 * time.Second
	sessionSweepInterval = 10 * time.Minute
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

	c, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := logging.Setup(c.GetEnv(), c.GetLogLevel(), os.Stdout); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	displayAppname(c.GetAppName())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repos, closeRepos, err := buildRepos(ctx, c)
	if err != nil {
		return err
	}
	defer closeRepos()

	discoveryCtx, cancelDiscovery := context.WithTimeout(ctx, discoveryTimeout)
	provider, err := upstream.NewGoogleProvider(discoveryCtx, upstream.GoogleConfig{
		Issuer:        c.GetIssuer(),
		ClientID:      c.GetClientID(),
		ClientSecret:  c.GetClientSecret(),
		RedirectURI:   c.GetRedirectURI(),
		Scopes:        c.GetScopes(),
		RevocationURL: c.GetRevocationURL(),
		Timeout:       c.GetProviderTimeout(),
	})
	cancelDiscovery()
	if err != nil {
		return fmt.Errorf("identity provider: %w", err)
	}

	m := metrics.New()
	authService, err := auth.NewAuthorizationService(repos, provider,
		auth.WithSessionMaxAge(c.GetMaxSessionAge()),
		auth.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	signer, err := token.NewHMACSigner(c.GetSessionSecret())
	if err != nil {
		return fmt.Errorf("session cookie signer: %w", err)
	}

	handler, err := server.New(c, authService, token.NewSessionCookieCodec(signer, nil), m)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- listenAndServe(httpServer)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer, c.GetShutdownTimeout())
}

// buildRepos selects the store backend. The returned func releases it.
func buildRepos(ctx context.Context, c config.Config) (auth.Repos, func(), error) {
	switch c.GetStoreBackend() {
	case config.StoreBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     c.GetRedisAddr(),
			Password: c.GetRedisPassword(),
			DB:       c.GetRedisDB(),
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return auth.Repos{}, nil, fmt.Errorf("redis ping %s: %w", c.GetRedisAddr(), err)
		}
		log.Info().Str("addr", c.GetRedisAddr()).Msg("using redis store")
		repos := auth.Repos{
			PendingAuthorizations: authflowrepo.NewRedisRepo(client, c.GetRedisKeyPrefix(), authflowrepo.WithTTL(c.GetPendingAuthTTL())),
			Sessions:              loginsession.NewRedisLoginSessionRepo(client, c.GetRedisKeyPrefix()),
		}
		return repos, func() { closeQuietly(client) }, nil

	default:
		log.Info().Msg("using in-memory store")
		sessions := loginsession.NewInMemoryLoginSessionRepo()
		sweepCtx, stopSweep := context.WithCancel(ctx)
		go sweepSessions(sweepCtx, sessions)
		repos := auth.Repos{
			PendingAuthorizations: authflowrepo.NewInMemoryRepo(authflowrepo.WithTTL(c.GetPendingAuthTTL())),
			Sessions:              sessions,
		}
		return repos, stopSweep, nil
	}
}

// sweepSessions drops expired in-memory sessions; reads already treat them as gone.
func sweepSessions(ctx context.Context, sessions *loginsession.InMemoryLoginSessionRepo) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := sessions.DeleteExpired(); removed > 0 {
				log.Debug().Int("removed", removed).Msg("swept expired sessions")
			}
		}
	}
}

func closeQuietly(c io.Closer) {
	if err := c.Close(); err != nil {
		log.Warn().Err(err).Msg("close failed")
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

func shutdown(server *http.Server, timeout time.Duration) error {
	log.Info().Dur("timeout", timeout).Msg("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
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
