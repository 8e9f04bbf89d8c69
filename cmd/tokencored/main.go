// Command tokencored is a wiring demonstration for the token-lifecycle
// core: it bootstraps a Signer, a SingleUseCache, a DataFormat, the
// Issuer/Receiver/LogoutPipeline, and exposes them behind a minimal
// OAuth2/OIDC-shaped HTTP surface. It has no login/consent UI (out of
// scope) and trusts its /oauth/authorize caller directly — a real
// deployment puts its own application in front of this core.
package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jermoo/tokencore/internal/cache"
	"github.com/jermoo/tokencore/internal/config"
	"github.com/jermoo/tokencore/internal/dataformat"
	"github.com/jermoo/tokencore/internal/hooks"
	"github.com/jermoo/tokencore/internal/issuer"
	"github.com/jermoo/tokencore/internal/logout"
	"github.com/jermoo/tokencore/internal/receiver"
	"github.com/jermoo/tokencore/internal/signer"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	log.Info().
		Str("version", config.Version).
		Str("service", "tokencored").
		Msg("tokencored starting")

	if err := config.InitLifetimes(); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize token lifetimes")
	}

	codeFormat, err := newDataFormat("TOKENCORE_CODE_KEY")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build code data format")
	}
	accessFormat, err := newDataFormat("TOKENCORE_ACCESS_KEY")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build access token data format")
	}
	refreshFormat, err := newDataFormat("TOKENCORE_REFRESH_KEY")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build refresh token data format")
	}

	cacheStore, err := newCacheStore()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build single-use cache")
	}
	if mem, ok := cacheStore.(*cache.Memory); ok {
		defer mem.Stop()
	}

	issuerName := os.Getenv("TOKENCORE_ISSUER")
	if issuerName == "" {
		issuerName = "https://tokencore.local"
	}

	var identityHandler *signer.Signer
	credentialsPath := os.Getenv("TOKENCORE_SIGNING_CREDENTIALS_PATH")
	if credentialsPath != "" {
		identityHandler, err = signer.New(issuerName, []signer.Credential{{}})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to construct signer placeholder")
		}
		loader, err := config.NewCredentialsLoader(credentialsPath, identityHandler)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load signing credentials")
		}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go loader.WatchForChanges(ctx, 30*time.Second)
	} else {
		log.Warn().Msg("TOKENCORE_SIGNING_CREDENTIALS_PATH not set; identity tokens are disabled, access tokens stay opaque")
	}

	bus := hooks.New(demoProvider{})

	iss := issuer.New(issuer.Config{
		Lifetimes: issuer.Lifetimes{
			AuthorizationCode: config.AuthorizationCodeLifetime(),
			AccessToken:       config.AccessTokenLifetime(),
			IdentityToken:     config.IdentityTokenLifetime(),
			RefreshToken:      config.RefreshTokenLifetime(),
		},
		CodeFormat:           codeFormat,
		AccessFormat:         accessFormat,
		RefreshFormat:        refreshFormat,
		IdentityTokenHandler: identityHandler,
		Cache:                cacheStore,
		Bus:                  bus,
	})

	recv := receiver.New(receiver.Config{
		CodeFormat:           codeFormat,
		AccessFormat:         accessFormat,
		RefreshFormat:        refreshFormat,
		IdentityTokenHandler: identityHandler,
		Cache:                cacheStore,
		Bus:                  bus,
	})

	lp := logout.New(logout.Config{
		Bus:                         bus,
		ApplicationCanDisplayErrors: config.ApplicationCanDisplayErrors(),
	})

	a := &api{issuer: iss, receiver: recv, logout: lp}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	corsOrigins := []string{"http://localhost:5173", "http://localhost:3000"}
	if envOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); envOrigins != "" {
		corsOrigins = strings.Split(envOrigins, ",")
		for i := range corsOrigins {
			corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
		}
	}
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(corsHandler.Handler)

	r.Get("/healthz", handleHealth)
	r.Get("/oauth/authorize", a.handleAuthorize)
	r.Post("/oauth/token", a.handleToken)
	r.Get("/connect/logout", a.handleLogout)
	r.Post("/connect/logout", a.handleLogout)

	portStr := os.Getenv("PORT")
	if portStr == "" {
		portStr = "8085"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		log.Fatal().Err(err).Str("PORT", portStr).Msg("invalid PORT value")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", port).Str("issuer", issuerName).Msg("tokencored listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("tokencored failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("tokencored shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("tokencored forced to shutdown")
	}
	log.Info().Msg("tokencored exited gracefully")
}

// newDataFormat builds an AEAD DataFormat from a base64-encoded key read
// from the named environment variable, generating an ephemeral key (and
// warning loudly) when it is unset — convenient for local demo runs,
// unsuitable for anything that must survive a restart.
func newDataFormat(envVar string) (dataformat.Format, error) {
	raw := os.Getenv(envVar)
	if raw == "" {
		log.Warn().Str("env", envVar).Msg("no key configured, generating an ephemeral one for this process only")
		key := make([]byte, dataformat.MinKeyLength)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("%s: generate ephemeral key: %w", envVar, err)
		}
		return dataformat.NewAEADFormat(key)
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid base64: %w", envVar, err)
	}
	return dataformat.NewAEADFormat(key)
}

// newCacheStore selects the SingleUseCache backend named by
// TOKENCORE_CACHE_BACKEND ("memory", the default, or "redis"); Postgres
// is available via cache.NewPostgres for hosts that wire it in directly,
// since it additionally requires running the embedded migration.
func newCacheStore() (cache.Store, error) {
	switch os.Getenv("TOKENCORE_CACHE_BACKEND") {
	case "redis":
		url := os.Getenv("TOKENCORE_REDIS_URL")
		if url == "" {
			url = "redis://localhost:6379/0"
		}
		return cache.NewRedis(cache.RedisConfig{URL: url})
	default:
		return cache.NewMemory(time.Minute), nil
	}
}
