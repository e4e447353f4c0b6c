package main

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	auth "github.com/goliatone/go-storeauth"
	"github.com/goliatone/go-storeauth/activitymap"
	"github.com/goliatone/go-storeauth/config"
	"github.com/goliatone/go-storeauth/httpapi"
	"github.com/goliatone/go-storeauth/metrics"
	"github.com/goliatone/go-storeauth/repository"
)

// application is the fully wired service
type application struct {
	repo          *repository.Manager
	tokens        *auth.TokenService
	accounts      *auth.AccountService
	authenticator *auth.Authenticator
	registry      *prometheus.Registry
	http          *fiber.App
}

func newApplication(ctx context.Context, cfg config.Config, logger auth.Logger) (*application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	repo, err := repository.Open(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := repo.Migrate(ctx); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	tokenOpts := append(cfg.TokenOptions(), auth.WithTokenLogger(logger))
	tokens, err := auth.NewTokenService([]byte(cfg.SigningKey), tokenOpts...)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector, err := metrics.NewCollector(registry)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}
	sink := auth.MultiActivitySink{collector, activitymap.LogSink(logger)}

	accounts, err := auth.NewAccountService(repo.Users(), auth.NewBcryptHasher(cfg.BcryptCost), tokens,
		auth.WithAccountLogger(logger),
		auth.WithActivitySink(sink),
		auth.WithPhoneRegion(cfg.PhoneRegion),
	)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}

	authOpts := []auth.AuthenticatorOption{
		auth.WithAuthScheme(cfg.AuthScheme),
		auth.WithAuthenticatorLogger(logger),
		auth.WithAuthenticatorActivitySink(sink),
	}
	if cfg.ResolveIdentity {
		authOpts = append(authOpts, auth.WithIdentityResolver(auth.NewIdentityResolver(repo.Users())))
	}
	authenticator := auth.NewAuthenticator(tokens, authOpts...)

	controller := httpapi.NewController(accounts, authenticator,
		httpapi.WithLogger(logger),
		httpapi.WithHealthChecker(repo),
		httpapi.WithMetricsHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})),
	)

	return &application{
		repo:          repo,
		tokens:        tokens,
		accounts:      accounts,
		authenticator: authenticator,
		registry:      registry,
		http:          httpapi.NewApp(controller),
	}, nil
}

func (a *application) Close() error {
	return a.repo.Close()
}
