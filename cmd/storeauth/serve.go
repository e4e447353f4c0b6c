package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/goliatone/go-storeauth/config"
	"github.com/goliatone/go-storeauth/logging"
	"github.com/goliatone/go-storeauth/middleware/grpcauth"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API (and the gRPC endpoint when configured)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	config.BindFlags(cmd.Flags())

	return cmd
}

func runServe(ctx context.Context, cfg config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := logging.SetDefault(logging.Options{
		Service: "storeauth",
		Version: version,
		Format:  cfg.LogFormat,
		Level:   cfg.LogLevel,
	})

	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := app.Close(); closeErr != nil {
			logger.Warn("error closing database", "error", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 2)

	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr, "resolve_identity", cfg.ResolveIdentity)
		if err := app.http.Listen(cfg.HTTPAddr); err != nil {
			errChan <- fmt.Errorf("http server: %w", err)
		}
	}()

	var grpcServer *grpc.Server
	if cfg.GRPCAddr != "" {
		grpcServer, err = startGRPC(cfg.GRPCAddr, app, logger, errChan)
		if err != nil {
			_ = app.http.Shutdown()
			return err
		}
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-errChan:
		logger.Error("server failed", "error", err)
	}

	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	if shutdownErr := app.http.ShutdownWithTimeout(shutdownTimeout); shutdownErr != nil {
		logger.Warn("error shutting down HTTP server", "error", shutdownErr)
	}

	return err
}

func startGRPC(addr string, app *application, logger *slog.Logger, errChan chan<- error) (*grpc.Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	interceptor := grpcauth.New(app.authenticator,
		grpcauth.WithPublicMethods(
			healthpb.Health_Check_FullMethodName,
			healthpb.Health_Watch_FullMethodName,
		),
	)

	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(interceptor.Unary()),
		grpc.ChainStreamInterceptor(interceptor.Stream()),
	)
	healthpb.RegisterHealthServer(server, health.NewServer())
	grpcauth.RegisterIdentityServer(server, grpcauth.NewIdentityServer())

	go func() {
		logger.Info("gRPC server listening", "addr", addr)
		if err := server.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	return server, nil
}
