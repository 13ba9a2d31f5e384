package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/yorukot/servicenow-mcp/internal/config"
	"github.com/yorukot/servicenow-mcp/internal/handlers"
	"github.com/yorukot/servicenow-mcp/internal/services"
)

var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	// Load environment variables before flag defaults are computed
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "notice: .env file not found, using system environment variables")
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	inbound, inboundErr := config.LoadInbound(nil)

	var debug bool
	cmd := &cobra.Command{
		Use:           "servicenow-mcp-sse",
		Short:         "Run the ServiceNow MCP server over SSE and streamable HTTP",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(debug)
			slog.SetDefault(logger)

			if inboundErr != nil {
				logger.Error("configuration error", "err", inboundErr)
				return inboundErr
			}
			return run(cmd.Context(), logger, inbound, debug)
		},
	}

	cmd.Flags().StringVar(&inbound.Host, "host", inbound.Host, "host to bind to")
	cmd.Flags().IntVar(&inbound.Port, "port", inbound.Port, "port to listen on")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging and request logs")

	return cmd
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func run(ctx context.Context, logger *slog.Logger, inbound config.InboundConfig, debug bool) error {
	cfg, err := config.FromEnv(logger)
	if err != nil {
		logger.Error("configuration error", "err", err)
		return err
	}
	logger.Info("starting SSE server",
		"instance_url", cfg.InstanceURL,
		"auth_type", cfg.Auth.Type,
	)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client, err := services.NewClient(ctx, cfg, nil)
	if err != nil {
		logger.Error("failed to create servicenow client", "err", err)
		return err
	}

	if inbound.AuthEnabled() {
		logger.Info("inbound API key authentication is enabled", "header", headerDescription(inbound.APIKeyHeader))
	} else {
		logger.Warn("MCP_SERVER_API_KEY is not set, the MCP endpoints are unprotected")
	}

	router := handlers.NewRouter(handlers.NewMCPServer(client, version), handlers.RouterOptions{
		APIKey:         inbound.APIKey,
		APIKeyHeader:   inbound.APIKeyHeader,
		RequestLogging: debug,
		Logger:         logger,
	})

	addr := net.JoinHostPort(inbound.Host, strconv.Itoa(inbound.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// SSE sessions hold their request open until its context ends
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr, "sse", "/sse", "streamable", "/mcp")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server failed", "err", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

func headerDescription(header string) string {
	if header == "" {
		return "Authorization: Bearer or X-API-Key"
	}
	return header
}
