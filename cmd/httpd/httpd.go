// Package httpd implements the HTTP server command: it wires the full
// extraction stack to the API router and runs until interrupted.
package httpd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/socialgrab/cmd/common"
	"github.com/jonesrussell/socialgrab/internal/api"
	"github.com/jonesrussell/socialgrab/internal/logger"
	"github.com/jonesrussell/socialgrab/internal/scheduler"
)

const (
	signalChannelBufferSize = 1
	errorChannelBufferSize  = 1
	defaultShutdownTimeout  = 30 * time.Second
)

// Command returns the httpd command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "httpd",
		Short: "Start the extraction HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Start(cmd.Context())
		},
	}
}

// Start starts the HTTP server and runs until interrupted. It handles
// graceful shutdown on SIGINT or SIGTERM.
func Start(ctx context.Context) error {
	deps, err := common.NewCommandDeps()
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}

	// The server needs the full stack: the credential pool and admin
	// endpoints cannot run without Postgres, so unlike the one-shot
	// extract command a missing database is fatal here.
	db, err := common.OpenDatabase(deps.Config)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	redisClient, redisErr := common.OpenRedis(ctx, deps.Config)
	if redisErr != nil {
		deps.Logger.Warn("Redis unavailable, serving without result cache", "error", redisErr)
	} else {
		defer redisClient.Close()
	}

	stack, err := common.BuildExtractionStack(deps, db, redisClient)
	if err != nil {
		return fmt.Errorf("failed to build extraction stack: %w", err)
	}

	maintenance := scheduler.NewMaintenance(
		stack.Cookies,
		stack.Rotator,
		deps.Config.GetRotatorConfig().RefreshInterval,
		deps.Logger,
	)
	if err := maintenance.Start(); err != nil {
		return fmt.Errorf("failed to start maintenance: %w", err)
	}

	server := api.StartHTTPServer(deps.Logger, api.Deps{
		Extractor: stack.Orchestrator,
		Cookies:   stack.Cookies,
		Sealer:    stack.Pool,
		Profiles:  stack.Profiles,
	}, deps.Config)

	deps.Logger.Info("Starting HTTP server", "addr", server.Addr)
	errChan := make(chan error, errorChannelBufferSize)
	go func() {
		if serveErr := server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
	}()

	return runUntilInterrupt(deps.Logger, server, maintenance, errChan)
}

// runUntilInterrupt blocks until a signal or server error, then shuts down.
func runUntilInterrupt(
	log logger.Interface,
	server *http.Server,
	maintenance *scheduler.Maintenance,
	errChan chan error,
) error {
	sigChan := make(chan os.Signal, signalChannelBufferSize)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case serverErr := <-errChan:
		maintenance.Stop()
		log.Error("Server error", "error", serverErr)
		return fmt.Errorf("server error: %w", serverErr)
	case sig := <-sigChan:
		log.Info("Shutting down", "signal", sig.String())
		maintenance.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	}
}
