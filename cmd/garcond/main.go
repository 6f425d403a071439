// Command garcond runs the control-plane daemon: it wires the
// composition root and serves the HTTP/push facade until interrupted.
//
// Grounded on the teacher's internal/cli/cmd/root.go use of cobra for
// its command surface, reduced from a TUI dashboard entrypoint to a
// single serve command, since this rewrite carries no terminal UI.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Lmdudester/Garcon/internal/app"
	"github.com/Lmdudester/Garcon/internal/config"
	"github.com/Lmdudester/Garcon/internal/logging"
)

func main() {
	cfg := config.Load()

	root := &cobra.Command{
		Use:   "garcond",
		Short: "local control plane for game-server instances",
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "run the daemon and serve the HTTP/push API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cfg)
		},
	}

	serve.Flags().StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "root directory for servers, templates, and backups")
	serve.Flags().StringVar(&cfg.Host, "host", cfg.Host, "address to listen on")
	serve.Flags().IntVar(&cfg.Port, "port", cfg.Port, "port to listen on")

	root.AddCommand(serve)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cfg config.Config) error {
	log := logging.New(cfg.LogLevel, cfg.LogPretty)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	container, err := app.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("build composition root: %w", err)
	}
	container.Start(ctx)
	defer container.Shutdown()

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	httpServer := &http.Server{Addr: addr, Handler: container.API.Handler()}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("garcond listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}
