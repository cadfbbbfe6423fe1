// Package serve runs the HTTP trigger server for the enqueuer.
package serve

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/waterdeep/usersync/internal/api"
	"github.com/waterdeep/usersync/internal/conf"
	"github.com/waterdeep/usersync/internal/enqueuer"
	"github.com/waterdeep/usersync/internal/logging"
	"github.com/waterdeep/usersync/internal/queue"
	"github.com/waterdeep/usersync/internal/waterdeep"
)

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server exposing the migration enqueue trigger",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), settings)
		},
	}
	cmd.Flags().StringVar(&settings.WebServer.Port, "port", settings.WebServer.Port, "HTTP listen port")
	return cmd
}

// runServer owns every resource it opens and releases them on all exit paths.
func runServer(ctx context.Context, settings *conf.Settings) error {
	store := waterdeep.New(settings)
	if err := store.Open(); err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error("failed to close legacy store", "error", err)
		}
	}()

	client := queue.NewClient(settings)
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		return err
	}
	defer client.Disconnect()

	controller := api.New(settings, enqueuer.New(settings, store, client))

	errCh := make(chan error, 1)
	go func() {
		if err := controller.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	logging.Info("HTTP server started", "port", settings.WebServer.Port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logging.Info("shutting down", "signal", sig.String())
	case <-ctx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	return controller.Shutdown(shutdownCtx)
}
